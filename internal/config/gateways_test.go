package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeGatewaysFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateways.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("Failed to write gateways file: %v", err)
	}
	return path
}

func TestLoadGatewayConfigs(t *testing.T) {
	path := writeGatewaysFile(t, `
gateways:
  - id: shop-main
    xpub: xpub661MyMwAqRbcFtXgS5sYJABqqG9YLmC4Q1Rdap9gSE8NqtwybGhePY2gZ29ESFjqJoCu1Rupje8YtGqsefD265TMg7usUDFdp6W1EGMcet8
    network: mainnet
    currency: usd
    expiry: 1h30m
  - id: shop-test
    xpub: xpub-test
    network: testnet3
    currency: eur
`)

	gateways, err := LoadGatewayConfigs(path)
	if err != nil {
		t.Fatalf("LoadGatewayConfigs failed: %v", err)
	}

	if len(gateways) != 2 {
		t.Fatalf("Expected 2 gateways, got %d", len(gateways))
	}
	if gateways[0].Id != "shop-main" || gateways[0].Currency != "usd" {
		t.Errorf("First gateway not parsed: %+v", gateways[0])
	}
	if gateways[0].OrderExpiry() != 90*time.Minute {
		t.Errorf("Expected 1h30m expiry, got %s", gateways[0].OrderExpiry())
	}
	if gateways[1].OrderExpiry() != defaultOrderExpiry {
		t.Errorf("Expected default expiry for unset field, got %s", gateways[1].OrderExpiry())
	}
}

func TestLoadGatewayConfigs_MissingFile(t *testing.T) {
	_, err := LoadGatewayConfigs(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestLoadGatewayConfigs_EmptyList(t *testing.T) {
	path := writeGatewaysFile(t, "gateways: []\n")
	_, err := LoadGatewayConfigs(path)
	if err == nil || !strings.Contains(err.Error(), "no gateways") {
		t.Fatalf("Expected no-gateways error, got %v", err)
	}
}

func TestLoadGatewayConfigs_Validation(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		errorHas string
	}{
		{
			name:     "missing id",
			yaml:     "gateways:\n  - xpub: k\n    currency: usd\n",
			errorHas: "missing id",
		},
		{
			name:     "duplicate id",
			yaml:     "gateways:\n  - id: a\n    xpub: k\n    currency: usd\n  - id: a\n    xpub: k\n    currency: usd\n",
			errorHas: "duplicate gateway id",
		},
		{
			name:     "missing xpub",
			yaml:     "gateways:\n  - id: a\n    currency: usd\n",
			errorHas: "missing xpub",
		},
		{
			name:     "missing currency",
			yaml:     "gateways:\n  - id: a\n    xpub: k\n",
			errorHas: "missing currency",
		},
		{
			name:     "invalid expiry",
			yaml:     "gateways:\n  - id: a\n    xpub: k\n    currency: usd\n    expiry: soonish\n",
			errorHas: "invalid expiry",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeGatewaysFile(t, tc.yaml)
			_, err := LoadGatewayConfigs(path)
			if err == nil || !strings.Contains(err.Error(), tc.errorHas) {
				t.Fatalf("Expected error containing %q, got %v", tc.errorHas, err)
			}
		})
	}
}
