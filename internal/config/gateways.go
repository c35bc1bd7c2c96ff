package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

// Default payment window for orders on gateways with no expiry set.
const defaultOrderExpiry = 3 * time.Hour

// GatewayConfig describes one gateway instance: the settings the host
// platform's settings store supplies per gateway id.
type GatewayConfig struct {
	Id       string `yaml:"id"`
	Xpub     string `yaml:"xpub"`
	Network  string `yaml:"network"`
	Currency string `yaml:"currency"`
	Expiry   string `yaml:"expiry"`
}

type gatewaysFile struct {
	Gateways []GatewayConfig `yaml:"gateways"`
}

// OrderExpiry returns the configured payment window, falling back to the
// default when unset. Validation happens at load time.
func (g GatewayConfig) OrderExpiry() time.Duration {
	if g.Expiry == "" {
		return defaultOrderExpiry
	}
	d, err := time.ParseDuration(g.Expiry)
	if err != nil {
		return defaultOrderExpiry
	}
	return d
}

// LoadGatewayConfigs reads and validates the gateways.yaml file.
func LoadGatewayConfigs(gatewaysFilePath string) ([]GatewayConfig, error) {
	path := gatewaysFilePath
	if !filepath.IsAbs(path) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		path = filepath.Join(wd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", gatewaysFilePath, err)
	}

	var file gatewaysFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", gatewaysFilePath, err)
	}

	if len(file.Gateways) == 0 {
		return nil, fmt.Errorf("%s defines no gateways", gatewaysFilePath)
	}

	seen := make(map[string]bool, len(file.Gateways))
	for i, gw := range file.Gateways {
		if gw.Id == "" {
			return nil, fmt.Errorf("gateway at index %d missing id", i)
		}
		if seen[gw.Id] {
			return nil, fmt.Errorf("duplicate gateway id %q", gw.Id)
		}
		seen[gw.Id] = true
		if gw.Xpub == "" {
			return nil, fmt.Errorf("gateway %q missing xpub", gw.Id)
		}
		if gw.Currency == "" {
			return nil, fmt.Errorf("gateway %q missing currency", gw.Id)
		}
		if gw.Expiry != "" {
			if _, err := time.ParseDuration(gw.Expiry); err != nil {
				return nil, fmt.Errorf("gateway %q has invalid expiry %q: %w", gw.Id, gw.Expiry, err)
			}
		}
	}

	return file.Gateways, nil
}
