package blockchain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"bitcoin-gateway-go/internal/upstream"
)

const testAddress = "1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2"

func newTestSoChain(t *testing.T, handler http.HandlerFunc) *SoChain {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewSoChain(upstream.NewFetcher(server.Client()), server.URL, "BTC")
}

func txsResponse(txs string) string {
	return fmt.Sprintf(`{"status":"success","data":{"network":"BTC","address":"%s","txs":[%s]}}`, testAddress, txs)
}

func TestGetTransactionsReceived_RequestPath(t *testing.T) {
	var gotPath string
	client := newTestSoChain(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(txsResponse("")))
	})

	if _, err := client.GetTransactionsReceived(context.Background(), testAddress); err != nil {
		t.Fatalf("GetTransactionsReceived failed: %v", err)
	}

	want := "/get_tx_received/BTC/" + testAddress
	if gotPath != want {
		t.Errorf("Expected path %s, got %s", want, gotPath)
	}
}

func TestGetTransactionsReceived_ConvertsToSatoshis(t *testing.T) {
	client := newTestSoChain(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(txsResponse(
			`{"txid":"aa11","value":"0.00050000","confirmations":6,"time":1700000000},
			 {"txid":"bb22","value":"1.23456789","confirmations":0,"time":1700000100}`)))
	})

	txs, err := client.GetTransactionsReceived(context.Background(), testAddress)
	if err != nil {
		t.Fatalf("GetTransactionsReceived failed: %v", err)
	}

	if len(txs) != 2 {
		t.Fatalf("Expected 2 transactions, got %d", len(txs))
	}
	if txs[0].Amount != 50000 {
		t.Errorf("Expected 50000 satoshis, got %d", txs[0].Amount)
	}
	if txs[1].Amount != 123456789 {
		t.Errorf("Expected 123456789 satoshis, got %d", txs[1].Amount)
	}
	if txs[0].Confirmations != 6 || txs[1].Confirmations != 0 {
		t.Errorf("Confirmations not preserved: %d, %d", txs[0].Confirmations, txs[1].Confirmations)
	}
	if txs[0].Time.Unix() != 1700000000 {
		t.Errorf("Expected tx time 1700000000, got %d", txs[0].Time.Unix())
	}
}

func TestGetTransactionsReceived_EmptyList(t *testing.T) {
	client := newTestSoChain(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(txsResponse("")))
	})

	txs, err := client.GetTransactionsReceived(context.Background(), testAddress)
	if err != nil {
		t.Fatalf("GetTransactionsReceived failed: %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("Expected empty transaction list, got %d entries", len(txs))
	}
}

func TestGetTransactionsReceived_FailStatus(t *testing.T) {
	client := newTestSoChain(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"fail","data":{"address":"not valid"}}`))
	})

	_, err := client.GetTransactionsReceived(context.Background(), "bogus")
	if !errors.Is(err, upstream.ErrInvalidAddress) {
		t.Fatalf("Expected ErrInvalidAddress, got %v", err)
	}
}

func TestGetTransactionsReceived_RateLimited(t *testing.T) {
	client := newTestSoChain(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.GetTransactionsReceived(context.Background(), testAddress)
	if !errors.Is(err, upstream.ErrRateLimited) {
		t.Fatalf("Expected ErrRateLimited, got %v", err)
	}
}

func TestGetTransactionsReceived_UnparseableValue(t *testing.T) {
	client := newTestSoChain(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(txsResponse(`{"txid":"aa11","value":"not-a-number","confirmations":1,"time":0}`)))
	})

	_, err := client.GetTransactionsReceived(context.Background(), testAddress)
	if !errors.Is(err, upstream.ErrUpstreamFormat) {
		t.Fatalf("Expected ErrUpstreamFormat, got %v", err)
	}
}

func TestGetAddressBalance_SplitsByConfirmations(t *testing.T) {
	client := newTestSoChain(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(txsResponse(
			`{"txid":"aa11","value":"0.00050000","confirmations":0,"time":1700000000},
			 {"txid":"bb22","value":"0.00030000","confirmations":3,"time":1700000100},
			 {"txid":"cc33","value":"0.00020000","confirmations":1,"time":1700000200}`)))
	})

	snapshot, err := client.GetAddressBalance(context.Background(), testAddress, 1)
	if err != nil {
		t.Fatalf("GetAddressBalance failed: %v", err)
	}

	if snapshot.ConfirmedBalance != 50000 {
		t.Errorf("Expected 50000 confirmed, got %d", snapshot.ConfirmedBalance)
	}
	if snapshot.UnconfirmedBalance != 50000 {
		t.Errorf("Expected 50000 unconfirmed, got %d", snapshot.UnconfirmedBalance)
	}
	if snapshot.Total() != 100000 {
		t.Errorf("Expected 100000 total, got %d", snapshot.Total())
	}
	if len(snapshot.Transactions) != 3 {
		t.Errorf("Expected 3 transactions in snapshot, got %d", len(snapshot.Transactions))
	}
}

func TestGetAddressBalance_HigherThreshold(t *testing.T) {
	client := newTestSoChain(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(txsResponse(
			`{"txid":"aa11","value":"0.00050000","confirmations":3,"time":1700000000}`)))
	})

	snapshot, err := client.GetAddressBalance(context.Background(), testAddress, 6)
	if err != nil {
		t.Fatalf("GetAddressBalance failed: %v", err)
	}

	if snapshot.ConfirmedBalance != 0 {
		t.Errorf("Expected 0 confirmed below threshold, got %d", snapshot.ConfirmedBalance)
	}
	if snapshot.UnconfirmedBalance != 50000 {
		t.Errorf("Expected 50000 unconfirmed, got %d", snapshot.UnconfirmedBalance)
	}
}

func TestGetAddressBalance_EmptyAddress(t *testing.T) {
	client := newTestSoChain(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(txsResponse("")))
	})

	snapshot, err := client.GetAddressBalance(context.Background(), testAddress, 1)
	if err != nil {
		t.Fatalf("GetAddressBalance failed: %v", err)
	}
	if snapshot.ConfirmedBalance != 0 || snapshot.UnconfirmedBalance != 0 {
		t.Errorf("Expected zero balances, got %d / %d", snapshot.ConfirmedBalance, snapshot.UnconfirmedBalance)
	}
}
