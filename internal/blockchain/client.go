package blockchain

import (
	"context"

	"bitcoin-gateway-go/internal/models"
)

// Client is the block-explorer contract. Implementations wrap one upstream
// provider so the explorer is swappable without touching reconciliation.
type Client interface {
	// GetAddressBalance returns a fresh snapshot for the address. Transactions
	// with confirmations >= minConfirmations count toward the confirmed
	// balance, the remainder toward the unconfirmed balance.
	GetAddressBalance(ctx context.Context, address string, minConfirmations int64) (*models.BalanceSnapshot, error)

	// GetTransactionsReceived returns every receive to the address, upstream
	// order preserved. A never-funded address yields an empty slice, not an
	// error.
	GetTransactionsReceived(ctx context.Context, address string) ([]models.Transaction, error)
}
