package rates

import (
	"context"

	"github.com/shopspring/decimal"
)

// Client quotes the spot price of Bitcoin in a fiat currency. One upstream
// round trip per call; callers own any caching or retry policy.
type Client interface {
	// GetExchangeRate returns fiat units per 1 BTC. The currency code is
	// case-insensitive.
	GetExchangeRate(ctx context.Context, currencyCode string) (decimal.Decimal, error)
}
