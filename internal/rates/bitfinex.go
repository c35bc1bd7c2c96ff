/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"bitcoin-gateway-go/internal/upstream"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultBitfinexBaseUrl = "https://api-pub.bitfinex.com/v2"

var _ Client = (*Bitfinex)(nil)

// Index of LAST_PRICE in a v2 tickers row, counting the leading symbol.
const lastPriceIndex = 7

// Bitfinex quotes BTC spot prices from the public v2 tickers endpoint.
type Bitfinex struct {
	fetch   *upstream.Fetcher
	baseUrl string
}

func NewBitfinex(fetch *upstream.Fetcher, baseUrl string) *Bitfinex {
	if baseUrl == "" {
		baseUrl = DefaultBitfinexBaseUrl
	}
	return &Bitfinex{fetch: fetch, baseUrl: baseUrl}
}

// GetExchangeRate returns the LAST_PRICE field verbatim as a decimal, no
// rounding. An unknown trading pair comes back as an empty tickers array and
// maps to ErrUnsupportedCurrency.
func (b *Bitfinex) GetExchangeRate(ctx context.Context, currencyCode string) (decimal.Decimal, error) {
	code := strings.ToUpper(strings.TrimSpace(currencyCode))
	if code == "" {
		return decimal.Zero, fmt.Errorf("empty currency code: %w", upstream.ErrUnsupportedCurrency)
	}

	symbol := "tBTC" + code
	endpoint := fmt.Sprintf("%s/tickers?symbols=%s", b.baseUrl, symbol)

	var tickers [][]interface{}
	if err := b.fetch.GetJSON(ctx, endpoint, &tickers); err != nil {
		return decimal.Zero, err
	}

	if len(tickers) == 0 {
		return decimal.Zero, fmt.Errorf("no market for %s: %w", symbol, upstream.ErrUnsupportedCurrency)
	}

	row := tickers[0]
	if len(row) <= lastPriceIndex {
		zap.L().Error("Short Bitfinex ticker row",
			zap.String("symbol", symbol),
			zap.Int("fields", len(row)))
		return decimal.Zero, fmt.Errorf("ticker row for %s has %d fields: %w", symbol, len(row), upstream.ErrUpstreamFormat)
	}

	lastPrice, ok := row[lastPriceIndex].(json.Number)
	if !ok {
		return decimal.Zero, fmt.Errorf("ticker LAST_PRICE for %s is not numeric: %w", symbol, upstream.ErrUpstreamFormat)
	}

	rate, err := decimal.NewFromString(lastPrice.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("ticker LAST_PRICE %q for %s: %w", lastPrice.String(), symbol, upstream.ErrUpstreamFormat)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive rate %s for %s: %w", rate.String(), symbol, upstream.ErrUpstreamFormat)
	}

	return rate, nil
}
