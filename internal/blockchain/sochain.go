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

package blockchain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"bitcoin-gateway-go/internal/models"
	"bitcoin-gateway-go/internal/upstream"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultSoChainBaseUrl = "https://sochain.com/api/v2"

var _ Client = (*SoChain)(nil)

// satoshisPerBtc converts SoChain's BTC-denominated value strings.
var satoshisPerBtc = decimal.New(1, 8)

// SoChain queries the SoChain block explorer.
type SoChain struct {
	fetch   *upstream.Fetcher
	baseUrl string
	network string
}

// NewSoChain builds a client for the given chain network ("BTC" or
// "BTCTEST"). An empty baseUrl falls back to the public API.
func NewSoChain(fetch *upstream.Fetcher, baseUrl, network string) *SoChain {
	if baseUrl == "" {
		baseUrl = DefaultSoChainBaseUrl
	}
	if network == "" {
		network = "BTC"
	}
	return &SoChain{fetch: fetch, baseUrl: baseUrl, network: network}
}

type sochainEnvelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type sochainTxsData struct {
	Network string      `json:"network"`
	Address string      `json:"address"`
	Txs     []sochainTx `json:"txs"`
}

type sochainTx struct {
	TxId          string      `json:"txid"`
	Value         string      `json:"value"`
	Confirmations int64       `json:"confirmations"`
	Time          json.Number `json:"time"`
}

// GetTransactionsReceived returns every receive to the address, one upstream
// round trip, upstream ordering preserved (most recent first).
func (s *SoChain) GetTransactionsReceived(ctx context.Context, address string) ([]models.Transaction, error) {
	endpoint := fmt.Sprintf("%s/get_tx_received/%s/%s", s.baseUrl, s.network, url.PathEscape(address))

	var envelope sochainEnvelope
	if err := s.fetch.GetJSON(ctx, endpoint, &envelope); err != nil {
		return nil, err
	}

	if envelope.Status != "success" {
		// SoChain reports malformed or wrong-network addresses as a "fail"
		// envelope rather than an HTTP error.
		zap.L().Warn("SoChain rejected address query",
			zap.String("address", address),
			zap.String("status", envelope.Status),
			zap.ByteString("data", envelope.Data))
		return nil, fmt.Errorf("sochain rejected %q: %w", address, upstream.ErrInvalidAddress)
	}

	var data sochainTxsData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		zap.L().Error("Unexpected SoChain data shape",
			zap.String("address", address),
			zap.ByteString("data", envelope.Data),
			zap.Error(err))
		return nil, fmt.Errorf("sochain tx list for %q: %w", address, upstream.ErrUpstreamFormat)
	}

	transactions := make([]models.Transaction, 0, len(data.Txs))
	for _, tx := range data.Txs {
		value, err := decimal.NewFromString(tx.Value)
		if err != nil {
			zap.L().Error("Unparseable transaction value",
				zap.String("address", address),
				zap.String("txid", tx.TxId),
				zap.String("value", tx.Value))
			return nil, fmt.Errorf("sochain value %q for tx %s: %w", tx.Value, tx.TxId, upstream.ErrUpstreamFormat)
		}
		if tx.Confirmations < 0 {
			return nil, fmt.Errorf("sochain negative confirmations for tx %s: %w", tx.TxId, upstream.ErrUpstreamFormat)
		}

		var txTime time.Time
		if unix, err := tx.Time.Int64(); err == nil && unix > 0 {
			txTime = time.Unix(unix, 0).UTC()
		}

		transactions = append(transactions, models.Transaction{
			TxId:          tx.TxId,
			Amount:        value.Mul(satoshisPerBtc).IntPart(),
			Confirmations: tx.Confirmations,
			Time:          txTime,
		})
	}

	return transactions, nil
}

// GetAddressBalance computes the confirmed/unconfirmed split locally from the
// received-transaction list, so the result does not depend on upstream
// response ordering and one round trip serves both views.
func (s *SoChain) GetAddressBalance(ctx context.Context, address string, minConfirmations int64) (*models.BalanceSnapshot, error) {
	transactions, err := s.GetTransactionsReceived(ctx, address)
	if err != nil {
		return nil, err
	}

	snapshot := &models.BalanceSnapshot{Transactions: transactions}
	for _, tx := range transactions {
		if tx.Confirmations >= minConfirmations {
			snapshot.ConfirmedBalance += tx.Amount
		} else {
			snapshot.UnconfirmedBalance += tx.Amount
		}
	}

	return snapshot, nil
}
