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

package gateway

import (
	"errors"
	"fmt"

	"bitcoin-gateway-go/internal/blockchain"
	"bitcoin-gateway-go/internal/config"
	"bitcoin-gateway-go/internal/rates"
	"bitcoin-gateway-go/internal/store"
	"bitcoin-gateway-go/internal/wallet"
)

// ErrLatePayment flags funds arriving on an expired order. The order state
// is left untouched; the case needs manual handling, never silent
// reconciliation.
var ErrLatePayment = errors.New("payment received after order expiry")

// ErrUnknownGateway means the payment-method identifier is not one of the
// configured gateway instances.
var ErrUnknownGateway = errors.New("unknown gateway id")

// gatewayInstance pairs one configured gateway with its address deriver.
type gatewayInstance struct {
	cfg     config.GatewayConfig
	deriver *wallet.Deriver
}

// ServiceConfig wires the reconciliation service's collaborators.
type ServiceConfig struct {
	Store            store.GatewayStore
	Chain            blockchain.Client
	Rates            rates.Client
	Gateways         []config.GatewayConfig
	MinConfirmations int64
}

// Service decides whether an order's payment has arrived and drives address
// issuance. All operations take explicit order/gateway identifiers; nothing
// is read from ambient context.
type Service struct {
	store            store.GatewayStore
	chain            blockchain.Client
	rates            rates.Client
	gateways         map[string]*gatewayInstance
	minConfirmations int64
	locks            *orderLocks
}

// NewService validates every configured xpub up front; bad key material is
// rejected here with wallet.ErrDerivation before any index is allocated.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil || cfg.Chain == nil || cfg.Rates == nil {
		return nil, fmt.Errorf("store, chain and rates clients are required")
	}
	if len(cfg.Gateways) == 0 {
		return nil, fmt.Errorf("at least one gateway must be configured")
	}

	gateways := make(map[string]*gatewayInstance, len(cfg.Gateways))
	for _, gc := range cfg.Gateways {
		deriver, err := wallet.NewDeriver(gc.Xpub, gc.Network)
		if err != nil {
			return nil, fmt.Errorf("gateway %s: %w", gc.Id, err)
		}
		gateways[gc.Id] = &gatewayInstance{cfg: gc, deriver: deriver}
	}

	return &Service{
		store:            cfg.Store,
		chain:            cfg.Chain,
		rates:            cfg.Rates,
		gateways:         gateways,
		minConfirmations: cfg.MinConfirmations,
		locks:            newOrderLocks(),
	}, nil
}

func (s *Service) gateway(gatewayId string) (*gatewayInstance, error) {
	gw, ok := s.gateways[gatewayId]
	if !ok {
		return nil, fmt.Errorf("%q: %w", gatewayId, ErrUnknownGateway)
	}
	return gw, nil
}

// IsBitcoinGateway reports whether the order's recorded payment-method
// identifier names one of this service's gateway instances. Pure lookup, no
// network call.
func (s *Service) IsBitcoinGateway(paymentMethodId string) bool {
	_, ok := s.gateways[paymentMethodId]
	return ok
}
