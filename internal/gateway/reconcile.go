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
	"context"
	"fmt"
	"time"

	"bitcoin-gateway-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateOrderParams describes an order handed over by the host platform.
type CreateOrderParams struct {
	OrderId   string
	GatewayId string
	FiatTotal decimal.Decimal
	// Currency overrides the gateway's configured fiat currency when set.
	Currency string
}

// CreateOrder quotes the current exchange rate, fixes the expected satoshi
// amount for the order's lifetime, assigns a receive address and persists
// the initial unpaid state.
func (s *Service) CreateOrder(ctx context.Context, params CreateOrderParams) (*models.OrderPaymentState, error) {
	gw, err := s.gateway(params.GatewayId)
	if err != nil {
		return nil, err
	}
	if !params.FiatTotal.IsPositive() {
		return nil, fmt.Errorf("order %s: fiat total must be positive, got %s", params.OrderId, params.FiatTotal.String())
	}

	currency := params.Currency
	if currency == "" {
		currency = gw.cfg.Currency
	}

	// Rate quoted before the order lock; only store writes happen under it.
	rate, err := s.rates.GetExchangeRate(ctx, currency)
	if err != nil {
		return nil, fmt.Errorf("quoting %s for order %s: %w", currency, params.OrderId, err)
	}

	expected := params.FiatTotal.Div(rate).Mul(satoshisPerBtc).Ceil().IntPart()
	if expected <= 0 {
		return nil, fmt.Errorf("order %s: %s %s converts to zero satoshis at rate %s",
			params.OrderId, params.FiatTotal.String(), currency, rate.String())
	}

	unlock := s.locks.Lock(params.OrderId)
	defer unlock()

	addr, err := s.assignLocked(ctx, params.GatewayId, params.OrderId)
	if err != nil {
		return nil, err
	}

	order, err := s.store.CreateOrder(ctx, storeCreateParams(params, addr.Address, expected, currency, rate, gw.cfg.OrderExpiry()))
	if err != nil {
		return nil, err
	}

	return order, nil
}

// Reconcile compares the on-chain snapshot of the order's address against
// the expected amount and advances the payment status. The snapshot is
// fetched before the order lock is taken so the lock is never held across a
// network round trip. A failed reconcile leaves the state unchanged and
// reports the error; no error ever turns into a paid or unpaid status.
func (s *Service) Reconcile(ctx context.Context, orderId string) (*models.OrderPaymentState, error) {
	order, err := s.store.GetOrder(ctx, orderId)
	if err != nil {
		return nil, err
	}

	// The bound address is immutable once set, so reading it outside the
	// lock is safe.
	snapshot, err := s.chain.GetAddressBalance(ctx, order.Address, s.minConfirmations)
	if err != nil {
		return nil, fmt.Errorf("snapshot for order %s: %w", orderId, err)
	}

	unlock := s.locks.Lock(orderId)
	defer unlock()

	// Re-read under the lock; another reconcile may have advanced the state
	// between the fetch and here.
	order, err = s.store.GetOrder(ctx, orderId)
	if err != nil {
		return nil, err
	}

	return s.applySnapshot(ctx, order, snapshot)
}

func (s *Service) applySnapshot(ctx context.Context, order *models.OrderPaymentState, snapshot *models.BalanceSnapshot) (*models.OrderPaymentState, error) {
	if order.Status == models.OrderExpired {
		if snapshot.Total() > 0 {
			zap.L().Error("Funds observed on expired order",
				zap.String("order_id", order.OrderId),
				zap.String("address", order.Address),
				zap.Int64("observed", snapshot.Total()))
			return nil, fmt.Errorf("order %s address %s holds %d sat: %w",
				order.OrderId, order.Address, snapshot.Total(), ErrLatePayment)
		}
		return order, nil
	}

	next := statusFor(snapshot, order.ExpectedAmount)

	// Forward only: a later snapshot can raise but never lower the status.
	if next.Rank() < order.Status.Rank() {
		next = order.Status
	}

	expired := false
	if next == models.OrderUnpaid && time.Now().After(order.ExpiresAt) {
		next = models.OrderExpired
		expired = true
	}

	if next == order.Status &&
		snapshot.ConfirmedBalance == order.ConfirmedBalance &&
		snapshot.UnconfirmedBalance == order.UnconfirmedBalance {
		return order, nil
	}

	if err := s.store.UpdateOrderStatus(ctx, order.OrderId, next, snapshot.ConfirmedBalance, snapshot.UnconfirmedBalance); err != nil {
		return nil, err
	}

	if next != order.Status {
		zap.L().Info("Order status transition",
			zap.String("order_id", order.OrderId),
			zap.String("from", string(order.Status)),
			zap.String("to", string(next)),
			zap.Int64("confirmed", snapshot.ConfirmedBalance),
			zap.Int64("unconfirmed", snapshot.UnconfirmedBalance),
			zap.Int64("expected", order.ExpectedAmount))
	}

	switch {
	case expired && len(snapshot.Transactions) == 0:
		// Never touched on-chain, safe to hand to a future order.
		if err := s.store.ReleaseAddress(ctx, order.Address); err != nil {
			return nil, err
		}
	case next == models.OrderPaid || next == models.OrderOverpaid:
		if order.Status != models.OrderPaid && order.Status != models.OrderOverpaid {
			if err := s.store.MarkAddressUsed(ctx, order.Address); err != nil {
				return nil, err
			}
		}
	}

	updated := *order
	updated.Status = next
	updated.ConfirmedBalance = snapshot.ConfirmedBalance
	updated.UnconfirmedBalance = snapshot.UnconfirmedBalance
	updated.UpdatedAt = time.Now().UTC()
	return &updated, nil
}

// statusFor applies the payment policy: confirmed funds alone settle an
// order; unconfirmed funds only ever count toward partial payment.
func statusFor(snapshot *models.BalanceSnapshot, expected int64) models.OrderStatus {
	switch {
	case snapshot.ConfirmedBalance > expected:
		return models.OrderOverpaid
	case snapshot.ConfirmedBalance >= expected:
		return models.OrderPaid
	case snapshot.Total() > 0:
		return models.OrderPartiallyPaid
	default:
		return models.OrderUnpaid
	}
}
