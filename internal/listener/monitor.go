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

package listener

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bitcoin-gateway-go/internal/models"
	"bitcoin-gateway-go/internal/store"
	"bitcoin-gateway-go/internal/upstream"

	"go.uber.org/zap"
)

// Reconciler advances one order's payment state from a fresh snapshot.
type Reconciler interface {
	Reconcile(ctx context.Context, orderId string) (*models.OrderPaymentState, error)
}

// OrderMonitorConfig contains configuration for OrderMonitor.
type OrderMonitorConfig struct {
	Reconciler       Reconciler
	Store            store.GatewayStore
	PollingInterval  time.Duration
	RateLimitBackoff time.Duration
}

// OrderMonitor periodically reconciles every open order. It is the
// stand-in for the host platform's background job scheduler.
type OrderMonitor struct {
	reconciler Reconciler
	store      store.GatewayStore

	pollingInterval  time.Duration
	rateLimitBackoff time.Duration

	// Guarded by mutex: the poll loop and Stop race on shutdown.
	mutex       sync.Mutex
	backoffTill time.Time

	stopChan chan struct{}
	doneChan chan struct{}
}

func NewOrderMonitor(cfg OrderMonitorConfig) *OrderMonitor {
	return &OrderMonitor{
		reconciler:       cfg.Reconciler,
		store:            cfg.Store,
		pollingInterval:  cfg.PollingInterval,
		rateLimitBackoff: cfg.RateLimitBackoff,
		stopChan:         make(chan struct{}),
		doneChan:         make(chan struct{}),
	}
}

func (m *OrderMonitor) Start(ctx context.Context) error {
	if m.reconciler == nil || m.store == nil {
		return fmt.Errorf("reconciler and store are required")
	}
	if m.pollingInterval <= 0 {
		return fmt.Errorf("polling interval must be positive, got %v", m.pollingInterval)
	}

	zap.L().Info("Starting order monitor",
		zap.Duration("polling_interval", m.pollingInterval),
		zap.Duration("rate_limit_backoff", m.rateLimitBackoff))

	go m.run(ctx)
	return nil
}

// Stop signals the poll loop and waits for the in-flight poll to finish.
func (m *OrderMonitor) Stop() {
	close(m.stopChan)
	<-m.doneChan
	zap.L().Info("Order monitor stopped")
}

func (m *OrderMonitor) run(ctx context.Context) {
	defer close(m.doneChan)

	ticker := time.NewTicker(m.pollingInterval)
	defer ticker.Stop()

	m.pollOnce(ctx)

	for {
		select {
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pollOnce(ctx)
		}
	}
}

func (m *OrderMonitor) pollOnce(ctx context.Context) {
	m.mutex.Lock()
	backingOff := time.Now().Before(m.backoffTill)
	m.mutex.Unlock()
	if backingOff {
		zap.L().Debug("Skipping poll, backing off after upstream rate limit")
		return
	}

	orders, err := m.store.ListOpenOrders(ctx)
	if err != nil {
		zap.L().Error("Failed to list open orders", zap.Error(err))
		return
	}
	if len(orders) == 0 {
		return
	}

	zap.L().Debug("Reconciling open orders", zap.Int("count", len(orders)))

	for _, order := range orders {
		select {
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		if _, err := m.reconciler.Reconcile(ctx, order.OrderId); err != nil {
			if errors.Is(err, upstream.ErrRateLimited) {
				m.mutex.Lock()
				m.backoffTill = time.Now().Add(m.rateLimitBackoff)
				m.mutex.Unlock()
				zap.L().Warn("Upstream rate limited, backing off",
					zap.String("order_id", order.OrderId),
					zap.Duration("backoff", m.rateLimitBackoff))
				return
			}
			// Left for the next tick; state is unchanged on error.
			zap.L().Error("Reconcile failed",
				zap.String("order_id", order.OrderId),
				zap.Error(err))
		}
	}
}
