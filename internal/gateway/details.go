package gateway

import (
	"context"
	"fmt"
	"time"

	"bitcoin-gateway-go/internal/models"
	"bitcoin-gateway-go/internal/store"

	"github.com/shopspring/decimal"
)

var satoshisPerBtc = decimal.New(1, 8)

func storeCreateParams(params CreateOrderParams, address string, expected int64, currency string, rate decimal.Decimal, expiry time.Duration) store.CreateOrderParams {
	return store.CreateOrderParams{
		OrderId:        params.OrderId,
		GatewayId:      params.GatewayId,
		Address:        address,
		ExpectedAmount: expected,
		FiatTotal:      params.FiatTotal,
		FiatCurrency:   currency,
		ExchangeRate:   rate,
		ExpiresAt:      time.Now().Add(expiry),
	}
}

// formatBtc renders satoshis as a fixed 8-decimal BTC string.
func formatBtc(satoshis int64) string {
	return decimal.New(satoshis, -8).StringFixed(8)
}

// Order returns the current payment state without reconciling.
func (s *Service) Order(ctx context.Context, orderId string) (*models.OrderPaymentState, error) {
	return s.store.GetOrder(ctx, orderId)
}

// OrderDetails returns the structured payment instructions the host platform
// renders into checkout pages, emails and the thank-you page.
func (s *Service) OrderDetails(ctx context.Context, orderId string) (*models.OrderDetails, error) {
	order, err := s.store.GetOrder(ctx, orderId)
	if err != nil {
		return nil, err
	}

	received := order.ConfirmedBalance + order.UnconfirmedBalance
	remaining := order.ExpectedAmount - received
	if remaining < 0 {
		remaining = 0
	}

	btcTotal := decimal.New(order.ExpectedAmount, -8)

	return &models.OrderDetails{
		OrderId:      order.OrderId,
		GatewayId:    order.GatewayId,
		Address:      order.Address,
		Status:       string(order.Status),
		BtcTotal:     formatBtc(order.ExpectedAmount),
		BtcReceived:  formatBtc(received),
		BtcRemaining: formatBtc(remaining),
		FiatTotal:    order.FiatTotal.String(),
		FiatCurrency: order.FiatCurrency,
		ExchangeRate: order.ExchangeRate.String(),
		PaymentURI:   fmt.Sprintf("bitcoin:%s?amount=%s", order.Address, btcTotal.String()),
		ExpiresAt:    order.ExpiresAt.UTC().Format(time.RFC3339),
	}, nil
}
