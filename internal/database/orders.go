package database

import (
	"context"
	"database/sql"
	"fmt"

	"bitcoin-gateway-go/internal/models"
	"bitcoin-gateway-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateOrder persists the payment state fixed at order creation.
func (s *Service) CreateOrder(ctx context.Context, params store.CreateOrderParams) (*models.OrderPaymentState, error) {
	var existing string
	err := s.db.QueryRowContext(ctx, queryCheckOrderExists, params.OrderId).Scan(&existing)
	if err == nil {
		return nil, fmt.Errorf("order %s: %w", params.OrderId, store.ErrDuplicateOrder)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check for duplicate order: %w", err)
	}

	row := s.db.QueryRowContext(ctx, queryInsertOrder,
		params.OrderId, params.GatewayId, params.Address, params.ExpectedAmount,
		params.FiatTotal.String(), params.FiatCurrency, params.ExchangeRate.String(),
		params.ExpiresAt.UTC())

	order, err := scanOrder(row)
	if err != nil {
		return nil, fmt.Errorf("unable to insert order %s: %w", params.OrderId, err)
	}

	zap.L().Info("Order created",
		zap.String("order_id", order.OrderId),
		zap.String("gateway_id", order.GatewayId),
		zap.String("address", order.Address),
		zap.Int64("expected_amount", order.ExpectedAmount),
		zap.Time("expires_at", order.ExpiresAt))
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, orderId string) (*models.OrderPaymentState, error) {
	row := s.db.QueryRowContext(ctx, queryGetOrder, orderId)
	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %s: %w", orderId, store.ErrOrderNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to query order %s: %w", orderId, err)
	}
	return order, nil
}

// UpdateOrderStatus persists the outcome of one reconciliation step.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderId string, status models.OrderStatus, confirmed, unconfirmed int64) error {
	result, err := s.db.ExecContext(ctx, queryUpdateOrderStatus, string(status), confirmed, unconfirmed, orderId)
	if err != nil {
		return fmt.Errorf("unable to update order %s: %w", orderId, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("order %s: %w", orderId, store.ErrOrderNotFound)
	}

	zap.L().Info("Order status updated",
		zap.String("order_id", orderId),
		zap.String("status", string(status)),
		zap.Int64("confirmed_balance", confirmed),
		zap.Int64("unconfirmed_balance", unconfirmed))
	return nil
}

func (s *Service) ListOpenOrders(ctx context.Context) ([]models.OrderPaymentState, error) {
	rows, err := s.db.QueryContext(ctx, queryListOpenOrders)
	if err != nil {
		return nil, fmt.Errorf("unable to list open orders: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var orders []models.OrderPaymentState
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan order row: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}

	return orders, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*models.OrderPaymentState, error) {
	order := &models.OrderPaymentState{}
	var fiatTotalStr, exchangeRateStr, statusStr string

	err := row.Scan(
		&order.OrderId, &order.GatewayId, &order.Address, &order.ExpectedAmount,
		&fiatTotalStr, &order.FiatCurrency, &exchangeRateStr, &statusStr,
		&order.ConfirmedBalance, &order.UnconfirmedBalance,
		&order.CreatedAt, &order.UpdatedAt, &order.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	order.Status = models.OrderStatus(statusStr)
	order.FiatTotal, err = decimal.NewFromString(fiatTotalStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fiat total %q: %w", fiatTotalStr, err)
	}
	order.ExchangeRate, err = decimal.NewFromString(exchangeRateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse exchange rate %q: %w", exchangeRateStr, err)
	}

	return order, nil
}
