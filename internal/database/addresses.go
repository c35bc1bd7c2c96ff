package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bitcoin-gateway-go/internal/models"
	"bitcoin-gateway-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Bounded retries for the optimistic index reservation loop.
const maxReserveRetries = 10

// ReserveIndexRange reserves count consecutive derivation indexes for the
// xpub using a version-checked compare-and-swap, so two concurrent callers
// never receive overlapping ranges. Returns the first reserved index.
func (s *Service) ReserveIndexRange(ctx context.Context, xpub string, count uint32) (uint32, error) {
	if count == 0 {
		return 0, fmt.Errorf("count must be positive")
	}

	for attempt := 0; attempt < maxReserveRetries; attempt++ {
		start, err := s.tryReserveIndexRange(ctx, xpub, count)
		if err == nil {
			return start, nil
		}
		if !errors.Is(err, store.ErrConcurrentModification) {
			return 0, err
		}
		zap.L().Debug("Index reservation lost the version race, retrying",
			zap.String("xpub_tail", tail(xpub)),
			zap.Int("attempt", attempt+1))
	}

	return 0, fmt.Errorf("index reservation for %s exhausted retries: %w", tail(xpub), store.ErrConcurrentModification)
}

func (s *Service) tryReserveIndexRange(ctx context.Context, xpub string, count uint32) (uint32, error) {
	var next uint32
	var version int64
	err := s.db.QueryRowContext(ctx, queryGetKeyIndex, xpub).Scan(&next, &version)
	if err == sql.ErrNoRows {
		if _, err := s.db.ExecContext(ctx, queryInsertKeyIndex, xpub); err != nil {
			return 0, fmt.Errorf("failed to create index counter: %w", err)
		}
		err = s.db.QueryRowContext(ctx, queryGetKeyIndex, xpub).Scan(&next, &version)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read index counter: %w", err)
	}

	// Single-statement compare-and-swap on the version column; under
	// contention exactly one caller advances the counter.
	result, err := s.db.ExecContext(ctx, queryAdvanceKeyIndex, next+count, xpub, version)
	if err != nil {
		return 0, fmt.Errorf("failed to advance index counter: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return 0, store.ErrConcurrentModification
	}

	return next, nil
}

// StoreAddresses persists derived addresses as available pool entries.
func (s *Service) StoreAddresses(ctx context.Context, params []store.AddressParams) ([]models.Address, error) {
	addresses := make([]models.Address, 0, len(params))
	for _, p := range params {
		addr, err := s.insertAddress(ctx, p)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, *addr)
	}

	zap.L().Info("Stored addresses",
		zap.Int("count", len(addresses)),
		zap.String("gateway_id", gatewayOf(params)))
	return addresses, nil
}

func (s *Service) insertAddress(ctx context.Context, p store.AddressParams) (*models.Address, error) {
	addr := &models.Address{}
	var orderId sql.NullString
	err := s.db.QueryRowContext(ctx, queryInsertAddress,
		uuid.New().String(), p.GatewayId, p.Xpub, p.DerivationIndex, p.Address).Scan(
		&addr.Id, &addr.GatewayId, &addr.Xpub, &addr.DerivationIndex, &addr.Address,
		&addr.Status, &orderId, &addr.CreatedAt,
	)
	if err != nil {
		zap.L().Error("Failed to insert address",
			zap.String("gateway_id", p.GatewayId),
			zap.Uint32("derivation_index", p.DerivationIndex),
			zap.Error(err))
		return nil, fmt.Errorf("unable to insert address at index %d: %w", p.DerivationIndex, err)
	}
	addr.OrderId = orderId.String
	return addr, nil
}

// AssignLowestAvailable pops the lowest-index available address of the
// gateway and binds it to the order in a single statement.
func (s *Service) AssignLowestAvailable(ctx context.Context, gatewayId, orderId string) (*models.Address, error) {
	addr := &models.Address{}
	var boundOrder sql.NullString
	err := s.db.QueryRowContext(ctx, queryAssignLowestAvailable, orderId, gatewayId).Scan(
		&addr.Id, &addr.GatewayId, &addr.Xpub, &addr.DerivationIndex, &addr.Address,
		&addr.Status, &boundOrder, &addr.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("gateway %s: %w", gatewayId, store.ErrNoAvailableAddress)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to assign address: %w", err)
	}
	addr.OrderId = boundOrder.String

	zap.L().Info("Assigned address to order",
		zap.String("order_id", orderId),
		zap.String("address", addr.Address),
		zap.Uint32("derivation_index", addr.DerivationIndex))
	return addr, nil
}

func (s *Service) GetAddressByOrder(ctx context.Context, orderId string) (*models.Address, error) {
	addr := &models.Address{}
	var boundOrder sql.NullString
	err := s.db.QueryRowContext(ctx, queryGetAddressByOrder, orderId).Scan(
		&addr.Id, &addr.GatewayId, &addr.Xpub, &addr.DerivationIndex, &addr.Address,
		&addr.Status, &boundOrder, &addr.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %s: %w", orderId, store.ErrAddressNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to query address by order: %w", err)
	}
	addr.OrderId = boundOrder.String
	return addr, nil
}

// ReleaseAddress returns an address to the available pool. Only called for
// addresses with no recorded on-chain use.
func (s *Service) ReleaseAddress(ctx context.Context, address string) error {
	result, err := s.db.ExecContext(ctx, queryReleaseAddress, address)
	if err != nil {
		return fmt.Errorf("unable to release address: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("address %s: %w", address, store.ErrAddressNotFound)
	}

	zap.L().Info("Released address back to pool", zap.String("address", address))
	return nil
}

// MarkAddressUsed permanently retires an address that has seen funds.
func (s *Service) MarkAddressUsed(ctx context.Context, address string) error {
	result, err := s.db.ExecContext(ctx, queryMarkAddressUsed, address)
	if err != nil {
		return fmt.Errorf("unable to mark address used: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("address %s: %w", address, store.ErrAddressNotFound)
	}
	return nil
}

func (s *Service) CountAvailable(ctx context.Context, gatewayId string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, queryCountAvailable, gatewayId).Scan(&count); err != nil {
		return 0, fmt.Errorf("unable to count available addresses: %w", err)
	}
	return count, nil
}

func gatewayOf(params []store.AddressParams) string {
	if len(params) == 0 {
		return ""
	}
	return params[0].GatewayId
}

// tail returns the last few characters of an xpub for log lines; full keys
// stay out of logs.
func tail(xpub string) string {
	if len(xpub) <= 8 {
		return xpub
	}
	return "..." + xpub[len(xpub)-8:]
}
