package gateway

import (
	"context"
	"errors"
	"fmt"

	"bitcoin-gateway-go/internal/models"
	"bitcoin-gateway-go/internal/store"
	"bitcoin-gateway-go/internal/wallet"

	"go.uber.org/zap"
)

// Extra reservation rounds tolerated for hdkeychain's invalid-child case
// before giving up. In practice zero extra rounds are ever needed.
const maxDerivationRounds = 3

// GenerateNewAddresses reserves the next count unused indexes for the
// gateway's xpub and persists the derived addresses as available. Concurrent
// invocations never emit the same index twice; an index that cannot produce
// a child key is burned, never reissued.
func (s *Service) GenerateNewAddresses(ctx context.Context, gatewayId string, count int) ([]models.Address, error) {
	gw, err := s.gateway(gatewayId)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", count)
	}

	params := make([]store.AddressParams, 0, count)
	remaining := count
	for round := 0; remaining > 0; round++ {
		if round > maxDerivationRounds {
			return nil, fmt.Errorf("gateway %s: derivation kept producing invalid children: %w", gatewayId, wallet.ErrDerivation)
		}

		start, err := s.store.ReserveIndexRange(ctx, gw.cfg.Xpub, uint32(remaining))
		if err != nil {
			return nil, err
		}

		reserved := remaining
		remaining = 0
		for i := 0; i < reserved; i++ {
			index := start + uint32(i)
			address, err := gw.deriver.Derive(index)
			if err != nil {
				if errors.Is(err, wallet.ErrInvalidChild) {
					zap.L().Warn("Burning underivable index",
						zap.String("gateway_id", gatewayId),
						zap.Uint32("derivation_index", index))
					remaining++
					continue
				}
				return nil, err
			}
			params = append(params, store.AddressParams{
				GatewayId:       gatewayId,
				Xpub:            gw.cfg.Xpub,
				DerivationIndex: index,
				Address:         address,
			})
		}
	}

	addresses, err := s.store.StoreAddresses(ctx, params)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Generated new addresses",
		zap.String("gateway_id", gatewayId),
		zap.Int("count", len(addresses)))
	return addresses, nil
}

// AssignAddressToOrder binds the lowest-index available address to the
// order, generating one synchronously when the pool is empty. Idempotent: an
// order that already has an address gets the same one back without consuming
// another.
func (s *Service) AssignAddressToOrder(ctx context.Context, gatewayId, orderId string) (*models.Address, error) {
	if _, err := s.gateway(gatewayId); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(orderId)
	defer unlock()

	return s.assignLocked(ctx, gatewayId, orderId)
}

// assignLocked is the assignment body; the caller holds the order lock.
func (s *Service) assignLocked(ctx context.Context, gatewayId, orderId string) (*models.Address, error) {
	existing, err := s.store.GetAddressByOrder(ctx, orderId)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrAddressNotFound) {
		return nil, err
	}

	addr, err := s.store.AssignLowestAvailable(ctx, gatewayId, orderId)
	if errors.Is(err, store.ErrNoAvailableAddress) {
		zap.L().Info("Address pool empty, generating synchronously",
			zap.String("gateway_id", gatewayId),
			zap.String("order_id", orderId))
		if _, genErr := s.GenerateNewAddresses(ctx, gatewayId, 1); genErr != nil {
			return nil, genErr
		}
		addr, err = s.store.AssignLowestAvailable(ctx, gatewayId, orderId)
	}
	if err != nil {
		return nil, err
	}

	return addr, nil
}
