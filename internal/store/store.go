package store

import (
	"context"
	"errors"
	"time"

	"bitcoin-gateway-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across backend implementations.
var (
	ErrOrderNotFound          = errors.New("order not found")
	ErrAddressNotFound        = errors.New("address not found")
	ErrNoAvailableAddress     = errors.New("no available address in pool")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrDuplicateOrder         = errors.New("order already exists")
)

// AddressParams describes one derived address to persist as available.
type AddressParams struct {
	GatewayId       string
	Xpub            string
	DerivationIndex uint32
	Address         string
}

// CreateOrderParams captures the payment state fixed at order creation.
type CreateOrderParams struct {
	OrderId        string
	GatewayId      string
	Address        string
	ExpectedAmount int64
	FiatTotal      decimal.Decimal
	FiatCurrency   string
	ExchangeRate   decimal.Decimal
	ExpiresAt      time.Time
}

// GatewayStore is the persistence contract the host platform's data store
// must satisfy. The sqlite backend is the reference implementation.
type GatewayStore interface {
	// --- Address index allocation ---

	// ReserveIndexRange atomically reserves count consecutive derivation
	// indexes for the xpub and returns the first. Two concurrent callers
	// never receive overlapping ranges.
	ReserveIndexRange(ctx context.Context, xpub string, count uint32) (uint32, error)

	// --- Address pool ---

	StoreAddresses(ctx context.Context, params []AddressParams) ([]models.Address, error)
	// AssignLowestAvailable atomically binds the lowest-index available
	// address of the gateway to the order. ErrNoAvailableAddress when the
	// pool is empty.
	AssignLowestAvailable(ctx context.Context, gatewayId, orderId string) (*models.Address, error)
	GetAddressByOrder(ctx context.Context, orderId string) (*models.Address, error)
	ReleaseAddress(ctx context.Context, address string) error
	MarkAddressUsed(ctx context.Context, address string) error
	CountAvailable(ctx context.Context, gatewayId string) (int, error)

	// --- Orders ---

	CreateOrder(ctx context.Context, params CreateOrderParams) (*models.OrderPaymentState, error)
	GetOrder(ctx context.Context, orderId string) (*models.OrderPaymentState, error)
	// UpdateOrderStatus persists the outcome of one reconciliation step.
	UpdateOrderStatus(ctx context.Context, orderId string, status models.OrderStatus, confirmed, unconfirmed int64) error
	// ListOpenOrders returns orders still awaiting payment (unpaid or
	// partially paid), oldest first.
	ListOpenOrders(ctx context.Context) ([]models.OrderPaymentState, error)

	// --- Lifecycle ---
	Close()
}
