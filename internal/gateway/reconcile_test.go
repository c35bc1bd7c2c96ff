package gateway

import (
	"context"
	"errors"
	"testing"

	"bitcoin-gateway-go/internal/config"
	"bitcoin-gateway-go/internal/models"
	"bitcoin-gateway-go/internal/store"
)

// expiredGatewayEnv builds an environment whose orders are already past
// their payment window at creation time.
func expiredGatewayEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnv(t, config.GatewayConfig{
		Id:       "shop-main",
		Xpub:     testXpub,
		Network:  "mainnet",
		Currency: "usd",
		Expiry:   "-1h",
	})
}

func TestReconcile_NoFundsStaysUnpaid(t *testing.T) {
	env := newTestEnv(t)
	env.createOrder(t, "order-1")

	order, err := env.service.Reconcile(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if order.Status != models.OrderUnpaid {
		t.Errorf("Expected unpaid, got %s", order.Status)
	}
}

func TestReconcile_UnconfirmedOnlyIsPartial(t *testing.T) {
	env := newTestEnv(t)
	created := env.createOrder(t, "order-1")
	env.chain.setBalance(created.Address, 0, 100000)

	order, err := env.service.Reconcile(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if order.Status != models.OrderPartiallyPaid {
		t.Errorf("Expected partially_paid for unconfirmed funds, got %s", order.Status)
	}
	if order.UnconfirmedBalance != 100000 {
		t.Errorf("Expected unconfirmed 100000, got %d", order.UnconfirmedBalance)
	}
}

func TestReconcile_ConfirmedShortfallIsPartial(t *testing.T) {
	env := newTestEnv(t)
	created := env.createOrder(t, "order-1")
	env.chain.setBalance(created.Address, 50000, 60000)

	order, err := env.service.Reconcile(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	// Unconfirmed funds never settle an order, even when the total covers it.
	if order.Status != models.OrderPartiallyPaid {
		t.Errorf("Expected partially_paid, got %s", order.Status)
	}
}

func TestReconcile_ExactConfirmedIsPaid(t *testing.T) {
	env := newTestEnv(t)
	created := env.createOrder(t, "order-1")
	env.chain.setBalance(created.Address, 100000, 0)

	order, err := env.service.Reconcile(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if order.Status != models.OrderPaid {
		t.Errorf("Expected paid, got %s", order.Status)
	}

	addr, err := env.store.GetAddressByOrder(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("GetAddressByOrder failed: %v", err)
	}
	if addr.Status != models.AddressUsed {
		t.Errorf("Expected paid order's address marked used, got %s", addr.Status)
	}
}

func TestReconcile_OverpaidAboveExpected(t *testing.T) {
	env := newTestEnv(t)
	created := env.createOrder(t, "order-1")
	env.chain.setBalance(created.Address, 150000, 0)

	order, err := env.service.Reconcile(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if order.Status != models.OrderOverpaid {
		t.Errorf("Expected overpaid, got %s", order.Status)
	}
}

func TestReconcile_StatusNeverRegresses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := env.createOrder(t, "order-1")

	env.chain.setBalance(created.Address, 100000, 0)
	if _, err := env.service.Reconcile(ctx, "order-1"); err != nil {
		t.Fatalf("First reconcile failed: %v", err)
	}

	// A later snapshot showing less (reorg, explorer lag) must not demote.
	env.chain.setBalance(created.Address, 0, 0)
	order, err := env.service.Reconcile(ctx, "order-1")
	if err != nil {
		t.Fatalf("Second reconcile failed: %v", err)
	}
	if order.Status != models.OrderPaid {
		t.Errorf("Expected status to hold at paid, got %s", order.Status)
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := env.createOrder(t, "order-1")
	env.chain.setBalance(created.Address, 100000, 0)

	first, err := env.service.Reconcile(ctx, "order-1")
	if err != nil {
		t.Fatalf("First reconcile failed: %v", err)
	}
	second, err := env.service.Reconcile(ctx, "order-1")
	if err != nil {
		t.Fatalf("Second reconcile failed: %v", err)
	}

	if first.Status != second.Status || second.ConfirmedBalance != 100000 {
		t.Errorf("Repeated reconcile changed outcome: %s vs %s", first.Status, second.Status)
	}
}

func TestReconcile_ExpiresUnpaidOrder(t *testing.T) {
	env := expiredGatewayEnv(t)
	ctx := context.Background()
	env.createOrder(t, "order-1")

	order, err := env.service.Reconcile(ctx, "order-1")
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if order.Status != models.OrderExpired {
		t.Errorf("Expected expired, got %s", order.Status)
	}

	// The untouched address goes back into the pool.
	if _, err := env.store.GetAddressByOrder(ctx, "order-1"); !errors.Is(err, store.ErrAddressNotFound) {
		t.Errorf("Expected address released from order, got %v", err)
	}
	count, err := env.store.CountAvailable(ctx, "shop-main")
	if err != nil {
		t.Fatalf("CountAvailable failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected released address back in pool, got %d available", count)
	}
}

func TestReconcile_PartialPaymentBlocksExpiry(t *testing.T) {
	env := expiredGatewayEnv(t)
	created := env.createOrder(t, "order-1")
	env.chain.setBalance(created.Address, 0, 1000)

	order, err := env.service.Reconcile(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	// Funds in flight keep the order open past its window.
	if order.Status != models.OrderPartiallyPaid {
		t.Errorf("Expected partially_paid, got %s", order.Status)
	}
}

func TestReconcile_LatePaymentIsAnomaly(t *testing.T) {
	env := expiredGatewayEnv(t)
	ctx := context.Background()
	created := env.createOrder(t, "order-1")

	if _, err := env.service.Reconcile(ctx, "order-1"); err != nil {
		t.Fatalf("Expiring reconcile failed: %v", err)
	}

	env.chain.setBalance(created.Address, 100000, 0)
	_, err := env.service.Reconcile(ctx, "order-1")
	if !errors.Is(err, ErrLatePayment) {
		t.Fatalf("Expected ErrLatePayment, got %v", err)
	}

	// The order stays expired; late funds never flip it to paid.
	order, err := env.service.Order(ctx, "order-1")
	if err != nil {
		t.Fatalf("Order lookup failed: %v", err)
	}
	if order.Status != models.OrderExpired {
		t.Errorf("Expected order to stay expired, got %s", order.Status)
	}
}

func TestReconcile_UnknownOrder(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.Reconcile(context.Background(), "order-unknown")
	if !errors.Is(err, store.ErrOrderNotFound) {
		t.Fatalf("Expected ErrOrderNotFound, got %v", err)
	}
}

func TestReconcile_SnapshotErrorLeavesStateUnchanged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createOrder(t, "order-1")

	env.chain.err = errors.New("explorer down")
	if _, err := env.service.Reconcile(ctx, "order-1"); err == nil {
		t.Fatal("Expected snapshot error to propagate")
	}
	env.chain.err = nil

	order, err := env.service.Order(ctx, "order-1")
	if err != nil {
		t.Fatalf("Order lookup failed: %v", err)
	}
	if order.Status != models.OrderUnpaid || order.ConfirmedBalance != 0 {
		t.Errorf("Expected state unchanged after failed reconcile, got %+v", order)
	}
}
