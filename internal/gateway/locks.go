package gateway

import "sync"

// orderLocks hands out one mutex per order id so reconciliation and
// assignment are at-most-one-in-flight per order. Locks are never removed;
// the set of in-flight orders is small and bounded by open orders.
type orderLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newOrderLocks() *orderLocks {
	return &orderLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the order's mutex and returns the unlock func.
func (l *orderLocks) Lock(orderId string) func() {
	l.mu.Lock()
	m, ok := l.locks[orderId]
	if !ok {
		m = &sync.Mutex{}
		l.locks[orderId] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
