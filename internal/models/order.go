package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the payment status of an order.
//
// Transitions are forward only: unpaid -> partially_paid -> paid -> overpaid,
// plus unpaid -> expired (terminal). A later snapshot can raise but never
// lower the status once paid is reached.
type OrderStatus string

const (
	OrderUnpaid        OrderStatus = "unpaid"
	OrderPartiallyPaid OrderStatus = "partially_paid"
	OrderPaid          OrderStatus = "paid"
	OrderOverpaid      OrderStatus = "overpaid"
	OrderExpired       OrderStatus = "expired"
)

// Rank orders statuses along the forward-only progression. Expired is
// terminal and outside the progression.
func (s OrderStatus) Rank() int {
	switch s {
	case OrderUnpaid:
		return 0
	case OrderPartiallyPaid:
		return 1
	case OrderPaid:
		return 2
	case OrderOverpaid:
		return 3
	default:
		return -1
	}
}

// Terminal reports whether no further status transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderExpired
}

// OrderPaymentState is the reconciliation state for one order. The expected
// amount is fixed at order creation from the exchange rate at that time and
// never recomputed. Mutated only by the reconciliation step.
type OrderPaymentState struct {
	OrderId            string          `db:"order_id" json:"order_id"`
	GatewayId          string          `db:"gateway_id" json:"gateway_id"`
	Address            string          `db:"address" json:"address"`
	ExpectedAmount     int64           `db:"expected_amount" json:"expected_amount"`
	FiatTotal          decimal.Decimal `db:"fiat_total" json:"fiat_total"`
	FiatCurrency       string          `db:"fiat_currency" json:"fiat_currency"`
	ExchangeRate       decimal.Decimal `db:"exchange_rate" json:"exchange_rate"`
	Status             OrderStatus     `db:"status" json:"status"`
	ConfirmedBalance   int64           `db:"confirmed_balance" json:"confirmed_balance"`
	UnconfirmedBalance int64           `db:"unconfirmed_balance" json:"unconfirmed_balance"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
	ExpiresAt          time.Time       `db:"expires_at" json:"expires_at"`
}

// OrderDetails is the template-ready view of an order's payment instructions,
// handed to the host platform for checkout, email and thank-you rendering.
type OrderDetails struct {
	OrderId      string `json:"order_id"`
	GatewayId    string `json:"gateway_id"`
	Address      string `json:"address"`
	Status       string `json:"status"`
	BtcTotal     string `json:"btc_total"`
	BtcReceived  string `json:"btc_received"`
	BtcRemaining string `json:"btc_remaining"`
	FiatTotal    string `json:"fiat_total"`
	FiatCurrency string `json:"fiat_currency"`
	ExchangeRate string `json:"exchange_rate"`
	PaymentURI   string `json:"payment_uri"`
	ExpiresAt    string `json:"expires_at"`
}
