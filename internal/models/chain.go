package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AddressStatus tracks an address through the pool lifecycle.
type AddressStatus string

const (
	AddressAvailable AddressStatus = "available"
	AddressAssigned  AddressStatus = "assigned"
	AddressUsed      AddressStatus = "used"
)

// Address is a receive address derived from a gateway's xpub.
// The (xpub, derivation_index) pair is unique; the derived string is immutable.
type Address struct {
	Id              string        `db:"id" json:"id"`
	GatewayId       string        `db:"gateway_id" json:"gateway_id"`
	Xpub            string        `db:"xpub" json:"-"`
	DerivationIndex uint32        `db:"derivation_index" json:"derivation_index"`
	Address         string        `db:"address" json:"address"`
	Status          AddressStatus `db:"status" json:"status"`
	OrderId         string        `db:"order_id" json:"order_id,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
}

// Transaction is a single receive observed on-chain. Amount is in satoshis,
// positive for funds received. Immutable once returned from the client.
type Transaction struct {
	TxId          string
	Amount        int64
	Confirmations int64
	Time          time.Time
}

// BalanceSnapshot is the result of querying an address. Created fresh on
// every query and superseded by the next one, never mutated.
type BalanceSnapshot struct {
	ConfirmedBalance   int64
	UnconfirmedBalance int64
	Transactions       []Transaction
}

// Total returns confirmed plus unconfirmed satoshis.
func (s *BalanceSnapshot) Total() int64 {
	return s.ConfirmedBalance + s.UnconfirmedBalance
}

// ExchangeRate is a point-in-time spot price, fiat units per 1 BTC.
type ExchangeRate struct {
	Currency  string
	Rate      decimal.Decimal
	FetchedAt time.Time
}
