package reportv1

import (
	ledgerv1 "github.com/felis2803/TradeForge-sub000/internal/domain/ledger/v1"
	marketv1 "github.com/felis2803/TradeForge-sub000/internal/domain/market/v1"
	"github.com/felis2803/TradeForge-sub000/pkg/numeric"
)

// Kind discriminates execution report payloads.
type Kind string

const (
	// KindFill reports a single fill.
	KindFill Kind = "FILL"
	// KindOrderUpdated reports a terminal order status change.
	KindOrderUpdated Kind = "ORDER_UPDATED"
	// KindEnd reports the completion of the replay stream.
	KindEnd Kind = "END"
)

// OrderPatch carries the updated order fields of an ORDER_UPDATED report.
type OrderPatch struct {
	Status          marketv1.OrderStatus `json:"status"`
	ExecutedQty     numeric.ScaledInt    `json:"executedQty"`
	CumulativeQuote numeric.ScaledInt    `json:"cumulativeQuote"`
	Fees            ledgerv1.Fees        `json:"fees"`
	TsUpdated       marketv1.Timestamp   `json:"tsUpdated"`
}

// ExecutionReport is one record of the execution report stream. The payload
// pointer matching Kind is set; the others are nil.
type ExecutionReport struct {
	Ts      marketv1.Timestamp `json:"ts"`
	Kind    Kind               `json:"kind"`
	OrderID ledgerv1.OrderID   `json:"orderId,omitempty"`
	Fill    *ledgerv1.Fill     `json:"fill,omitempty"`
	Patch   *OrderPatch        `json:"patch,omitempty"`
}
