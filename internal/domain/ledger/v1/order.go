package ledgerv1

import (
	marketv1 "github.com/felis2803/TradeForge-sub000/internal/domain/market/v1"
	"github.com/felis2803/TradeForge-sub000/pkg/numeric"
)

// OrderID identifies an order. Ledger-assigned, monotonic.
type OrderID int64

// Fill represents one execution against an order.
type Fill struct {
	Ts        marketv1.Timestamp `json:"ts"`
	OrderID   OrderID            `json:"orderId"`
	Price     numeric.ScaledInt  `json:"price"`
	Qty       numeric.ScaledInt  `json:"qty"`
	Side      marketv1.Side      `json:"side"`
	Liquidity marketv1.Liquidity `json:"liquidity"`
	TradeRef  string             `json:"tradeRef"`
}

// Reservation tracks funds locked for an order. Remaining decreases by the
// real cost of every fill and never goes below zero.
type Reservation struct {
	Currency  string            `json:"currency"`
	Total     numeric.ScaledInt `json:"total"`
	Remaining numeric.ScaledInt `json:"remaining"`
}

// Fees accumulates fee amounts split by liquidity role, in quote currency.
type Fees struct {
	Maker numeric.ScaledInt `json:"maker"`
	Taker numeric.ScaledInt `json:"taker"`
}

// Order represents an order's full ledger record.
type Order struct {
	ID               OrderID                    `json:"id"`
	AccountID        AccountID                  `json:"accountId"`
	Symbol           string                     `json:"symbol"`
	Side             marketv1.Side              `json:"side"`
	Type             marketv1.OrderType         `json:"type"`
	TimeInForce      marketv1.TimeInForce       `json:"timeInForce"`
	Qty              numeric.ScaledInt          `json:"qty"`
	Price            *numeric.ScaledInt         `json:"price,omitempty"`
	TriggerPrice     *numeric.ScaledInt         `json:"triggerPrice,omitempty"`
	TriggerDirection *marketv1.TriggerDirection `json:"triggerDirection,omitempty"`
	Status           marketv1.OrderStatus       `json:"status"`
	ExecutedQty      numeric.ScaledInt          `json:"executedQty"`
	CumulativeQuote  numeric.ScaledInt          `json:"cumulativeQuote"`
	Fees             Fees                       `json:"fees"`
	Fills            []Fill                     `json:"fills"`
	Reserved         Reservation                `json:"reserved"`
	Activated        bool                       `json:"activated"`
	CreatedAt        marketv1.Timestamp         `json:"createdAt"`
	UpdatedAt        marketv1.Timestamp         `json:"updatedAt"`
}

// Remaining returns the unexecuted quantity.
func (o *Order) Remaining() numeric.ScaledInt {
	return o.Qty.Sub(o.ExecutedQty)
}

// IsTerminal reports whether the order admits no further transitions.
func (o *Order) IsTerminal() bool {
	return o.Status.IsTerminal()
}

// Matchable reports whether the order participates in direct matching.
// Stop orders stay out of the pool until activation.
func (o *Order) Matchable() bool {
	if o.IsTerminal() {
		return false
	}
	if o.Type.IsStop() && !o.Activated {
		return false
	}
	return true
}

// EffectiveType returns the type the order matches as, accounting for
// stop activation.
func (o *Order) EffectiveType() marketv1.OrderType {
	if o.Type.IsStop() && o.Activated {
		return o.Type.Activated()
	}
	return o.Type
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	clone := *o
	if o.Price != nil {
		p := o.Price.Clone()
		clone.Price = &p
	}
	if o.TriggerPrice != nil {
		p := o.TriggerPrice.Clone()
		clone.TriggerPrice = &p
	}
	if o.TriggerDirection != nil {
		d := *o.TriggerDirection
		clone.TriggerDirection = &d
	}
	clone.Qty = o.Qty.Clone()
	clone.ExecutedQty = o.ExecutedQty.Clone()
	clone.CumulativeQuote = o.CumulativeQuote.Clone()
	clone.Fees = Fees{Maker: o.Fees.Maker.Clone(), Taker: o.Fees.Taker.Clone()}
	clone.Reserved = Reservation{
		Currency:  o.Reserved.Currency,
		Total:     o.Reserved.Total.Clone(),
		Remaining: o.Reserved.Remaining.Clone(),
	}
	clone.Fills = make([]Fill, len(o.Fills))
	copy(clone.Fills, o.Fills)
	return &clone
}

// PlaceOrderRequest carries order placement parameters. Numeric fields come
// in as decimal strings and are parsed against the symbol's scales.
type PlaceOrderRequest struct {
	AccountID        AccountID
	Symbol           string
	Side             marketv1.Side
	Type             marketv1.OrderType
	TimeInForce      marketv1.TimeInForce
	Qty              string
	Price            string
	TriggerPrice     string
	TriggerDirection marketv1.TriggerDirection
}
