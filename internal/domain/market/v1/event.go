package marketv1

import "github.com/felis2803/TradeForge-sub000/pkg/numeric"

// Timestamp represents simulated time in Unix milliseconds.
type Timestamp int64

// EventKind discriminates the merged event payload.
type EventKind string

const (
	// EventKindTrade represents a trade print.
	EventKindTrade EventKind = "trade"
	// EventKindDepth represents an order-book depth diff.
	EventKindDepth EventKind = "depth"
)

// SourceID identifies the origin stream of a merged event.
type SourceID string

const (
	// SourceTrade identifies the trade stream.
	SourceTrade SourceID = "trade"
	// SourceDepth identifies the depth stream.
	SourceDepth SourceID = "depth"
)

// TradeEvent represents a single trade print from market data. Its side is the
// aggressor label recorded by the venue.
type TradeEvent struct {
	Ts    Timestamp         `json:"ts"`
	Price numeric.ScaledInt `json:"price"`
	Qty   numeric.ScaledInt `json:"qty"`
	Side  Side              `json:"side"`
	Ref   string            `json:"ref,omitempty"`
}

// DepthEvent represents a single order-book level diff. Qty at or below zero
// removes the level.
type DepthEvent struct {
	Ts    Timestamp         `json:"ts"`
	Side  DepthSide         `json:"side"`
	Price numeric.ScaledInt `json:"price"`
	Qty   numeric.ScaledInt `json:"qty"`
}

// MergedEvent is one entry of the deterministic merged timeline. Exactly one
// of Trade or Depth is set, selected by Kind.
type MergedEvent struct {
	Kind   EventKind   `json:"kind"`
	Ts     Timestamp   `json:"ts"`
	Trade  *TradeEvent `json:"trade,omitempty"`
	Depth  *DepthEvent `json:"depth,omitempty"`
	Source SourceID    `json:"source"`
	Seq    int64       `json:"seq"`
	Entry  string      `json:"entry"`
}
