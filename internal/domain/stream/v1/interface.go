package streamv1

import (
	"context"

	marketv1 "github.com/felis2803/TradeForge-sub000/internal/domain/market/v1"
)

// Cursor addresses a position inside a market-data source. Only sources with
// stable per-record addressing (line-delimited formats) can guarantee exact
// resumability.
type Cursor struct {
	File        string `json:"file"`
	RecordIndex int64  `json:"recordIndex"`
}

// Record is one typed event read from a source, with its origin bookkeeping.
// Exactly one of Trade or Depth is set. Seq restarts per origin file; Entry is
// the originating file path, used only as the final deterministic tie-break.
type Record struct {
	Trade *marketv1.TradeEvent
	Depth *marketv1.DepthEvent
	Seq   int64
	Entry string
}

// Ts returns the record's event timestamp.
func (r *Record) Ts() marketv1.Timestamp {
	if r.Trade != nil {
		return r.Trade.Ts
	}
	return r.Depth.Ts
}

// Source produces an ordered sequence of typed events with cursor tracking.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=streamv1_mock
type Source interface {
	// Next returns the next record, or io.EOF when the source is exhausted.
	Next(ctx context.Context) (*Record, error)
	// CurrentCursor returns the position of the next unread record.
	CurrentCursor() Cursor
	// Close releases the source's resources.
	Close() error
}

// MergeState carries merge tie-break resumption state across a checkpoint.
type MergeState struct {
	NextSourceOnEqualTs marketv1.SourceID `json:"nextSourceOnEqualTs"`
}
