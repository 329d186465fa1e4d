// Package merge interleaves the trade and depth streams into one
// deterministic timeline. The ordering key, applied lexicographically:
// timestamp ascending; on tie, source priority (depth before trade by
// default); seq ascending within a source; originating entry path as the
// final tie-break. Identical inputs always produce identical output,
// regardless of I/O timing.
package merge

import (
	"context"
	"io"

	marketv1 "github.com/felis2803/TradeForge-sub000/internal/domain/market/v1"
	streamv1 "github.com/felis2803/TradeForge-sub000/internal/domain/stream/v1"
)

// Options configures tie-breaking between sources.
type Options struct {
	// PreferDepthOnEqualTs emits depth events before trade events that share
	// a timestamp.
	PreferDepthOnEqualTs bool
}

// DefaultOptions returns the default merge configuration.
func DefaultOptions() Options {
	return Options{PreferDepthOnEqualTs: true}
}

type head struct {
	record *streamv1.Record
	cursor streamv1.Cursor
	done   bool
}

// Stream is the merged timeline. Pull-based: Next returns events one at a
// time and io.EOF once both sources are exhausted.
type Stream struct {
	trades  streamv1.Source
	depth   streamv1.Source
	options Options

	tradeHead head
	depthHead head

	// resumeNext overrides the first equal-ts tie after restoring from a
	// checkpoint, then clears.
	resumeNext marketv1.SourceID
}

// NewStream creates a merged stream over a trade and a depth source. A
// non-nil resume state re-applies the tie-break decision a checkpoint was
// taken under.
func NewStream(trades, depth streamv1.Source, resume *streamv1.MergeState, options Options) *Stream {
	s := &Stream{
		trades:  trades,
		depth:   depth,
		options: options,
	}
	if resume != nil {
		s.resumeNext = resume.NextSourceOnEqualTs
	}
	return s
}

// Next returns the next merged event, or io.EOF at the end of the timeline.
func (s *Stream) Next(ctx context.Context) (marketv1.MergedEvent, error) {
	if err := s.fill(ctx); err != nil {
		return marketv1.MergedEvent{}, err
	}

	tradeReady := s.tradeHead.record != nil
	depthReady := s.depthHead.record != nil

	switch {
	case !tradeReady && !depthReady:
		return marketv1.MergedEvent{}, io.EOF
	case tradeReady && !depthReady:
		return s.emit(marketv1.SourceTrade), nil
	case depthReady && !tradeReady:
		return s.emit(marketv1.SourceDepth), nil
	}

	tradeTs := s.tradeHead.record.Ts()
	depthTs := s.depthHead.record.Ts()
	if tradeTs < depthTs {
		return s.emit(marketv1.SourceTrade), nil
	}
	if depthTs < tradeTs {
		return s.emit(marketv1.SourceDepth), nil
	}

	return s.emit(s.pickOnTie()), nil
}

// pickOnTie resolves an equal-timestamp tie: the checkpoint override wins
// once, then the configured source priority applies.
func (s *Stream) pickOnTie() marketv1.SourceID {
	if s.resumeNext != "" {
		picked := s.resumeNext
		s.resumeNext = ""
		return picked
	}
	if s.options.PreferDepthOnEqualTs {
		return marketv1.SourceDepth
	}
	return marketv1.SourceTrade
}

// fill peeks one record from each source that has no pending head. The
// cursor is captured before the read so Cursors() always addresses the
// peeked-but-unemitted record.
func (s *Stream) fill(ctx context.Context) error {
	if s.tradeHead.record == nil && !s.tradeHead.done {
		if err := readHead(ctx, s.trades, &s.tradeHead); err != nil {
			return err
		}
	}
	if s.depthHead.record == nil && !s.depthHead.done {
		if err := readHead(ctx, s.depth, &s.depthHead); err != nil {
			return err
		}
	}
	return nil
}

func readHead(ctx context.Context, source streamv1.Source, h *head) error {
	h.cursor = source.CurrentCursor()
	record, err := source.Next(ctx)
	if err == io.EOF {
		h.done = true
		return nil
	}
	if err != nil {
		return err
	}
	h.record = record
	return nil
}

func (s *Stream) emit(source marketv1.SourceID) marketv1.MergedEvent {
	var h *head
	if source == marketv1.SourceTrade {
		h = &s.tradeHead
	} else {
		h = &s.depthHead
	}

	record := h.record
	h.record = nil

	event := marketv1.MergedEvent{
		Ts:     record.Ts(),
		Source: source,
		Seq:    record.Seq,
		Entry:  record.Entry,
	}
	if record.Trade != nil {
		event.Kind = marketv1.EventKindTrade
		event.Trade = record.Trade
	} else {
		event.Kind = marketv1.EventKindDepth
		event.Depth = record.Depth
	}
	return event
}

// Cursors returns the resumption cursor of each source, accounting for any
// peeked head that has not been emitted yet.
func (s *Stream) Cursors() map[marketv1.SourceID]streamv1.Cursor {
	return map[marketv1.SourceID]streamv1.Cursor{
		marketv1.SourceTrade: s.cursorOf(s.trades, s.tradeHead),
		marketv1.SourceDepth: s.cursorOf(s.depth, s.depthHead),
	}
}

func (s *Stream) cursorOf(source streamv1.Source, h head) streamv1.Cursor {
	if h.record != nil {
		return h.cursor
	}
	return source.CurrentCursor()
}

// State reports the tie-break decision a resumed stream must re-apply: the
// source that would be emitted next if both pending heads share a timestamp.
func (s *Stream) State() streamv1.MergeState {
	if s.resumeNext != "" {
		return streamv1.MergeState{NextSourceOnEqualTs: s.resumeNext}
	}
	if s.tradeHead.record != nil && s.depthHead.record != nil &&
		s.tradeHead.record.Ts() == s.depthHead.record.Ts() {
		if s.options.PreferDepthOnEqualTs {
			return streamv1.MergeState{NextSourceOnEqualTs: marketv1.SourceDepth}
		}
		return streamv1.MergeState{NextSourceOnEqualTs: marketv1.SourceTrade}
	}
	return streamv1.MergeState{}
}

// Close closes both underlying sources.
func (s *Stream) Close() error {
	tradeErr := s.trades.Close()
	depthErr := s.depth.Close()
	if tradeErr != nil {
		return tradeErr
	}
	return depthErr
}
