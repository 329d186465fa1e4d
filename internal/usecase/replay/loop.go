package replay

import (
	"context"
	"io"
	"time"

	marketv1 "github.com/felis2803/TradeForge-sub000/internal/domain/market/v1"
	streamv1 "github.com/felis2803/TradeForge-sub000/internal/domain/stream/v1"
	"github.com/felis2803/TradeForge-sub000/internal/usecase/merge"
	"github.com/felis2803/TradeForge-sub000/pkg/errors"
	"github.com/felis2803/TradeForge-sub000/pkg/logger"
)

// StopReason tells why the loop finished.
type StopReason string

const (
	// StopReasonEndOfStream means both sources were exhausted.
	StopReasonEndOfStream StopReason = "end_of_stream"
	// StopReasonMaxEvents means the event budget ran out.
	StopReasonMaxEvents StopReason = "max_events"
	// StopReasonMaxSimTime means simulated time passed the configured bound.
	StopReasonMaxSimTime StopReason = "max_sim_time"
	// StopReasonMaxWallTime means the wall-time budget ran out.
	StopReasonMaxWallTime StopReason = "max_wall_time"
	// StopReasonCanceled means the context was canceled.
	StopReasonCanceled StopReason = "canceled"
)

// Limits bounds a replay run. Zero values mean unbounded. MaxSimTime is
// simulated milliseconds elapsed since the first delivered event.
type Limits struct {
	MaxEvents   int64
	MaxSimTime  marketv1.Timestamp
	MaxWallTime time.Duration
}

// Position is the resumable stream position after an event was handed off:
// source cursors plus the tie-break state of the merge.
type Position struct {
	Cursors map[marketv1.SourceID]streamv1.Cursor
	Merge   streamv1.MergeState
}

// Hooks receives the loop's callbacks. OnEvent is required; the rest are
// optional.
type Hooks struct {
	// OnEvent hands one merged event downstream. An error aborts the run.
	OnEvent func(ctx context.Context, event marketv1.MergedEvent) error
	// OnProgress fires at the configured interval with the running totals.
	OnProgress func(events int64, simTs marketv1.Timestamp)
	// OnCheckpoint fires when a checkpoint is due, with the position right
	// after the last delivered event.
	OnCheckpoint func(ctx context.Context, position Position) error
}

// Options tunes the loop's reporting and checkpoint cadence.
type Options struct {
	// ProgressInterval spaces OnProgress calls in events. Zero disables.
	ProgressInterval int64
	// CheckpointEvery spaces OnCheckpoint calls in events. Zero disables.
	CheckpointEvery int64
	// CheckpointInterval spaces OnCheckpoint calls in wall time. Zero
	// disables. Both cadences may be active at once.
	CheckpointInterval time.Duration
}

// DefaultOptions returns the default loop cadence.
func DefaultOptions() Options {
	return Options{ProgressInterval: 100_000}
}

// Result summarizes a finished run.
type Result struct {
	Events   int64
	LastTs   marketv1.Timestamp
	Reason   StopReason
	Duration time.Duration
}

// Loop pulls the merged stream, paces it with the clock and feeds the hooks.
type Loop struct {
	stream  *merge.Stream
	clock   Clock
	limits  Limits
	options Options
	logger  *logger.Logger
}

// NewLoop creates a replay loop over the merged stream.
func NewLoop(stream *merge.Stream, clock Clock, limits Limits, options Options, log *logger.Logger) *Loop {
	return &Loop{
		stream:  stream,
		clock:   clock,
		limits:  limits,
		options: options,
		logger:  log,
	}
}

// Run replays the stream until exhaustion, a limit or cancellation. The
// returned Result is valid for every non-error outcome, limits included.
func (l *Loop) Run(ctx context.Context, hooks Hooks) (Result, error) {
	started := time.Now()
	var events int64
	var firstTs marketv1.Timestamp
	var lastTs marketv1.Timestamp
	lastCheckpoint := started

	finish := func(reason StopReason) (Result, error) {
		result := Result{
			Events:   events,
			LastTs:   lastTs,
			Reason:   reason,
			Duration: time.Since(started),
		}
		l.logger.InfoContext(ctx, "replay finished",
			logger.Field{Key: "events", Value: result.Events},
			logger.Field{Key: "lastTs", Value: int64(result.LastTs)},
			logger.Field{Key: "reason", Value: string(result.Reason)},
			logger.Field{Key: "duration", Value: result.Duration.String()},
		)
		return result, nil
	}

	for {
		if ctx.Err() != nil {
			return finish(StopReasonCanceled)
		}
		if l.limits.MaxEvents > 0 && events >= l.limits.MaxEvents {
			return finish(StopReasonMaxEvents)
		}
		if l.limits.MaxWallTime > 0 && time.Since(started) >= l.limits.MaxWallTime {
			return finish(StopReasonMaxWallTime)
		}

		event, err := l.stream.Next(ctx)
		if err == io.EOF {
			return finish(StopReasonEndOfStream)
		}
		if err != nil {
			if ctx.Err() != nil {
				return finish(StopReasonCanceled)
			}
			return Result{}, errors.Wrap(err, errors.StreamSourceError, "read merged stream")
		}

		// Simulated time is counted from the first delivered event, so the
		// limit is an elapsed span, not an absolute timestamp bound.
		if l.limits.MaxSimTime > 0 && events > 0 && event.Ts-firstTs > l.limits.MaxSimTime {
			return finish(StopReasonMaxSimTime)
		}

		if err := l.clock.TickUntil(ctx, event.Ts); err != nil {
			return finish(StopReasonCanceled)
		}

		if err := hooks.OnEvent(ctx, event); err != nil {
			return Result{}, err
		}
		if events == 0 {
			firstTs = event.Ts
		}
		events++
		lastTs = event.Ts

		if l.options.ProgressInterval > 0 && events%l.options.ProgressInterval == 0 && hooks.OnProgress != nil {
			hooks.OnProgress(events, lastTs)
		}

		due := l.options.CheckpointEvery > 0 && events%l.options.CheckpointEvery == 0
		if !due && l.options.CheckpointInterval > 0 && time.Since(lastCheckpoint) >= l.options.CheckpointInterval {
			due = true
		}
		if due && hooks.OnCheckpoint != nil {
			position := Position{Cursors: l.stream.Cursors(), Merge: l.stream.State()}
			if err := hooks.OnCheckpoint(ctx, position); err != nil {
				return Result{}, err
			}
			lastCheckpoint = time.Now()
		}
	}
}
