package replay

import (
	"context"
	"testing"
	"time"

	marketv1 "github.com/felis2803/TradeForge-sub000/internal/domain/market/v1"
	streamv1 "github.com/felis2803/TradeForge-sub000/internal/domain/stream/v1"
	"github.com/felis2803/TradeForge-sub000/internal/usecase/merge"
	"github.com/felis2803/TradeForge-sub000/internal/usecase/stream"
	"github.com/felis2803/TradeForge-sub000/pkg/logger"
	"github.com/felis2803/TradeForge-sub000/pkg/numeric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tradeRecord(ts int64) *streamv1.Record {
	return &streamv1.Record{Trade: &marketv1.TradeEvent{
		Ts:    marketv1.Timestamp(ts),
		Price: numeric.MustParse("100", 2),
		Qty:   numeric.MustParse("1", 3),
		Side:  marketv1.SideBuy,
	}}
}

func depthRecord(ts int64) *streamv1.Record {
	return &streamv1.Record{Depth: &marketv1.DepthEvent{
		Ts:    marketv1.Timestamp(ts),
		Side:  marketv1.DepthSideBid,
		Price: numeric.MustParse("100", 2),
		Qty:   numeric.MustParse("1", 3),
	}}
}

func newLoopFixture(t *testing.T, trades, depth []*streamv1.Record, limits Limits, options Options) *Loop {
	t.Helper()
	log, err := logger.NewLogger()
	require.NoError(t, err)

	merged := merge.NewStream(
		stream.NewMemorySource("trades", trades),
		stream.NewMemorySource("depth", depth),
		nil,
		merge.DefaultOptions(),
	)
	return NewLoop(merged, NewLogicalClock(), limits, options, log)
}

func TestLoop_DrainsStreamInOrder(t *testing.T) {
	loop := newLoopFixture(t,
		[]*streamv1.Record{tradeRecord(100), tradeRecord(300)},
		[]*streamv1.Record{depthRecord(200), depthRecord(400)},
		Limits{}, Options{},
	)

	var seen []marketv1.Timestamp
	result, err := loop.Run(context.Background(), Hooks{
		OnEvent: func(_ context.Context, event marketv1.MergedEvent) error {
			seen = append(seen, event.Ts)
			return nil
		},
	})
	require.NoError(t, err)

	assert.Equal(t, StopReasonEndOfStream, result.Reason)
	assert.Equal(t, int64(4), result.Events)
	assert.Equal(t, marketv1.Timestamp(400), result.LastTs)
	assert.Equal(t, []marketv1.Timestamp{100, 200, 300, 400}, seen)
}

func TestLoop_MaxEventsStopsEarly(t *testing.T) {
	loop := newLoopFixture(t,
		[]*streamv1.Record{tradeRecord(100), tradeRecord(200), tradeRecord(300)},
		nil,
		Limits{MaxEvents: 2}, Options{},
	)

	result, err := loop.Run(context.Background(), Hooks{
		OnEvent: func(context.Context, marketv1.MergedEvent) error { return nil },
	})
	require.NoError(t, err)

	assert.Equal(t, StopReasonMaxEvents, result.Reason)
	assert.Equal(t, int64(2), result.Events)
}

func TestLoop_MaxSimTimeStopsBeforeDelivering(t *testing.T) {
	// Epoch-millisecond timestamps: the limit measures time elapsed since
	// the first event, not the absolute timestamp.
	const base = int64(1_700_000_000_000)
	var seen []marketv1.Timestamp
	loop := newLoopFixture(t,
		[]*streamv1.Record{tradeRecord(base), tradeRecord(base + 1000), tradeRecord(base + 120_000)},
		nil,
		Limits{MaxSimTime: 60_000}, Options{},
	)

	result, err := loop.Run(context.Background(), Hooks{
		OnEvent: func(_ context.Context, event marketv1.MergedEvent) error {
			seen = append(seen, event.Ts)
			return nil
		},
	})
	require.NoError(t, err)

	assert.Equal(t, StopReasonMaxSimTime, result.Reason)
	assert.Equal(t, int64(2), result.Events)
	assert.Equal(t, []marketv1.Timestamp{
		marketv1.Timestamp(base), marketv1.Timestamp(base + 1000),
	}, seen)
	assert.Equal(t, marketv1.Timestamp(base+1000), result.LastTs)
}

func TestLoop_CanceledContext(t *testing.T) {
	loop := newLoopFixture(t, []*streamv1.Record{tradeRecord(100)}, nil, Limits{}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := loop.Run(ctx, Hooks{
		OnEvent: func(context.Context, marketv1.MergedEvent) error { return nil },
	})
	require.NoError(t, err)
	assert.Equal(t, StopReasonCanceled, result.Reason)
	assert.Equal(t, int64(0), result.Events)
}

func TestLoop_CheckpointCadenceByEvents(t *testing.T) {
	loop := newLoopFixture(t,
		[]*streamv1.Record{tradeRecord(100), tradeRecord(200), tradeRecord(300), tradeRecord(400)},
		nil,
		Limits{}, Options{CheckpointEvery: 2},
	)

	var positions []Position
	result, err := loop.Run(context.Background(), Hooks{
		OnEvent: func(context.Context, marketv1.MergedEvent) error { return nil },
		OnCheckpoint: func(_ context.Context, position Position) error {
			positions = append(positions, position)
			return nil
		},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(4), result.Events)
	require.Len(t, positions, 2)
	// After the 2nd event the trade cursor points at record index 2.
	assert.Equal(t, int64(2), positions[0].Cursors[marketv1.SourceTrade].RecordIndex)
	assert.Equal(t, int64(4), positions[1].Cursors[marketv1.SourceTrade].RecordIndex)
}

func TestLoop_ProgressCadence(t *testing.T) {
	loop := newLoopFixture(t,
		[]*streamv1.Record{tradeRecord(100), tradeRecord(200), tradeRecord(300)},
		nil,
		Limits{}, Options{ProgressInterval: 1},
	)

	var counts []int64
	_, err := loop.Run(context.Background(), Hooks{
		OnEvent:    func(context.Context, marketv1.MergedEvent) error { return nil },
		OnProgress: func(events int64, _ marketv1.Timestamp) { counts = append(counts, events) },
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, counts)
}

func TestAcceleratedClock_PacesAgainstAnchor(t *testing.T) {
	clock := NewAcceleratedClock(2.0)
	now := time.Unix(0, 0)
	clock.now = func() time.Time { return now }

	// First tick anchors without waiting.
	require.NoError(t, clock.TickUntil(context.Background(), 1000))

	// 1000ms of simulated time at 2x is due 500ms after the anchor.
	now = now.Add(600 * time.Millisecond)
	done := make(chan error, 1)
	go func() { done <- clock.TickUntil(context.Background(), 2000) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("clock blocked although the target was already due")
	}
}

func TestAcceleratedClock_Desc(t *testing.T) {
	assert.Equal(t, "wall", NewWallClock().Desc())
	assert.Equal(t, "accelerated x10", NewAcceleratedClock(10).Desc())
	assert.Equal(t, "logical", NewLogicalClock().Desc())
}
