// Package replay drives the merged market-data stream through the matching
// engine under a pluggable clock, with run limits, progress reporting and
// periodic checkpoint triggers.
package replay

import (
	"context"
	"fmt"
	"time"

	marketv1 "github.com/felis2803/TradeForge-sub000/internal/domain/market/v1"
)

// Clock controls the pacing of the replay. TickUntil blocks until the loop
// may deliver an event stamped at target.
//
//go:generate mockgen -source clock.go -destination=mock/clock_mock.go -package=replay_mock
type Clock interface {
	// TickUntil blocks until the clock reaches target, or ctx is done.
	TickUntil(ctx context.Context, target marketv1.Timestamp) error
	// Desc describes the clock for logs and the run summary.
	Desc() string
}

// LogicalClock delivers events as fast as the loop can consume them.
// Simulated time is carried entirely by event timestamps.
type LogicalClock struct{}

// NewLogicalClock creates a clock with no pacing.
func NewLogicalClock() *LogicalClock { return &LogicalClock{} }

func (c *LogicalClock) TickUntil(ctx context.Context, _ marketv1.Timestamp) error {
	return ctx.Err()
}

func (c *LogicalClock) Desc() string { return "logical" }

// AcceleratedClock paces events so simulated time advances speed times
// faster than wall time. Speed 1.0 replays in real time. The anchor is set
// on the first tick, so a stream starting at any historical timestamp plays
// immediately.
type AcceleratedClock struct {
	speed float64
	now   func() time.Time

	anchorWall time.Time
	anchorSim  marketv1.Timestamp
	anchored   bool
}

// NewAcceleratedClock creates a pacing clock. Speed must be positive.
func NewAcceleratedClock(speed float64) *AcceleratedClock {
	return &AcceleratedClock{speed: speed, now: time.Now}
}

// NewWallClock creates a real-time pacing clock.
func NewWallClock() *AcceleratedClock {
	clock := NewAcceleratedClock(1.0)
	return clock
}

func (c *AcceleratedClock) TickUntil(ctx context.Context, target marketv1.Timestamp) error {
	if !c.anchored {
		c.anchorWall = c.now()
		c.anchorSim = target
		c.anchored = true
		return ctx.Err()
	}

	simElapsed := time.Duration(target-c.anchorSim) * time.Millisecond
	due := c.anchorWall.Add(time.Duration(float64(simElapsed) / c.speed))
	wait := due.Sub(c.now())
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *AcceleratedClock) Desc() string {
	if c.speed == 1.0 {
		return "wall"
	}
	return fmt.Sprintf("accelerated x%g", c.speed)
}
