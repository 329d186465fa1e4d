package engine

import "time"

// Options represents configuration options for the Engine.
type Options struct {
	// QueueSize buffers the hand-off between the replay loop and the
	// matcher goroutine.
	QueueSize int
	// ProgressInterval spaces progress log lines in events. Zero disables.
	ProgressInterval int64
	// CheckpointEvery triggers a checkpoint every N events. Zero disables.
	CheckpointEvery int64
	// CheckpointInterval triggers a checkpoint on wall time. Zero disables.
	CheckpointInterval time.Duration
	// Resume loads the stored checkpoint before starting, when one exists.
	Resume bool
}

// DefaultEngineOptions returns the default engine options.
func DefaultEngineOptions() *Options {
	return &Options{
		QueueSize:        1024,
		ProgressInterval: 100_000,
	}
}
