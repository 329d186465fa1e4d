package checkpointv1

import "context"

// Store persists and retrieves checkpoints.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=checkpointv1_mock
type Store interface {
	Save(ctx context.Context, checkpoint *Checkpoint) error
	// Load returns the stored checkpoint, or nil when none exists.
	Load(ctx context.Context) (*Checkpoint, error)
}
