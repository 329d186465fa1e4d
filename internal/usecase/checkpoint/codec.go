// Package checkpoint builds, encodes and persists resumable run snapshots.
package checkpoint

import (
	"encoding/json"
	"time"

	checkpointv1 "github.com/felis2803/TradeForge-sub000/internal/domain/checkpoint/v1"
	marketv1 "github.com/felis2803/TradeForge-sub000/internal/domain/market/v1"
	streamv1 "github.com/felis2803/TradeForge-sub000/internal/domain/stream/v1"
	"github.com/felis2803/TradeForge-sub000/internal/usecase/ledger"
	"github.com/felis2803/TradeForge-sub000/pkg/errors"
	"github.com/felis2803/TradeForge-sub000/pkg/logger"
)

// MakeV1 assembles a version-1 checkpoint from the live ledger state and the
// stream position. The state must not be mutated concurrently.
func MakeV1(
	runID string,
	symbol string,
	state *ledger.State,
	cursors map[marketv1.SourceID]streamv1.Cursor,
	mergeState streamv1.MergeState,
) *checkpointv1.Checkpoint {
	return &checkpointv1.Checkpoint{
		Version:     checkpointv1.Version,
		CreatedAtMs: time.Now().UnixMilli(),
		RunID:       runID,
		Meta:        checkpointv1.Meta{Symbol: symbol},
		Cursors:     cursors,
		Merge:       mergeState,
		Engine:      ledger.SnapshotEngine(state),
		State:       state.Snapshot(),
	}
}

// Encode serializes a checkpoint to JSON.
func Encode(checkpoint *checkpointv1.Checkpoint) ([]byte, error) {
	data, err := json.Marshal(checkpoint)
	if err != nil {
		return nil, errors.Wrap(err, errors.CheckpointStoreError, "encode checkpoint")
	}
	return data, nil
}

// Decode parses a checkpoint and gates on the format version before any of
// the payload is interpreted.
func Decode(data []byte) (*checkpointv1.Checkpoint, error) {
	var versionProbe struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &versionProbe); err != nil {
		return nil, errors.Wrap(err, errors.CheckpointStoreError, "parse checkpoint")
	}
	if versionProbe.Version != checkpointv1.Version {
		return nil, errors.NewUnsupportedCheckpointVersion(versionProbe.Version)
	}

	var checkpoint checkpointv1.Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, errors.Wrap(err, errors.CheckpointStoreError, "parse checkpoint")
	}
	if checkpoint.State == nil {
		return nil, errors.New(errors.CheckpointStoreError, "checkpoint has no ledger state")
	}
	return &checkpoint, nil
}

// Restore rebuilds the ledger from a decoded checkpoint.
func Restore(checkpoint *checkpointv1.Checkpoint) (*ledger.State, error) {
	state, err := ledger.FromSnapshot(checkpoint.State)
	if err != nil {
		return nil, err
	}
	if err := state.RestoreEngineIndices(checkpoint.Engine); err != nil {
		return nil, err
	}
	return state, nil
}

// WarnOnCursorMismatch logs cursors pointing at files the current config no
// longer references. The mismatch is survivable when the data set merely
// moved, so it warns instead of failing the resume.
func WarnOnCursorMismatch(
	log *logger.Logger,
	checkpoint *checkpointv1.Checkpoint,
	expected map[marketv1.SourceID]string,
) {
	for source, cursor := range checkpoint.Cursors {
		want, ok := expected[source]
		if !ok || cursor.File == want {
			continue
		}
		log.Warn("checkpoint cursor file differs from configured data file",
			logger.Field{Key: "source", Value: string(source)},
			logger.Field{Key: "cursorFile", Value: cursor.File},
			logger.Field{Key: "configuredFile", Value: want},
		)
	}
}
