package checkpoint

import (
	"context"
	"os"
	"path/filepath"

	checkpointv1 "github.com/felis2803/TradeForge-sub000/internal/domain/checkpoint/v1"
	"github.com/felis2803/TradeForge-sub000/pkg/errors"
	"github.com/felis2803/TradeForge-sub000/pkg/logger"
)

// FileStore persists the checkpoint as a JSON file. Saves go through a temp
// file and a rename so a crash mid-write never corrupts the previous
// checkpoint.
type FileStore struct {
	path   string
	logger *logger.Logger
}

// NewFileStore creates a file-backed checkpoint store at path.
func NewFileStore(path string, log *logger.Logger) *FileStore {
	return &FileStore{path: path, logger: log}
}

// Save writes the checkpoint atomically.
func (s *FileStore) Save(ctx context.Context, checkpoint *checkpointv1.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Encode(checkpoint)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.CheckpointStoreError, "create checkpoint directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, errors.CheckpointStoreError, "create temp checkpoint file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, errors.CheckpointStoreError, "write checkpoint %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, errors.CheckpointStoreError, "close checkpoint %s", tmpName)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, errors.CheckpointStoreError, "publish checkpoint %s", s.path)
	}

	s.logger.Debug("checkpoint saved",
		logger.Field{Key: "path", Value: s.path},
		logger.Field{Key: "bytes", Value: len(data)},
	)
	return nil
}

// Load reads and decodes the checkpoint, or returns nil when the file does
// not exist yet.
func (s *FileStore) Load(ctx context.Context) (*checkpointv1.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CheckpointStoreError, "read checkpoint %s", s.path)
	}
	return Decode(data)
}
