package stream

import (
	"context"
	"io"

	streamv1 "github.com/felis2803/TradeForge-sub000/internal/domain/stream/v1"
)

// MemorySource serves records from a slice. Used by tests and synthetic
// scenarios; cursor addressing is the slice index.
type MemorySource struct {
	entry   string
	records []*streamv1.Record
	index   int64
}

// NewMemorySource creates a source over pre-built records. Seq and Entry are
// assigned here so callers only provide payloads.
func NewMemorySource(entry string, records []*streamv1.Record) *MemorySource {
	for i, record := range records {
		record.Seq = int64(i + 1)
		record.Entry = entry
	}
	return &MemorySource{entry: entry, records: records}
}

// Next returns the next record or io.EOF.
func (s *MemorySource) Next(ctx context.Context) (*streamv1.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.index >= int64(len(s.records)) {
		return nil, io.EOF
	}
	record := s.records[s.index]
	s.index++
	return record, nil
}

// CurrentCursor returns the position of the next unread record.
func (s *MemorySource) CurrentCursor() streamv1.Cursor {
	return streamv1.Cursor{File: s.entry, RecordIndex: s.index}
}

// Close is a no-op for memory sources.
func (s *MemorySource) Close() error {
	return nil
}

// Skip advances the source to the given record index, for resumption tests.
func (s *MemorySource) Skip(index int64) {
	if index > int64(len(s.records)) {
		index = int64(len(s.records))
	}
	s.index = index
}
