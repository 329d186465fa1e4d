// Package report implements the execution report sinks: newline-delimited
// JSON files for offline analysis and Kafka for downstream consumers.
package report

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"

	reportv1 "github.com/felis2803/TradeForge-sub000/internal/domain/report/v1"
	"github.com/felis2803/TradeForge-sub000/pkg/errors"
	"github.com/felis2803/TradeForge-sub000/pkg/logger"
)

// NDJSONSink writes one JSON object per line. Not safe for concurrent use;
// the matching engine is its single producer.
type NDJSONSink struct {
	writer  *bufio.Writer
	closer  io.Closer
	encoder *json.Encoder
	logger  *logger.Logger
}

// NewNDJSONSink creates a sink appending to the file at path.
func NewNDJSONSink(path string, log *logger.Logger) (*NDJSONSink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, errors.ReportSinkError, "open report file %s", path)
	}
	return NewNDJSONSinkWriter(file, file, log), nil
}

// NewNDJSONSinkWriter creates a sink over an arbitrary writer. closer may be
// nil when the caller owns the underlying stream.
func NewNDJSONSinkWriter(w io.Writer, closer io.Closer, log *logger.Logger) *NDJSONSink {
	buffered := bufio.NewWriter(w)
	return &NDJSONSink{
		writer:  buffered,
		closer:  closer,
		encoder: json.NewEncoder(buffered),
		logger:  log,
	}
}

// Publish appends one report line.
func (s *NDJSONSink) Publish(ctx context.Context, report reportv1.ExecutionReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.encoder.Encode(report); err != nil {
		return errors.Wrap(err, errors.ReportSinkError, "encode %s report", report.Kind)
	}
	return nil
}

// Close flushes buffered lines and closes the underlying file.
func (s *NDJSONSink) Close() error {
	if err := s.writer.Flush(); err != nil {
		return errors.Wrap(err, errors.ReportSinkError, "flush report sink")
	}
	if s.closer != nil {
		if err := s.closer.Close(); err != nil {
			return errors.Wrap(err, errors.ReportSinkError, "close report sink")
		}
	}
	return nil
}
