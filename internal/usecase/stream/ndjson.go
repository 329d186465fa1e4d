// Package stream implements cursor-tracked market-data sources. The NDJSON
// sources read newline-delimited records with stable per-line addressing, so
// a replay can resume from an exact record index.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"

	marketv1 "github.com/felis2803/TradeForge-sub000/internal/domain/market/v1"
	streamv1 "github.com/felis2803/TradeForge-sub000/internal/domain/stream/v1"
	"github.com/felis2803/TradeForge-sub000/pkg/errors"
	"github.com/felis2803/TradeForge-sub000/pkg/logger"
	"github.com/felis2803/TradeForge-sub000/pkg/numeric"
)

type tradeLine struct {
	Ts    int64  `json:"ts"`
	Price string `json:"price"`
	Qty   string `json:"qty"`
	Side  string `json:"side"`
	Ref   string `json:"ref"`
}

type depthLine struct {
	Ts    int64  `json:"ts"`
	Side  string `json:"side"`
	Price string `json:"price"`
	Qty   string `json:"qty"`
}

// fileSource carries the line scanning and cursor bookkeeping shared by the
// trade and depth sources.
type fileSource struct {
	path    string
	file    *os.File
	scanner *bufio.Scanner
	index   int64
	seq     int64
	logger  *logger.Logger
}

func openFileSource(path string, log *logger.Logger) (*fileSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.StreamSourceError, "open %s", path)
	}

	source := &fileSource{
		path:    path,
		file:    file,
		scanner: bufio.NewScanner(file),
		logger:  log,
	}
	source.scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return source, nil
}

// skipTo replays records until the line index reaches the checkpointed
// startIndex. Replaying through Next instead of counting raw lines keeps the
// seq numbering, and with it the synthesized trade refs, identical to an
// uninterrupted read even when malformed lines precede the checkpoint.
func (s *fileSource) skipTo(startIndex int64, next func(context.Context) (*streamv1.Record, error)) error {
	for s.index < startIndex {
		if _, err := next(context.Background()); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
	return nil
}

// nextLine returns the next raw line, or io.EOF. The record index counts
// every line, skipped or not, so cursors stay stable.
func (s *fileSource) nextLine() ([]byte, error) {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return nil, errors.Wrap(err, errors.StreamSourceError, "read %s", s.path)
		}
		return nil, io.EOF
	}
	s.index++
	return s.scanner.Bytes(), nil
}

func (s *fileSource) cursor() streamv1.Cursor {
	return streamv1.Cursor{File: s.path, RecordIndex: s.index}
}

func (s *fileSource) close() error {
	return s.file.Close()
}

func (s *fileSource) warnSkip(line []byte, err error) {
	s.logger.Warn("skipping malformed record",
		logger.Field{Key: "file", Value: s.path},
		logger.Field{Key: "recordIndex", Value: s.index - 1},
		logger.Field{Key: "error", Value: err.Error()},
		logger.Field{Key: "line", Value: string(line)},
	)
}

// TradeFileSource reads trade prints from an NDJSON file.
type TradeFileSource struct {
	*fileSource
	cfg marketv1.SymbolConfig
}

// NewTradeFileSource opens a trade NDJSON file, skipping to startIndex for
// checkpoint resumption.
func NewTradeFileSource(path string, cfg marketv1.SymbolConfig, startIndex int64, log *logger.Logger) (*TradeFileSource, error) {
	source, err := openFileSource(path, log)
	if err != nil {
		return nil, err
	}
	s := &TradeFileSource{fileSource: source, cfg: cfg}
	if err := source.skipTo(startIndex, s.Next); err != nil {
		source.close()
		return nil, err
	}
	return s, nil
}

// Next returns the next parsable trade record. Malformed lines are skipped
// with a diagnostic, never crash the stream.
func (s *TradeFileSource) Next(ctx context.Context) (*streamv1.Record, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, err := s.nextLine()
		if err != nil {
			return nil, err
		}

		var raw tradeLine
		if err := json.Unmarshal(line, &raw); err != nil {
			s.warnSkip(line, err)
			continue
		}
		trade, err := s.parse(raw)
		if err != nil {
			s.warnSkip(line, err)
			continue
		}

		s.seq++
		return &streamv1.Record{Trade: trade, Seq: s.seq, Entry: s.path}, nil
	}
}

func (s *TradeFileSource) parse(raw tradeLine) (*marketv1.TradeEvent, error) {
	price, err := numeric.Parse(raw.Price, s.cfg.PriceScale)
	if err != nil {
		return nil, err
	}
	qty, err := numeric.Parse(raw.Qty, s.cfg.QtyScale)
	if err != nil {
		return nil, err
	}
	side, err := marketv1.ParseSide(raw.Side)
	if err != nil {
		return nil, err
	}
	return &marketv1.TradeEvent{
		Ts:    marketv1.Timestamp(raw.Ts),
		Price: price,
		Qty:   qty,
		Side:  side,
		Ref:   raw.Ref,
	}, nil
}

// CurrentCursor returns the position of the next unread record.
func (s *TradeFileSource) CurrentCursor() streamv1.Cursor {
	return s.cursor()
}

// Close releases the underlying file.
func (s *TradeFileSource) Close() error {
	return s.close()
}

// DepthFileSource reads order-book depth diffs from an NDJSON file.
type DepthFileSource struct {
	*fileSource
	cfg marketv1.SymbolConfig
}

// NewDepthFileSource opens a depth NDJSON file, skipping to startIndex for
// checkpoint resumption.
func NewDepthFileSource(path string, cfg marketv1.SymbolConfig, startIndex int64, log *logger.Logger) (*DepthFileSource, error) {
	source, err := openFileSource(path, log)
	if err != nil {
		return nil, err
	}
	s := &DepthFileSource{fileSource: source, cfg: cfg}
	if err := source.skipTo(startIndex, s.Next); err != nil {
		source.close()
		return nil, err
	}
	return s, nil
}

// Next returns the next parsable depth record, skipping malformed lines.
func (s *DepthFileSource) Next(ctx context.Context) (*streamv1.Record, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, err := s.nextLine()
		if err != nil {
			return nil, err
		}

		var raw depthLine
		if err := json.Unmarshal(line, &raw); err != nil {
			s.warnSkip(line, err)
			continue
		}
		depth, err := s.parse(raw)
		if err != nil {
			s.warnSkip(line, err)
			continue
		}

		s.seq++
		return &streamv1.Record{Depth: depth, Seq: s.seq, Entry: s.path}, nil
	}
}

func (s *DepthFileSource) parse(raw depthLine) (*marketv1.DepthEvent, error) {
	price, err := numeric.Parse(raw.Price, s.cfg.PriceScale)
	if err != nil {
		return nil, err
	}
	qty, err := numeric.Parse(raw.Qty, s.cfg.QtyScale)
	if err != nil {
		return nil, err
	}
	side, err := marketv1.ParseDepthSide(raw.Side)
	if err != nil {
		return nil, err
	}
	return &marketv1.DepthEvent{
		Ts:    marketv1.Timestamp(raw.Ts),
		Side:  side,
		Price: price,
		Qty:   qty,
	}, nil
}

// CurrentCursor returns the position of the next unread record.
func (s *DepthFileSource) CurrentCursor() streamv1.Cursor {
	return s.cursor()
}

// Close releases the underlying file.
func (s *DepthFileSource) Close() error {
	return s.close()
}
