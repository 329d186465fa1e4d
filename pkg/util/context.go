package util

import (
	"context"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

type key string

const (
	runIDKey  = key("run-id")
	symbolKey = key("symbol")
)

// WithRunID returns a context carrying the given replay run id.
// It generates a fresh id if the provided one is empty.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = NewRunID()
	}
	return context.WithValue(ctx, runIDKey, id)
}

// GetRunID returns the run id stored in ctx, or "" if absent.
func GetRunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// WithSymbol returns a context carrying the trading symbol of the run.
func WithSymbol(ctx context.Context, symbol string) context.Context {
	return context.WithValue(ctx, symbolKey, symbol)
}

// GetSymbol returns the symbol stored in ctx, or "" if absent.
func GetSymbol(ctx context.Context) string {
	symbol, _ := ctx.Value(symbolKey).(string)
	return symbol
}

// NewRunID returns a ULID string to identify a replay run.
func NewRunID() string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
