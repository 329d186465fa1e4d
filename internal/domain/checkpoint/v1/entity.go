package checkpointv1

import (
	ledgerv1 "github.com/felis2803/TradeForge-sub000/internal/domain/ledger/v1"
	marketv1 "github.com/felis2803/TradeForge-sub000/internal/domain/market/v1"
	streamv1 "github.com/felis2803/TradeForge-sub000/internal/domain/stream/v1"
)

// Version is the sole checkpoint format version this build reads and writes.
const Version = 1

// Meta carries run identification for a checkpoint.
type Meta struct {
	Symbol string `json:"symbol"`
}

// EngineSnapshot captures the matching engine's order indices.
type EngineSnapshot struct {
	OpenOrderIDs []ledgerv1.OrderID `json:"openOrderIds"`
	StopOrderIDs []ledgerv1.OrderID `json:"stopOrderIds"`
}

// AccountSnapshot is the serialized form of one account.
type AccountSnapshot struct {
	ID        ledgerv1.AccountID          `json:"id"`
	Balances  map[string]ledgerv1.Balance `json:"balances"`
	CreatedAt marketv1.Timestamp          `json:"createdAt"`
}

// StateSnapshot is the serialized form of the full ledger. All scaled-integer
// fields travel as decimal-digit strings.
type StateSnapshot struct {
	Symbols       []marketv1.SymbolConfig `json:"symbols"`
	Accounts      []AccountSnapshot       `json:"accounts"`
	Orders        []*ledgerv1.Order       `json:"orders"`
	NextAccountID int64                   `json:"nextAccountId"`
	NextOrderID   int64                   `json:"nextOrderId"`
	LogicalTime   marketv1.Timestamp      `json:"logicalTime"`
}

// Checkpoint bundles everything needed to resume a replay exactly: ledger
// snapshot, per-source stream cursors, merge tie-break state and the engine's
// order indices.
type Checkpoint struct {
	Version     int                                   `json:"version"`
	CreatedAtMs int64                                 `json:"createdAtMs"`
	RunID       string                                `json:"runId"`
	Meta        Meta                                  `json:"meta"`
	Cursors     map[marketv1.SourceID]streamv1.Cursor `json:"cursors"`
	Merge       streamv1.MergeState                   `json:"merge"`
	Engine      EngineSnapshot                        `json:"engine"`
	State       *StateSnapshot                        `json:"state"`
}
