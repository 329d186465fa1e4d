package checkpoint

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	checkpointv1 "github.com/felis2803/TradeForge-sub000/internal/domain/checkpoint/v1"
	ledgerv1 "github.com/felis2803/TradeForge-sub000/internal/domain/ledger/v1"
	marketv1 "github.com/felis2803/TradeForge-sub000/internal/domain/market/v1"
	streamv1 "github.com/felis2803/TradeForge-sub000/internal/domain/stream/v1"
	"github.com/felis2803/TradeForge-sub000/internal/usecase/ledger"
	"github.com/felis2803/TradeForge-sub000/pkg/errors"
	"github.com/felis2803/TradeForge-sub000/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// populatedCheckpoint builds a ledger with an account, an open limit order
// and a pending stop, then snapshots it into a checkpoint.
func populatedCheckpoint(t *testing.T) (*ledger.State, *checkpointv1.Checkpoint) {
	t.Helper()
	log, err := logger.NewLogger()
	require.NoError(t, err)

	state, err := ledger.NewState([]marketv1.SymbolConfig{{
		Name:        "BTC-USDT",
		Base:        "BTC",
		Quote:       "USDT",
		PriceScale:  2,
		QtyScale:    3,
		MakerFeeBps: 10,
		TakerFeeBps: 20,
	}})
	require.NoError(t, err)

	accounts := ledger.NewAccounts(state, log)
	orders := ledger.NewOrders(state, accounts, ledger.DefaultOrdersOptions(), log)

	account := accounts.CreateAccount()
	require.NoError(t, accounts.Deposit(account, "USDT", "100000"))
	require.NoError(t, accounts.Deposit(account, "BTC", "2"))

	_, err = orders.PlaceOrder(ledgerv1.PlaceOrderRequest{
		AccountID: account,
		Symbol:    "BTC-USDT",
		Side:      marketv1.SideBuy,
		Type:      marketv1.OrderTypeLimit,
		Qty:       "1",
		Price:     "30000",
	})
	require.NoError(t, err)
	_, err = orders.PlaceOrder(ledgerv1.PlaceOrderRequest{
		AccountID:        account,
		Symbol:           "BTC-USDT",
		Side:             marketv1.SideSell,
		Type:             marketv1.OrderTypeStopMarket,
		Qty:              "1",
		TriggerPrice:     "25000",
		TriggerDirection: marketv1.TriggerDirectionDown,
	})
	require.NoError(t, err)

	cursors := map[marketv1.SourceID]streamv1.Cursor{
		marketv1.SourceTrade: {File: "trades.ndjson", RecordIndex: 42},
		marketv1.SourceDepth: {File: "depth.ndjson", RecordIndex: 17},
	}
	checkpoint := MakeV1("run-1", "BTC-USDT", state, cursors, streamv1.MergeState{
		NextSourceOnEqualTs: marketv1.SourceDepth,
	})
	return state, checkpoint
}

func TestCheckpoint_RoundTripRestoresIdenticalState(t *testing.T) {
	state, checkpoint := populatedCheckpoint(t)

	data, err := Encode(checkpoint)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, "BTC-USDT", decoded.Meta.Symbol)
	assert.Equal(t, int64(42), decoded.Cursors[marketv1.SourceTrade].RecordIndex)
	assert.Equal(t, marketv1.SourceDepth, decoded.Merge.NextSourceOnEqualTs)

	restored, err := Restore(decoded)
	require.NoError(t, err)

	// The restored ledger serializes to the exact same snapshot.
	original, err := json.Marshal(state.Snapshot())
	require.NoError(t, err)
	roundTripped, err := json.Marshal(restored.Snapshot())
	require.NoError(t, err)
	assert.JSONEq(t, string(original), string(roundTripped))

	assert.Equal(t, state.OpenOrderIDs(), restored.OpenOrderIDs())
	assert.Equal(t, state.StopOrderIDs(), restored.StopOrderIDs())
}

func TestDecode_RejectsUnknownVersion(t *testing.T) {
	_, checkpoint := populatedCheckpoint(t)
	checkpoint.Version = 99
	data, err := Encode(checkpoint)
	require.NoError(t, err)

	_, err = Decode(data)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.UnsupportedCheckpointVersionError))
}

func TestDecode_RejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not json"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CheckpointStoreError))
}

func TestCheckpoint_NumericFieldsTravelAsStrings(t *testing.T) {
	_, checkpoint := populatedCheckpoint(t)
	data, err := Encode(checkpoint)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	state := raw["state"].(map[string]any)
	orders := state["orders"].([]any)
	require.NotEmpty(t, orders)
	reserved := orders[0].(map[string]any)["reserved"].(map[string]any)
	_, isString := reserved["total"].(string)
	assert.True(t, isString, "reservation total must serialize as a string")
}

func TestFileStore_SaveLoad(t *testing.T) {
	log, err := logger.NewLogger()
	require.NoError(t, err)

	_, checkpoint := populatedCheckpoint(t)
	store := NewFileStore(filepath.Join(t.TempDir(), "run", "checkpoint.json"), log)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, checkpoint))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, checkpoint.RunID, loaded.RunID)
	assert.Equal(t, checkpoint.Cursors, loaded.Cursors)
}

func TestFileStore_LoadMissingReturnsNil(t *testing.T) {
	log, err := logger.NewLogger()
	require.NoError(t, err)

	store := NewFileStore(filepath.Join(t.TempDir(), "absent.json"), log)
	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestFileStore_SaveOverwritesPrevious(t *testing.T) {
	log, err := logger.NewLogger()
	require.NoError(t, err)

	_, checkpoint := populatedCheckpoint(t)
	store := NewFileStore(filepath.Join(t.TempDir(), "checkpoint.json"), log)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, checkpoint))

	checkpoint.RunID = "run-2"
	require.NoError(t, store.Save(ctx, checkpoint))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-2", loaded.RunID)
}
