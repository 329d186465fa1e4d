// Package engine wires a full simulation run: scenario loading, ledger
// construction or checkpoint resume, the deterministic merge, the replay
// loop and the matching engine.
//
// Two goroutines cooperate through one buffered queue. The replay loop reads
// and paces the merged stream; the matcher goroutine is the sole writer of
// the ledger. Checkpoint requests travel through the same queue, so the
// snapshot the matcher takes always corresponds to the stream position the
// loop captured.
package engine

import (
	"context"
	"sort"
	"sync"

	checkpointv1 "github.com/felis2803/TradeForge-sub000/internal/domain/checkpoint/v1"
	ledgerv1 "github.com/felis2803/TradeForge-sub000/internal/domain/ledger/v1"
	marketv1 "github.com/felis2803/TradeForge-sub000/internal/domain/market/v1"
	reportv1 "github.com/felis2803/TradeForge-sub000/internal/domain/report/v1"
	streamv1 "github.com/felis2803/TradeForge-sub000/internal/domain/stream/v1"
	"github.com/felis2803/TradeForge-sub000/internal/usecase/checkpoint"
	"github.com/felis2803/TradeForge-sub000/internal/usecase/ledger"
	"github.com/felis2803/TradeForge-sub000/internal/usecase/match"
	"github.com/felis2803/TradeForge-sub000/internal/usecase/merge"
	"github.com/felis2803/TradeForge-sub000/internal/usecase/replay"
	"github.com/felis2803/TradeForge-sub000/internal/usecase/stream"
	"github.com/felis2803/TradeForge-sub000/pkg/config"
	"github.com/felis2803/TradeForge-sub000/pkg/errors"
	"github.com/felis2803/TradeForge-sub000/pkg/logger"
	"github.com/felis2803/TradeForge-sub000/pkg/util"
)

// queueItem is one hand-off from the replay loop to the matcher: a merged
// event, or a checkpoint request carrying the stream position.
type queueItem struct {
	event      *marketv1.MergedEvent
	checkpoint *replay.Position
}

type scriptedOrder struct {
	placeAt marketv1.Timestamp
	request ledgerv1.PlaceOrderRequest
}

// Engine runs one simulation from a scenario.
type Engine struct {
	scenario *config.Scenario
	options  *Options
	runID    string

	state    *ledger.State
	accounts *ledger.Accounts
	orders   *ledger.Orders
	matcher  *match.Engine
	merged   *merge.Stream
	loop     *replay.Loop
	sink     reportv1.Sink
	store    checkpointv1.Store

	scripted   []scriptedOrder
	nextScript int

	queue  chan queueItem
	logger *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	result replay.Result
	runErr error
	done   chan struct{}
}

// NewEngine builds a run from the scenario. When options.Resume is set and
// the store holds a checkpoint, the ledger and stream positions come from it;
// otherwise the run starts fresh with the scenario's accounts and deposits.
func NewEngine(
	scenario *config.Scenario,
	clock replay.Clock,
	limits replay.Limits,
	sink reportv1.Sink,
	store checkpointv1.Store,
	options *Options,
	log *logger.Logger,
) (*Engine, error) {
	if options == nil {
		options = DefaultEngineOptions()
	}

	e := &Engine{
		scenario: scenario,
		options:  options,
		sink:     sink,
		store:    store,
		queue:    make(chan queueItem, options.QueueSize),
		logger:   log,
		done:     make(chan struct{}),
	}

	var resumed *checkpointv1.Checkpoint
	if options.Resume && store != nil {
		loaded, err := store.Load(context.Background())
		if err != nil {
			return nil, err
		}
		resumed = loaded
	}

	if err := e.initLedger(resumed); err != nil {
		return nil, err
	}
	if err := e.initStreams(resumed, log); err != nil {
		return nil, err
	}

	e.loop = replay.NewLoop(e.merged, clock, limits, replay.Options{
		ProgressInterval:   options.ProgressInterval,
		CheckpointEvery:    options.CheckpointEvery,
		CheckpointInterval: options.CheckpointInterval,
	}, log)

	e.initScript(resumed != nil)

	return e, nil
}

func (e *Engine) initLedger(resumed *checkpointv1.Checkpoint) error {
	if resumed != nil {
		state, err := checkpoint.Restore(resumed)
		if err != nil {
			return err
		}
		e.state = state
		e.runID = resumed.RunID
		e.logger.Info("resuming from checkpoint",
			logger.Field{Key: "runId", Value: e.runID},
			logger.Field{Key: "logicalTime", Value: int64(state.Now())},
		)
	} else {
		state, err := ledger.NewState(e.scenario.Symbols)
		if err != nil {
			return err
		}
		e.state = state
		e.runID = util.NewRunID()
	}

	e.accounts = ledger.NewAccounts(e.state, e.logger)

	ordersOptions := ledger.DefaultOrdersOptions()
	ordersOptions.FallbackRefPrices = e.scenario.FallbackRefPrices
	if e.scenario.Match.MarketReserveHeadroomBps != nil {
		ordersOptions.MarketReserveHeadroomBps = *e.scenario.Match.MarketReserveHeadroomBps
	}
	e.orders = ledger.NewOrders(e.state, e.accounts, ordersOptions, e.logger)

	e.matcher = match.NewEngine(
		e.scenario.Symbol,
		e.state,
		e.orders,
		e.sink,
		match.Options{UseAggressorLiquidity: e.scenario.Match.UseAggressorLiquidity},
		e.logger,
	)

	if resumed == nil {
		for _, account := range e.scenario.Accounts {
			id := e.accounts.CreateAccount()
			currencies := make([]string, 0, len(account.Deposits))
			for currency := range account.Deposits {
				currencies = append(currencies, currency)
			}
			sort.Strings(currencies)
			for _, currency := range currencies {
				if err := e.accounts.Deposit(id, currency, account.Deposits[currency]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (e *Engine) initStreams(resumed *checkpointv1.Checkpoint, log *logger.Logger) error {
	symbolCfg, err := e.state.Symbol(e.scenario.Symbol)
	if err != nil {
		return err
	}

	var tradeStart, depthStart int64
	var mergeState *streamv1.MergeState
	if resumed != nil {
		checkpoint.WarnOnCursorMismatch(log, resumed, map[marketv1.SourceID]string{
			marketv1.SourceTrade: e.scenario.Data.TradesFile,
			marketv1.SourceDepth: e.scenario.Data.DepthFile,
		})
		tradeStart = resumed.Cursors[marketv1.SourceTrade].RecordIndex
		depthStart = resumed.Cursors[marketv1.SourceDepth].RecordIndex
		mergeState = &streamv1.MergeState{NextSourceOnEqualTs: resumed.Merge.NextSourceOnEqualTs}
	}

	trades, err := stream.NewTradeFileSource(e.scenario.Data.TradesFile, symbolCfg, tradeStart, log)
	if err != nil {
		return err
	}
	depth, err := stream.NewDepthFileSource(e.scenario.Data.DepthFile, symbolCfg, depthStart, log)
	if err != nil {
		trades.Close()
		return err
	}

	mergeOptions := merge.DefaultOptions()
	if e.scenario.Merge.PreferDepthOnEqualTs != nil {
		mergeOptions.PreferDepthOnEqualTs = *e.scenario.Merge.PreferDepthOnEqualTs
	}
	e.merged = merge.NewStream(trades, depth, mergeState, mergeOptions)
	return nil
}

// initScript orders the scripted placements by time, listing order breaking
// ties. On resume, placements at or before the checkpoint's logical time
// already happened and are skipped.
func (e *Engine) initScript(resumed bool) {
	for _, order := range e.scenario.Orders {
		e.scripted = append(e.scripted, scriptedOrder{
			placeAt: marketv1.Timestamp(order.PlaceAtMs),
			request: ledgerv1.PlaceOrderRequest{
				AccountID:        ledgerv1.AccountID(order.Account),
				Symbol:           e.scenario.Symbol,
				Side:             marketv1.Side(order.Side),
				Type:             marketv1.OrderType(order.Type),
				TimeInForce:      marketv1.TimeInForce(order.TimeInForce),
				Qty:              order.Qty,
				Price:            order.Price,
				TriggerPrice:     order.TriggerPrice,
				TriggerDirection: marketv1.TriggerDirection(order.TriggerDirection),
			},
		})
	}
	sort.SliceStable(e.scripted, func(i, j int) bool {
		return e.scripted[i].placeAt < e.scripted[j].placeAt
	})

	if resumed {
		now := e.state.Now()
		for e.nextScript < len(e.scripted) && e.scripted[e.nextScript].placeAt <= now {
			e.nextScript++
		}
	}
}

// RunID returns the run identifier, stable across resumes.
func (e *Engine) RunID() string {
	return e.runID
}

// Start launches the replay and matcher goroutines.
func (e *Engine) Start(ctx context.Context) error {
	ctx = util.WithRunID(util.WithSymbol(ctx, e.scenario.Symbol), e.runID)
	e.ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(2)
	go e.runReplay()
	go e.runMatcher()

	e.logger.InfoContext(e.ctx, "engine started",
		logger.Field{Key: "symbol", Value: e.scenario.Symbol},
		logger.Field{Key: "tradesFile", Value: e.scenario.Data.TradesFile},
		logger.Field{Key: "depthFile", Value: e.scenario.Data.DepthFile},
	)
	return nil
}

// Stop cancels the run and waits for the goroutines to drain.
func (e *Engine) Stop(ctx context.Context) error {
	if e.cancel != nil {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("engine stopped")
		return nil
	case <-ctx.Done():
		e.logger.Warn("engine stop timeout exceeded")
		return ctx.Err()
	}
}

// Done is closed when the run finishes, by exhaustion, limit, error or stop.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Result returns the replay totals and the first error, if any. Valid after
// Done is closed.
func (e *Engine) Result() (replay.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result, e.runErr
}

func (e *Engine) runReplay() {
	defer e.wg.Done()
	defer close(e.queue)

	result, err := e.loop.Run(e.ctx, replay.Hooks{
		OnEvent:      e.enqueueEvent,
		OnProgress:   e.logProgress,
		OnCheckpoint: e.enqueueCheckpoint,
	})

	e.mu.Lock()
	e.result = result
	if err != nil && e.runErr == nil {
		e.runErr = err
	}
	e.mu.Unlock()
}

func (e *Engine) enqueueEvent(ctx context.Context, event marketv1.MergedEvent) error {
	select {
	case e.queue <- queueItem{event: &event}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) enqueueCheckpoint(ctx context.Context, position replay.Position) error {
	if e.store == nil {
		return nil
	}
	select {
	case e.queue <- queueItem{checkpoint: &position}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) logProgress(events int64, simTs marketv1.Timestamp) {
	e.logger.InfoContext(e.ctx, "replay progress",
		logger.Field{Key: "events", Value: events},
		logger.Field{Key: "simTs", Value: int64(simTs)},
	)
}

func (e *Engine) runMatcher() {
	defer e.wg.Done()
	defer close(e.done)

	for item := range e.queue {
		var err error
		switch {
		case item.event != nil:
			if err = e.placeDueOrders(item.event.Ts); err == nil {
				err = e.matcher.Process(e.ctx, item.event)
			}
		case item.checkpoint != nil:
			err = e.saveCheckpoint(*item.checkpoint)
		}
		if err != nil {
			e.fail(err)
			return
		}
	}

	e.mu.Lock()
	finished := e.runErr == nil && e.result.Reason == replay.StopReasonEndOfStream
	e.mu.Unlock()
	if finished {
		if err := e.matcher.Finish(e.ctx); err != nil {
			e.fail(err)
		}
	}
}

// placeDueOrders submits every scripted order due at or before ts, in script
// order, before the event carrying ts is matched.
func (e *Engine) placeDueOrders(ts marketv1.Timestamp) error {
	for e.nextScript < len(e.scripted) && e.scripted[e.nextScript].placeAt <= ts {
		script := e.scripted[e.nextScript]
		e.nextScript++

		e.state.AdvanceTime(script.placeAt)
		if _, err := e.orders.PlaceOrder(script.request); err != nil {
			// Rejected placements are part of a valid run; insufficient
			// funds or bad parameters must not abort the replay.
			if errors.IsCode(err, errors.InternalConsistencyError) {
				return err
			}
			e.logger.WarnContext(e.ctx, "scripted order rejected",
				logger.Field{Key: "placeAtMs", Value: int64(script.placeAt)},
				logger.Field{Key: "accountId", Value: script.request.AccountID},
				logger.Field{Key: "error", Value: err.Error()},
			)
		}
	}
	return nil
}

func (e *Engine) saveCheckpoint(position replay.Position) error {
	cp := checkpoint.MakeV1(e.runID, e.scenario.Symbol, e.state, position.Cursors, position.Merge)
	if err := e.store.Save(e.ctx, cp); err != nil {
		return err
	}
	e.logger.InfoContext(e.ctx, "checkpoint saved",
		logger.Field{Key: "logicalTime", Value: int64(e.state.Now())},
		logger.Field{Key: "openOrders", Value: len(cp.Engine.OpenOrderIDs)},
	)
	return nil
}

func (e *Engine) fail(err error) {
	e.mu.Lock()
	if e.runErr == nil {
		e.runErr = err
	}
	e.mu.Unlock()

	e.logger.ErrorContext(e.ctx, err,
		logger.Field{Key: "action", Value: "abort_run"},
	)
	e.cancel()

	// Drain so the replay goroutine never blocks on a full queue.
	for range e.queue {
	}
}
