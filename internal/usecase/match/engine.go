// Package match consumes the merged market-data stream and executes the
// simulated orders against it. Historical trades drive fills: each trade
// print offers its quantity to the eligible simulated orders, conservatively,
// without assuming the simulated flow would have changed the tape.
package match

import (
	"context"
	"fmt"

	ledgerv1 "github.com/felis2803/TradeForge-sub000/internal/domain/ledger/v1"
	marketv1 "github.com/felis2803/TradeForge-sub000/internal/domain/market/v1"
	reportv1 "github.com/felis2803/TradeForge-sub000/internal/domain/report/v1"
	"github.com/felis2803/TradeForge-sub000/internal/usecase/ledger"
	"github.com/felis2803/TradeForge-sub000/pkg/errors"
	"github.com/felis2803/TradeForge-sub000/pkg/logger"
	"github.com/felis2803/TradeForge-sub000/pkg/numeric"
)

// Options tunes matching behavior.
type Options struct {
	// UseAggressorLiquidity additionally offers trade quantity to simulated
	// orders on the aggressor's own side, after the passive side is served.
	UseAggressorLiquidity bool
}

// DefaultOptions returns the default matching behavior.
func DefaultOptions() Options {
	return Options{UseAggressorLiquidity: false}
}

// Engine matches one symbol's merged stream against the ledger's open orders.
// Not safe for concurrent use; the replay loop is its single caller.
type Engine struct {
	symbol  string
	book    *Book
	state   *ledger.State
	orders  *ledger.Orders
	sink    reportv1.Sink
	options Options
	logger  *logger.Logger
}

// NewEngine creates a matching engine for the given symbol and wires its book
// into the orders component as the reference price source.
func NewEngine(
	symbol string,
	state *ledger.State,
	orders *ledger.Orders,
	sink reportv1.Sink,
	options Options,
	log *logger.Logger,
) *Engine {
	book := NewBook(symbol)
	orders.SetReferencePricer(book)
	return &Engine{
		symbol:  symbol,
		book:    book,
		state:   state,
		orders:  orders,
		sink:    sink,
		options: options,
		logger:  log,
	}
}

// Book returns the engine's depth book.
func (e *Engine) Book() *Book {
	return e.book
}

// Process applies one merged event: depth diffs update the book, trades
// activate eligible stops and drive the matching pass.
func (e *Engine) Process(ctx context.Context, event *marketv1.MergedEvent) error {
	e.state.AdvanceTime(event.Ts)

	switch event.Kind {
	case marketv1.EventKindDepth:
		e.book.ApplyDepth(event.Depth)
		return nil
	case marketv1.EventKindTrade:
		return e.processTrade(ctx, event)
	default:
		return errors.NewInternalConsistency("merged event with unknown kind %q", event.Kind)
	}
}

// Finish emits the END report once the stream is exhausted.
func (e *Engine) Finish(ctx context.Context) error {
	return e.publish(ctx, reportv1.ExecutionReport{
		Ts:   e.state.Now(),
		Kind: reportv1.KindEnd,
	})
}

func (e *Engine) processTrade(ctx context.Context, event *marketv1.MergedEvent) error {
	trade := event.Trade
	e.book.ApplyTrade(trade)

	if err := e.activateStops(trade); err != nil {
		return err
	}

	pool := e.buildPool(trade)
	tradeRemaining := trade.Qty.Clone()
	tradeRef := trade.Ref
	if tradeRef == "" {
		tradeRef = fmt.Sprintf("%s#%d", event.Entry, event.Seq)
	}

	// Every pool member gets its turn even after the trade quantity runs
	// out: membership in this pass is what decides IOC expiry below.
	for _, candidate := range pool {
		fillQty := numeric.Min(candidate.order.Remaining(), tradeRemaining)
		if fillQty.Sign() <= 0 {
			continue
		}

		updated, err := e.orders.ApplyFill(candidate.order.ID, ledgerv1.Fill{
			Ts:        trade.Ts,
			Price:     trade.Price.Clone(),
			Qty:       fillQty,
			Liquidity: candidate.liquidity,
			TradeRef:  tradeRef,
		})
		if err != nil {
			return err
		}
		tradeRemaining = tradeRemaining.Sub(fillQty)

		fill := updated.Fills[len(updated.Fills)-1]
		if err := e.publish(ctx, reportv1.ExecutionReport{
			Ts:      trade.Ts,
			Kind:    reportv1.KindFill,
			OrderID: updated.ID,
			Fill:    &fill,
		}); err != nil {
			return err
		}
		if updated.IsTerminal() {
			if err := e.publishOrderUpdated(ctx, updated); err != nil {
				return err
			}
		}
	}

	return e.expireIOC(ctx, pool)
}

// activateStops flips pending stops whose trigger condition the trade print
// satisfies. Activated stops join the pool of this same trade pass.
func (e *Engine) activateStops(trade *marketv1.TradeEvent) error {
	for _, id := range e.state.StopOrderIDs() {
		order, err := e.orders.GetOrder(id)
		if err != nil {
			return err
		}
		if order.Symbol != e.symbol || order.TriggerPrice == nil || order.TriggerDirection == nil {
			continue
		}

		triggered := false
		switch *order.TriggerDirection {
		case marketv1.TriggerDirectionUp:
			triggered = trade.Price.Cmp(*order.TriggerPrice) >= 0
		case marketv1.TriggerDirectionDown:
			triggered = trade.Price.Cmp(*order.TriggerPrice) <= 0
		}
		if !triggered {
			continue
		}

		if _, err := e.orders.ActivateStop(id, trade.Ts); err != nil {
			return err
		}
		e.logger.Debug("stop order activated",
			logger.Field{Key: "orderId", Value: id},
			logger.Field{Key: "triggerPrice", Value: order.TriggerPrice.String()},
			logger.Field{Key: "tradePrice", Value: trade.Price.String()},
		)
	}
	return nil
}

type poolEntry struct {
	order     *ledgerv1.Order
	liquidity marketv1.Liquidity
}

// buildPool selects and orders the simulated orders eligible for this trade.
// The passive side (opposite the aggressor) comes first: price-crossing
// limits by price priority then placement, then market-type orders by
// placement. The aggressor's own side follows under the same scheme, only
// when UseAggressorLiquidity is on.
func (e *Engine) buildPool(trade *marketv1.TradeEvent) []poolEntry {
	passiveSide := trade.Side.Opposite()

	var passiveLimits, passiveMarkets, sameLimits, sameMarkets []poolEntry
	for _, id := range e.state.OpenOrderIDs() {
		order, err := e.orders.GetOrder(id)
		if err != nil || order.Symbol != e.symbol || !order.Matchable() {
			continue
		}

		sameSide := order.Side == trade.Side
		if sameSide && !e.options.UseAggressorLiquidity {
			continue
		}

		switch order.EffectiveType() {
		case marketv1.OrderTypeLimit:
			if !crossesTrade(order, trade.Price) {
				continue
			}
			entry := poolEntry{order: order, liquidity: marketv1.LiquidityMaker}
			if sameSide {
				sameLimits = append(sameLimits, entry)
			} else {
				passiveLimits = append(passiveLimits, entry)
			}
		case marketv1.OrderTypeMarket:
			entry := poolEntry{order: order, liquidity: marketv1.LiquidityTaker}
			if sameSide {
				sameMarkets = append(sameMarkets, entry)
			} else {
				passiveMarkets = append(passiveMarkets, entry)
			}
		}
	}

	sortLimits(passiveLimits, passiveSide)
	sortLimits(sameLimits, trade.Side)

	pool := make([]poolEntry, 0, len(passiveLimits)+len(passiveMarkets)+len(sameLimits)+len(sameMarkets))
	pool = append(pool, passiveLimits...)
	pool = append(pool, passiveMarkets...)
	pool = append(pool, sameLimits...)
	pool = append(pool, sameMarkets...)
	return pool
}

// crossesTrade reports whether a limit order would have stood at or through
// the trade print: a BUY at or above it, a SELL at or below it.
func crossesTrade(order *ledgerv1.Order, tradePrice numeric.ScaledInt) bool {
	if order.Price == nil {
		return false
	}
	if order.Side == marketv1.SideBuy {
		return order.Price.Cmp(tradePrice) >= 0
	}
	return order.Price.Cmp(tradePrice) <= 0
}

// sortLimits orders limit entries by price priority for their side (BUY high
// to low, SELL low to high) with placement order breaking price ties. The
// placement-order scan keeps the sort stable on equal prices.
func sortLimits(entries []poolEntry, side marketv1.Side) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && betterLimit(entries[j], entries[j-1], side); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

func betterLimit(a, b poolEntry, side marketv1.Side) bool {
	cmp := a.order.Price.Cmp(*b.order.Price)
	if cmp == 0 {
		return false
	}
	if side == marketv1.SideBuy {
		return cmp > 0
	}
	return cmp < 0
}

// expireIOC cancels every IOC pool member still non-terminal after the pass:
// the trade was its chance, whatever the trade left unfilled expires.
func (e *Engine) expireIOC(ctx context.Context, pool []poolEntry) error {
	for _, candidate := range pool {
		if candidate.order.TimeInForce != marketv1.TimeInForceIOC {
			continue
		}
		current, err := e.orders.GetOrder(candidate.order.ID)
		if err != nil {
			return err
		}
		if current.IsTerminal() {
			continue
		}
		canceled, err := e.orders.CancelOrder(current.ID)
		if err != nil {
			return err
		}
		if err := e.publishOrderUpdated(ctx, canceled); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) publishOrderUpdated(ctx context.Context, order *ledgerv1.Order) error {
	return e.publish(ctx, reportv1.ExecutionReport{
		Ts:      order.UpdatedAt,
		Kind:    reportv1.KindOrderUpdated,
		OrderID: order.ID,
		Patch: &reportv1.OrderPatch{
			Status:          order.Status,
			ExecutedQty:     order.ExecutedQty.Clone(),
			CumulativeQuote: order.CumulativeQuote.Clone(),
			Fees:            ledgerv1.Fees{Maker: order.Fees.Maker.Clone(), Taker: order.Fees.Taker.Clone()},
			TsUpdated:       order.UpdatedAt,
		},
	})
}

func (e *Engine) publish(ctx context.Context, report reportv1.ExecutionReport) error {
	if err := e.sink.Publish(ctx, report); err != nil {
		return errors.Wrap(err, errors.ReportSinkError, "publish %s report", report.Kind)
	}
	return nil
}
