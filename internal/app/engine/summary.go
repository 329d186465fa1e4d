package engine

import (
	ledgerv1 "github.com/felis2803/TradeForge-sub000/internal/domain/ledger/v1"
	marketv1 "github.com/felis2803/TradeForge-sub000/internal/domain/market/v1"
	"github.com/felis2803/TradeForge-sub000/internal/usecase/replay"
	"github.com/felis2803/TradeForge-sub000/pkg/numeric"
)

// BalanceSummary is one currency position, formatted at the currency's scale.
type BalanceSummary struct {
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

// AccountSummary reports one account's final balances.
type AccountSummary struct {
	ID       ledgerv1.AccountID        `json:"id"`
	Balances map[string]BalanceSummary `json:"balances"`
}

// OrderTotals aggregates order outcomes over the run.
type OrderTotals struct {
	Placed          int    `json:"placed"`
	Filled          int    `json:"filled"`
	PartiallyFilled int    `json:"partiallyFilled"`
	Canceled        int    `json:"canceled"`
	Open            int    `json:"open"`
	PendingStops    int    `json:"pendingStops"`
	Fills           int    `json:"fills"`
	ExecutedQty     string `json:"executedQty"`
	Notional        string `json:"notional"`
	FeesPaid        string `json:"feesPaid"`
}

// RunSummary is the end-of-run report printed by the simulator.
type RunSummary struct {
	RunID    string                  `json:"runId"`
	Symbol   string                  `json:"symbol"`
	Symbols  []marketv1.SymbolConfig `json:"symbols"`
	Events   int64                   `json:"events"`
	LastTs   marketv1.Timestamp      `json:"lastTs"`
	Reason   replay.StopReason       `json:"reason"`
	Accounts []AccountSummary        `json:"accounts"`
	Orders   OrderTotals             `json:"orders"`
}

// Summary assembles the run summary from the final ledger state. Call after
// Done is closed.
func (e *Engine) Summary() (*RunSummary, error) {
	result, _ := e.Result()

	summary := &RunSummary{
		RunID:   e.runID,
		Symbol:  e.scenario.Symbol,
		Symbols: e.state.Symbols(),
		Events:  result.Events,
		LastTs:  result.LastTs,
		Reason:  result.Reason,
	}

	for _, id := range e.state.AccountIDs() {
		balances, err := e.accounts.BalancesSnapshot(id)
		if err != nil {
			return nil, err
		}
		account := AccountSummary{ID: id, Balances: make(map[string]BalanceSummary, len(balances))}
		for currency, balance := range balances {
			scale, err := e.state.CurrencyScale(currency)
			if err != nil {
				return nil, err
			}
			account.Balances[currency] = BalanceSummary{
				Free:   numeric.Format(balance.Free, scale),
				Locked: numeric.Format(balance.Locked, scale),
			}
		}
		summary.Accounts = append(summary.Accounts, account)
	}

	snapshot := e.state.Snapshot()
	executedQty := numeric.Zero()
	notional := numeric.Zero()
	fees := numeric.Zero()
	for _, order := range snapshot.Orders {
		summary.Orders.Placed++
		switch order.Status {
		case marketv1.OrderStatusFilled:
			summary.Orders.Filled++
		case marketv1.OrderStatusPartiallyFilled:
			summary.Orders.PartiallyFilled++
		case marketv1.OrderStatusCanceled:
			summary.Orders.Canceled++
		}
		summary.Orders.Fills += len(order.Fills)
		executedQty = executedQty.Add(order.ExecutedQty)
		notional = notional.Add(order.CumulativeQuote)
		fees = fees.Add(order.Fees.Maker).Add(order.Fees.Taker)
	}
	summary.Orders.Open = len(e.state.OpenOrderIDs())
	summary.Orders.PendingStops = len(e.state.StopOrderIDs())

	qtyScale := int32(0)
	quoteScale := int32(0)
	if cfg, err := e.state.Symbol(e.scenario.Symbol); err == nil {
		qtyScale = cfg.QtyScale
		if scale, err := e.state.CurrencyScale(cfg.Quote); err == nil {
			quoteScale = scale
		}
	}
	summary.Orders.ExecutedQty = numeric.Format(executedQty, qtyScale)
	summary.Orders.Notional = numeric.Format(notional, quoteScale)
	summary.Orders.FeesPaid = numeric.Format(fees, quoteScale)

	return summary, nil
}
