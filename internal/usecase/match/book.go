package match

import (
	marketv1 "github.com/felis2803/TradeForge-sub000/internal/domain/market/v1"
	"github.com/felis2803/TradeForge-sub000/pkg/numeric"
)

type level struct {
	price numeric.ScaledInt
	qty   numeric.ScaledInt
}

// Book tracks the best-known bid/ask levels of one symbol from depth diffs,
// plus the last trade print. It supplies reference prices for stop-trigger
// checks and MARKET-order reservation estimates; it never triggers fills by
// itself.
type Book struct {
	symbol string
	bids   map[string]level
	asks   map[string]level

	lastTrade    numeric.ScaledInt
	hasLastTrade bool
}

// NewBook creates an empty book for the given symbol.
func NewBook(symbol string) *Book {
	return &Book{
		symbol: symbol,
		bids:   make(map[string]level),
		asks:   make(map[string]level),
	}
}

// ApplyDepth applies one level diff. Qty at or below zero removes the level.
func (b *Book) ApplyDepth(event *marketv1.DepthEvent) {
	side := b.bids
	if event.Side == marketv1.DepthSideAsk {
		side = b.asks
	}

	key := event.Price.String()
	if event.Qty.Sign() <= 0 {
		delete(side, key)
		return
	}
	side[key] = level{price: event.Price.Clone(), qty: event.Qty.Clone()}
}

// ApplyTrade records the last trade print as a reference price.
func (b *Book) ApplyTrade(event *marketv1.TradeEvent) {
	b.lastTrade = event.Price.Clone()
	b.hasLastTrade = true
}

// BestBid returns the highest bid level.
func (b *Book) BestBid() (numeric.ScaledInt, bool) {
	return bestOf(b.bids, func(candidate, best numeric.ScaledInt) bool {
		return candidate.Cmp(best) > 0
	})
}

// BestAsk returns the lowest ask level.
func (b *Book) BestAsk() (numeric.ScaledInt, bool) {
	return bestOf(b.asks, func(candidate, best numeric.ScaledInt) bool {
		return candidate.Cmp(best) < 0
	})
}

func bestOf(side map[string]level, better func(candidate, best numeric.ScaledInt) bool) (numeric.ScaledInt, bool) {
	var best numeric.ScaledInt
	found := false
	for _, l := range side {
		if !found || better(l.price, best) {
			best = l.price
			found = true
		}
	}
	if !found {
		return numeric.ScaledInt{}, false
	}
	return best.Clone(), true
}

// ReferencePrice implements ledger.ReferencePricer: the counter side's best
// level when available, else the last trade print.
func (b *Book) ReferencePrice(symbol string, side marketv1.Side) (numeric.ScaledInt, bool) {
	if symbol != b.symbol {
		return numeric.ScaledInt{}, false
	}

	if side == marketv1.SideBuy {
		if ask, ok := b.BestAsk(); ok {
			return ask, true
		}
	} else {
		if bid, ok := b.BestBid(); ok {
			return bid, true
		}
	}
	if b.hasLastTrade {
		return b.lastTrade.Clone(), true
	}
	return numeric.ScaledInt{}, false
}
