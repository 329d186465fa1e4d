package ledger

import (
	"sort"

	ledgerv1 "github.com/felis2803/TradeForge-sub000/internal/domain/ledger/v1"
	marketv1 "github.com/felis2803/TradeForge-sub000/internal/domain/market/v1"
	"github.com/felis2803/TradeForge-sub000/pkg/errors"
	"github.com/felis2803/TradeForge-sub000/pkg/logger"
	"github.com/felis2803/TradeForge-sub000/pkg/numeric"
)

// ReferencePricer supplies the best-known counter price for a symbol, used to
// estimate reservations for MARKET orders. Absent prices fall back to the
// configured reference price.
type ReferencePricer interface {
	ReferencePrice(symbol string, side marketv1.Side) (numeric.ScaledInt, bool)
}

// OrdersOptions tunes reservation estimation.
type OrdersOptions struct {
	// MarketReserveHeadroomBps pads the MARKET BUY reservation estimate so
	// fills above the reference price stay covered.
	MarketReserveHeadroomBps int64
	// FallbackRefPrices maps symbol to a decimal price string used when no
	// best-known price is available at placement time.
	FallbackRefPrices map[string]string
}

// DefaultOrdersOptions returns the default reservation tuning.
func DefaultOrdersOptions() OrdersOptions {
	return OrdersOptions{MarketReserveHeadroomBps: 500}
}

// Orders implements the order lifecycle: placement, cancellation and fill
// application.
type Orders struct {
	state    *State
	accounts *Accounts
	pricer   ReferencePricer
	options  OrdersOptions
	logger   *logger.Logger
}

// NewOrders creates the orders component over the given ledger state.
func NewOrders(state *State, accounts *Accounts, options OrdersOptions, log *logger.Logger) *Orders {
	return &Orders{
		state:    state,
		accounts: accounts,
		options:  options,
		logger:   log,
	}
}

// SetReferencePricer wires the engine's book as the best-known price source.
func (o *Orders) SetReferencePricer(pricer ReferencePricer) {
	o.pricer = pricer
}

// PlaceOrder validates the request, reserves funds atomically and registers
// the order. Stop orders go to the stop index and stay out of direct matching
// until activation. Returns an immutable snapshot of the new order.
func (o *Orders) PlaceOrder(req ledgerv1.PlaceOrderRequest) (*ledgerv1.Order, error) {
	cfg, err := o.state.Symbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	if _, err := o.state.account(req.AccountID); err != nil {
		return nil, err
	}

	tif := req.TimeInForce
	if tif == "" {
		tif = marketv1.TimeInForceGTC
	}

	qty, err := numeric.Parse(req.Qty, cfg.QtyScale)
	if err != nil {
		return nil, err
	}
	if qty.Sign() <= 0 {
		return nil, errors.NewValidation("order qty %s must be positive", req.Qty)
	}

	var price *numeric.ScaledInt
	switch req.Type {
	case marketv1.OrderTypeLimit, marketv1.OrderTypeStopLimit:
		if req.Price == "" {
			return nil, errors.NewValidation("%s order requires a price", req.Type)
		}
		parsed, err := numeric.Parse(req.Price, cfg.PriceScale)
		if err != nil {
			return nil, err
		}
		if parsed.Sign() <= 0 {
			return nil, errors.NewValidation("order price %s must be positive", req.Price)
		}
		price = &parsed
	case marketv1.OrderTypeMarket, marketv1.OrderTypeStopMarket:
		if req.Price != "" {
			return nil, errors.NewValidation("%s order does not take a price", req.Type)
		}
	default:
		return nil, errors.NewValidation("unsupported order type %q", req.Type)
	}

	var triggerPrice *numeric.ScaledInt
	var triggerDirection *marketv1.TriggerDirection
	if req.Type.IsStop() {
		if req.TriggerPrice == "" {
			return nil, errors.NewValidation("%s order requires a trigger price", req.Type)
		}
		parsed, err := numeric.Parse(req.TriggerPrice, cfg.PriceScale)
		if err != nil {
			return nil, err
		}
		if parsed.Sign() <= 0 {
			return nil, errors.NewValidation("trigger price %s must be positive", req.TriggerPrice)
		}
		direction, err := marketv1.ParseTriggerDirection(string(req.TriggerDirection))
		if err != nil {
			return nil, err
		}
		triggerPrice = &parsed
		triggerDirection = &direction
	} else if req.TriggerPrice != "" || req.TriggerDirection != "" {
		return nil, errors.NewValidation("%s order does not take trigger parameters", req.Type)
	}

	reservation, err := o.computeReservation(cfg, req.Side, qty, price, triggerPrice)
	if err != nil {
		return nil, err
	}

	// The reservation is the single step that can fail on funds; nothing is
	// mutated before it succeeds.
	if err := o.accounts.reserve(req.AccountID, reservation.Currency, reservation.Total); err != nil {
		return nil, err
	}

	id := ledgerv1.OrderID(o.state.nextOrderID)
	o.state.nextOrderID++
	now := o.state.Now()

	order := &ledgerv1.Order{
		ID:               id,
		AccountID:        req.AccountID,
		Symbol:           req.Symbol,
		Side:             req.Side,
		Type:             req.Type,
		TimeInForce:      tif,
		Qty:              qty,
		Price:            price,
		TriggerPrice:     triggerPrice,
		TriggerDirection: triggerDirection,
		Status:           marketv1.OrderStatusOpen,
		ExecutedQty:      numeric.Zero(),
		CumulativeQuote:  numeric.Zero(),
		Fees:             ledgerv1.Fees{Maker: numeric.Zero(), Taker: numeric.Zero()},
		Reserved:         reservation,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	o.state.orders[id] = order
	if req.Type.IsStop() {
		o.state.stopOrders[id] = struct{}{}
	} else {
		o.state.openOrders[id] = struct{}{}
	}

	o.logger.Debug("order placed",
		logger.Field{Key: "orderId", Value: id},
		logger.Field{Key: "accountId", Value: req.AccountID},
		logger.Field{Key: "symbol", Value: req.Symbol},
		logger.Field{Key: "side", Value: req.Side},
		logger.Field{Key: "type", Value: req.Type},
		logger.Field{Key: "reserved", Value: reservation.Total.String()},
	)

	return order.Clone(), nil
}

// computeReservation estimates the worst-case funds an order can consume.
// BUY locks quote currency for notional plus fee; SELL locks the base qty.
// Market-type BUY orders estimate against the trigger price when present,
// else the best-known ask, else the configured fallback.
func (o *Orders) computeReservation(
	cfg marketv1.SymbolConfig,
	side marketv1.Side,
	qty numeric.ScaledInt,
	price *numeric.ScaledInt,
	triggerPrice *numeric.ScaledInt,
) (ledgerv1.Reservation, error) {
	if side == marketv1.SideSell {
		return ledgerv1.Reservation{
			Currency:  cfg.Base,
			Total:     qty.Clone(),
			Remaining: qty.Clone(),
		}, nil
	}

	var refPrice numeric.ScaledInt
	switch {
	case price != nil:
		refPrice = *price
	case triggerPrice != nil:
		refPrice = *triggerPrice
	default:
		ref, err := o.marketReferencePrice(cfg)
		if err != nil {
			return ledgerv1.Reservation{}, err
		}
		refPrice = ref
	}

	notional := numeric.Notional(refPrice, qty, cfg.QtyScale)
	if price == nil && o.options.MarketReserveHeadroomBps > 0 {
		notional = numeric.ApplyBps(notional, numeric.FeeDenominator+o.options.MarketReserveHeadroomBps)
	}
	total := notional.Add(numeric.Fee(notional, cfg.MaxFeeBps()))

	return ledgerv1.Reservation{
		Currency:  cfg.Quote,
		Total:     total,
		Remaining: total.Clone(),
	}, nil
}

// marketReferencePrice resolves the estimate price for a MARKET BUY: the
// best-known ask when available, else the configured fallback.
func (o *Orders) marketReferencePrice(cfg marketv1.SymbolConfig) (numeric.ScaledInt, error) {
	if o.pricer != nil {
		if price, ok := o.pricer.ReferencePrice(cfg.Name, marketv1.SideBuy); ok {
			return price, nil
		}
	}
	if fallback, ok := o.options.FallbackRefPrices[cfg.Name]; ok {
		return numeric.Parse(fallback, cfg.PriceScale)
	}
	return numeric.ScaledInt{}, errors.NewValidation(
		"no reference price available for MARKET order on %s", cfg.Name,
	)
}

// GetOrder returns a copy of the order.
func (o *Orders) GetOrder(id ledgerv1.OrderID) (*ledgerv1.Order, error) {
	order, err := o.state.order(id)
	if err != nil {
		return nil, err
	}
	return order.Clone(), nil
}

// ListOpenOrders returns copies of the account's non-terminal orders,
// pending stops included, optionally filtered by symbol. Placement order.
func (o *Orders) ListOpenOrders(accountID ledgerv1.AccountID, symbol string) ([]*ledgerv1.Order, error) {
	if _, err := o.state.account(accountID); err != nil {
		return nil, err
	}

	ids := append(o.state.OpenOrderIDs(), o.state.StopOrderIDs()...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var result []*ledgerv1.Order
	for _, id := range ids {
		order := o.state.orders[id]
		if order.AccountID != accountID {
			continue
		}
		if symbol != "" && order.Symbol != symbol {
			continue
		}
		result = append(result, order.Clone())
	}
	return result, nil
}

// CancelOrder cancels a non-terminal order, releasing its remaining
// reservation. Unknown or already terminal orders report NotFoundError.
func (o *Orders) CancelOrder(id ledgerv1.OrderID) (*ledgerv1.Order, error) {
	order, err := o.state.order(id)
	if err != nil {
		return nil, err
	}
	if order.IsTerminal() {
		return nil, errors.NewNotFound("order %d is already terminal (%s)", id, order.Status)
	}

	if err := o.releaseRemaining(order); err != nil {
		return nil, err
	}

	order.Status = marketv1.OrderStatusCanceled
	order.UpdatedAt = o.state.Now()
	delete(o.state.openOrders, id)
	delete(o.state.stopOrders, id)

	o.logger.Debug("order canceled",
		logger.Field{Key: "orderId", Value: id},
		logger.Field{Key: "executedQty", Value: order.ExecutedQty.String()},
	)

	return order.Clone(), nil
}

// ActivateStop flips a pending stop order into the active matching pool.
func (o *Orders) ActivateStop(id ledgerv1.OrderID, ts marketv1.Timestamp) (*ledgerv1.Order, error) {
	order, err := o.state.order(id)
	if err != nil {
		return nil, err
	}
	if !order.Type.IsStop() || order.Activated {
		return nil, errors.NewInternalConsistency("order %d is not a pending stop order", id)
	}

	order.Activated = true
	order.UpdatedAt = ts
	delete(o.state.stopOrders, id)
	o.state.openOrders[id] = struct{}{}

	return order.Clone(), nil
}

// ApplyFill applies one execution to an order: records the fill, accrues the
// fee, debits the reservation, settles balances and advances the status.
// Engine-internal. A fill that overruns the order quantity or the reservation
// is an internal-consistency failure, never silently absorbed.
func (o *Orders) ApplyFill(id ledgerv1.OrderID, fill ledgerv1.Fill) (*ledgerv1.Order, error) {
	order, err := o.state.order(id)
	if err != nil {
		return nil, err
	}
	if order.IsTerminal() {
		return nil, errors.NewInternalConsistency("fill applied to terminal order %d", id)
	}
	if fill.Qty.Sign() <= 0 {
		return nil, errors.NewInternalConsistency("fill qty %s on order %d is not positive", fill.Qty, id)
	}
	if fill.Qty.Cmp(order.Remaining()) > 0 {
		return nil, errors.NewInternalConsistency(
			"fill qty %s exceeds remaining %s on order %d",
			fill.Qty, order.Remaining(), id,
		)
	}

	cfg, err := o.state.Symbol(order.Symbol)
	if err != nil {
		return nil, err
	}

	notional := numeric.Notional(fill.Price, fill.Qty, cfg.QtyScale)
	fee := numeric.Fee(notional, cfg.FeeBps(fill.Liquidity))

	// Cost in the reserved currency: quote for BUY, base qty for SELL.
	var cost numeric.ScaledInt
	var proceedsCurrency string
	var proceeds numeric.ScaledInt
	if order.Side == marketv1.SideBuy {
		cost = notional.Add(fee)
		proceedsCurrency = cfg.Base
		proceeds = fill.Qty.Clone()
	} else {
		cost = fill.Qty.Clone()
		proceedsCurrency = cfg.Quote
		proceeds = notional.Sub(fee)
	}

	remaining := order.Reserved.Remaining.Sub(cost)
	if remaining.IsNegative() {
		return nil, errors.NewInternalConsistency(
			"order %d reservation overdrawn: remaining %s, fill cost %s",
			id, order.Reserved.Remaining, cost,
		)
	}

	if err := o.accounts.settleFromLocked(order.AccountID, order.Reserved.Currency, cost, proceedsCurrency, proceeds); err != nil {
		return nil, err
	}
	order.Reserved.Remaining = remaining

	fill.OrderID = id
	fill.Side = order.Side
	order.Fills = append(order.Fills, fill)
	order.ExecutedQty = order.ExecutedQty.Add(fill.Qty)
	order.CumulativeQuote = order.CumulativeQuote.Add(notional)
	if fill.Liquidity == marketv1.LiquidityMaker {
		order.Fees.Maker = order.Fees.Maker.Add(fee)
	} else {
		order.Fees.Taker = order.Fees.Taker.Add(fee)
	}
	order.UpdatedAt = fill.Ts

	if order.ExecutedQty.Cmp(order.Qty) == 0 {
		if err := o.releaseRemaining(order); err != nil {
			return nil, err
		}
		order.Status = marketv1.OrderStatusFilled
		delete(o.state.openOrders, id)
		delete(o.state.stopOrders, id)
	} else {
		order.Status = marketv1.OrderStatusPartiallyFilled
	}

	return order.Clone(), nil
}

// releaseRemaining unlocks the unused part of the order's reservation.
func (o *Orders) releaseRemaining(order *ledgerv1.Order) error {
	if order.Reserved.Remaining.Sign() > 0 {
		if err := o.accounts.release(order.AccountID, order.Reserved.Currency, order.Reserved.Remaining); err != nil {
			return err
		}
	}
	order.Reserved.Remaining = numeric.Zero()
	return nil
}
