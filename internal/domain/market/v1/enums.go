package marketv1

import "github.com/felis2803/TradeForge-sub000/pkg/errors"

// Side represents the direction of an order or trade.
type Side string

const (
	// SideBuy represents a buy order.
	SideBuy Side = "BUY"
	// SideSell represents a sell order.
	SideSell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// ParseSide converts a string into a Side.
func ParseSide(value string) (Side, error) {
	switch Side(value) {
	case SideBuy, SideSell:
		return Side(value), nil
	}
	return "", errors.NewValidation("unsupported side %q", value)
}

// OrderType represents the type of order.
type OrderType string

const (
	// OrderTypeMarket represents a market order.
	OrderTypeMarket OrderType = "MARKET"
	// OrderTypeLimit represents a limit order.
	OrderTypeLimit OrderType = "LIMIT"
	// OrderTypeStopMarket represents a stop order that becomes a market order on trigger.
	OrderTypeStopMarket OrderType = "STOP_MARKET"
	// OrderTypeStopLimit represents a stop order that becomes a limit order on trigger.
	OrderTypeStopLimit OrderType = "STOP_LIMIT"
)

// IsStop reports whether the type is held in the stop-order index before activation.
func (t OrderType) IsStop() bool {
	return t == OrderTypeStopMarket || t == OrderTypeStopLimit
}

// Activated returns how the order behaves once triggered.
func (t OrderType) Activated() OrderType {
	switch t {
	case OrderTypeStopMarket:
		return OrderTypeMarket
	case OrderTypeStopLimit:
		return OrderTypeLimit
	}
	return t
}

// ParseOrderType converts a string into an OrderType.
func ParseOrderType(value string) (OrderType, error) {
	switch OrderType(value) {
	case OrderTypeMarket, OrderTypeLimit, OrderTypeStopMarket, OrderTypeStopLimit:
		return OrderType(value), nil
	}
	return "", errors.NewValidation("unsupported order type %q", value)
}

// TimeInForce represents how long an order stays eligible for matching.
type TimeInForce string

const (
	// TimeInForceGTC keeps the order open until filled or canceled.
	TimeInForceGTC TimeInForce = "GTC"
	// TimeInForceIOC cancels any unfilled remainder after the order's first matching opportunity.
	TimeInForceIOC TimeInForce = "IOC"
)

// ParseTimeInForce converts a string into a TimeInForce. Empty input defaults to GTC.
func ParseTimeInForce(value string) (TimeInForce, error) {
	switch TimeInForce(value) {
	case "":
		return TimeInForceGTC, nil
	case TimeInForceGTC, TimeInForceIOC:
		return TimeInForce(value), nil
	}
	return "", errors.NewValidation("unsupported time in force %q", value)
}

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	// OrderStatusOpen represents an order eligible for matching (or pending activation for stops).
	OrderStatusOpen OrderStatus = "OPEN"
	// OrderStatusPartiallyFilled represents an order with some executed quantity remaining open.
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	// OrderStatusFilled represents a fully executed order. Terminal.
	OrderStatusFilled OrderStatus = "FILLED"
	// OrderStatusCanceled represents an order canceled explicitly or by IOC. Terminal.
	OrderStatusCanceled OrderStatus = "CANCELED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCanceled
}

// TriggerDirection represents which price crossing activates a stop order.
type TriggerDirection string

const (
	// TriggerDirectionUp activates when the trade price reaches or exceeds the trigger.
	TriggerDirectionUp TriggerDirection = "UP"
	// TriggerDirectionDown activates when the trade price reaches or falls below the trigger.
	TriggerDirectionDown TriggerDirection = "DOWN"
)

// ParseTriggerDirection converts a string into a TriggerDirection.
func ParseTriggerDirection(value string) (TriggerDirection, error) {
	switch TriggerDirection(value) {
	case TriggerDirectionUp, TriggerDirectionDown:
		return TriggerDirection(value), nil
	}
	return "", errors.NewValidation("unsupported trigger direction %q", value)
}

// Liquidity represents the role of a fill.
type Liquidity string

const (
	// LiquidityMaker supplied resting liquidity.
	LiquidityMaker Liquidity = "MAKER"
	// LiquidityTaker consumed liquidity.
	LiquidityTaker Liquidity = "TAKER"
)

// DepthSide represents which half of the book a depth diff applies to.
type DepthSide string

const (
	// DepthSideBid applies to the bid half of the book.
	DepthSideBid DepthSide = "BID"
	// DepthSideAsk applies to the ask half of the book.
	DepthSideAsk DepthSide = "ASK"
)

// ParseDepthSide converts a string into a DepthSide.
func ParseDepthSide(value string) (DepthSide, error) {
	switch DepthSide(value) {
	case DepthSideBid, DepthSideAsk:
		return DepthSide(value), nil
	}
	return "", errors.NewValidation("unsupported depth side %q", value)
}
