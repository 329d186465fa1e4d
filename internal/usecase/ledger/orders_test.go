package ledger

import (
	"testing"

	ledgerv1 "github.com/felis2803/TradeForge-sub000/internal/domain/ledger/v1"
	marketv1 "github.com/felis2803/TradeForge-sub000/internal/domain/market/v1"
	"github.com/felis2803/TradeForge-sub000/pkg/errors"
	"github.com/felis2803/TradeForge-sub000/pkg/logger"
	"github.com/felis2803/TradeForge-sub000/pkg/numeric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledgerFixture struct {
	state    *State
	accounts *Accounts
	orders   *Orders
}

func newFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	log, err := logger.NewLogger()
	require.NoError(t, err)

	state, err := NewState([]marketv1.SymbolConfig{{
		Name:        "BTC-USDT",
		Base:        "BTC",
		Quote:       "USDT",
		PriceScale:  2,
		QtyScale:    3,
		MakerFeeBps: 10,
		TakerFeeBps: 20,
	}})
	require.NoError(t, err)

	accounts := NewAccounts(state, log)
	options := DefaultOrdersOptions()
	options.FallbackRefPrices = map[string]string{"BTC-USDT": "30000"}
	orders := NewOrders(state, accounts, options, log)
	return &ledgerFixture{state: state, accounts: accounts, orders: orders}
}

func (f *ledgerFixture) fundedAccount(t *testing.T, usdt, btc string) ledgerv1.AccountID {
	t.Helper()
	id := f.accounts.CreateAccount()
	if usdt != "" {
		require.NoError(t, f.accounts.Deposit(id, "USDT", usdt))
	}
	if btc != "" {
		require.NoError(t, f.accounts.Deposit(id, "BTC", btc))
	}
	return id
}

func (f *ledgerFixture) balance(t *testing.T, id ledgerv1.AccountID, currency string) ledgerv1.Balance {
	t.Helper()
	balances, err := f.accounts.BalancesSnapshot(id)
	require.NoError(t, err)
	return balances[currency]
}

func TestNewState_RejectsConflictingCurrencyScales(t *testing.T) {
	_, err := NewState([]marketv1.SymbolConfig{
		{Name: "BTC-USDT", Base: "BTC", Quote: "USDT", PriceScale: 2, QtyScale: 3},
		{Name: "ETH-USDT", Base: "ETH", Quote: "USDT", PriceScale: 4, QtyScale: 3},
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ValidationError))
}

func TestDeposit_UnknownCurrencyAndNegativeAmount(t *testing.T) {
	f := newFixture(t)
	id := f.accounts.CreateAccount()

	err := f.accounts.Deposit(id, "DOGE", "1")
	assert.True(t, errors.IsCode(err, errors.NotFoundError))

	err = f.accounts.Deposit(id, "USDT", "-5")
	assert.True(t, errors.IsCode(err, errors.ValidationError))
}

func TestPlaceOrder_LimitBuyReservesNotionalPlusMaxFee(t *testing.T) {
	f := newFixture(t)
	id := f.fundedAccount(t, "100000", "")

	order, err := f.orders.PlaceOrder(ledgerv1.PlaceOrderRequest{
		AccountID: id,
		Symbol:    "BTC-USDT",
		Side:      marketv1.SideBuy,
		Type:      marketv1.OrderTypeLimit,
		Qty:       "1",
		Price:     "30000",
	})
	require.NoError(t, err)

	// 30000 notional plus the worse fee rate (20 bps) on it.
	assert.Equal(t, "USDT", order.Reserved.Currency)
	assert.Equal(t, "30060.00", numeric.Format(order.Reserved.Total, 2))

	balance := f.balance(t, id, "USDT")
	assert.Equal(t, "69940.00", numeric.Format(balance.Free, 2))
	assert.Equal(t, "30060.00", numeric.Format(balance.Locked, 2))
}

func TestPlaceOrder_SellReservesBaseQty(t *testing.T) {
	f := newFixture(t)
	id := f.fundedAccount(t, "", "2")

	order, err := f.orders.PlaceOrder(ledgerv1.PlaceOrderRequest{
		AccountID: id,
		Symbol:    "BTC-USDT",
		Side:      marketv1.SideSell,
		Type:      marketv1.OrderTypeLimit,
		Qty:       "1.5",
		Price:     "30000",
	})
	require.NoError(t, err)

	assert.Equal(t, "BTC", order.Reserved.Currency)
	assert.Equal(t, "1.500", numeric.Format(order.Reserved.Total, 3))
}

func TestPlaceOrder_MarketBuyUsesFallbackWithHeadroom(t *testing.T) {
	f := newFixture(t)
	id := f.fundedAccount(t, "100000", "")

	order, err := f.orders.PlaceOrder(ledgerv1.PlaceOrderRequest{
		AccountID: id,
		Symbol:    "BTC-USDT",
		Side:      marketv1.SideBuy,
		Type:      marketv1.OrderTypeMarket,
		Qty:       "1",
	})
	require.NoError(t, err)

	// Fallback price padded 5% plus the worse fee rate on the estimate.
	assert.Equal(t, "31563.00", numeric.Format(order.Reserved.Total, 2))
}

func TestPlaceOrder_StopMarketBuyReservesAtTriggerPrice(t *testing.T) {
	f := newFixture(t)
	id := f.fundedAccount(t, "100000", "")

	order, err := f.orders.PlaceOrder(ledgerv1.PlaceOrderRequest{
		AccountID:        id,
		Symbol:           "BTC-USDT",
		Side:             marketv1.SideBuy,
		Type:             marketv1.OrderTypeStopMarket,
		Qty:              "1",
		TriggerPrice:     "32000",
		TriggerDirection: marketv1.TriggerDirectionUp,
	})
	require.NoError(t, err)

	// Trigger price 32000 padded 5%, plus 20 bps on the estimate.
	assert.Equal(t, "33667.20", numeric.Format(order.Reserved.Total, 2))
	assert.Contains(t, f.state.StopOrderIDs(), order.ID)
	assert.NotContains(t, f.state.OpenOrderIDs(), order.ID)
}

func TestPlaceOrder_ValidationErrors(t *testing.T) {
	f := newFixture(t)
	id := f.fundedAccount(t, "100000", "1")

	tests := []struct {
		name string
		req  ledgerv1.PlaceOrderRequest
		code errors.ErrorCode
	}{
		{
			"zero qty",
			ledgerv1.PlaceOrderRequest{AccountID: id, Symbol: "BTC-USDT", Side: marketv1.SideBuy, Type: marketv1.OrderTypeLimit, Qty: "0", Price: "1"},
			errors.ValidationError,
		},
		{
			"limit without price",
			ledgerv1.PlaceOrderRequest{AccountID: id, Symbol: "BTC-USDT", Side: marketv1.SideBuy, Type: marketv1.OrderTypeLimit, Qty: "1"},
			errors.ValidationError,
		},
		{
			"market with price",
			ledgerv1.PlaceOrderRequest{AccountID: id, Symbol: "BTC-USDT", Side: marketv1.SideBuy, Type: marketv1.OrderTypeMarket, Qty: "1", Price: "30000"},
			errors.ValidationError,
		},
		{
			"stop without trigger",
			ledgerv1.PlaceOrderRequest{AccountID: id, Symbol: "BTC-USDT", Side: marketv1.SideBuy, Type: marketv1.OrderTypeStopMarket, Qty: "1"},
			errors.ValidationError,
		},
		{
			"non-stop with trigger",
			ledgerv1.PlaceOrderRequest{AccountID: id, Symbol: "BTC-USDT", Side: marketv1.SideBuy, Type: marketv1.OrderTypeLimit, Qty: "1", Price: "30000", TriggerPrice: "29000"},
			errors.ValidationError,
		},
		{
			"excess qty precision",
			ledgerv1.PlaceOrderRequest{AccountID: id, Symbol: "BTC-USDT", Side: marketv1.SideBuy, Type: marketv1.OrderTypeLimit, Qty: "0.0001", Price: "30000"},
			errors.ValidationError,
		},
		{
			"unknown symbol",
			ledgerv1.PlaceOrderRequest{AccountID: id, Symbol: "ETH-USDT", Side: marketv1.SideBuy, Type: marketv1.OrderTypeLimit, Qty: "1", Price: "30000"},
			errors.NotFoundError,
		},
		{
			"unknown account",
			ledgerv1.PlaceOrderRequest{AccountID: 99, Symbol: "BTC-USDT", Side: marketv1.SideBuy, Type: marketv1.OrderTypeLimit, Qty: "1", Price: "30000"},
			errors.NotFoundError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders.PlaceOrder(tt.req)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestPlaceOrder_InsufficientFundsLeavesBalancesUntouched(t *testing.T) {
	f := newFixture(t)
	id := f.fundedAccount(t, "100", "")

	_, err := f.orders.PlaceOrder(ledgerv1.PlaceOrderRequest{
		AccountID: id,
		Symbol:    "BTC-USDT",
		Side:      marketv1.SideBuy,
		Type:      marketv1.OrderTypeLimit,
		Qty:       "1",
		Price:     "30000",
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.InsufficientFundsError))

	balance := f.balance(t, id, "USDT")
	assert.Equal(t, "100.00", numeric.Format(balance.Free, 2))
	assert.True(t, balance.Locked.IsZero())
	assert.Empty(t, f.state.OpenOrderIDs())
}

func TestCancelOrder_ReleasesRemainingReservation(t *testing.T) {
	f := newFixture(t)
	id := f.fundedAccount(t, "100000", "")

	order, err := f.orders.PlaceOrder(ledgerv1.PlaceOrderRequest{
		AccountID: id,
		Symbol:    "BTC-USDT",
		Side:      marketv1.SideBuy,
		Type:      marketv1.OrderTypeLimit,
		Qty:       "1",
		Price:     "30000",
	})
	require.NoError(t, err)

	canceled, err := f.orders.CancelOrder(order.ID)
	require.NoError(t, err)
	assert.Equal(t, marketv1.OrderStatusCanceled, canceled.Status)
	assert.True(t, canceled.Reserved.Remaining.IsZero())

	balance := f.balance(t, id, "USDT")
	assert.Equal(t, "100000.00", numeric.Format(balance.Free, 2))
	assert.True(t, balance.Locked.IsZero())

	// A second cancel reports not found: the order is terminal.
	_, err = f.orders.CancelOrder(order.ID)
	assert.True(t, errors.IsCode(err, errors.NotFoundError))
}

func TestApplyFill_PartialThenFull(t *testing.T) {
	f := newFixture(t)
	id := f.fundedAccount(t, "100000", "")

	order, err := f.orders.PlaceOrder(ledgerv1.PlaceOrderRequest{
		AccountID: id,
		Symbol:    "BTC-USDT",
		Side:      marketv1.SideBuy,
		Type:      marketv1.OrderTypeLimit,
		Qty:       "1",
		Price:     "30000",
	})
	require.NoError(t, err)

	partial, err := f.orders.ApplyFill(order.ID, ledgerv1.Fill{
		Ts:        1000,
		Price:     numeric.MustParse("29900", 2),
		Qty:       numeric.MustParse("0.4", 3),
		Liquidity: marketv1.LiquidityMaker,
		TradeRef:  "t-1",
	})
	require.NoError(t, err)
	assert.Equal(t, marketv1.OrderStatusPartiallyFilled, partial.Status)
	assert.Equal(t, "0.400", numeric.Format(partial.ExecutedQty, 3))
	assert.Equal(t, "0.400", numeric.Format(f.balance(t, id, "BTC").Free, 3))

	full, err := f.orders.ApplyFill(order.ID, ledgerv1.Fill{
		Ts:        2000,
		Price:     numeric.MustParse("29900", 2),
		Qty:       numeric.MustParse("0.6", 3),
		Liquidity: marketv1.LiquidityMaker,
		TradeRef:  "t-2",
	})
	require.NoError(t, err)
	assert.Equal(t, marketv1.OrderStatusFilled, full.Status)
	assert.True(t, full.Reserved.Remaining.IsZero())
	assert.NotContains(t, f.state.OpenOrderIDs(), order.ID)

	// 29900 spent plus 10 bps maker fee, the rest of the reservation back.
	balance := f.balance(t, id, "USDT")
	assert.Equal(t, "70070.10", numeric.Format(balance.Free, 2))
	assert.True(t, balance.Locked.IsZero())
	assert.Equal(t, "29.90", numeric.Format(full.Fees.Maker, 2))
	assert.Equal(t, "29900.00", numeric.Format(full.CumulativeQuote, 2))
}

func TestApplyFill_OverrunIsInternalConsistencyError(t *testing.T) {
	f := newFixture(t)
	id := f.fundedAccount(t, "100000", "")

	order, err := f.orders.PlaceOrder(ledgerv1.PlaceOrderRequest{
		AccountID: id,
		Symbol:    "BTC-USDT",
		Side:      marketv1.SideBuy,
		Type:      marketv1.OrderTypeLimit,
		Qty:       "1",
		Price:     "30000",
	})
	require.NoError(t, err)

	_, err = f.orders.ApplyFill(order.ID, ledgerv1.Fill{
		Ts:        1000,
		Price:     numeric.MustParse("29900", 2),
		Qty:       numeric.MustParse("1.5", 3),
		Liquidity: marketv1.LiquidityMaker,
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.InternalConsistencyError))
}

func TestSellFill_CreditsQuoteMinusFee(t *testing.T) {
	f := newFixture(t)
	id := f.fundedAccount(t, "", "1")

	order, err := f.orders.PlaceOrder(ledgerv1.PlaceOrderRequest{
		AccountID: id,
		Symbol:    "BTC-USDT",
		Side:      marketv1.SideSell,
		Type:      marketv1.OrderTypeLimit,
		Qty:       "1",
		Price:     "30000",
	})
	require.NoError(t, err)

	_, err = f.orders.ApplyFill(order.ID, ledgerv1.Fill{
		Ts:        1000,
		Price:     numeric.MustParse("30000", 2),
		Qty:       numeric.MustParse("1", 3),
		Liquidity: marketv1.LiquidityTaker,
	})
	require.NoError(t, err)

	// 30000 proceeds minus 20 bps taker fee.
	assert.Equal(t, "29940.00", numeric.Format(f.balance(t, id, "USDT").Free, 2))
	assert.True(t, f.balance(t, id, "BTC").Free.IsZero())
	assert.True(t, f.balance(t, id, "BTC").Locked.IsZero())
}

func TestActivateStop_MovesOrderIntoOpenIndex(t *testing.T) {
	f := newFixture(t)
	id := f.fundedAccount(t, "100000", "")

	order, err := f.orders.PlaceOrder(ledgerv1.PlaceOrderRequest{
		AccountID:        id,
		Symbol:           "BTC-USDT",
		Side:             marketv1.SideBuy,
		Type:             marketv1.OrderTypeStopMarket,
		Qty:              "1",
		TriggerPrice:     "31000",
		TriggerDirection: marketv1.TriggerDirectionUp,
	})
	require.NoError(t, err)

	activated, err := f.orders.ActivateStop(order.ID, 5000)
	require.NoError(t, err)
	assert.True(t, activated.Activated)
	assert.Equal(t, marketv1.OrderTypeMarket, activated.EffectiveType())
	assert.Contains(t, f.state.OpenOrderIDs(), order.ID)
	assert.Empty(t, f.state.StopOrderIDs())

	_, err = f.orders.ActivateStop(order.ID, 5000)
	assert.True(t, errors.IsCode(err, errors.InternalConsistencyError))
}

func TestListOpenOrders_FiltersAndOrdersByPlacement(t *testing.T) {
	f := newFixture(t)
	first := f.fundedAccount(t, "100000", "1")
	second := f.fundedAccount(t, "100000", "")

	a, err := f.orders.PlaceOrder(ledgerv1.PlaceOrderRequest{
		AccountID: first, Symbol: "BTC-USDT", Side: marketv1.SideSell,
		Type: marketv1.OrderTypeLimit, Qty: "1", Price: "31000",
	})
	require.NoError(t, err)
	_, err = f.orders.PlaceOrder(ledgerv1.PlaceOrderRequest{
		AccountID: second, Symbol: "BTC-USDT", Side: marketv1.SideBuy,
		Type: marketv1.OrderTypeLimit, Qty: "1", Price: "29000",
	})
	require.NoError(t, err)
	b, err := f.orders.PlaceOrder(ledgerv1.PlaceOrderRequest{
		AccountID: first, Symbol: "BTC-USDT", Side: marketv1.SideBuy,
		Type: marketv1.OrderTypeStopMarket, Qty: "1",
		TriggerPrice: "32000", TriggerDirection: marketv1.TriggerDirectionUp,
	})
	require.NoError(t, err)

	open, err := f.orders.ListOpenOrders(first, "")
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, a.ID, open[0].ID)
	assert.Equal(t, b.ID, open[1].ID)
}

func TestAdvanceTime_Monotonic(t *testing.T) {
	f := newFixture(t)
	f.state.AdvanceTime(1000)
	f.state.AdvanceTime(500)
	assert.Equal(t, marketv1.Timestamp(1000), f.state.Now())
	f.state.AdvanceTime(1500)
	assert.Equal(t, marketv1.Timestamp(1500), f.state.Now())
}
