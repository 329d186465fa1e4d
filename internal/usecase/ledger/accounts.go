package ledger

import (
	ledgerv1 "github.com/felis2803/TradeForge-sub000/internal/domain/ledger/v1"
	"github.com/felis2803/TradeForge-sub000/pkg/errors"
	"github.com/felis2803/TradeForge-sub000/pkg/logger"
	"github.com/felis2803/TradeForge-sub000/pkg/numeric"
)

// Accounts implements deposits, balance snapshots and the reservation
// primitives the Orders component builds on.
type Accounts struct {
	state  *State
	logger *logger.Logger
}

// NewAccounts creates the accounts component over the given ledger state.
func NewAccounts(state *State, log *logger.Logger) *Accounts {
	return &Accounts{state: state, logger: log}
}

// CreateAccount allocates a fresh account with zero balances for every
// known currency.
func (a *Accounts) CreateAccount() ledgerv1.AccountID {
	id := ledgerv1.AccountID(a.state.nextAccountID)
	a.state.nextAccountID++

	account := &ledgerv1.Account{
		ID:        id,
		Balances:  make(map[string]*ledgerv1.Balance, len(a.state.currencyScales)),
		CreatedAt: a.state.Now(),
	}
	for currency := range a.state.currencyScales {
		account.Balances[currency] = &ledgerv1.Balance{}
	}
	a.state.accounts[id] = account

	return id
}

// Deposit credits a non-negative amount (a decimal string in the currency's
// scale) to the account's free balance.
func (a *Accounts) Deposit(id ledgerv1.AccountID, currency, amount string) error {
	account, err := a.state.account(id)
	if err != nil {
		return err
	}
	scale, err := a.state.CurrencyScale(currency)
	if err != nil {
		return err
	}
	value, err := numeric.Parse(amount, scale)
	if err != nil {
		return err
	}
	if value.IsNegative() {
		return errors.NewValidation("deposit amount %s is negative", amount)
	}

	balance := account.Balance(currency)
	balance.Free = balance.Free.Add(value)

	a.logger.Debug("deposit applied",
		logger.Field{Key: "accountId", Value: id},
		logger.Field{Key: "currency", Value: currency},
		logger.Field{Key: "amount", Value: amount},
	)
	return nil
}

// BalancesSnapshot returns a point-in-time copy of the account's balances.
func (a *Accounts) BalancesSnapshot(id ledgerv1.AccountID) (map[string]ledgerv1.Balance, error) {
	account, err := a.state.account(id)
	if err != nil {
		return nil, err
	}
	return account.SnapshotBalances(), nil
}

// reserve atomically moves amount from free to locked. This is the only path
// by which order placement can fail on funds.
func (a *Accounts) reserve(id ledgerv1.AccountID, currency string, amount numeric.ScaledInt) error {
	account, err := a.state.account(id)
	if err != nil {
		return err
	}
	balance := account.Balance(currency)
	if balance.Free.Cmp(amount) < 0 {
		return errors.NewInsufficientFunds(
			"account %d has %s free %s, needs %s",
			id, currency, balance.Free, amount,
		)
	}
	balance.Free = balance.Free.Sub(amount)
	balance.Locked = balance.Locked.Add(amount)
	return nil
}

// release moves amount back from locked to free. A release exceeding the
// locked balance means the reservation bookkeeping is corrupt.
func (a *Accounts) release(id ledgerv1.AccountID, currency string, amount numeric.ScaledInt) error {
	account, err := a.state.account(id)
	if err != nil {
		return err
	}
	balance := account.Balance(currency)
	if balance.Locked.Cmp(amount) < 0 {
		return errors.NewInternalConsistency(
			"account %d release of %s %s exceeds locked %s",
			id, currency, amount, balance.Locked,
		)
	}
	balance.Locked = balance.Locked.Sub(amount)
	balance.Free = balance.Free.Add(amount)
	return nil
}

// settleFromLocked debits cost from the locked balance of debitCurrency and
// credits proceeds to the free balance of creditCurrency. One fill's
// settlement is a single atomic step with respect to the ledger.
func (a *Accounts) settleFromLocked(
	id ledgerv1.AccountID,
	debitCurrency string, cost numeric.ScaledInt,
	creditCurrency string, proceeds numeric.ScaledInt,
) error {
	account, err := a.state.account(id)
	if err != nil {
		return err
	}
	debit := account.Balance(debitCurrency)
	if debit.Locked.Cmp(cost) < 0 {
		return errors.NewInternalConsistency(
			"account %d fill cost %s %s exceeds locked %s",
			id, cost, debitCurrency, debit.Locked,
		)
	}
	debit.Locked = debit.Locked.Sub(cost)

	credit := account.Balance(creditCurrency)
	credit.Free = credit.Free.Add(proceeds)
	return nil
}
