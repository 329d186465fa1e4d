// Package ledger implements the canonical mutable store of the simulator:
// symbol configs, accounts, orders and the open/stop order indices. The State
// itself exposes read accessors only; all mutation goes through the Accounts
// and Orders components so the reservation and balance invariants are
// enforced in one place.
package ledger

import (
	"sort"

	ledgerv1 "github.com/felis2803/TradeForge-sub000/internal/domain/ledger/v1"
	marketv1 "github.com/felis2803/TradeForge-sub000/internal/domain/market/v1"
	"github.com/felis2803/TradeForge-sub000/pkg/errors"
)

// State is the ledger of one simulation run. It is not safe for concurrent
// use: all mutation must happen from a single goroutine to preserve the
// determinism contract.
type State struct {
	symbols        map[string]marketv1.SymbolConfig
	currencyScales map[string]int32
	accounts       map[ledgerv1.AccountID]*ledgerv1.Account
	orders         map[ledgerv1.OrderID]*ledgerv1.Order
	openOrders     map[ledgerv1.OrderID]struct{}
	stopOrders     map[ledgerv1.OrderID]struct{}

	nextAccountID int64
	nextOrderID   int64
	logicalTime   marketv1.Timestamp
}

// NewState creates a ledger for the given symbols. Symbol configs are frozen
// after this call.
func NewState(symbols []marketv1.SymbolConfig) (*State, error) {
	state := &State{
		symbols:        make(map[string]marketv1.SymbolConfig, len(symbols)),
		currencyScales: make(map[string]int32),
		accounts:       make(map[ledgerv1.AccountID]*ledgerv1.Account),
		orders:         make(map[ledgerv1.OrderID]*ledgerv1.Order),
		openOrders:     make(map[ledgerv1.OrderID]struct{}),
		stopOrders:     make(map[ledgerv1.OrderID]struct{}),
		nextAccountID:  1,
		nextOrderID:    1,
	}

	for _, cfg := range symbols {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, exists := state.symbols[cfg.Name]; exists {
			return nil, errors.NewValidation("duplicate symbol %s", cfg.Name)
		}
		if err := state.registerCurrency(cfg.Base, cfg.QtyScale); err != nil {
			return nil, err
		}
		if err := state.registerCurrency(cfg.Quote, cfg.PriceScale); err != nil {
			return nil, err
		}
		state.symbols[cfg.Name] = cfg
	}

	return state, nil
}

func (s *State) registerCurrency(currency string, scale int32) error {
	if existing, ok := s.currencyScales[currency]; ok {
		if existing != scale {
			return errors.NewValidation("currency %s declared with scales %d and %d", currency, existing, scale)
		}
		return nil
	}
	s.currencyScales[currency] = scale
	return nil
}

// Symbol returns the config for a symbol.
func (s *State) Symbol(name string) (marketv1.SymbolConfig, error) {
	cfg, ok := s.symbols[name]
	if !ok {
		return marketv1.SymbolConfig{}, errors.NewNotFound("unknown symbol %s", name)
	}
	return cfg, nil
}

// Symbols returns all symbol configs ordered by name.
func (s *State) Symbols() []marketv1.SymbolConfig {
	configs := make([]marketv1.SymbolConfig, 0, len(s.symbols))
	for _, cfg := range s.symbols {
		configs = append(configs, cfg)
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].Name < configs[j].Name })
	return configs
}

// CurrencyScale returns the scale registered for a currency.
func (s *State) CurrencyScale(currency string) (int32, error) {
	scale, ok := s.currencyScales[currency]
	if !ok {
		return 0, errors.NewNotFound("unknown currency %s", currency)
	}
	return scale, nil
}

func (s *State) account(id ledgerv1.AccountID) (*ledgerv1.Account, error) {
	account, ok := s.accounts[id]
	if !ok {
		return nil, errors.NewNotFound("unknown account %d", id)
	}
	return account, nil
}

func (s *State) order(id ledgerv1.OrderID) (*ledgerv1.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, errors.NewNotFound("unknown order %d", id)
	}
	return order, nil
}

// AccountIDs returns every account id in ascending order.
func (s *State) AccountIDs() []ledgerv1.AccountID {
	ids := make([]ledgerv1.AccountID, 0, len(s.accounts))
	for id := range s.accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// OpenOrderIDs returns the active matching pool in placement order.
func (s *State) OpenOrderIDs() []ledgerv1.OrderID {
	return sortedIDs(s.openOrders)
}

// StopOrderIDs returns the pending stop orders in placement order.
func (s *State) StopOrderIDs() []ledgerv1.OrderID {
	return sortedIDs(s.stopOrders)
}

func sortedIDs(set map[ledgerv1.OrderID]struct{}) []ledgerv1.OrderID {
	ids := make([]ledgerv1.OrderID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Now returns the current logical timestamp.
func (s *State) Now() marketv1.Timestamp {
	return s.logicalTime
}

// AdvanceTime moves the logical clock forward. Going backwards is ignored so
// the clock stays monotonic even if inputs carry equal or stale timestamps.
func (s *State) AdvanceTime(ts marketv1.Timestamp) {
	if ts > s.logicalTime {
		s.logicalTime = ts
	}
}
