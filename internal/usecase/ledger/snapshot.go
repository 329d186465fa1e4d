package ledger

import (
	"sort"

	checkpointv1 "github.com/felis2803/TradeForge-sub000/internal/domain/checkpoint/v1"
	ledgerv1 "github.com/felis2803/TradeForge-sub000/internal/domain/ledger/v1"
	"github.com/felis2803/TradeForge-sub000/pkg/errors"
)

// Snapshot serializes the full ledger into its checkpoint form. Orders and
// balances are deep-copied so later mutation cannot leak into the snapshot.
func (s *State) Snapshot() *checkpointv1.StateSnapshot {
	snapshot := &checkpointv1.StateSnapshot{
		Symbols:       s.Symbols(),
		NextAccountID: s.nextAccountID,
		NextOrderID:   s.nextOrderID,
		LogicalTime:   s.logicalTime,
	}

	for _, id := range s.AccountIDs() {
		account := s.accounts[id]
		snapshot.Accounts = append(snapshot.Accounts, checkpointv1.AccountSnapshot{
			ID:        account.ID,
			Balances:  account.SnapshotBalances(),
			CreatedAt: account.CreatedAt,
		})
	}

	for _, order := range s.ordersInPlacementOrder() {
		snapshot.Orders = append(snapshot.Orders, order.Clone())
	}

	return snapshot
}

func (s *State) ordersInPlacementOrder() []*ledgerv1.Order {
	ids := make([]ledgerv1.OrderID, 0, len(s.orders))
	for id := range s.orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	orders := make([]*ledgerv1.Order, 0, len(ids))
	for _, id := range ids {
		orders = append(orders, s.orders[id])
	}
	return orders
}

// FromSnapshot reconstitutes a ledger from its checkpoint form. The restored
// state reproduces an identical serialized form, counters included.
func FromSnapshot(snapshot *checkpointv1.StateSnapshot) (*State, error) {
	if snapshot == nil {
		return nil, errors.NewValidation("state snapshot is nil")
	}

	state, err := NewState(snapshot.Symbols)
	if err != nil {
		return nil, err
	}

	for _, accountSnap := range snapshot.Accounts {
		account := &ledgerv1.Account{
			ID:        accountSnap.ID,
			Balances:  make(map[string]*ledgerv1.Balance, len(accountSnap.Balances)),
			CreatedAt: accountSnap.CreatedAt,
		}
		for currency, balance := range accountSnap.Balances {
			restored := balance.Clone()
			account.Balances[currency] = &restored
		}
		state.accounts[accountSnap.ID] = account
	}

	for _, order := range snapshot.Orders {
		restored := order.Clone()
		state.orders[restored.ID] = restored
		if restored.IsTerminal() {
			continue
		}
		if restored.Type.IsStop() && !restored.Activated {
			state.stopOrders[restored.ID] = struct{}{}
		} else {
			state.openOrders[restored.ID] = struct{}{}
		}
	}

	state.nextAccountID = snapshot.NextAccountID
	state.nextOrderID = snapshot.NextOrderID
	state.logicalTime = snapshot.LogicalTime

	return state, nil
}

// SnapshotEngine captures the open/stop order indices for a checkpoint.
func SnapshotEngine(state *State) checkpointv1.EngineSnapshot {
	return checkpointv1.EngineSnapshot{
		OpenOrderIDs: state.OpenOrderIDs(),
		StopOrderIDs: state.StopOrderIDs(),
	}
}

// RestoreEngineIndices replaces the order indices with the checkpointed ones,
// verifying every id refers to a known non-terminal order.
func (s *State) RestoreEngineIndices(snapshot checkpointv1.EngineSnapshot) error {
	open := make(map[ledgerv1.OrderID]struct{}, len(snapshot.OpenOrderIDs))
	stop := make(map[ledgerv1.OrderID]struct{}, len(snapshot.StopOrderIDs))

	for _, id := range snapshot.OpenOrderIDs {
		order, err := s.order(id)
		if err != nil {
			return err
		}
		if order.IsTerminal() {
			return errors.NewInternalConsistency("open index references terminal order %d", id)
		}
		open[id] = struct{}{}
	}
	for _, id := range snapshot.StopOrderIDs {
		order, err := s.order(id)
		if err != nil {
			return err
		}
		if order.IsTerminal() || !order.Type.IsStop() || order.Activated {
			return errors.NewInternalConsistency("stop index references non-pending order %d", id)
		}
		stop[id] = struct{}{}
	}

	s.openOrders = open
	s.stopOrders = stop
	return nil
}
