package ledgerv1

import (
	marketv1 "github.com/felis2803/TradeForge-sub000/internal/domain/market/v1"
	"github.com/felis2803/TradeForge-sub000/pkg/numeric"
)

// AccountID identifies a ledger account. Opaque, ledger-assigned.
type AccountID int64

// Balance holds the free and locked amounts of one currency.
// Both stay non-negative at all times.
type Balance struct {
	Free   numeric.ScaledInt `json:"free"`
	Locked numeric.ScaledInt `json:"locked"`
}

// Clone returns an independent copy.
func (b Balance) Clone() Balance {
	return Balance{Free: b.Free.Clone(), Locked: b.Locked.Clone()}
}

// Account represents a ledger account with per-currency balances.
type Account struct {
	ID        AccountID           `json:"id"`
	Balances  map[string]*Balance `json:"balances"`
	CreatedAt marketv1.Timestamp  `json:"createdAt"`
}

// Balance returns the balance bucket for a currency, creating it if absent.
func (a *Account) Balance(currency string) *Balance {
	b, ok := a.Balances[currency]
	if !ok {
		b = &Balance{}
		a.Balances[currency] = b
	}
	return b
}

// SnapshotBalances returns a point-in-time copy of every currency bucket.
func (a *Account) SnapshotBalances() map[string]Balance {
	snapshot := make(map[string]Balance, len(a.Balances))
	for currency, b := range a.Balances {
		snapshot[currency] = b.Clone()
	}
	return snapshot
}
