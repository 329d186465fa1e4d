package marketv1

import "github.com/felis2803/TradeForge-sub000/pkg/errors"

// SymbolConfig describes a trading pair. Immutable after ledger construction.
type SymbolConfig struct {
	Name        string `json:"name" yaml:"name"`
	Base        string `json:"base" yaml:"base"`
	Quote       string `json:"quote" yaml:"quote"`
	PriceScale  int32  `json:"priceScale" yaml:"priceScale"`
	QtyScale    int32  `json:"qtyScale" yaml:"qtyScale"`
	MakerFeeBps int64  `json:"makerFeeBps" yaml:"makerFeeBps"`
	TakerFeeBps int64  `json:"takerFeeBps" yaml:"takerFeeBps"`
}

// Validate checks the config for use in a ledger.
func (c SymbolConfig) Validate() error {
	if c.Name == "" {
		return errors.NewValidation("symbol name is empty")
	}
	if c.Base == "" || c.Quote == "" {
		return errors.NewValidation("symbol %s has empty base or quote currency", c.Name)
	}
	if c.PriceScale < 0 || c.QtyScale < 0 {
		return errors.NewValidation("symbol %s has negative scale", c.Name)
	}
	if c.MakerFeeBps < 0 || c.TakerFeeBps < 0 {
		return errors.NewValidation("symbol %s has negative fee", c.Name)
	}
	return nil
}

// FeeBps returns the fee rate for the given liquidity role.
func (c SymbolConfig) FeeBps(liquidity Liquidity) int64 {
	if liquidity == LiquidityMaker {
		return c.MakerFeeBps
	}
	return c.TakerFeeBps
}

// MaxFeeBps returns the worse of the two fee rates, used for reservation estimates.
func (c SymbolConfig) MaxFeeBps() int64 {
	if c.MakerFeeBps > c.TakerFeeBps {
		return c.MakerFeeBps
	}
	return c.TakerFeeBps
}
