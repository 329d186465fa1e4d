package config

import (
	"os"

	marketv1 "github.com/felis2803/TradeForge-sub000/internal/domain/market/v1"
	"github.com/felis2803/TradeForge-sub000/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Scenario describes one simulation run: the symbol universe, the market
// data files, the accounts to fund and the orders to script against the
// replayed timeline.
type Scenario struct {
	Symbol  string                  `yaml:"symbol"`
	Symbols []marketv1.SymbolConfig `yaml:"symbols"`
	Data    ScenarioData            `yaml:"data"`
	Merge   ScenarioMerge           `yaml:"merge"`
	Match   ScenarioMatch           `yaml:"match"`

	// FallbackRefPrices maps symbol to the price assumed for MARKET order
	// reservations before any market data arrived.
	FallbackRefPrices map[string]string `yaml:"fallbackRefPrices"`

	Accounts []ScenarioAccount `yaml:"accounts"`
	Orders   []ScenarioOrder   `yaml:"orders"`
}

// ScenarioData points at the NDJSON market data files.
type ScenarioData struct {
	TradesFile string `yaml:"tradesFile"`
	DepthFile  string `yaml:"depthFile"`
}

// ScenarioMerge tunes the deterministic merge.
type ScenarioMerge struct {
	PreferDepthOnEqualTs *bool `yaml:"preferDepthOnEqualTs"`
}

// ScenarioMatch tunes matching behavior.
type ScenarioMatch struct {
	UseAggressorLiquidity    bool   `yaml:"useAggressorLiquidity"`
	MarketReserveHeadroomBps *int64 `yaml:"marketReserveHeadroomBps"`
}

// ScenarioAccount funds one account at the start of the run. Account ids are
// assigned in listing order, starting at 1.
type ScenarioAccount struct {
	Deposits map[string]string `yaml:"deposits"`
}

// ScenarioOrder scripts one order placement at a simulated timestamp.
// Numeric fields are decimal strings parsed against the symbol's scales.
type ScenarioOrder struct {
	PlaceAtMs        int64  `yaml:"placeAtMs"`
	Account          int64  `yaml:"account"`
	Side             string `yaml:"side"`
	Type             string `yaml:"type"`
	TimeInForce      string `yaml:"timeInForce"`
	Qty              string `yaml:"qty"`
	Price            string `yaml:"price"`
	TriggerPrice     string `yaml:"triggerPrice"`
	TriggerDirection string `yaml:"triggerDirection"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ConfigError, "read scenario %s", path)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, errors.Wrap(err, errors.ConfigError, "parse scenario")
	}
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	return &scenario, nil
}

// Validate checks the scenario's internal consistency.
func (s *Scenario) Validate() error {
	if len(s.Symbols) == 0 {
		return errors.New(errors.ConfigError, "scenario declares no symbols")
	}
	if s.Symbol == "" {
		s.Symbol = s.Symbols[0].Name
	}

	found := false
	for _, cfg := range s.Symbols {
		if err := cfg.Validate(); err != nil {
			return err
		}
		if cfg.Name == s.Symbol {
			found = true
		}
	}
	if !found {
		return errors.New(errors.ConfigError, "scenario symbol %s is not declared in symbols", s.Symbol)
	}

	if s.Data.TradesFile == "" || s.Data.DepthFile == "" {
		return errors.New(errors.ConfigError, "scenario must name both tradesFile and depthFile")
	}

	for i, order := range s.Orders {
		if order.Account < 1 || order.Account > int64(len(s.Accounts)) {
			return errors.New(errors.ConfigError, "order %d references unknown account %d", i, order.Account)
		}
		if order.Qty == "" {
			return errors.New(errors.ConfigError, "order %d has no qty", i)
		}
		if _, err := marketv1.ParseSide(order.Side); err != nil {
			return errors.Wrap(err, errors.ConfigError, "order %d", i)
		}
		if _, err := marketv1.ParseOrderType(order.Type); err != nil {
			return errors.Wrap(err, errors.ConfigError, "order %d", i)
		}
	}
	return nil
}
