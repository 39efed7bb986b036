// Package oracle provides share prices to the ledger.
package oracle

import (
	"context"
	"os"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/efreitasn/papertrade/internal/domain"
)

// PriceOracle resolves a symbol to its current unit price. Implementations
// return an error wrapping domain.ErrUnknownSymbol for symbols they
// cannot price.
type PriceOracle interface {
	PriceOf(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// DefaultPrices is the fixed price list used when no price file is
// configured.
func DefaultPrices() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"AAPL":  decimal.NewFromInt(150),
		"TSLA":  decimal.NewFromInt(250),
		"GOOGL": decimal.NewFromInt(120),
	}
}

// Table is an in-memory price list. It is safe for concurrent use and
// prices can be changed at runtime with Set.
type Table struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

// NewTable creates a Table from the given prices. Symbols are normalized;
// non-positive prices are rejected.
func NewTable(prices map[string]decimal.Decimal) (*Table, error) {
	t := &Table{prices: make(map[string]decimal.Decimal, len(prices))}
	for symbol, price := range prices {
		if err := t.Set(symbol, price); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// NewDefaultTable creates a Table holding DefaultPrices.
func NewDefaultTable() *Table {
	t, _ := NewTable(DefaultPrices()) // defaults are always valid
	return t
}

// PriceOf implements PriceOracle.
func (t *Table) PriceOf(_ context.Context, symbol string) (decimal.Decimal, error) {
	symbol = domain.NormalizeSymbol(symbol)

	t.mu.RLock()
	defer t.mu.RUnlock()

	price, ok := t.prices[symbol]
	if !ok {
		return decimal.Zero, errors.Wrapf(domain.ErrUnknownSymbol, "no price for %q", symbol)
	}
	return price, nil
}

// Set adds or replaces the price of a symbol. Prices must be positive and
// carry at most domain.AmountPlaces decimal places.
func (t *Table) Set(symbol string, price decimal.Decimal) error {
	symbol = domain.NormalizeSymbol(symbol)
	if !domain.ValidSymbol(symbol) {
		return &domain.ValidationError{Message: "invalid symbol " + symbol}
	}
	if !price.IsPositive() {
		return errors.Wrapf(domain.ErrInvalidAmount, "price for %s must be positive, got %s", symbol, price)
	}
	// Sub-cent prices would leave cash balances that no amount can settle.
	if err := domain.CheckPrecision(price); err != nil {
		return errors.Wrapf(err, "price for %s", symbol)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.prices[symbol] = price
	return nil
}

// Symbols returns the priced symbols in ascending order.
func (t *Table) Symbols() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	symbols := make([]string, 0, len(t.prices))
	for s := range t.prices {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// priceFile is the YAML layout of a price file:
//
//	prices:
//	  AAPL: 150
//	  MSFT: 410.25
type priceFile struct {
	Prices map[string]yamlDecimal `yaml:"prices"`
}

type yamlDecimal struct {
	decimal.Decimal
}

func (d *yamlDecimal) UnmarshalYAML(node *yaml.Node) error {
	v, err := decimal.NewFromString(node.Value)
	if err != nil {
		return errors.Wrapf(err, "line %d: %q is not a price", node.Line, node.Value)
	}
	d.Decimal = v
	return nil
}

// LoadFile reads a YAML price file and returns a Table holding exactly the
// prices it lists.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read price file")
	}
	return Parse(data)
}

// Parse decodes YAML price data into a Table.
func Parse(data []byte) (*Table, error) {
	var f priceFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parse price file")
	}
	if len(f.Prices) == 0 {
		return nil, errors.New("price file lists no prices")
	}

	prices := make(map[string]decimal.Decimal, len(f.Prices))
	for symbol, p := range f.Prices {
		prices[symbol] = p.Decimal
	}
	t, err := NewTable(prices)
	if err != nil {
		return nil, errors.Wrap(err, "price file")
	}
	return t, nil
}
