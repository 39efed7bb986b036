package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
)

// Snapshot is ledger state reconstructed from transaction records alone.
type Snapshot struct {
	Cash     decimal.Decimal
	Holdings map[string]int64
	// LastPrices holds, per symbol, the unit price of the most recent
	// trade in the replayed records.
	LastPrices map[string]decimal.Decimal
}

// Replay folds txs, oldest first, over an empty ledger (no cash, no
// holdings). Trades use the unit price recorded in the entry.
func Replay(txs []domain.Transaction) Snapshot {
	s := Snapshot{
		Cash:       decimal.Zero,
		Holdings:   make(map[string]int64),
		LastPrices: make(map[string]decimal.Decimal),
	}
	for _, tx := range txs {
		s.Cash = s.Cash.Add(tx.CashDelta())
		if !tx.Kind.IsTrade() {
			continue
		}
		s.LastPrices[tx.Symbol] = tx.UnitPrice
		qty := s.Holdings[tx.Symbol] + tx.ShareDelta()
		if qty == 0 {
			delete(s.Holdings, tx.Symbol)
		} else {
			s.Holdings[tx.Symbol] = qty
		}
	}
	return s
}

// Value returns cash plus every holding valued at its last recorded price.
func (s Snapshot) Value() decimal.Decimal {
	total := s.Cash
	for symbol, qty := range s.Holdings {
		total = total.Add(s.LastPrices[symbol].Mul(decimal.NewFromInt(qty)))
	}
	return total
}
