package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind identifies what a ledger entry did to the account.
type TransactionKind string

const (
	TransactionDeposit    TransactionKind = "deposit"
	TransactionWithdrawal TransactionKind = "withdrawal"
	TransactionBuy        TransactionKind = "buy"
	TransactionSell       TransactionKind = "sell"
)

// IsTrade reports whether the kind moves shares as well as cash.
func (k TransactionKind) IsTrade() bool {
	return k == TransactionBuy || k == TransactionSell
}

// Transaction is an immutable ledger entry. Symbol, Quantity and
// UnitPrice are only set for trades; Amount is the cash moved
// (the notional for trades).
type Transaction struct {
	ID        string
	Seq       uint64 // 1-based, strictly increasing within an account
	Timestamp time.Time
	Kind      TransactionKind
	Amount    decimal.Decimal
	Symbol    string
	Quantity  int64
	UnitPrice decimal.Decimal
}

// CashDelta returns the signed effect of the transaction on the cash
// balance.
func (t Transaction) CashDelta() decimal.Decimal {
	switch t.Kind {
	case TransactionWithdrawal, TransactionBuy:
		return t.Amount.Neg()
	default:
		return t.Amount
	}
}

// ShareDelta returns the signed effect of the transaction on the
// holding of t.Symbol.
func (t Transaction) ShareDelta() int64 {
	switch t.Kind {
	case TransactionBuy:
		return t.Quantity
	case TransactionSell:
		return -t.Quantity
	default:
		return 0
	}
}
