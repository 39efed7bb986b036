package ledger

import (
	"fmt"
	"math"
	"time"

	"github.com/google/btree"

	"github.com/efreitasn/papertrade/internal/domain"
)

// transactionLess orders entries by timestamp, then by sequence number,
// which is the order they were appended in.
func transactionLess(a, b domain.Transaction) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.Seq < b.Seq
}

// TransactionLog is an append-only, chronologically ordered sequence of
// transactions backed by a B-tree, so "everything up to t" is a range
// scan. It is not safe for concurrent use; Account serializes access.
type TransactionLog struct {
	tree *btree.BTreeG[domain.Transaction]
}

// NewTransactionLog creates an empty log.
func NewTransactionLog() *TransactionLog {
	const degree = 32
	return &TransactionLog{
		tree: btree.NewG[domain.Transaction](degree, transactionLess),
	}
}

// Append adds tx to the end of the log. It rejects entries that would sort
// before the current last entry, so appending never reorders history.
func (l *TransactionLog) Append(tx domain.Transaction) error {
	if last, ok := l.tree.Max(); ok && !transactionLess(last, tx) {
		return fmt.Errorf("transaction %d at %s does not follow %d at %s",
			tx.Seq, tx.Timestamp.Format(time.RFC3339Nano), last.Seq, last.Timestamp.Format(time.RFC3339Nano))
	}
	l.tree.ReplaceOrInsert(tx)
	return nil
}

// Len returns the number of entries.
func (l *TransactionLog) Len() int {
	return l.tree.Len()
}

// Last returns the most recent entry, or false when the log is empty.
func (l *TransactionLog) Last() (domain.Transaction, bool) {
	return l.tree.Max()
}

// All returns every entry, oldest first.
func (l *TransactionLog) All() []domain.Transaction {
	out := make([]domain.Transaction, 0, l.tree.Len())
	l.tree.Ascend(func(tx domain.Transaction) bool {
		out = append(out, tx)
		return true
	})
	return out
}

// Through returns the entries with a timestamp at or before t, oldest first.
func (l *TransactionLog) Through(t time.Time) []domain.Transaction {
	pivot := domain.Transaction{Timestamp: t, Seq: math.MaxUint64}
	var out []domain.Transaction
	l.tree.AscendLessThan(pivot, func(tx domain.Transaction) bool {
		out = append(out, tx)
		return true
	})
	return out
}
