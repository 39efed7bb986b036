// Package ledger implements a single trading account: cash, share
// holdings and the transaction log they are derived from, plus the
// valuation and historical profit/loss computed from that log.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/oracle"
)

// Option configures an Account at construction.
type Option func(*Account)

// WithClock replaces time.Now as the source of transaction timestamps.
// A nil clock is ignored.
func WithClock(now func() time.Time) Option {
	return func(a *Account) {
		if now != nil {
			a.now = now
		}
	}
}

// Account is an in-memory ledger for one user. All methods are safe for
// concurrent use; each mutation validates every precondition and then
// applies all of its changes under one lock, so a failed call leaves the
// account untouched.
type Account struct {
	mu             sync.RWMutex
	prices         oracle.PriceOracle
	now            func() time.Time
	initialDeposit decimal.Decimal
	openedAt       time.Time
	cash           decimal.Decimal
	holdings       map[string]int64
	log            *TransactionLog
	seq            uint64
}

// New opens an account funded with initialDeposit, which is recorded as the
// first deposit transaction. initialDeposit may be zero but not negative.
func New(initialDeposit decimal.Decimal, prices oracle.PriceOracle, opts ...Option) (*Account, error) {
	if prices == nil {
		return nil, errors.New("price oracle is required")
	}
	if initialDeposit.IsNegative() {
		return nil, fmt.Errorf("%w: initial deposit must be >= 0, got %s", domain.ErrInvalidAmount, initialDeposit)
	}

	a := &Account{
		prices:         prices,
		now:            time.Now,
		initialDeposit: initialDeposit,
		cash:           initialDeposit,
		holdings:       make(map[string]int64),
		log:            NewTransactionLog(),
	}
	for _, opt := range opts {
		opt(a)
	}

	opening := a.record(domain.Transaction{Kind: domain.TransactionDeposit, Amount: initialDeposit})
	a.openedAt = opening.Timestamp
	return a, nil
}

// Deposit adds amount to the cash balance.
func (a *Account) Deposit(amount decimal.Decimal) (domain.Transaction, error) {
	if !amount.IsPositive() {
		return domain.Transaction{}, fmt.Errorf("%w: deposit must be positive, got %s", domain.ErrInvalidAmount, amount)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.cash = a.cash.Add(amount)
	return a.record(domain.Transaction{Kind: domain.TransactionDeposit, Amount: amount}), nil
}

// Withdraw removes amount from the cash balance. The balance never goes
// negative.
func (a *Account) Withdraw(amount decimal.Decimal) (domain.Transaction, error) {
	if !amount.IsPositive() {
		return domain.Transaction{}, fmt.Errorf("%w: withdrawal must be positive, got %s", domain.ErrInvalidAmount, amount)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if amount.GreaterThan(a.cash) {
		return domain.Transaction{}, fmt.Errorf("%w: have %s, need %s",
			domain.ErrInsufficientFunds, domain.FormatAmount(a.cash), domain.FormatAmount(amount))
	}

	a.cash = a.cash.Sub(amount)
	return a.record(domain.Transaction{Kind: domain.TransactionWithdrawal, Amount: amount}), nil
}

// BuyShares buys quantity shares of symbol at the oracle's current price.
func (a *Account) BuyShares(ctx context.Context, symbol string, quantity int64) (domain.Transaction, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if quantity <= 0 {
		return domain.Transaction{}, fmt.Errorf("%w: must be positive, got %d", domain.ErrInvalidQuantity, quantity)
	}

	// The lookup may block, so it runs unlocked and funds are checked after.
	price, err := a.quote(ctx, symbol)
	if err != nil {
		return domain.Transaction{}, err
	}
	cost := price.Mul(decimal.NewFromInt(quantity))

	a.mu.Lock()
	defer a.mu.Unlock()

	if cost.GreaterThan(a.cash) {
		return domain.Transaction{}, fmt.Errorf("%w: have %s, need %s for %d %s",
			domain.ErrInsufficientFunds, domain.FormatAmount(a.cash), domain.FormatAmount(cost), quantity, symbol)
	}

	a.cash = a.cash.Sub(cost)
	a.holdings[symbol] += quantity
	return a.record(domain.Transaction{
		Kind:      domain.TransactionBuy,
		Amount:    cost,
		Symbol:    symbol,
		Quantity:  quantity,
		UnitPrice: price,
	}), nil
}

// SellShares sells quantity shares of symbol at the oracle's current price.
// A holding that reaches zero is removed.
func (a *Account) SellShares(ctx context.Context, symbol string, quantity int64) (domain.Transaction, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if quantity <= 0 {
		return domain.Transaction{}, fmt.Errorf("%w: must be positive, got %d", domain.ErrInvalidQuantity, quantity)
	}
	if err := a.checkShares(symbol, quantity); err != nil {
		return domain.Transaction{}, err
	}

	price, err := a.quote(ctx, symbol)
	if err != nil {
		return domain.Transaction{}, err
	}
	proceeds := price.Mul(decimal.NewFromInt(quantity))

	a.mu.Lock()
	defer a.mu.Unlock()

	// Re-check: shares may have been sold while the price was fetched.
	if err := a.checkSharesLocked(symbol, quantity); err != nil {
		return domain.Transaction{}, err
	}

	a.cash = a.cash.Add(proceeds)
	if remaining := a.holdings[symbol] - quantity; remaining == 0 {
		delete(a.holdings, symbol)
	} else {
		a.holdings[symbol] = remaining
	}
	return a.record(domain.Transaction{
		Kind:      domain.TransactionSell,
		Amount:    proceeds,
		Symbol:    symbol,
		Quantity:  quantity,
		UnitPrice: price,
	}), nil
}

// PortfolioValue returns cash plus every holding valued at the oracle's
// current price. A holding the oracle cannot price is reported as
// domain.ErrPricingUnavailable rather than skipped.
func (a *Account) PortfolioValue(ctx context.Context) (decimal.Decimal, error) {
	a.mu.RLock()
	total := a.cash
	holdings := a.copyHoldings()
	a.mu.RUnlock()

	for symbol, qty := range holdings {
		price, err := a.prices.PriceOf(ctx, symbol)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %s: %v", domain.ErrPricingUnavailable, symbol, err)
		}
		total = total.Add(price.Mul(decimal.NewFromInt(qty)))
	}
	return total, nil
}

// ProfitOrLoss returns the portfolio value minus the initial deposit.
func (a *Account) ProfitOrLoss(ctx context.Context) (decimal.Decimal, error) {
	value, err := a.PortfolioValue(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return value.Sub(a.initialDeposit), nil
}

// ProfitOrLossAt replays the transactions recorded at or before t and
// returns the replayed portfolio value minus the initial deposit. Holdings
// are valued at the last unit price recorded for them, never at live
// prices. Before the account was opened nothing is replayed and the
// result is zero.
func (a *Account) ProfitOrLossAt(t time.Time) decimal.Decimal {
	a.mu.RLock()
	txs := a.log.Through(t)
	a.mu.RUnlock()

	if len(txs) == 0 {
		return decimal.Zero
	}
	return Replay(txs).Value().Sub(a.initialDeposit)
}

// Cash returns the current cash balance.
func (a *Account) Cash() decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cash
}

// InitialDeposit returns the amount the account was opened with.
func (a *Account) InitialDeposit() decimal.Decimal {
	return a.initialDeposit
}

// OpenedAt returns the timestamp of the opening deposit.
func (a *Account) OpenedAt() time.Time {
	return a.openedAt
}

// Shares returns the quantity held of symbol, zero if none.
func (a *Account) Shares(symbol string) int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.holdings[domain.NormalizeSymbol(symbol)]
}

// Holdings returns a copy of the symbol to quantity map.
func (a *Account) Holdings() map[string]int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.copyHoldings()
}

// Transactions returns a copy of the log, oldest first.
func (a *Account) Transactions() []domain.Transaction {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.log.All()
}

// State is cash, holdings and log length read together.
type State struct {
	Cash             decimal.Decimal
	Holdings         map[string]int64
	TransactionCount int
}

// State returns a consistent view of the account taken under one lock.
// Holdings is a copy.
func (a *Account) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return State{
		Cash:             a.cash,
		Holdings:         a.copyHoldings(),
		TransactionCount: a.log.Len(),
	}
}

func (a *Account) quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	price, err := a.prices.PriceOf(ctx, symbol)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownSymbol) {
			return decimal.Zero, err
		}
		return decimal.Zero, fmt.Errorf("%w: %s: %v", domain.ErrUnknownSymbol, symbol, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s priced at %s", domain.ErrUnknownSymbol, symbol, price)
	}
	return price, nil
}

func (a *Account) checkShares(symbol string, quantity int64) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.checkSharesLocked(symbol, quantity)
}

func (a *Account) checkSharesLocked(symbol string, quantity int64) error {
	if held := a.holdings[symbol]; held < quantity {
		return fmt.Errorf("%w: have %d %s, need %d", domain.ErrInsufficientShares, held, symbol, quantity)
	}
	return nil
}

func (a *Account) copyHoldings() map[string]int64 {
	out := make(map[string]int64, len(a.holdings))
	for s, q := range a.holdings {
		out[s] = q
	}
	return out
}

// record stamps tx and appends it to the log. Callers hold the write lock.
func (a *Account) record(tx domain.Transaction) domain.Transaction {
	ts := a.now().UTC().Round(0)
	if last, ok := a.log.Last(); ok && ts.Before(last.Timestamp) {
		ts = last.Timestamp
	}

	a.seq++
	tx.ID = uuid.NewString()
	tx.Seq = a.seq
	tx.Timestamp = ts
	if err := a.log.Append(tx); err != nil {
		// Unreachable: ts is clamped and seq only grows.
		panic(err)
	}
	return tx
}
