package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/ledger"
	"github.com/efreitasn/papertrade/internal/oracle"
	"github.com/efreitasn/papertrade/internal/store"
)

var t0 = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func stepClock() func() time.Time {
	now := t0
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestAccountService(t *testing.T) (*AccountService, *oracle.Table) {
	t.Helper()
	prices := oracle.NewDefaultTable()
	return NewAccountService(store.NewAccountStore(), prices, nil, ledger.WithClock(stepClock())), prices
}

func openAccount(t *testing.T, svc *AccountService, initial string) *ledger.Account {
	t.Helper()
	acc, err := svc.Open(dec(initial))
	if err != nil {
		t.Fatalf("Open(%s): %v", initial, err)
	}
	return acc
}

func TestOpen_Success(t *testing.T) {
	svc, _ := newTestAccountService(t)

	acc := openAccount(t, svc, "10000")
	if !acc.Cash().Equal(dec("10000")) {
		t.Errorf("got cash %s, want 10000", acc.Cash())
	}
	if len(acc.Transactions()) != 1 {
		t.Errorf("got %d transactions, want 1", len(acc.Transactions()))
	}
}

func TestOpen_ZeroDeposit(t *testing.T) {
	svc, _ := newTestAccountService(t)
	acc := openAccount(t, svc, "0")
	if !acc.Cash().IsZero() {
		t.Errorf("got cash %s, want 0", acc.Cash())
	}
}

func TestOpen_Rejected(t *testing.T) {
	svc, _ := newTestAccountService(t)

	for _, amount := range []string{"-1", "10.005"} {
		if _, err := svc.Open(dec(amount)); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("Open(%s): expected ErrInvalidAmount, got %v", amount, err)
		}
	}
	if _, err := svc.Transactions(); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("rejected Open must not create an account, got %v", err)
	}
}

func TestOpen_ReplacesAccount(t *testing.T) {
	svc, _ := newTestAccountService(t)
	openAccount(t, svc, "10000")
	if _, err := svc.Deposit(dec("5")); err != nil {
		t.Fatalf("Deposit: %v", err)
	}

	openAccount(t, svc, "20")

	txs, err := svc.Transactions()
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	if len(txs) != 1 || !txs[0].Amount.Equal(dec("20")) {
		t.Errorf("expected only the new opening deposit, got %+v", txs)
	}
}

func TestOperations_NoAccount(t *testing.T) {
	svc, _ := newTestAccountService(t)
	ctx := context.Background()

	checks := map[string]error{}
	_, checks["deposit"] = svc.Deposit(dec("1"))
	_, checks["withdraw"] = svc.Withdraw(dec("1"))
	_, checks["buy"] = svc.Buy(ctx, TradeRequest{Symbol: "AAPL", Quantity: 1})
	_, checks["sell"] = svc.Sell(ctx, TradeRequest{Symbol: "AAPL", Quantity: 1})
	_, checks["holdings"] = svc.Holdings(ctx)
	_, checks["transactions"] = svc.Transactions()
	_, checks["summary"] = svc.Summary(ctx)
	_, checks["pnl"] = svc.ProfitOrLoss(ctx, nil)

	for op, err := range checks {
		if !errors.Is(err, domain.ErrAccountNotFound) {
			t.Errorf("%s: expected ErrAccountNotFound, got %v", op, err)
		}
	}
}

func TestDepositWithdraw(t *testing.T) {
	svc, _ := newTestAccountService(t)
	acc := openAccount(t, svc, "100")

	tx, err := svc.Deposit(dec("50.25"))
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if tx.Kind != domain.TransactionDeposit {
		t.Errorf("got kind %s, want deposit", tx.Kind)
	}

	if _, err := svc.Withdraw(dec("20")); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if !acc.Cash().Equal(dec("130.25")) {
		t.Errorf("got cash %s, want 130.25", acc.Cash())
	}
}

func TestDepositWithdraw_Rejected(t *testing.T) {
	svc, _ := newTestAccountService(t)
	openAccount(t, svc, "100")

	tests := []struct {
		name    string
		run     func() error
		wantErr error
	}{
		{"deposit zero", func() error { _, err := svc.Deposit(dec("0")); return err }, domain.ErrInvalidAmount},
		{"deposit sub-cent", func() error { _, err := svc.Deposit(dec("0.001")); return err }, domain.ErrInvalidAmount},
		{"withdraw negative", func() error { _, err := svc.Withdraw(dec("-1")); return err }, domain.ErrInvalidAmount},
		{"withdraw too much", func() error { _, err := svc.Withdraw(dec("100.01")); return err }, domain.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestBuySell(t *testing.T) {
	svc, prices := newTestAccountService(t)
	acc := openAccount(t, svc, "10000")
	ctx := context.Background()

	tx, err := svc.Buy(ctx, TradeRequest{Symbol: "aapl", Quantity: 10})
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if tx.Symbol != "AAPL" || !tx.Amount.Equal(dec("1500")) {
		t.Errorf("unexpected buy transaction %+v", tx)
	}

	if err := prices.Set("AAPL", dec("160")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := svc.Sell(ctx, TradeRequest{Symbol: "AAPL", Quantity: 5}); err != nil {
		t.Fatalf("Sell: %v", err)
	}
	if !acc.Cash().Equal(dec("9300")) {
		t.Errorf("got cash %s, want 9300", acc.Cash())
	}
	if got := acc.Shares("AAPL"); got != 5 {
		t.Errorf("got %d AAPL, want 5", got)
	}
}

func TestBuySell_Rejected(t *testing.T) {
	svc, _ := newTestAccountService(t)
	openAccount(t, svc, "1000")
	ctx := context.Background()

	tests := []struct {
		name    string
		buy     bool
		req     TradeRequest
		wantErr error
	}{
		{"unknown symbol", true, TradeRequest{Symbol: "MSFT", Quantity: 1}, domain.ErrUnknownSymbol},
		{"zero quantity", true, TradeRequest{Symbol: "AAPL", Quantity: 0}, domain.ErrInvalidQuantity},
		{"insufficient funds", true, TradeRequest{Symbol: "TSLA", Quantity: 5}, domain.ErrInsufficientFunds},
		{"insufficient shares", false, TradeRequest{Symbol: "AAPL", Quantity: 1}, domain.ErrInsufficientShares},
		{"negative sell", false, TradeRequest{Symbol: "AAPL", Quantity: -1}, domain.ErrInvalidQuantity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.buy {
				_, err = svc.Buy(ctx, tt.req)
			} else {
				_, err = svc.Sell(ctx, tt.req)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestBuy_InvalidSymbol(t *testing.T) {
	svc, _ := newTestAccountService(t)
	openAccount(t, svc, "1000")

	_, err := svc.Buy(context.Background(), TradeRequest{Symbol: "  ", Quantity: 1})
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestSummary(t *testing.T) {
	svc, prices := newTestAccountService(t)
	openAccount(t, svc, "10000")
	ctx := context.Background()

	if _, err := svc.Buy(ctx, TradeRequest{Symbol: "TSLA", Quantity: 2}); err != nil {
		t.Fatalf("Buy TSLA: %v", err)
	}
	if _, err := svc.Buy(ctx, TradeRequest{Symbol: "AAPL", Quantity: 10}); err != nil {
		t.Fatalf("Buy AAPL: %v", err)
	}
	if err := prices.Set("AAPL", dec("155")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	sum, err := svc.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if !sum.Cash.Equal(dec("8000")) {
		t.Errorf("cash = %s, want 8000", sum.Cash)
	}
	if !sum.PortfolioValue.Equal(dec("10050")) {
		t.Errorf("portfolio value = %s, want 10050", sum.PortfolioValue)
	}
	if !sum.ProfitOrLoss.Equal(dec("50")) {
		t.Errorf("pnl = %s, want 50", sum.ProfitOrLoss)
	}
	if sum.TransactionCount != 3 {
		t.Errorf("transaction count = %d, want 3", sum.TransactionCount)
	}
	if len(sum.Holdings) != 2 || sum.Holdings[0].Symbol != "AAPL" || sum.Holdings[1].Symbol != "TSLA" {
		t.Fatalf("holdings not sorted by symbol: %+v", sum.Holdings)
	}
	if !sum.Holdings[0].MarketValue.Equal(dec("1550")) {
		t.Errorf("AAPL market value = %s, want 1550", sum.Holdings[0].MarketValue)
	}
	if !sum.OpenedAt.Equal(t0.Add(time.Second)) {
		t.Errorf("opened at = %s, want %s", sum.OpenedAt, t0.Add(time.Second))
	}
}

// hookOracle runs hook once, on the first lookup, before delegating.
type hookOracle struct {
	*oracle.Table
	once sync.Once
	hook func()
}

func (o *hookOracle) PriceOf(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if o.hook != nil {
		o.once.Do(o.hook)
	}
	return o.Table.PriceOf(ctx, symbol)
}

func TestSummary_ConsistentUnderConcurrentWithdraw(t *testing.T) {
	prices := &hookOracle{Table: oracle.NewDefaultTable()}
	svc := NewAccountService(store.NewAccountStore(), prices, nil, ledger.WithClock(stepClock()))
	acc := openAccount(t, svc, "10000")
	ctx := context.Background()

	if _, err := svc.Buy(ctx, TradeRequest{Symbol: "AAPL", Quantity: 10}); err != nil {
		t.Fatalf("Buy: %v", err)
	}

	// The withdrawal lands while the summary is pricing holdings.
	prices.hook = func() {
		if _, err := acc.Withdraw(dec("1000")); err != nil {
			t.Errorf("Withdraw: %v", err)
		}
	}

	sum, err := svc.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}

	parts := sum.Cash
	for _, h := range sum.Holdings {
		parts = parts.Add(h.MarketValue)
	}
	if !sum.PortfolioValue.Equal(parts) {
		t.Errorf("portfolio value %s != cash + market values %s", sum.PortfolioValue, parts)
	}
	if !sum.ProfitOrLoss.Equal(sum.PortfolioValue.Sub(dec("10000"))) {
		t.Errorf("pnl %s does not match portfolio value %s", sum.ProfitOrLoss, sum.PortfolioValue)
	}
	if !sum.Cash.Equal(dec("8500")) || sum.TransactionCount != 2 {
		t.Errorf("summary should reflect the state before the withdrawal: cash=%s count=%d",
			sum.Cash, sum.TransactionCount)
	}
	if !acc.Cash().Equal(dec("7500")) {
		t.Errorf("account cash = %s, want 7500", acc.Cash())
	}
}

func TestProfitOrLoss_AtTime(t *testing.T) {
	svc, prices := newTestAccountService(t)
	openAccount(t, svc, "1000") // t0+1s
	ctx := context.Background()

	if _, err := svc.Buy(ctx, TradeRequest{Symbol: "AAPL", Quantity: 2}); err != nil { // t0+2s
		t.Fatalf("Buy: %v", err)
	}
	if err := prices.Set("AAPL", dec("200")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	live, err := svc.ProfitOrLoss(ctx, nil)
	if err != nil {
		t.Fatalf("ProfitOrLoss: %v", err)
	}
	if live.At != nil || !live.ProfitOrLoss.Equal(dec("100")) {
		t.Errorf("live pnl = %+v, want 100", live)
	}

	at := t0.Add(2 * time.Second)
	hist, err := svc.ProfitOrLoss(ctx, &at)
	if err != nil {
		t.Fatalf("ProfitOrLoss(at): %v", err)
	}
	if !hist.ProfitOrLoss.IsZero() {
		t.Errorf("historical pnl = %s, want 0 (recorded prices)", hist.ProfitOrLoss)
	}

	before := t0
	hist, _ = svc.ProfitOrLoss(ctx, &before)
	if !hist.ProfitOrLoss.IsZero() {
		t.Errorf("pnl before opening = %s, want 0", hist.ProfitOrLoss)
	}
}

func TestHoldings_PricingUnavailable(t *testing.T) {
	st := store.NewAccountStore()
	table := oracle.NewDefaultTable()
	svc := NewAccountService(st, table, nil)
	openAccount(t, svc, "1000")
	if _, err := svc.Buy(context.Background(), TradeRequest{Symbol: "AAPL", Quantity: 1}); err != nil {
		t.Fatalf("Buy: %v", err)
	}

	// Value the same account against an oracle that has lost the symbol.
	empty, err := oracle.Parse([]byte("prices:\n  TSLA: 1\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	broken := NewAccountService(st, empty, nil)

	if _, err := broken.Holdings(context.Background()); !errors.Is(err, domain.ErrPricingUnavailable) {
		t.Errorf("Holdings: expected ErrPricingUnavailable, got %v", err)
	}
}

func TestAccountService_Logging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	svc := NewAccountService(store.NewAccountStore(), oracle.NewDefaultTable(), zap.New(core))
	openAccount(t, svc, "1000")
	ctx := context.Background()

	if _, err := svc.Buy(ctx, TradeRequest{Symbol: "AAPL", Quantity: 1}); err != nil {
		t.Fatalf("Buy: %v", err)
	}
	_, _ = svc.Withdraw(dec("5000"))

	if n := logs.FilterMessage("account opened").Len(); n != 1 {
		t.Errorf("got %d 'account opened' entries, want 1", n)
	}
	executed := logs.FilterMessage("buy executed").All()
	if len(executed) != 1 || executed[0].ContextMap()["symbol"] != "AAPL" {
		t.Errorf("unexpected buy log entries: %+v", executed)
	}
	rejected := logs.FilterMessage("withdraw rejected").All()
	if len(rejected) != 1 || rejected[0].Level != zapcore.DebugLevel {
		t.Errorf("unexpected withdraw log entries: %+v", rejected)
	}
}
