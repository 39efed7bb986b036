package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/ledger"
	"github.com/efreitasn/papertrade/internal/oracle"
	"github.com/efreitasn/papertrade/internal/store"
)

// TradeRequest represents the input for a buy or sell.
type TradeRequest struct {
	Symbol   string
	Quantity int64
}

// HoldingValue is a holding valued at the current price.
type HoldingValue struct {
	Symbol      string
	Quantity    int64
	Price       decimal.Decimal
	MarketValue decimal.Decimal
}

// SummaryResponse represents the account overview shown to a user.
type SummaryResponse struct {
	Cash             decimal.Decimal
	InitialDeposit   decimal.Decimal
	PortfolioValue   decimal.Decimal
	ProfitOrLoss     decimal.Decimal
	Holdings         []HoldingValue
	TransactionCount int
	OpenedAt         time.Time
}

// ProfitOrLossResponse is the profit or loss as of a point in time. At is
// nil for the current, live-priced figure.
type ProfitOrLossResponse struct {
	At           *time.Time
	ProfitOrLoss decimal.Decimal
}

// AccountService handles account lifecycle, cash movements, trades and
// valuation for the session's account.
type AccountService struct {
	store      *store.AccountStore
	prices     oracle.PriceOracle
	logger     *zap.Logger
	ledgerOpts []ledger.Option
}

// NewAccountService creates a new AccountService. ledgerOpts are applied
// to every account it opens.
func NewAccountService(
	store *store.AccountStore,
	prices oracle.PriceOracle,
	logger *zap.Logger,
	ledgerOpts ...ledger.Option,
) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		store:      store,
		prices:     prices,
		logger:     logger,
		ledgerOpts: ledgerOpts,
	}
}

// Open creates a new account funded with initialDeposit, replacing any
// existing one.
func (s *AccountService) Open(initialDeposit decimal.Decimal) (*ledger.Account, error) {
	if err := domain.CheckPrecision(initialDeposit); err != nil {
		return nil, err
	}

	acc, err := ledger.New(initialDeposit, s.prices, s.ledgerOpts...)
	if err != nil {
		s.logger.Debug("open rejected", zap.String("initial_deposit", initialDeposit.String()), zap.Error(err))
		return nil, err
	}

	replaced := s.store.Put(acc) != nil
	s.logger.Info("account opened",
		zap.String("initial_deposit", domain.FormatAmount(initialDeposit)),
		zap.Bool("replaced", replaced))
	return acc, nil
}

// Deposit adds cash to the account.
func (s *AccountService) Deposit(amount decimal.Decimal) (domain.Transaction, error) {
	return s.moveCash("deposit", amount, (*ledger.Account).Deposit)
}

// Withdraw removes cash from the account.
func (s *AccountService) Withdraw(amount decimal.Decimal) (domain.Transaction, error) {
	return s.moveCash("withdraw", amount, (*ledger.Account).Withdraw)
}

func (s *AccountService) moveCash(
	op string,
	amount decimal.Decimal,
	apply func(*ledger.Account, decimal.Decimal) (domain.Transaction, error),
) (domain.Transaction, error) {
	acc, err := s.store.Get()
	if err != nil {
		return domain.Transaction{}, err
	}
	if err := domain.CheckPrecision(amount); err != nil {
		return domain.Transaction{}, err
	}

	tx, err := apply(acc, amount)
	if err != nil {
		s.logger.Debug(op+" rejected", zap.String("amount", amount.String()), zap.Error(err))
		return domain.Transaction{}, err
	}

	s.logger.Info(op+" executed",
		zap.String("id", tx.ID),
		zap.String("amount", domain.FormatAmount(tx.Amount)),
		zap.String("cash", domain.FormatAmount(acc.Cash())))
	return tx, nil
}

// Buy buys shares at the current price.
func (s *AccountService) Buy(ctx context.Context, req TradeRequest) (domain.Transaction, error) {
	return s.trade(ctx, "buy", req, (*ledger.Account).BuyShares)
}

// Sell sells shares at the current price.
func (s *AccountService) Sell(ctx context.Context, req TradeRequest) (domain.Transaction, error) {
	return s.trade(ctx, "sell", req, (*ledger.Account).SellShares)
}

func (s *AccountService) trade(
	ctx context.Context,
	op string,
	req TradeRequest,
	apply func(*ledger.Account, context.Context, string, int64) (domain.Transaction, error),
) (domain.Transaction, error) {
	acc, err := s.store.Get()
	if err != nil {
		return domain.Transaction{}, err
	}

	symbol := domain.NormalizeSymbol(req.Symbol)
	if !domain.ValidSymbol(symbol) {
		return domain.Transaction{}, &domain.ValidationError{
			Message: "symbol must be 1-10 characters: letters, digits or '.', starting with a letter",
		}
	}

	tx, err := apply(acc, ctx, symbol, req.Quantity)
	if err != nil {
		s.logger.Debug(op+" rejected",
			zap.String("symbol", symbol),
			zap.Int64("quantity", req.Quantity),
			zap.Error(err))
		return domain.Transaction{}, err
	}

	s.logger.Info(op+" executed",
		zap.String("id", tx.ID),
		zap.String("symbol", tx.Symbol),
		zap.Int64("quantity", tx.Quantity),
		zap.String("price", tx.UnitPrice.String()),
		zap.String("amount", domain.FormatAmount(tx.Amount)))
	return tx, nil
}

// Holdings returns the account's holdings valued at current prices,
// ordered by symbol.
func (s *AccountService) Holdings(ctx context.Context) ([]HoldingValue, error) {
	acc, err := s.store.Get()
	if err != nil {
		return nil, err
	}
	return s.valueHoldings(ctx, acc.Holdings())
}

func (s *AccountService) valueHoldings(ctx context.Context, holdings map[string]int64) ([]HoldingValue, error) {
	out := make([]HoldingValue, 0, len(holdings))
	for symbol, qty := range holdings {
		price, err := s.prices.PriceOf(ctx, symbol)
		if err != nil {
			s.logger.Error("held symbol has no price", zap.String("symbol", symbol), zap.Error(err))
			return nil, errPricing(symbol, err)
		}
		out = append(out, HoldingValue{
			Symbol:      symbol,
			Quantity:    qty,
			Price:       price,
			MarketValue: price.Mul(decimal.NewFromInt(qty)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func errPricing(symbol string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrPricingUnavailable, symbol, err)
}

// Transactions returns the account's transaction log, oldest first.
func (s *AccountService) Transactions() ([]domain.Transaction, error) {
	acc, err := s.store.Get()
	if err != nil {
		return nil, err
	}
	return acc.Transactions(), nil
}

// Summary returns cash, valuation, profit or loss and valued holdings.
func (s *AccountService) Summary(ctx context.Context) (*SummaryResponse, error) {
	acc, err := s.store.Get()
	if err != nil {
		return nil, err
	}

	// Every figure comes from one state so concurrent mutations cannot
	// make the total disagree with its parts.
	state := acc.State()
	holdings, err := s.valueHoldings(ctx, state.Holdings)
	if err != nil {
		s.logger.Error("portfolio valuation failed", zap.Error(err))
		return nil, err
	}

	value := state.Cash
	for _, h := range holdings {
		value = value.Add(h.MarketValue)
	}

	return &SummaryResponse{
		Cash:             state.Cash,
		InitialDeposit:   acc.InitialDeposit(),
		PortfolioValue:   value,
		ProfitOrLoss:     value.Sub(acc.InitialDeposit()),
		Holdings:         holdings,
		TransactionCount: state.TransactionCount,
		OpenedAt:         acc.OpenedAt(),
	}, nil
}

// ProfitOrLoss returns the current profit or loss, or the historical one
// replayed from the log when at is set.
func (s *AccountService) ProfitOrLoss(ctx context.Context, at *time.Time) (*ProfitOrLossResponse, error) {
	acc, err := s.store.Get()
	if err != nil {
		return nil, err
	}

	if at != nil {
		return &ProfitOrLossResponse{At: at, ProfitOrLoss: acc.ProfitOrLossAt(*at)}, nil
	}

	pnl, err := acc.ProfitOrLoss(ctx)
	if err != nil {
		s.logger.Error("portfolio valuation failed", zap.Error(err))
		return nil, err
	}
	return &ProfitOrLossResponse{ProfitOrLoss: pnl}, nil
}
