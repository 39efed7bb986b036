package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/oracle"
)

// PriceResponse represents the response for a price lookup.
type PriceResponse struct {
	Symbol   string
	Price    decimal.Decimal
	QuotedAt time.Time
}

// PriceService exposes the simulation's price table.
type PriceService struct {
	table  *oracle.Table
	logger *zap.Logger
}

// NewPriceService creates a new PriceService.
func NewPriceService(table *oracle.Table, logger *zap.Logger) *PriceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PriceService{table: table, logger: logger}
}

// GetPrice returns the current price of symbol.
func (s *PriceService) GetPrice(ctx context.Context, symbol string) (*PriceResponse, error) {
	symbol = domain.NormalizeSymbol(symbol)
	price, err := s.table.PriceOf(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &PriceResponse{Symbol: symbol, Price: price, QuotedAt: time.Now()}, nil
}

// ListPrices returns every priced symbol, ordered by symbol.
func (s *PriceService) ListPrices(ctx context.Context) ([]PriceResponse, error) {
	now := time.Now()
	symbols := s.table.Symbols()
	out := make([]PriceResponse, 0, len(symbols))
	for _, symbol := range symbols {
		price, err := s.table.PriceOf(ctx, symbol)
		if err != nil {
			return nil, err
		}
		out = append(out, PriceResponse{Symbol: symbol, Price: price, QuotedAt: now})
	}
	return out, nil
}

// SetPrice moves the price of symbol, adding it if it was not priced.
// Existing transactions keep the prices they were executed at.
func (s *PriceService) SetPrice(symbol string, price decimal.Decimal) (*PriceResponse, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if err := domain.CheckPrecision(price); err != nil {
		return nil, err
	}
	if err := s.table.Set(symbol, price); err != nil {
		return nil, err
	}
	s.logger.Info("price set", zap.String("symbol", symbol), zap.String("price", price.String()))
	return &PriceResponse{Symbol: symbol, Price: price, QuotedAt: time.Now()}, nil
}
