package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/service"
)

// AccountHandler handles HTTP requests for account endpoints.
type AccountHandler struct {
	accountSvc *service.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc *service.AccountService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc}
}

// openAccountRequest is the JSON request body for POST /account.
type openAccountRequest struct {
	InitialDeposit *decimal.Decimal `json:"initial_deposit"`
}

// amountRequest is the JSON request body for deposits and withdrawals.
type amountRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

// tradeRequest is the JSON request body for buys and sells.
type tradeRequest struct {
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
}

// transactionResponse is a single ledger entry. Trade fields are null for
// deposits and withdrawals.
type transactionResponse struct {
	ID        string  `json:"id"`
	Seq       uint64  `json:"seq"`
	Timestamp string  `json:"timestamp"`
	Kind      string  `json:"kind"`
	Amount    string  `json:"amount"`
	Symbol    *string `json:"symbol"`
	Quantity  *int64  `json:"quantity"`
	UnitPrice *string `json:"unit_price"`
}

// holdingResponse is a single holding valued at the current price.
type holdingResponse struct {
	Symbol      string `json:"symbol"`
	Quantity    int64  `json:"quantity"`
	Price       string `json:"price"`
	MarketValue string `json:"market_value"`
}

// summaryResponse is the JSON response for GET /account.
type summaryResponse struct {
	Cash             string            `json:"cash_balance"`
	InitialDeposit   string            `json:"initial_deposit"`
	PortfolioValue   string            `json:"portfolio_value"`
	ProfitOrLoss     string            `json:"profit_or_loss"`
	Holdings         []holdingResponse `json:"holdings"`
	TransactionCount int               `json:"transaction_count"`
	OpenedAt         string            `json:"opened_at"`
}

// pnlResponse is the JSON response for GET /account/pnl.
type pnlResponse struct {
	At           *string `json:"at"`
	ProfitOrLoss string  `json:"profit_or_loss"`
}

func toTransactionResponse(tx domain.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:        tx.ID,
		Seq:       tx.Seq,
		Timestamp: formatTime(tx.Timestamp),
		Kind:      string(tx.Kind),
		Amount:    money(tx.Amount),
	}
	if tx.Kind.IsTrade() {
		symbol, qty, price := tx.Symbol, tx.Quantity, tx.UnitPrice.String()
		resp.Symbol = &symbol
		resp.Quantity = &qty
		resp.UnitPrice = &price
	}
	return resp
}

func toHoldingResponses(holdings []service.HoldingValue) []holdingResponse {
	out := make([]holdingResponse, len(holdings))
	for i, h := range holdings {
		out[i] = holdingResponse{
			Symbol:      h.Symbol,
			Quantity:    h.Quantity,
			Price:       h.Price.String(),
			MarketValue: money(h.MarketValue),
		}
	}
	return out
}

// Open handles POST /account.
func (h *AccountHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openAccountRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.InitialDeposit == nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "initial_deposit is required")
		return
	}

	if _, err := h.accountSvc.Open(*req.InitialDeposit); err != nil {
		mapError(w, err)
		return
	}

	summary, err := h.accountSvc.Summary(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toSummaryResponse(summary))
}

// Summary handles GET /account.
func (h *AccountHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.accountSvc.Summary(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toSummaryResponse(summary))
}

func toSummaryResponse(s *service.SummaryResponse) summaryResponse {
	return summaryResponse{
		Cash:             money(s.Cash),
		InitialDeposit:   money(s.InitialDeposit),
		PortfolioValue:   money(s.PortfolioValue),
		ProfitOrLoss:     money(s.ProfitOrLoss),
		Holdings:         toHoldingResponses(s.Holdings),
		TransactionCount: s.TransactionCount,
		OpenedAt:         formatTime(s.OpenedAt),
	}
}

// Deposit handles POST /account/deposit.
func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.moveCash(w, r, h.accountSvc.Deposit)
}

// Withdraw handles POST /account/withdraw.
func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.moveCash(w, r, h.accountSvc.Withdraw)
}

func (h *AccountHandler) moveCash(w http.ResponseWriter, r *http.Request, apply func(decimal.Decimal) (domain.Transaction, error)) {
	var req amountRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Amount == nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "amount is required")
		return
	}

	tx, err := apply(*req.Amount)
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

// Buy handles POST /account/buy.
func (h *AccountHandler) Buy(w http.ResponseWriter, r *http.Request) {
	h.trade(w, r, h.accountSvc.Buy)
}

// Sell handles POST /account/sell.
func (h *AccountHandler) Sell(w http.ResponseWriter, r *http.Request) {
	h.trade(w, r, h.accountSvc.Sell)
}

func (h *AccountHandler) trade(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, req service.TradeRequest) (domain.Transaction, error)) {
	var req tradeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	tx, err := apply(r.Context(), service.TradeRequest{Symbol: req.Symbol, Quantity: req.Quantity})
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

// Holdings handles GET /account/holdings.
func (h *AccountHandler) Holdings(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.accountSvc.Holdings(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"holdings": toHoldingResponses(holdings)})
}

// Transactions handles GET /account/transactions.
func (h *AccountHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.accountSvc.Transactions()
	if err != nil {
		mapError(w, err)
		return
	}

	out := make([]transactionResponse, len(txs))
	for i, tx := range txs {
		out[i] = toTransactionResponse(tx)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"transactions": out, "total": len(out)})
}

// ProfitOrLoss handles GET /account/pnl. With ?at=<RFC3339> the figure is
// replayed from the log as of that instant.
func (h *AccountHandler) ProfitOrLoss(w http.ResponseWriter, r *http.Request) {
	var at *time.Time
	if s := r.URL.Query().Get("at"); s != "" {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "at must be an RFC3339 timestamp")
			return
		}
		at = &t
	}

	pnl, err := h.accountSvc.ProfitOrLoss(r.Context(), at)
	if err != nil {
		mapError(w, err)
		return
	}

	resp := pnlResponse{ProfitOrLoss: money(pnl.ProfitOrLoss)}
	if pnl.At != nil {
		s := formatTime(*pnl.At)
		resp.At = &s
	}
	WriteJSON(w, http.StatusOK, resp)
}
