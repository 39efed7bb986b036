package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/service"
)

// StockHandler handles HTTP requests for stock price endpoints.
type StockHandler struct {
	priceSvc *service.PriceService
}

// NewStockHandler creates a new StockHandler.
func NewStockHandler(priceSvc *service.PriceService) *StockHandler {
	return &StockHandler{priceSvc: priceSvc}
}

// priceResponse is the JSON response for GET /stocks/{symbol}/price.
type priceResponse struct {
	Symbol   string `json:"symbol"`
	Price    string `json:"price"`
	QuotedAt string `json:"quoted_at"`
}

// setPriceRequest is the JSON request body for PUT /stocks/{symbol}/price.
type setPriceRequest struct {
	Price *decimal.Decimal `json:"price"`
}

func toPriceResponse(p service.PriceResponse) priceResponse {
	return priceResponse{
		Symbol:   p.Symbol,
		Price:    p.Price.String(),
		QuotedAt: formatTime(p.QuotedAt),
	}
}

// GetPrice handles GET /stocks/{symbol}/price.
func (h *StockHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	price, err := h.priceSvc.GetPrice(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toPriceResponse(*price))
}

// ListPrices handles GET /stocks.
func (h *StockHandler) ListPrices(w http.ResponseWriter, r *http.Request) {
	prices, err := h.priceSvc.ListPrices(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}

	out := make([]priceResponse, len(prices))
	for i, p := range prices {
		out[i] = toPriceResponse(p)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"stocks": out})
}

// SetPrice handles PUT /stocks/{symbol}/price.
func (h *StockHandler) SetPrice(w http.ResponseWriter, r *http.Request) {
	var req setPriceRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Price == nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "price is required")
		return
	}

	price, err := h.priceSvc.SetPrice(chi.URLParam(r, "symbol"), *req.Price)
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toPriceResponse(*price))
}
