package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/tair/pos-ledger/internal/pos/usecase/command"
	"github.com/tair/pos-ledger/internal/pos/usecase/query"
)

// StockInRequest is the body of a goods receipt
type StockInRequest struct {
	Quantity  int64           `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Reference string          `json:"reference"`
}

// StockOutRequest is the body of a manual outflow
type StockOutRequest struct {
	Quantity int64  `json:"quantity"`
	Reason   string `json:"reason"`
}

// CreateProduct handles POST /api/products
func (h *LedgerHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateProductCommand
	if err := decodeBody(r, &cmd); err != nil {
		respondError(w, r, err)
		return
	}
	cmd.Actor = actorFrom(r, cmd.Actor)

	result, err := h.createProductHandler.Handle(r.Context(), cmd)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Product created",
		Data:    result,
	})
}

// RecordStockIn handles POST /api/products/{id}/stock-in
func (h *LedgerHandler) RecordStockIn(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req StockInRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.recordStockInHandler.Handle(r.Context(), command.RecordStockInCommand{
		ProductID: productID,
		Quantity:  req.Quantity,
		UnitCost:  req.UnitCost,
		Reference: req.Reference,
		Actor:     actorFrom(r, ""),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Stock received",
		Data:    result,
	})
}

// RecordStockOut handles POST /api/products/{id}/stock-out
func (h *LedgerHandler) RecordStockOut(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req StockOutRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.recordStockOutHandler.Handle(r.Context(), command.RecordStockOutCommand{
		ProductID: productID,
		Quantity:  req.Quantity,
		Reason:    req.Reason,
		Actor:     actorFrom(r, ""),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Stock movement recorded",
		Data:    result,
	})
}

// GetProductLedger handles GET /api/products/{id}/ledger
func (h *LedgerHandler) GetProductLedger(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	view, err := h.productLedgerHandler.Handle(r.Context(), query.GetProductLedgerQuery{ProductID: productID})
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    view,
	})
}
