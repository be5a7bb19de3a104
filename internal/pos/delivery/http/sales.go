package http

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/tair/pos-ledger/internal/pos/domain"
	"github.com/tair/pos-ledger/internal/pos/usecase/command"
	"github.com/tair/pos-ledger/internal/pos/usecase/query"
)

// IdempotencyKeyHeader carries the client reference when the body omits it
const IdempotencyKeyHeader = "Idempotency-Key"

// CreateReturnRequest is the body of a return against a sale
type CreateReturnRequest struct {
	Items        []command.ReturnItemInput `json:"items"`
	RefundMethod string                    `json:"refund_method"`
	Reason       string                    `json:"reason"`
	ProcessedBy  string                    `json:"processed_by,omitempty"`
}

// CreateSale handles POST /api/sales
func (h *LedgerHandler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateSaleCommand
	if err := decodeBody(r, &cmd); err != nil {
		respondError(w, r, err)
		return
	}

	cmd.Cashier = actorFrom(r, cmd.Cashier)
	if cmd.ClientReference == nil {
		if key := r.Header.Get(IdempotencyKeyHeader); key != "" {
			cmd.ClientReference = &key
		}
	}

	result, err := h.createSaleHandler.Handle(r.Context(), cmd)
	if err != nil {
		respondError(w, r, err)
		return
	}

	status := http.StatusCreated
	message := "Sale completed"
	if result.Replayed {
		status = http.StatusOK
		message = "Sale already recorded"
	}
	respondJSON(w, status, Response{
		Success: true,
		Message: message,
		Data:    result,
	})
}

// GetSaleByInvoice handles GET /api/sales/invoice/{invoice_number}
func (h *LedgerHandler) GetSaleByInvoice(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.ParseInt(mux.Vars(r)["invoice_number"], 10, 64)
	if err != nil {
		respondError(w, r, domain.ValidationError("invalid invoice_number"))
		return
	}

	view, err := h.getSaleHandler.Handle(r.Context(), query.GetSaleByInvoiceQuery{InvoiceNumber: number})
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    view,
	})
}

// CreateReturn handles POST /api/sales/{id}/returns
func (h *LedgerHandler) CreateReturn(w http.ResponseWriter, r *http.Request) {
	saleID, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req CreateReturnRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.createReturnHandler.Handle(r.Context(), command.CreateReturnCommand{
		SaleID:       saleID,
		Items:        req.Items,
		RefundMethod: req.RefundMethod,
		Reason:       req.Reason,
		ProcessedBy:  actorFrom(r, req.ProcessedBy),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Return processed",
		Data:    result,
	})
}
