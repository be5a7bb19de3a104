package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tair/pos-ledger/internal/pos/domain"
	"github.com/tair/pos-ledger/internal/pos/usecase/command"
	"github.com/tair/pos-ledger/internal/pos/usecase/query"
)

// PaymentRequest is the body of money received on account
type PaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Mode      string          `json:"mode"`
	Reference string          `json:"reference"`
}

// AdjustmentRequest is the body of a manual balance correction
type AdjustmentRequest struct {
	Kind   domain.CustomerLedgerKind `json:"kind"`
	Debit  decimal.Decimal           `json:"debit"`
	Credit decimal.Decimal           `json:"credit"`
	Reason string                    `json:"reason"`
}

// CreateCustomer handles POST /api/customers
func (h *LedgerHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateCustomerCommand
	if err := decodeBody(r, &cmd); err != nil {
		respondError(w, r, err)
		return
	}
	cmd.Actor = actorFrom(r, cmd.Actor)

	result, err := h.createCustomerHandler.Handle(r.Context(), cmd)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Customer created",
		Data:    result,
	})
}

// RecordPayment handles POST /api/customers/{id}/payments
func (h *LedgerHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req PaymentRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.recordPaymentHandler.Handle(r.Context(), command.RecordPaymentCommand{
		CustomerID: customerID,
		Amount:     req.Amount,
		Mode:       req.Mode,
		Reference:  req.Reference,
		Actor:      actorFrom(r, ""),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Payment recorded",
		Data:    result,
	})
}

// RecordAdjustment handles POST /api/customers/{id}/adjustments
func (h *LedgerHandler) RecordAdjustment(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req AdjustmentRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	entry, err := h.recordAdjustmentHandler.Handle(r.Context(), command.RecordAdjustmentCommand{
		CustomerID: customerID,
		Kind:       req.Kind,
		Debit:      req.Debit,
		Credit:     req.Credit,
		Reason:     req.Reason,
		Actor:      actorFrom(r, ""),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Adjustment recorded",
		Data:    entry,
	})
}

// GetCustomerLedger handles GET /api/customers/{id}/ledger
func (h *LedgerHandler) GetCustomerLedger(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	view, err := h.customerLedgerHandler.Handle(r.Context(), query.GetCustomerLedgerQuery{CustomerID: customerID})
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    view,
	})
}

// CheckReconciliation handles GET /api/reconciliation. Ids are given as
// repeated or comma separated product_id, customer_id and sale_id parameters.
func (h *LedgerHandler) CheckReconciliation(w http.ResponseWriter, r *http.Request) {
	var (
		q   query.CheckReconciliationQuery
		err error
	)
	values := r.URL.Query()
	if q.ProductIDs, err = parseIDs(values["product_id"]); err != nil {
		respondError(w, r, err)
		return
	}
	if q.CustomerIDs, err = parseIDs(values["customer_id"]); err != nil {
		respondError(w, r, err)
		return
	}
	if q.SaleIDs, err = parseIDs(values["sale_id"]); err != nil {
		respondError(w, r, err)
		return
	}

	report, err := h.reconcileHandler.Handle(r.Context(), q)
	if err != nil {
		respondError(w, r, err)
		return
	}

	message := "Ledgers reconcile"
	if !report.Consistent {
		message = "Reconciliation found violations"
	}
	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: message,
		Data:    report,
	})
}

func parseIDs(raw []string) ([]uint, error) {
	var ids []uint
	for _, value := range raw {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseUint(part, 10, 32)
			if err != nil || id == 0 {
				return nil, domain.ValidationError("invalid id %q", part)
			}
			ids = append(ids, uint(id))
		}
	}
	return ids, nil
}
