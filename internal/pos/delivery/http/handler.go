package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/tair/pos-ledger/internal/pos/domain"
	"github.com/tair/pos-ledger/internal/pos/usecase/command"
	"github.com/tair/pos-ledger/internal/pos/usecase/query"
	"github.com/tair/pos-ledger/pkg/auth"
	"github.com/tair/pos-ledger/pkg/logger"
)

// LedgerHandler handles HTTP requests for sales, returns, stock and
// customer accounts
type LedgerHandler struct {
	// Command handlers
	createSaleHandler       *command.CreateSaleHandler
	createReturnHandler     *command.CreateReturnHandler
	createProductHandler    *command.CreateProductHandler
	recordStockInHandler    *command.RecordStockInHandler
	recordStockOutHandler   *command.RecordStockOutHandler
	createCustomerHandler   *command.CreateCustomerHandler
	recordPaymentHandler    *command.RecordPaymentHandler
	recordAdjustmentHandler *command.RecordAdjustmentHandler

	// Query handlers
	getSaleHandler        *query.GetSaleByInvoiceHandler
	productLedgerHandler  *query.GetProductLedgerHandler
	customerLedgerHandler *query.GetCustomerLedgerHandler
	reconcileHandler      *query.CheckReconciliationHandler
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(
	createSaleHandler *command.CreateSaleHandler,
	createReturnHandler *command.CreateReturnHandler,
	createProductHandler *command.CreateProductHandler,
	recordStockInHandler *command.RecordStockInHandler,
	recordStockOutHandler *command.RecordStockOutHandler,
	createCustomerHandler *command.CreateCustomerHandler,
	recordPaymentHandler *command.RecordPaymentHandler,
	recordAdjustmentHandler *command.RecordAdjustmentHandler,
	getSaleHandler *query.GetSaleByInvoiceHandler,
	productLedgerHandler *query.GetProductLedgerHandler,
	customerLedgerHandler *query.GetCustomerLedgerHandler,
	reconcileHandler *query.CheckReconciliationHandler,
) *LedgerHandler {
	return &LedgerHandler{
		createSaleHandler:       createSaleHandler,
		createReturnHandler:     createReturnHandler,
		createProductHandler:    createProductHandler,
		recordStockInHandler:    recordStockInHandler,
		recordStockOutHandler:   recordStockOutHandler,
		createCustomerHandler:   createCustomerHandler,
		recordPaymentHandler:    recordPaymentHandler,
		recordAdjustmentHandler: recordAdjustmentHandler,
		getSaleHandler:          getSaleHandler,
		productLedgerHandler:    productLedgerHandler,
		customerLedgerHandler:   customerLedgerHandler,
		reconcileHandler:        reconcileHandler,
	}
}

// Response is the JSON envelope of every endpoint
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// RegisterRoutes registers all ledger routes and returns the authenticated
// /api subrouter. Supervisor routes change prices, stock or balances outside
// of a sale. A nil limiter disables rate limiting.
func (h *LedgerHandler) RegisterRoutes(router *mux.Router, authn *Authenticator, limiter *RateLimiter) *mux.Router {
	api := router.PathPrefix("/api").Subrouter()
	api.Use(authn.Middleware)
	api.Use(limiter.Middleware)

	supervisor := authn.RequireRole(auth.RoleSupervisor, auth.RoleAdmin)

	api.HandleFunc("/sales", metricsMiddleware("/api/sales", h.CreateSale)).Methods("POST")
	api.HandleFunc("/sales/invoice/{invoice_number}", metricsMiddleware("/api/sales/invoice/{invoice_number}", h.GetSaleByInvoice)).Methods("GET")
	api.HandleFunc("/sales/{id}/returns", metricsMiddleware("/api/sales/{id}/returns", h.CreateReturn)).Methods("POST")

	api.HandleFunc("/products", metricsMiddleware("/api/products", supervisor(h.CreateProduct))).Methods("POST")
	api.HandleFunc("/products/{id}/stock-in", metricsMiddleware("/api/products/{id}/stock-in", supervisor(h.RecordStockIn))).Methods("POST")
	api.HandleFunc("/products/{id}/stock-out", metricsMiddleware("/api/products/{id}/stock-out", supervisor(h.RecordStockOut))).Methods("POST")
	api.HandleFunc("/products/{id}/ledger", metricsMiddleware("/api/products/{id}/ledger", h.GetProductLedger)).Methods("GET")

	api.HandleFunc("/customers", metricsMiddleware("/api/customers", h.CreateCustomer)).Methods("POST")
	api.HandleFunc("/customers/{id}/payments", metricsMiddleware("/api/customers/{id}/payments", h.RecordPayment)).Methods("POST")
	api.HandleFunc("/customers/{id}/adjustments", metricsMiddleware("/api/customers/{id}/adjustments", supervisor(h.RecordAdjustment))).Methods("POST")
	api.HandleFunc("/customers/{id}/ledger", metricsMiddleware("/api/customers/{id}/ledger", h.GetCustomerLedger)).Methods("GET")

	api.HandleFunc("/reconciliation", metricsMiddleware("/api/reconciliation", h.CheckReconciliation)).Methods("GET")
	return api
}

// Pinger reports storage health
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RegisterHealthCheck registers health check endpoint. A nil pinger means an
// in-memory store, which is always healthy.
func (h *LedgerHandler) RegisterHealthCheck(router *mux.Router, db Pinger) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, Response{
					Success: false,
					Error:   "Database unavailable",
				})
				return
			}
		}

		respondJSON(w, http.StatusOK, Response{
			Success: true,
			Message: "POS ledger service is healthy",
		})
	}).Methods("GET")
}

// statusFor maps the domain error classes onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// errorDetails exposes the numbers a client needs to correct a conflict
func errorDetails(err error) interface{} {
	var insufficient *domain.InsufficientStockError
	if errors.As(err, &insufficient) {
		return map[string]interface{}{
			"product_id": insufficient.ProductID,
			"requested":  insufficient.Requested,
			"available":  insufficient.Available,
		}
	}
	var exceeded *domain.ReturnQuantityExceededError
	if errors.As(err, &exceeded) {
		return map[string]interface{}{
			"sale_id":    exceeded.SaleID,
			"product_id": exceeded.ProductID,
			"requested":  exceeded.Requested,
			"remaining":  exceeded.Remaining,
		}
	}
	var duplicate *domain.DuplicateInvoiceError
	if errors.As(err, &duplicate) {
		return map[string]interface{}{"invoice_number": duplicate.InvoiceNumber}
	}
	return nil
}

// respondError sends the error with the status of its class
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(r.Context()).
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Request failed")
		respondJSON(w, status, Response{Success: false, Error: "Internal server error"})
		return
	}

	respondJSON(w, status, Response{
		Success: false,
		Error:   err.Error(),
		Data:    errorDetails(err),
	})
}

// decodeBody decodes a JSON body, rejecting unknown fields
func decodeBody(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return domain.ValidationError("invalid request body: %v", err)
	}
	return nil
}

// pathID parses a positive numeric path variable
func pathID(r *http.Request, name string) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)[name], 10, 32)
	if err != nil || id == 0 {
		return 0, domain.ValidationError("invalid %s", name)
	}
	return uint(id), nil
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
