package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterSwaggerDocs registers Swagger documentation routes
// @Summary Swagger documentation
// @Description Swagger API documentation
// @Tags Swagger
// @Success 200 {string} string "Swagger UI"
// @Router /swagger/ [get]
func RegisterSwaggerDocs(router *mux.Router, swaggerHandler http.Handler) {
	router.PathPrefix("/swagger/").Handler(swaggerHandler)
}

// CreateSale godoc
// @Summary Ring up a sale
// @Description Prices every line, decrements stock, assigns an invoice number and posts credit sales to the customer ledger in one transaction. A repeated client_reference (or Idempotency-Key header) returns the original sale.
// @Tags Sales
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Client reference for safe retries"
// @Param request body object{payment_mode=string,items=[]object{product_id=int,quantity=int,pricing_mode=string,pack_count=int},customer_id=int,client_reference=string,cashier=string} true "Sale"
// @Success 201 {object} Response{data=object{sale_id=int,invoice_number=int,total=string,replayed=bool}}
// @Success 200 {object} Response "Replayed sale"
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 409 {object} Response{data=object{product_id=int,requested=int,available=int}}
// @Router /api/sales [post]
func (h *LedgerHandler) CreateSaleDoc() {}

// GetSaleByInvoice godoc
// @Summary Get a sale by invoice number
// @Description Returns the sale with its lines, returns and recomputed totals
// @Tags Sales
// @Security BearerAuth
// @Produce json
// @Param invoice_number path int true "Invoice number"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /api/sales/invoice/{invoice_number} [get]
func (h *LedgerHandler) GetSaleByInvoiceDoc() {}

// CreateReturn godoc
// @Summary Return goods against a sale
// @Description Refunds at the sold price, restocks, and credits the customer when the sale was on account. Quantities may never exceed what remains returnable.
// @Tags Sales
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Sale ID"
// @Param request body object{items=[]object{product_id=int,quantity=int,pricing_mode=string},refund_method=string,reason=string,processed_by=string} true "Return"
// @Success 201 {object} Response{data=object{return_id=int,total_refund=string,sale_status=string}}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 409 {object} Response{data=object{sale_id=int,product_id=int,requested=int,remaining=int}}
// @Router /api/sales/{id}/returns [post]
func (h *LedgerHandler) CreateReturnDoc() {}

// CreateProduct godoc
// @Summary Create a product
// @Description Creates the product, its stock record and an opening ledger entry
// @Tags Products
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{sku=string,name=string,cost_price=string,selling_price=string,wholesale_price=string,wholesale_pack_size=int,wholesale_piece_price=string,opening_quantity=int} true "Product"
// @Success 201 {object} Response
// @Failure 400 {object} Response
// @Failure 403 {object} Response
// @Router /api/products [post]
func (h *LedgerHandler) CreateProductDoc() {}

// RecordStockIn godoc
// @Summary Receive stock
// @Tags Products
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Product ID"
// @Param request body object{quantity=int,unit_cost=string,reference=string} true "Receipt"
// @Success 201 {object} Response
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /api/products/{id}/stock-in [post]
func (h *LedgerHandler) RecordStockInDoc() {}

// RecordStockOut godoc
// @Summary Record a manual stock outflow
// @Description Damage, consumption or issue to a department. Never takes stock below zero.
// @Tags Products
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Product ID"
// @Param request body object{quantity=int,reason=string} true "Outflow"
// @Success 201 {object} Response
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 409 {object} Response
// @Router /api/products/{id}/stock-out [post]
func (h *LedgerHandler) RecordStockOutDoc() {}

// GetProductLedger godoc
// @Summary Get a product's stock history
// @Tags Products
// @Security BearerAuth
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /api/products/{id}/ledger [get]
func (h *LedgerHandler) GetProductLedgerDoc() {}

// CreateCustomer godoc
// @Summary Open a customer account
// @Tags Customers
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{name=string,phone=string,opening_balance=string} true "Customer"
// @Success 201 {object} Response
// @Failure 400 {object} Response
// @Router /api/customers [post]
func (h *LedgerHandler) CreateCustomerDoc() {}

// RecordPayment godoc
// @Summary Record a payment on account
// @Tags Customers
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Customer ID"
// @Param request body object{amount=string,mode=string,reference=string} true "Payment"
// @Success 201 {object} Response{data=object{new_balance=string,ledger_entry=object}}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /api/customers/{id}/payments [post]
func (h *LedgerHandler) RecordPaymentDoc() {}

// RecordAdjustment godoc
// @Summary Adjust a customer balance
// @Tags Customers
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Customer ID"
// @Param request body object{kind=string,debit=string,credit=string,reason=string} true "Adjustment"
// @Success 201 {object} Response
// @Failure 400 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Router /api/customers/{id}/adjustments [post]
func (h *LedgerHandler) RecordAdjustmentDoc() {}

// GetCustomerLedger godoc
// @Summary Get a customer's ledger
// @Tags Customers
// @Security BearerAuth
// @Produce json
// @Param id path int true "Customer ID"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /api/customers/{id}/ledger [get]
func (h *LedgerHandler) GetCustomerLedgerDoc() {}

// CheckReconciliation godoc
// @Summary Audit stock and balances against their ledgers
// @Tags Reconciliation
// @Security BearerAuth
// @Produce json
// @Param product_id query []int false "Product IDs" collectionFormat(csv)
// @Param customer_id query []int false "Customer IDs" collectionFormat(csv)
// @Param sale_id query []int false "Sale IDs" collectionFormat(csv)
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /api/reconciliation [get]
func (h *LedgerHandler) CheckReconciliationDoc() {}
