//go:build wireinject
// +build wireinject

package pos

import (
	"github.com/google/wire"

	grpcDelivery "github.com/tair/pos-ledger/internal/pos/delivery/grpc"
	httpDelivery "github.com/tair/pos-ledger/internal/pos/delivery/http"
	"github.com/tair/pos-ledger/internal/pos/domain"
	"github.com/tair/pos-ledger/internal/pos/usecase/command"
	"github.com/tair/pos-ledger/internal/pos/usecase/query"
	"github.com/tair/pos-ledger/pkg/lock"
)

// Wire sets
var CommandHandlerSet = wire.NewSet(
	command.NewNextInvoiceHandler,
	command.NewCreateSaleHandler,
	command.NewCreateReturnHandler,
	command.NewCreateProductHandler,
	command.NewRecordStockInHandler,
	command.NewRecordStockOutHandler,
	command.NewCreateCustomerHandler,
	command.NewRecordPaymentHandler,
	command.NewRecordAdjustmentHandler,
)

var QueryHandlerSet = wire.NewSet(
	query.NewGetSaleByInvoiceHandler,
	query.NewGetProductLedgerHandler,
	query.NewGetCustomerLedgerHandler,
	query.NewCheckReconciliationHandler,
	query.NewGetStockHandler,
	query.NewCheckAvailabilityHandler,
)

// InitializeHTTPHandler initializes HTTP handler with all dependencies
func InitializeHTTPHandler(store domain.Store, locker lock.Locker, publisher domain.EventPublisher) (*httpDelivery.LedgerHandler, error) {
	wire.Build(
		CommandHandlerSet,
		QueryHandlerSet,
		httpDelivery.NewLedgerHandler,
	)
	return nil, nil
}

// InitializeGRPCServer initializes gRPC server with all dependencies
func InitializeGRPCServer(store domain.Store) (*grpcDelivery.StockGRPCServer, error) {
	wire.Build(
		query.NewGetStockHandler,
		query.NewCheckAvailabilityHandler,
		grpcDelivery.NewStockGRPCServer,
	)
	return nil, nil
}

// InitializeReconciler initializes the reconciliation query for the audit worker
func InitializeReconciler(store domain.Store) (*query.CheckReconciliationHandler, error) {
	wire.Build(
		query.NewCheckReconciliationHandler,
	)
	return nil, nil
}
