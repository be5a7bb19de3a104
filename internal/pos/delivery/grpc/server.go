package grpc

import (
	"context"
	"errors"
	"math"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/tair/pos-ledger/internal/pos/domain"
	"github.com/tair/pos-ledger/internal/pos/usecase/query"
	"github.com/tair/pos-ledger/pkg/logger"
)

// StockGRPCServer serves read-only stock lookups to other tills and services
type StockGRPCServer struct {
	getStockHandler     *query.GetStockHandler
	availabilityHandler *query.CheckAvailabilityHandler
}

// NewStockGRPCServer creates a new gRPC server
func NewStockGRPCServer(
	getStockHandler *query.GetStockHandler,
	availabilityHandler *query.CheckAvailabilityHandler,
) *StockGRPCServer {
	return &StockGRPCServer{
		getStockHandler:     getStockHandler,
		availabilityHandler: availabilityHandler,
	}
}

// GetStock returns the on-hand quantity of a product
func (s *StockGRPCServer) GetStock(ctx context.Context, req *wrapperspb.UInt64Value) (*structpb.Struct, error) {
	if req.GetValue() == 0 || req.GetValue() > math.MaxUint32 {
		return nil, status.Error(codes.InvalidArgument, "product id is required")
	}

	level, err := s.getStockHandler.Handle(ctx, query.GetStockQuery{ProductID: uint(req.GetValue())})
	if err != nil {
		return nil, toStatus(ctx, "GetStock", err)
	}

	return structpb.NewStruct(map[string]interface{}{
		"product_id":     level.ProductID,
		"sku":            level.SKU,
		"name":           level.Name,
		"quantity":       level.Quantity,
		"last_reference": level.LastReference,
	})
}

// CheckAvailability reports whether the requested quantity is on hand. The
// answer is advisory; a sale re-checks when it decrements.
func (s *StockGRPCServer) CheckAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	productID, ok := wholeNumber(req, "product_id")
	if !ok || productID <= 0 || productID > math.MaxUint32 {
		return nil, status.Error(codes.InvalidArgument, "product_id must be a positive integer")
	}
	quantity, ok := wholeNumber(req, "quantity")
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "quantity must be an integer")
	}

	availability, err := s.availabilityHandler.Handle(ctx, query.CheckAvailabilityQuery{
		ProductID: uint(productID),
		Quantity:  quantity,
	})
	if err != nil {
		return nil, toStatus(ctx, "CheckAvailability", err)
	}

	return structpb.NewStruct(map[string]interface{}{
		"product_id": availability.ProductID,
		"requested":  availability.Requested,
		"available":  availability.Available,
		"sufficient": availability.Sufficient,
	})
}

func wholeNumber(req *structpb.Struct, field string) (int64, bool) {
	value, ok := req.GetFields()[field]
	if !ok {
		return 0, false
	}
	number, ok := value.GetKind().(*structpb.Value_NumberValue)
	if !ok || number.NumberValue != math.Trunc(number.NumberValue) {
		return 0, false
	}
	return int64(number.NumberValue), true
}

// toStatus maps the domain error classes onto gRPC codes
func toStatus(ctx context.Context, method string, err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		logger.Error(ctx).Err(err).Str("method", method).Msg("gRPC: request failed")
		return status.Error(codes.Internal, "internal error")
	}
}
