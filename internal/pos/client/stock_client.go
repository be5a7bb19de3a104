package client

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	posgrpc "github.com/tair/pos-ledger/internal/pos/delivery/grpc"
	"github.com/tair/pos-ledger/pkg/logger"
)

// StockServiceClient wraps the gRPC client for the stock service
type StockServiceClient struct {
	client posgrpc.StockServiceClient
	conn   *grpc.ClientConn
}

// Stock is the on-hand quantity of a product as seen by a remote till
type Stock struct {
	ProductID     uint
	SKU           string
	Name          string
	Quantity      int64
	LastReference string
}

// NewStockServiceClient creates a new stock service gRPC client. Extra dial
// options are appended to the defaults.
func NewStockServiceClient(address string, opts ...grpc.DialOption) (*StockServiceClient, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}, opts...)

	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to stock service: %w", err)
	}

	logger.Logger.Info().
		Str("address", address).
		Msg("Connected to Stock Service gRPC server")

	return &StockServiceClient{
		client: posgrpc.NewStockServiceClient(conn),
		conn:   conn,
	}, nil
}

// Close closes the gRPC connection
func (c *StockServiceClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// GetStock gets the on-hand quantity of a product
func (c *StockServiceClient) GetStock(ctx context.Context, productID uint) (*Stock, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	resp, err := c.client.GetStock(ctx, wrapperspb.UInt64(uint64(productID)))
	if err != nil {
		return nil, fmt.Errorf("failed to get stock: %w", err)
	}

	fields := resp.GetFields()
	return &Stock{
		ProductID:     uint(fields["product_id"].GetNumberValue()),
		SKU:           fields["sku"].GetStringValue(),
		Name:          fields["name"].GetStringValue(),
		Quantity:      int64(fields["quantity"].GetNumberValue()),
		LastReference: fields["last_reference"].GetStringValue(),
	}, nil
}

// CheckAvailability checks if a product has the required quantity on hand
func (c *StockServiceClient) CheckAvailability(ctx context.Context, productID uint, quantity int64) (bool, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := structpb.NewStruct(map[string]interface{}{
		"product_id": productID,
		"quantity":   quantity,
	})
	if err != nil {
		return false, 0, fmt.Errorf("failed to build availability request: %w", err)
	}

	resp, err := c.client.CheckAvailability(ctx, req)
	if err != nil {
		return false, 0, fmt.Errorf("failed to check availability: %w", err)
	}

	fields := resp.GetFields()
	return fields["sufficient"].GetBoolValue(), int64(fields["available"].GetNumberValue()), nil
}
