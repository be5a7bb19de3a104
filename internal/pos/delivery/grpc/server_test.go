package grpc_test

import (
	"context"
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/tair/pos-ledger/internal/pos/client"
	posgrpc "github.com/tair/pos-ledger/internal/pos/delivery/grpc"
	"github.com/tair/pos-ledger/internal/pos/repository"
	"github.com/tair/pos-ledger/internal/pos/usecase/command"
	"github.com/tair/pos-ledger/internal/pos/usecase/query"
	"github.com/tair/pos-ledger/pkg/auth"
	"github.com/tair/pos-ledger/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Disable()
	os.Exit(m.Run())
}

func dialer(listener *bufconn.Listener) func(context.Context, string) (net.Conn, error) {
	return func(ctx context.Context, _ string) (net.Conn, error) {
		return listener.DialContext(ctx)
	}
}

func startServer(t *testing.T, manager *auth.Manager, required bool) (*grpc.ClientConn, *bufconn.Listener) {
	t.Helper()

	store := repository.NewMemoryStore()
	_, err := command.NewCreateProductHandler(store).Handle(context.Background(), command.CreateProductCommand{
		SKU:             "SKU-1",
		Name:            "Soap",
		SellingPrice:    decimal.NewFromInt(3),
		OpeningQuantity: 7,
	})
	require.NoError(t, err)

	stock := query.NewGetStockHandler(store)
	server := grpc.NewServer(posgrpc.ServerOptions(manager, required)...)
	posgrpc.RegisterStockServiceServer(server, posgrpc.NewStockGRPCServer(stock, query.NewCheckAvailabilityHandler(stock)))

	listener := bufconn.Listen(1024 * 1024)
	go server.Serve(listener)
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer(listener)),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, listener
}

func TestGetStock(t *testing.T) {
	conn, _ := startServer(t, nil, false)
	stockClient := posgrpc.NewStockServiceClient(conn)

	resp, err := stockClient.GetStock(context.Background(), wrapperspb.UInt64(1))
	require.NoError(t, err)
	assert.Equal(t, float64(7), resp.GetFields()["quantity"].GetNumberValue())
	assert.Equal(t, "SKU-1", resp.GetFields()["sku"].GetStringValue())
	assert.Equal(t, "OPENING", resp.GetFields()["last_reference"].GetStringValue())

	_, err = stockClient.GetStock(context.Background(), wrapperspb.UInt64(42))
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = stockClient.GetStock(context.Background(), wrapperspb.UInt64(0))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestStockServiceClient(t *testing.T) {
	_, listener := startServer(t, nil, false)

	stock, err := client.NewStockServiceClient("passthrough:///bufnet", grpc.WithContextDialer(dialer(listener)))
	require.NoError(t, err)
	defer stock.Close()

	level, err := stock.GetStock(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint(1), level.ProductID)
	assert.Equal(t, int64(7), level.Quantity)
	assert.Equal(t, "Soap", level.Name)

	sufficient, available, err := stock.CheckAvailability(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.False(t, sufficient)
	assert.Equal(t, int64(7), available)

	_, err = stock.GetStock(context.Background(), 9)
	assert.Equal(t, codes.NotFound, status.Code(errors.Unwrap(err)))
}

func TestCheckAvailability(t *testing.T) {
	conn, _ := startServer(t, nil, false)
	stockClient := posgrpc.NewStockServiceClient(conn)

	tests := []struct {
		name       string
		quantity   int64
		sufficient bool
	}{
		{name: "enough", quantity: 7, sufficient: true},
		{name: "too many", quantity: 8, sufficient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := mustStruct(t, map[string]interface{}{"product_id": 1, "quantity": tt.quantity})
			resp, err := stockClient.CheckAvailability(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, tt.sufficient, resp.GetFields()["sufficient"].GetBoolValue())
			assert.Equal(t, float64(7), resp.GetFields()["available"].GetNumberValue())
		})
	}

	_, err := stockClient.CheckAvailability(context.Background(),
		mustStruct(t, map[string]interface{}{"product_id": 1, "quantity": 0}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = stockClient.CheckAvailability(context.Background(),
		mustStruct(t, map[string]interface{}{"product_id": "one", "quantity": 1}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestAuthInterceptor(t *testing.T) {
	manager := auth.NewManager("grpc-secret", "pos-ledger", time.Hour)
	conn, _ := startServer(t, manager, true)
	stockClient := posgrpc.NewStockServiceClient(conn)

	_, err := stockClient.GetStock(context.Background(), wrapperspb.UInt64(1))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	token, err := manager.GenerateToken(1, "carol", auth.RoleCashier)
	require.NoError(t, err)
	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
	_, err = stockClient.GetStock(ctx, wrapperspb.UInt64(1))
	assert.NoError(t, err)
}

func mustStruct(t *testing.T, fields map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return s
}
