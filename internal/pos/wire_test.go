package pos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/pos-ledger/internal/pos/domain"
	"github.com/tair/pos-ledger/internal/pos/repository"
	"github.com/tair/pos-ledger/pkg/lock"
)

func TestInitializers(t *testing.T) {
	store := repository.NewMemoryStore()

	handler, err := InitializeHTTPHandler(store, lock.NewLocalLocker(), domain.NoopPublisher{})
	require.NoError(t, err)
	assert.NotNil(t, handler)

	server, err := InitializeGRPCServer(store)
	require.NoError(t, err)
	assert.NotNil(t, server)

	reconciler, err := InitializeReconciler(store)
	require.NoError(t, err)
	assert.NotNil(t, reconciler)
}
