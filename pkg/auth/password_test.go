package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("drawer-key-42")
	require.NoError(t, err)
	assert.NotEqual(t, "drawer-key-42", hash)

	assert.True(t, CheckPassword(hash, "drawer-key-42"))
	assert.False(t, CheckPassword(hash, "drawer-key-43"))
	assert.False(t, CheckPassword("not-a-hash", "drawer-key-42"))
}
