package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	m := NewManager("secret", "pos-ledger", time.Hour)

	token, err := m.GenerateToken(7, "alice", RoleCashier)
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, RoleCashier, claims.Role)
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	token, err := NewManager("one", "pos-ledger", time.Hour).GenerateToken(1, "bob", RoleCashier)
	require.NoError(t, err)

	_, err = NewManager("two", "pos-ledger", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	m := NewManager("secret", "pos-ledger", time.Hour)
	m.ttl = -time.Minute

	token, err := m.GenerateToken(1, "bob", RoleCashier)
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
