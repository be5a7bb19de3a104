package command

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/pos-ledger/internal/operator/domain"
	"github.com/tair/pos-ledger/internal/operator/repository"
	"github.com/tair/pos-ledger/pkg/auth"
	"github.com/tair/pos-ledger/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Disable()
	os.Exit(m.Run())
}

func TestRegisterOperator(t *testing.T) {
	repo := repository.NewMemoryOperatorRepository()
	handler := NewRegisterOperatorHandler(repo)
	ctx := context.Background()

	operator, err := handler.Handle(ctx, RegisterOperatorCommand{
		Username: "  lena ",
		Password: "till-password",
		FullName: "Lena Park",
	})
	require.NoError(t, err)
	assert.Equal(t, "lena", operator.Username)
	assert.Equal(t, auth.RoleCashier, operator.Role)
	assert.True(t, operator.IsActive)
	assert.NotEqual(t, "till-password", operator.PasswordHash)
	assert.True(t, auth.CheckPassword(operator.PasswordHash, "till-password"))

	_, err = handler.Handle(ctx, RegisterOperatorCommand{Username: "lena", Password: "another-pass", FullName: "Other"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	tests := []struct {
		name string
		cmd  RegisterOperatorCommand
	}{
		{name: "short password", cmd: RegisterOperatorCommand{Username: "omar", Password: "short", FullName: "Omar"}},
		{name: "missing name", cmd: RegisterOperatorCommand{Username: "omar", Password: "long-enough"}},
		{name: "unknown role", cmd: RegisterOperatorCommand{Username: "omar", Password: "long-enough", FullName: "Omar", Role: "owner"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := handler.Handle(ctx, tt.cmd)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestEnsureAdmin(t *testing.T) {
	repo := repository.NewMemoryOperatorRepository()
	handler := NewRegisterOperatorHandler(repo)
	ctx := context.Background()

	created, err := handler.EnsureAdmin(ctx, "", "")
	require.NoError(t, err)
	assert.False(t, created)

	created, err = handler.EnsureAdmin(ctx, "root", "bootstrap-pass")
	require.NoError(t, err)
	assert.True(t, created)

	admin, err := repo.FindByUsername("root")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, admin.Role)

	created, err = handler.EnsureAdmin(ctx, "second", "bootstrap-pass")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestLoginOperator(t *testing.T) {
	repo := repository.NewMemoryOperatorRepository()
	manager := auth.NewManager("operator-secret", "pos-ledger", time.Hour)
	ctx := context.Background()

	operator, err := NewRegisterOperatorHandler(repo).Handle(ctx, RegisterOperatorCommand{
		Username: "sam",
		Password: "counter-two",
		FullName: "Sam Ortiz",
		Role:     auth.RoleSupervisor,
	})
	require.NoError(t, err)

	login := NewLoginOperatorHandler(repo, manager)

	resp, err := login.Handle(ctx, LoginOperatorCommand{Username: "sam", Password: "counter-two"})
	require.NoError(t, err)
	claims, err := manager.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, operator.ID, claims.UserID)
	assert.Equal(t, auth.RoleSupervisor, claims.Role)

	_, err = login.Handle(ctx, LoginOperatorCommand{Username: "sam", Password: "wrong"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = login.Handle(ctx, LoginOperatorCommand{Username: "nobody", Password: "counter-two"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = login.Handle(ctx, LoginOperatorCommand{Username: "sam"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = NewSetActiveHandler(repo).Handle(ctx, SetActiveCommand{OperatorID: operator.ID, Active: false, Actor: "root"})
	require.NoError(t, err)

	_, err = login.Handle(ctx, LoginOperatorCommand{Username: "sam", Password: "counter-two"})
	assert.ErrorIs(t, err, domain.ErrInactive)
}

func TestSetActiveUnknownOperator(t *testing.T) {
	handler := NewSetActiveHandler(repository.NewMemoryOperatorRepository())

	_, err := handler.Handle(context.Background(), SetActiveCommand{OperatorID: 7, Active: true})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = handler.Handle(context.Background(), SetActiveCommand{Active: true})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
