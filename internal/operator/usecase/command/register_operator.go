package command

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/pos-ledger/internal/operator/domain"
	"github.com/tair/pos-ledger/pkg/auth"
	"github.com/tair/pos-ledger/pkg/logger"
)

// RegisterOperatorCommand represents the command to add a till operator
type RegisterOperatorCommand struct {
	Username string `json:"username" validate:"required,min=3,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"required,max=255"`
	Role     string `json:"role"`
}

// RegisterOperatorHandler handles register operator command
type RegisterOperatorHandler struct {
	repo domain.OperatorRepository
}

// NewRegisterOperatorHandler creates a new register operator handler
func NewRegisterOperatorHandler(repo domain.OperatorRepository) *RegisterOperatorHandler {
	return &RegisterOperatorHandler{repo: repo}
}

// Handle executes the register operator command. Role defaults to cashier.
func (h *RegisterOperatorHandler) Handle(ctx context.Context, cmd RegisterOperatorCommand) (*domain.Operator, error) {
	ctx, span := tracer.Start(ctx, "command.RegisterOperator",
		trace.WithAttributes(attribute.String("operator.username", cmd.Username)),
	)
	defer span.End()

	cmd.Username = strings.TrimSpace(cmd.Username)
	if cmd.Role == "" {
		cmd.Role = auth.RoleCashier
	}
	if err := validateCommand(cmd); err != nil {
		return nil, fail(span, err)
	}
	if !domain.ValidRole(cmd.Role) {
		return nil, fail(span, fmt.Errorf("unknown role %q: %w", cmd.Role, domain.ErrValidation))
	}

	hash, err := auth.HashPassword(cmd.Password)
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to hash password: %w", err))
	}

	operator := &domain.Operator{
		Username:     cmd.Username,
		PasswordHash: hash,
		FullName:     cmd.FullName,
		Role:         cmd.Role,
		IsActive:     true,
	}
	if err := h.repo.Create(operator); err != nil {
		return nil, fail(span, err)
	}

	logger.Info(ctx).
		Uint("operator_id", operator.ID).
		Str("username", operator.Username).
		Str("role", operator.Role).
		Msg("Operator registered")

	return operator, nil
}

// EnsureAdmin registers the first administrator when no operator exists yet.
// It does nothing on a populated table or without credentials.
func (h *RegisterOperatorHandler) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}

	count, err := h.repo.Count()
	if err != nil {
		return false, fmt.Errorf("failed to count operators: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	_, err = h.Handle(ctx, RegisterOperatorCommand{
		Username: username,
		Password: password,
		FullName: "Administrator",
		Role:     auth.RoleAdmin,
	})
	if err != nil {
		return false, fmt.Errorf("failed to bootstrap admin: %w", err)
	}
	return true, nil
}
