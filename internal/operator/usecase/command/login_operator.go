package command

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/pos-ledger/internal/operator/domain"
	"github.com/tair/pos-ledger/pkg/auth"
	"github.com/tair/pos-ledger/pkg/logger"
)

// LoginOperatorCommand represents the command to log an operator in
type LoginOperatorCommand struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the token a till sends with every ledger request
type LoginResponse struct {
	Token    string           `json:"token"`
	Operator *domain.Operator `json:"operator"`
}

// LoginOperatorHandler handles login operator command
type LoginOperatorHandler struct {
	repo    domain.OperatorRepository
	manager *auth.Manager
}

// NewLoginOperatorHandler creates a new login operator handler
func NewLoginOperatorHandler(repo domain.OperatorRepository, manager *auth.Manager) *LoginOperatorHandler {
	return &LoginOperatorHandler{repo: repo, manager: manager}
}

// Handle executes the login operator command. An unknown username and a
// wrong password fail the same way.
func (h *LoginOperatorHandler) Handle(ctx context.Context, cmd LoginOperatorCommand) (*LoginResponse, error) {
	ctx, span := tracer.Start(ctx, "command.LoginOperator",
		trace.WithAttributes(attribute.String("operator.username", cmd.Username)),
	)
	defer span.End()

	if err := validateCommand(cmd); err != nil {
		loginsTotal.WithLabelValues("invalid").Inc()
		return nil, fail(span, err)
	}

	operator, err := h.repo.FindByUsername(cmd.Username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// burn comparable time so usernames can't be probed
			auth.CheckPassword(dummyHash(), cmd.Password)
			loginsTotal.WithLabelValues("rejected").Inc()
			return nil, fail(span, domain.ErrInvalidCredentials)
		}
		return nil, fail(span, err)
	}

	if !auth.CheckPassword(operator.PasswordHash, cmd.Password) {
		loginsTotal.WithLabelValues("rejected").Inc()
		logger.Warn(ctx).Str("username", cmd.Username).Msg("Rejected login")
		return nil, fail(span, domain.ErrInvalidCredentials)
	}
	if !operator.IsActive {
		loginsTotal.WithLabelValues("inactive").Inc()
		return nil, fail(span, domain.ErrInactive)
	}

	token, err := h.manager.GenerateToken(operator.ID, operator.Username, operator.Role)
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to generate token: %w", err))
	}

	loginsTotal.WithLabelValues("ok").Inc()
	logger.Info(ctx).
		Uint("operator_id", operator.ID).
		Str("role", operator.Role).
		Msg("Operator logged in")

	return &LoginResponse{Token: token, Operator: operator}, nil
}

// dummyHash is compared against when the username is unknown
var dummyHash = sync.OnceValue(func() string {
	hash, _ := auth.HashPassword("unknown-operator")
	return hash
})
