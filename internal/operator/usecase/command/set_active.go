package command

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/pos-ledger/internal/operator/domain"
	"github.com/tair/pos-ledger/pkg/logger"
)

// SetActiveCommand enables or disables an operator
type SetActiveCommand struct {
	OperatorID uint `validate:"required"`
	Active     bool
	Actor      string
}

// SetActiveHandler handles set active command
type SetActiveHandler struct {
	repo domain.OperatorRepository
}

// NewSetActiveHandler creates a new set active handler
func NewSetActiveHandler(repo domain.OperatorRepository) *SetActiveHandler {
	return &SetActiveHandler{repo: repo}
}

// Handle executes the set active command. Tokens already issued stay valid
// until they expire; a deactivated operator cannot log in again.
func (h *SetActiveHandler) Handle(ctx context.Context, cmd SetActiveCommand) (*domain.Operator, error) {
	ctx, span := tracer.Start(ctx, "command.SetOperatorActive",
		trace.WithAttributes(
			attribute.Int64("operator.id", int64(cmd.OperatorID)),
			attribute.Bool("operator.active", cmd.Active),
		),
	)
	defer span.End()

	if err := validateCommand(cmd); err != nil {
		return nil, fail(span, err)
	}

	operator, err := h.repo.SetActive(cmd.OperatorID, cmd.Active)
	if err != nil {
		return nil, fail(span, err)
	}

	logger.Info(ctx).
		Uint("operator_id", operator.ID).
		Bool("active", operator.IsActive).
		Str("actor", cmd.Actor).
		Msg("Operator activation changed")

	return operator, nil
}
