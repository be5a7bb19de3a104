//go:build wireinject
// +build wireinject

package operator

import (
	"github.com/google/wire"

	httpDelivery "github.com/tair/pos-ledger/internal/operator/delivery/http"
	"github.com/tair/pos-ledger/internal/operator/domain"
	"github.com/tair/pos-ledger/internal/operator/usecase/command"
	"github.com/tair/pos-ledger/pkg/auth"
)

// CommandHandlerSet provides the operator command handlers
var CommandHandlerSet = wire.NewSet(
	command.NewRegisterOperatorHandler,
	command.NewLoginOperatorHandler,
	command.NewSetActiveHandler,
)

// InitializeHTTPHandler initializes the operator HTTP handler
func InitializeHTTPHandler(repo domain.OperatorRepository, manager *auth.Manager) (*httpDelivery.OperatorHandler, error) {
	wire.Build(
		CommandHandlerSet,
		httpDelivery.NewOperatorHandler,
	)
	return nil, nil
}
