package command

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/pos-ledger/internal/operator/domain"
)

var tracer = otel.Tracer("operator-command")

var validate = validator.New()

var loginsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pos_operator_logins_total",
		Help: "Operator login attempts by result",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(loginsTotal)
}

func validateCommand(cmd interface{}) error {
	err := validate.Struct(cmd)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%v: %w", err, domain.ErrValidation)
	}

	fields := make([]string, 0, len(validationErrors))
	for _, ve := range validationErrors {
		fields = append(fields, fmt.Sprintf("%s (%s)", ve.Field(), ve.Tag()))
	}
	sort.Strings(fields)
	return fmt.Errorf("invalid fields: %s: %w", strings.Join(fields, ", "), domain.ErrValidation)
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
