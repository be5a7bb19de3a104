package command

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tair/pos-ledger/internal/pos/domain"
)

var validate = validator.New()

// validateCommand checks the struct tags of a command and turns failures into
// a domain validation error listing each offending field.
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
		fields = append(fields, fmt.Sprintf("%s (%s)", ve.Namespace(), ve.Tag()))
	}
	sort.Strings(fields)
	return domain.ValidationError("invalid fields: %s", strings.Join(fields, ", "))
}
