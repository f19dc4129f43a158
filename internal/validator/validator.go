package validator

import (
	"sync"

	ierr "github.com/flexprice/clockwork/internal/errors"
	"github.com/flexprice/clockwork/internal/types"
	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// NewValidator builds the shared validator with the domain tags registered:
//
//	trajectory       a known types.Trajectory
//	billing_interval a known types.BillingInterval
func NewValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("trajectory", func(fl validator.FieldLevel) bool {
			return types.Trajectory(fl.Field().String()).Validate() == nil
		})
		_ = validate.RegisterValidation("billing_interval", func(fl validator.FieldLevel) bool {
			return types.BillingInterval(fl.Field().String()).Validate() == nil
		})
	})
	return validate
}

func GetValidator() *validator.Validate {
	return NewValidator()
}

// ValidateRequest validates a struct and converts failures into a
// validation error carrying one reportable detail per field.
func ValidateRequest(req interface{}) error {
	v := GetValidator()
	if v == nil {
		return ierr.NewError("validator not initialized").
			WithHint("Validator must be initialized before using it").
			Mark(ierr.ErrSystem)
	}

	if err := v.Struct(req); err != nil {
		details := make(map[string]any)
		var validateErrs validator.ValidationErrors
		if ierr.As(err, &validateErrs) {
			for _, err := range validateErrs {
				details[err.Field()] = err.Error()
			}
		}
		return ierr.WithError(err).
			WithHint("Request validation failed").
			WithReportableDetails(details).
			Mark(ierr.ErrValidation)
	}
	return nil
}
