package validation

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	errors "github.com/sara-platform/portal/internal"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// report json names so messages match the request body
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Struct validates a request DTO and converts failures into a validation AppError
// carrying one entry per offending field.
func Struct(dto interface{}) *errors.AppError {
	err := instance().Struct(dto)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !stderrors.As(err, &ve) {
		return errors.NewValidationError(err.Error(), errors.ErrCodeInvalidRequest)
	}

	validationErrors := make([]errors.ValidationError, 0, len(ve))
	for _, fe := range ve {
		validationErrors = append(validationErrors, errors.ValidationError{
			Field:   fe.Field(),
			Message: fieldMessage(fe.Field(), fe),
			Code:    string(codeFor(fe)),
		})
	}

	return errors.NewValidationError("Validation failed", errors.ErrCodeValidationFailed).
		WithDetails(errors.ValidationErrors{Errors: validationErrors})
}

// Var validates a single value against a tag expression.
func Var(field string, value interface{}, tag string) *errors.AppError {
	err := instance().Var(value, tag)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if stderrors.As(err, &ve) && len(ve) > 0 {
		return errors.NewValidationFieldError(field, fieldMessage(field, ve[0]), errors.ErrCodeValidationFailed)
	}
	return errors.NewValidationFieldError(field, err.Error(), errors.ErrCodeValidationFailed)
}

func codeFor(fe validator.FieldError) errors.ErrorCode {
	switch fe.Field() {
	case "theme":
		return errors.ErrCodeInvalidTheme
	case "role":
		return errors.ErrCodeInvalidRole
	}
	return errors.ErrCodeValidationFailed
}

func fieldMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "ip":
		return field + " must be a valid IP address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "alphanum":
		return field + " may only contain letters and digits"
	case "nefield":
		return fmt.Sprintf("%s must differ from %s", field, strings.ToLower(fe.Param()))
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}
