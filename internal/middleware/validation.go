package middleware

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "licensebridge/internal/errors"
	"licensebridge/internal/infrastructure"
)

// DefaultMaxBodySize bounds every decoded request body.
const DefaultMaxBodySize = 1 << 20

// Validator decodes JSON request bodies and validates them with struct tags.
type Validator struct {
	validate     *validator.Validate
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	maxBodySize  int64
}

// NewValidator creates a Validator reporting failures through errorHandler.
func NewValidator(logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *Validator {
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}

	v := validator.New()
	_ = v.RegisterValidation("single_line", isSingleLine)

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{
		validate:     v,
		logger:       infrastructure.WithComponent(logger, "validation"),
		errorHandler: errorHandler,
		maxBodySize:  DefaultMaxBodySize,
	}
}

// Decode reads the JSON body into dst and validates it. An empty body
// leaves dst at its zero value. On failure the problem response is
// already written and Decode returns false.
func (m *Validator) Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, m.maxBodySize)
		if err := render.DecodeJSON(r.Body, dst); err != nil && !errors.Is(err, io.EOF) {
			m.logger.DebugContext(r.Context(), "request body rejected", slog.String("error", err.Error()))
			m.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
			return false
		}
	}

	if err := m.ValidateStruct(dst); err != nil {
		m.errorHandler.HandleError(w, r, err)
		return false
	}
	return true
}

// ValidateStruct validates a struct and returns validation errors
func (m *Validator) ValidateStruct(v any) error {
	err := m.validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierrors.InvalidRequestWithError(err)
	}

	validationErrors := make([]apierrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		validationErrors = append(validationErrors, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: formatValidationError(fe),
		})
	}
	return apierrors.NewValidationErrors(validationErrors)
}

// formatValidationError formats validation error messages
func formatValidationError(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, param)
	case "single_line":
		return fmt.Sprintf("%s must be a single line", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

// isSingleLine rejects values containing line breaks.
func isSingleLine(fl validator.FieldLevel) bool {
	return !strings.ContainsAny(fl.Field().String(), "\r\n")
}
