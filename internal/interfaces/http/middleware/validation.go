package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/medimaging/backend/internal/domain/report"
	"github.com/medimaging/backend/internal/infrastructure/logger"
	"github.com/medimaging/backend/internal/interfaces/http/dto"
)

var setupOnce sync.Once

// SetupValidator configures gin's validator with JSON field names and the
// report_kind and sex tags. Safe to call more than once.
func SetupValidator() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		// Use JSON tag names for field names in errors
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			}
			return name
		})
		_ = v.RegisterValidation("report_kind", validateReportKind)
		_ = v.RegisterValidation("sex", validateSex)
	})
}

func validateReportKind(fl validator.FieldLevel) bool {
	return report.Kind(fl.Field().String()).IsValid()
}

func validateSex(fl validator.FieldLevel) bool {
	_, ok := report.ParseSex(fl.Field().String())
	return ok
}

// FormatValidationErrors formats validation errors into a standard response
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			details = append(details, dto.ValidationDetail{
				Field:   e.Field(),
				Message: getValidationMessage(e),
			})
		}
	}

	return dto.NewValidationErrorResponse(
		"Request validation failed",
		requestID,
		details,
	)
}

// HandleValidationError returns a validation error response. Bodies that are
// not JSON at all get a plain invalid-JSON error instead of field details.
func HandleValidationError(c *gin.Context, err error) {
	requestID := c.GetString(logger.GinRequestIDKey)

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponseWithRequestID(
			dto.ErrCodePayloadTooLarge, "Request body exceeds maximum allowed size", requestID))
		return
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeInvalidJSON, "Invalid request body", requestID))
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, FormatValidationErrors(err, requestID))
}

// getValidationMessage returns a human-readable validation message
func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		switch e.Kind() {
		case reflect.String:
			return "Must be at least " + e.Param() + " characters"
		case reflect.Slice:
			return "Must contain at least " + e.Param() + " items"
		}
		return "Must be at least " + e.Param()
	case "max":
		switch e.Kind() {
		case reflect.String:
			return "Must be at most " + e.Param() + " characters"
		case reflect.Slice:
			return "Must contain at most " + e.Param() + " items"
		}
		return "Must be at most " + e.Param()
	case "uuid":
		return "Invalid UUID format"
	case "report_kind":
		return "Must be one of: xray ultrasound"
	case "sex":
		return "Must be one of: Male Female Other"
	default:
		return "Invalid value"
	}
}
