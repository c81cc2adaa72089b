package validator

import (
	"errors"
	"fmt"
	"strings"

	"openrequests/pkg/logger"
	"openrequests/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type RequestValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

// NewRequestValidator builds the validator for request payloads. Time slots
// are opaque labels: only presence, length and uniqueness are checked here,
// whether a claimed slot was offered is decided by the lifecycle.
func NewRequestValidator(log *logger.Logger) *RequestValidator {
	v := validator.New()

	log.Info("Request validator initialized successfully")

	return &RequestValidator{
		validate: v,
		logger:   log,
	}
}

func (v *RequestValidator) ValidateCreate(input *model.CreateRequestInput) error {
	return v.validateStruct(input)
}

func (v *RequestValidator) ValidateClaim(input *model.ClaimInput) error {
	return v.validateStruct(input)
}

func (v *RequestValidator) ValidateCancel(input *model.CancelInput) error {
	return v.validateStruct(input)
}

func (v *RequestValidator) ValidateComplete(input *model.CompleteInput) error {
	return v.validateStruct(input)
}

func (v *RequestValidator) validateStruct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *RequestValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "unique":
			message = fmt.Sprintf("%s must not contain duplicates", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
