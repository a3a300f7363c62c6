package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	playground "github.com/go-playground/validator/v10"
	"github.com/rentwheels/carshare-backend/internal/models"
)

var structValidator = newStructValidator()

// newStructValidator reports fields by their json names
func newStructValidator() *playground.Validate {
	v := playground.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateRequest checks a request's validate tags and reports the first
// failing field as a ValidationError
func ValidateRequest(req interface{}) error {
	err := structValidator.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs playground.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return models.NewValidationError("", err.Error())
	}

	fe := fieldErrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return models.NewValidationError(field, "is required")
	case "numeric":
		return models.NewValidationError(field, "must be numeric")
	case "uuid":
		return models.NewValidationError(field, "must be a valid UUID")
	case "alphanum":
		return models.NewValidationError(field, "must contain only letters and digits")
	case "len":
		return models.NewValidationError(field, fmt.Sprintf("must be exactly %s characters", fe.Param()))
	case "min":
		return models.NewValidationError(field, fmt.Sprintf("must be at least %s characters", fe.Param()))
	case "max":
		return models.NewValidationError(field, fmt.Sprintf("must be at most %s characters", fe.Param()))
	}
	return models.NewValidationError(field, fmt.Sprintf("failed %s validation", fe.Tag()))
}
