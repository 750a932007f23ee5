// Package validation wraps go-playground/validator and turns its output into field errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"visit-tracker/internal/errs"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// Struct validates s against its `validate` tags. The result is nil or an errs.Error of
// kind validation carrying one FieldError per failed rule.
func Struct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errs.Wrap(errs.KindValidation, "invalid input", err)
	}
	fields := make([]errs.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, errs.FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return errs.Validation(fields...)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "uuid", "uuid4":
		return "must be a valid id"
	}
	return "is invalid"
}

// Field builds a single-field validation error for checks done outside struct tags.
func Field(field, msg string) error {
	return errs.Validation(errs.FieldError{Field: field, Message: msg})
}

// Merge combines validation errors into one. Non-validation errors are returned as-is.
func Merge(list ...error) error {
	var fields []errs.FieldError
	for _, err := range list {
		if err == nil {
			continue
		}
		if errs.KindOf(err) != errs.KindValidation {
			return err
		}
		fields = append(fields, errs.FieldsOf(err)...)
	}
	if len(fields) == 0 {
		return nil
	}
	return errs.Validation(fields...)
}
