package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// New returns the shared validator. Field names in reported errors follow
// the `form` or `json` tag of the struct field.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(fieldName)
	return v
}

// Struct validates s and converts failures into Errors.
func Struct(v *validator.Validate, s any) Errors {
	errs := Errors{}
	err := v.Struct(s)
	if err == nil {
		return errs
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		errs.Add("general", err.Error())
		return errs
	}
	for _, fe := range fieldErrs {
		errs.Add(fe.Field(), message(fe))
	}
	return errs
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return ErrRequired.Error()
	case "email":
		return ErrEmailFormat.Error()
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
	case "oneof":
		return "must be one of: " + fe.Param()
	}
	return fe.Error()
}

func fieldName(field reflect.StructField) string {
	for _, tag := range []string{"form", "json"} {
		name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return field.Name
}
