// Package validation holds the shared struct validator.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("binarylabel", binaryLabel)
	_ = validate.RegisterValidation("placeholder", hasPlaceholder)
}

// Placeholder is the token a prompt template substitutes the input text into.
const Placeholder = "{text}"

// Struct checks s against its `validate` tags.
func Struct(s any) error {
	return validate.Struct(s)
}

// Var checks a single value against a tag expression.
func Var(v any, tag string) error {
	return validate.Var(v, tag)
}

// RegisterCustomValidation registers a custom validation function with the validator.
func RegisterCustomValidation(tag string, fn validator.Func) error {
	return validate.RegisterValidation(tag, fn)
}

// Describe flattens validator errors into a single readable line.
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

func binaryLabel(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s == "0" || s == "1"
}

func hasPlaceholder(fl validator.FieldLevel) bool {
	return strings.Contains(fl.Field().String(), Placeholder)
}
