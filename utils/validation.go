package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// SanitizeValidationError takes a binding error and returns a user-friendly
// message without leaking Go struct names.
func SanitizeValidationError(err error) string {
	if err == nil {
		return ""
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return "Invalid request body"
	}

	var messages []string
	for _, fe := range validationErrors {
		field := snakeCase(fe.Field())
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", field))
		case "email":
			messages = append(messages, fmt.Sprintf("%s must be a valid email address", field))
		case "min":
			if fe.Kind() == reflect.String {
				messages = append(messages, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
			} else {
				messages = append(messages, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
			}
		case "max":
			if fe.Kind() == reflect.String {
				messages = append(messages, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
			} else {
				messages = append(messages, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
			}
		case "uuid":
			messages = append(messages, fmt.Sprintf("%s must be a valid id", field))
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid", field))
		}
	}

	if len(messages) == 0 {
		return "Invalid request body"
	}
	return strings.Join(messages, "; ")
}

// snakeCase turns a Go field name into its json spelling: ProductID becomes
// product_id.
func snakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if i > 0 && (prevLower || (nextLower && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
