package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/iesreza/hrdesk-backend/lib/response"
)

var (
	instance *validator.Validate
	once     sync.Once
)

func get() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		instance.RegisterTagNameFunc(func(field reflect.StructField) string {
			return jsonName(field.Tag.Get("json"), field.Name)
		})
	})
	return instance
}

// Struct validates v against its `validate` tags. The returned error is a
// response.AppError naming the first failing field.
func Struct(v any) error {
	err := get().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return response.ErrInvalidInput
	}
	var first = fieldErrors[0]
	if first.Tag() == "required" {
		return response.ErrMissingRequired.WithMessage("%s is required", first.Field())
	}
	return response.NewErrorWithDetails(
		response.ErrorCodeInvalidInput,
		fmt.Sprintf("%s is invalid", first.Field()),
		400,
		describe(first),
	)
}

func describe(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fmt.Sprintf("failed on %s", fe.Tag())
	}
	return fmt.Sprintf("failed on %s=%s", fe.Tag(), fe.Param())
}

func jsonName(tag, fallback string) string {
	name, _, _ := strings.Cut(tag, ",")
	if name == "" || name == "-" {
		return fallback
	}
	return name
}
