// Package validate checks request payloads before any store mutation.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ehr/carelink/internal/platform/store"
)

// ErrMalformed is returned when a request body is not parseable JSON.
var ErrMalformed = errors.New("malformed request body")

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("notblank", validateNotBlank)

	return &Validator{validate: v}
}

// Struct validates s against its `validate` tags. Failures wrap
// store.ErrValidation and name every offending field.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", store.ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", store.ErrValidation, strings.Join(msgs, "; "))
}

// Var validates a single value that has no struct tag, such as a present
// optional field. name is used in the error message.
func (v *Validator) Var(name string, value any, tag string) error {
	err := v.validate.Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %s: %v", store.ErrValidation, name, err)
	}
	// Var errors carry no field name; describe with a blank one and prefix.
	return fmt.Errorf("%w: %s%s", store.ErrValidation, name, describe(verrs[0]))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "gte":
		return fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// DecodeJSON decodes exactly one JSON object from r into dst. Unknown fields
// and type mismatches wrap store.ErrValidation; syntax errors and empty
// bodies wrap ErrMalformed.
func DecodeJSON(r io.Reader, dst any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &typeErr):
			return fmt.Errorf("%w: %s must be %s", store.ErrValidation, typeErr.Field, typeErr.Type)
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			field := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("%w: unknown field %s", store.ErrValidation, field)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty body", ErrMalformed)
		default:
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON object", ErrMalformed)
	}
	return nil
}
