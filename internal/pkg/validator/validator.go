package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// RegisterString adds a custom tag that validates string fields with fn.
func RegisterString(tag string, fn func(string) bool) {
	validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return fn(fl.Field().String())
	})
}

// Error carries per-field messages keyed by the json field name.
type Error struct {
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string { return e.Message }

// DecodeJSON decodes the request body into dest and validates it.
func DecodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return &Error{Message: "invalid request body", Fields: map[string]string{"body": err.Error()}}
	}
	return Struct(dest)
}

func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return &Error{Message: err.Error()}
	}
	fields := map[string]string{}
	for _, fe := range errs {
		fields[fieldPath(fe)] = message(fe)
	}
	return &Error{Message: "validation failed", Fields: fields}
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "http_url":
		return "must be an absolute http or https URL"
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}
