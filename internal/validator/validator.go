package validator

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// NewValidator returns the shared validator, built on first use.
// Fields are reported by their json name.
func NewValidator() *validator.Validate {
	once.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(jsonName)
		if err := v.RegisterValidation("date", isDate); err != nil {
			panic(err)
		}
		validate = v
	})
	return validate
}

func GetValidator() *validator.Validate {
	return NewValidator()
}

// ValidateRequest checks the validate tags of req. The hint names the first
// failing field, the reportable details carry all of them.
func ValidateRequest(req interface{}) error {
	err := NewValidator().Struct(req)
	if err == nil {
		return nil
	}

	var validateErrs validator.ValidationErrors
	if !ierr.As(err, &validateErrs) || len(validateErrs) == 0 {
		return ierr.WithError(err).
			WithHint("Request validation failed").
			Mark(ierr.ErrValidation)
	}

	details := make(map[string]any, len(validateErrs))
	for _, fe := range validateErrs {
		details[fieldPath(fe)] = fe.Tag()
	}
	return ierr.WithError(err).
		WithHint(hintFor(validateErrs[0])).
		WithReportableDetails(details).
		Mark(ierr.ErrValidation)
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

// isDate accepts calendar dates in YYYY-MM-DD form
func isDate(fl validator.FieldLevel) bool {
	_, err := time.Parse(time.DateOnly, fl.Field().String())
	return err == nil
}

// fieldPath drops the struct name, e.g. fee_schedule[0].effective_from
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func hintFor(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "date":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed the %s check", field, fe.Tag())
	}
}
