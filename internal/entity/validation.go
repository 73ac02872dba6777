package entity

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// ValidationErrors maps a form field to its violation message.
type ValidationErrors map[string]string

func (e ValidationErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, e[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// add keeps the first message recorded for a field.
func (e ValidationErrors) add(field, message string) {
	if _, exists := e[field]; !exists {
		e[field] = message
	}
}

type operationChecker interface {
	checkOperation(op Operation, errs ValidationErrors)
}

// Validate runs the form schema for op. It returns nil when the form is valid.
func Validate(form Form, op Operation) ValidationErrors {
	errs := ValidationErrors{}
	if err := validate.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			errs.add("general", err.Error())
			return errs
		}
		for _, fe := range fieldErrs {
			errs.add(fe.Field(), Message(fe))
		}
	}
	if checker, ok := form.(operationChecker); ok {
		checker.checkOperation(op, errs)
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Message renders a human readable message for a single field violation.
func Message(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", name)
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", name, fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must use the format %s", name, layoutHint(fe.Param()))
	}
	return fmt.Sprintf("%s is invalid", name)
}

func layoutHint(layout string) string {
	switch layout {
	case "2006-01-02":
		return "YYYY-MM-DD"
	case "15:04":
		return "HH:MM"
	}
	return layout
}
