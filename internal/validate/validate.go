// Package validate wraps a shared go-playground validator with the
// marketplace's custom tags.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/evcraddock/mela/internal/apperr"
	"github.com/evcraddock/mela/internal/market"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator returns the process-wide validator instance.
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New()

		// Report JSON field names instead of Go field names.
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})

		// Decimals validate as float64 so gt/gte/lte work on prices.
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				f, _ := d.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{})

		mustRegister(v, "category", func(fl validator.FieldLevel) bool {
			return market.Category(fl.Field().String()).IsValid()
		})
		mustRegister(v, "condition", func(fl validator.FieldLevel) bool {
			return market.Condition(fl.Field().String()).IsValid()
		})
		mustRegister(v, "locality", func(fl validator.FieldLevel) bool {
			return market.IsLocality(fl.Field().String())
		})
		mustRegister(v, "isodate", func(fl validator.FieldLevel) bool {
			return isISODate(fl.Field().String())
		})

		instance = v
	})
	return instance
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("registering %s validation: %v", tag, err))
	}
}

// isISODate accepts YYYY-MM-DD.
func isISODate(s string) bool {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return false
	}
	for i, c := range s {
		if i == 4 || i == 7 {
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Struct validates v and converts failures into an apperr validation
// error whose Fields map JSON field names to messages.
func Struct(v interface{}) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(err, apperr.ErrValidation, err.Error())
	}

	fields := make(map[string]string, len(verrs))
	var first string
	for _, fe := range verrs {
		msg := describe(fe)
		if _, seen := fields[fe.Field()]; !seen {
			fields[fe.Field()] = msg
		}
		if first == "" {
			first = fe.Field() + " " + msg
		}
	}

	return apperr.WithFields(apperr.ErrValidation, first, fields)
}

// describe renders a single field error.
func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "category":
		return "must be one of Clothing, Uniform, Kids, Home, Other"
	case "condition":
		return "must be one of New, Like New, Good, Fair"
	case "locality":
		return "must be a known locality"
	case "isodate":
		return "must be a date in YYYY-MM-DD format"
	case "oneof":
		return "must be one of " + fe.Param()
	case "alphanum":
		return "must contain only letters and digits"
	default:
		return "is invalid"
	}
}
