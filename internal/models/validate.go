package models

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// validate is shared by all request types in this package
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// fieldErrors maps the first failing struct field to a domain error.
// Fields without a mapping fall back to the supplied default.
func fieldErrors(err error, byField map[string]error, fallback error) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fallback
	}

	for _, fe := range verrs {
		if mapped, ok := byField[fe.Field()+"."+fe.Tag()]; ok {
			return mapped
		}
		if mapped, ok := byField[fe.Field()]; ok {
			return mapped
		}
	}
	return fallback
}
