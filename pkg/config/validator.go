package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// StructTags validates the `validate` struct tags of a configuration.
// Failures name the offending fields by their path, e.g. "Bus.Workers".
func StructTags() Validator {
	return ValidatorFunc(func(config interface{}) error {
		err := validate.Struct(config)
		if err == nil {
			return nil
		}

		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}

		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			path := fe.Namespace()
			if i := strings.Index(path, "."); i >= 0 {
				path = path[i+1:]
			}
			if fe.Param() != "" {
				msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s (got %v)", path, fe.Tag(), fe.Param(), fe.Value()))
			} else {
				msgs = append(msgs, fmt.Sprintf("%s must satisfy %s (got %v)", path, fe.Tag(), fe.Value()))
			}
		}
		return errors.New(strings.Join(msgs, "; "))
	})
}
