// Package validation provides validation functions for activation key
// requests. Struct validation uses go-playground/validator tags; failures are
// reported as ValidationErrors keyed by JSON field name.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const (
	maxPrefixLength  = 16
	maxKeyTypeLength = 32
)

// isAlpha returns true if the byte is an ASCII letter.
func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// isNum returns true if the byte is an ASCII digit.
func isNum(b byte) bool {
	return b >= '0' && b <= '9'
}

// isAlphaNum returns true if the byte is an ASCII letter or digit.
func isAlphaNum(b byte) bool {
	return isAlpha(b) || isNum(b)
}

// ValidateKeyPrefix validates the prefix placed in front of generated keys.
// Prefixes are 1-16 printable characters without whitespace.
func ValidateKeyPrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("prefix must not be empty")
	}
	if len(prefix) > maxPrefixLength {
		return fmt.Errorf("prefix must be at most %d characters", maxPrefixLength)
	}
	for _, r := range prefix {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return fmt.Errorf("prefix cannot contain whitespace or control characters")
		}
	}
	return nil
}

// ValidateKeyTypeName validates a catalog key type name such as "month" or "1year".
func ValidateKeyTypeName(name string) error {
	if name == "" {
		return fmt.Errorf("key type must not be empty")
	}
	if len(name) > maxKeyTypeLength {
		return fmt.Errorf("key type must be at most %d characters", maxKeyTypeLength)
	}
	for _, b := range []byte(name) {
		if !isAlphaNum(b) && b != '-' && b != '_' {
			return fmt.Errorf("key type can only contain letters, numbers, hyphens, or underscores")
		}
	}
	return nil
}

// ValidateKeyTypeReference validates the key type a batch of keys is issued
// under. The name need not exist in the catalog or follow catalog naming.
func ValidateKeyTypeReference(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("key type must not be empty")
	}
	if len(name) > maxKeyTypeLength {
		return fmt.Errorf("key type must be at most %d characters", maxKeyTypeLength)
	}
	return nil
}

// ValidateBatchSize checks a requested key count against the per-request ceiling.
func ValidateBatchSize(count, max int) error {
	if count < 1 {
		return fmt.Errorf("count must be at least 1")
	}
	if count > max {
		return fmt.Errorf("cannot generate more than %d keys at once", max)
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterValidation("keytype", func(fl validator.FieldLevel) bool {
		return ValidateKeyTypeName(fl.Field().String()) == nil
	})
	v.RegisterValidation("keyprefix", func(fl validator.FieldLevel) bool {
		return ValidateKeyPrefix(fl.Field().String()) == nil
	})

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Struct validates s against its `validate` tags. It returns nil or
// ValidationErrors.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	var errs ValidationErrors
	for _, fe := range fieldErrs {
		errs.Add(fe.Field(), fmt.Sprint(fe.Value()), message(fe))
	}
	return errs
}

// message renders a field error as a standalone phrase, e.g.
// "duration days must be at least 1".
func message(fe validator.FieldError) string {
	field := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be at least " + fe.Param()
	case "max":
		return field + " must be at most " + fe.Param()
	case "alphanum":
		return field + " can only contain letters and numbers"
	case "keytype":
		return ValidateKeyTypeName(fmt.Sprint(fe.Value())).Error()
	case "keyprefix":
		return ValidateKeyPrefix(fmt.Sprint(fe.Value())).Error()
	default:
		return field + " failed " + fe.Tag() + " validation"
	}
}
