package field

import (
	"fmt"
	"slices"
	"unicode/utf8"

	dagerrors "github.com/stevehiehn/greenscreen/internal/errors"
)

// Validate checks one value against its rule. Checks run in a fixed order
// and the first failure is returned.
func Validate(r Rule, value string) error {
	if value == "" {
		if r.Required {
			return dagerrors.NewFieldError(dagerrors.RequiredFieldEmpty, r.Name,
				fmt.Sprintf("%s is required but empty", r.Name))
		}
		return nil
	}

	if n := utf8.RuneCountInString(value); n > r.MaxLength {
		return dagerrors.NewFieldError(dagerrors.FieldTooLong, r.Name,
			fmt.Sprintf("%s exceeds maximum length of %d (current: %d)", r.Name, r.MaxLength, n))
	}

	if r.Kind == KindDigits && !isDigits(value) {
		return dagerrors.NewFieldError(dagerrors.InvalidDigits, r.Name,
			fmt.Sprintf("%s must contain only digits", r.Name))
	}

	if len(r.AllowedValues) > 0 && !slices.Contains(r.AllowedValues, value) {
		return dagerrors.NewFieldError(dagerrors.InvalidEnumValue, r.Name,
			fmt.Sprintf("%s must be one of %v (current: %s)", r.Name, r.AllowedValues, value))
	}

	return nil
}

// ValidateAll validates every submitted value and returns one message per
// submitted field. The bool is true only if every field passed.
func ValidateAll(s *Set, values map[string]string) (bool, []string) {
	ok, messages, _ := validateAll(s, values)
	return ok, messages
}

// ValidateAllErrors is ValidateAll that also returns the structured errors.
func ValidateAllErrors(s *Set, values map[string]string) (bool, []string, []error) {
	return validateAll(s, values)
}

func validateAll(s *Set, values map[string]string) (bool, []string, []error) {
	allOK := true
	var messages []string
	var errs []error

	for _, name := range s.Order(values) {
		value := values[name]
		r, known := s.Lookup(name)
		var err error
		if !known {
			err = dagerrors.NewFieldError(dagerrors.UnknownField, name, fmt.Sprintf("Unknown field: %s", name))
		} else {
			err = Validate(r, value)
		}
		if err != nil {
			allOK = false
			errs = append(errs, err)
			messages = append(messages, "VALIDATION ERROR - "+message(err))
			continue
		}
		messages = append(messages, fmt.Sprintf("✓ %s: '%s' (%d/%d chars)", name, value, utf8.RuneCountInString(value), r.MaxLength))
	}
	return allOK, messages, errs
}

// MissingRequired reports required fields that were not submitted at all.
func MissingRequired(s *Set, values map[string]string) []error {
	var errs []error
	for _, r := range s.rules {
		if !r.Required {
			continue
		}
		if _, ok := values[r.Name]; !ok {
			errs = append(errs, dagerrors.NewFieldError(dagerrors.RequiredFieldEmpty, r.Name,
				fmt.Sprintf("%s is required but was not submitted", r.Name)))
		}
	}
	return errs
}

// WillAutoAdvance reports whether the terminal moves the cursor on its own
// after value is typed, which happens when the value fills the field.
func WillAutoAdvance(r Rule, value string) bool {
	return utf8.RuneCountInString(value) >= r.MaxLength
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func message(err error) string {
	if re, ok := err.(*dagerrors.RunError); ok {
		return re.Message
	}
	return err.Error()
}
