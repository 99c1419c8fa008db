package validationx

import (
	"errors"
	"regexp"
	"testing"

	"github.com/ARUMANDESU/validation"
)

var ErrInvalidUsernameFormat = validation.NewError(
	"validation_is_username",
	"can only contain letters and numbers",
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// IsUsername reports whether s satisfies the username rules.
func IsUsername(s string) bool {
	return validation.Validate(s, UsernameRules...) == nil
}

// AssertValidationErrors fails the test unless err is a validation.Errors map
// holding exactly the expected fields with the expected error codes.
func AssertValidationErrors(t *testing.T, err error, expected map[string]string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected validation errors %v, got nil", expected)
	}

	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected error to be of type validation.Errors, got %T: %v", err, err)
	}

	if len(verrs) != len(expected) {
		t.Fatalf("expected fields %v, got %v", expected, verrs)
	}

	for field, code := range expected {
		fieldErr, found := verrs[field]
		if !found {
			t.Errorf("field %s: expected error %s, got none", field, code)
			continue
		}

		var verr validation.Error
		if !errors.As(fieldErr, &verr) {
			t.Errorf("field %s: expected validation.Error, got %T: %v", field, fieldErr, fieldErr)
			continue
		}
		if verr.Code() != code {
			t.Errorf("field %s: expected code %s, got %s", field, code, verr.Code())
		}
	}
}
