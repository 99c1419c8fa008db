package validationx

import (
	"github.com/ARUMANDESU/validation"
	"github.com/ARUMANDESU/validation/is"
)

const (
	MinUsernameLen = 3
	MaxUsernameLen = 20
	MinPasswordLen = 6
	// Password bounds count runes, not bytes.
	MaxPasswordLen = 256
	MinEmailLen    = 5
	MaxEmailLen    = 255
)

var (
	UsernameRules = []validation.Rule{
		validation.Required,
		validation.Length(MinUsernameLen, MaxUsernameLen),
		validation.Match(usernameRegex).ErrorObject(ErrInvalidUsernameFormat),
	}

	// EmailRules check syntax only. is.Email would also resolve MX records.
	EmailRules = []validation.Rule{
		validation.Required,
		is.EmailFormat,
		validation.Length(MinEmailLen, MaxEmailLen),
	}

	PasswordRules = []validation.Rule{
		validation.Required,
		validation.RuneLength(MinPasswordLen, MaxPasswordLen),
	}

	// IdentifierRules accept either a username or an email address.
	IdentifierRules = []validation.Rule{
		validation.Required,
		validation.Length(MinUsernameLen, MaxEmailLen),
	}
)

// VerificationCodeRules returns the rules for a numeric one-time code of the given length.
func VerificationCodeRules(length int) []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(length, length),
		is.Digit,
	}
}
