package account

import (
	"github.com/ARUMANDESU/validation"

	"gitlab.com/insightbox/insightbox-backend/pkg/sanitizex"
	"gitlab.com/insightbox/insightbox-backend/pkg/validationx"
)

// Credentials is the sign-up input.
type Credentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Normalized strips whitespace from the username and email and lowercases the email.
// The password is kept byte for byte.
func (c Credentials) Normalized() Credentials {
	return Credentials{
		Username: sanitizex.CleanToken(c.Username),
		Email:    sanitizex.CleanEmail(c.Email),
		Password: c.Password,
	}
}

// Validate returns nil or a validation.Errors keyed by JSON field name that lists
// every violated field.
func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Username, validationx.UsernameRules...),
		validation.Field(&c.Email, validationx.EmailRules...),
		validation.Field(&c.Password, validationx.PasswordRules...),
	)
}
