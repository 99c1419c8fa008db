package account

import (
	"net/http"

	"gitlab.com/insightbox/insightbox-backend/pkg/errorx"
	"gitlab.com/insightbox/insightbox-backend/pkg/i18nx"
)

var (
	ErrCodeMismatch = &errorx.I18nError{
		Code:       errorx.CodeVerificationCodeIncorrect,
		MessageKey: i18nx.KeyVerificationCodeIncorrect,
		HTTPCode:   http.StatusBadRequest,
	}
	ErrCodeExpired = &errorx.I18nError{
		Code:       errorx.CodeVerificationCodeExpired,
		MessageKey: i18nx.KeyVerificationCodeExpired,
		HTTPCode:   http.StatusBadRequest,
	}
	ErrTooManyAttempts = &errorx.I18nError{
		Code:       errorx.CodeVerificationCodeAttemptsExceeded,
		MessageKey: i18nx.KeyVerificationCodeAttemptsExceeded,
		HTTPCode:   http.StatusTooManyRequests,
	}
	ErrNotVerified = &errorx.I18nError{
		Code:       errorx.CodeAccountNotVerified,
		MessageKey: i18nx.KeyAccountNotVerified,
		HTTPCode:   http.StatusForbidden,
	}

	ErrAlreadyVerified  = errorx.NewConflict().WithKey(i18nx.KeyAccountAlreadyVerified)
	ErrResendCooldown   = errorx.NewRateLimitExceeded().WithKey(i18nx.KeyVerificationCodeResendCooldown)
	ErrUsernameTaken    = errorx.NewDuplicateEntry().WithKey(i18nx.KeyUsernameTaken)
	ErrEmailTaken       = errorx.NewDuplicateEntry().WithKey(i18nx.KeyEmailTaken)
	ErrWrongCredentials = errorx.NewInvalidCredentials().WithKey(i18nx.KeyWrongIdentifierOrPassword)
	ErrNotFound         = errorx.NewResourceNotFound("account")

	// Failed redemptions change the attempt counter, so the repository has to
	// store the account even though the operation fails.
	ErrPersistentCodeMismatch    = errorx.NewPersistable(ErrCodeMismatch)
	ErrPersistentTooManyAttempts = errorx.NewPersistable(ErrTooManyAttempts)
)
