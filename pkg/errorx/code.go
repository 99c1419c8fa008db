package errorx

type Code string

func (c Code) String() string {
	return string(c)
}

const (
	// Client errors (4xx)
	CodeValidationFailed   Code = "VALIDATION_FAILED"
	CodeMalformedJSON      Code = "MALFORMED_JSON"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
	CodeDuplicateEntry     Code = "DUPLICATE_ENTRY"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"

	// Verification
	CodeVerificationCodeIncorrect        Code = "VERIFICATION_CODE_INCORRECT"
	CodeVerificationCodeExpired          Code = "VERIFICATION_CODE_EXPIRED"
	CodeVerificationCodeAttemptsExceeded Code = "VERIFICATION_CODE_ATTEMPTS_EXCEEDED"
	CodeVerificationEmailFailed          Code = "VERIFICATION_EMAIL_FAILED"
	CodeAccountNotVerified               Code = "ACCOUNT_NOT_VERIFIED"

	// Server errors (5xx)
	CodeInternal           Code = "INTERNAL_ERROR"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeUpstreamError      Code = "UPSTREAM_SERVICE_ERROR"
)
