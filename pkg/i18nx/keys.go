package i18nx

// Error message keys
const (
	// Client errors
	KeyValidationFailed          = "validation_failed"
	KeyMalformedJSON             = "malformed_json"
	KeyUnauthorized              = "unauthorized"
	KeyInvalidCredentials        = "invalid_credentials"
	KeyNotFound                  = "not_found"
	KeyNotFoundWithType          = "not_found_with_type"
	KeyConflict                  = "conflict"
	KeyDuplicateEntry            = "duplicate_entry"
	KeyRateLimitExceeded         = "rate_limit_exceeded"
	KeyRateLimitExceededWithTime = "rate_limit_exceeded_with_time"

	// Server errors
	KeyInternalError          = "internal_error"
	KeyServiceUnavailable     = "service_unavailable"
	KeyPersistenceUnavailable = "persistence_unavailable"
	KeyUpstreamServiceError   = "upstream_service_error"

	// Accounts and verification
	KeyVerificationCodeIncorrect        = "verification_code_incorrect"
	KeyVerificationCodeExpired          = "verification_code_expired"
	KeyVerificationCodeAttemptsExceeded = "verification_code_attempts_exceeded"
	KeyVerificationCodeResendCooldown   = "verification_code_resend_cooldown"
	KeyVerificationEmailFailed          = "verification_email_failed"
	KeyAccountAlreadyVerified           = "account_already_verified"
	KeyAccountNotVerified               = "account_not_verified"
	KeyUsernameTaken                    = "username_taken"
	KeyEmailTaken                       = "email_taken"
	KeyWrongIdentifierOrPassword        = "wrong_identifier_or_password"
)

// Message template argument names
const (
	ArgResourceType = "ResourceType"
	ArgRetryAfter   = "RetryAfter"
)
