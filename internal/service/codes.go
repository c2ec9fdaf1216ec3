package service

// Machine-readable failure codes returned in the response envelope.
const (
	CodeMissingRequiredFields   = "MISSING_REQUIRED_FIELDS"
	CodeUserExists              = "USER_EXISTS"
	CodeAuthFailed              = "AUTH_FAILED"
	CodeInvalidAction           = "INVALID_ACTION"
	CodeMissingIdentifier       = "MISSING_IDENTIFIER"
	CodeInvalidCredentials      = "INVALID_CREDENTIALS"
	CodeRateLimited             = "RATE_LIMITED"
	CodeMissingEmail            = "MISSING_EMAIL"
	CodeInvalidEmail            = "INVALID_EMAIL"
	CodeEmailSendFailed         = "EMAIL_SEND_FAILED"
	CodePasswordResetError      = "PASSWORD_RESET_ERROR"
	CodeMissingToken            = "MISSING_TOKEN"
	CodeMissingPassword         = "MISSING_PASSWORD"
	CodeMissingConfirmation     = "MISSING_CONFIRMATION"
	CodePasswordMismatch        = "PASSWORD_MISMATCH"
	CodePasswordTooShort        = "PASSWORD_TOO_SHORT"
	CodePasswordTooWeak         = "PASSWORD_TOO_WEAK"
	CodeTokenVerificationFailed = "TOKEN_VERIFICATION_FAILED"
	CodeUserNotFound            = "USER_NOT_FOUND"
	CodeDatabaseError           = "DATABASE_ERROR"
	CodeInvalidTokenNoEmail     = "INVALID_TOKEN_NO_EMAIL"
	CodeResendFailed            = "RESEND_FAILED"
	CodeVerificationFailed      = "VERIFICATION_FAILED"
	CodeVerificationError       = "VERIFICATION_ERROR"
	CodeMissingSession          = "MISSING_SESSION"
	CodeInvalidToken            = "INVALID_TOKEN"
	CodeSyncFailed              = "SYNC_FAILED"
	CodeInvalidAccessToken      = "INVALID_ACCESS_TOKEN"
	CodeUserInactive            = "USER_INACTIVE"
	CodeInternal                = "INTERNAL_SERVER_ERROR"
)
