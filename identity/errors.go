package identity

import "errors"

// AuthError codes shared by the gateway implementations
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeUserExists         = "user_already_exists"
	CodeEmailNotConfirmed  = "email_not_confirmed"
	CodeWeakPassword       = "weak_password"
	CodeSignUpUnsupported  = "signup_unsupported"
	CodeUnavailable        = "unavailable"
	CodeUnknown            = "unknown"
)

// AuthError is a failure reported by the identity provider. Message is shown to the user as is.
type AuthError struct {
	Code    string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Err }

func NewAuthError(code, message string, err error) *AuthError {
	return &AuthError{Code: code, Message: message, Err: err}
}

// IsAuthError reports whether err carries an AuthError with the given code
func IsAuthError(err error, code string) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Code == code
}
