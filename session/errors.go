package session

// ValidationError is a sign-up form problem found before any network call
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// DomainError is a failure of the session rules themselves rather than of a backend.
// Errors match by Code, so a DomainError carrying a cause still satisfies errors.Is
// against the sentinel with the same code.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

func (e *DomainError) withCause(message string, err error) *DomainError {
	return &DomainError{Code: e.Code, Message: message, Err: err}
}

var (
	ErrProfileUnavailable   = &DomainError{Code: "profile_unavailable", Message: "Failed to fetch user profile"}
	ErrAccountIncomplete    = &DomainError{Code: "account_incomplete", Message: "Failed to create account: No user ID"}
	ErrConfirmationRequired = &DomainError{Code: "confirmation_required", Message: "Please check your email for confirmation link before signing in"}
	ErrEmailRegistered      = &DomainError{Code: "email_registered", Message: "This email is already registered"}
)

func validationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
