package model

import "errors"

// Error kinds. Every domain sentinel below wraps exactly one of these so
// callers can branch on the kind with errors.Is.
var (
	ErrValidation               = errors.New("validation error")
	ErrAuthorization            = errors.New("authorization error")
	ErrCapacity                 = errors.New("capacity error")
	ErrNotFound                 = errors.New("not found")
	ErrReauthenticationRequired = errors.New("reauthentication required")
	ErrTransientBackend         = errors.New("transient backend error")
)

// KindError is a domain error tagged with its kind.
type KindError struct {
	Kind    error
	Message string
}

func (e *KindError) Error() string { return e.Message }

func (e *KindError) Unwrap() error { return e.Kind }

func newError(kind error, message string) error {
	return &KindError{Kind: kind, Message: message}
}

// Transient marks an infrastructure failure (database, redis, push) as retryable.
// Errors that already carry a kind are returned unchanged.
func Transient(err error) error {
	var kindErr *KindError
	if err == nil || errors.As(err, &kindErr) {
		return err
	}
	return &transientError{cause: err}
}

type transientError struct {
	cause error
}

func (e *transientError) Error() string { return e.cause.Error() }

func (e *transientError) Unwrap() []error { return []error{ErrTransientBackend, e.cause} }
