package domain

import "errors"

// Common domain errors
var (
	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrInvalidRole     = errors.New("invalid message role")

	// Streaming errors
	ErrMissingCredential = errors.New("no API credential available")
	ErrMissingEndpoint   = errors.New("no backend endpoint configured")
	ErrStreamInFlight    = errors.New("a stream is already in flight for this session")
	ErrNoResponse        = errors.New("no response received from stream")

	// Persistence errors
	ErrKeyNotFound   = errors.New("key not found")
	ErrImportFailed  = errors.New("snapshot import failed")
	ErrStoreDisabled = errors.New("autosave is disabled")

	// Validation errors
	ErrInvalidID    = errors.New("invalid ID format")
	ErrEmptyContent = errors.New("content cannot be empty")
	ErrInvalidInput = errors.New("invalid input")
)

// DomainError wraps a domain error with additional context
type DomainError struct {
	Err     error
	Message string
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func NewDomainError(err error, message string) *DomainError {
	return &DomainError{Err: err, Message: message}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrMessageNotFound) ||
		errors.Is(err, ErrKeyNotFound)
}
