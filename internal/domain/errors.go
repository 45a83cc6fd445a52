package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a network-related error that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "dial", "read", "subscribe")
	Err       error
	Retriable bool
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// RejectError explains why a feed record was not applied to the book.
// It always matches ErrInvalidRecord under errors.Is.
type RejectError struct {
	Reason string
	Err    error // parse error, if any
}

func (e *RejectError) Error() string {
	if e.Err != nil {
		return "record rejected: " + e.Reason + ": " + e.Err.Error()
	}
	return "record rejected: " + e.Reason
}

func (e *RejectError) Is(target error) bool {
	return target == ErrInvalidRecord
}

func (e *RejectError) Unwrap() error {
	return e.Err
}

// NewRejectError creates a RejectError with an optional cause.
func NewRejectError(reason string, err error) *RejectError {
	return &RejectError{Reason: reason, Err: err}
}

var (
	// ErrConnectionFailed is returned when websocket connection fails. It's usually retriable.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrInvalidRecord is matched by every RejectError.
	ErrInvalidRecord = errors.New("invalid feed record")

	// ErrNoOrderBook is returned by a simulation before the first accepted update.
	ErrNoOrderBook = errors.New("no order book data available")

	// ErrNoMidPrice is returned when the installed snapshot has no two-sided quote yet.
	ErrNoMidPrice = errors.New("order book has no mid price")

	// ErrInvalidParams is returned for simulate requests that cannot be costed.
	ErrInvalidParams = errors.New("invalid simulation parameters")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
