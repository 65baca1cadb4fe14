package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidRequest indicates invalid request
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnauthorized indicates unauthorized access
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnsupportedFile indicates a document that is not a PDF
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrFileTooLarge indicates a document above the upload limit
	ErrFileTooLarge = errors.New("file too large")
	// ErrInvalidConfig indicates a rejected configuration value
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrInvalidState indicates an event the current status forbids
	ErrInvalidState = errors.New("invalid session state")
	// ErrGateway indicates a failed backend call
	ErrGateway = errors.New("backend call failed")
)

// InvalidConfigError reports which configuration field was rejected.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// InvalidStateError reports an event dispatched in a status that forbids it.
type InvalidStateError struct {
	Event  string
	Status ProcessingStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot handle %s while status is %s", e.Event, e.Status)
}

func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

// GatewayErrorKind distinguishes transport failures from backend rejections.
type GatewayErrorKind string

// Gateway error kinds
const (
	GatewayUnreachable     GatewayErrorKind = "unreachable"
	GatewayBackendRejected GatewayErrorKind = "backend_rejected"
)

// GatewayError is a normalized failure of an outbound backend call.
type GatewayError struct {
	Kind       GatewayErrorKind
	Op         string
	StatusCode int
	Body       string
	Detail     string
}

func (e *GatewayError) Error() string {
	if e.Kind == GatewayBackendRejected {
		return fmt.Sprintf("%s: backend returned status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: backend unreachable: %s", e.Op, e.Detail)
}

func (e *GatewayError) Unwrap() error {
	return ErrGateway
}

// NewRejectedError creates a GatewayError for a non-2xx response.
func NewRejectedError(op string, statusCode int, body string) error {
	return &GatewayError{Kind: GatewayBackendRejected, Op: op, StatusCode: statusCode, Body: body}
}

// NewUnreachableError creates a GatewayError for a transport failure.
func NewUnreachableError(op string, err error) error {
	return &GatewayError{Kind: GatewayUnreachable, Op: op, Detail: err.Error()}
}

// IsRejected reports whether err is a backend rejection.
func IsRejected(err error) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr) && gwErr.Kind == GatewayBackendRejected
}

// IsUnreachable reports whether err is a transport failure.
func IsUnreachable(err error) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr) && gwErr.Kind == GatewayUnreachable
}
