package routing

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorKind classifies why a route could not be produced
type ErrorKind string

const (
	InvalidInput           ErrorKind = "invalid_input"
	Timeout                ErrorKind = "timeout"
	TransportError         ErrorKind = "transport_error"
	EngineRejected         ErrorKind = "engine_rejected"
	MalformedResponse      ErrorKind = "malformed_response"
	NoAccessPointAvailable ErrorKind = "no_access_point_available"
)

// RouteError is the failure value returned by the route client and the composer
type RouteError struct {
	Kind ErrorKind
	Op   string // operation that failed, e.g. "fetch_route"
	Mode Mode   // travel mode of the failing request, when known
	Err  error
}

// NewError builds a RouteError wrapping err
func NewError(kind ErrorKind, op string, err error) *RouteError {
	return &RouteError{Kind: kind, Op: op, Err: err}
}

// Errorf builds a RouteError with a formatted cause
func Errorf(kind ErrorKind, op, format string, args ...any) *RouteError {
	return &RouteError{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *RouteError) Error() string {
	prefix := e.Op
	if e.Mode != "" {
		prefix = fmt.Sprintf("%s (%s)", e.Op, e.Mode)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", prefix, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", prefix, e.Kind, e.Err)
}

func (e *RouteError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same request may succeed later
func (e *RouteError) Retryable() bool {
	return e.Kind == Timeout || e.Kind == TransportError
}

// GRPCStatus maps the error kind onto a gRPC status
func (e *RouteError) GRPCStatus() *status.Status {
	return status.New(e.Code(), e.Error())
}

// Code returns the gRPC code for the error kind
func (e *RouteError) Code() codes.Code {
	switch e.Kind {
	case InvalidInput:
		return codes.InvalidArgument
	case Timeout:
		return codes.DeadlineExceeded
	case TransportError:
		return codes.Unavailable
	case EngineRejected:
		return codes.FailedPrecondition
	case NoAccessPointAvailable:
		return codes.NotFound
	default:
		return codes.Internal
	}
}

// KindOf extracts the ErrorKind from err, or "" when err is not a RouteError
func KindOf(err error) ErrorKind {
	var re *RouteError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// IsRetryable reports whether err is a retryable RouteError
func IsRetryable(err error) bool {
	var re *RouteError
	return errors.As(err, &re) && re.Retryable()
}
