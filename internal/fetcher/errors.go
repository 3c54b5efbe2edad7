package fetcher

import "fmt"

// Kind classifies a failed fetch
type Kind int

const (
	InvalidInput Kind = iota + 1
	TransportError
	Timeout
	EmptyResponse
	MalformedResponse
	APIError
	NoContent
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid_input"
	case TransportError:
		return "transport_error"
	case Timeout:
		return "timeout"
	case EmptyResponse:
		return "empty_response"
	case MalformedResponse:
		return "malformed_response"
	case APIError:
		return "api_error"
	case NoContent:
		return "no_content"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the single failure outcome of Execute. Every failure is terminal.
type Error struct {
	Kind    Kind
	Message string

	// Status is the upstream HTTP status, set for APIError
	Status int

	// Detail carries raw context for debugging: the truncated body for
	// MalformedResponse, the full envelope for APIError and NoContent
	Detail string

	Err error
}

func (e *Error) Error() string {
	if e.Kind == APIError {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}
