package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrPermission marks a 403 response from the backend.
	ErrPermission = errors.New("backend: permission denied")
	// ErrNotFound marks a 404 response from the backend.
	ErrNotFound = errors.New("backend: no data")
	// ErrGeneric marks any other failed request.
	ErrGeneric = errors.New("backend: request failed")
	// ErrMalformedPayload marks a response that could not be decoded into the expected shape.
	ErrMalformedPayload = errors.New("backend: malformed payload")
)

// StatusError describes a non-2xx backend response.
type StatusError struct {
	Status  int
	URL     string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend: %s returned %d: %s", e.URL, e.Status, e.Message)
	}
	return fmt.Sprintf("backend: %s returned %d", e.URL, e.Status)
}

// Unwrap maps the status onto the sentinel taxonomy.
func (e *StatusError) Unwrap() error {
	switch e.Status {
	case http.StatusForbidden:
		return ErrPermission
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return ErrGeneric
	}
}

// Category is the failure class a panel renders.
type Category int

// Failure categories.
const (
	CategoryNone Category = iota
	CategoryPermission
	CategoryNotFound
	CategoryGeneric
	CategoryClientFormat
)

func (c Category) String() string {
	switch c {
	case CategoryNone:
		return "none"
	case CategoryPermission:
		return "permission"
	case CategoryNotFound:
		return "not_found"
	case CategoryClientFormat:
		return "client_format"
	default:
		return "generic"
	}
}

// Classify maps an error to its failure category. Transport errors and
// anything unrecognised are Generic.
func Classify(err error) Category {
	switch {
	case err == nil:
		return CategoryNone
	case errors.Is(err, ErrPermission):
		return CategoryPermission
	case errors.Is(err, ErrNotFound):
		return CategoryNotFound
	case errors.Is(err, ErrMalformedPayload):
		return CategoryClientFormat
	default:
		return CategoryGeneric
	}
}

// StatusOf extracts the HTTP status of a backend failure, or zero.
func StatusOf(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status
	}
	return 0
}

// MessageOf extracts the backend supplied error message, if any.
func MessageOf(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Message
	}
	return ""
}
