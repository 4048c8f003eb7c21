package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrMissingID         = errors.New("datasource id is required")
	ErrUnknownEntityType = errors.New("unknown access control entity type")
)

// HTTPError is returned when the backend answers with a non-2xx status.
// It carries whatever the HTTP layer produced; callers decide how to render it.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s returned status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Is lets errors.Is match status codes against the sentinel errors.
func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	}
	return false
}

// StatusCode extracts the HTTP status from err, or 0 if err is not an HTTPError.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
