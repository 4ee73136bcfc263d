package addon

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication is returned for 401/403 responses.
	ErrAuthentication = errors.New("add-on authentication failed")
	// ErrNotFound is returned for 404 responses, usually a wrong slug or path.
	ErrNotFound = errors.New("add-on endpoint not found")
	// ErrNotReady marks a failed connection check during setup. Callers retry later.
	ErrNotReady = errors.New("add-on not ready")
	// ErrInvalidResponse is returned when a 2xx body is not JSON.
	ErrInvalidResponse = errors.New("add-on returned non-JSON response")
	// ErrEmptyName is returned before calling the rewards endpoints with a blank name.
	ErrEmptyName = errors.New("name is required")
)

// APIError describes a non-2xx response that is neither an auth failure nor a 404.
type APIError struct {
	Route  string
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API %s %s failed (%d): %s", e.Route, e.Method, e.Path, e.Status, e.Body)
}
