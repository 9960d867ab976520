package domain

import "fmt"

// ServerError is a failed server request: a best-effort human readable
// message plus the HTTP status the network layer saw. Returned instead of
// being thrown so callers can branch on transport vs. local failures.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("server error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server error: %s", e.Message)
}

// IsServerError reports whether err is a failed server request.
func IsServerError(err error) (*ServerError, bool) {
	se, ok := err.(*ServerError)
	return se, ok
}
