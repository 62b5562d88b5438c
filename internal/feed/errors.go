package feed

import (
	"errors"
	"fmt"
)

// ErrFetchFailed matches every *FetchError via errors.Is.
var ErrFetchFailed = errors.New("calendar fetch failed")

// FetchError means no usable calendar document exists: the refresh failed
// and there is no earlier snapshot to fall back to (or it is too old).
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return "failed to fetch calendar data: " + e.Err.Error()
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrFetchFailed, e.Err}
}

// StatusError is returned for non-2xx feed responses.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("unexpected feed status: %s", e.Status)
	}
	return fmt.Sprintf("unexpected feed status: %d", e.StatusCode)
}
