package fetcher

import (
	"errors"
	"fmt"
)

// ErrNoContent is returned when a page downloads but no body text survives extraction
var ErrNoContent = errors.New("no content could be extracted")

// FetchError reports a failed download or extraction for a single URL
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StatusError is a non-2xx HTTP response
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected response %s", e.Status)
}
