package scraper

import (
	"errors"
	"fmt"
)

// ErrNoCourseFound means the search criteria matched no course occurrence.
var ErrNoCourseFound = errors.New("no course found for the search criteria")

// StatusError is returned when the booking API answers with a non-200 code.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("booking api returned status %d", e.Code)
}

// TransportError wraps failures to reach the booking API or read its answer.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("booking api request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
