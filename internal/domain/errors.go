package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransport marks network-level failures (DNS, refused, timeout).
	ErrTransport = errors.New("transport failure")
	// ErrRateLimited marks an HTTP 429 answer.
	ErrRateLimited = errors.New("rate limited")
	// ErrQuotaExhausted marks a classifier credential that ran out of quota.
	ErrQuotaExhausted = errors.New("quota exhausted")
	// ErrMalformedResponse marks a body that could not be decoded.
	ErrMalformedResponse = errors.New("malformed response")
)

// StatusError is returned for non-2xx HTTP answers.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned %d %s", e.Service, e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("%s returned %d %s: %s", e.Service, e.Code, http.StatusText(e.Code), e.Body)
}

// Is lets errors.Is(err, ErrRateLimited) match 429 answers.
func (e *StatusError) Is(target error) bool {
	return target == ErrRateLimited && e.Code == http.StatusTooManyRequests
}
