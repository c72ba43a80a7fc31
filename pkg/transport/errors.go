package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// retryableStatuses are the gateway-tier failures worth trying against the
// next gateway. Everything else is a terminal answer from the service.
var retryableStatuses = map[int]bool{
	421: true, // misdirected request
	500: true,
	502: true,
	503: true,
	504: true,
}

// HTTPError is a non-200 response from the service. It carries the raw body
// for caller diagnostics and feeds the retry classification.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, body)
}

// RequestError is the terminal failure of a logical request, raised once the
// retry budget is exhausted or a non-retryable failure is hit.
type RequestError struct {
	// Attempts is the number of gateways tried, including the failing one.
	Attempts int

	// Err is the failure of the final attempt.
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// StatusCode returns the final attempt's status code, or 0 when the failure
// had no HTTP response.
func (e *RequestError) StatusCode() int {
	var httpErr *HTTPError
	if errors.As(e.Err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// Body returns the final attempt's response body, or empty when the failure
// had no HTTP response.
func (e *RequestError) Body() string {
	var httpErr *HTTPError
	if errors.As(e.Err, &httpErr) {
		return httpErr.Body
	}
	return ""
}

// Retryable reports whether a failed attempt should move on to the next
// gateway. Transport-level errors without a response are retryable;
// responses are retryable only for the gateway-tier statuses. Context
// cancellation ends the request immediately.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return retryableStatuses[httpErr.StatusCode]
	}
	return true
}
