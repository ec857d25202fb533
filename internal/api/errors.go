package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
)

// Error is a non-2xx backend response with the server's message attached
// when the body carried one.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

// errorBody covers the two error shapes the backend emits.
type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Error   *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// newError builds an Error from a failed response, extracting the server
// message when present.
func newError(resp *http.Response) *Error {
	apiErr := &Error{StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apiErr
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return apiErr
	}
	apiErr.Message = eb.Message
	apiErr.Code = eb.Code
	if eb.Error != nil {
		if eb.Error.Message != "" {
			apiErr.Message = eb.Error.Message
		}
		if eb.Error.Code != "" {
			apiErr.Code = eb.Error.Code
		}
	}
	return apiErr
}

// IsTransient reports whether err is a retryable failure: a network-level or
// timeout error that never produced an HTTP status, or an HTTP 408/504.
// Every other backend error (validation, auth, not-found) is final and must
// not be retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusRequestTimeout ||
			apiErr.StatusCode == http.StatusGatewayTimeout
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// A *url.Error that carried no status is the connection-refused class.
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// UserMessage extracts the text worth showing for a failed call: the server's
// own message when one exists, the generic fallback otherwise.
func UserMessage(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
