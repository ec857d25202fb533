package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func errorResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestNewErrorExtractsMessage(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantMessage string
		wantCode    string
	}{
		{
			name:        "flat shape",
			body:        `{"message":"consulta inválida","code":"bad_query"}`,
			wantMessage: "consulta inválida",
			wantCode:    "bad_query",
		},
		{
			name:        "nested error shape",
			body:        `{"error":{"message":"token expirado","code":"auth"}}`,
			wantMessage: "token expirado",
			wantCode:    "auth",
		},
		{
			name:        "non-JSON body",
			body:        "Internal Server Error",
			wantMessage: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := newError(errorResponse(500, tt.body))
			assert.Equal(t, 500, apiErr.StatusCode)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			assert.Equal(t, tt.wantCode, apiErr.Code)
		})
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"http 408", &Error{StatusCode: http.StatusRequestTimeout}, true},
		{"http 504", &Error{StatusCode: http.StatusGatewayTimeout}, true},
		{"http 500", &Error{StatusCode: http.StatusInternalServerError}, false},
		{"http 422", &Error{StatusCode: http.StatusUnprocessableEntity}, false},
		{"http 401", &Error{StatusCode: http.StatusUnauthorized}, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"net timeout", timeoutError{}, true},
		{"connection refused", &url.Error{Op: "Post", URL: "http://localhost:1", Err: errors.New("connection refused")}, true},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "token expirado",
		UserMessage(&Error{StatusCode: 401, Message: "token expirado"}, "fallback"))
	assert.Equal(t, "fallback",
		UserMessage(&Error{StatusCode: 500}, "fallback"))
	assert.Equal(t, "fallback",
		UserMessage(errors.New("network down"), "fallback"))
}
