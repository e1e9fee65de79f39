package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestAPIErrorMessage(t *testing.T) {
	long := `{"unexpected":"` + strings.Repeat("x", 200) + `"}`

	tests := []struct {
		name string
		body string
		want string
	}{
		{"detail string", `{"detail":"Invalid credentials provided"}`, "Invalid credentials provided"},
		{"nested error message", `{"error":{"message":"Rate limited","code":429}}`, "Rate limited"},
		{"message field", `{"message":"Agent unavailable"}`, "Agent unavailable"},
		{"detail wins over message", `{"detail":"first","message":"second"}`, "first"},
		{"error.message wins over message", `{"error":{"message":"inner"},"message":"outer"}`, "inner"},
		{"validation array of strings", `["email is required","password too short"]`, "email is required, password too short"},
		{"validation array of objects", `[{"msg":"a"},{"message":"b"},{"other":1}]`, "a, b"},
		{
			"fastapi detail list",
			`{"detail":[{"loc":["body","email"],"msg":"field required","type":"value_error.missing"},` +
				`{"loc":["body","password"],"msg":"too short","type":"value_error"}]}`,
			"field required, too short",
		},
		{"bare string", `"Service down"`, "Service down"},
		{"unknown short object", `{"code":42}`, `{"code":42}`},
		{"unknown long object", long, long[:100] + "..."},
		{"empty detail falls through", `{"detail":"","message":"used"}`, "used"},
		{"non-json body", "Bad Gateway", "Bad Gateway"},
		{"empty body", "", "Request failed with status 502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &APIError{Status: 502, Body: []byte(tt.body)}
			assert.Equal(t, tt.want, ErrorMessage(err))
		})
	}
}

func TestUnknownObjectIsCompacted(t *testing.T) {
	err := &APIError{Status: 500, Body: []byte("{\n  \"code\": 42\n}")}
	assert.Equal(t, `{"code":42}`, ErrorMessage(err))
}

func TestErrorMessageTaxonomy(t *testing.T) {
	apiErr := &APIError{Status: 401, Body: []byte(`{"detail":"Token expired"}`)}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"deadline", fmt.Errorf("execute request: %w", context.DeadlineExceeded), msgTimeout},
		{"net timeout", &url.Error{Op: "Post", URL: "http://x", Err: timeoutErr{}}, msgTimeout},
		{"parse", &ParseError{Status: 200, Err: errors.New("bad json")}, msgParse},
		{"wrapped api error", fmt.Errorf("send: %w", apiErr), "Token expired"},
		{"session expired", fmt.Errorf("%w: %w", ErrSessionExpired, apiErr), msgSessionExpired},
		{"stream error", &StreamError{Message: "agent crashed"}, "agent crashed"},
		{"cancelled", context.Canceled, msgCancelled},
		{"connection refused", &url.Error{Op: "Post", URL: "http://x", Err: errors.New("connection refused")}, msgNetwork},
		{"not authenticated", ErrNotAuthenticated, "Please log in first."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorMessage(tt.err))
		})
	}
}

func TestTruncateCountsRunes(t *testing.T) {
	s := strings.Repeat("é", 101)
	got := truncate(s, 100)
	assert.Equal(t, strings.Repeat("é", 100)+"...", got)
	assert.Equal(t, "short", truncate("short", 100))
}
