package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Sentinel errors for transport operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrSessionExpired is returned when the server rejects a request made
	// while the client believed it was authenticated. By the time the caller
	// sees it, credentials have been cleared and the navigator has been sent
	// to the login path.
	ErrSessionExpired = errors.New("session expired")

	// ErrNotAuthenticated is returned by operations that need a login.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// User-facing messages for transport failures.
const (
	msgTimeout        = "Request timed out. Please try again."
	msgNetwork        = "Network error. Please check your connection."
	msgParse          = "Error processing server response."
	msgCancelled      = "Request was cancelled."
	msgSessionExpired = "Your session has expired. Please log in again."
)

// maxFallbackLen is how much of an unrecognized error body is shown.
const maxFallbackLen = 100

// APIError is a non-2xx response from the API.
type APIError struct {
	Status int
	Body   []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message())
}

// Message extracts a human-readable message from the response body.
func (e *APIError) Message() string {
	if msg, ok := extractMessage(e.Body); ok {
		return msg
	}
	if text := strings.TrimSpace(string(e.Body)); text != "" {
		return truncate(text, maxFallbackLen)
	}
	return fmt.Sprintf("Request failed with status %d", e.Status)
}

// ParseError is a 2xx response whose body could not be decoded.
type ParseError struct {
	Status int
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse response (status %d): %v", e.Status, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StreamError is an error event sent by the server over the chat stream.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return "stream error: " + e.Message
}

// ErrorMessage turns any error returned by this package into the text shown
// to the user. It never returns "" for a non-nil error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrSessionExpired) {
		return msgSessionExpired
	}
	if isTimeout(err) {
		return msgTimeout
	}

	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return msgParse
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message()
	}
	var streamErr *StreamError
	if errors.As(err, &streamErr) && streamErr.Message != "" {
		return streamErr.Message
	}
	if errors.Is(err, ErrNotAuthenticated) {
		return "Please log in first."
	}
	if errors.Is(err, context.Canceled) {
		return msgCancelled
	}
	return msgNetwork
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// messageExtractor recognizes one error body shape.
type messageExtractor func(v any) (string, bool)

// extractors are tried in order; the first match wins.
var extractors = []messageExtractor{
	detailString,
	nestedErrorMessage,
	messageField,
	validationList,
	detailList,
	bareString,
}

// extractMessage decodes body and runs the extractors. Unrecognized JSON
// falls back to a truncated dump so nothing is swallowed. ok is false only
// when body is not JSON.
func extractMessage(body []byte) (string, bool) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return "", false
	}
	for _, extract := range extractors {
		if msg, ok := extract(v); ok {
			return msg, true
		}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err != nil {
		return "", false
	}
	return truncate(compact.String(), maxFallbackLen), true
}

// {"detail": "..."}
func detailString(v any) (string, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	return nonEmptyString(obj["detail"])
}

// {"error": {"message": "..."}}
func nestedErrorMessage(v any) (string, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	inner, ok := obj["error"].(map[string]any)
	if !ok {
		return "", false
	}
	return nonEmptyString(inner["message"])
}

// {"message": "..."}
func messageField(v any) (string, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	return nonEmptyString(obj["message"])
}

// ["...", {"msg": "..."}]
func validationList(v any) (string, bool) {
	items, ok := v.([]any)
	if !ok {
		return "", false
	}
	return joinItems(items)
}

// {"detail": [{"loc": [...], "msg": "...", "type": "..."}]}
func detailList(v any) (string, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	items, ok := obj["detail"].([]any)
	if !ok {
		return "", false
	}
	return joinItems(items)
}

// "..."
func bareString(v any) (string, bool) {
	return nonEmptyString(v)
}

func joinItems(items []any) (string, bool) {
	var msgs []string
	for _, item := range items {
		switch it := item.(type) {
		case string:
			if it != "" {
				msgs = append(msgs, it)
			}
		case map[string]any:
			if msg, ok := nonEmptyString(it["msg"]); ok {
				msgs = append(msgs, msg)
			} else if msg, ok := nonEmptyString(it["message"]); ok {
				msgs = append(msgs, msg)
			}
		}
	}
	if len(msgs) == 0 {
		return "", false
	}
	return strings.Join(msgs, ", "), true
}

func nonEmptyString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// truncate cuts s to maxLen runes and appends "..." when it had to cut.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
