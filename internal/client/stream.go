package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/finchat/internal/metrics"
	"github.com/raphaelgruber/finchat/internal/models"
)

const handshakeTimeout = 10 * time.Second

// streamURL converts the HTTP base URL into the websocket stream endpoint.
func (c *Client) streamURL() (string, error) {
	wsEndpoint := c.baseURL + pathStream
	wsEndpoint = strings.Replace(wsEndpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	u, err := url.Parse(wsEndpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	return u.String(), nil
}

// StreamMessage sends one user message over the websocket stream and calls
// onToken for each content fragment of the reply. Return an error from
// onToken to abort. The returned message is the server's authoritative record
// when the done event carries one, nil otherwise.
//
// The handshake carries the bearer token; a 401 on the handshake follows the
// same invalidation rule as plain requests.
func (c *Client) StreamMessage(
	ctx context.Context,
	text, sessionID string,
	onToken func(token string) error,
) (_ *models.Message, err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordTiming(metrics.OpStream, time.Since(start), err != nil)
	}()

	endpoint, err := c.streamURL()
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("User-Agent", defaultUserAgent)
	c.authorize(header)

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, c.reject(&APIError{Status: resp.StatusCode, Body: body})
		}
		return nil, fmt.Errorf("websocket connect: %w", err)
	}
	defer conn.Close()

	// Track connection state for proper cleanup
	var mu sync.Mutex
	closed := false
	closeConn := func() {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			conn.Close()
		}
	}
	defer closeConn()

	if err := conn.WriteJSON(models.SendRequest{Message: text, SessionID: sessionID}); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	// Handle context cancellation in a separate goroutine
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	for {
		var event models.StreamEvent
		if err := conn.ReadJSON(&event); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if isDecodeError(err) {
				return nil, &ParseError{Status: http.StatusSwitchingProtocols, Err: err}
			}
			return nil, fmt.Errorf("read event: %w", err)
		}

		switch event.Type {
		case models.StreamToken:
			if event.Content == "" {
				continue
			}
			if err := onToken(event.Content); err != nil {
				return nil, err
			}

		case models.StreamDone:
			return event.Message, nil

		case models.StreamError:
			msg := "unknown error"
			if event.Error != nil {
				msg = *event.Error
			}
			return nil, &StreamError{Message: msg}

		default:
			// Ignore unknown event types
			continue
		}
	}
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
