package client

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/finchat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamHandler upgrades the connection, reads one request and replays events.
func streamHandler(t *testing.T, events []models.StreamEvent, gotAuth *string) http.Handler {
	upgrader := websocket.Upgrader{}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotAuth != nil {
			*gotAuth = r.Header.Get("Authorization")
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()

		var req models.SendRequest
		if !assert.NoError(t, conn.ReadJSON(&req)) {
			return
		}
		assert.Equal(t, "Hello", req.Message)

		for _, ev := range events {
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
		// Keep the socket open until the client hangs up.
		_, _, _ = conn.ReadMessage()
	})
}

func TestStreamMessage(t *testing.T) {
	final := &models.Message{ID: "r1", Content: "Hi there", Role: models.RoleAssistant, Agent: "Orchestrator"}
	events := []models.StreamEvent{
		{Type: models.StreamToken, Content: "Hi"},
		{Type: "heartbeat"},
		{Type: models.StreamToken, Content: ""},
		{Type: models.StreamToken, Content: " there"},
		{Type: models.StreamDone, Message: final},
	}
	var gotAuth string
	f := newFixture(t, streamHandler(t, events, &gotAuth))
	require.NoError(t, f.creds.SetSession("tok-1", models.User{ID: "u1"}))

	var tokens []string
	msg, err := f.client.StreamMessage(context.Background(), "Hello", "session_u1", func(tok string) error {
		tokens = append(tokens, tok)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hi", " there"}, tokens)
	require.NotNil(t, msg)
	assert.Equal(t, "r1", msg.ID)
	assert.Equal(t, "Bearer tok-1", gotAuth)
}

func TestStreamMessageErrorEvent(t *testing.T) {
	reason := "agent unavailable"
	events := []models.StreamEvent{
		{Type: models.StreamToken, Content: "partial"},
		{Type: models.StreamError, Error: &reason},
	}
	f := newFixture(t, streamHandler(t, events, nil))

	_, err := f.client.StreamMessage(context.Background(), "Hello", "", func(string) error { return nil })
	require.Error(t, err)
	assert.Equal(t, "agent unavailable", ErrorMessage(err))
}

func TestStreamMessageHandshakeUnauthorized(t *testing.T) {
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token expired"})
	}))
	require.NoError(t, f.creds.SetSession("tok-1", models.User{ID: "u1"}))

	_, err := f.client.StreamMessage(context.Background(), "Hello", "", func(string) error { return nil })

	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.False(t, f.creds.IsAuthenticated())
	assert.Equal(t, []string{LoginPath}, f.nav.Paths())
}

func TestStreamMessageAbortFromCallback(t *testing.T) {
	events := []models.StreamEvent{
		{Type: models.StreamToken, Content: "one"},
		{Type: models.StreamToken, Content: "two"},
	}
	f := newFixture(t, streamHandler(t, events, nil))

	stop := assert.AnError
	_, err := f.client.StreamMessage(context.Background(), "Hello", "", func(string) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestStreamMessageContextCancel(t *testing.T) {
	// No done event: the client must give up when the context ends.
	events := []models.StreamEvent{{Type: models.StreamToken, Content: "thinking"}}
	f := newFixture(t, streamHandler(t, events, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := f.client.StreamMessage(ctx, "Hello", "", func(string) error { return nil })
	require.Error(t, err)
	assert.Equal(t, msgTimeout, ErrorMessage(err))
}

func TestStreamURL(t *testing.T) {
	c := New(Options{BaseURL: "https://api.example.com/"})
	u, err := c.streamURL()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "wss://api.example.com"))
	assert.True(t, strings.HasSuffix(u, pathStream))
}
