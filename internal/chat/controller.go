// Package chat coordinates sending user messages to the remote agent.
//
// The Controller appends an optimistic user message, flips the pending
// tracker, makes exactly one remote call and reconciles the result. It never
// retries and never rolls back the user's message on failure.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/raphaelgruber/finchat/internal/client"
	"github.com/raphaelgruber/finchat/internal/models"
	"github.com/raphaelgruber/finchat/internal/session"
	"github.com/raphaelgruber/finchat/internal/store"
)

var errEmptyReply = errors.New("empty reply")

// State is the controller's position in its send cycle.
type State int

const (
	StateIdle State = iota
	StateSending
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	default:
		return "unknown"
	}
}

// Sender is the remote side of a conversation.
type Sender interface {
	SendMessage(ctx context.Context, text, sessionID string) (*models.Message, error)
}

// StreamSender is a Sender that can also stream the reply.
type StreamSender interface {
	Sender
	StreamMessage(ctx context.Context, text, sessionID string, onToken func(string) error) (*models.Message, error)
}

// Identity reports who is sending. Satisfied by *auth.Store.
type Identity interface {
	UserID() string
}

// Controller drives the Idle -> Sending -> Idle cycle.
type Controller struct {
	sender   Sender
	identity Identity
	messages *store.Messages
	tracker  *store.Tracker
	logger   *slog.Logger
	now      func() time.Time

	mu  sync.Mutex
	err string

	errObs []func()
}

// Config wires a Controller.
type Config struct {
	Sender   Sender
	Identity Identity
	Messages *store.Messages
	Tracker  *store.Tracker
	Logger   *slog.Logger
}

// NewController creates a controller. Messages and Tracker are created when nil.
func NewController(cfg Config) *Controller {
	c := &Controller{
		sender:   cfg.Sender,
		identity: cfg.Identity,
		messages: cfg.Messages,
		tracker:  cfg.Tracker,
		logger:   cfg.Logger,
		now:      time.Now,
	}
	if c.messages == nil {
		c.messages = store.NewMessages()
	}
	if c.tracker == nil {
		c.tracker = store.NewTracker()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Messages returns the message store the controller writes to.
func (c *Controller) Messages() *store.Messages { return c.messages }

// Tracker returns the pending tracker the controller drives.
func (c *Controller) Tracker() *store.Tracker { return c.tracker }

// State reports whether a send is outstanding.
func (c *Controller) State() State {
	if c.tracker.IsPending() {
		return StateSending
	}
	return StateIdle
}

// Err returns the error recorded by the last failed send, or "".
func (c *Controller) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// DismissError clears the recorded error.
func (c *Controller) DismissError() {
	c.setErr("")
}

// OnErrorChange registers fn to run whenever the recorded error changes.
// Must be called before the controller is shared.
func (c *Controller) OnErrorChange(fn func()) {
	c.errObs = append(c.errObs, fn)
}

func (c *Controller) setErr(msg string) {
	c.mu.Lock()
	changed := c.err != msg
	c.err = msg
	c.mu.Unlock()

	if changed {
		for _, fn := range c.errObs {
			fn()
		}
	}
}

// Reset empties the conversation and clears the error. The next send starts a
// new session id.
func (c *Controller) Reset() {
	c.messages.Clear()
	c.setErr("")
}

// begin runs the entry guard and the Idle -> Sending transition. It returns
// the trimmed text and the session id, or ok=false when the send is ignored.
func (c *Controller) begin(text string) (trimmed, sessionID string, ok bool) {
	trimmed = strings.TrimSpace(text)
	if trimmed == "" {
		return "", "", false
	}
	if !c.tracker.TryBegin("") {
		c.logger.Debug("send ignored, response outstanding")
		return "", "", false
	}

	c.setErr("")

	userID := ""
	if c.identity != nil {
		userID = c.identity.UserID()
	}
	sessionID = session.EnsureID(c.messages.SessionID(), userID)

	local := models.Message{
		ID:        models.NewLocalID(),
		Content:   trimmed,
		Role:      models.RoleUser,
		SessionID: sessionID,
		UserID:    userID,
		CreatedAt: c.now().UTC(),
	}
	if err := c.messages.Append(local); err != nil {
		// Local ids are random UUIDs; a clash means something is badly wrong.
		c.logger.Error("failed to append user message", "error", err)
	}

	c.logger.Info("sending message", "session_id", sessionID, "length", len(trimmed))
	return trimmed, sessionID, true
}

// fail records err unless the transport already invalidated the session.
func (c *Controller) fail(sessionID string, err error) {
	if errors.Is(err, client.ErrSessionExpired) {
		c.logger.Warn("send aborted, session expired", "session_id", sessionID)
		return
	}
	msg := client.ErrorMessage(err)
	c.logger.Error("send failed", "session_id", sessionID, "error", err)
	c.setErr(msg)
}

// Send sends text and waits for the reply. It returns false when the send
// was ignored (blank text, or another send outstanding).
func (c *Controller) Send(ctx context.Context, text string) bool {
	trimmed, sessionID, ok := c.begin(text)
	if !ok {
		return false
	}
	defer c.tracker.SetPending(false, "")

	reply, err := c.sender.SendMessage(ctx, trimmed, sessionID)
	if err == nil && reply == nil {
		err = &client.ParseError{Status: http.StatusOK, Err: errEmptyReply}
	}
	if err != nil {
		c.fail(sessionID, err)
		return true
	}

	if err := c.messages.Append(*reply); err != nil {
		c.logger.Warn("dropping reply", "message_id", reply.ID, "error", err)
		return true
	}
	c.logger.Info("reply received", "session_id", sessionID, "message_id", reply.ID, "agent", reply.Agent)
	return true
}

// SendStream is Send over the streaming transport. An empty assistant
// placeholder is appended and filled as tokens arrive; the tracker carries
// the placeholder id while pending. When the server's final message arrives
// it takes the placeholder's place. A failed stream keeps any partial
// content, and a placeholder that never received a token is removed. Falls
// back to Send when the sender cannot stream.
func (c *Controller) SendStream(ctx context.Context, text string) bool {
	streamer, ok := c.sender.(StreamSender)
	if !ok {
		return c.Send(ctx, text)
	}

	trimmed, sessionID, ok := c.begin(text)
	if !ok {
		return false
	}
	defer c.tracker.SetPending(false, "")

	placeholder := models.Message{
		ID:        models.NewLocalID(),
		Role:      models.RoleAssistant,
		SessionID: sessionID,
		CreatedAt: c.now().UTC(),
	}
	if err := c.messages.Append(placeholder); err != nil {
		c.logger.Error("failed to append placeholder", "error", err)
	}
	c.tracker.SetPending(true, placeholder.ID)

	var content strings.Builder
	final, err := streamer.StreamMessage(ctx, trimmed, sessionID, func(token string) error {
		content.WriteString(token)
		c.messages.UpdateContent(placeholder.ID, content.String())
		return nil
	})
	if err == nil && final == nil && content.Len() == 0 {
		err = &client.ParseError{Status: http.StatusSwitchingProtocols, Err: errEmptyReply}
	}
	if err != nil {
		if content.Len() == 0 {
			c.messages.Remove(placeholder.ID)
		}
		c.fail(sessionID, err)
		return true
	}

	if final == nil {
		c.logger.Info("stream completed", "session_id", sessionID, "message_id", placeholder.ID)
		return true
	}
	reply := *final
	if reply.Content == "" {
		reply.Content = content.String()
	}
	if err := c.messages.Replace(placeholder.ID, reply); err != nil {
		c.logger.Warn("keeping streamed placeholder", "message_id", reply.ID, "error", err)
		c.messages.UpdateContent(placeholder.ID, reply.Content)
		return true
	}
	c.logger.Info("stream completed", "session_id", sessionID, "message_id", reply.ID, "agent", reply.Agent)
	return true
}
