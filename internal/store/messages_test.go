package store

import (
	"sync"
	"testing"
	"time"

	"github.com/raphaelgruber/finchat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(id, sessionID string) models.Message {
	return models.Message{ID: id, Content: "content " + id, Role: models.RoleUser, SessionID: sessionID}
}

func TestAppendPreservesInsertionOrder(t *testing.T) {
	s := NewMessages()

	// Later timestamp first: order must follow insertion, not created_at.
	late := msg("a", "")
	late.CreatedAt = time.Now().Add(time.Hour)
	early := msg("b", "")
	early.CreatedAt = time.Now().Add(-time.Hour)

	require.NoError(t, s.Append(late))
	require.NoError(t, s.Append(early))

	got := s.Messages()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestAppendTracksSessionID(t *testing.T) {
	s := NewMessages()
	assert.Empty(t, s.SessionID())

	require.NoError(t, s.Append(msg("a", "session_u1")))
	assert.Equal(t, "session_u1", s.SessionID())

	// A message without a session id leaves the current one alone.
	require.NoError(t, s.Append(msg("b", "")))
	assert.Equal(t, "session_u1", s.SessionID())
}

func TestAppendRejectsDuplicateID(t *testing.T) {
	s := NewMessages()
	require.NoError(t, s.Append(msg("a", "")))

	err := s.Append(msg("a", ""))
	assert.ErrorIs(t, err, ErrDuplicateMessage)
	assert.Equal(t, 1, s.Len())
}

func TestUpdateContent(t *testing.T) {
	s := NewMessages()
	require.NoError(t, s.Append(msg("a", "")))

	assert.True(t, s.UpdateContent("a", "partial"))
	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "partial", got.Content)
}

func TestUpdateContentUnknownIDIsNoop(t *testing.T) {
	s := NewMessages()
	require.NoError(t, s.Append(msg("a", "")))
	before := s.Messages()

	assert.False(t, s.UpdateContent("missing", "x"))
	assert.Equal(t, before, s.Messages())
}

func TestReplaceKeepsPosition(t *testing.T) {
	s := NewMessages()
	require.NoError(t, s.Append(msg("a", "")))
	require.NoError(t, s.Append(msg("placeholder", "")))
	require.NoError(t, s.Append(msg("c", "")))

	final := models.Message{ID: "r1", Content: "done", Role: models.RoleAssistant, Agent: "Orchestrator", SessionID: "session_u1"}
	require.NoError(t, s.Replace("placeholder", final))

	got := s.Messages()
	require.Len(t, got, 3)
	assert.Equal(t, final, got[1])
	assert.Equal(t, "session_u1", s.SessionID())

	_, ok := s.Get("placeholder")
	assert.False(t, ok)
	stored, ok := s.Get("r1")
	require.True(t, ok)
	assert.Equal(t, final, stored)
}

func TestReplaceErrors(t *testing.T) {
	s := NewMessages()
	require.NoError(t, s.Append(msg("a", "")))
	require.NoError(t, s.Append(msg("b", "")))

	assert.ErrorIs(t, s.Replace("missing", msg("x", "")), ErrMessageNotFound)
	assert.ErrorIs(t, s.Replace("b", msg("a", "")), ErrDuplicateMessage)

	// Replacing a message with an updated copy of itself is fine.
	updated := msg("b", "")
	updated.Content = "edited"
	require.NoError(t, s.Replace("b", updated))
	got, _ := s.Get("b")
	assert.Equal(t, "edited", got.Content)
}

func TestRemoveReindexes(t *testing.T) {
	s := NewMessages()
	require.NoError(t, s.Append(msg("a", "")))
	require.NoError(t, s.Append(msg("b", "")))
	require.NoError(t, s.Append(msg("c", "")))

	assert.True(t, s.Remove("b"))
	assert.False(t, s.Remove("b"))

	got := s.Messages()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)

	assert.True(t, s.UpdateContent("c", "still reachable"))
	stored, _ := s.Get("c")
	assert.Equal(t, "still reachable", stored.Content)
	// The removed id is free again.
	assert.NoError(t, s.Append(msg("b", "")))
}

func TestClear(t *testing.T) {
	s := NewMessages()
	require.NoError(t, s.Append(msg("a", "session_u1")))

	s.Clear()

	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.SessionID())
	// Ids are unique per epoch only.
	assert.NoError(t, s.Append(msg("a", "")))
	assert.False(t, s.UpdateContent("stale", "late update"))
}

func TestMessagesReturnsCopy(t *testing.T) {
	s := NewMessages()
	require.NoError(t, s.Append(msg("a", "")))

	got := s.Messages()
	got[0].Content = "mutated"

	stored, _ := s.Get("a")
	assert.Equal(t, "content a", stored.Content)
}

func TestSubscribeNotifiesOnMutation(t *testing.T) {
	s := NewMessages()
	calls := 0
	unsubscribe := s.Subscribe(func() {
		calls++
		// Reading back from inside the callback must not deadlock.
		_ = s.Len()
	})

	require.NoError(t, s.Append(msg("a", "")))
	s.UpdateContent("a", "x")
	s.UpdateContent("missing", "x")
	s.Clear()
	assert.Equal(t, 3, calls)

	unsubscribe()
	require.NoError(t, s.Append(msg("b", "")))
	assert.Equal(t, 3, calls)
}

func TestConcurrentAppend(t *testing.T) {
	s := NewMessages()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Append(models.Message{ID: models.NewLocalID()})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())
}
