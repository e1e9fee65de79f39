package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnsureIDKeepsCurrent(t *testing.T) {
	first := EnsureID("session_abc", "u1")
	second := EnsureID(first, "u1")

	assert.Equal(t, "session_abc", first)
	assert.Equal(t, "session_abc", second)
	assert.Equal(t, "session_guest_1_x", EnsureID("session_guest_1_x", ""))
}

func TestEnsureIDForUser(t *testing.T) {
	assert.Equal(t, "session_u1", EnsureID("", "u1"))
	assert.Equal(t, EnsureID("", "u1"), EnsureID("", "u1"))
	assert.False(t, IsGuest(EnsureID("", "u1")))
}

func TestEnsureIDGuest(t *testing.T) {
	id := EnsureID("", "")

	assert.True(t, IsGuest(id))
	assert.Regexp(t, `^session_guest_\d+_[0-9a-f]{8}$`, id)
}

func TestGuestIDsDiffer(t *testing.T) {
	// Freeze the clock so only the random component can tell them apart.
	fixed := time.UnixMilli(1700000000000)
	orig := now
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = orig })

	a := NewGuestID()
	b := NewGuestID()

	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "1700000000000")
}
