// Package session allocates logical conversation-session identifiers.
package session

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	userPrefix  = "session_"
	guestPrefix = "session_guest_"
)

// now is swapped in tests.
var now = time.Now

// EnsureID returns currentID unchanged when it is set. Otherwise it derives
// session_<userID> for an authenticated user, or mints a guest id of the form
// session_guest_<unix-millis>_<random>.
func EnsureID(currentID, userID string) string {
	if currentID != "" {
		return currentID
	}
	if userID != "" {
		return ForUser(userID)
	}
	return NewGuestID()
}

// ForUser returns the deterministic session id for a user.
func ForUser(userID string) string {
	return userPrefix + userID
}

// NewGuestID returns a probabilistically unique guest session id.
func NewGuestID() string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return guestPrefix + strconv.FormatInt(now().UnixMilli(), 10) + "_" + suffix
}

// IsGuest reports whether id was minted for an unauthenticated user.
func IsGuest(id string) bool {
	return strings.HasPrefix(id, guestPrefix)
}
