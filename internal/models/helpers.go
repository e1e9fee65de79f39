// Package models defines the wire types exchanged with the finchat API.
package models

import (
	"strings"

	"github.com/google/uuid"
)

// LocalIDPrefix marks message ids minted on the client before the server
// assigns an authoritative one.
const LocalIDPrefix = "local-"

// NewLocalID returns a fresh client-side message id.
func NewLocalID() string {
	return LocalIDPrefix + uuid.New().String()
}

// IsLocal reports whether the message id was generated on the client.
func (m Message) IsLocal() bool {
	return strings.HasPrefix(m.ID, LocalIDPrefix)
}

// AgentLabel returns the agent name to display, falling back to the role.
func (m Message) AgentLabel() string {
	if m.Agent != "" {
		return m.Agent
	}
	if m.Role == RoleUser {
		return "You"
	}
	return "Assistant"
}
