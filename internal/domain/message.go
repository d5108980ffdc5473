package domain

import "time"

// Role identifies the author of a chat message.
type Role string

const (
	// RoleSystem is the fixed persona message, always first when present.
	RoleSystem Role = "system"
	// RoleUser is a message authored by the user.
	RoleUser Role = "user"
	// RoleAssistant is a model-generated message.
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the supported values.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is one entry of a completion request or of a persisted conversation.
type Message struct {
	ID        string    `json:"id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// Conversation is a persisted chat thread. Agent selects which prompt builder
// handles its turns.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Agent     Agent     `json:"agent"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
