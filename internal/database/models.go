package database

import "time"

// Roles stored in the turns table.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of a conversation between a user and the agent.
// ConversationKey identifies the conversation across channels, e.g.
// "telegram:12345" or "widget:<session id>".
type Turn struct {
	ID              int64     `db:"id"`
	ConversationKey string    `db:"conversation_key"`
	Role            string    `db:"role"`
	Content         string    `db:"content"`
	CreatedAt       time.Time `db:"created_at"`
}
