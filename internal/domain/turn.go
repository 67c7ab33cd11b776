// Package domain contains core domain types for the Willow SDR service.
package domain

// Role identifies who produced a turn.
type Role string

const (
	// RoleUser is the website visitor.
	RoleUser Role = "user"
	// RoleBot is the sales agent.
	RoleBot Role = "bot"
)

// Turn is one utterance in a conversation.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}
