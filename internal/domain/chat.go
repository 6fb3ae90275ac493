package domain

import (
	"fmt"
	"strings"
)

// Role identifies the author of a chat turn or prompt message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Route is the router's decision for a user message
type Route string

const (
	RouteSearch Route = "SEARCH"
	RouteChat   Route = "CHAT"
)

// ChatTurn is one entry in a conversation log
type ChatTurn struct {
	Role    Role                `json:"role"`
	Content string              `json:"content"`
	Sources []RetrievedDocument `json:"sources,omitempty"`
}

// PromptMessage is a role-tagged message sent to the generation capability
type PromptMessage struct {
	Role    Role
	Content string
}

// TokenStream is a lazy, finite, non-restartable sequence of generated text
// fragments. Recv returns io.EOF once the sequence is exhausted.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// FormatHistory renders turns as "role: content" lines.
func FormatHistory(turns []ChatTurn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, fmt.Sprintf("%s: %s", t.Role, t.Content))
	}
	return strings.Join(lines, "\n")
}

// GenerationRequest is a prompt for the text-generation capability
type GenerationRequest struct {
	Messages    []PromptMessage
	Temperature float32
}
