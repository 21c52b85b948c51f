// Package llm defines the completion-provider contract the pipeline consumes
// and the concrete providers behind it.
package llm

import (
	"context"
	"strings"
)

// Roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Normalised stop reasons. Providers map their native values onto these.
const (
	StopEndTurn   = "end_turn"
	StopMaxTokens = "max_tokens"
	StopLength    = "length"
	StopSequence  = "stop_sequence"
	StopUnknown   = "unknown"
)

// Message is one turn of the conversation sent to the provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion call.
type Request struct {
	Messages     []Message
	Model        string
	MaxTokens    int
	SystemPrompt string
}

// Usage reports token accounting when the provider returns it.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is the provider's reply.
type Response struct {
	Content    string `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      Usage  `json:"usage"`
}

// Provider is a completion backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}

// IsTruncation reports whether a stop reason means the output ceiling was hit.
func IsTruncation(stopReason string) bool {
	switch strings.ToLower(strings.TrimSpace(stopReason)) {
	case StopMaxTokens, StopLength, "max_output_tokens", "finish_reason_max_tokens":
		return true
	}
	return false
}

// UserPrompt is shorthand for a one-message conversation.
func UserPrompt(text string) []Message {
	return []Message{{Role: RoleUser, Content: text}}
}
