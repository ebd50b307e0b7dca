// Package llm defines the LLM adapter interface callers depend on;
// provider HTTP clients are external collaborators that satisfy it.
package llm

import (
	"context"
	"errors"
)

// ErrAdapter wraps any provider-side failure. Adapter errors propagate
// as worker/command failures, never as session failures.
var ErrAdapter = errors.New("llm: adapter error")

// Role is a chat message's speaker.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    Role
	Content string
}

// Options are the recognized completion parameters.
type Options struct {
	Temperature float64
	MaxTokens   int
	Stop        []string
}

// Completion is a successful adapter response.
type Completion struct {
	Content   string
	TokensIn  int
	TokensOut int
}

// Adapter completes a chat request against some LLM provider.
type Adapter interface {
	Complete(ctx context.Context, messages []Message, opts Options) (Completion, error)
}
