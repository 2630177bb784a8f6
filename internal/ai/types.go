// Package ai dispatches chat generations to one configured LLM provider and normalizes the result.
package ai

import (
	"context"
	"strings"
	"time"

	"github.com/contentjet/contentjet/internal/settings"
	"github.com/contentjet/contentjet/internal/tokens"
)

// Role is the author of a chat message.
type Role = string

// Chat roles accepted by every provider.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat turn.
type Message = tokens.Message

// Options tunes one generation. Zero values are replaced with defaults except Temperature,
// where a non-nil zero is honored.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature *float64
}

func (o Options) withDefaults(defaultModel string) Options {
	if o.Model == "" {
		o.Model = defaultModel
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = settings.DefaultMaxOutputTokens
	}
	if o.Temperature == nil {
		temp := settings.DefaultTemperature
		o.Temperature = &temp
	}
	return o
}

// Float64 returns a pointer to v for Options.Temperature.
func Float64(v float64) *float64 { return &v }

// Result is the provider-independent outcome of a generation.
type Result struct {
	Text             string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Duration         time.Duration
}

// Provider is implemented by each LLM adapter.
type Provider interface {
	Name() string
	DefaultModel() string
	Generate(ctx context.Context, messages []Message, opts Options) (*Result, error)
}

// splitSystem separates system text from the conversation turns and rejects
// requests without any user or assistant message.
func splitSystem(provider string, messages []Message) (string, []Message, error) {
	var system []string
	turns := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if msg.Content != "" {
				system = append(system, msg.Content)
			}
			continue
		}
		turns = append(turns, msg)
	}
	if len(turns) == 0 {
		return "", nil, newError(KindInvalidRequest, provider, 0, "at least one user or assistant message is required", nil)
	}
	return joinParagraphs(system), turns, nil
}

func joinParagraphs(parts []string) string {
	return strings.Join(parts, "\n\n")
}

func hasConversation(messages []Message) bool {
	for _, msg := range messages {
		if msg.Role == RoleUser || msg.Role == RoleAssistant {
			return true
		}
	}
	return false
}
