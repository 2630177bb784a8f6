// Package tokens estimates prompt sizes and checks them against model context windows.
//
// Counts are a character heuristic (about four characters per token) rather than a real
// tokenizer, so results may over- or under-estimate the provider's own count.
package tokens

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// CharsPerToken is the heuristic character-to-token ratio.
	CharsPerToken = 4
	// MessageOverhead is added per message for role and framing tokens.
	MessageOverhead = 4
	// ReplyPriming is added once per request for the assistant reply header.
	ReplyPriming = 3
	// DefaultContextWindow is used for models missing from every lookup table.
	DefaultContextWindow = 8192
)

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// WindowSource resolves context windows for models outside the static table.
type WindowSource interface {
	ContextWindow(modelID string) (int, bool)
}

var staticWindows = map[string]int{
	"gpt-4o":                     128000,
	"gpt-4o-mini":                128000,
	"gpt-4-turbo":                128000,
	"gpt-4.1":                    1047576,
	"gpt-4.1-mini":               1047576,
	"gpt-4":                      8192,
	"gpt-3.5-turbo":              16385,
	"o1":                         200000,
	"o3-mini":                    200000,
	"claude-3-5-sonnet-20241022": 200000,
	"claude-3-5-haiku-20241022":  200000,
	"claude-3-7-sonnet-20250219": 200000,
	"claude-3-opus-20240229":     200000,
	"claude-sonnet-4-20250514":   200000,
	"gemini-1.5-pro":             2097152,
	"gemini-1.5-flash":           1048576,
	"gemini-2.0-flash":           1048576,
	"gemini-2.5-pro":             1048576,
	"gemini-2.5-flash":           1048576,
	"mistral-large-latest":       131072,
	"command-r-plus":             128000,
}

// EstimateTokens returns ceil(runes/4) for text; empty text is zero.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + CharsPerToken - 1) / CharsPerToken
}

// EstimateRequestTokens sums message estimates plus per-message overhead and reply priming.
func EstimateRequestTokens(messages []Message) int {
	total := ReplyPriming
	for _, msg := range messages {
		total += EstimateTokens(msg.Content) + MessageOverhead
	}
	return total
}

// ContextWindow returns the static window for modelID or DefaultContextWindow.
func ContextWindow(modelID string) int {
	if window, ok := staticWindows[strings.ToLower(strings.TrimSpace(modelID))]; ok {
		return window
	}
	return DefaultContextWindow
}

// FitsWithinLimit reports whether messages plus the reserved completion fit the model window.
func FitsWithinLimit(messages []Message, modelID string, reservedCompletionTokens int) bool {
	return Default.FitsWithinLimit(messages, modelID, reservedCompletionTokens)
}

// BudgetError describes a request that does not fit its model's context window.
type BudgetError struct {
	Model     string
	Estimated int
	Reserved  int
	Window    int
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("tokens: request for %s needs ~%d prompt + %d completion tokens, window is %d",
		e.Model, e.Estimated, e.Reserved, e.Window)
}

// Estimator checks budgets using an optional overlay before the static table.
type Estimator struct {
	overlay WindowSource
}

// Default is an Estimator with no overlay.
var Default = NewEstimator(nil)

// NewEstimator returns an Estimator consulting overlay first when it is non-nil.
func NewEstimator(overlay WindowSource) *Estimator {
	return &Estimator{overlay: overlay}
}

// Window returns the context window for modelID.
func (e *Estimator) Window(modelID string) int {
	if e != nil && e.overlay != nil {
		if window, ok := e.overlay.ContextWindow(modelID); ok && window > 0 {
			return window
		}
	}
	return ContextWindow(modelID)
}

// FitsWithinLimit reports whether messages plus the reserved completion fit the model window.
func (e *Estimator) FitsWithinLimit(messages []Message, modelID string, reservedCompletionTokens int) bool {
	return e.CheckBudget(messages, modelID, reservedCompletionTokens) == nil
}

// CheckBudget returns a *BudgetError when the request would not fit.
func (e *Estimator) CheckBudget(messages []Message, modelID string, reservedCompletionTokens int) error {
	if reservedCompletionTokens < 0 {
		reservedCompletionTokens = 0
	}
	estimated := EstimateRequestTokens(messages)
	window := e.Window(modelID)
	if estimated+reservedCompletionTokens <= window {
		return nil
	}
	return &BudgetError{
		Model:     modelID,
		Estimated: estimated,
		Reserved:  reservedCompletionTokens,
		Window:    window,
	}
}
