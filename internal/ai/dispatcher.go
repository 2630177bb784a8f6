package ai

import (
	"context"
	"errors"
	"time"

	"github.com/contentjet/contentjet/internal/tokens"
	log "github.com/sirupsen/logrus"
)

// Dispatcher validates requests, enforces the token budget and calls the selected provider.
type Dispatcher struct {
	provider      Provider
	estimator     *tokens.Estimator
	allowedModels map[string]struct{}
}

// NewDispatcher wraps provider. A nil estimator uses the static window table.
func NewDispatcher(provider Provider, estimator *tokens.Estimator, allowedModels []string) *Dispatcher {
	if estimator == nil {
		estimator = tokens.Default
	}
	allowed := make(map[string]struct{}, len(allowedModels))
	for _, model := range allowedModels {
		allowed[model] = struct{}{}
	}
	return &Dispatcher{provider: provider, estimator: estimator, allowedModels: allowed}
}

// ProviderName returns the active provider name.
func (d *Dispatcher) ProviderName() string { return d.provider.Name() }

// DefaultModel returns the provider's configured model.
func (d *Dispatcher) DefaultModel() string { return d.provider.DefaultModel() }

// ModelAllowed reports whether a caller may request model. An empty allow list
// only permits the provider default.
func (d *Dispatcher) ModelAllowed(model string) bool {
	if model == "" || model == d.provider.DefaultModel() {
		return true
	}
	_, ok := d.allowedModels[model]
	return ok
}

// Generate runs one generation and returns a normalized result.
func (d *Dispatcher) Generate(ctx context.Context, messages []Message, opts Options) (*Result, error) {
	if !hasConversation(messages) {
		return nil, newError(KindInvalidRequest, d.provider.Name(), 0, "at least one user or assistant message is required", nil)
	}
	opts = opts.withDefaults(d.provider.DefaultModel())

	if errBudget := d.estimator.CheckBudget(messages, opts.Model, opts.MaxTokens); errBudget != nil {
		var budgetErr *tokens.BudgetError
		if errors.As(errBudget, &budgetErr) {
			return nil, newError(KindContextOverflow, d.provider.Name(), 0, "", budgetErr)
		}
		return nil, errBudget
	}

	start := time.Now()
	result, errGen := d.provider.Generate(ctx, messages, opts)
	if errGen != nil {
		log.WithError(errGen).WithFields(log.Fields{
			"provider": d.provider.Name(),
			"model":    opts.Model,
		}).Warn("ai: generation failed")
		return nil, errGen
	}
	result.Duration = time.Since(start)
	if result.Provider == "" {
		result.Provider = d.provider.Name()
	}
	if result.Model == "" {
		result.Model = opts.Model
	}
	if result.PromptTokens == 0 {
		result.PromptTokens = tokens.EstimateRequestTokens(messages)
	}
	if result.CompletionTokens == 0 {
		result.CompletionTokens = tokens.EstimateTokens(result.Text)
	}
	if result.TotalTokens == 0 {
		result.TotalTokens = result.PromptTokens + result.CompletionTokens
	}
	return result, nil
}
