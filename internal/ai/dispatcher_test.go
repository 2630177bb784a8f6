package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/contentjet/contentjet/internal/config"
	"github.com/contentjet/contentjet/internal/tokens"
	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	calls  int
	opts   Options
	result Result
	err    error
}

func (s *stubProvider) Name() string         { return "stub" }
func (s *stubProvider) DefaultModel() string { return "stub-model" }

func (s *stubProvider) Generate(_ context.Context, _ []Message, opts Options) (*Result, error) {
	s.calls++
	s.opts = opts
	if s.err != nil {
		return nil, s.err
	}
	res := s.result
	return &res, nil
}

func TestSelect(t *testing.T) {
	cfg := config.AIConfig{}
	assert.Equal(t, ProviderOpenAI, Select("openai", cfg).Name())
	assert.Equal(t, ProviderAnthropic, Select(" Anthropic ", cfg).Name())
	assert.Equal(t, ProviderGemini, Select("gemini", cfg).Name())
	assert.Equal(t, ProviderMistral, Select("mistral", cfg).Name())
	assert.Equal(t, ProviderCohere, Select("cohere", cfg).Name())
	assert.Equal(t, ProviderOpenAI, Select("watson", cfg).Name())
	assert.Equal(t, ProviderOpenAI, Select("", cfg).Name())
}

func TestSelect_UnknownProviderWarnsWithValidNames(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	Select("watson", config.AIConfig{})

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, log.WarnLevel, entry.Level)
	assert.Equal(t, "watson", entry.Data["provider"])
	assert.Equal(t, "openai,anthropic,gemini,mistral,cohere", entry.Data["valid"])
}

func TestUnimplementedProvider(t *testing.T) {
	_, err := Select("cohere", config.AIConfig{}).Generate(context.Background(), conversation, Options{})
	require.ErrorIs(t, err, ErrNotImplemented)
	assert.Contains(t, err.Error(), "openai")
}

func TestDispatcher_AppliesDefaultsAndFillsUsage(t *testing.T) {
	stub := &stubProvider{result: Result{Text: "twelve chars"}}
	d := NewDispatcher(stub, nil, nil)

	res, err := d.Generate(context.Background(), conversation, Options{})
	require.NoError(t, err)

	assert.Equal(t, "stub-model", stub.opts.Model)
	assert.Equal(t, 2048, stub.opts.MaxTokens)
	require.NotNil(t, stub.opts.Temperature)
	assert.InDelta(t, 0.7, *stub.opts.Temperature, 1e-9)

	assert.Equal(t, "stub", res.Provider)
	assert.Equal(t, "stub-model", res.Model)
	assert.Equal(t, tokens.EstimateRequestTokens(conversation), res.PromptTokens)
	assert.Equal(t, 3, res.CompletionTokens)
	assert.Equal(t, res.PromptTokens+3, res.TotalTokens)
}

func TestDispatcher_HonorsZeroTemperature(t *testing.T) {
	stub := &stubProvider{result: Result{Text: "ok", PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}}
	_, err := NewDispatcher(stub, nil, nil).Generate(context.Background(), conversation, Options{Temperature: Float64(0)})
	require.NoError(t, err)
	assert.Equal(t, 0.0, *stub.opts.Temperature)
}

func TestDispatcher_RejectsWithoutConversation(t *testing.T) {
	stub := &stubProvider{}
	_, err := NewDispatcher(stub, nil, nil).Generate(context.Background(), []Message{{Role: RoleSystem, Content: "x"}}, Options{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Zero(t, stub.calls)
}

func TestDispatcher_ContextOverflowFailsFast(t *testing.T) {
	stub := &stubProvider{}
	msgs := []Message{{Role: RoleUser, Content: strings.Repeat("z", 40000)}}
	_, err := NewDispatcher(stub, nil, nil).Generate(context.Background(), msgs, Options{Model: "unknown"})

	require.ErrorIs(t, err, ErrContextOverflow)
	var budgetErr *tokens.BudgetError
	require.True(t, errors.As(err, &budgetErr))
	assert.Equal(t, tokens.DefaultContextWindow, budgetErr.Window)
	assert.Zero(t, stub.calls)
}

func TestDispatcher_PropagatesProviderError(t *testing.T) {
	stub := &stubProvider{err: newError(KindRateLimit, "stub", 429, "slow down", nil)}
	_, err := NewDispatcher(stub, nil, nil).Generate(context.Background(), conversation, Options{})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, KindRateLimit, KindOf(err))
}

func TestDispatcher_ModelAllowed(t *testing.T) {
	d := NewDispatcher(&stubProvider{}, nil, []string{"big-model"})
	assert.True(t, d.ModelAllowed(""))
	assert.True(t, d.ModelAllowed("stub-model"))
	assert.True(t, d.ModelAllowed("big-model"))
	assert.False(t, d.ModelAllowed("other"))
}
