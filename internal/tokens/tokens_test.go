package tokens

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWindows map[string]int

func (f fakeWindows) ContextWindow(modelID string) (int, bool) {
	w, ok := f[modelID]
	return w, ok
}

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"héllo wörld", 3},
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, EstimateTokens(tc.in), "input %q", tc.in)
	}
}

func TestEstimateTokens_Deterministic(t *testing.T) {
	text := "Write a product description for a waterproof hiking boot."
	assert.Equal(t, EstimateTokens(text), EstimateTokens(text))
}

func TestEstimateRequestTokens(t *testing.T) {
	assert.Equal(t, ReplyPriming, EstimateRequestTokens(nil))

	msgs := []Message{
		{Role: "system", Content: "abcd"},
		{Role: "user", Content: "abcdefgh"},
	}
	// (1+4) + (2+4) + 3
	assert.Equal(t, 14, EstimateRequestTokens(msgs))
}

func TestFitsWithinLimit(t *testing.T) {
	msgs := []Message{{Role: "user", Content: strings.Repeat("x", 4000)}}
	estimated := EstimateRequestTokens(msgs)

	assert.True(t, FitsWithinLimit(msgs, "unknown-model", DefaultContextWindow-estimated))
	assert.False(t, FitsWithinLimit(msgs, "unknown-model", DefaultContextWindow-estimated+1))
	assert.True(t, FitsWithinLimit(msgs, "gpt-4o", 100000))
	assert.False(t, FitsWithinLimit(msgs, "gpt-4", 8000))
}

func TestEstimator_OverlayTakesPrecedence(t *testing.T) {
	est := NewEstimator(fakeWindows{"custom-model": 50, "gpt-4o": 0})
	assert.Equal(t, 50, est.Window("custom-model"))
	assert.Equal(t, 128000, est.Window("gpt-4o"))
	assert.Equal(t, DefaultContextWindow, est.Window("nope"))
}

func TestCheckBudget_ReturnsBudgetError(t *testing.T) {
	est := NewEstimator(fakeWindows{"tiny": 20})
	msgs := []Message{{Role: "user", Content: strings.Repeat("y", 40)}}

	err := est.CheckBudget(msgs, "tiny", 10)
	require.Error(t, err)
	var budgetErr *BudgetError
	require.True(t, errors.As(err, &budgetErr))
	assert.Equal(t, "tiny", budgetErr.Model)
	assert.Equal(t, 17, budgetErr.Estimated)
	assert.Equal(t, 10, budgetErr.Reserved)
	assert.Equal(t, 20, budgetErr.Window)

	assert.NoError(t, est.CheckBudget(msgs, "tiny", 3))
}
