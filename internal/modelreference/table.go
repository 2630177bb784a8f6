package modelreference

import (
	"strings"
	"sync"

	"github.com/contentjet/contentjet/internal/models"
)

// preferredProviders resolve a model id listed by several providers; earlier entries win.
var preferredProviders = []string{"openai", "anthropic", "google"}

// Table is an in-memory view of synced context windows. It satisfies tokens.WindowSource.
type Table struct {
	mu      sync.RWMutex
	windows map[string]int
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{windows: make(map[string]int)}
}

// Replace swaps the table contents for refs.
func (t *Table) Replace(refs []models.ModelReference) {
	if t == nil {
		return
	}
	rank := func(provider string) int {
		for i, p := range preferredProviders {
			if p == provider {
				return i
			}
		}
		return len(preferredProviders)
	}

	windows := make(map[string]int, len(refs))
	ranks := make(map[string]int, len(refs))
	for _, ref := range refs {
		if ref.ContextLimit <= 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(ref.ModelName))
		r := rank(ref.ProviderName)
		if prev, ok := ranks[key]; ok && prev <= r {
			continue
		}
		windows[key] = ref.ContextLimit
		ranks[key] = r
	}

	t.mu.Lock()
	t.windows = windows
	t.mu.Unlock()
}

// ContextWindow returns the synced context window for modelID.
func (t *Table) ContextWindow(modelID string) (int, bool) {
	if t == nil {
		return 0, false
	}
	key := strings.ToLower(strings.TrimSpace(modelID))
	t.mu.RLock()
	defer t.mu.RUnlock()
	window, ok := t.windows[key]
	return window, ok
}

// Len reports the number of models with a known window.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.windows)
}
