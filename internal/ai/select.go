package ai

import (
	"strings"

	"github.com/contentjet/contentjet/internal/config"
	"github.com/contentjet/contentjet/internal/settings"
	log "github.com/sirupsen/logrus"
)

// Provider names.
const (
	ProviderOpenAI    = openAIName
	ProviderAnthropic = anthropicName
	ProviderGemini    = geminiName
	ProviderMistral   = "mistral"
	ProviderCohere    = "cohere"
)

// ProviderNames lists every declared provider.
func ProviderNames() []string {
	return []string{ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderMistral, ProviderCohere}
}

// ImplementedProviders lists providers with a working adapter.
func ImplementedProviders() []string {
	return []string{ProviderOpenAI, ProviderAnthropic, ProviderGemini}
}

// Select returns the adapter for name. Unknown names fall back to the default provider.
func Select(name string, cfg config.AIConfig) Provider {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ProviderOpenAI:
		return NewOpenAI(cfg.OpenAI)
	case ProviderAnthropic:
		return NewAnthropic(cfg.Anthropic)
	case ProviderGemini:
		return NewGemini(cfg.Gemini)
	case ProviderMistral:
		return unimplemented{name: ProviderMistral}
	case ProviderCohere:
		return unimplemented{name: ProviderCohere}
	default:
		log.WithFields(log.Fields{
			"provider": name,
			"fallback": settings.DefaultAIProvider,
			"valid":    strings.Join(ProviderNames(), ","),
		}).Warn("ai: unknown provider, using fallback")
		return Select(settings.DefaultAIProvider, cfg)
	}
}
