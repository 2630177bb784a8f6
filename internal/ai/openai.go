package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/contentjet/contentjet/internal/config"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	openAIName           = "openai"
	openAIDefaultBaseURL = "https://api.openai.com"
	openAIDefaultModel   = "gpt-4o-mini"
)

// OpenAI calls the chat completions API.
type OpenAI struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOpenAI builds the OpenAI adapter from provider credentials.
func NewOpenAI(creds config.ProviderCredentials) *OpenAI {
	return &OpenAI{
		apiKey:     strings.TrimSpace(creds.APIKey),
		baseURL:    baseURLOr(creds.BaseURL, openAIDefaultBaseURL),
		model:      modelOr(creds.Model, openAIDefaultModel),
		httpClient: newHTTPClient(),
	}
}

func (p *OpenAI) Name() string         { return openAIName }
func (p *OpenAI) DefaultModel() string { return p.model }

// Generate sends one chat completion request.
func (p *OpenAI) Generate(ctx context.Context, messages []Message, opts Options) (*Result, error) {
	system, turns, errSplit := splitSystem(openAIName, messages)
	if errSplit != nil {
		return nil, errSplit
	}
	if p.apiKey == "" {
		return nil, newError(KindAuth, openAIName, 0, "api key not configured", nil)
	}
	opts = opts.withDefaults(p.model)

	body := []byte(`{}`)
	body, _ = sjson.SetBytes(body, "model", opts.Model)
	body, _ = sjson.SetBytes(body, "max_tokens", opts.MaxTokens)
	body, _ = sjson.SetBytes(body, "temperature", *opts.Temperature)
	idx := 0
	if system != "" {
		body, _ = sjson.SetBytes(body, "messages.0.role", RoleSystem)
		body, _ = sjson.SetBytes(body, "messages.0.content", system)
		idx++
	}
	for _, turn := range turns {
		body, _ = sjson.SetBytes(body, fmt.Sprintf("messages.%d.role", idx), turn.Role)
		body, _ = sjson.SetBytes(body, fmt.Sprintf("messages.%d.content", idx), turn.Content)
		idx++
	}

	respBody, errPost := postJSON(ctx, p.httpClient, openAIName, p.baseURL+"/v1/chat/completions",
		map[string]string{"Authorization": "Bearer " + p.apiKey}, body)
	if errPost != nil {
		return nil, errPost
	}

	text := gjson.GetBytes(respBody, "choices.0.message.content").String()
	if strings.TrimSpace(text) == "" {
		return nil, newError(KindInvalidResponse, openAIName, http.StatusOK, "empty completion", nil)
	}
	usage := gjson.GetBytes(respBody, "usage")
	return &Result{
		Text:             text,
		Provider:         openAIName,
		Model:            firstNonEmpty(gjson.GetBytes(respBody, "model").String(), opts.Model),
		PromptTokens:     int(usage.Get("prompt_tokens").Int()),
		CompletionTokens: int(usage.Get("completion_tokens").Int()),
		TotalTokens:      int(usage.Get("total_tokens").Int()),
	}, nil
}

func baseURLOr(raw, fallback string) string {
	if trimmed := strings.TrimRight(strings.TrimSpace(raw), "/"); trimmed != "" {
		return trimmed
	}
	return fallback
}

func modelOr(raw, fallback string) string {
	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		return trimmed
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
