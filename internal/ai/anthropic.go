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
	anthropicName           = "anthropic"
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicDefaultModel   = "claude-3-5-sonnet-20241022"
	anthropicAPIVersion     = "2023-06-01"
)

// Anthropic calls the Messages API. System text goes in the top-level system field.
type Anthropic struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewAnthropic builds the Anthropic adapter from provider credentials.
func NewAnthropic(creds config.ProviderCredentials) *Anthropic {
	return &Anthropic{
		apiKey:     strings.TrimSpace(creds.APIKey),
		baseURL:    baseURLOr(creds.BaseURL, anthropicDefaultBaseURL),
		model:      modelOr(creds.Model, anthropicDefaultModel),
		httpClient: newHTTPClient(),
	}
}

func (p *Anthropic) Name() string         { return anthropicName }
func (p *Anthropic) DefaultModel() string { return p.model }

// Generate sends one Messages API request.
func (p *Anthropic) Generate(ctx context.Context, messages []Message, opts Options) (*Result, error) {
	system, turns, errSplit := splitSystem(anthropicName, messages)
	if errSplit != nil {
		return nil, errSplit
	}
	if p.apiKey == "" {
		return nil, newError(KindAuth, anthropicName, 0, "api key not configured", nil)
	}
	opts = opts.withDefaults(p.model)

	body := []byte(`{}`)
	body, _ = sjson.SetBytes(body, "model", opts.Model)
	body, _ = sjson.SetBytes(body, "max_tokens", opts.MaxTokens)
	body, _ = sjson.SetBytes(body, "temperature", *opts.Temperature)
	if system != "" {
		body, _ = sjson.SetBytes(body, "system", system)
	}
	for i, turn := range turns {
		body, _ = sjson.SetBytes(body, fmt.Sprintf("messages.%d.role", i), turn.Role)
		body, _ = sjson.SetBytes(body, fmt.Sprintf("messages.%d.content", i), turn.Content)
	}

	respBody, errPost := postJSON(ctx, p.httpClient, anthropicName, p.baseURL+"/v1/messages", map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicAPIVersion,
	}, body)
	if errPost != nil {
		return nil, errPost
	}

	var text strings.Builder
	gjson.GetBytes(respBody, "content").ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").String() == "text" {
			text.WriteString(block.Get("text").String())
		}
		return true
	})
	if strings.TrimSpace(text.String()) == "" {
		return nil, newError(KindInvalidResponse, anthropicName, http.StatusOK, "no text content", nil)
	}
	prompt := int(gjson.GetBytes(respBody, "usage.input_tokens").Int())
	completion := int(gjson.GetBytes(respBody, "usage.output_tokens").Int())
	return &Result{
		Text:             text.String(),
		Provider:         anthropicName,
		Model:            firstNonEmpty(gjson.GetBytes(respBody, "model").String(), opts.Model),
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}, nil
}
