package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/contentjet/contentjet/internal/config"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	geminiName           = "gemini"
	geminiDefaultBaseURL = "https://generativelanguage.googleapis.com"
	geminiDefaultModel   = "gemini-1.5-flash"
	geminiModelRole      = "model"
)

// Gemini calls the v1 generateContent API. The v1 API has no system role, so system
// text is prepended to the first user turn.
type Gemini struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewGemini builds the Gemini adapter from provider credentials.
func NewGemini(creds config.ProviderCredentials) *Gemini {
	return &Gemini{
		apiKey:     strings.TrimSpace(creds.APIKey),
		baseURL:    baseURLOr(creds.BaseURL, geminiDefaultBaseURL),
		model:      modelOr(creds.Model, geminiDefaultModel),
		httpClient: newHTTPClient(),
	}
}

func (p *Gemini) Name() string         { return geminiName }
func (p *Gemini) DefaultModel() string { return p.model }

// Generate sends one generateContent request.
func (p *Gemini) Generate(ctx context.Context, messages []Message, opts Options) (*Result, error) {
	system, turns, errSplit := splitSystem(geminiName, messages)
	if errSplit != nil {
		return nil, errSplit
	}
	if p.apiKey == "" {
		return nil, newError(KindAuth, geminiName, 0, "api key not configured", nil)
	}
	opts = opts.withDefaults(p.model)

	contents := foldSystemIntoFirstUserTurn(system, turns)
	body := []byte(`{}`)
	for i, turn := range contents {
		role := RoleUser
		if turn.Role == RoleAssistant {
			role = geminiModelRole
		}
		body, _ = sjson.SetBytes(body, fmt.Sprintf("contents.%d.role", i), role)
		body, _ = sjson.SetBytes(body, fmt.Sprintf("contents.%d.parts.0.text", i), turn.Content)
	}
	body, _ = sjson.SetBytes(body, "generationConfig.maxOutputTokens", opts.MaxTokens)
	body, _ = sjson.SetBytes(body, "generationConfig.temperature", *opts.Temperature)

	endpoint := fmt.Sprintf("%s/v1/models/%s:generateContent", p.baseURL, url.PathEscape(opts.Model))
	respBody, errPost := postJSON(ctx, p.httpClient, geminiName, endpoint,
		map[string]string{"x-goog-api-key": p.apiKey}, body)
	if errPost != nil {
		return nil, errPost
	}

	var text strings.Builder
	gjson.GetBytes(respBody, "candidates.0.content.parts").ForEach(func(_, part gjson.Result) bool {
		text.WriteString(part.Get("text").String())
		return true
	})
	if strings.TrimSpace(text.String()) == "" {
		reason := gjson.GetBytes(respBody, "candidates.0.finishReason").String()
		if reason == "" {
			reason = gjson.GetBytes(respBody, "promptFeedback.blockReason").String()
		}
		return nil, newError(KindInvalidResponse, geminiName, http.StatusOK, strings.TrimSpace("no text content "+reason), nil)
	}
	usage := gjson.GetBytes(respBody, "usageMetadata")
	return &Result{
		Text:             text.String(),
		Provider:         geminiName,
		Model:            firstNonEmpty(gjson.GetBytes(respBody, "modelVersion").String(), opts.Model),
		PromptTokens:     int(usage.Get("promptTokenCount").Int()),
		CompletionTokens: int(usage.Get("candidatesTokenCount").Int()),
		TotalTokens:      int(usage.Get("totalTokenCount").Int()),
	}, nil
}

func foldSystemIntoFirstUserTurn(system string, turns []Message) []Message {
	if system == "" {
		return turns
	}
	out := make([]Message, 0, len(turns)+1)
	if len(turns) > 0 && turns[0].Role == RoleUser {
		out = append(out, Message{Role: RoleUser, Content: system + "\n\n" + turns[0].Content})
		return append(out, turns[1:]...)
	}
	out = append(out, Message{Role: RoleUser, Content: system})
	return append(out, turns...)
}
