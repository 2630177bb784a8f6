package ai

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

const (
	defaultHTTPTimeout = 120 * time.Second
	maxResponseBytes   = 8 << 20
)

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// postJSON sends body and returns the response body of a 2xx reply.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body []byte) ([]byte, error) {
	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if errReq != nil {
		return nil, newError(KindInvalidRequest, provider, 0, "build request", errReq)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, errDo := client.Do(req)
	if errDo != nil {
		if errors.Is(errDo, context.Canceled) {
			return nil, errDo
		}
		return nil, newError(KindUpstreamUnavailable, provider, 0, "request failed", errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, errRead := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if errRead != nil {
		return nil, newError(KindUpstreamUnavailable, provider, resp.StatusCode, "read response", errRead)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyStatus(provider, resp.StatusCode, respBody)
	}
	return respBody, nil
}
