// Package openrouter is the client for the upstream model aggregator:
// one endpoint listing the model catalog and one running chat completions.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultBaseURL = "https://openrouter.ai/api"

// MaxTokens caps every completion request. The cost estimator assumes the
// same budget per model.
const MaxTokens = 1024

var (
	baseURL = defaultBaseURL
	referer = "https://promptshot.app"
)

// SetBaseURL overrides the upstream base URL (local mocks, tests).
func SetBaseURL(url string) {
	if url != "" {
		baseURL = url
	}
}

// SetReferer sets the HTTP-Referer header sent with completion requests.
func SetReferer(url string) {
	if url != "" {
		referer = url
	}
}

var httpClient = &http.Client{Timeout: 10 * time.Minute}

// CatalogModel is one entry of the upstream model listing.
type CatalogModel struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Pricing       CatalogPricing `json:"pricing"`
	ContextLength int            `json:"context_length"`
}

// CatalogPricing carries per-token prices as decimal strings.
type CatalogPricing struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}

// ListModels fetches the full upstream model catalog. No API key is needed.
func ListModels(ctx context.Context) ([]CatalogModel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/models", nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch models: %w", err)
	}
	defer resp.Body.Close()

	var listing struct {
		Data []CatalogModel `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode models: %w", err)
	}
	return listing.Data, nil
}

// Completion is the result of a single chat-completion call.
type Completion struct {
	Text   string
	Tokens int64
}

// Complete runs one chat completion. Upstream error envelopes are not
// treated as failures: their message becomes the completion text with zero
// tokens, so the caller can surface it per model. Only transport or decode
// problems return an error.
func Complete(ctx context.Context, apiKey, model, prompt string) (Completion, error) {
	payload := map[string]interface{}{
		"model":      model,
		"messages":   []map[string]string{{"role": "user", "content": prompt}},
		"max_tokens": MaxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Completion{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Completion{}, err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", referer)

	resp, err := httpClient.Do(req)
	if err != nil {
		return Completion{}, fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage *struct {
			TotalTokens int64 `json:"total_tokens"`
		} `json:"usage"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Completion{}, fmt.Errorf("decode completion: %w", err)
	}

	text := "No response"
	if len(decoded.Choices) > 0 && decoded.Choices[0].Message.Content != "" {
		text = decoded.Choices[0].Message.Content
	} else if decoded.Error != nil && decoded.Error.Message != "" {
		text = decoded.Error.Message
	}

	var tokens int64
	if decoded.Usage != nil {
		tokens = decoded.Usage.TotalTokens
	}

	return Completion{Text: text, Tokens: tokens}, nil
}
