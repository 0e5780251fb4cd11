package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const advisorSystemPrompt = "You are an agronomist advising smallholder farmers in Cameroon over WhatsApp. " +
	"Give short, practical steps in plain language. Name locally available treatments where possible. " +
	"Do not use markdown headings."

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// LLMStatusError captures non-2xx answers from the chat completions endpoint.
type LLMStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *LLMStatusError) Error() string {
	return fmt.Sprintf("llm: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// LLMAdvisor asks an OpenAI-compatible chat completions endpoint for advice.
type LLMAdvisor struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

type LLMOption func(*LLMAdvisor)

func WithLLMHTTPClient(client *http.Client) LLMOption {
	return func(a *LLMAdvisor) {
		a.httpClient = client
	}
}

func NewLLMAdvisor(baseURL, apiKey, model string, timeout time.Duration, logger *slog.Logger, opts ...LLMOption) (*LLMAdvisor, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("llm: api key must not be empty")
	}
	if model == "" {
		return nil, errors.New("llm: model must not be empty")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	a := &LLMAdvisor{
		baseURL:    strings.TrimSpace(baseURL),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func chatURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}

// Generate returns the model's answer as a single advice paragraph.
func (a *LLMAdvisor) Generate(ctx context.Context, crop, disease, weatherSummary string) ([]string, error) {
	temperature := 0.4
	body, err := json.Marshal(chatRequest{
		Model: a.model,
		Messages: []chatMessage{
			{Role: "system", Content: advisorSystemPrompt},
			{Role: "user", Content: advicePrompt(crop, disease, weatherSummary)},
		},
		Temperature: &temperature,
		MaxTokens:   400,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: marshal request: %w", err)
	}

	url := chatURL(a.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("llm: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &LLMStatusError{StatusCode: resp.StatusCode, URL: url, Body: strings.TrimSpace(string(raw))}
	}

	var payload chatResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("llm: decode response: %w", err)
	}
	if len(payload.Choices) == 0 {
		return nil, errors.New("llm: response has no choices")
	}
	answer := strings.TrimSpace(payload.Choices[0].Message.Content)
	if answer == "" {
		return nil, errors.New("llm: empty answer")
	}
	return []string{answer}, nil
}

func advicePrompt(crop, disease, weatherSummary string) string {
	return fmt.Sprintf(
		"Crop: %s\nDetected disease: %s\nCurrent weather: %s\n\n"+
			"Explain in at most five short sentences what the farmer should do now, "+
			"taking the weather into account for any spraying or fertilizing.",
		crop, disease, weatherSummary,
	)
}

// FallbackAdvisor uses Primary and falls back to Secondary when it fails.
type FallbackAdvisor struct {
	Primary   AdviceGenerator
	Secondary AdviceGenerator
	Logger    *slog.Logger
}

func (f *FallbackAdvisor) Generate(ctx context.Context, crop, disease, weatherSummary string) ([]string, error) {
	advice, err := f.Primary.Generate(ctx, crop, disease, weatherSummary)
	if err == nil && len(advice) > 0 {
		return advice, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if f.Logger != nil {
		f.Logger.Warn("primary advice generator failed, using rules", slog.Any("error", err))
	}
	return f.Secondary.Generate(ctx, crop, disease, weatherSummary)
}
