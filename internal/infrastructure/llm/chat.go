package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"EventScanner/internal/config"
	"EventScanner/internal/domain"
	"EventScanner/internal/infrastructure/httpx"
	"EventScanner/internal/metrics"
	"EventScanner/internal/ports"
)

const serviceName = "classifier"

// ChatClient implements ports.GenreClassifier against OpenAI-compatible chat completion APIs.
// The key is supplied per call so that one client can serve a whole credential pool.
type ChatClient struct {
	endpoint     string
	model        string
	systemPrompt string
	httpClient   *http.Client
	metrics      *metrics.Metrics
}

var _ ports.GenreClassifier = (*ChatClient)(nil)

// NewChatClient builds a client from configuration.
func NewChatClient(cfg config.ClassifierConfig, client *http.Client, m *metrics.Metrics) *ChatClient {
	if client == nil {
		client = httpx.NewClient(cfg.Timeout)
	}
	return &ChatClient{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		httpClient:   client,
		metrics:      m,
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Classify sends prompt as a user message and returns the trimmed reply.
// Quota answers (429 or RESOURCE_EXHAUSTED) wrap domain.ErrQuotaExhausted.
func (c *ChatClient) Classify(ctx context.Context, apiKey, prompt string) (string, error) {
	if c == nil {
		return "", errors.New("chat client is nil")
	}
	if apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", errors.New("chat client misconfigured")
	}

	messages := make([]map[string]string, 0, 2)
	if system := strings.TrimSpace(c.systemPrompt); system != "" {
		messages = append(messages, map[string]string{"role": "system", "content": system})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})

	body, err := json.Marshal(map[string]any{
		"model":    c.model,
		"messages": messages,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.Request(serviceName, 0)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("send prompt: %w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()
	c.metrics.Request(serviceName, resp.StatusCode)

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		statusErr := &domain.StatusError{Service: serviceName, Code: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
		if resp.StatusCode == http.StatusTooManyRequests || strings.Contains(statusErr.Body, "RESOURCE_EXHAUSTED") {
			return "", fmt.Errorf("%w: %w", domain.ErrQuotaExhausted, statusErr)
		}
		return "", statusErr
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode chat response: %w: %v", domain.ErrMalformedResponse, err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("no choices in chat response: %w", domain.ErrMalformedResponse)
	}

	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}
