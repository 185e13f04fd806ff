package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CompletionOptions are the per-call knobs for the completion collaborator.
type CompletionOptions struct {
	Temperature float64
	MaxTokens   int
}

// Completer is the text-completion collaborator. The core performs no
// retries; provider errors propagate to the caller and retry policy lives
// with the transport.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, opts CompletionOptions) (string, error)
	DefaultMaxTokens() int
}

// HTTPCompleter talks to an Anthropic-style messages endpoint.
type HTTPCompleter struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	HTTP      *http.Client
}

type completionRequest struct {
	Model       string              `json:"model"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature,omitempty"`
	System      string              `json:"system,omitempty"`
	Messages    []completionMessage `json:"messages"`
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func NewHTTPCompleter(apiKey, model, baseURL string, maxTokens int) *HTTPCompleter {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &HTTPCompleter{
		APIKey:    apiKey,
		Model:     model,
		BaseURL:   baseURL,
		MaxTokens: maxTokens,
		HTTP:      &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *HTTPCompleter) DefaultMaxTokens() int {
	return c.MaxTokens
}

func (c *HTTPCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string, opts CompletionOptions) (string, error) {
	if c.APIKey == "" {
		return "", errors.New("completion api key is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.MaxTokens
	}
	payload, err := json.Marshal(completionRequest{
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: opts.Temperature,
		System:      systemPrompt,
		Messages:    []completionMessage{{Role: "user", Content: userPrompt}},
	})
	if err != nil {
		return "", err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("x-api-key", c.APIKey)
	request.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.HTTP.Do(request)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading completion response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var errResp completionResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != nil {
			return "", fmt.Errorf("completion api error: status %d: %s", resp.StatusCode, errResp.Error.Message)
		}
		return "", fmt.Errorf("completion api error: status %d: %s", resp.StatusCode, string(body))
	}

	var parsed completionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("invalid completion response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("completion api error: %s", parsed.Error.Message)
	}
	for _, block := range parsed.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("completion response contained no text: %s", string(body))
}

// MockCompleter simulates the completion backend for tests and for running
// without an API key. Responses are deterministic per task shape so the
// edit pipeline can be exercised end to end offline.
type MockCompleter struct {
	Calls int
}

func NewMockCompleter() *MockCompleter {
	return &MockCompleter{}
}

func (m *MockCompleter) DefaultMaxTokens() int {
	return 1024
}

func (m *MockCompleter) Complete(_ context.Context, systemPrompt, userPrompt string, _ CompletionOptions) (string, error) {
	m.Calls++
	task := strings.ToLower(systemPrompt)
	switch {
	case strings.Contains(task, "update document metadata"):
		return `{"tags": ["mock"]}`, nil
	case strings.Contains(task, "fix grammar"):
		return extractMockSubject(userPrompt), nil
	case strings.Contains(task, "add new content"):
		return "Mock content added in response to: " + firstRequestLine(userPrompt), nil
	case strings.Contains(task, "rewrite content"):
		return "Mock rewrite of the requested text.", nil
	case strings.Contains(task, "delete content"):
		return "", nil
	default:
		return "Mock edit applied.", nil
	}
}

// extractMockSubject echoes back the document or selection content so
// grammar "corrections" round-trip unchanged in tests.
func extractMockSubject(userPrompt string) string {
	for _, marker := range []string{"SELECTED TEXT:\n", "FULL DOCUMENT:\n"} {
		idx := strings.Index(userPrompt, marker)
		if idx < 0 {
			continue
		}
		rest := userPrompt[idx+len(marker):]
		end := len(rest)
		for _, stop := range []string{"\n\nTARGET SECTION", "\n\nSURROUNDING LINES", "\n\nFULL DOCUMENT", "\n\nRECENT CONTENT", "\n\nUSER REQUEST:"} {
			if i := strings.Index(rest, stop); i >= 0 && i < end {
				end = i
			}
		}
		return rest[:end]
	}
	return "Mock corrected text."
}

func firstRequestLine(userPrompt string) string {
	if idx := strings.Index(userPrompt, "USER REQUEST: "); idx >= 0 {
		rest := userPrompt[idx+len("USER REQUEST: "):]
		if end := strings.IndexByte(rest, '\n'); end >= 0 {
			return rest[:end]
		}
		return rest
	}
	return strings.TrimSpace(userPrompt)
}
