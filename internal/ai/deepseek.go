package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"chat-companion/backend/pkg/logger"
)

const (
	deepseekName    = "deepseek"
	deepseekBaseURL = "https://api.deepseek.ai/v1"
	deepseekModel   = "deepseek-chat-v1"
)

// DeepSeekClient is the reference chat-completions backend
type DeepSeekClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
}

// NewDeepSeekClient creates the client. An empty API key is a startup error.
func NewDeepSeekClient(apiKey string, log *logger.Logger) (*DeepSeekClient, error) {
	if apiKey == "" {
		return nil, errors.New("DEEPSEEK_API_KEY must be set")
	}
	return &DeepSeekClient{
		apiKey:     apiKey,
		baseURL:    deepseekBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.WithComponent("deepseek"),
	}, nil
}

// Name identifies the provider
func (c *DeepSeekClient) Name() string { return deepseekName }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate sends the prompt through the chat-completions endpoint
func (c *DeepSeekClient) Generate(ctx context.Context, prompt, persona string, maxTokens int) (string, error) {
	requestBody := chatRequest{
		Model: deepseekModel,
		Messages: []chatMessage{
			{Role: "system", Content: persona},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.7,
		TopP:        0.9,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", newFault(deepseekName, CategoryInvalid, fmt.Errorf("marshaling request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", newFault(deepseekName, CategoryInvalid, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and connection failures are worth another attempt.
		return "", newFault(deepseekName, CategoryTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", newFault(deepseekName, CategoryTransient, fmt.Errorf("reading response body: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// handled below
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.log.Error("Authentication failed against DeepSeek API", "status", resp.StatusCode)
		return "", newFault(deepseekName, CategoryAuth, fmt.Errorf("status %d: %s", resp.StatusCode, body))
	case resp.StatusCode == http.StatusTooManyRequests:
		fault := newFault(deepseekName, CategoryQuota, fmt.Errorf("status %d: %s", resp.StatusCode, body))
		fault.Hint = retryAfterHint(resp.Header)
		c.log.Warn("DeepSeek rate limit hit", "retry_after", fault.Hint.String())
		return "", fault
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return "", newFault(deepseekName, CategoryInvalid, fmt.Errorf("status %d: %s", resp.StatusCode, body))
	default:
		return "", newFault(deepseekName, CategoryTransient, fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", newFault(deepseekName, CategoryUnknown, fmt.Errorf("unmarshaling response: %w", err))
	}
	if parsed.Error != nil {
		return "", newFault(deepseekName, CategoryUnknown, errors.New(parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		c.log.Warn("DeepSeek returned no choices")
		return "", nil
	}

	return parsed.Choices[0].Message.Content, nil
}

// retryAfterHint parses a Retry-After header into a wait duration
func retryAfterHint(h http.Header) time.Duration {
	value := h.Get("Retry-After")
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}
