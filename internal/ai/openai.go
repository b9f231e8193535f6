package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"chat-companion/backend/pkg/logger"
)

const (
	openAIName    = "openai"
	openAIBaseURL = "https://api.openai.com/v1"
	openAIModel   = "gpt-3.5-turbo"
)

// OpenAIClient talks to the OpenAI chat completions API
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
}

// NewOpenAIClient creates the client. An empty API key is a startup error.
func NewOpenAIClient(apiKey string, log *logger.Logger) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY must be set")
	}
	return &OpenAIClient{
		apiKey:     apiKey,
		baseURL:    openAIBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.WithComponent("openai"),
	}, nil
}

// Name identifies the provider
func (c *OpenAIClient) Name() string { return openAIName }

type openAIRequest struct {
	Model           string        `json:"model"`
	Messages        []chatMessage `json:"messages"`
	MaxTokens       int           `json:"max_tokens"`
	Temperature     float64       `json:"temperature"`
	PresencePenalty float64       `json:"presence_penalty"`
}

// Generate sends the prompt through the chat completions endpoint
func (c *OpenAIClient) Generate(ctx context.Context, prompt, persona string, maxTokens int) (string, error) {
	requestBody := openAIRequest{
		Model: openAIModel,
		Messages: []chatMessage{
			{Role: "system", Content: persona},
			{Role: "user", Content: prompt},
		},
		MaxTokens:       maxTokens,
		Temperature:     0.7,
		PresencePenalty: 0.6, // encourage varied replies
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", newFault(openAIName, CategoryInvalid, fmt.Errorf("marshaling request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", newFault(openAIName, CategoryInvalid, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", newFault(openAIName, CategoryTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", newFault(openAIName, CategoryTransient, fmt.Errorf("reading response body: %w", err))
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		c.log.Error("Authentication failed against OpenAI API", "status", resp.StatusCode)
		return "", newFault(openAIName, CategoryAuth, fmt.Errorf("status %d: %s", resp.StatusCode, body))
	case http.StatusTooManyRequests:
		fault := newFault(openAIName, CategoryQuota, fmt.Errorf("status %d: %s", resp.StatusCode, body))
		fault.Hint = retryAfterHint(resp.Header)
		return "", fault
	case http.StatusBadRequest:
		return "", newFault(openAIName, CategoryInvalid, fmt.Errorf("status %d: %s", resp.StatusCode, body))
	default:
		return "", newFault(openAIName, CategoryTransient, fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", newFault(openAIName, CategoryUnknown, fmt.Errorf("unmarshaling response: %w", err))
	}
	if parsed.Error != nil {
		return "", newFault(openAIName, CategoryUnknown, errors.New(parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		c.log.Warn("OpenAI returned no choices")
		return "", nil
	}

	return parsed.Choices[0].Message.Content, nil
}
