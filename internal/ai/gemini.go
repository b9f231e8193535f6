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
	geminiName    = "gemini"
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiModel   = "gemini-pro"
)

// ErrInitTimeout is returned when the initialization handshake does not
// complete within the configured window. The failure is terminal for the
// process lifetime; there is no lazy retry.
var ErrInitTimeout = errors.New("gemini initialization timed out")

// GeminiClient talks to the Gemini generateContent API. Construction runs a
// connectivity probe asynchronously and blocks the caller until it finishes
// or the init timeout elapses.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
}

// NewGeminiClient creates and verifies the client. An empty API key or a
// failed handshake is a startup error.
func NewGeminiClient(ctx context.Context, apiKey string, initTimeout time.Duration, log *logger.Logger) (*GeminiClient, error) {
	return newGeminiClient(ctx, apiKey, geminiBaseURL, initTimeout, log)
}

func newGeminiClient(ctx context.Context, apiKey, baseURL string, initTimeout time.Duration, log *logger.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY must be set")
	}

	c := &GeminiClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.WithComponent("gemini"),
	}

	done := make(chan error, 1)
	go func() {
		done <- c.verifyConnection(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("gemini initialization failed: %w", err)
		}
	case <-time.After(initTimeout):
		c.log.Error("Gemini initialization timed out", "timeout", initTimeout.String())
		return nil, ErrInitTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	c.log.Info("Gemini client initialized")
	return c, nil
}

// verifyConnection issues a tiny probe generation, retrying transient
// failures a few times before giving up.
func (c *GeminiClient) verifyConnection(ctx context.Context) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(4 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		var text string
		text, err = c.Generate(ctx, "Test connection", "", 10)
		if err == nil && text != "" {
			return nil
		}
		if err == nil {
			err = errors.New("empty probe response")
		}
		if !IsRetryable(err) {
			return err
		}
		c.log.Warn("Gemini probe failed", "attempt", attempt+1, "error", err.Error())
	}
	return err
}

// Name identifies the provider
func (c *GeminiClient) Name() string { return geminiName }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate sends a single combined prompt through generateContent. Gemini has
// no separate system role here, so the persona is prefixed onto the prompt.
func (c *GeminiClient) Generate(ctx context.Context, prompt, persona string, maxTokens int) (string, error) {
	text := prompt
	if persona != "" {
		text = persona + "\n\n" + prompt
	}

	requestBody := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: text}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     0.7,
			MaxOutputTokens: maxTokens,
			TopP:            0.9,
			TopK:            40,
		},
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", newFault(geminiName, CategoryInvalid, fmt.Errorf("marshaling request: %w", err))
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, geminiModel, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", newFault(geminiName, CategoryInvalid, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", newFault(geminiName, CategoryTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", newFault(geminiName, CategoryTransient, fmt.Errorf("reading response body: %w", err))
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		c.log.Error("Authentication failed against Gemini API", "status", resp.StatusCode)
		return "", newFault(geminiName, CategoryAuth, fmt.Errorf("status %d: %s", resp.StatusCode, body))
	case http.StatusTooManyRequests:
		fault := newFault(geminiName, CategoryQuota, fmt.Errorf("status %d: %s", resp.StatusCode, body))
		fault.Hint = retryAfterHint(resp.Header)
		return "", fault
	case http.StatusBadRequest:
		return "", newFault(geminiName, CategoryInvalid, fmt.Errorf("status %d: %s", resp.StatusCode, body))
	default:
		return "", newFault(geminiName, CategoryTransient, fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", newFault(geminiName, CategoryUnknown, fmt.Errorf("unmarshaling response: %w", err))
	}
	if parsed.Error != nil {
		return "", newFault(geminiName, CategoryUnknown, errors.New(parsed.Error.Message))
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		c.log.Warn("Gemini returned no candidates")
		return "", nil
	}

	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
