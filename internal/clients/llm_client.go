package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/tradewars/pkg/retrier"
)

const (
	DefaultModel       = "gpt-4o"
	DefaultAPIURL      = "https://api.openai.com/v1/chat/completions"
	DefaultMaxTokens   = 50
	DefaultTemperature = 0.8

	defaultTimeout    = 20 * time.Second
	defaultMaxRetries = 2
	defaultRetryDelay = 500 * time.Millisecond
)

var (
	// ErrEmptyAPIKey is returned before any request when no key is configured.
	ErrEmptyAPIKey = errors.New("LLM API key is empty")
	// ErrEmptyReply is returned when the model answers with blank text.
	ErrEmptyReply = errors.New("LLM returned an empty reply")

	errTransport = errors.New("LLM transport failure")
)

// DecisionOracle produces the raw trading decision text for a bot.
type DecisionOracle interface {
	// Decide sends the persona and market prompts and returns the trimmed reply.
	Decide(ctx context.Context, persona, prompt string) (string, error)
}

// LLMConfig configures an OpenAI compatible chat completion endpoint.
type LLMConfig struct {
	APIURL      string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

func (c LLMConfig) withDefaults() LLMConfig {
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	return c
}

type OpenAICompatibleClient struct {
	cfg        LLMConfig
	httpClient *http.Client
	retrier    *retrier.Retrier
	logger     *zap.Logger
}

// NewOpenAICompatibleClient creates a new client for OpenAI-compatible APIs.
// A zero MaxRetries in cfg means the default; use a negative value to disable retries.
func NewOpenAICompatibleClient(cfg LLMConfig, logger *zap.Logger) *OpenAICompatibleClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	cfg = cfg.withDefaults()

	return &OpenAICompatibleClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		retrier: retrier.New(
			retrier.WithMaxRetries(cfg.MaxRetries),
			retrier.WithInitialInterval(cfg.RetryDelay),
			retrier.WithMaxInterval(4*cfg.RetryDelay),
			retrier.WithRetryIf(isRetryable),
		),
		logger: logger,
	}
}

// chatRequest represents the request structure for OpenAI-compatible APIs
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse represents the response structure from OpenAI-compatible APIs
type chatResponse struct {
	Choices []choice  `json:"choices"`
	Usage   usage     `json:"usage"`
	Error   *apiError `json:"error,omitempty"`
}

type choice struct {
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// StatusError non-200 answer from the API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("LLM API returned status %d: %s", e.Code, e.Body)
}

// Decide sends a chat request to the LLM API and returns the trimmed reply.
func (c *OpenAICompatibleClient) Decide(ctx context.Context, persona, prompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrEmptyAPIKey
	}

	reqBody := chatRequest{
		Model: c.cfg.Model,
		Messages: []message{
			{Role: "system", Content: persona},
			{Role: "user", Content: prompt},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}

	attempt := 0
	reply, err := retrier.DoWithData(c.retrier, ctx, func(ctx context.Context) (string, error) {
		attempt++
		reply, err := c.sendRequest(ctx, reqBody)
		if err != nil && isRetryable(err) {
			c.logger.Warn("LLM request failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		return reply, err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", errors.Wrapf(err, "decision request failed after %d attempt(s)", attempt)
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", ErrEmptyReply
	}

	return reply, nil
}

func (c *OpenAICompatibleClient) sendRequest(ctx context.Context, reqBody chatRequest) (string, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", errors.Wrap(err, "failed to create HTTP request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(errTransport, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(errTransport, "failed to read response body: "+err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", errors.Wrap(err, "failed to unmarshal response")
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("LLM API error: %s (type: %s, code: %s)",
			chatResp.Error.Message, chatResp.Error.Type, chatResp.Error.Code)
	}

	if len(chatResp.Choices) == 0 {
		return "", errors.New("LLM API returned no choices")
	}

	c.logger.Debug("LLM reply received",
		zap.Int("prompt_tokens", chatResp.Usage.PromptTokens),
		zap.Int("completion_tokens", chatResp.Usage.CompletionTokens),
		zap.String("finish_reason", chatResp.Choices[0].FinishReason),
	)

	return chatResp.Choices[0].Message.Content, nil
}

// isRetryable reports whether a failed request may succeed when repeated:
// transport failures, 429 and 5xx answers.
func isRetryable(err error) bool {
	if errors.Is(err, errTransport) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= http.StatusInternalServerError
	}
	return false
}
