package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/k11v/sitegen/internal/fault"
)

// maxErrorBody limits how much of an error response ends up in the error message.
const maxErrorBody = 2048

// Client talks to an OpenAI-compatible chat completion endpoint.
type Client struct {
	config     *Config
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(config *Config, log *slog.Logger) *Client {
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.timeout()},
		log:        log.With("component", "llm"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate sends prompt as a single user message and returns the text of the first choice.
// It doesn't retry.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := &bytes.Buffer{}
	err := json.NewEncoder(reqBody).Encode(&chatCompletionRequest{
		Model:    c.config.model(),
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("llm.Client: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.url(), reqBody)
	if err != nil {
		return "", fmt.Errorf("llm.Client: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	c.log.Info("sending chat completion request", "model", c.config.model(), "prompt_bytes", len(prompt))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm.Client: %w: %w", fault.ErrUpstreamCallFailed, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm.Client: %w: %w", fault.ErrUpstreamCallFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(respBody) > maxErrorBody {
			respBody = respBody[:maxErrorBody]
		}
		return "", fmt.Errorf("llm.Client: %w: got status %d: %s", fault.ErrUpstreamCallFailed, resp.StatusCode, respBody)
	}

	var chatResp chatCompletionResponse
	if err = json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("llm.Client: %w: %w", fault.ErrUpstreamCallFailed, err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("llm.Client: %w: no choices", fault.ErrUpstreamCallFailed)
	}

	content := chatResp.Choices[0].Message.Content
	c.log.Info("received chat completion response", "content_bytes", len(content))
	return content, nil
}
