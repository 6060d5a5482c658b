package reasoning

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"factcheck/backend/internal/factcheck"
	"factcheck/backend/internal/prompt"
)

const maxErrorBodyBytes = 8 * 1024

type OpenRouterConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// OpenRouterClient streams a chat completion and returns the concatenated
// deltas once the stream ends.
type OpenRouterClient struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type streamAPIRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Stream    bool          `json:"stream"`
}

type streamAPIResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

func NewOpenRouterClient(cfg OpenRouterConfig, httpClient *http.Client) *OpenRouterClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OpenRouterClient{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		timeout:    cfg.Timeout,
		httpClient: httpClient,
	}
}

func (c *OpenRouterClient) Invoke(ctx context.Context, req prompt.Request) (string, error) {
	if c.apiKey == "" {
		return "", factcheck.Errorf(factcheck.ErrUpstreamRejected, notConfiguredMessage)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(streamAPIRequest{
		Model:     strings.TrimSpace(req.Model),
		Messages:  buildMessages(req),
		MaxTokens: req.MaxTokens,
		Stream:    true,
	})
	if err != nil {
		return "", factcheck.NewError(factcheck.ErrInternal, "", fmt.Errorf("marshal openrouter request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", factcheck.NewError(factcheck.ErrInternal, "", fmt.Errorf("build openrouter request: %w", err))
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", classifyTransport(fmt.Errorf("request openrouter: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		cause := fmt.Errorf("openrouter returned %d", resp.StatusCode)
		return "", classifyStatus(resp.StatusCode, upstreamMessage(string(body)), cause)
	}

	var out strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") || !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			break
		}

		var parsed streamAPIResponse
		if err := json.Unmarshal([]byte(data), &parsed); err != nil {
			continue
		}
		if parsed.Error != nil && strings.TrimSpace(parsed.Error.Message) != "" {
			msg := strings.TrimSpace(parsed.Error.Message)
			if parsed.Error.Code > 0 {
				return "", classifyStatus(parsed.Error.Code, msg, fmt.Errorf("openrouter stream error"))
			}
			return "", factcheck.Errorf(factcheck.ErrUpstreamUnavailable, "%s", msg)
		}
		for _, choice := range parsed.Choices {
			out.WriteString(choice.Delta.Content)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", classifyTransport(fmt.Errorf("read openrouter stream: %w", err))
	}

	if strings.TrimSpace(out.String()) == "" {
		return "", factcheck.NewError(factcheck.ErrUpstreamProtocolError, "", errNoText)
	}
	return out.String(), nil
}

func buildMessages(req prompt.Request) []chatMessage {
	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	if req.Image == nil {
		return append(messages, chatMessage{Role: "user", Content: req.UserText})
	}
	return append(messages, chatMessage{
		Role: "user",
		Content: []contentPart{
			{Type: "text", Text: req.UserText},
			{Type: "image_url", ImageURL: &imageURL{URL: "data:" + req.Image.MediaType + ";base64," + req.Image.Data}},
		},
	})
}
