package reasoning

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"factcheck/backend/internal/factcheck"
	"factcheck/backend/internal/prompt"
)

type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type AnthropicClient struct {
	client     anthropic.Client
	configured bool
	timeout    time.Duration
}

func NewAnthropicClient(cfg AnthropicConfig, httpClient *http.Client) *AnthropicClient {
	apiKey := strings.TrimSpace(cfg.APIKey)
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &AnthropicClient{
		client:     anthropic.NewClient(opts...),
		configured: apiKey != "",
		timeout:    cfg.Timeout,
	}
}

func (c *AnthropicClient) Invoke(ctx context.Context, req prompt.Request) (string, error) {
	if !c.configured {
		return "", factcheck.Errorf(factcheck.ErrUpstreamRejected, notConfiguredMessage)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(req.UserText)}
	if req.Image != nil {
		blocks = append(blocks, anthropic.NewImageBlockBase64(req.Image.MediaType, req.Image.Data))
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = prompt.DefaultMaxTokens
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		System:    []anthropic.TextBlockParam{{Text: req.System}},
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", classifyStatus(apiErr.StatusCode, upstreamMessage(apiErr.RawJSON()), err)
		}
		return "", classifyTransport(err)
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(out.String()) == "" {
		return "", factcheck.NewError(factcheck.ErrUpstreamProtocolError, "", errNoText)
	}
	return out.String(), nil
}
