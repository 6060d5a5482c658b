// Package reasoning sends a built prompt to a hosted language model and
// returns its raw text reply.
package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"factcheck/backend/internal/factcheck"
	"factcheck/backend/internal/prompt"
)

// Invoker performs exactly one upstream call per Invoke. Retries are the
// caller's business.
type Invoker interface {
	Invoke(ctx context.Context, req prompt.Request) (string, error)
}

const notConfiguredMessage = "reasoning service is not configured"

var errNoText = errors.New("response contained no text content")

// classifyStatus maps a non-2xx upstream status onto the taxonomy. message is
// the upstream's own error text when it could be extracted.
func classifyStatus(status int, message string, cause error) *factcheck.Error {
	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout {
		return factcheck.NewError(factcheck.ErrUpstreamUnavailable, message, cause)
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return factcheck.NewError(factcheck.ErrUpstreamRejected, message, cause)
}

func classifyTransport(err error) *factcheck.Error {
	var fe *factcheck.Error
	if errors.As(err, &fe) {
		return fe
	}
	return factcheck.NewError(factcheck.ErrUpstreamUnavailable, "", err)
}

// upstreamMessage pulls error.message out of a provider error body, falling
// back to the trimmed body itself.
func upstreamMessage(body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err == nil {
		if msg := strings.TrimSpace(parsed.Error.Message); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(parsed.Message); msg != "" {
			return msg
		}
	}
	if len(body) > 300 {
		body = body[:300]
	}
	return body
}
