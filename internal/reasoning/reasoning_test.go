package reasoning

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"factcheck/backend/internal/factcheck"
	"factcheck/backend/internal/prompt"
)

var textRequest = prompt.Request{Model: "claude-test", System: "sys", UserText: "check this", MaxTokens: 4096}

func TestAnthropicInvokeReturnsText(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "test-key" {
			t.Errorf("unexpected api key header: %q", got)
		}
		if r.Header.Get("Anthropic-Version") == "" {
			t.Error("expected anthropic-version header")
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"model":"claude-test"`) || !strings.Contains(string(body), `"max_tokens":4096`) {
			t.Errorf("unexpected body: %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
"content":[{"type":"text","text":"Here is the JSON: {\"reliability_score\": 7}"}],
"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":5}}`))
	}))
	defer server.Close()

	client := NewAnthropicClient(AnthropicConfig{APIKey: "test-key", BaseURL: server.URL, Timeout: 5 * time.Second}, server.Client())
	got, err := client.Invoke(context.Background(), textRequest)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got != `Here is the JSON: {"reliability_score": 7}` {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestAnthropicInvokeSendsImageBlock(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"media_type":"image/png"`) || !strings.Contains(string(body), `"data":"aGVsbG8="`) {
			t.Errorf("expected base64 image block, got %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_2","type":"message","role":"assistant","model":"v","content":[{"type":"text","text":"{}"}],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`))
	}))
	defer server.Close()

	req := textRequest
	req.Image = &factcheck.ImagePart{MediaType: "image/png", Data: "aGVsbG8="}
	client := NewAnthropicClient(AnthropicConfig{APIKey: "k", BaseURL: server.URL}, server.Client())
	if _, err := client.Invoke(context.Background(), req); err != nil {
		t.Fatalf("invoke: %v", err)
	}
}

func TestAnthropicInvokeErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    factcheck.ErrorKind
		wantMsg string
	}{
		{name: "rejected", status: http.StatusBadRequest, body: `{"type":"error","error":{"type":"invalid_request_error","message":"model: not found"}}`, want: factcheck.ErrUpstreamRejected, wantMsg: "model: not found"},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`, want: factcheck.ErrUpstreamRejected, wantMsg: "invalid x-api-key"},
		{name: "overloaded", status: http.StatusInternalServerError, body: `{"type":"error","error":{"type":"api_error","message":"boom"}}`, want: factcheck.ErrUpstreamUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client := NewAnthropicClient(AnthropicConfig{APIKey: "k", BaseURL: server.URL}, server.Client())
			_, err := client.Invoke(context.Background(), textRequest)
			if factcheck.KindOf(err) != tc.want {
				t.Fatalf("expected %s, got %v", tc.want, err)
			}
			if tc.wantMsg != "" && factcheck.AsError(err).UserMessage() != tc.wantMsg {
				t.Fatalf("expected upstream message %q, got %q", tc.wantMsg, factcheck.AsError(err).UserMessage())
			}
			if calls.Load() != 1 {
				t.Fatalf("expected exactly one upstream call, got %d", calls.Load())
			}
		})
	}
}

func TestAnthropicInvokeNoTextIsProtocolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_3","type":"message","role":"assistant","model":"m","content":[],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":0}}`))
	}))
	defer server.Close()

	client := NewAnthropicClient(AnthropicConfig{APIKey: "k", BaseURL: server.URL}, server.Client())
	_, err := client.Invoke(context.Background(), textRequest)
	if factcheck.KindOf(err) != factcheck.ErrUpstreamProtocolError {
		t.Fatalf("expected UpstreamProtocolError, got %v", err)
	}
}

func TestAnthropicInvokeMissingKey(t *testing.T) {
	client := NewAnthropicClient(AnthropicConfig{}, nil)
	_, err := client.Invoke(context.Background(), textRequest)
	if factcheck.KindOf(err) != factcheck.ErrUpstreamRejected {
		t.Fatalf("expected UpstreamRejected, got %v", err)
	}
}

func TestAnthropicInvokeTimeoutIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewAnthropicClient(AnthropicConfig{APIKey: "k", BaseURL: server.URL, Timeout: 30 * time.Millisecond}, server.Client())
	_, err := client.Invoke(context.Background(), textRequest)
	if factcheck.KindOf(err) != factcheck.ErrUpstreamUnavailable {
		t.Fatalf("expected UpstreamUnavailable, got %v", err)
	}
}

func TestOpenRouterInvokeAggregatesDeltas(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %q", got)
		}
		var payload streamAPIRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if !payload.Stream || len(payload.Messages) != 2 || payload.Messages[0].Role != "system" {
			t.Errorf("unexpected payload: %+v", payload)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(": keep-alive\n\n"))
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"{\\\"reliability_score\\\":\"}}]}\n\n"))
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\" 8}\"}}]}\n\n"))
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	client := NewOpenRouterClient(OpenRouterConfig{APIKey: "test-key", BaseURL: server.URL}, server.Client())
	got, err := client.Invoke(context.Background(), textRequest)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got != `{"reliability_score": 8}` {
		t.Fatalf("unexpected aggregated text: %q", got)
	}
}

func TestOpenRouterSendsImageAsDataURI(t *testing.T) {
	req := textRequest
	req.Image = &factcheck.ImagePart{MediaType: "image/jpeg", Data: "abcd"}
	messages := buildMessages(req)

	raw, err := json.Marshal(messages[1])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"url":"data:image/jpeg;base64,abcd"`) {
		t.Fatalf("expected data uri image part, got %s", raw)
	}
}

func TestOpenRouterStatusMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"unknown model","code":400}}`))
	}))
	defer server.Close()

	client := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", BaseURL: server.URL}, server.Client())
	_, err := client.Invoke(context.Background(), textRequest)
	if factcheck.KindOf(err) != factcheck.ErrUpstreamRejected {
		t.Fatalf("expected UpstreamRejected, got %v", err)
	}
	if factcheck.AsError(err).UserMessage() != "unknown model" {
		t.Fatalf("unexpected message: %q", factcheck.AsError(err).UserMessage())
	}
}

func TestOpenRouterEmptyStreamIsProtocolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	client := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", BaseURL: server.URL}, server.Client())
	_, err := client.Invoke(context.Background(), textRequest)
	if factcheck.KindOf(err) != factcheck.ErrUpstreamProtocolError {
		t.Fatalf("expected UpstreamProtocolError, got %v", err)
	}
}

type countingInvoker struct {
	calls atomic.Int32
}

func (c *countingInvoker) Invoke(context.Context, prompt.Request) (string, error) {
	c.calls.Add(1)
	return "{}", nil
}

func TestRateLimitedSpacesCalls(t *testing.T) {
	inner := &countingInvoker{}
	limited := NewRateLimited(inner, 40*time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := limited.Invoke(context.Background(), textRequest); err != nil {
			t.Fatalf("invoke %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 70*time.Millisecond {
		t.Fatalf("expected calls to be spaced, took %v", elapsed)
	}
	if inner.calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", inner.calls.Load())
	}
}

func TestRateLimitedHonorsContext(t *testing.T) {
	limited := NewRateLimited(&countingInvoker{}, time.Hour)
	if _, err := limited.Invoke(context.Background(), textRequest); err != nil {
		t.Fatalf("first invoke: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := limited.Invoke(ctx, textRequest)
	if factcheck.KindOf(err) != factcheck.ErrUpstreamUnavailable {
		t.Fatalf("expected UpstreamUnavailable, got %v", err)
	}
}

func TestNewRateLimitedPassthrough(t *testing.T) {
	inner := &countingInvoker{}
	if NewRateLimited(inner, 0) != Invoker(inner) {
		t.Fatal("expected inner invoker when interval is zero")
	}
}
