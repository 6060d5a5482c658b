package sources

import (
	"context"
	"io"
	"net/http"
	"time"
)

const (
	defaultProbeTimeout = 5 * time.Second
	probeUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Prober reports whether a candidate URL is reachable. It never returns an
// error: any failure is simply unreachable.
type Prober interface {
	Probe(ctx context.Context, rawURL string) bool
}

type HTTPProber struct {
	timeout    time.Duration
	httpClient *http.Client
}

func NewHTTPProber(timeout time.Duration, httpClient *http.Client) *HTTPProber {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPProber{timeout: timeout, httpClient: httpClient}
}

// Probe sends one HEAD request; a status below 400 counts as reachable.
func (p *HTTPProber) Probe(ctx context.Context, rawURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", probeUserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
	return resp.StatusCode < http.StatusBadRequest
}
