package normalize

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	defaultFetchTimeout   = 10 * time.Second
	defaultMaxRedirects   = 5
	defaultMaxTextRunes   = 60_000
	defaultMaxBodyBytes   = int64(3_000_000)
	browserUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	browserAccept         = "text/html,application/xhtml+xml,application/xml;q=0.9,application/pdf;q=0.8,text/plain;q=0.8,*/*;q=0.5"
	browserAcceptLanguage = "en-US,en;q=0.5"
)

type ReaderConfig struct {
	RequestTimeout time.Duration
	MaxBytes       int64
	MaxRedirects   int
	MaxTextRunes   int
}

// Page is the outcome of one fetch, filled as far as the fetch got.
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Text        string
	Truncated   bool
}

// StatusError reports a non-2xx response from the target site.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

type HTTPReader struct {
	cfg        ReaderConfig
	httpClient *http.Client
}

// NewHTTPReader builds a reader. A nil httpClient gets a transport that
// refuses private addresses at dial time.
func NewHTTPReader(cfg ReaderConfig, httpClient *http.Client) *HTTPReader {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultFetchTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBodyBytes
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = defaultMaxRedirects
	}
	if cfg.MaxTextRunes <= 0 {
		cfg.MaxTextRunes = defaultMaxTextRunes
	}

	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.DialContext = secureDialContext(&net.Dialer{Timeout: cfg.RequestTimeout})
		httpClient = &http.Client{Transport: transport}
	}

	httpClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= cfg.MaxRedirects {
			return fmt.Errorf("too many redirects")
		}
		if _, err := validateFetchURL(req.URL.String()); err != nil {
			return err
		}
		return nil
	}

	return &HTTPReader{cfg: cfg, httpClient: httpClient}
}

func (r *HTTPReader) Read(ctx context.Context, rawURL string) (Page, error) {
	if r == nil {
		return Page{}, fmt.Errorf("reader is nil")
	}

	parsed, err := validateFetchURL(rawURL)
	if err != nil {
		return Page{URL: rawURL}, err
	}

	requestCtx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return Page{URL: parsed.String()}, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", browserAccept)
	req.Header.Set("Accept-Language", browserAcceptLanguage)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Page{URL: parsed.String()}, err
	}
	defer resp.Body.Close()

	page := Page{
		URL:        parsed.String(),
		FinalURL:   parsed.String(),
		StatusCode: resp.StatusCode,
	}
	if resp.Request != nil && resp.Request.URL != nil {
		page.FinalURL = resp.Request.URL.String()
	}

	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if mediaType, _, parseErr := mime.ParseMediaType(contentType); parseErr == nil {
		contentType = mediaType
	}
	if contentType == "" {
		contentType = "text/html"
	}
	page.ContentType = contentType

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusBadRequest {
		return page, &StatusError{StatusCode: resp.StatusCode}
	}

	payload, truncated, err := readBoundedBody(resp.Body, r.cfg.MaxBytes)
	if err != nil {
		return page, err
	}
	page.Truncated = truncated

	text, err := extractContent(contentType, payload, r.cfg.MaxTextRunes)
	if err != nil {
		return page, err
	}
	page.Text = text
	return page, nil
}

func readBoundedBody(r io.Reader, maxBytes int64) ([]byte, bool, error) {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBodyBytes
	}
	payload, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(payload)) > maxBytes {
		return payload[:maxBytes], true, nil
	}
	return payload, false, nil
}
