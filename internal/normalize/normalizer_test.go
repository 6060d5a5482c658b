package normalize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"factcheck/backend/internal/factcheck"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func staticClient(status int, contentType, body string) *http.Client {
	return &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: status,
				Header:     http.Header{"Content-Type": []string{contentType}},
				Body:       io.NopCloser(strings.NewReader(body)),
				Request:    req,
			}, nil
		}),
	}
}

func TestNormalizeTextCollapsesWhitespace(t *testing.T) {
	n := New(nil, 0)
	got, err := n.Normalize(context.Background(), factcheck.ContentRequest{Kind: factcheck.KindText, Payload: "  The  moon\n\tis   made of cheese.  "})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got.Text != "The moon is made of cheese." {
		t.Fatalf("unexpected text: %q", got.Text)
	}
}

func TestNormalizeTextBlankIsEmptyContent(t *testing.T) {
	n := New(nil, 0)
	_, err := n.Normalize(context.Background(), factcheck.ContentRequest{Kind: factcheck.KindText, Payload: " \n\t "})
	if factcheck.KindOf(err) != factcheck.ErrEmptyContent {
		t.Fatalf("expected EmptyContent, got %v", err)
	}
}

func TestNormalizeURLPrefersArticleContainer(t *testing.T) {
	body := `<html><head><title>T</title><script>var tracking = 1;</script></head>
<body>
<nav>Home | World | Sport</nav>
<div class="advertisement">Buy now</div>
<article><h1>Headline</h1><p>First paragraph.</p><p>Second   paragraph.</p></article>
<footer>Copyright</footer>
</body></html>`
	reader := NewHTTPReader(ReaderConfig{RequestTimeout: time.Second}, staticClient(http.StatusOK, "text/html; charset=utf-8", body))

	got, err := New(reader, 0).Normalize(context.Background(), factcheck.ContentRequest{Kind: factcheck.KindURL, Payload: "https://example.com/story"})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got.Text != "Headline First paragraph. Second paragraph." {
		t.Fatalf("unexpected article text: %q", got.Text)
	}
}

func TestExtractHTMLKeepsHighestYieldSelector(t *testing.T) {
	body := `<html><body>
<article>Short teaser.</article>
<main><p>This main region carries considerably more readable text than the teaser.</p></main>
</body></html>`
	text, err := extractHTMLText([]byte(body))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.HasPrefix(text, "This main region") {
		t.Fatalf("expected main region to win, got %q", text)
	}
}

func TestExtractHTMLFallsBackToBody(t *testing.T) {
	text, err := extractHTMLText([]byte(`<html><body><header>Site</header><div>Loose   body text</div></body></html>`))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if text != "Loose body text" {
		t.Fatalf("unexpected body text: %q", text)
	}
}

func TestNormalizeURLStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   factcheck.ErrorKind
	}{
		{status: http.StatusForbidden, want: factcheck.ErrFetchForbidden},
		{status: http.StatusNotFound, want: factcheck.ErrFetchNotFound},
		{status: http.StatusTooManyRequests, want: factcheck.ErrFetchRateLimited},
		{status: http.StatusInternalServerError, want: factcheck.ErrFetchFailed},
	}

	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			reader := NewHTTPReader(ReaderConfig{RequestTimeout: time.Second}, staticClient(tc.status, "text/html", "<html></html>"))
			_, err := New(reader, 0).Normalize(context.Background(), factcheck.ContentRequest{Kind: factcheck.KindURL, Payload: "https://example.com/a"})
			if factcheck.KindOf(err) != tc.want {
				t.Fatalf("expected %s, got %v", tc.want, err)
			}
		})
	}
}

func TestNormalizeURLForbiddenSuggestsPasting(t *testing.T) {
	reader := NewHTTPReader(ReaderConfig{RequestTimeout: time.Second}, staticClient(http.StatusForbidden, "text/html", ""))
	_, err := New(reader, 0).Normalize(context.Background(), factcheck.ContentRequest{Kind: factcheck.KindURL, Payload: "https://paywalled.example.com/a"})

	var fe *factcheck.Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected *factcheck.Error, got %T", err)
	}
	if !strings.Contains(fe.UserMessage(), "copy and paste") {
		t.Fatalf("expected manual entry guidance, got %q", fe.UserMessage())
	}
}

func TestNormalizeURLTimeout(t *testing.T) {
	client := &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			<-req.Context().Done()
			return nil, req.Context().Err()
		}),
	}
	reader := NewHTTPReader(ReaderConfig{RequestTimeout: 20 * time.Millisecond}, client)

	_, err := New(reader, 0).Normalize(context.Background(), factcheck.ContentRequest{Kind: factcheck.KindURL, Payload: "https://example.com/slow"})
	if factcheck.KindOf(err) != factcheck.ErrFetchTimeout {
		t.Fatalf("expected FetchTimeout, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded in chain, got %v", err)
	}
}

func TestNormalizeURLSendsBrowserHeaders(t *testing.T) {
	var seen http.Header
	client := &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			seen = req.Header.Clone()
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Type": []string{"text/plain"}},
				Body:       io.NopCloser(strings.NewReader("plain words")),
				Request:    req,
			}, nil
		}),
	}
	reader := NewHTTPReader(ReaderConfig{}, client)
	if _, err := reader.Read(context.Background(), "https://example.com/plain"); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(seen.Get("User-Agent"), "Mozilla/5.0") {
		t.Fatalf("unexpected user agent: %q", seen.Get("User-Agent"))
	}
	if seen.Get("Accept-Language") != browserAcceptLanguage {
		t.Fatalf("unexpected accept-language: %q", seen.Get("Accept-Language"))
	}
}

func TestNormalizeURLBlocksPrivateHosts(t *testing.T) {
	reader := NewHTTPReader(ReaderConfig{RequestTimeout: time.Second}, staticClient(http.StatusOK, "text/plain", "secret"))
	for _, raw := range []string{"http://127.0.0.1/admin", "http://[::1]/", "http://metadata.internal/", "file:///etc/passwd"} {
		_, err := New(reader, 0).Normalize(context.Background(), factcheck.ContentRequest{Kind: factcheck.KindURL, Payload: raw})
		if factcheck.KindOf(err) != factcheck.ErrInvalidInput {
			t.Fatalf("expected InvalidInput for %s, got %v", raw, err)
		}
	}
}

func TestNormalizeURLUnsupportedType(t *testing.T) {
	reader := NewHTTPReader(ReaderConfig{RequestTimeout: time.Second}, staticClient(http.StatusOK, "image/png", "\x89PNG"))
	_, err := New(reader, 0).Normalize(context.Background(), factcheck.ContentRequest{Kind: factcheck.KindURL, Payload: "https://example.com/pic.png"})
	if factcheck.KindOf(err) != factcheck.ErrEmptyContent {
		t.Fatalf("expected EmptyContent, got %v", err)
	}
}

func TestReaderBodySizeCap(t *testing.T) {
	reader := NewHTTPReader(ReaderConfig{MaxBytes: 256, MaxTextRunes: 512, RequestTimeout: 2 * time.Second},
		staticClient(http.StatusOK, "text/plain", strings.Repeat("a ", 1024)))

	page, err := reader.Read(context.Background(), "https://example.com/large")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !page.Truncated {
		t.Fatal("expected truncated page")
	}
	if len(page.Text) == 0 || len(page.Text) > 256 {
		t.Fatalf("expected bounded text, got length=%d", len(page.Text))
	}
}

func TestExtractContentByType(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        string
	}{
		{name: "plain", contentType: "text/plain", body: "plain\n\ntext", want: "plain text"},
		{name: "markdown", contentType: "text/markdown", body: "# Header\nBody", want: "# Header Body"},
		{name: "json", contentType: "application/json", body: `{"a":1}`, want: `{ "a": 1 }`},
		{name: "csv", contentType: "text/csv", body: "a,b\n1,2", want: "a,b 1,2"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := extractContent(tc.contentType, []byte(tc.body), 0)
			if err != nil {
				t.Fatalf("extract: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestNormalizeImageDefaultsMediaType(t *testing.T) {
	got, err := New(nil, 1024).Normalize(context.Background(), factcheck.ContentRequest{Kind: factcheck.KindImage, Payload: "aGVsbG8="})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got.Image == nil || got.Image.MediaType != "image/jpeg" || got.Image.Data != "aGVsbG8=" {
		t.Fatalf("unexpected image part: %+v", got.Image)
	}
}

// onePagePDF wraps a content stream in a minimal single-page document with a
// valid cross-reference table.
func onePagePDF(content string) []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestExtractPDFMalformedStreamIsError(t *testing.T) {
	_, err := extractContent("application/pdf", onePagePDF("BT Tj ET"), 0)
	if !errors.Is(err, errMalformedPDF) {
		t.Fatalf("expected malformed pdf error, got %v", err)
	}
}

func TestExtractPDFNotAPDF(t *testing.T) {
	_, err := extractContent("application/pdf", []byte("definitely not a pdf"), 0)
	if !errors.Is(err, errMalformedPDF) {
		t.Fatalf("expected malformed pdf error, got %v", err)
	}
}

func TestExtractPDFJoinsGlyphs(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "same baseline", content: "BT (hello) Tj ET", want: "hello"},
		{name: "new line", content: "BT (hello) Tj 0 -20 Td (world) Tj ET", want: "hello world"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := extractContent("application/pdf", onePagePDF(tc.content), 0)
			if err != nil {
				t.Fatalf("extract: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestNormalizeURLMalformedPDFIsEmptyContent(t *testing.T) {
	reader := NewHTTPReader(ReaderConfig{RequestTimeout: time.Second}, staticClient(http.StatusOK, "application/pdf", string(onePagePDF("BT Tj ET"))))
	_, err := New(reader, 0).Normalize(context.Background(), factcheck.ContentRequest{Kind: factcheck.KindURL, Payload: "https://example.com/report.pdf"})
	if factcheck.KindOf(err) != factcheck.ErrEmptyContent {
		t.Fatalf("expected EmptyContent, got %v", err)
	}
}

func TestNormalizeTextCapsRunes(t *testing.T) {
	n := New(nil, 0)
	n.maxTextRunes = 5
	got, err := n.Normalize(context.Background(), factcheck.ContentRequest{Kind: factcheck.KindText, Payload: "héllo wörld"})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got.Text != "héllo" {
		t.Fatalf("expected capped text, got %q", got.Text)
	}
}

func TestNewCapsPastedTextAtReaderBudget(t *testing.T) {
	got, err := New(nil, 0).Normalize(context.Background(), factcheck.ContentRequest{Kind: factcheck.KindText, Payload: strings.Repeat("a", defaultMaxTextRunes+10)})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(got.Text) != defaultMaxTextRunes {
		t.Fatalf("expected %d runes, got %d", defaultMaxTextRunes, len(got.Text))
	}
}
