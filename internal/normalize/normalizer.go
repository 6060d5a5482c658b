// Package normalize turns a validated request into analyzable content:
// trimmed text, article text scraped from a URL, or an inline image.
package normalize

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"factcheck/backend/internal/factcheck"
)

type Reader interface {
	Read(ctx context.Context, rawURL string) (Page, error)
}

type Normalizer struct {
	reader        Reader
	maxImageBytes int
	maxTextRunes  int
}

// New builds a Normalizer. Pasted text is capped at the same rune budget as
// text extracted from a URL.
func New(reader Reader, maxImageBytes int) *Normalizer {
	return &Normalizer{reader: reader, maxImageBytes: maxImageBytes, maxTextRunes: defaultMaxTextRunes}
}

func (n *Normalizer) Normalize(ctx context.Context, req factcheck.ContentRequest) (factcheck.NormalizedContent, error) {
	switch req.Kind {
	case factcheck.KindText:
		text := trimToRunes(collapseWhitespace(req.Payload), n.maxTextRunes)
		if text == "" {
			return factcheck.NormalizedContent{}, factcheck.Errorf(factcheck.ErrEmptyContent, "Content is empty")
		}
		return factcheck.NormalizedContent{Kind: factcheck.KindText, Text: text}, nil

	case factcheck.KindURL:
		if n.reader == nil {
			return factcheck.NormalizedContent{}, factcheck.Errorf(factcheck.ErrInternal, "url reader is not configured")
		}
		page, err := n.reader.Read(ctx, strings.TrimSpace(req.Payload))
		if err != nil {
			return factcheck.NormalizedContent{}, classifyReadError(err)
		}
		if strings.TrimSpace(page.Text) == "" {
			return factcheck.NormalizedContent{}, factcheck.Errorf(factcheck.ErrEmptyContent,
				"No readable text was found at this URL. Please copy and paste the article text directly.")
		}
		return factcheck.NormalizedContent{Kind: factcheck.KindURL, Text: page.Text}, nil

	case factcheck.KindImage:
		image, err := factcheck.ParseImage(req.Payload, n.maxImageBytes)
		if err != nil {
			return factcheck.NormalizedContent{}, err
		}
		return factcheck.NormalizedContent{Kind: factcheck.KindImage, Image: &image}, nil
	}
	return factcheck.NormalizedContent{}, factcheck.Errorf(factcheck.ErrInvalidInput, "Unsupported content type %q", req.Kind)
}

func classifyReadError(err error) *factcheck.Error {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusForbidden, http.StatusUnauthorized, http.StatusPaymentRequired:
			return factcheck.NewError(factcheck.ErrFetchForbidden, "", err)
		case http.StatusNotFound, http.StatusGone:
			return factcheck.NewError(factcheck.ErrFetchNotFound, "", err)
		case http.StatusTooManyRequests:
			return factcheck.NewError(factcheck.ErrFetchRateLimited, "", err)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return factcheck.NewError(factcheck.ErrFetchTimeout, "", err)
		}
		return factcheck.NewError(factcheck.ErrFetchFailed, "", err)
	}

	switch {
	case errors.Is(err, errInvalidURLScheme), errors.Is(err, errMissingURLHost),
		errors.Is(err, errBlockedURLHost), errors.Is(err, errBlockedURLPort):
		return factcheck.NewError(factcheck.ErrInvalidInput, "This URL cannot be fetched", err)
	case errors.Is(err, errUnsupportedContentType):
		return factcheck.NewError(factcheck.ErrEmptyContent,
			"This page format is not supported. Please copy and paste the article text directly.", err)
	case errors.Is(err, errMalformedPDF):
		return factcheck.NewError(factcheck.ErrEmptyContent,
			"This PDF could not be read. Please copy and paste the text directly.", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return factcheck.NewError(factcheck.ErrFetchTimeout, "", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return factcheck.NewError(factcheck.ErrFetchTimeout, "", err)
	}
	return factcheck.NewError(factcheck.ErrFetchFailed, "", err)
}
