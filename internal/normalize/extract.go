package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"rsc.io/pdf"
)

var (
	errUnsupportedContentType = errors.New("unsupported content type")
	errMalformedPDF           = errors.New("malformed pdf")
)

// noiseSelectors are removed before any text is measured.
var noiseSelectors = strings.Join([]string{
	"script", "style", "noscript", "meta", "link", "head", "nav", "header",
	"footer", "iframe", "svg", ".advertisement", ".ads", ".cookie-banner",
	"#cookie-banner", ".newsletter", ".social-share", ".comments",
}, ", ")

// articleSelectors are tried in priority order; the one yielding the most
// text wins and ties keep the earlier selector.
var articleSelectors = []string{
	"article",
	`[role="article"]`,
	".article-content",
	".article-body",
	".story-body",
	".post-content",
	".entry-content",
	"main",
	"#main-content",
}

const maxPDFRunes = 220_000

func extractContent(contentType string, body []byte, maxRunes int) (string, error) {
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = parsed
	}

	var (
		text string
		err  error
	)
	switch mediaType {
	case "text/html", "application/xhtml+xml":
		text, err = extractHTMLText(body)
	case "text/plain", "text/markdown", "text/csv":
		text = string(body)
	case "application/json":
		text, err = extractJSONText(body)
	case "application/pdf":
		text, err = extractPDFText(body)
	default:
		if !strings.HasPrefix(mediaType, "text/") {
			return "", errUnsupportedContentType
		}
		text = string(body)
	}
	if err != nil {
		return "", err
	}
	return trimToRunes(collapseWhitespace(text), maxRunes), nil
}

func extractHTMLText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	doc.Find(noiseSelectors).Remove()

	best := ""
	for _, selector := range articleSelectors {
		selection := doc.Find(selector)
		if selection.Length() == 0 {
			continue
		}
		text := collapseWhitespace(selectionText(selection))
		if len(text) > len(best) {
			best = text
		}
	}
	if best != "" {
		return best, nil
	}
	return collapseWhitespace(selectionText(doc.Find("body"))), nil
}

// selectionText joins text nodes with spaces so adjacent block elements
// do not run their words together.
func selectionText(selection *goquery.Selection) string {
	var builder strings.Builder
	for _, node := range selection.Nodes {
		writeNodeText(node, &builder)
	}
	return builder.String()
}

func writeNodeText(node *html.Node, out *strings.Builder) {
	if node.Type == html.TextNode {
		out.WriteString(node.Data)
		out.WriteByte(' ')
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		writeNodeText(child, out)
	}
}

func extractJSONText(data []byte) (string, error) {
	if !json.Valid(data) {
		return string(data), nil
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		return "", err
	}
	return pretty.String(), nil
}

// extractPDFText joins glyphs that share a baseline and starts a new line
// when the baseline moves. rsc.io/pdf panics on malformed content streams,
// so the page walk recovers into an error.
func extractPDFText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", errMalformedPDF, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errMalformedPDF, err)
	}

	var builder strings.Builder
	runeCount := 0
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteByte('\n')
		}

		var prev pdf.Text
		first := true
		for _, item := range page.Content().Text {
			if strings.TrimSpace(item.S) == "" {
				continue
			}
			if !first {
				if sep := glyphSeparator(prev, item); sep != 0 {
					builder.WriteByte(sep)
				}
			}
			builder.WriteString(item.S)
			runeCount += utf8.RuneCountInString(item.S)
			if runeCount >= maxPDFRunes {
				return trimToRunes(builder.String(), maxPDFRunes), nil
			}
			prev, first = item, false
		}
	}
	return builder.String(), nil
}

// glyphSeparator decides what goes between two consecutive glyphs: a newline
// when the baseline moves, a space when the horizontal gap looks like a word
// break, nothing otherwise.
func glyphSeparator(prev, next pdf.Text) byte {
	lineTolerance := math.Max(prev.FontSize*0.5, 0.5)
	if math.Abs(next.Y-prev.Y) > lineTolerance {
		return '\n'
	}
	gap := next.X - (prev.X + prev.W)
	if gap > math.Max(prev.FontSize*0.15, 0.01) || gap < -lineTolerance {
		return ' '
	}
	return 0
}

func collapseWhitespace(raw string) string {
	return strings.Join(strings.Fields(strings.ToValidUTF8(raw, "")), " ")
}

func trimToRunes(raw string, limit int) string {
	if limit <= 0 {
		return raw
	}
	if utf8.RuneCountInString(raw) <= limit {
		return raw
	}
	return string([]rune(raw)[:limit])
}
