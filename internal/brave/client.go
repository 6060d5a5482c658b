// Package brave queries the Brave web search API for pages on trusted
// domains that discuss a claim.
package brave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"factcheck/backend/internal/config"
)

const (
	maxErrorBodyBytes = 8 * 1024
	maxQueryWords     = 40
	maxSiteFilters    = 8
)

var ErrMissingAPIKey = errors.New("brave api key is not configured")

type APIError struct {
	StatusCode int
	Body       string
}

func (e APIError) Error() string {
	return fmt.Sprintf("brave returned %d: %s", e.StatusCode, e.Body)
}

// Query restricts a claim search to a set of domains.
type Query struct {
	Claim string
	Sites []string
	Count int
}

type SearchResult struct {
	URL     string
	Title   string
	Snippet string
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type searchAPIResponse struct {
	Web struct {
		Results []searchAPIResult `json:"results"`
	} `json:"web"`
}

type searchAPIResult struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func NewClient(cfg config.Config, httpClient *http.Client) Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return Client{
		apiKey:     strings.TrimSpace(cfg.BraveAPIKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BraveBaseURL), "/"),
		httpClient: httpClient,
	}
}

func (c Client) Search(ctx context.Context, q Query) ([]SearchResult, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	text := buildQueryText(q.Claim, q.Sites)
	if text == "" {
		return nil, nil
	}
	count := q.Count
	if count <= 0 {
		count = 5
	}

	endpoint, err := url.Parse(c.baseURL + "/web/search")
	if err != nil {
		return nil, fmt.Errorf("parse brave endpoint: %w", err)
	}
	params := endpoint.Query()
	params.Set("q", text)
	params.Set("count", strconv.Itoa(count))
	params.Set("spellcheck", "0")
	params.Set("text_decorations", "0")
	endpoint.RawQuery = params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build brave request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request brave: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var parsed searchAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode brave response: %w", err)
	}

	results := make([]SearchResult, 0, len(parsed.Web.Results))
	seen := make(map[string]struct{}, len(parsed.Web.Results))
	for _, item := range parsed.Web.Results {
		rawURL := strings.TrimSpace(item.URL)
		if rawURL == "" {
			continue
		}
		if _, ok := seen[rawURL]; ok {
			continue
		}
		seen[rawURL] = struct{}{}

		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = rawURL
		}
		results = append(results, SearchResult{URL: rawURL, Title: title, Snippet: strings.TrimSpace(item.Description)})
		if len(results) >= count {
			break
		}
	}
	return results, nil
}

// buildQueryText caps the claim length and appends an OR-ed site filter.
func buildQueryText(claim string, sites []string) string {
	words := strings.Fields(claim)
	if len(words) == 0 {
		return ""
	}
	if len(words) > maxQueryWords {
		words = words[:maxQueryWords]
	}
	text := strings.Join(words, " ")

	filters := make([]string, 0, len(sites))
	for _, site := range sites {
		site = strings.TrimSpace(site)
		if site == "" {
			continue
		}
		filters = append(filters, "site:"+site)
		if len(filters) == maxSiteFilters {
			break
		}
	}
	if len(filters) == 0 {
		return text
	}
	return text + " (" + strings.Join(filters, " OR ") + ")"
}
