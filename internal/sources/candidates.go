package sources

import (
	"net/url"
	"strings"

	"factcheck/backend/internal/factcheck"
)

// Candidates builds one unverified citation per directory entry, in
// directory order.
func Candidates(claim string, dir Directory) []factcheck.Source {
	out := make([]factcheck.Source, 0, dir.Len())
	for _, entry := range dir.entries {
		out = append(out, candidateFor(entry, claim))
	}
	return out
}

func candidateFor(entry Entry, claim string) factcheck.Source {
	return factcheck.Source{
		Title:     entry.Name + " fact-check results",
		URL:       strings.ReplaceAll(entry.Template, QueryPlaceholder, escapeQuery(claim)),
		Relevance: "Fact-check results from " + entry.Name,
	}
}

// escapeQuery percent-encodes like a URI component: spaces become %20 so the
// value is valid in both paths and query strings.
func escapeQuery(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Merge concatenates groups in order, drops exact duplicates keeping the
// first occurrence and truncates to limit.
func Merge(limit int, groups ...[]factcheck.Source) []factcheck.Source {
	out := make([]factcheck.Source, 0, limit)
	seen := make(map[factcheck.Source]struct{})
	for _, group := range groups {
		for _, source := range group {
			if _, dup := seen[source]; dup {
				continue
			}
			seen[source] = struct{}{}
			out = append(out, source)
			if limit > 0 && len(out) == limit {
				return out
			}
		}
	}
	return out
}
