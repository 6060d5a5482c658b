// Package sources turns a verdict's key claims into probed citations from a
// fixed directory of trusted domains.
package sources

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// QueryPlaceholder marks where the escaped claim goes in a template.
const QueryPlaceholder = "{query}"

type Entry struct {
	Domain   string `yaml:"domain" json:"domain"`
	Name     string `yaml:"name" json:"name"`
	Template string `yaml:"template" json:"template"`
	Category string `yaml:"category" json:"category"`
}

// Directory is an ordered, read-only list of trusted domains. Build it once
// at startup and share it.
type Directory struct {
	entries []Entry
}

type directoryFile struct {
	Sources []Entry `yaml:"sources"`
}

func NewDirectory(entries []Entry) (Directory, error) {
	if len(entries) == 0 {
		return Directory{}, fmt.Errorf("source directory is empty")
	}
	out := make([]Entry, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for i, entry := range entries {
		entry.Domain = strings.ToLower(strings.TrimSpace(entry.Domain))
		entry.Name = strings.TrimSpace(entry.Name)
		entry.Template = strings.TrimSpace(entry.Template)
		entry.Category = strings.TrimSpace(entry.Category)

		if entry.Domain == "" || entry.Name == "" {
			return Directory{}, fmt.Errorf("source %d: domain and name are required", i)
		}
		if _, dup := seen[entry.Domain]; dup {
			return Directory{}, fmt.Errorf("source %d: duplicate domain %q", i, entry.Domain)
		}
		seen[entry.Domain] = struct{}{}

		if !strings.Contains(entry.Template, QueryPlaceholder) {
			return Directory{}, fmt.Errorf("source %s: template must contain %s", entry.Domain, QueryPlaceholder)
		}
		parsed, err := url.Parse(strings.ReplaceAll(entry.Template, QueryPlaceholder, "q"))
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return Directory{}, fmt.Errorf("source %s: template is not an absolute http(s) url", entry.Domain)
		}
		out = append(out, entry)
	}
	return Directory{entries: out}, nil
}

// LoadDirectory reads a YAML file of the form `sources: [{domain, name,
// template, category}]`.
func LoadDirectory(path string) (Directory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Directory{}, fmt.Errorf("read source directory: %w", err)
	}
	var file directoryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Directory{}, fmt.Errorf("parse source directory: %w", err)
	}
	dir, err := NewDirectory(file.Sources)
	if err != nil {
		return Directory{}, fmt.Errorf("source directory %s: %w", path, err)
	}
	return dir, nil
}

// LoadOrDefault uses the built-in directory when path is empty.
func LoadOrDefault(path string) (Directory, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultDirectory(), nil
	}
	return LoadDirectory(path)
}

func (d Directory) Len() int {
	return len(d.entries)
}

func (d Directory) Entries() []Entry {
	out := make([]Entry, len(d.entries))
	copy(out, d.entries)
	return out
}

func (d Directory) Domains() []string {
	out := make([]string, len(d.entries))
	for i, entry := range d.entries {
		out[i] = entry.Domain
	}
	return out
}

// Lookup finds the entry whose domain matches host or one of its parents.
func (d Directory) Lookup(host string) (Entry, bool) {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, entry := range d.entries {
		if host == entry.Domain || strings.HasSuffix(host, "."+entry.Domain) {
			return entry, true
		}
	}
	return Entry{}, false
}

func DefaultDirectory() Directory {
	entries := make([]Entry, len(defaultEntries))
	copy(entries, defaultEntries)
	return Directory{entries: entries}
}

var defaultEntries = []Entry{
	{Domain: "reuters.com", Name: "Reuters", Category: "fact-checker", Template: "https://www.reuters.com/search/news?blob={query}"},
	{Domain: "apnews.com", Name: "Associated Press", Category: "fact-checker", Template: "https://apnews.com/search?q={query}&searchBy=text"},
	{Domain: "factcheck.org", Name: "FactCheck.org", Category: "fact-checker", Template: "https://www.factcheck.org/?s={query}"},
	{Domain: "snopes.com", Name: "Snopes", Category: "fact-checker", Template: "https://www.snopes.com/?s={query}"},
	{Domain: "politifact.com", Name: "PolitiFact", Category: "fact-checker", Template: "https://www.politifact.com/search/?q={query}"},
	{Domain: "nytimes.com", Name: "The New York Times", Category: "news", Template: "https://www.nytimes.com/search?dropmab=true&query={query}&sort=best"},
	{Domain: "washingtonpost.com", Name: "The Washington Post", Category: "news", Template: "https://www.washingtonpost.com/search/?query={query}&facets=%7B%22time%22%3A%22all%22%7D"},
	{Domain: "bbc.com", Name: "BBC News", Category: "news", Template: "https://www.bbc.com/search?q={query}&d=news"},
	{Domain: "npr.org", Name: "NPR", Category: "news", Template: "https://www.npr.org/search?query={query}&page=1"},
	{Domain: "wsj.com", Name: "Wall Street Journal", Category: "news", Template: "https://www.wsj.com/search?query={query}&isToggleOn=true&operator=AND"},
	{Domain: "fullfact.org", Name: "Full Fact UK", Category: "international-fact-checker", Template: "https://fullfact.org/search/?q={query}"},
	{Domain: "aap.com.au", Name: "AAP FactCheck", Category: "international-fact-checker", Template: "https://www.aap.com.au/search/{query}/"},
	{Domain: "afp.com", Name: "AFP Fact Check", Category: "international-fact-checker", Template: "https://factcheck.afp.com/search?keyword={query}"},
	{Domain: "sciencedirect.com", Name: "ScienceDirect", Category: "science-health", Template: "https://www.sciencedirect.com/search?qs={query}"},
	{Domain: "who.int", Name: "World Health Organization", Category: "science-health", Template: "https://www.who.int/home/search?indexCatalogue=genericsearchindex1&searchQuery={query}"},
	{Domain: "cdc.gov", Name: "CDC", Category: "science-health", Template: "https://search.cdc.gov/search?query={query}"},
	{Domain: "scholar.google.com", Name: "Google Scholar", Category: "academic", Template: "https://scholar.google.com/scholar?q={query}"},
	{Domain: "jstor.org", Name: "JSTOR", Category: "academic", Template: "https://www.jstor.org/action/doBasicSearch?Query={query}"},
	{Domain: "congress.gov", Name: "Congress.gov", Category: "government", Template: "https://www.congress.gov/search?q={query}"},
	{Domain: "usa.gov", Name: "USA.gov", Category: "government", Template: "https://search.usa.gov/search?query={query}"},
	{Domain: "economist.com", Name: "The Economist", Category: "news", Template: "https://www.economist.com/search?q={query}"},
	{Domain: "theguardian.com", Name: "The Guardian", Category: "news", Template: "https://www.theguardian.com/search?q={query}"},
	{Domain: "bloomberg.com", Name: "Bloomberg", Category: "news", Template: "https://www.bloomberg.com/search?query={query}"},
	{Domain: "nature.com", Name: "Nature", Category: "science-health", Template: "https://www.nature.com/search?q={query}"},
	{Domain: "science.org", Name: "Science", Category: "science-health", Template: "https://www.science.org/action/doSearch?q={query}"},
}
