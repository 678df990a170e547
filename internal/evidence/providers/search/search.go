// Package search implements the web-evidence source: it queries the
// DuckDuckGo HTML endpoint with several templates and collects the result
// snippets.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"phonecheck/internal/evidence"
	"phonecheck/internal/evidence/providers"
)

const (
	// SourceID identifies this source in logs and metrics.
	SourceID = "duckduckgo"

	// DefaultEndpoint is the HTML-only DuckDuckGo search endpoint.
	DefaultEndpoint = "https://html.duckduckgo.com/html/"

	userAgent       = "Mozilla/5.0 (compatible; phonecheck/1.0)"
	snippetSelector = ".result__snippet"
)

// DefaultTemplates are the query templates; %s is replaced by the number.
var DefaultTemplates = []string{
	"%s scam OR spam OR fraud",
	`"%s" who called me`,
	`"%s" phone number reviews`,
}

// Config configures the search source.
type Config struct {
	Endpoint   string
	Templates  []string
	HTTPClient *http.Client
}

// Source runs every template concurrently and merges the snippets.
type Source struct {
	endpoint   string
	templates  []string
	httpClient *http.Client
}

// New creates a search source.
func New(cfg Config) *Source {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	templates := cfg.Templates
	if len(templates) == 0 {
		templates = DefaultTemplates
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Source{endpoint: endpoint, templates: templates, httpClient: client}
}

func (s *Source) ID() string          { return SourceID }
func (s *Source) Kind() evidence.Kind { return evidence.KindSearch }

// Lookup issues one request per template. Any successful query makes the
// evidence ok; only when every query fails is the first error returned.
func (s *Source) Lookup(ctx context.Context, q providers.Query) (evidence.Evidence, error) {
	number := q.Number.String()
	results := make([][]string, len(s.templates))

	var (
		mu       sync.Mutex
		firstErr error
		okCount  int
	)

	// Errors are collected rather than returned so one failed query does not
	// cancel its siblings.
	var g errgroup.Group
	for i, tmpl := range s.templates {
		g.Go(func() error {
			snippets, err := s.query(ctx, fmt.Sprintf(tmpl, number))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return nil
			}
			results[i] = snippets
			okCount++
			return nil
		})
	}
	_ = g.Wait()

	if okCount == 0 {
		if firstErr == nil {
			firstErr = providers.NewProviderError(providers.ErrorInternal, SourceID, "no query templates", nil)
		}
		return evidence.Evidence{}, firstErr
	}

	var merged []string
	for _, r := range results {
		merged = append(merged, r...)
	}
	return evidence.NewSearch(evidence.SearchData{
		Snippets: evidence.NormalizeSnippets(merged),
		Queries:  okCount,
	}), nil
}

func (s *Source) query(ctx context.Context, text string) ([]string, error) {
	form := url.Values{"q": {text}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, providers.NewProviderError(providers.ErrorInternal, SourceID, "build request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, providers.NewProviderError(providers.ErrorTimeout, SourceID, "request timed out", err)
		}
		return nil, providers.NewProviderError(providers.ErrorProviderOutage, SourceID, "request failed", err)
	}
	defer resp.Body.Close()

	if category := providers.CategoryForStatus(resp.StatusCode); category != "" {
		return nil, providers.NewProviderError(category, SourceID, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, providers.NewProviderError(providers.ErrorBadResponse, SourceID, "parse html", err)
	}
	return extractSnippets(doc), nil
}

func extractSnippets(doc *goquery.Document) []string {
	var out []string
	doc.Find(snippetSelector).Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			out = append(out, text)
		}
	})
	return out
}
