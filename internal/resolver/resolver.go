package resolver

import (
	"context"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"songfetch/internal/config"
	"songfetch/internal/fetch"
	"songfetch/internal/logger"
	"songfetch/internal/search"
)

// Result is the outcome of one resolution attempt. All fields are
// independently optional; an empty AudioURL means resolution failed
// regardless of the others. A non-empty PageURL with an empty AudioURL is a
// partial resolution: the page was found but no audio reference on it.
type Result struct {
	AudioURL string
	PageURL  string
	Title    string
}

// Resolver turns a free-text song query into a concrete audio-file URL by
// searching for a source page and scraping it with an ordered chain of
// extraction strategies.
type Resolver struct {
	engine search.Engine
	client *fetch.Client
	logger *logger.Logger
	cfg    config.SearchConfig
}

// New creates a Resolver on top of a search engine and a fetch client.
func New(engine search.Engine, client *fetch.Client, log *logger.Logger, cfg config.SearchConfig) *Resolver {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	return &Resolver{
		engine: engine,
		client: client,
		logger: log,
		cfg:    cfg,
	}
}

// Resolve maps a query to an audio URL. It never returns an error: every
// network or parse failure collapses into a Result with absent fields so
// callers branch on field presence only.
func (r *Resolver) Resolve(ctx context.Context, query string) Result {
	expression := r.buildExpression(query)
	r.logger.Debug("Searching: %s", expression)

	urls, err := r.engine.Search(ctx, expression, r.cfg.MaxResults)
	if err != nil {
		r.logger.Warn("Search failed for %q: %v", query, err)
		return Result{}
	}
	if len(urls) == 0 {
		r.logger.Debug("No search results for %q", query)
		return Result{}
	}

	pageURL := urls[0]
	r.logger.Debug("Fetching source page: %s", pageURL)

	body, err := r.client.GetString(ctx, pageURL)
	if err != nil {
		r.logger.Warn("Failed to fetch source page %s: %v", pageURL, err)
		return Result{}
	}

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		r.logger.Warn("Failed to parse source page %s: %v", pageURL, err)
		return Result{}
	}

	ref, name := findAudioReference(doc)
	if ref == "" {
		r.logger.Debug("Page %s has no recognizable audio reference", pageURL)
		return Result{PageURL: pageURL}
	}
	r.logger.Debug("Strategy %s matched: %s", name, ref)

	audioURL := resolveReference(pageURL, ref)
	if audioURL == "" {
		return Result{PageURL: pageURL}
	}

	return Result{
		AudioURL: audioURL,
		PageURL:  pageURL,
		Title:    extractTitle(doc, query),
	}
}

// buildExpression scopes the raw query toward downloadable-audio pages.
func (r *Resolver) buildExpression(query string) string {
	parts := []string{strings.TrimSpace(query)}
	if r.cfg.Suffix != "" {
		parts = append(parts, r.cfg.Suffix)
	}
	if r.cfg.Site != "" {
		parts = append(parts, "site:"+r.cfg.Site)
	}
	return strings.Join(parts, " ")
}

// resolveReference makes an audio reference absolute. A leading-slash path is
// rooted at the page's scheme and host; other relative paths resolve against
// the page path with its trailing filename segment stripped.
func resolveReference(pageURL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}
