package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

// Engine turns a search expression into a list of result page URLs.
// Implementations are best-effort: results may be stale or throttled.
type Engine interface {
	Search(ctx context.Context, expression string, maxResults int) ([]string, error)
}

// Client queries the DuckDuckGo HTML endpoint, which serves plain markup
// without requiring an API key. Calls are rate-limited so repeated requests
// don't trip the provider's throttling.
type Client struct {
	httpClient *http.Client
	userAgent  string
	limiter    *rate.Limiter

	// Overridable for testing
	baseURL string
}

// NewClient creates a search client. pause is the minimum gap enforced
// between consecutive search calls.
func NewClient(userAgent string, pause time.Duration) *Client {
	if pause <= 0 {
		pause = time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		userAgent:  userAgent,
		limiter:    rate.NewLimiter(rate.Every(pause), 1),
		baseURL:    "https://html.duckduckgo.com/html/",
	}
}

// Search issues the expression and returns up to maxResults result URLs.
// A failed attempt is retried once after a pause; the endpoint throttles
// bursts, and one pause-and-retry clears most of those.
func (c *Client) Search(ctx context.Context, expression string, maxResults int) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("search rate limit wait cancelled: %w", err)
	}

	body, err := c.fetchResults(ctx, expression)
	if err != nil {
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(2 * time.Second):
		}
		body, err = c.fetchResults(ctx, expression)
		if err != nil {
			return nil, err
		}
	}

	urls, err := parseResultLinks(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}

	if len(urls) > maxResults {
		urls = urls[:maxResults]
	}
	return urls, nil
}

func (c *Client) fetchResults(ctx context.Context, expression string) (string, error) {
	reqURL := fmt.Sprintf("%s?q=%s", c.baseURL, url.QueryEscape(expression))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read search response: %w", err)
	}
	return string(body), nil
}

// parseResultLinks walks the result markup and collects result anchors.
// DuckDuckGo wraps destinations in a redirect URL carrying the real target
// in the uddg parameter.
func parseResultLinks(body string) ([]string, error) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	var urls []string
	seen := make(map[string]struct{})

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "result__a") {
			if target := resultTarget(attrVal(n, "href")); target != "" {
				if _, ok := seen[target]; !ok {
					seen[target] = struct{}{}
					urls = append(urls, target)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return urls, nil
}

// resultTarget unwraps a result href into the destination URL.
func resultTarget(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}

	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	if parsed.Scheme == "http" || parsed.Scheme == "https" {
		return href
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, field := range strings.Fields(attrVal(n, "class")) {
		if field == class {
			return true
		}
	}
	return false
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
