package resolver

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// A strategy inspects a parsed page and returns an audio reference, or ""
// when it finds none. Strategies are tried in order and the first non-empty
// value wins. Structural audio/source tags rank above generic links.
type strategy struct {
	name string
	find func(doc *html.Node) string
}

var strategies = []strategy{
	{"audio-src", findAudioSource},
	{"mp3-link", findMP3Link},
	{"source-src", findSourceElement},
	{"download-button", findDownloadButton},
}

// findAudioReference runs the strategy chain and reports which strategy
// matched.
func findAudioReference(doc *html.Node) (ref, strategyName string) {
	for _, s := range strategies {
		if ref := s.find(doc); ref != "" {
			return ref, s.name
		}
	}
	return "", ""
}

// findAudioSource returns the source of the first audio element: its own src
// attribute, or the src of a source element nested inside it.
func findAudioSource(doc *html.Node) string {
	var found string
	walk(doc, func(n *html.Node) bool {
		if !isElement(n, "audio") {
			return false
		}
		if src := usableRef(attrVal(n, "src")); src != "" {
			found = src
			return true
		}
		walk(n, func(child *html.Node) bool {
			if isElement(child, "source") {
				if src := usableRef(attrVal(child, "src")); src != "" {
					found = src
					return true
				}
			}
			return false
		})
		return found != ""
	})
	return found
}

// findMP3Link returns the first hyperlink whose target path ends in .mp3.
func findMP3Link(doc *html.Node) string {
	var found string
	walk(doc, func(n *html.Node) bool {
		if !isElement(n, "a") {
			return false
		}
		href := usableRef(attrVal(n, "href"))
		if href == "" {
			return false
		}
		path := href
		if parsed, err := url.Parse(href); err == nil && parsed.Path != "" {
			path = parsed.Path
		}
		if strings.HasSuffix(strings.ToLower(path), ".mp3") {
			found = href
			return true
		}
		return false
	})
	return found
}

// findSourceElement returns the src of the first media source element
// anywhere in the document.
func findSourceElement(doc *html.Node) string {
	var found string
	walk(doc, func(n *html.Node) bool {
		if isElement(n, "source") {
			if src := usableRef(attrVal(n, "src")); src != "" {
				found = src
				return true
			}
		}
		return false
	})
	return found
}

// findDownloadButton returns the first href inside an element whose id or
// class mentions "download", the usual download-button container.
func findDownloadButton(doc *html.Node) string {
	var found string
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || !mentionsDownload(n) {
			return false
		}
		if isElement(n, "a") {
			if href := usableRef(attrVal(n, "href")); href != "" {
				found = href
				return true
			}
		}
		walk(n, func(child *html.Node) bool {
			if isElement(child, "a") {
				if href := usableRef(attrVal(child, "href")); href != "" {
					found = href
					return true
				}
			}
			return false
		})
		return found != ""
	})
	return found
}

func mentionsDownload(n *html.Node) bool {
	id := strings.ToLower(attrVal(n, "id"))
	class := strings.ToLower(attrVal(n, "class"))
	return strings.Contains(id, "download") || strings.Contains(class, "download")
}

// extractTitle pulls a display title from the page: document title, then the
// top-level heading, then a site-specific song-name element, falling back to
// the query itself.
func extractTitle(doc *html.Node, query string) string {
	if t := textOfFirst(doc, func(n *html.Node) bool { return isElement(n, "title") }); t != "" {
		return t
	}
	if t := textOfFirst(doc, func(n *html.Node) bool { return isElement(n, "h1") }); t != "" {
		return t
	}
	if t := textOfFirst(doc, isSongNameElement); t != "" {
		return t
	}
	return query
}

func isSongNameElement(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	id := strings.ToLower(attrVal(n, "id"))
	class := strings.ToLower(attrVal(n, "class"))
	for _, marker := range []string{"song-name", "songname"} {
		if strings.Contains(id, marker) || strings.Contains(class, marker) {
			return true
		}
	}
	return false
}

// usableRef rejects references that cannot point at an asset.
func usableRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || ref == "#" {
		return ""
	}
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "mailto:") {
		return ""
	}
	return ref
}

// walk runs visit over n and its descendants depth-first, stopping as soon
// as visit returns true.
func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if visit(n) {
		return true
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if walk(child, visit) {
			return true
		}
	}
	return false
}

func isElement(n *html.Node, name string) bool {
	return n.Type == html.ElementNode && n.Data == name
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

// textOfFirst returns the collapsed text content of the first node matching
// the predicate.
func textOfFirst(doc *html.Node, match func(*html.Node) bool) string {
	var text string
	walk(doc, func(n *html.Node) bool {
		if !match(n) {
			return false
		}
		var b strings.Builder
		collectText(n, &b)
		text = strings.TrimSpace(whitespaceRegex.ReplaceAllString(b.String(), " "))
		return text != ""
	})
	return text
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, b)
	}
}
