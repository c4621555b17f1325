package search

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

const resultsPage = `
<html><body>
<div class="results">
  <h2 class="result__title">
    <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fsongs.example%2Ftum-hi-ho.html&rut=abc">Tum Hi Ho</a>
  </h2>
  <h2 class="result__title">
    <a class="result__a" href="https://other.example/track/42">Direct link</a>
  </h2>
  <h2 class="result__title">
    <a class="result__a" href="https://other.example/track/42">Duplicate</a>
  </h2>
  <a href="https://ads.example/ignored">not a result</a>
</div>
</body></html>`

func newTestClient(srvURL string) *Client {
	c := NewClient("test-agent", time.Millisecond)
	c.baseURL = srvURL
	return c
}

func TestSearch(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		io.WriteString(w, resultsPage)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	urls, err := c.Search(context.Background(), `tum hi ho mp3 download site:songs.example`, 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if gotQuery != `tum hi ho mp3 download site:songs.example` {
		t.Errorf("sent query = %q", gotQuery)
	}

	want := []string{
		"https://songs.example/tum-hi-ho.html",
		"https://other.example/track/42",
	}
	if len(urls) != len(want) {
		t.Fatalf("got %d urls %v, want %d", len(urls), urls, len(want))
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Errorf("urls[%d] = %q, want %q", i, urls[i], want[i])
		}
	}
}

func TestSearchMaxResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, resultsPage)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	urls, err := c.Search(context.Background(), "anything", 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(urls) != 1 {
		t.Errorf("got %d urls, want 1", len(urls))
	}
}

func TestSearchNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body><div class="no-results">nothing</div></body></html>`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	urls, err := c.Search(context.Background(), "gibberish", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(urls) != 0 {
		t.Errorf("got %d urls, want 0", len(urls))
	}
}

func TestSearchRetriesOnThrottle(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, resultsPage)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	urls, err := c.Search(context.Background(), "query", 5)
	if err != nil {
		t.Fatalf("Search failed after retry: %v", err)
	}
	if calls != 2 {
		t.Errorf("made %d calls, want 2", calls)
	}
	if len(urls) == 0 {
		t.Error("expected results from the retried call")
	}
}

func TestResultTarget(t *testing.T) {
	tests := []struct {
		href string
		want string
	}{
		{"//duckduckgo.com/l/?uddg=" + url.QueryEscape("https://songs.example/a.html"), "https://songs.example/a.html"},
		{"https://songs.example/b.html", "https://songs.example/b.html"},
		{"javascript:void(0)", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := resultTarget(tt.href); got != tt.want {
			t.Errorf("resultTarget(%q) = %q, want %q", tt.href, got, tt.want)
		}
	}
}
