package resolver

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func parse(t *testing.T, body string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		t.Fatalf("failed to parse test HTML: %v", err)
	}
	return doc
}

func TestStrategyOrder(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantRef      string
		wantStrategy string
	}{
		{
			name:         "audio element src wins",
			body:         `<audio src="/files/song.mp3"></audio><a href="other.mp3">dl</a>`,
			wantRef:      "/files/song.mp3",
			wantStrategy: "audio-src",
		},
		{
			name:         "source nested in audio",
			body:         `<audio><source src="stream/song.mp3" type="audio/mpeg"></audio>`,
			wantRef:      "stream/song.mp3",
			wantStrategy: "audio-src",
		},
		{
			name:         "mp3 link when no audio element",
			body:         `<p><a href="/dl/track.MP3?key=1">Download</a></p><source src="clip.ogg">`,
			wantRef:      "/dl/track.MP3?key=1",
			wantStrategy: "mp3-link",
		},
		{
			name:         "bare source element",
			body:         `<video><source src="media/clip.ogg"></video>`,
			wantRef:      "media/clip.ogg",
			wantStrategy: "source-src",
		},
		{
			name:         "download button container",
			body:         `<div class="dl download-btn"><a href="/get/song?id=9">Get it</a></div>`,
			wantRef:      "/get/song?id=9",
			wantStrategy: "download-button",
		},
		{
			name:         "anchor itself marked download",
			body:         `<a id="downloadLink" href="/get/song">Get</a>`,
			wantRef:      "/get/song",
			wantStrategy: "download-button",
		},
		{
			name:    "nothing usable",
			body:    `<p>Lyrics only page</p><a href="#">top</a><a href="javascript:play()">play</a>`,
			wantRef: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, name := findAudioReference(parse(t, tt.body))
			if ref != tt.wantRef {
				t.Errorf("ref = %q, want %q", ref, tt.wantRef)
			}
			if name != tt.wantStrategy {
				t.Errorf("strategy = %q, want %q", name, tt.wantStrategy)
			}
		})
	}
}

func TestResolveReference(t *testing.T) {
	const page = "https://site.example/songs/abc.html"

	tests := []struct {
		ref  string
		want string
	}{
		{"download/x.mp3", "https://site.example/songs/download/x.mp3"},
		{"/files/x.mp3", "https://site.example/files/x.mp3"},
		{"https://cdn.example/x.mp3", "https://cdn.example/x.mp3"},
		{"//cdn.example/x.mp3", "https://cdn.example/x.mp3"},
		{"x.mp3?key=v", "https://site.example/songs/x.mp3?key=v"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := resolveReference(page, tt.ref); got != tt.want {
			t.Errorf("resolveReference(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "document title",
			body: `<html><head><title> Tum Hi Ho  Song </title></head><body><h1>Other</h1></body></html>`,
			want: "Tum Hi Ho Song",
		},
		{
			name: "falls back to h1",
			body: `<html><body><h1>Blinding Lights</h1></body></html>`,
			want: "Blinding Lights",
		},
		{
			name: "song name element",
			body: `<html><body><span class="songName-big">Shape of You</span></body></html>`,
			want: "Shape of You",
		},
		{
			name: "falls back to query",
			body: `<html><body><p>nothing here</p></body></html>`,
			want: "the original query",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractTitle(parse(t, tt.body), "the original query"); got != tt.want {
				t.Errorf("extractTitle = %q, want %q", got, tt.want)
			}
		})
	}
}
