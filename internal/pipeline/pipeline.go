package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"songfetch/internal/art"
	"songfetch/internal/config"
	"songfetch/internal/fetch"
	"songfetch/internal/logger"
	"songfetch/internal/lyrics"
	"songfetch/internal/metadata"
	"songfetch/internal/provider/deezer"
	"songfetch/internal/provider/spotify"
	"songfetch/internal/resolver"
	"songfetch/internal/search"
	"songfetch/internal/tag"
	"songfetch/pkg/utils"
)

var (
	// ErrNotFound means no source page could be located for the query,
	// even after retrying with a narrowed expression.
	ErrNotFound = errors.New("no source page found for query")

	// ErrPartialResolution means a page was found but no audio reference
	// could be extracted from it.
	ErrPartialResolution = errors.New("source page carries no audio reference")

	// ErrFetchFailed means the resolved audio asset could not be downloaded.
	ErrFetchFailed = errors.New("failed to fetch audio asset")
)

// Request is a single song job.
type Request struct {
	Query  string
	Lyrics string

	// Record optionally carries caller-supplied metadata. It is used
	// whole when provider lookup fails; the two are never merged.
	Record *metadata.Record

	// Progress, when set, receives download progress in path mode.
	Progress func(written, total int64)
}

// Result is the outcome of a processed request. Exactly one of Data and
// Path is set, depending on the processing mode.
type Result struct {
	Data     []byte
	Path     string
	Filename string
	Record   metadata.Record
	Source   resolver.Result
}

type queryResolver interface {
	Resolve(ctx context.Context, query string) resolver.Result
}

type lyricsFetcher interface {
	Fetch(ctx context.Context, artist, title, album string) (lyrics.Result, error)
}

// Pipeline wires resolution, download, metadata lookup and tagging into
// one per-request flow. Each request runs sequentially within itself.
type Pipeline struct {
	cfg      config.Config
	log      *logger.Logger
	resolver queryResolver
	client   *fetch.Client
	engine   *tag.Engine
	provider metadata.Provider
	lyrics   lyricsFetcher
}

// New assembles a Pipeline from configuration.
func New(cfg config.Config, log *logger.Logger) *Pipeline {
	client := fetch.New(cfg.UserAgent)
	engine := search.NewClient(cfg.UserAgent, time.Duration(cfg.Search.PauseSeconds)*time.Second)
	artFetcher := art.NewFetcher(client, cfg.CoverArt.MaxSize)

	return &Pipeline{
		cfg:      cfg,
		log:      log,
		resolver: resolver.New(engine, client, log, cfg.Search),
		client:   client,
		engine:   tag.NewEngine(artFetcher, log, cfg.CoverArt.Strict),
		provider: buildProvider(cfg, log),
		lyrics:   lyrics.NewClient(),
	}
}

// buildProvider assembles the metadata provider chain from configuration.
// Returns nil when no provider is usable.
func buildProvider(cfg config.Config, log *logger.Logger) metadata.Provider {
	var providers []metadata.Provider
	for _, name := range cfg.MetadataProviders {
		switch name {
		case "spotify":
			if cfg.Spotify.ClientID != "" && cfg.Spotify.ClientSecret != "" {
				providers = append(providers, spotify.New(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret))
			} else {
				log.Debug("skipping spotify provider: no credentials")
			}
		case "deezer":
			providers = append(providers, deezer.New())
		}
	}

	switch len(providers) {
	case 0:
		return nil
	case 1:
		return providers[0]
	default:
		return metadata.NewChainProvider(providers, log)
	}
}

// Resolve runs only the resolution stage, without retry or download.
func (p *Pipeline) Resolve(ctx context.Context, query string) resolver.Result {
	return p.resolver.Resolve(ctx, query)
}

// ProcessBuffer resolves, downloads and tags a song entirely in memory.
func (p *Pipeline) ProcessBuffer(ctx context.Context, req Request) (*Result, error) {
	src, err := p.resolveWithRetry(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	data, err := p.client.GetBytes(ctx, src.AudioURL, originOf(src.PageURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	rec := p.resolveMetadata(ctx, src, req.Record)
	text := p.resolveLyrics(ctx, req.Lyrics, rec)

	tagged, err := p.engine.EmbedBytes(ctx, data, rec, text)
	if err != nil {
		return nil, err
	}

	return &Result{
		Data:     tagged,
		Filename: filename(rec),
		Record:   rec,
		Source:   src,
	}, nil
}

// ProcessFile resolves and downloads a song into workDir, then tags it
// in place. The caller owns workDir cleanup.
func (p *Pipeline) ProcessFile(ctx context.Context, req Request, workDir string) (*Result, error) {
	src, err := p.resolveWithRetry(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	destPath := filepath.Join(workDir, "audio.mp3")
	if err := p.client.DownloadFile(ctx, src.AudioURL, originOf(src.PageURL), destPath, req.Progress); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	rec := p.resolveMetadata(ctx, src, req.Record)
	text := p.resolveLyrics(ctx, req.Lyrics, rec)

	if err := p.engine.EmbedFile(ctx, destPath, rec, text); err != nil {
		return nil, err
	}

	return &Result{
		Path:     destPath,
		Filename: filename(rec),
		Record:   rec,
		Source:   src,
	}, nil
}

// resolveWithRetry runs the resolver, retrying once with a narrowed
// query when the first attempt finds no audio reference.
func (p *Pipeline) resolveWithRetry(ctx context.Context, query string) (resolver.Result, error) {
	src := p.resolver.Resolve(ctx, query)
	if src.AudioURL != "" {
		return src, nil
	}

	if narrowed := metadata.NarrowQuery(query); narrowed != "" {
		p.log.Debug("retrying resolution with narrowed query %q", narrowed)
		retried := p.resolver.Resolve(ctx, narrowed)
		if retried.AudioURL != "" {
			return retried, nil
		}
		if retried.PageURL != "" {
			src = retried
		}
	}

	if src.PageURL != "" {
		return resolver.Result{}, ErrPartialResolution
	}
	return resolver.Result{}, ErrNotFound
}

// resolveMetadata looks the resolved title up with the provider chain.
// A confident provider hit is authoritative; otherwise the caller's
// record is used whole, and failing that a minimal record is built from
// the display title.
func (p *Pipeline) resolveMetadata(ctx context.Context, src resolver.Result, caller *metadata.Record) metadata.Record {
	query := metadata.NormalizeQuery(src.Title, "")

	if p.provider != nil {
		results, err := p.provider.Search(ctx, query)
		if err != nil {
			p.log.Warn("metadata lookup failed: %v", err)
		} else if best, ok := metadata.BestMatch(query, results); ok && best.Confidence >= p.cfg.ConfidenceThreshold {
			p.log.Debug("metadata from provider (confidence %.2f)", best.Confidence)
			return best
		}
	}

	if caller != nil && (caller.Title != "" || caller.Artist != "") {
		return *caller
	}

	rec := metadata.Record{Title: query.Title, Artist: query.Artist}
	if rec.Title == "" {
		rec.Title = src.Title
	}
	return rec
}

// resolveLyrics prefers caller-supplied lyrics and falls back to a
// best-effort LRCLib fetch.
func (p *Pipeline) resolveLyrics(ctx context.Context, callerLyrics string, rec metadata.Record) string {
	if callerLyrics != "" {
		return callerLyrics
	}
	if p.lyrics == nil || rec.Title == "" {
		return ""
	}

	result, err := p.lyrics.Fetch(ctx, rec.Artist, rec.Title, rec.Album)
	if err != nil {
		p.log.Debug("lyrics lookup failed: %v", err)
		return ""
	}
	return result.Text()
}

func filename(rec metadata.Record) string {
	name := rec.Title
	if name == "" {
		name = "song"
	}
	if rec.Artist != "" {
		name = fmt.Sprintf("%s - %s", name, rec.Artist)
	}
	return utils.SanitizeFilename(name) + ".mp3"
}

// originOf returns the scheme://host origin of a page URL for use as a
// Referer, or "" when the URL does not parse.
func originOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
