package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Client wraps HTTP fetches against source sites.
//
// It always sends a browser-style User-Agent (the target sites tend to block
// default library agents) and optionally a Referer, which some sites require
// before serving audio files.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// New creates a fetch client. An empty userAgent falls back to a plain
// identifier.
func New(userAgent string) *Client {
	if userAgent == "" {
		userAgent = "songfetch/1.0"
	}
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		userAgent:  userAgent,
	}
}

func (c *Client) do(ctx context.Context, url, referer string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%s returned HTTP %d", url, resp.StatusCode)
	}

	return resp, nil
}

// GetString fetches a URL and returns the body as a string. Used for HTML
// pages.
func (c *Client) GetString(ctx context.Context, url string) (string, error) {
	body, err := c.GetBytes(ctx, url, "")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetBytes fetches a URL into memory, optionally sending a Referer.
func (c *Client) GetBytes(ctx context.Context, url, referer string) ([]byte, error) {
	resp, err := c.do(ctx, url, referer)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", url, err)
	}
	return body, nil
}

// GetImage fetches an image and reports its MIME type from the response's
// Content-Type header, defaulting to image/jpeg when absent.
func (c *Client) GetImage(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := c.do(ctx, url, "")
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image %s: %w", url, err)
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/jpeg"
	}
	return body, mime, nil
}

// DownloadFile streams a URL to destPath in bounded chunks instead of
// buffering the whole asset. onProgress (optional) receives bytes written and
// the total from Content-Length (-1 when unknown).
func (c *Client) DownloadFile(ctx context.Context, url, referer, destPath string, onProgress func(written, total int64)) error {
	resp, err := c.do(ctx, url, referer)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	file, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	defer file.Close()

	var writer io.Writer = file
	if onProgress != nil {
		writer = &progressWriter{
			writer:   file,
			total:    resp.ContentLength,
			onUpdate: onProgress,
		}
	}

	if _, err := io.Copy(writer, resp.Body); err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	return file.Close()
}

// progressWriter counts bytes as they stream through.
type progressWriter struct {
	writer   io.Writer
	total    int64
	written  int64
	onUpdate func(written, total int64)
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	pw.onUpdate(pw.written, pw.total)
	return n, err
}
