package art

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // PNG decoder registration

	"golang.org/x/image/draw"

	"songfetch/internal/fetch"
)

// Fetcher downloads cover art and scales it down when it exceeds the
// configured maximum dimension. Images within bounds pass through
// untouched, keeping their original encoding.
type Fetcher struct {
	client  *fetch.Client
	maxSize int
}

// NewFetcher creates a Fetcher. maxSize is the largest allowed width or
// height in pixels; zero disables resizing.
func NewFetcher(client *fetch.Client, maxSize int) *Fetcher {
	return &Fetcher{client: client, maxSize: maxSize}
}

// Fetch downloads the image at rawURL and returns its bytes and MIME
// type. Oversized images are scaled to fit and re-encoded as JPEG.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	data, mime, err := f.client.GetImage(ctx, rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch cover art: %w", err)
	}

	if f.maxSize <= 0 {
		return data, mime, nil
	}

	resized, didResize, err := resize(data, f.maxSize)
	if err != nil {
		return nil, "", fmt.Errorf("failed to process cover art: %w", err)
	}
	if !didResize {
		return data, mime, nil
	}
	return resized, "image/jpeg", nil
}

// resize scales the image to fit within maxSize on both axes, keeping
// the aspect ratio. Returns didResize=false when the image already fits.
func resize(data []byte, maxSize int) ([]byte, bool, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= maxSize && height <= maxSize {
		return nil, false, nil
	}

	ratio := float64(width) / float64(height)
	if ratio > 1 {
		width = maxSize
		height = int(float64(maxSize) / ratio)
	} else {
		height = maxSize
		width = int(float64(maxSize) * ratio)
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90}); err != nil {
		return nil, false, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), true, nil
}
