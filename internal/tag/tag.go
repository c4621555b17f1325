package tag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bogem/id3v2"

	"songfetch/internal/art"
	"songfetch/internal/logger"
	"songfetch/internal/metadata"
)

// ErrInvalidContainer is returned when the audio data is neither an
// ID3-tagged file nor a bare MPEG stream.
var ErrInvalidContainer = errors.New("data is not an MP3 container")

// Engine rewrites ID3v2 metadata on MP3 audio. Text frames the record
// sets overwrite their predecessors; comment, lyrics and picture frames
// are removed before re-adding so repeated tagging never accumulates
// duplicates. Frames for fields the record leaves empty are kept as-is.
type Engine struct {
	art    *art.Fetcher
	log    *logger.Logger
	strict bool
}

// NewEngine creates an Engine. When strict is true a failed cover-art
// fetch fails the whole embed instead of being logged and skipped.
func NewEngine(artFetcher *art.Fetcher, log *logger.Logger, strict bool) *Engine {
	return &Engine{art: artFetcher, log: log, strict: strict}
}

// EmbedFile rewrites the tag of the MP3 file at path in place.
func (e *Engine) EmbedFile(ctx context.Context, path string, rec metadata.Record, lyricsText string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	out, err := e.EmbedBytes(ctx, data, rec, lyricsText)
	if err != nil {
		return err
	}

	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode()
	}
	if err := os.WriteFile(path, out, mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// EmbedBytes returns a copy of data with its ID3v2 tag replaced. The
// audio payload after the original tag section is carried over untouched.
func (e *Engine) EmbedBytes(ctx context.Context, data []byte, rec metadata.Record, lyricsText string) ([]byte, error) {
	if !validContainer(data) {
		return nil, ErrInvalidContainer
	}

	tag, err := id3v2.ParseReader(bytes.NewReader(data), id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("failed to parse ID3 tag: %w", err)
	}

	if err := e.applyFrames(ctx, tag, rec, lyricsText); err != nil {
		return nil, err
	}

	offset := tagSectionSize(data)
	var buf bytes.Buffer
	if _, err := tag.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize ID3 tag: %w", err)
	}
	buf.Write(data[offset:])
	return buf.Bytes(), nil
}

// applyFrames fills the tag from the record. Text frames replace their
// predecessors by ID; COMM, USLT and APIC are sequence frames and must
// be deleted first so repeated embedding never accumulates copies.
func (e *Engine) applyFrames(ctx context.Context, tag *id3v2.Tag, rec metadata.Record, lyricsText string) error {
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	tag.SetTitle(rec.Title)
	tag.SetArtist(rec.Artist)
	tag.SetAlbum(rec.Album)

	if rec.Year != "" {
		tag.AddTextFrame("TYER", id3v2.EncodingUTF8, rec.Year)
		tag.AddTextFrame("TDRC", id3v2.EncodingUTF8, rec.Year)
	}
	if rec.TrackNumber > 0 {
		track := strconv.Itoa(rec.TrackNumber)
		if rec.TotalTracks > 0 {
			track = fmt.Sprintf("%d/%d", rec.TrackNumber, rec.TotalTracks)
		}
		tag.AddTextFrame("TRCK", id3v2.EncodingUTF8, track)
	}
	if rec.DiscNumber > 0 {
		tag.AddTextFrame("TPOS", id3v2.EncodingUTF8, strconv.Itoa(rec.DiscNumber))
	}
	if genre := rec.FirstGenre(); genre != "" {
		tag.SetGenre(genre)
	}
	if len(rec.Composers) > 0 {
		tag.AddTextFrame("TCOM", id3v2.EncodingUTF8, strings.Join(rec.Composers, "/"))
	}

	tag.DeleteFrames(tag.CommonID("Comments"))
	if rec.Popularity > 0 {
		tag.AddCommentFrame(id3v2.CommentFrame{
			Encoding:    id3v2.EncodingUTF8,
			Language:    "eng",
			Description: "Popularity",
			Text:        fmt.Sprintf("Popularity: %d/100", rec.Popularity),
		})
	}

	tag.DeleteFrames(tag.CommonID("Unsynchronised lyrics/text transcription"))
	if lyricsText != "" {
		tag.AddUnsynchronisedLyricsFrame(id3v2.UnsynchronisedLyricsFrame{
			Encoding:          id3v2.EncodingUTF8,
			Language:          "eng",
			ContentDescriptor: "Lyrics",
			Lyrics:            lyricsText,
		})
	}

	return e.applyCover(ctx, tag, rec.CoverURL)
}

// applyCover replaces the attached pictures with a front and back cover
// carrying the same image. Fetch failures are logged and skipped unless
// the engine is strict.
func (e *Engine) applyCover(ctx context.Context, tag *id3v2.Tag, coverURL string) error {
	tag.DeleteFrames(tag.CommonID("Attached picture"))
	if coverURL == "" {
		return nil
	}

	picture, mime, err := e.art.Fetch(ctx, coverURL)
	if err != nil {
		if e.strict {
			return fmt.Errorf("failed to embed cover art: %w", err)
		}
		e.log.Warn("skipping cover art: %v", err)
		return nil
	}

	for _, pt := range []struct {
		kind byte
		desc string
	}{
		{id3v2.PTFrontCover, "Cover (front)"},
		{id3v2.PTBackCover, "Cover (back)"},
	} {
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    mime,
			PictureType: pt.kind,
			Description: pt.desc,
			Picture:     picture,
		})
	}
	return nil
}

// validContainer reports whether data starts with an ID3v2 header or an
// MPEG frame sync.
func validContainer(data []byte) bool {
	if len(data) >= 3 && bytes.HasPrefix(data, []byte("ID3")) {
		return true
	}
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}

// tagSectionSize returns the byte length of the existing ID3v2 tag
// section, including header and optional footer. Returns 0 when the
// data carries no tag.
func tagSectionSize(data []byte) int {
	if len(data) < 10 || !bytes.HasPrefix(data, []byte("ID3")) {
		return 0
	}
	// Tag size is a 28-bit synchsafe integer: four bytes, high bit unused.
	size := int(data[6]&0x7F)<<21 | int(data[7]&0x7F)<<14 | int(data[8]&0x7F)<<7 | int(data[9]&0x7F)
	total := 10 + size
	if data[5]&0x10 != 0 {
		total += 10 // footer present
	}
	if total > len(data) {
		return len(data)
	}
	return total
}
