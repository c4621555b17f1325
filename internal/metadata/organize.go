package metadata

import (
	"path/filepath"
	"strings"

	"go.senan.xyz/taglib"

	"songfetch/pkg/utils"
)

// SubDirFromTags reads a tagged audio file back and returns an
// "Artist/Album" subdirectory path for organizing saved files.
// Returns "" if the tags can't be read.
func SubDirFromTags(path string) string {
	tags, err := taglib.ReadTags(path)
	if err != nil {
		return ""
	}

	artist := firstTag(tags, taglib.Artist)
	if i := strings.Index(artist, ","); i > 0 {
		artist = strings.TrimSpace(artist[:i])
	}
	album := firstTag(tags, taglib.Album)

	if artist == "" {
		artist = "Unknown Artist"
	}
	if album == "" {
		album = "Unknown Album"
	}

	return filepath.Join(utils.SanitizeFilename(artist), utils.SanitizeFilename(album))
}

func firstTag(tags map[string][]string, key string) string {
	if vals, ok := tags[key]; ok && len(vals) > 0 {
		return vals[0]
	}
	return ""
}
