// Package tagset derives one normalized tag set per clip and writes it to
// the audio containers we produce, MP3 (ID3v2.4) and WAV (RIFF INFO plus an
// embedded ID3 chunk).
package tagset

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"sunodl/suno"
)

var ErrUnsupportedContainer = errors.New("tagset: unsupported container")

// TagSet is derived once from a clip metadata snapshot and applied
// identically to every container, so sibling files carry matching tags.
type TagSet struct {
	Title    string
	Artist   string
	Album    string
	TrackNum int
	Genre    string
	Comment  string
	Lyrics   string
	Created  string
	ClipID   string

	// ArtworkPath optionally points at a local cover image to embed.
	ArtworkPath string
}

// FromClip builds the TagSet for a clip. album is the playlist name, or
// "Unsorted" for clips resolved directly. title is the on-disk file base so
// tags and filenames stay consistent.
func FromClip(c suno.Clip, album, title string) TagSet {
	var sliders []string
	if c.StyleWeight != nil {
		sliders = append(sliders, fmt.Sprintf("Weight: %g", *c.StyleWeight))
	}
	if c.Creativity != nil {
		sliders = append(sliders, fmt.Sprintf("Creativity: %g", *c.Creativity))
	}

	var comment []string
	if c.Prompt != "" {
		comment = append(comment, c.Prompt)
	}
	if len(sliders) > 0 {
		comment = append(comment, strings.Join(sliders, ", "))
	}

	lyrics := c.Lyrics
	if lyrics == "" {
		lyrics = c.Prompt
	}

	return TagSet{
		Title:    title,
		Artist:   c.Creator,
		Album:    album,
		TrackNum: c.TrackNum,
		Genre:    strings.Join(c.GenreTags, ", "),
		Comment:  strings.Join(comment, " | "),
		Lyrics:   lyrics,
		Created:  suno.FormatCreated(c.CreatedAt),
		ClipID:   c.ID,
	}
}

// Writer embeds a TagSet into one audio container format.
type Writer interface {
	WriteTags(path string, ts TagSet) error
}

// ForPath selects the writer for a file by its extension.
func ForPath(path string) (Writer, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		return ID3{}, nil
	case ".wav":
		return WAV{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedContainer, ext)
	}
}
