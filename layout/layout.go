// Package layout computes the on-disk tree for a collection:
// <base>/<playlist>/{Audio,Art,Lyrics,Genres,Prompt}/<file base>.<ext>, with
// Unsorted standing in for clips resolved outside a playlist.
package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rainycape/unidecode"

	"sunodl/tagset"
)

// Unsorted is the folder for clips resolved directly rather than through a
// playlist.
const Unsorted = "Unsorted"

const (
	SubAudio  = "Audio"
	SubArt    = "Art"
	SubLyrics = "Lyrics"
	SubGenres = "Genres"
	SubPrompt = "Prompt"
)

var subdirs = []string{SubAudio, SubArt, SubLyrics, SubGenres, SubPrompt}

var (
	illegalExpr = regexp.MustCompile(`[\\/:*?"<>|]|[\x00-\x1f]`)
	versionExpr = regexp.MustCompile(`^(.*)\s+V(\d+)$`)
)

// Sanitize makes name safe for use as a path element. It is stable: the same
// input always yields the same output, so re-runs target the same files.
func Sanitize(name string) string {
	name = unidecode.Unidecode(name)
	name = illegalExpr.ReplaceAllString(name, "")
	name = strings.Join(strings.Fields(name), " ")
	return name
}

// PlaylistDirs is the directory set for one playlist (or Unsorted).
type PlaylistDirs struct {
	Root   string // <base>/<sanitized playlist name>
	Audio  string
	Art    string
	Lyrics string
	Genres string
	Prompt string
}

type Layout struct {
	Base string
}

func (l Layout) Playlist(name string) PlaylistDirs {
	name = Sanitize(name)
	if name == "" {
		name = Unsorted
	}
	root := filepath.Join(l.Base, name)
	return PlaylistDirs{
		Root:   root,
		Audio:  filepath.Join(root, SubAudio),
		Art:    filepath.Join(root, SubArt),
		Lyrics: filepath.Join(root, SubLyrics),
		Genres: filepath.Join(root, SubGenres),
		Prompt: filepath.Join(root, SubPrompt),
	}
}

// Ensure creates the directory tree. Existing directories are fine. In
// retag-only mode just Audio is needed.
func (d PlaylistDirs) Ensure(retagOnly bool) error {
	if retagOnly {
		return os.MkdirAll(d.Audio, 0o755)
	}
	for _, sub := range subdirs {
		if err := os.MkdirAll(filepath.Join(d.Root, sub), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", sub, err)
		}
	}
	return nil
}

// Existing records the audio files already on disk for one clip id.
type Existing struct {
	Base string // file base, without extension
	MP3  string
	FLAC string
}

// ScanAudio walks an Audio directory extracting embedded clip ids, for
// duplicate detection, and seeds the version counters from "<title> V<n>"
// stems so new files continue the numbering.
func ScanAudio(dir string) (byID map[string]Existing, versions map[string]int, err error) {
	byID = map[string]Existing{}
	versions = map[string]int{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return byID, versions, nil
		}
		return nil, nil, fmt.Errorf("read dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".mp3" && ext != ".flac" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		base := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))

		if m := versionExpr.FindStringSubmatch(base); m != nil {
			var v int
			fmt.Sscanf(m[2], "%d", &v)
			if v > versions[m[1]] {
				versions[m[1]] = v
			}
		}

		id, err := tagset.ClipID(path)
		if err != nil || id == "" {
			continue
		}
		ex := byID[id]
		if ex.Base == "" {
			ex.Base = base
		}
		if ext == ".mp3" {
			ex.MP3 = path
		} else {
			ex.FLAC = path
		}
		byID[id] = ex
	}
	return byID, versions, nil
}

// NextBase picks the file base for a new clip: sanitized title (falling back
// to the clip id) plus the next free " V<n>" suffix. versions is advanced in
// place.
func NextBase(title, id string, versions map[string]int) string {
	raw := strings.TrimSpace(Sanitize(title))
	if raw == "" {
		raw = strings.TrimSpace(Sanitize(id))
	}
	if raw == "" {
		raw = "Untitled"
	}
	versions[raw]++
	return fmt.Sprintf("%s V%d", raw, versions[raw])
}

// FindCover looks for an artwork file previously downloaded for base.
func FindCover(artDir, base string) string {
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".webp"} {
		p := filepath.Join(artDir, base+ext)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// CheckBase validates the output base directory before any work starts.
func CheckBase(base string) error {
	if base == "" {
		return fmt.Errorf("empty output folder")
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return fmt.Errorf("create output folder: %w", err)
	}
	if st, err := os.Stat(base); err != nil || !st.IsDir() {
		return fmt.Errorf("output folder is not a directory")
	}
	return nil
}
