// Package sunodl turns Suno clip and playlist references into an organized
// on-disk collection: tagged MP3s, artwork, lyric and prompt sidecars, xlsx
// indexes, and optionally browser-captured WAVs.
package sunodl

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"sunodl/chrome"
	"sunodl/clipref"
	"sunodl/downloads"
	"sunodl/index"
	"sunodl/layout"
	"sunodl/notifications"
	"sunodl/suno"
	"sunodl/tagset"
)

var ErrNoInputs = errors.New("no resolvable inputs")

// MasterIndexName is the cross-playlist spreadsheet, kept in the collection
// root.
const MasterIndexName = "Suno Master Index.xlsx"

// SongURLBase is where a clip's public page lives, for the WAV capture.
const SongURLBase = "https://suno.com/song/"

type Config struct {
	BaseDir string

	// Per-asset switches. All on by default in the CLI.
	MP3           bool
	Artwork       bool
	Lyrics        bool
	Genres        bool
	Prompt        bool
	PlaylistIndex bool
	MasterIndex   bool
	WAV           bool

	// RetagOnly skips all downloads and instead fills missing tag fields on
	// audio already in the collection, preserving file timestamps.
	RetagOnly bool

	Workers int
}

func (c Config) workers() int {
	if c.Workers <= 0 {
		return 4
	}
	return c.Workers
}

// Failure is one clip-level (or ref-level) error. A failure never stops the
// rest of the job.
type Failure struct {
	ClipID string
	Title  string
	Stage  string
	Err    error
}

func (f Failure) String() string {
	name := f.Title
	if name == "" {
		name = f.ClipID
	}
	return fmt.Sprintf("%s: %s: %v", name, f.Stage, f.Err)
}

type Summary struct {
	Playlists  int
	Clips      int
	Downloaded int
	Skipped    int
	Retagged   int
	WAVs       int
	Failures   []Failure
}

type Pipeline struct {
	Suno       *suno.Client
	Downloader *downloads.Downloader
	Index      *index.Writer
	Chrome     *chrome.Controller
	Notifs     *notifications.Notifications

	mu sync.Mutex
}

// unit is one resolved ref: a playlist, or a bare clip treated as a
// single-clip unsorted unit.
type unit struct {
	name  string // "" lands in Unsorted
	clips []suno.Clip
}

// Run processes refs end to end. Clip failures are isolated and reported in
// the summary; err is reserved for whole-job problems like an unusable
// output folder.
func (p *Pipeline) Run(ctx context.Context, cfg Config, refs []clipref.Ref) (*Summary, error) {
	if err := layout.CheckBase(cfg.BaseDir); err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, ErrNoInputs
	}

	var sum Summary

	units := p.resolve(ctx, refs, &sum)
	if len(units) == 0 {
		return nil, fmt.Errorf("%w: every input failed to resolve", ErrNoInputs)
	}

	lay := layout.Layout{Base: cfg.BaseDir}

	var masterRows []index.Row
	masterSeen := map[string]bool{}
	var wavJobs []chrome.Job

	for _, u := range units {
		rows, jobs := p.processUnit(ctx, cfg, lay, u, &sum)

		// First playlist wins when a clip appears in several.
		for _, row := range rows {
			if row.ClipID == "" || masterSeen[row.ClipID] {
				continue
			}
			masterSeen[row.ClipID] = true
			masterRows = append(masterRows, row)
		}
		wavJobs = append(wavJobs, jobs...)
	}

	if cfg.MasterIndex && !cfg.RetagOnly && len(masterRows) > 0 {
		path := filepath.Join(cfg.BaseDir, MasterIndexName)
		if err := p.Index.Upsert(path, index.MasterSheet, masterRows); err != nil {
			p.fail(&sum, Failure{Stage: "master index", Err: err})
			p.notifyIndexSkipped(ctx, err, path)
		}
	}

	if cfg.WAV && !cfg.RetagOnly && len(wavJobs) > 0 {
		p.captureWAVs(ctx, wavJobs, &sum)
	}

	p.notifyDone(ctx, &sum)
	return &sum, nil
}

// resolve fetches every ref's clip metadata. Unknown refs are tried as a
// playlist first, then as a clip.
func (p *Pipeline) resolve(ctx context.Context, refs []clipref.Ref, sum *Summary) []unit {
	var units []unit
	for _, ref := range refs {
		if ctx.Err() != nil {
			return units
		}
		u, err := p.resolveOne(ctx, ref)
		if err != nil {
			p.fail(sum, Failure{ClipID: ref.ID, Stage: "resolve", Err: err})
			continue
		}
		slog.InfoContext(ctx, "resolved", "name", cmp.Or(u.name, layout.Unsorted), "clips", len(u.clips))
		units = append(units, u)
	}
	return units
}

func (p *Pipeline) resolveOne(ctx context.Context, ref clipref.Ref) (unit, error) {
	fetchClip := func() (unit, error) {
		clip, err := p.Suno.Clip(ctx, ref.ID)
		if err != nil {
			return unit{}, err
		}
		return unit{clips: []suno.Clip{*clip}}, nil
	}

	switch ref.Kind {
	case clipref.KindClip:
		return fetchClip()
	case clipref.KindPlaylist:
		pl, err := p.Suno.Playlist(ctx, ref.ID)
		if err != nil {
			return unit{}, err
		}
		return unit{name: pl.Name, clips: pl.Clips}, nil
	default:
		pl, err := p.Suno.Playlist(ctx, ref.ID)
		if err == nil {
			return unit{name: pl.Name, clips: pl.Clips}, nil
		}
		if !errors.Is(err, suno.ErrNotFound) {
			return unit{}, err
		}
		return fetchClip()
	}
}

// processUnit handles one playlist: directories, duplicate detection, asset
// downloads across a worker pool, then a single index upsert. It returns the
// unit's index rows for the master sheet and any WAV capture jobs.
func (p *Pipeline) processUnit(ctx context.Context, cfg Config, lay layout.Layout, u unit, sum *Summary) ([]index.Row, []chrome.Job) {
	sum.Playlists++
	sum.Clips += len(u.clips)

	dirs := lay.Playlist(u.name)
	if err := dirs.Ensure(cfg.RetagOnly); err != nil {
		p.fail(sum, Failure{Title: u.name, Stage: "prepare folders", Err: err})
		return nil, nil
	}

	byID, versions, err := layout.ScanAudio(dirs.Audio)
	if err != nil {
		p.fail(sum, Failure{Title: u.name, Stage: "scan audio", Err: err})
		return nil, nil
	}

	// Version numbers are handed out serially so the workers never race on
	// the shared counters.
	bases := make([]string, len(u.clips))
	for i, clip := range u.clips {
		if ex, ok := byID[clip.ID]; ok {
			bases[i] = ex.Base
			continue
		}
		bases[i] = layout.NextBase(clip.Title, clip.ID, versions)
	}

	rows := make([]index.Row, len(u.clips))
	jobs := make([]chrome.Job, 0, len(u.clips))

	var wg errgroup.Group
	wg.SetLimit(cfg.workers())
	for i, clip := range u.clips {
		wg.Go(func() error {
			existing, dup := byID[clip.ID]
			switch {
			case cfg.RetagOnly:
				p.retagClip(ctx, clip, existing, dup, u.name, sum)
			case dup:
				slog.InfoContext(ctx, "skipping duplicate", "title", clip.Title, "clip", clip.ID)
				p.count(func() { sum.Skipped++ })
			default:
				p.downloadClip(ctx, cfg, dirs, clip, bases[i], sum)
			}
			rows[i] = indexRow(dirs, clip, bases[i])
			return nil
		})
	}
	wg.Wait()

	if cfg.WAV && !cfg.RetagOnly {
		for i, clip := range u.clips {
			jobs = append(jobs, chrome.Job{
				ClipID:  clip.ID,
				SongURL: SongURLBase + clip.ID,
				Dest:    filepath.Join(dirs.Audio, bases[i]+".wav"),
				Tags:    tagset.FromClip(clip, filepath.Base(dirs.Root), bases[i]),
			})
		}
	}

	if cfg.PlaylistIndex && !cfg.RetagOnly {
		name := cmp.Or(layout.Sanitize(u.name), layout.Unsorted)
		path := filepath.Join(dirs.Root, name+".xlsx")
		if err := p.Index.Upsert(path, name, compactRows(rows)); err != nil {
			p.fail(sum, Failure{Title: u.name, Stage: "playlist index", Err: err})
			p.notifyIndexSkipped(ctx, err, path)
		}
	}
	return compactRows(rows), jobs
}

// downloadClip fetches one clip's assets: artwork first so the MP3 can embed
// it, then the MP3 and its tags, then the text sidecars. Each asset fails
// independently.
func (p *Pipeline) downloadClip(ctx context.Context, cfg Config, dirs layout.PlaylistDirs, clip suno.Clip, base string, sum *Summary) {
	ts := tagset.FromClip(clip, filepath.Base(dirs.Root), base)

	fail := func(stage string, err error) {
		p.fail(sum, Failure{ClipID: clip.ID, Title: clip.Title, Stage: stage, Err: err})
	}

	if cfg.Artwork && clip.ImageURL != "" {
		if cover := layout.FindCover(dirs.Art, base); cover != "" {
			ts.ArtworkPath = cover // left over from an earlier run
		} else {
			dest := filepath.Join(dirs.Art, base+imageExt(clip.ImageURL))
			if err := p.Downloader.Fetch(ctx, clip.ImageURL, dest); err != nil {
				fail("artwork", &downloads.AssetError{Kind: "artwork", ClipID: clip.ID, Err: err})
			} else {
				ts.ArtworkPath = dest
			}
		}
	}

	if cfg.MP3 {
		if clip.AudioURL == "" {
			fail("audio", errors.New("clip has no audio url"))
		} else {
			dest := filepath.Join(dirs.Audio, base+".mp3")
			if err := p.Downloader.Fetch(ctx, clip.AudioURL, dest); err != nil {
				fail("audio", &downloads.AssetError{Kind: "audio", ClipID: clip.ID, Err: err})
			} else if err := (tagset.ID3{}).WriteTags(dest, ts); err != nil {
				fail("tag", err)
			} else {
				slog.InfoContext(ctx, "downloaded", "title", clip.Title, "file", dest)
				p.count(func() { sum.Downloaded++ })
			}
		}
	}

	for _, sc := range []struct {
		on   bool
		dir  string
		body string
	}{
		{cfg.Lyrics, dirs.Lyrics, clip.Lyrics},
		{cfg.Genres, dirs.Genres, strings.Join(clip.GenreTags, ", ")},
		{cfg.Prompt, dirs.Prompt, clip.Prompt},
	} {
		if !sc.on || sc.body == "" {
			continue
		}
		dest := filepath.Join(sc.dir, base+".txt")
		if err := downloads.WriteFileAtomic(dest, []byte(sc.body)); err != nil {
			fail(filepath.Base(sc.dir), err)
		}
	}
}

// retagClip fills missing tag fields on audio already on disk. New clips are
// left alone in this mode.
func (p *Pipeline) retagClip(ctx context.Context, clip suno.Clip, existing layout.Existing, dup bool, album string, sum *Summary) {
	if !dup {
		return
	}
	ts := tagset.FromClip(clip, cmp.Or(layout.Sanitize(album), layout.Unsorted), existing.Base)
	for _, path := range []string{existing.MP3, existing.FLAC} {
		if path == "" {
			continue
		}
		changed, err := tagset.RetagFillMissing(path, ts)
		if err != nil {
			p.fail(sum, Failure{ClipID: clip.ID, Title: clip.Title, Stage: "retag", Err: err})
			continue
		}
		if changed {
			slog.InfoContext(ctx, "filled missing tags", "file", path)
			p.count(func() { sum.Retagged++ })
		}
	}
}

func indexRow(dirs layout.PlaylistDirs, clip suno.Clip, base string) index.Row {
	audioPath := filepath.Join(dirs.Audio, base+".mp3")
	row := index.Row{
		TrackNum:  clip.TrackNum,
		Playlist:  cmp.Or(filepath.Base(dirs.Root), layout.Unsorted),
		Title:     base,
		Length:    suno.FormatLength(clip.Duration),
		Genre:     strings.Join(clip.GenreTags, ", "),
		Prompt:    clip.Prompt,
		Lyrics:    clip.Lyrics,
		ClipID:    clip.ID,
		Created:   suno.FormatCreated(clip.CreatedAt),
		ModelVer:  clip.ModelVersion,
		ModelName: clip.ModelName,
		Type:      clip.Type,
		AudioPath: audioPath,
		ImageURL:  clip.ImageURL,
		AudioURL:  clip.AudioURL,
		VideoURL:  clip.VideoURL,
	}
	if clip.StyleWeight != nil {
		row.Weight = fmt.Sprintf("%g", *clip.StyleWeight)
	}
	if clip.Creativity != nil {
		row.Creativity = fmt.Sprintf("%g", *clip.Creativity)
	}
	return row
}

// captureWAVs runs the browser phase, once per job, after everything else.
func (p *Pipeline) captureWAVs(ctx context.Context, jobs []chrome.Job, sum *Summary) {
	if p.Chrome == nil {
		p.fail(sum, Failure{Stage: "wav", Err: errors.New("no browser controller configured")})
		return
	}
	errs, err := p.Chrome.Download(ctx, jobs)
	for _, cerr := range errs {
		p.fail(sum, Failure{Stage: "wav", Err: cerr})
	}
	switch {
	case errors.Is(err, chrome.ErrSignedOut):
		p.fail(sum, Failure{Stage: "wav", Err: err})
		if p.Notifs != nil {
			p.Notifs.Sendf(ctx, notifications.NeedsSignIn, "wav capture needs a sign-in, run the login command")
		}
	case err != nil:
		p.fail(sum, Failure{Stage: "wav", Err: err})
	default:
		sum.WAVs = len(jobs) - len(errs)
	}
}

func (p *Pipeline) fail(sum *Summary, f Failure) {
	p.mu.Lock()
	defer p.mu.Unlock()
	slog.Error("clip failed", "stage", f.Stage, "title", cmp.Or(f.Title, f.ClipID), "err", f.Err)
	sum.Failures = append(sum.Failures, f)
}

func (p *Pipeline) count(f func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f()
}

func (p *Pipeline) notifyIndexSkipped(ctx context.Context, err error, path string) {
	if p.Notifs == nil || !errors.Is(err, index.ErrIndexLocked) {
		return
	}
	p.Notifs.Sendf(ctx, notifications.IndexSkipped, "index update skipped, %s is open in another program", path)
}

func (p *Pipeline) notifyDone(ctx context.Context, sum *Summary) {
	if p.Notifs == nil {
		return
	}
	if len(sum.Failures) > 0 {
		p.Notifs.Sendf(ctx, notifications.CompleteError, "finished with %d failures, %d downloaded", len(sum.Failures), sum.Downloaded)
		return
	}
	p.Notifs.Sendf(ctx, notifications.Complete, "finished, %d downloaded, %d skipped", sum.Downloaded, sum.Skipped)
}

func compactRows(rows []index.Row) []index.Row {
	out := rows[:0:0]
	for _, r := range rows {
		if r.ClipID != "" {
			out = append(out, r)
		}
	}
	return out
}

// imageExt keeps the CDN's image extension when it has one.
func imageExt(imageURL string) string {
	if u, err := url.Parse(imageURL); err == nil {
		switch ext := strings.ToLower(path.Ext(u.Path)); ext {
		case ".jpg", ".jpeg", ".png", ".webp":
			return ext
		}
	}
	return ".jpeg"
}
