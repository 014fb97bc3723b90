// Package index maintains the per-playlist and master xlsx reports, one row
// per clip, upserted by clip id.
package index

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"
)

// ErrIndexLocked means the spreadsheet is held open by another process. The
// update is skipped for this run, not fatal to the job.
var ErrIndexLocked = errors.New("index: file locked")

// MasterSheet is the sheet name of the cross-playlist master spreadsheet.
const MasterSheet = "Master"

var headers = []string{
	"#", "Track #", "Playlist", "Title", "Length", "Genre", "Prompt",
	"Lyrics", "ID", "Created", "Model Version", "Model Name", "Type",
	"Weight", "Creativity", "Audio Path", "Image Url", "Audio Url", "Video Url",
}

type Row struct {
	Num        int // "#", assigned from the row's sheet position on upsert
	TrackNum   int
	Playlist   string
	Title      string
	Length     string
	Genre      string
	Prompt     string
	Lyrics     string
	ClipID     string
	Created    string
	ModelVer   string
	ModelName  string
	Type       string
	Weight     string
	Creativity string
	AudioPath  string
	ImageURL   string
	AudioURL   string
	VideoURL   string
}

func (r Row) cells() []any {
	return []any{
		r.Num, r.TrackNum, r.Playlist, r.Title, r.Length, r.Genre,
		r.Prompt, r.Lyrics, r.ClipID, r.Created, r.ModelVer, r.ModelName,
		r.Type, r.Weight, r.Creativity, r.AudioPath, r.ImageURL, r.AudioURL,
		r.VideoURL,
	}
}

// Writer serializes spreadsheet access per file. Row upsert needs
// read-then-write consistency, so concurrent clip workers queue rows and one
// Upsert call per file applies them.
type Writer struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (w *Writer) pathLock(path string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.locks == nil {
		w.locks = map[string]*sync.Mutex{}
	}
	if _, ok := w.locks[path]; !ok {
		w.locks[path] = &sync.Mutex{}
	}
	return w.locks[path]
}

// Upsert applies rows to the spreadsheet at path, replacing cells of rows
// whose clip id already exists and appending the rest in order. The file and
// sheet are created on first use.
func (w *Writer) Upsert(path, sheet string, rows []Row) error {
	lock := w.pathLock(path)
	lock.Lock()
	defer lock.Unlock()

	sheet = safeSheetName(sheet)

	f, created, err := open(path, sheet)
	if err != nil {
		return err
	}
	defer f.Close()

	existing, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read rows: %w", err)
	}

	// clip id -> 1-based sheet row
	const idCol = 9
	byID := map[string]int{}
	for i, row := range existing {
		if i == 0 {
			continue
		}
		if len(row) >= idCol && row[idCol-1] != "" {
			byID[row[idCol-1]] = i + 1
		}
	}

	next := len(existing) + 1
	for _, row := range rows {
		num, ok := byID[row.ClipID]
		if !ok {
			num = next
			next++
			if row.ClipID != "" {
				byID[row.ClipID] = num
			}
		}
		// "#" follows the row's place in the sheet, so re-runs over a
		// subset never renumber rows they don't touch
		row.Num = num - 1
		cell, _ := excelize.CoordinatesToCellName(1, num)
		if err := f.SetSheetRow(sheet, cell, ptr(row.cells())); err != nil {
			return fmt.Errorf("set row: %w", err)
		}
	}

	if err := save(f, path, created); err != nil {
		return err
	}
	return nil
}

func open(path, sheet string) (f *excelize.File, created bool, err error) {
	f, err = excelize.OpenFile(path)
	switch {
	case err == nil:
		if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
			if _, err := f.NewSheet(sheet); err != nil {
				f.Close()
				return nil, false, fmt.Errorf("create sheet: %w", err)
			}
			if err := seedHeaders(f, sheet); err != nil {
				f.Close()
				return nil, false, err
			}
		}
		return f, false, nil
	case errors.Is(err, os.ErrNotExist):
		f = excelize.NewFile()
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			f.Close()
			return nil, false, fmt.Errorf("name sheet: %w", err)
		}
		if err := seedHeaders(f, sheet); err != nil {
			f.Close()
			return nil, false, err
		}
		return f, true, nil
	case errors.Is(err, os.ErrPermission):
		return nil, false, fmt.Errorf("%w: %s", ErrIndexLocked, path)
	default:
		return nil, false, fmt.Errorf("open spreadsheet: %w", err)
	}
}

func seedHeaders(f *excelize.File, sheet string) error {
	cells := make([]any, len(headers))
	for i, h := range headers {
		cells[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &cells); err != nil {
		return fmt.Errorf("write headers: %w", err)
	}
	return nil
}

func save(f *excelize.File, path string, created bool) error {
	var err error
	if created {
		err = f.SaveAs(path)
	} else {
		err = f.Save()
	}
	if err != nil {
		// Excel and friends hold the file open with a share lock; Windows
		// surfaces that as a permission error.
		if errors.Is(err, os.ErrPermission) {
			return fmt.Errorf("%w: %s", ErrIndexLocked, path)
		}
		return fmt.Errorf("save spreadsheet: %w", err)
	}
	return nil
}

// safeSheetName clamps a playlist name to what xlsx allows for sheet names.
func safeSheetName(name string) string {
	repl := []rune(name)
	out := repl[:0]
	for _, r := range repl {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
		default:
			out = append(out, r)
		}
	}
	s := string(out)
	if len([]rune(s)) > 31 {
		s = string([]rune(s)[:31])
	}
	if s == "" {
		s = "Sheet"
	}
	return s
}

func ptr[T any](v T) *T { return &v }
