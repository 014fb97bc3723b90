package index

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func row(id, title string) Row {
	return Row{
		TrackNum: 1,
		Playlist: "Synth Dreams",
		Title:    title,
		ClipID:   id,
		Genre:    "synthwave",
		Prompt:   "a dreamy song",
	}
}

func sheetRows(t *testing.T, path, sheet string) [][]string {
	t.Helper()

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(safeSheetName(sheet))
	require.NoError(t, err)
	return rows
}

func TestUpsertCreatesAndAppends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "Synth Dreams.xlsx")
	var w Writer
	require.NoError(t, w.Upsert(path, "Synth Dreams", []Row{
		row("id-1", "First V1"),
		row("id-2", "Second V1"),
	}))

	rows := sheetRows(t, path, "Synth Dreams")
	require.Len(t, rows, 3, "header + two rows")
	assert.Equal(t, "Title", rows[0][3])
	assert.Equal(t, "First V1", rows[1][3])
	assert.Equal(t, "id-2", rows[2][8])
}

func TestUpsertReplacesByClipID(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "p.xlsx")
	var w Writer
	require.NoError(t, w.Upsert(path, "P", []Row{row("id-1", "Old Title"), row("id-2", "Other")}))
	require.NoError(t, w.Upsert(path, "P", []Row{row("id-1", "New Title")}))

	rows := sheetRows(t, path, "P")
	require.Len(t, rows, 3, "upsert, not duplicate")
	assert.Equal(t, "New Title", rows[1][3])
	assert.Equal(t, "Other", rows[2][3], "prior row order preserved")
}

func TestUpsertRepeatIdentical(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "p.xlsx")
	in := []Row{row("id-1", "A"), row("id-2", "B")}
	var w Writer
	require.NoError(t, w.Upsert(path, "P", in))
	first := sheetRows(t, path, "P")
	require.NoError(t, w.Upsert(path, "P", in))
	assert.Equal(t, first, sheetRows(t, path, "P"))
}

func TestUpsertAssignsStableNumbers(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "p.xlsx")
	var w Writer
	require.NoError(t, w.Upsert(path, "P", []Row{row("id-1", "A"), row("id-2", "B")}))
	// touching a subset must not renumber the untouched rows
	require.NoError(t, w.Upsert(path, "P", []Row{row("id-2", "B2"), row("id-3", "C")}))

	rows := sheetRows(t, path, "P")
	require.Len(t, rows, 4)
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "2", rows[2][0])
	assert.Equal(t, "3", rows[3][0])
	assert.Equal(t, "B2", rows[2][3])
}

func TestSafeSheetName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "My Playlist", safeSheetName("My: Play[list]/?*"))
	assert.Equal(t, "Sheet", safeSheetName(""))
	long := safeSheetName("aaaaaaaaaabbbbbbbbbbccccccccccdddddddddd")
	assert.Len(t, []rune(long), 31)
}
