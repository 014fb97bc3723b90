package tagset

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-flac/flacvorbis"
	flac "github.com/go-flac/go-flac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFLAC(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "song.flac")
	// marker, then a lone zeroed streaminfo block with the last-block bit set
	var buf bytes.Buffer
	buf.WriteString("fLaC")
	buf.WriteByte(0x80)
	buf.Write([]byte{0, 0, 34})
	buf.Write(make([]byte, 34))
	buf.Write([]byte{0xFF, 0xF8, 0, 0})
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func flacField(t *testing.T, path, key string) string {
	t.Helper()

	cmt, _, err := flacComment(path)
	require.NoError(t, err)
	require.NotNil(t, cmt)
	return vorbisFirst(cmt, key)
}

func TestRetagFillMissingFLAC(t *testing.T) {
	t.Parallel()

	path := newFLAC(t)
	old := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, old, old))

	ts := testTagSet()
	changed, err := RetagFillMissing(path, ts)
	require.NoError(t, err)
	assert.True(t, changed)

	assert.Equal(t, ts.Title, flacField(t, path, flacvorbis.FIELD_TITLE))
	assert.Equal(t, ts.Album, flacField(t, path, flacvorbis.FIELD_ALBUM))
	assert.Equal(t, ts.Genre, flacField(t, path, "GENRE"))
	assert.Equal(t, "2", flacField(t, path, flacvorbis.FIELD_TRACKNUMBER))
	assert.Equal(t, ts.ClipID, flacField(t, path, "ID"))

	id, err := ClipID(path)
	require.NoError(t, err)
	assert.Equal(t, ts.ClipID, id)

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, st.ModTime().Equal(old), "retag preserves timestamps")

	// everything present now, second pass writes nothing
	changed, err = RetagFillMissing(path, ts)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestRetagFLACKeepsExistingFields(t *testing.T) {
	t.Parallel()

	path := newFLAC(t)

	f, err := flac.ParseFile(path)
	require.NoError(t, err)
	cmt := flacvorbis.New()
	require.NoError(t, cmt.Add(flacvorbis.FIELD_TITLE, "Keep Me"))
	block := cmt.Marshal()
	f.Meta = append(f.Meta, &block)
	require.NoError(t, f.Save(path))

	ts := testTagSet()
	ts.Title = "Replace Me"
	changed, err := RetagFillMissing(path, ts)
	require.NoError(t, err)
	assert.True(t, changed, "other fields still filled")

	assert.Equal(t, "Keep Me", flacField(t, path, flacvorbis.FIELD_TITLE))
	assert.Equal(t, ts.Album, flacField(t, path, flacvorbis.FIELD_ALBUM))
}
