package tagset

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bogem/id3v2/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sunodl/suno"
)

func TestFromClip(t *testing.T) {
	t.Parallel()

	weight, creativity := 0.5, 0.7
	clip := suno.Clip{
		ID:          "clip-1",
		Title:       "Raw Title",
		Creator:     "someone",
		TrackNum:    3,
		GenreTags:   []string{"synthwave", "dreamy"},
		Prompt:      "a dreamy song",
		Lyrics:      "la la la",
		StyleWeight: &weight,
		Creativity:  &creativity,
		CreatedAt:   time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC),
	}

	ts := FromClip(clip, "Synth Dreams", "Raw Title V1")
	assert.Equal(t, "Raw Title V1", ts.Title, "file base, not raw title")
	assert.Equal(t, "someone", ts.Artist)
	assert.Equal(t, "Synth Dreams", ts.Album)
	assert.Equal(t, 3, ts.TrackNum)
	assert.Equal(t, "synthwave, dreamy", ts.Genre)
	assert.Equal(t, "a dreamy song | Weight: 0.5, Creativity: 0.7", ts.Comment)
	assert.Equal(t, "la la la", ts.Lyrics)
	assert.Equal(t, "03-01-2025 10:30:00 AM", ts.Created)
	assert.Equal(t, "clip-1", ts.ClipID)
}

func TestFromClipLyricsFallback(t *testing.T) {
	t.Parallel()

	ts := FromClip(suno.Clip{ID: "x", Prompt: "the prompt"}, "Unsorted", "x")
	assert.Equal(t, "the prompt", ts.Lyrics)
	assert.Equal(t, "the prompt", ts.Comment)
}

func TestForPath(t *testing.T) {
	t.Parallel()

	w, err := ForPath("/x/song.MP3")
	require.NoError(t, err)
	assert.IsType(t, ID3{}, w)

	w, err = ForPath("/x/song.wav")
	require.NoError(t, err)
	assert.IsType(t, WAV{}, w)

	_, err = ForPath("/x/song.ogg")
	require.ErrorIs(t, err, ErrUnsupportedContainer)
}

func testTagSet() TagSet {
	return TagSet{
		Title:    "My Song V1",
		Artist:   "someone",
		Album:    "Synth Dreams",
		TrackNum: 2,
		Genre:    "synthwave, dreamy",
		Comment:  "a dreamy song",
		Lyrics:   "la la la",
		Created:  "03-01-2025 10:30:00 AM",
		ClipID:   "11111111-2222-3333-4444-555555555555",
	}
}

func newMP3(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "song.mp3")
	// a lone mpeg frame header is enough of a body for tagging
	require.NoError(t, os.WriteFile(path, []byte{0xFF, 0xFB, 0x90, 0x00, 0, 0, 0, 0, 0, 0, 0, 0}, 0o644))
	return path
}

func TestID3WriteTags(t *testing.T) {
	t.Parallel()

	path := newMP3(t)
	ts := testTagSet()

	art := filepath.Join(t.TempDir(), "cover.jpeg")
	require.NoError(t, os.WriteFile(art, []byte("jpeg-bytes"), 0o644))
	ts.ArtworkPath = art

	require.NoError(t, ID3{}.WriteTags(path, ts))

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer tag.Close()

	assert.Equal(t, "My Song V1", tag.Title())
	assert.Equal(t, "someone", tag.Artist())
	assert.Equal(t, "Synth Dreams", tag.Album())
	assert.Equal(t, "synthwave, dreamy", tag.Genre())
	assert.Equal(t, "2", tag.GetTextFrame("TRCK").Text)
	assert.Equal(t, "03-01-2025 10:30:00 AM", tag.GetTextFrame("TCOP").Text)
	assert.Equal(t, ts.ClipID, id3UserText(tag, idFrameDesc))
	assert.Len(t, tag.GetFrames(tag.CommonID("Unsynchronised lyrics/text transcription")), 1)
	assert.Len(t, tag.GetFrames(tag.CommonID("Comments")), 1)
	assert.Len(t, tag.GetFrames(tag.CommonID("Attached picture")), 1)
}

func TestID3WriteTagsIdempotent(t *testing.T) {
	t.Parallel()

	path := newMP3(t)
	require.NoError(t, ID3{}.WriteTags(path, testTagSet()))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, ID3{}.WriteTags(path, testTagSet()))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestClipIDMP3(t *testing.T) {
	t.Parallel()

	path := newMP3(t)
	require.NoError(t, ID3{}.WriteTags(path, testTagSet()))

	id, err := ClipID(path)
	require.NoError(t, err)
	assert.Equal(t, testTagSet().ClipID, id)
}

func TestRetagFillMissingMP3(t *testing.T) {
	t.Parallel()

	path := newMP3(t)

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	tag.SetVersion(4)
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetTitle("Keep Me")
	require.NoError(t, tag.Save())
	require.NoError(t, tag.Close())

	old := time.Now().Add(-48 * time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(path, old, old))

	changed, err := RetagFillMissing(path, testTagSet())
	require.NoError(t, err)
	assert.True(t, changed)

	tag, err = id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer tag.Close()
	assert.Equal(t, "Keep Me", tag.Title(), "present field untouched")
	assert.Equal(t, "Synth Dreams", tag.Album(), "absent field filled")
	assert.Equal(t, testTagSet().ClipID, id3UserText(tag, idFrameDesc))

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, st.ModTime().Equal(old), "timestamps preserved")

	changed, err = RetagFillMissing(path, testTagSet())
	require.NoError(t, err)
	assert.False(t, changed, "second run is a no-op")
}

func TestRetagUnsupported(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "song.ogg")
	require.NoError(t, os.WriteFile(path, []byte("not audio"), 0o644))
	_, err := RetagFillMissing(path, testTagSet())
	require.ErrorIs(t, err, ErrUnsupportedContainer)
}
