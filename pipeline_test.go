package sunodl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sunodl/index"
	"sunodl/layout"
	"sunodl/suno"
)

func TestWAVJobTagsMatchMP3Siblings(t *testing.T) {
	t.Parallel()

	p := &Pipeline{Index: &index.Writer{}}
	cfg := Config{BaseDir: t.TempDir(), WAV: true}
	lay := layout.Layout{Base: cfg.BaseDir}

	var sum Summary
	// a directly-resolved clip has no playlist name and lands in Unsorted
	u := unit{clips: []suno.Clip{{ID: "id-1", Title: "Lone Star"}}}
	_, jobs := p.processUnit(t.Context(), cfg, lay, u, &sum)

	require.Len(t, jobs, 1)
	assert.Equal(t, "Lone Star V1", jobs[0].Tags.Title)
	assert.Equal(t, layout.Unsorted, jobs[0].Tags.Album, "wav and mp3 carry the same album")
	assert.Equal(t, "id-1", jobs[0].Tags.ClipID)
}
