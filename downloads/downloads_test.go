package downloads_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sunodl/downloads"
	"sunodl/suno"
)

func TestFetchRetriesTransient(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, "audio-bytes")
	}))
	t.Cleanup(srv.Close)

	dest := filepath.Join(t.TempDir(), "Audio", "song.mp3")
	d := downloads.Downloader{Backoff: time.Millisecond}
	require.NoError(t, d.Fetch(t.Context(), srv.URL, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "audio-bytes", string(data))
	assert.EqualValues(t, 3, calls.Load())

	// no stray temp files
	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestFetchPermanentFailureNoRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	dest := filepath.Join(t.TempDir(), "song.mp3")
	d := downloads.Downloader{Backoff: time.Millisecond}
	err := d.Fetch(t.Context(), srv.URL, dest)
	require.ErrorIs(t, err, suno.StatusError(http.StatusNotFound))
	assert.EqualValues(t, 1, calls.Load())
	assert.NoFileExists(t, dest)
}

func TestFetchExhaustsRetries(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	dest := filepath.Join(t.TempDir(), "song.mp3")
	d := downloads.Downloader{Attempts: 2, Backoff: time.Millisecond}
	err := d.Fetch(t.Context(), srv.URL, dest)
	require.ErrorIs(t, err, suno.StatusError(http.StatusServiceUnavailable))
	assert.NoFileExists(t, dest)
}

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "Lyrics", "song.txt")
	require.NoError(t, downloads.WriteFileAtomic(dest, []byte("la la la")))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "la la la", string(data))

	// overwrite is fine
	require.NoError(t, downloads.WriteFileAtomic(dest, []byte("do re mi")))
	data, err = os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "do re mi", string(data))
}

func TestAssetError(t *testing.T) {
	t.Parallel()

	inner := suno.StatusError(http.StatusBadGateway)
	err := &downloads.AssetError{Kind: "mp3", ClipID: "abc", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "mp3")
	assert.Contains(t, err.Error(), "abc")
}
