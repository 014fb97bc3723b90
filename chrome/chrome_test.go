package chrome

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileHeld(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	assert.False(t, ProfileHeld(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Lockfile"), nil, 0o644))
	assert.True(t, ProfileHeld(dir))

	require.NoError(t, os.Remove(filepath.Join(dir, "Lockfile")))
	require.NoError(t, os.Symlink("host-1234", filepath.Join(dir, "SingletonLock")))
	assert.True(t, ProfileHeld(dir), "dangling singleton symlink counts as held")
}

func TestHasSession(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	assert.False(t, HasSession(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, sessionMarker), []byte("2026-01-01\n"), 0o644))
	assert.True(t, HasSession(dir))
}

func TestAcquire(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "profile")
	c := &Controller{ProfileDir: dir}

	release, err := c.acquire()
	require.NoError(t, err)
	require.DirExists(t, dir)
	release()

	// a foreign browser holding the profile blocks acquisition
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SingletonCookie"), nil, 0o644))
	_, err = c.acquire()
	assert.ErrorIs(t, err, ErrProfileLocked)
}

func TestDownloadLogsInWhenSessionMissing(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "profile")
	var states []State
	var logins int
	c := &Controller{
		ProfileDir: dir,
		OnState:    func(s State) { states = append(states, s) },
	}
	c.login = func(context.Context) error {
		logins++
		return os.WriteFile(filepath.Join(dir, sessionMarker), []byte("now\n"), 0o644)
	}
	c.session = func(context.Context, []Job) ([]error, error) { return nil, nil }

	_, err := c.Download(t.Context(), []Job{{ClipID: "x"}})
	require.NoError(t, err)
	assert.Equal(t, 1, logins, "sign-in runs inside the download flow")
	assert.Equal(t, []State{StateProfileCheck, StateNeedsLogin}, states)
}

func TestDownloadReauthsOnStaleSession(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "profile")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, sessionMarker), []byte("old\n"), 0o644))

	var logins, sessions int
	c := &Controller{ProfileDir: dir}
	c.login = func(context.Context) error { logins++; return nil }
	c.session = func(context.Context, []Job) ([]error, error) {
		sessions++
		if sessions == 1 {
			return nil, ErrSignedOut
		}
		return nil, nil
	}

	_, err := c.Download(t.Context(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, logins)
	assert.Equal(t, 2, sessions, "downloads resume after the re-auth")
}

func TestDownloadLoginFailureSurfaces(t *testing.T) {
	t.Parallel()

	c := &Controller{ProfileDir: filepath.Join(t.TempDir(), "profile")}
	c.login = func(context.Context) error { return ErrProfileLocked }
	c.session = func(context.Context, []Job) ([]error, error) {
		t.Fatal("session must not start without a sign-in")
		return nil, nil
	}

	_, err := c.Download(t.Context(), nil)
	assert.ErrorIs(t, err, ErrProfileLocked)
}

func TestMoveFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "staged")
	dst := filepath.Join(dir, "final.wav")
	require.NoError(t, os.WriteFile(src, []byte("audio"), 0o644))

	require.NoError(t, moveFile(src, dst))
	assert.NoFileExists(t, src)
	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("audio"), b)
}

func TestCopyFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "staged")
	dst := filepath.Join(dir, "final.wav")
	require.NoError(t, os.WriteFile(src, []byte("audio"), 0o644))

	require.NoError(t, copyFile(src, dst))
	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("audio"), b)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no stray temp files")
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "awaiting sign-in", StateNeedsLogin.String())
	assert.Equal(t, "downloading", StateDownloading.String())
	assert.Equal(t, "unknown", State(99).String())
}
