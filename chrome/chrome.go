// Package chrome drives a persistent-profile Chrome session over the
// DevTools protocol to capture the WAV renditions the public API does not
// expose. The profile directory is an exclusive resource: Chrome holds it
// with its own singleton lock, so only one session may run at a time and the
// user's regular browser must be closed first.
package chrome

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/gofrs/flock"

	"sunodl/tagset"
)

var (
	// ErrProfileLocked means another browser process holds the profile.
	// Deliberately not retried: breaking the lock risks corrupting session
	// state. The remedy is user action.
	ErrProfileLocked = errors.New("chrome: profile in use, close all Chrome windows using it and try again")

	// ErrSignedOut means the profile has no valid session; an interactive
	// sign-in is needed.
	ErrSignedOut = errors.New("chrome: profile is signed out, run an interactive login first")
)

// DefaultProfileDir is the persistent profile folder, colocated with the
// application.
const DefaultProfileDir = "pw_suno_profile"

const sessionMarker = ".bootstrapped"

// Chromium's own profile lock markers.
var profileLockFiles = []string{"SingletonLock", "SingletonCookie", "SingletonSocket", "Lockfile"}

type State int

const (
	StateIdle State = iota
	StateProfileCheck
	StateNeedsLogin
	StateDownloading
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProfileCheck:
		return "profile-check"
	case StateNeedsLogin:
		return "awaiting sign-in"
	case StateDownloading:
		return "downloading"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

// Job is one WAV to capture. Dest uses the same clip-derived file base as
// the MP3 sibling.
type Job struct {
	ClipID  string
	SongURL string
	Dest    string
	Tags    tagset.TagSet
}

type Controller struct {
	ProfileDir  string
	Headless    bool
	ClipTimeout time.Duration
	BaseURL     string // landing page, default https://suno.com

	// OnState observes state machine transitions, for progress display.
	OnState func(State)

	// replaced in tests
	login   func(context.Context) error
	session func(context.Context, []Job) ([]error, error)
}

func (c *Controller) setState(s State) {
	if c.OnState != nil {
		c.OnState(s)
	}
}

func (c *Controller) profileDir() string {
	if c.ProfileDir == "" {
		return DefaultProfileDir
	}
	return c.ProfileDir
}

func (c *Controller) baseURL() string {
	if c.BaseURL == "" {
		return "https://suno.com"
	}
	return c.BaseURL
}

func (c *Controller) clipTimeout() time.Duration {
	if c.ClipTimeout == 0 {
		return 3 * time.Minute
	}
	return c.ClipTimeout
}

// ProfileHeld reports whether another browser process currently holds the
// profile directory.
func ProfileHeld(dir string) bool {
	for _, name := range profileLockFiles {
		if _, err := os.Lstat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// HasSession reports whether the profile has completed an interactive
// sign-in before.
func HasSession(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, sessionMarker))
	return err == nil
}

// acquire takes our own advisory lock on the profile, serializing automation
// sessions within and across sunodl processes, then checks for a foreign
// browser holding it.
func (c *Controller) acquire() (release func(), err error) {
	dir := c.profileDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}

	lock := flock.New(filepath.Join(dir, ".sunodl.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("profile lock: %w", err)
	}
	if !ok {
		return nil, ErrProfileLocked
	}
	if ProfileHeld(dir) {
		lock.Unlock()
		return nil, ErrProfileLocked
	}
	return func() { lock.Unlock() }, nil
}

func (c *Controller) allocOptions(headless bool) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.UserDataDir(c.profileDir()),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-notifications", true),
	}
	if headless {
		opts = append(opts, chromedp.Headless)
	}
	return opts
}

// Login launches a visible browser bound to the profile and blocks,
// user-paced, until sign-in completes and every browser window is closed.
// The close is a hard synchronization point: the automation session cannot
// attach while any window holds the profile.
func (c *Controller) Login(ctx context.Context) error {
	c.setState(StateProfileCheck)
	release, err := c.acquire()
	if err != nil {
		c.setState(StateIdle)
		return err
	}
	defer release()
	defer c.setState(StateIdle)

	c.setState(StateNeedsLogin)
	return c.loginLocked(ctx)
}

// loginLocked is the interactive sign-in flow, profile lock already held.
func (c *Controller) loginLocked(ctx context.Context) error {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, c.allocOptions(false)...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	if err := chromedp.Run(browserCtx, chromedp.Navigate(c.baseURL())); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}

	// Wait for the user to sign in and close the browser. The session drops
	// when the last window goes away.
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
		var alive int
		if err := chromedp.Run(browserCtx, chromedp.Evaluate("1", &alive)); err != nil {
			break
		}
	}

	marker := filepath.Join(c.profileDir(), sessionMarker)
	if err := os.WriteFile(marker, []byte(time.Now().Format(time.RFC3339)+"\n"), 0o644); err != nil {
		return fmt.Errorf("write session marker: %w", err)
	}
	return nil
}

// Download captures every job's WAV through the automated session, tagging
// each file as it lands. A missing or stale sign-in hands control to the
// interactive login flow, then the downloads resume on their own. Per-clip
// failures are collected and returned in errs; err is reserved for
// session-level failures like a held profile. The browser is always closed
// before returning so the profile never stays locked, cancellation included.
func (c *Controller) Download(ctx context.Context, jobs []Job) (errs []error, err error) {
	c.setState(StateProfileCheck)
	release, err := c.acquire()
	if err != nil {
		c.setState(StateIdle)
		return nil, err
	}
	defer release()

	login, session := c.login, c.session
	if login == nil {
		login = c.loginLocked
	}
	if session == nil {
		session = c.downloadSession
	}

	if !HasSession(c.profileDir()) {
		c.setState(StateNeedsLogin)
		if err := login(ctx); err != nil {
			c.setState(StateIdle)
			return nil, err
		}
	}

	for attempt := 0; ; attempt++ {
		errs, err = session(ctx, jobs)
		if errors.Is(err, ErrSignedOut) && attempt == 0 {
			// the marker outlived the session cookies, sign in again
			c.setState(StateNeedsLogin)
			if lerr := login(ctx); lerr != nil {
				c.setState(StateAborted)
				return errs, lerr
			}
			continue
		}
		return errs, err
	}
}

func (c *Controller) downloadSession(ctx context.Context, jobs []Job) (errs []error, err error) {
	staging, err := os.MkdirTemp("", "sunodl-wav-staging-*")
	if err != nil {
		c.setState(StateAborted)
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, c.allocOptions(c.Headless)...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	downloads := watchDownloads(browserCtx)

	c.setState(StateDownloading)
	err = chromedp.Run(browserCtx,
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(staging).
			WithEventsEnabled(true),
		chromedp.Navigate(c.baseURL()),
	)
	if err != nil {
		c.setState(StateAborted)
		return nil, fmt.Errorf("open landing page: %w", err)
	}

	var gated bool
	if err := chromedp.Run(browserCtx, chromedp.Evaluate(jsLoginGate, &gated)); err == nil && gated {
		c.setState(StateAborted)
		return nil, ErrSignedOut
	}

	for _, job := range jobs {
		if ctx.Err() != nil {
			c.setState(StateAborted)
			return errs, ctx.Err()
		}
		if _, statErr := os.Stat(job.Dest); statErr == nil {
			continue // wav already on disk
		}
		if err := c.captureOne(browserCtx, staging, downloads, job); err != nil {
			errs = append(errs, fmt.Errorf("clip %s: %w", job.ClipID, err))
			// recover to a neutral page before the next clip
			chromedp.Run(browserCtx, chromedp.Navigate(c.baseURL()))
		}
	}

	if ctx.Err() != nil {
		c.setState(StateAborted)
		return errs, ctx.Err()
	}
	c.setState(StateCompleted)
	return errs, nil
}

func (c *Controller) captureOne(ctx context.Context, staging string, downloads *downloadWatcher, job Job) error {
	ctx, cancel := context.WithTimeout(ctx, c.clipTimeout())
	defer cancel()

	if err := chromedp.Run(ctx,
		chromedp.Navigate(job.SongURL),
		chromedp.Sleep(1500*time.Millisecond),
	); err != nil {
		return fmt.Errorf("open song page: %w", err)
	}

	steps := []struct {
		name string
		js   string
	}{
		{"open more menu", jsOpenMoreMenu},
		{"click download", jsClickDownload},
		{"click wav entry", jsClickWAVEntry},
		{"confirm modal save", jsClickModalDownload},
	}
	for _, s := range steps {
		if err := waitForJS(ctx, s.js); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}

	guid, err := downloads.wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for download: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(job.Dest), 0o755); err != nil {
		return fmt.Errorf("create audio dir: %w", err)
	}
	if err := moveFile(filepath.Join(staging, guid), job.Dest); err != nil {
		return fmt.Errorf("move wav into place: %w", err)
	}
	writer, err := tagset.ForPath(job.Dest)
	if err != nil {
		return fmt.Errorf("tag wav: %w", err)
	}
	if err := writer.WriteTags(job.Dest, job.Tags); err != nil {
		return fmt.Errorf("tag wav: %w", err)
	}
	return nil
}

// moveFile renames src onto dst, falling back to copy and delete when the
// staging dir sits on a different filesystem than the collection.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".tmp*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

// waitForJS polls expr, which returns true once its click/assertion
// succeeded, until it does or ctx expires.
func waitForJS(ctx context.Context, expr string) error {
	for {
		var ok bool
		if err := chromedp.Run(ctx, chromedp.Evaluate(expr, &ok)); err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(300 * time.Millisecond):
		}
	}
}

type downloadWatcher struct {
	done chan string
}

// watchDownloads resolves completed browser downloads to their on-disk
// names in the staging dir.
func watchDownloads(ctx context.Context) *downloadWatcher {
	w := &downloadWatcher{done: make(chan string, 8)}
	chromedp.ListenTarget(ctx, func(ev any) {
		if e, ok := ev.(*cdpbrowser.EventDownloadProgress); ok &&
			e.State == cdpbrowser.DownloadProgressStateCompleted {
			select {
			case w.done <- e.GUID:
			default:
			}
		}
	})
	return w
}

func (w *downloadWatcher) wait(ctx context.Context) (string, error) {
	select {
	case guid := <-w.done:
		return guid, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
