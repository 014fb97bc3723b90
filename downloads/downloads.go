// Package downloads fetches remote assets to disk, atomically and with
// bounded retries.
package downloads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"sunodl/suno"
)

// AssetError marks an asset as failed after retries were exhausted. It is
// clip scoped and non fatal to the rest of a job.
type AssetError struct {
	Kind   string // "mp3", "art", "wav", ...
	ClipID string
	Err    error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("asset %s for clip %s: %v", e.Kind, e.ClipID, e.Err)
}

func (e *AssetError) Unwrap() error { return e.Err }

const (
	defaultAttempts = 4
	defaultBackoff  = 500 * time.Millisecond
)

type Downloader struct {
	HTTPClient *http.Client
	Attempts   int
	Backoff    time.Duration
}

// Fetch streams url into dest, writing through a temporary file which is
// renamed into place only on full success. Transient failures are retried
// with doubling backoff.
func (d *Downloader) Fetch(ctx context.Context, url, dest string) error {
	client := d.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	attempts := d.Attempts
	if attempts == 0 {
		attempts = defaultAttempts
	}
	backoff := d.Backoff
	if backoff == 0 {
		backoff = defaultBackoff
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff << (attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err = fetchOnce(ctx, client, url, dest)
		if err == nil || !retryable(err) {
			return err
		}
	}
	return fmt.Errorf("retries exhausted: %w", err)
}

func fetchOnce(ctx context.Context, client *http.Client, url, dest string) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return suno.StatusError(resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("stream body: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err = os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return suno.IsTransient(err)
}

// WriteFileAtomic writes data to dest through a temporary file, for sidecar
// text assets.
func WriteFileAtomic(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
