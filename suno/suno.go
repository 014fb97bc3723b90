// Package suno fetches playlist and clip metadata from the Suno studio API.
package suno

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/araddon/dateparse"

	"sunodl/clientutil"
)

const DefaultBaseURL = "https://studio-api.prod.suno.com/api"

var (
	ErrNotFound     = errors.New("suno: not found")
	ErrAuthRequired = errors.New("suno: auth required")
)

// StatusError is a non-2xx response outside the mapped 401/403/404 cases.
// 429 and 5xx are transient.
type StatusError int

func (se StatusError) Error() string {
	return "suno: status " + strconv.Itoa(int(se))
}

func (se StatusError) Temporary() bool {
	return int(se) == http.StatusTooManyRequests || int(se)/100 == 5
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var se StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	// Anything below HTTP, eg. refused connections and timeouts.
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

type Clip struct {
	ID           string
	Title        string
	Creator      string
	TrackNum     int // position within the playlist, 1 based
	Duration     time.Duration
	GenreTags    []string
	Prompt       string // gpt description prompt
	Lyrics       string
	Type         string
	ModelVersion string
	ModelName    string
	StyleWeight  *float64
	Creativity   *float64
	CreatedAt    time.Time
	ImageURL     string
	AudioURL     string
	VideoURL     string
}

type Playlist struct {
	ID    string
	Name  string
	Clips []Clip
}

type Client struct {
	BaseURL   string
	RateLimit time.Duration
	UserAgent string

	initOnce   sync.Once
	HTTPClient *http.Client
}

func (c *Client) init() {
	c.initOnce.Do(func() {
		if c.BaseURL == "" {
			c.BaseURL = DefaultBaseURL
		}
		c.HTTPClient = clientutil.Wrap(c.HTTPClient, clientutil.Chain(
			clientutil.WithCache(),
			clientutil.WithUserAgent(c.UserAgent),
			clientutil.WithRateLimit(c.RateLimit),
			clientutil.WithLogging(),
		))
	})
}

func (c *Client) get(ctx context.Context, url string, dest any) error {
	c.init()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return ErrAuthRequired
	case resp.StatusCode/100 != 2:
		return StatusError(resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Playlist fetches a playlist and all member clip metadata, paging until the
// service returns an empty page.
func (c *Client) Playlist(ctx context.Context, id string) (*Playlist, error) {
	playlist := Playlist{ID: id}
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s/playlist/%s/?page=%d", c.BaseURL, id, page)

		var pr playlistResponse
		if err := c.get(ctx, url, &pr); err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}

		if playlist.Name == "" {
			playlist.Name = pr.Name
		}
		if len(pr.PlaylistClips) == 0 {
			break
		}
		for _, pc := range pr.PlaylistClips {
			clip := pc.Clip.toClip()
			clip.TrackNum = len(playlist.Clips) + 1
			playlist.Clips = append(playlist.Clips, clip)
		}
	}
	return &playlist, nil
}

// Clip fetches a single clip's metadata.
func (c *Client) Clip(ctx context.Context, id string) (*Clip, error) {
	url := fmt.Sprintf("%s/clip/%s", c.BaseURL, id)

	var cr clipResponse
	if err := c.get(ctx, url, &cr); err != nil {
		return nil, err
	}

	cj := cr.Clip
	if cj.ID == "" {
		// some deployments return the clip at the top level
		cj = cr.clipJSON
	}
	clip := cj.toClip()
	if clip.ID == "" {
		clip.ID = id
	}
	if clip.Title == "" {
		clip.Title = id
	}
	clip.TrackNum = 1
	return &clip, nil
}

type playlistResponse struct {
	Name          string `json:"name"`
	PlaylistClips []struct {
		Clip clipJSON `json:"clip"`
	} `json:"playlist_clips"`
}

type clipResponse struct {
	Clip clipJSON `json:"clip"`
	clipJSON
}

type clipJSON struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	DisplayName       string   `json:"display_name"`
	Lyrics            string   `json:"lyrics"`
	MajorModelVersion string   `json:"major_model_version"`
	ModelName         string   `json:"model_name"`
	ImageLargeURL     string   `json:"image_large_url"`
	AudioURL          string   `json:"audio_url"`
	VideoURL          string   `json:"video_url"`
	CreatedAt         string   `json:"created_at"`
	Metadata          metaJSON `json:"metadata"`
}

type metaJSON struct {
	Tags                 string   `json:"tags"`
	Prompt               string   `json:"prompt"`
	Lyrics               string   `json:"lyrics"`
	Lyric                string   `json:"lyric"`
	GPTDescriptionPrompt string   `json:"gpt_description_prompt"`
	Duration             float64  `json:"duration"`
	Type                 string   `json:"type"`
	ControlSliders       struct {
		StyleWeight         *float64 `json:"style_weight"`
		WeirdnessConstraint *float64 `json:"weirdness_constraint"`
	} `json:"control_sliders"`
}

func (cj clipJSON) toClip() Clip {
	md := cj.Metadata

	lyrics := cj.Lyrics
	for _, alt := range []string{md.Lyrics, md.Lyric, md.Prompt} {
		if lyrics != "" {
			break
		}
		lyrics = alt
	}

	var created time.Time
	if cj.CreatedAt != "" {
		created, _ = dateparse.ParseAny(cj.CreatedAt)
	}

	return Clip{
		ID:           cj.ID,
		Title:        cj.Title,
		Creator:      cj.DisplayName,
		Duration:     time.Duration(md.Duration * float64(time.Second)),
		GenreTags:    splitTags(md.Tags),
		Prompt:       md.GPTDescriptionPrompt,
		Lyrics:       lyrics,
		Type:         md.Type,
		ModelVersion: cj.MajorModelVersion,
		ModelName:    cj.ModelName,
		StyleWeight:  md.ControlSliders.StyleWeight,
		Creativity:   md.ControlSliders.WeirdnessConstraint,
		CreatedAt:    created,
		ImageURL:     cj.ImageLargeURL,
		AudioURL:     cj.AudioURL,
		VideoURL:     cj.VideoURL,
	}
}

func splitTags(tags string) []string {
	var out []string
	for _, t := range strings.Split(tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// FormatLength renders a clip duration as m:ss for the indexes.
func FormatLength(d time.Duration) string {
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// FormatCreated renders the created-at stamp the way the indexes and tag
// containers expect it.
func FormatCreated(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("01-02-2006 03:04:05 PM")
}
