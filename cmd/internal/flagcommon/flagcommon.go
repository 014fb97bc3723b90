package flagcommon

import (
	"flag"
	"os"
	"path/filepath"
	"time"

	"sunodl/chrome"
	"sunodl/clientutil"
	"sunodl/downloads"
	"sunodl/notifications"
	"sunodl/suno"
)

const name = "sunodl"

const defaultUserAgent = `sunodl/v0.0.0-alpha`

func init() {
	flag.CommandLine.Init(name, flag.ExitOnError)
}

var (
	userConfig, _     = os.UserConfigDir()
	DefaultConfigPath = filepath.Join(userConfig, name, "config")
)

func Notifications() *notifications.Notifications {
	var r notifications.Notifications
	flag.Var(notificationsParser{&r}, "notification-uri", "add a shoutrrr notification uri for an event")
	return &r
}

func Suno() *suno.Client {
	var c suno.Client
	flag.StringVar(&c.UserAgent, "suno-user-agent", defaultUserAgent, "")
	flag.StringVar(&c.BaseURL, "suno-base-url", suno.DefaultBaseURL, "")
	flag.DurationVar(&c.RateLimit, "suno-rate-limit", 500*time.Millisecond, "")
	return &c
}

func Downloader() *downloads.Downloader {
	var d downloads.Downloader
	flag.IntVar(&d.Attempts, "download-attempts", 4, "retry attempts per asset download")
	d.HTTPClient = clientutil.Wrap(nil, clientutil.Chain(
		clientutil.WithUserAgent(defaultUserAgent),
		clientutil.WithLogging(),
	))
	return &d
}

func Chrome() *chrome.Controller {
	var c chrome.Controller
	flag.StringVar(&c.ProfileDir, "profile-dir", chrome.DefaultProfileDir, "persistent browser profile folder for wav capture")
	flag.BoolVar(&c.Headless, "headless", false, "run the wav capture browser headless")
	flag.DurationVar(&c.ClipTimeout, "wav-timeout", 3*time.Minute, "per clip wav capture timeout")
	return &c
}

func ConfigPath() *string {
	return flag.String("config-path", DefaultConfigPath, "path config file")
}
