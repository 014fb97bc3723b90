package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.senan.xyz/flagconf"

	"sunodl"
	"sunodl/chrome"
	"sunodl/clipref"
	"sunodl/cmd/internal/flagcommon"
	"sunodl/cmd/internal/logging"
	"sunodl/index"
)

func main() {
	exit := logging.Logging()
	defer exit()

	notifs := flagcommon.Notifications()
	sunoClient := flagcommon.Suno()
	downloader := flagcommon.Downloader()
	chromeCtl := flagcommon.Chrome()
	configPath := flagcommon.ConfigPath()

	var cfg sunodl.Config
	flag.StringVar(&cfg.BaseDir, "output", ".", "base folder for the collection")
	flag.BoolVar(&cfg.MP3, "mp3", true, "download mp3 audio")
	flag.BoolVar(&cfg.Artwork, "artwork", true, "download cover art")
	flag.BoolVar(&cfg.Lyrics, "lyrics", true, "write lyric sidecars")
	flag.BoolVar(&cfg.Genres, "genres", true, "write genre sidecars")
	flag.BoolVar(&cfg.Prompt, "prompt", true, "write prompt sidecars")
	flag.BoolVar(&cfg.PlaylistIndex, "playlist-index", true, "write a per playlist xlsx index")
	flag.BoolVar(&cfg.MasterIndex, "master-index", true, "write the cross playlist master xlsx index")
	flag.BoolVar(&cfg.WAV, "wav", false, "capture wav renditions with the browser")
	flag.BoolVar(&cfg.RetagOnly, "retag-only", false, "fill missing tags on existing audio, download nothing")
	flag.IntVar(&cfg.Workers, "workers", 4, "concurrent clip downloads")

	flag.Parse()
	flagconf.ParseEnv()
	flagconf.ParseConfig(*configPath)

	chromeCtl.OnState = func(s chrome.State) {
		slog.Info("browser", "state", s)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if flag.Arg(0) == "login" {
		log.Printf("opening a browser, sign in to suno then close every window")
		if err := chromeCtl.Login(ctx); err != nil {
			log.Fatalf("login: %v", err)
		}
		log.Printf("profile ready")
		return
	}

	refs, unresolved := parseInputs(flag.Args())
	for _, u := range unresolved {
		log.Printf("ignoring unrecognized input %q", u)
	}
	if len(refs) == 0 {
		log.Fatalf("need playlist or song links, as args or on stdin")
	}

	pipeline := &sunodl.Pipeline{
		Suno:       sunoClient,
		Downloader: downloader,
		Index:      &index.Writer{},
		Chrome:     chromeCtl,
		Notifs:     notifs,
	}

	sum, err := pipeline.Run(ctx, cfg, refs)
	if err != nil {
		log.Fatalf("run: %v", err)
	}

	log.Print(summaryLine(sum))
	for _, f := range sum.Failures {
		log.Printf("failed: %s", f)
	}
}

// parseInputs reads refs from args, or stdin when none are given so the tool
// can sit at the end of a pipe.
func parseInputs(args []string) ([]clipref.Ref, []string) {
	text := strings.Join(args, "\n")
	if len(args) == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.Fatalf("read stdin: %v", err)
		}
		text = string(b)
	}
	return clipref.Parse(text)
}

func summaryLine(sum *sunodl.Summary) string {
	parts := []string{
		fmt.Sprintf("%d playlists", sum.Playlists),
		fmt.Sprintf("%d clips", sum.Clips),
		fmt.Sprintf("%d downloaded", sum.Downloaded),
		fmt.Sprintf("%d skipped", sum.Skipped),
	}
	if sum.Retagged > 0 {
		parts = append(parts, fmt.Sprintf("%d retagged", sum.Retagged))
	}
	if sum.WAVs > 0 {
		parts = append(parts, fmt.Sprintf("%d wavs", sum.WAVs))
	}
	if len(sum.Failures) > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", len(sum.Failures)))
	}
	return strings.Join(parts, ", ")
}
