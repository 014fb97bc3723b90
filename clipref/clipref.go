// Package clipref extracts playlist and clip references from pasted text.
package clipref

import (
	"bufio"
	"regexp"
	"strings"
)

type Kind uint8

const (
	// KindUnknown references are raw or query-param IDs whose kind is only
	// decided at fetch time, playlist first.
	KindUnknown Kind = iota
	KindPlaylist
	KindClip
)

func (k Kind) String() string {
	switch k {
	case KindPlaylist:
		return "playlist"
	case KindClip:
		return "clip"
	}
	return "unknown"
}

type Ref struct {
	Kind Kind
	ID   string
}

var (
	playlistExpr = regexp.MustCompile(`/playlists?/([A-Za-z0-9-]{22,36})`)
	clipExpr     = regexp.MustCompile(`/(?:song|clips?)/([A-Za-z0-9-]{22,36})`)
	queryExpr    = regexp.MustCompile(`[?&]id=([A-Za-z0-9-]{22,36})`)
	rawExpr      = regexp.MustCompile(`^[A-Za-z0-9-]{22,36}$`)
)

// Parse resolves each non-empty line of text into a Ref, trying playlist
// paths, then clip paths, then id query params, then the bare line as a raw
// ID. Refs come back de-duplicated by ID in first-seen order. Lines matching
// nothing are returned in unresolved, never dropped.
func Parse(text string) (refs []Ref, unresolved []string) {
	seen := map[string]struct{}{}
	add := func(kind Kind, id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		refs = append(refs, Ref{Kind: kind, ID: id})
	}

	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		switch {
		case matchAdd(playlistExpr, line, KindPlaylist, add):
		case matchAdd(clipExpr, line, KindClip, add):
		case matchAdd(queryExpr, line, KindUnknown, add):
		case rawExpr.MatchString(line):
			add(KindUnknown, line)
		default:
			unresolved = append(unresolved, line)
		}
	}
	return refs, unresolved
}

func matchAdd(expr *regexp.Regexp, line string, kind Kind, add func(Kind, string)) bool {
	m := expr.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	add(kind, m[1])
	return true
}
