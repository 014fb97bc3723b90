package tagset

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bogem/id3v2/v2"
	dhowden "github.com/dhowden/tag"
	"github.com/go-flac/flacvorbis"
	flac "github.com/go-flac/go-flac"
)

// ClipID extracts the embedded clip id from an already-downloaded audio
// file: the TXXX "ID" frame on MP3, the "ID" vorbis comment on FLAC. Files
// without tags yield "", not an error.
func ClipID(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	m, err := dhowden.ReadFrom(f)
	if err != nil {
		if errors.Is(err, dhowden.ErrNoTagsFound) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrUnsupportedContainer, err)
	}

	switch m.FileType() {
	case dhowden.MP3:
		return mp3ClipID(path)
	case dhowden.FLAC:
		return flacClipID(path)
	}

	// other containers: look for an ID comment in the raw tag map
	for key, val := range m.Raw() {
		if strings.EqualFold(key, idFrameDesc) {
			if s, ok := val.(string); ok {
				return strings.TrimSpace(s), nil
			}
		}
	}
	return "", nil
}

func mp3ClipID(path string) (string, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedContainer, err)
	}
	defer tag.Close()
	return id3UserText(tag, idFrameDesc), nil
}

func flacClipID(path string) (string, error) {
	cmt, _, err := flacComment(path)
	if err != nil {
		return "", err
	}
	if cmt == nil {
		return "", nil
	}
	return vorbisFirst(cmt, idFrameDesc), nil
}

func flacComment(path string) (*flacvorbis.MetaDataBlockVorbisComment, *flac.File, error) {
	f, err := flac.ParseFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnsupportedContainer, err)
	}
	for _, block := range f.Meta {
		if block.Type != flac.VorbisComment {
			continue
		}
		cmt, err := flacvorbis.ParseFromMetaDataBlock(*block)
		if err != nil {
			return nil, nil, fmt.Errorf("parse vorbis comment: %w", err)
		}
		return cmt, f, nil
	}
	return nil, f, nil
}

func vorbisFirst(cmt *flacvorbis.MetaDataBlockVorbisComment, key string) string {
	vals, err := cmt.Get(key)
	if err != nil || len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}
