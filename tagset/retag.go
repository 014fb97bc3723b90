package tagset

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacvorbis"
	flac "github.com/go-flac/go-flac"
)

// RetagFillMissing writes only the tag fields absent from an existing audio
// file, leaving present fields untouched. File timestamps are preserved so
// retag runs don't disturb sort-by-date collections. Reports whether
// anything was written.
func RetagFillMissing(path string, ts TagSet) (changed bool, err error) {
	st, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	defer func() {
		if err == nil {
			os.Chtimes(path, st.ModTime(), st.ModTime())
		}
	}()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		return retagID3(path, ts)
	case ".flac":
		return retagFLAC(path, ts)
	default:
		return false, fmt.Errorf("%w: %q", ErrUnsupportedContainer, ext)
	}
}

func retagID3(path string, ts TagSet) (bool, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnsupportedContainer, err)
	}
	defer tag.Close()

	tag.SetVersion(4)
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	var changed bool
	fillText := func(id, want string) {
		if want == "" || tag.GetTextFrame(id).Text != "" {
			return
		}
		tag.AddTextFrame(id, id3v2.EncodingUTF8, want)
		changed = true
	}
	fillText("TIT2", ts.Title)
	fillText("TPE1", ts.Artist)
	fillText("TALB", ts.Album)
	fillText("TCON", ts.Genre)
	fillText("TCOP", ts.Created)
	if ts.TrackNum > 0 {
		fillText("TRCK", strconv.Itoa(ts.TrackNum))
	}

	if ts.Lyrics != "" && len(tag.GetFrames(tag.CommonID("Unsynchronised lyrics/text transcription"))) == 0 {
		tag.AddUnsynchronisedLyricsFrame(id3v2.UnsynchronisedLyricsFrame{
			Encoding: id3v2.EncodingUTF8,
			Language: "eng",
			Lyrics:   ts.Lyrics,
		})
		changed = true
	}
	if ts.Comment != "" && len(tag.GetFrames(tag.CommonID("Comments"))) == 0 {
		tag.AddCommentFrame(id3v2.CommentFrame{
			Encoding: id3v2.EncodingUTF8,
			Language: "eng",
			Text:     ts.Comment,
		})
		changed = true
	}
	if ts.ClipID != "" && id3UserText(tag, idFrameDesc) == "" {
		tag.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
			Encoding:    id3v2.EncodingUTF8,
			Description: idFrameDesc,
			Value:       ts.ClipID,
		})
		changed = true
	}

	if !changed {
		return false, nil
	}
	if err := tag.Save(); err != nil {
		return false, fmt.Errorf("save tag: %w", err)
	}
	return true, nil
}

func retagFLAC(path string, ts TagSet) (bool, error) {
	f, err := flac.ParseFile(path)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnsupportedContainer, err)
	}

	cmt := flacvorbis.New()
	cmtIdx := -1
	for i, block := range f.Meta {
		if block.Type != flac.VorbisComment {
			continue
		}
		parsed, err := flacvorbis.ParseFromMetaDataBlock(*block)
		if err != nil {
			return false, fmt.Errorf("parse vorbis comment: %w", err)
		}
		cmt, cmtIdx = parsed, i
		break
	}

	var changed bool
	fill := func(key, want string) {
		if want == "" || vorbisFirst(cmt, key) != "" {
			return
		}
		cmt.Add(key, want)
		changed = true
	}
	fill(flacvorbis.FIELD_TITLE, ts.Title)
	fill(flacvorbis.FIELD_ARTIST, ts.Artist)
	fill(flacvorbis.FIELD_ALBUM, ts.Album)
	fill("GENRE", ts.Genre)
	fill("LYRICS", ts.Lyrics)
	fill("COMMENT", ts.Comment)
	fill("DATE", ts.Created)
	if ts.TrackNum > 0 {
		fill(flacvorbis.FIELD_TRACKNUMBER, strconv.Itoa(ts.TrackNum))
	}
	fill(idFrameDesc, ts.ClipID)

	if !changed {
		return false, nil
	}

	block := cmt.Marshal()
	if cmtIdx >= 0 {
		f.Meta[cmtIdx] = &block
	} else {
		f.Meta = append(f.Meta, &block)
	}
	if err := f.Save(path); err != nil {
		return false, fmt.Errorf("save flac: %w", err)
	}
	return true, nil
}
