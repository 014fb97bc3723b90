package tagset

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
)

// idFrameDesc is the TXXX description carrying the clip id, used for
// duplicate detection across runs.
const idFrameDesc = "ID"

// ID3 writes ID3v2.4 tags, for MP3 files.
type ID3 struct{}

func (ID3) WriteTags(path string, ts TagSet) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedContainer, err)
	}
	defer tag.Close()

	tag.SetVersion(4)
	tag.DeleteAllFrames()
	populateID3(tag, ts)

	if err := tag.Save(); err != nil {
		return fmt.Errorf("save tag: %w", err)
	}
	return nil
}

func populateID3(tag *id3v2.Tag, ts TagSet) {
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	setText := func(id, value string) {
		if value != "" {
			tag.AddTextFrame(id, id3v2.EncodingUTF8, value)
		}
	}
	setText("TIT2", ts.Title)
	setText("TPE1", ts.Artist)
	setText("TALB", ts.Album)
	setText("TCON", ts.Genre)
	setText("TCOP", ts.Created)
	if ts.TrackNum > 0 {
		setText("TRCK", strconv.Itoa(ts.TrackNum))
	}

	if ts.Lyrics != "" {
		tag.AddUnsynchronisedLyricsFrame(id3v2.UnsynchronisedLyricsFrame{
			Encoding:          id3v2.EncodingUTF8,
			Language:          "eng",
			ContentDescriptor: "",
			Lyrics:            ts.Lyrics,
		})
	}
	if ts.Comment != "" {
		tag.AddCommentFrame(id3v2.CommentFrame{
			Encoding:    id3v2.EncodingUTF8,
			Language:    "eng",
			Description: "",
			Text:        ts.Comment,
		})
	}
	if ts.ClipID != "" {
		tag.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
			Encoding:    id3v2.EncodingUTF8,
			Description: idFrameDesc,
			Value:       ts.ClipID,
		})
	}

	if data, mime, err := readArtwork(ts.ArtworkPath); err == nil {
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    mime,
			PictureType: id3v2.PTFrontCover,
			Description: "Cover",
			Picture:     data,
		})
	}
}

func readArtwork(path string) (data []byte, mime string, err error) {
	if path == "" {
		return nil, "", os.ErrNotExist
	}
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		mime = "image/jpeg"
	default:
		mime = "image/png"
	}
	return data, mime, nil
}

// id3UserText returns the value of the TXXX frame with the given
// description, if present.
func id3UserText(tag *id3v2.Tag, desc string) string {
	for _, f := range tag.GetFrames(tag.CommonID("User defined text information frame")) {
		udt, ok := f.(id3v2.UserDefinedTextFrame)
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(udt.Description), desc) {
			return strings.TrimSpace(udt.Value)
		}
	}
	return ""
}
