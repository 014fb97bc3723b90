package tagset

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bogem/id3v2/v2"
)

// WAV writes tags for RIFF/WAVE files: a LIST INFO chunk so the fields show
// up in file managers, plus an "id3 " chunk carrying the same ID3v2.4 tag
// the MP3 sibling gets.
type WAV struct{}

func (WAV) WriteTags(path string, ts TagSet) error {
	info := riffInfoChunk(ts)
	id3c, err := riffID3Chunk(ts)
	if err != nil {
		return err
	}
	return rewriteWAV(path, info, id3c)
}

// riffInfoChunk builds a LIST INFO chunk with the Windows-friendly subset of
// the tag set.
func riffInfoChunk(ts TagSet) []byte {
	comment := ts.Comment
	if ts.ClipID != "" {
		if comment != "" {
			comment += " | "
		}
		comment += "ID: " + ts.ClipID
	}

	track := ""
	if ts.TrackNum > 0 {
		track = fmt.Sprint(ts.TrackNum)
	}

	var sub bytes.Buffer
	for _, field := range []struct{ id, value string }{
		{"INAM", ts.Title},
		{"IART", ts.Artist},
		{"IPRD", ts.Album},
		{"ITRK", track},
		{"IGNR", ts.Genre},
		{"ICMT", comment},
		{"ICRD", ts.Created},
	} {
		if field.value == "" {
			continue
		}
		data := append([]byte(field.value), 0)
		sub.WriteString(field.id)
		binary.Write(&sub, binary.LittleEndian, uint32(len(data)))
		sub.Write(data)
		if len(data)%2 == 1 {
			sub.WriteByte(0)
		}
	}

	listData := append([]byte("INFO"), sub.Bytes()...)
	var chunk bytes.Buffer
	chunk.WriteString("LIST")
	binary.Write(&chunk, binary.LittleEndian, uint32(len(listData)))
	chunk.Write(listData)
	if len(listData)%2 == 1 {
		chunk.WriteByte(0)
	}
	return chunk.Bytes()
}

// riffID3Chunk serializes the full ID3v2.4 tag into an "id3 " chunk.
func riffID3Chunk(ts TagSet) ([]byte, error) {
	tag := id3v2.NewEmptyTag()
	tag.SetVersion(4)
	populateID3(tag, ts)

	var tagBuf bytes.Buffer
	if _, err := tag.WriteTo(&tagBuf); err != nil {
		return nil, fmt.Errorf("serialize id3: %w", err)
	}

	var chunk bytes.Buffer
	chunk.WriteString("id3 ")
	binary.Write(&chunk, binary.LittleEndian, uint32(tagBuf.Len()))
	chunk.Write(tagBuf.Bytes())
	if tagBuf.Len()%2 == 1 {
		chunk.WriteByte(0)
	}
	return chunk.Bytes(), nil
}

// rewriteWAV copies path chunk by chunk, dropping any existing LIST INFO and
// id3 chunks, appends the replacements, and fixes up the RIFF size. The copy
// goes through a temp file renamed into place on success.
func rewriteWAV(path string, chunks ...[]byte) (err error) {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer src.Close()

	header := make([]byte, 12)
	if _, err := io.ReadFull(src, header); err != nil ||
		string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return fmt.Errorf("%w: not a RIFF/WAVE file", ErrUnsupportedContainer)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".wavtag-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()
	defer tmp.Close()

	if _, err := tmp.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	hdr := make([]byte, 8)
	for {
		if _, rerr := io.ReadFull(src, hdr); rerr != nil {
			break
		}
		id := string(hdr[0:4])
		size := int64(binary.LittleEndian.Uint32(hdr[4:8]))
		padded := size + size%2

		if id == "id3 " || id == "ID3 " {
			if _, err := src.Seek(padded, io.SeekCurrent); err != nil {
				return fmt.Errorf("skip %s chunk: %w", id, err)
			}
			continue
		}
		if id == "LIST" && size >= 4 {
			listType := make([]byte, 4)
			if _, err := io.ReadFull(src, listType); err != nil {
				return fmt.Errorf("read list type: %w", err)
			}
			if string(listType) == "INFO" {
				if _, err := src.Seek(padded-4, io.SeekCurrent); err != nil {
					return fmt.Errorf("skip info chunk: %w", err)
				}
				continue
			}
			if _, err := tmp.Write(hdr); err != nil {
				return err
			}
			if _, err := tmp.Write(listType); err != nil {
				return err
			}
			if _, err := io.CopyN(tmp, src, padded-4); err != nil {
				return fmt.Errorf("copy list chunk: %w", err)
			}
			continue
		}

		if _, err := tmp.Write(hdr); err != nil {
			return err
		}
		if _, err := io.CopyN(tmp, src, padded); err != nil && err != io.EOF {
			return fmt.Errorf("copy %s chunk: %w", id, err)
		}
	}

	for _, chunk := range chunks {
		if _, err := tmp.Write(chunk); err != nil {
			return fmt.Errorf("append chunk: %w", err)
		}
	}

	end, err := tmp.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	var sizeBuf [4]byte
	binary.LittleEndian.PutUint32(sizeBuf[:], uint32(end-8))
	if _, err := tmp.WriteAt(sizeBuf[:], 4); err != nil {
		return fmt.Errorf("fix riff size: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return err
	}
	if err := src.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
