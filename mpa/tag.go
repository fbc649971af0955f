package mpa

import (
	"bytes"
	"fmt"
	"io"

	"github.com/bogem/id3v2/v2"
)

// TagHeaderSize is the fixed length of an ID3v2 tag header.
const TagHeaderSize = 10

var tagMagic = []byte("ID3")

// Tag is an ID3v2 tag stripped from the front of the stream.
type Tag struct {
	MajorVersion byte
	Revision     byte
	Flags        byte
	Size         int // declared body size, header excluded
	Body         []byte
}

// Metadata holds the descriptive text frames of a tag.
type Metadata struct {
	Title  string
	Artist string
	Album  string
	Year   string
}

// synchsafe decodes four 7-bit bytes into a 28-bit integer.
func synchsafe(b []byte) int {
	return int(b[0]&0x7F)<<21 |
		int(b[1]&0x7F)<<14 |
		int(b[2]&0x7F)<<7 |
		int(b[3]&0x7F)
}

// encodeSynchsafe is the inverse of synchsafe.
func encodeSynchsafe(n int) [4]byte {
	return [4]byte{
		byte(n>>21) & 0x7F,
		byte(n>>14) & 0x7F,
		byte(n>>7) & 0x7F,
		byte(n) & 0x7F,
	}
}

// Header rebuilds the 10-byte tag header.
func (t *Tag) Header() []byte {
	size := encodeSynchsafe(t.Size)
	return []byte{'I', 'D', '3', t.MajorVersion, t.Revision, t.Flags, size[0], size[1], size[2], size[3]}
}

// Metadata parses the tag's text frames. Only ID3v2.3 and ID3v2.4 tags carry
// frames the parser understands.
func (t *Tag) Metadata() (Metadata, error) {
	r := io.MultiReader(bytes.NewReader(t.Header()), bytes.NewReader(t.Body))
	tag, err := id3v2.ParseReader(r, id3v2.Options{
		Parse:       true,
		ParseFrames: []string{"Title", "Artist", "Album", "Year"},
	})
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to parse ID3v2.%d tag: %w", t.MajorVersion, err)
	}
	return Metadata{
		Title:  tag.Title(),
		Artist: tag.Artist(),
		Album:  tag.Album(),
		Year:   tag.Year(),
	}, nil
}
