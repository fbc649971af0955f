package mpa

import (
	"bytes"
	"time"

	"github.com/opd-ai/rtsppush/limits"
	"github.com/sirupsen/logrus"
)

// Frame is one MPEG audio frame, header included.
type Frame struct {
	Header   Header
	Data     []byte
	Duration time.Duration
	Offset   uint64 // stream offset of the first header byte
}

// Extractor splits an append-only byte stream into an optional ID3v2 tag
// followed by MPEG audio frames.
type Extractor struct {
	buf      ingestBuffer
	consumed uint64
	tagDone  bool
	frames   uint64
}

// NewExtractor creates an extractor with an empty buffer.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Ingest appends p to the buffer. Empty input leaves the extractor untouched.
func (e *Extractor) Ingest(p []byte) {
	e.buf.Append(p)
}

// Buffered returns the number of bytes waiting to be extracted.
func (e *Extractor) Buffered() int {
	return e.buf.Len()
}

// Consumed returns the number of bytes removed from the front so far.
func (e *Extractor) Consumed() uint64 {
	return e.consumed
}

// FramesExtracted returns the number of frames returned by NextFrame.
func (e *Extractor) FramesExtracted() uint64 {
	return e.frames
}

// HasTag reports whether the buffer begins with an ID3v2 tag. It returns
// ErrInsufficientData while the buffered bytes are still a prefix of "ID3".
func (e *Extractor) HasTag() (bool, error) {
	head := e.buf.Peek(len(tagMagic))
	if len(head) < len(tagMagic) {
		if bytes.HasPrefix(tagMagic, head) {
			return false, ErrInsufficientData
		}
		return false, nil
	}
	return bytes.Equal(head, tagMagic), nil
}

// ExtractTag consumes the ID3v2 tag at the front of the buffer and returns
// it. Nothing is consumed until the whole tag is buffered.
func (e *Extractor) ExtractTag() (*Tag, error) {
	if e.tagDone || e.frames > 0 {
		return nil, ErrTagOrder
	}

	head := e.buf.Peek(TagHeaderSize)
	n := len(head)
	if n > len(tagMagic) {
		n = len(tagMagic)
	}
	if !bytes.Equal(head[:n], tagMagic[:n]) {
		logrus.WithFields(logrus.Fields{
			"function": "Extractor.ExtractTag",
			"offset":   e.consumed,
		}).Error("Stream does not begin with an ID3v2 tag")
		return nil, newFormatError(ErrUnsupportedTag, e.consumed, "missing ID3 magic")
	}
	if len(head) < TagHeaderSize {
		return nil, ErrInsufficientData
	}

	size := synchsafe(head[6:10])
	if size > limits.MaxTagSize {
		return nil, newFormatError(ErrUnsupportedTag, e.consumed, "tag size %d out of range", size)
	}
	if e.buf.Len() < TagHeaderSize+size {
		logrus.WithFields(logrus.Fields{
			"function": "Extractor.ExtractTag",
			"tag_size": size,
			"buffered": e.buf.Len(),
		}).Debug("Tag not fully buffered")
		return nil, ErrInsufficientData
	}

	tag := &Tag{
		MajorVersion: head[3],
		Revision:     head[4],
		Flags:        head[5],
		Size:         size,
	}
	e.buf.Discard(TagHeaderSize)
	tag.Body = e.buf.Next(size)
	e.consumed += uint64(TagHeaderSize + size)
	e.tagDone = true

	logrus.WithFields(logrus.Fields{
		"function": "Extractor.ExtractTag",
		"version":  tag.MajorVersion,
		"revision": tag.Revision,
		"flags":    tag.Flags,
		"tag_size": size,
	}).Info("Extracted ID3v2 tag")

	return tag, nil
}

// NextFrame consumes and returns the frame at the front of the buffer.
//
// ErrNoFrame is returned for an empty buffer and ErrInsufficientData while a
// header or frame is only partially buffered; in both cases the buffer is not
// modified. Malformed headers fail with a *FormatError.
func (e *Extractor) NextFrame() (Frame, error) {
	if e.buf.Len() == 0 {
		return Frame{}, ErrNoFrame
	}
	if e.buf.Len() < HeaderSize {
		return Frame{}, ErrInsufficientData
	}

	var raw [HeaderSize]byte
	copy(raw[:], e.buf.Peek(HeaderSize))
	h, err := DecodeHeader(raw)
	if err != nil {
		if fe, ok := err.(*FormatError); ok {
			fe.Offset = e.consumed
		}
		logrus.WithFields(logrus.Fields{
			"function": "Extractor.NextFrame",
			"offset":   e.consumed,
			"header":   raw,
			"error":    err.Error(),
		}).Error("Failed to decode frame header")
		return Frame{}, err
	}

	length := h.FrameLength()
	if length < HeaderSize {
		return Frame{}, newFormatError(ErrInvalidFrameLength, e.consumed, "computed length %d for %s %s", length, h.Version, h.Layer)
	}
	if e.buf.Len() < length {
		logrus.WithFields(logrus.Fields{
			"function":     "Extractor.NextFrame",
			"frame_length": length,
			"buffered":     e.buf.Len(),
		}).Debug("Frame not fully buffered")
		return Frame{}, ErrInsufficientData
	}

	frame := Frame{
		Header:   h,
		Data:     e.buf.Next(length),
		Duration: h.Duration(),
		Offset:   e.consumed,
	}
	e.consumed += uint64(length)
	e.frames++

	logrus.WithFields(logrus.Fields{
		"function":     "Extractor.NextFrame",
		"offset":       frame.Offset,
		"frame_length": length,
		"duration":     frame.Duration.String(),
		"version":      h.Version.String(),
		"layer":        h.Layer.String(),
		"bitrate":      h.Bitrate(),
		"sample_rate":  h.SampleRate(),
	}).Debug("Extracted audio frame")

	return frame, nil
}

// Resync discards bytes up to the next position holding a decodable frame
// header and returns the number of bytes discarded. Up to three trailing
// bytes that could start a header are kept.
func (e *Extractor) Resync() int {
	data := e.buf.Peek(e.buf.Len())
	skip := len(data)
	for i := 0; i < len(data); i++ {
		if data[i] != 0xFF {
			continue
		}
		if len(data)-i < HeaderSize {
			skip = i
			break
		}
		var raw [HeaderSize]byte
		copy(raw[:], data[i:])
		if _, err := DecodeHeader(raw); err == nil {
			skip = i
			break
		}
	}

	if skip > 0 {
		e.buf.Discard(skip)
		e.consumed += uint64(skip)
		logrus.WithFields(logrus.Fields{
			"function":  "Extractor.Resync",
			"discarded": skip,
			"offset":    e.consumed,
		}).Warn("Discarded bytes while searching for frame sync")
	}
	return skip
}
