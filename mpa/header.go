package mpa

import (
	"encoding/binary"
	"time"
)

// HeaderSize is the length of an MPEG audio frame header.
const HeaderSize = 4

const syncMask = 0xFFE00000

// Version is the MPEG audio version of a frame.
type Version int

const (
	VersionReserved Version = iota
	MPEG1
	MPEG2
	MPEG25
)

// String returns a string representation of the version.
func (v Version) String() string {
	switch v {
	case MPEG1:
		return "MPEG-1"
	case MPEG2:
		return "MPEG-2"
	case MPEG25:
		return "MPEG-2.5"
	default:
		return "reserved"
	}
}

// versionFromBits maps the two version bits to a Version.
func versionFromBits(bits uint32) Version {
	switch bits {
	case 0b11:
		return MPEG1
	case 0b10:
		return MPEG2
	case 0b00:
		return MPEG25
	default:
		return VersionReserved
	}
}

// Layer is the MPEG audio layer of a frame.
type Layer int

const (
	LayerReserved Layer = iota
	LayerI
	LayerII
	LayerIII
)

// String returns a string representation of the layer.
func (l Layer) String() string {
	switch l {
	case LayerI:
		return "Layer I"
	case LayerII:
		return "Layer II"
	case LayerIII:
		return "Layer III"
	default:
		return "reserved"
	}
}

// layerFromBits maps the two layer bits to a Layer.
func layerFromBits(bits uint32) Layer {
	switch bits {
	case 0b11:
		return LayerI
	case 0b10:
		return LayerII
	case 0b01:
		return LayerIII
	default:
		return LayerReserved
	}
}

// ChannelMode is the two-bit channel mode field.
type ChannelMode uint8

const (
	Stereo ChannelMode = iota
	JointStereo
	DualChannel
	Mono
)

// String returns a string representation of the channel mode.
func (m ChannelMode) String() string {
	switch m {
	case Stereo:
		return "stereo"
	case JointStereo:
		return "joint stereo"
	case DualChannel:
		return "dual channel"
	default:
		return "mono"
	}
}

// samplesPerFrame is indexed by [Version][Layer]. Zero marks reserved codes.
var samplesPerFrame = [4][4]int{
	MPEG1:  {LayerI: 384, LayerII: 1152, LayerIII: 1152},
	MPEG2:  {LayerI: 384, LayerII: 1152, LayerIII: 576},
	MPEG25: {LayerI: 384, LayerII: 1152, LayerIII: 576},
}

// bitratesKbps is indexed by [Version][Layer][bitrate index]. Index 0 (free
// format) and 15 (bad) stay zero and are rejected.
var bitratesKbps = [4][4][16]int{
	MPEG1: {
		LayerI:   {0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, 0},
		LayerII:  {0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, 0},
		LayerIII: {0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0},
	},
	MPEG2: {
		LayerI:   {0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, 0},
		LayerII:  {0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
		LayerIII: {0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
	},
	MPEG25: {
		LayerI:   {0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, 0},
		LayerII:  {0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
		LayerIII: {0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
	},
}

// sampleRatesHz is indexed by [Version][sample rate index].
var sampleRatesHz = [4][4]int{
	MPEG1:  {44100, 48000, 32000, 0},
	MPEG2:  {22050, 24000, 16000, 0},
	MPEG25: {11025, 12000, 8000, 0},
}

// Header is a decoded MPEG audio frame header.
type Header struct {
	Version         Version
	Layer           Layer
	Protected       bool // a 16-bit CRC follows the header
	BitrateIndex    uint8
	SampleRateIndex uint8
	Padding         bool
	Private         bool
	ChannelMode     ChannelMode
	ModeExtension   uint8
	Copyright       bool
	Original        bool
	Emphasis        uint8
}

// ParseHeader decodes the first four bytes of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrInsufficientData
	}
	var raw [HeaderSize]byte
	copy(raw[:], b)
	return DecodeHeader(raw)
}

// DecodeHeader decodes a frame header and resolves it against the lookup
// tables. Reserved or undefined codes fail with ErrUnsupportedHeader.
func DecodeHeader(raw [HeaderSize]byte) (Header, error) {
	v := binary.BigEndian.Uint32(raw[:])
	if v&syncMask != syncMask {
		return Header{}, newFormatError(ErrLostSync, 0, "header 0x%08X", v)
	}

	h := Header{
		Version:         versionFromBits((v >> 19) & 0x3),
		Layer:           layerFromBits((v >> 17) & 0x3),
		Protected:       (v>>16)&0x1 == 0,
		BitrateIndex:    uint8((v >> 12) & 0xF),
		SampleRateIndex: uint8((v >> 10) & 0x3),
		Padding:         (v>>9)&0x1 == 1,
		Private:         (v>>8)&0x1 == 1,
		ChannelMode:     ChannelMode((v >> 6) & 0x3),
		ModeExtension:   uint8((v >> 4) & 0x3),
		Copyright:       (v>>3)&0x1 == 1,
		Original:        (v>>2)&0x1 == 1,
		Emphasis:        uint8(v & 0x3),
	}

	if h.Version == VersionReserved {
		return Header{}, newFormatError(ErrUnsupportedHeader, 0, "reserved version bits in 0x%08X", v)
	}
	if h.Layer == LayerReserved {
		return Header{}, newFormatError(ErrUnsupportedHeader, 0, "reserved layer bits in 0x%08X", v)
	}
	if h.Bitrate() == 0 {
		return Header{}, newFormatError(ErrUnsupportedHeader, 0, "bitrate index %d not supported for %s %s", h.BitrateIndex, h.Version, h.Layer)
	}
	if h.SampleRate() == 0 {
		return Header{}, newFormatError(ErrUnsupportedHeader, 0, "sample rate index %d reserved", h.SampleRateIndex)
	}
	return h, nil
}

// SamplesPerFrame returns the number of PCM samples one frame decodes to.
func (h Header) SamplesPerFrame() int {
	return samplesPerFrame[h.Version][h.Layer]
}

// Bitrate returns the bitrate in bits per second.
func (h Header) Bitrate() int {
	return bitratesKbps[h.Version][h.Layer][h.BitrateIndex&0xF] * 1000
}

// SampleRate returns the sample rate in Hz.
func (h Header) SampleRate() int {
	return sampleRatesHz[h.Version][h.SampleRateIndex&0x3]
}

// FrameLength returns the frame size in bytes, header included.
//
// Layer I uses four-byte slots: (12*bitrate/rate + padding) * 4.
// Layers II and III: samples/8 * bitrate / rate + padding.
func (h Header) FrameLength() int {
	rate := h.SampleRate()
	if rate == 0 {
		return 0
	}
	pad := 0
	if h.Padding {
		pad = 1
	}
	if h.Layer == LayerI {
		return (12*h.Bitrate()/rate + pad) * 4
	}
	return h.SamplesPerFrame()/8*h.Bitrate()/rate + pad
}

// Duration returns the playback duration of one frame.
func (h Header) Duration() time.Duration {
	rate := h.SampleRate()
	if rate == 0 {
		return 0
	}
	return time.Duration(h.SamplesPerFrame()) * time.Second / time.Duration(rate)
}
