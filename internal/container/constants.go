// Package container defines constants for the QOI container format,
// including the header layout, end-of-stream marker and opcode tags.
package container

import "encoding/binary"

// Container structure sizes.
const (
	MagicSize     = 4  // Size of the "qoif" magic
	HeaderSize    = 14 // magic + width + height + channels + colorspace
	EndMarkerSize = 8  // Size of the end-of-stream padding marker
)

// Magic is the four byte signature at the start of every QOI stream.
const Magic = "qoif"

// EndMarker terminates every QOI stream.
var EndMarker = [EndMarkerSize]byte{0, 0, 0, 0, 0, 0, 0, 1}

// Channel counts.
const (
	ChannelsRGB  = 3
	ChannelsRGBA = 4
)

// Colorspace tags. They are informative only and never affect coding.
const (
	ColorspaceSRGB   = 0 // sRGB with linear alpha
	ColorspaceLinear = 1 // all channels linear
)

// Opcode tags. The 2-bit tags live in the top two bits of the first byte;
// OpRGB and OpRGBA are full 8-bit tags and take precedence over OpRun.
const (
	OpIndex = 0b0000_0000
	OpDiff  = 0b0100_0000
	OpLuma  = 0b1000_0000
	OpRun   = 0b1100_0000
	OpRGB   = 0b1111_1110
	OpRGBA  = 0b1111_1111

	// OpMask selects the 2-bit tag.
	OpMask = 0b1100_0000
)

// Codec limits.
const (
	IndexSize = 64 // color index table entries
	MaxRun    = 62 // longest run a single OpRun can carry

	// MaxPixels caps width*height when decoding untrusted headers. Same
	// ceiling as the reference QOI library.
	MaxPixels = 400_000_000
)

// ReadBE32 reads a big-endian uint32 from data.
func ReadBE32(data []byte) uint32 {
	return binary.BigEndian.Uint32(data)
}

// PutBE32 writes a big-endian uint32 to data.
func PutBE32(data []byte, v uint32) {
	binary.BigEndian.PutUint32(data, v)
}
