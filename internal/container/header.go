package container

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrTruncated = errors.New("qoi: truncated data")
	ErrTooLarge  = errors.New("qoi: image too large")
)

// A FormatError reports that the input is not a valid QOI stream.
type FormatError string

func (e FormatError) Error() string {
	return "qoi: invalid format: " + string(e)
}

// Header is the fixed 14-byte QOI header. All multi-byte fields are
// big-endian on the wire.
type Header struct {
	Width      uint32
	Height     uint32
	Channels   uint8
	Colorspace uint8
}

// Pixels returns width*height as a uint64 so it cannot overflow.
func (h Header) Pixels() uint64 {
	return uint64(h.Width) * uint64(h.Height)
}

// Put serializes h into the first HeaderSize bytes of dst. The colorspace
// byte is written verbatim.
func (h Header) Put(dst []byte) {
	_ = dst[HeaderSize-1]
	copy(dst[0:MagicSize], Magic)
	PutBE32(dst[4:8], h.Width)
	PutBE32(dst[8:12], h.Height)
	dst[12] = h.Channels
	dst[13] = h.Colorspace
}

// Validate checks the header fields a decoder depends on.
func (h Header) Validate() error {
	if h.Width == 0 || h.Height == 0 {
		return FormatError(fmt.Sprintf("zero dimension %dx%d", h.Width, h.Height))
	}
	switch h.Channels {
	case ChannelsRGB, ChannelsRGBA:
	default:
		return FormatError(fmt.Sprintf("invalid channel count %d", h.Channels))
	}
	switch h.Colorspace {
	case ColorspaceSRGB, ColorspaceLinear:
	default:
		return FormatError(fmt.Sprintf("invalid colorspace %d", h.Colorspace))
	}
	return nil
}

// ParseHeader validates and parses the QOI header at the start of data.
// Returns the header and the number of bytes consumed.
func ParseHeader(data []byte) (Header, int, error) {
	if len(data) < HeaderSize {
		return Header{}, 0, ErrTruncated
	}
	if string(data[0:MagicSize]) != Magic {
		return Header{}, 0, FormatError("not a QOI file")
	}
	h := Header{
		Width:      ReadBE32(data[4:8]),
		Height:     ReadBE32(data[8:12]),
		Channels:   data[12],
		Colorspace: data[13],
	}
	if err := h.Validate(); err != nil {
		return Header{}, 0, err
	}
	if h.Pixels() > MaxPixels {
		return Header{}, 0, ErrTooLarge
	}
	return h, HeaderSize, nil
}

// HasEndMarker reports whether data ends with the QOI end marker.
func HasEndMarker(data []byte) bool {
	if len(data) < EndMarkerSize {
		return false
	}
	return [EndMarkerSize]byte(data[len(data)-EndMarkerSize:]) == EndMarker
}
