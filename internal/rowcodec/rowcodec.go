// Package rowcodec encodes and decodes self-contained QOI opcode segments.
//
// A segment is the opcode stream for a contiguous run of pixels (one image
// row in the row-parallel layout, the whole image in sequential layout).
// Every segment starts from a fresh codec state: previous pixel opaque
// black, an all-zero color index and no pending run. Segments therefore
// never depend on each other and can be produced in any order.
package rowcodec

import (
	"errors"

	"github.com/deepteams/qoi/internal/container"
)

// Errors returned by the segment codec.
var (
	ErrChannels    = errors.New("qoi: invalid channel count")
	ErrShortBuffer = errors.New("qoi: segment buffer too small")
	ErrPixelSize   = errors.New("qoi: pixel data is not a whole number of pixels")
)

type pixel struct {
	r, g, b, a uint8
}

func (p pixel) hash() uint8 {
	return (p.r*3 + p.g*5 + p.b*7 + p.a*11) % container.IndexSize
}

// State is the per-segment codec state. The zero value is not ready for
// use; call NewState.
type State struct {
	prev  pixel
	index [container.IndexSize]pixel
	run   int
}

// NewState returns the initial codec state every segment starts from.
func NewState() State {
	return State{prev: pixel{a: 255}}
}

// MaxSegmentSize returns the worst-case encoded size of n pixels.
//
// With four channels the widest opcode is OpRGBA (5 bytes). With three
// channels alpha stays at 255, the same as the initial previous pixel, so
// OpRGBA is never chosen and OpRGB (4 bytes) is the widest. Both are
// channels+1 bytes per pixel.
func MaxSegmentSize(n, channels int) int {
	return n * (channels + 1)
}

func checkInput(pixLen, channels int) error {
	if channels != container.ChannelsRGB && channels != container.ChannelsRGBA {
		return ErrChannels
	}
	if pixLen%channels != 0 {
		return ErrPixelSize
	}
	return nil
}
