// Package layout plans the scratch arena used by a parallel encode.
//
// The image is split into segments that are coded independently. Each
// segment owns one fixed-stride slot in a flat scratch buffer, sized for
// the segment's worst-case encoded length, and one entry in the segment
// length table. Slot i starts at i*Stride; no per-segment allocation
// happens during the parallel phase.
package layout

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/deepteams/qoi/internal/container"
	"github.com/deepteams/qoi/internal/rowcodec"
)

// Errors returned by the planner.
var (
	ErrInvalidDescriptor = errors.New("qoi: invalid image descriptor")
	ErrSizeOverflow      = errors.New("qoi: image size overflows addressable range")
)

// Framing selects where segment boundaries fall.
type Framing int

const (
	// FramingRows codes every image row as its own segment.
	FramingRows Framing = iota
	// FramingSequential codes the whole image as a single segment, which
	// is a canonical sequential QOI stream.
	FramingSequential
)

// String returns a human-readable framing name.
func (f Framing) String() string {
	switch f {
	case FramingRows:
		return "rows"
	case FramingSequential:
		return "sequential"
	default:
		return fmt.Sprintf("Framing(%d)", int(f))
	}
}

// Descriptor describes the raw pixel buffer being encoded.
type Descriptor struct {
	Width      int
	Height     int
	Channels   int
	Colorspace uint8
}

// PixelBytes returns width*height*channels. Only meaningful for a
// descriptor that Plan accepted.
func (d Descriptor) PixelBytes() int {
	return d.Width * d.Height * d.Channels
}

// Header returns the container header for d.
func (d Descriptor) Header() container.Header {
	return container.Header{
		Width:      uint32(d.Width),
		Height:     uint32(d.Height),
		Channels:   uint8(d.Channels),
		Colorspace: d.Colorspace,
	}
}

// Layout is the addressing scheme shared by the dispatcher and the merge.
type Layout struct {
	Desc    Descriptor
	Framing Framing

	Segments      int // independently coded segments (slots)
	SegmentPixels int // pixels per segment
	Stride        int // bytes reserved per slot
	ScratchSize   int // Segments * Stride
	MaxOutput     int // header + ScratchSize + end marker
}

// Plan validates d and computes the scratch layout for framing f.
func Plan(d Descriptor, f Framing) (Layout, error) {
	if d.Width <= 0 || d.Height <= 0 {
		return Layout{}, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidDescriptor, d.Width, d.Height)
	}
	if d.Channels != container.ChannelsRGB && d.Channels != container.ChannelsRGBA {
		return Layout{}, fmt.Errorf("%w: %d channels", ErrInvalidDescriptor, d.Channels)
	}
	if uint64(d.Width) > math.MaxUint32 || uint64(d.Height) > math.MaxUint32 {
		return Layout{}, fmt.Errorf("%w: %dx%d does not fit the 32-bit header", ErrSizeOverflow, d.Width, d.Height)
	}

	hi, pixels := bits.Mul64(uint64(d.Width), uint64(d.Height))
	if hi != 0 {
		return Layout{}, fmt.Errorf("%w: %dx%d pixels", ErrSizeOverflow, d.Width, d.Height)
	}
	hi, scratch := bits.Mul64(pixels, uint64(d.Channels+1))
	if hi != 0 || scratch > math.MaxInt-container.HeaderSize-container.EndMarkerSize {
		return Layout{}, fmt.Errorf("%w: scratch for %dx%dx%d", ErrSizeOverflow, d.Width, d.Height, d.Channels)
	}

	l := Layout{Desc: d, Framing: f}
	switch f {
	case FramingRows:
		l.Segments = d.Height
		l.SegmentPixels = d.Width
	case FramingSequential:
		l.Segments = 1
		l.SegmentPixels = d.Width * d.Height
	default:
		return Layout{}, fmt.Errorf("%w: unknown framing %d", ErrInvalidDescriptor, int(f))
	}
	l.Stride = rowcodec.MaxSegmentSize(l.SegmentPixels, d.Channels)
	if uint64(l.Stride) > math.MaxUint32 {
		// Segment lengths are recorded as uint32.
		return Layout{}, fmt.Errorf("%w: segment stride %d", ErrSizeOverflow, l.Stride)
	}
	l.ScratchSize = int(scratch)
	l.MaxOutput = container.HeaderSize + l.ScratchSize + container.EndMarkerSize
	return l, nil
}

// PixelRange returns the byte range of segment i within the pixel buffer.
func (l Layout) PixelRange(i int) (start, end int) {
	n := l.SegmentPixels * l.Desc.Channels
	return i * n, (i + 1) * n
}

// SlotRange returns the byte range of slot i within the scratch buffer.
func (l Layout) SlotRange(i int) (start, end int) {
	return i * l.Stride, (i + 1) * l.Stride
}
