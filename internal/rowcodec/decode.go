package rowcodec

import (
	"fmt"

	"github.com/deepteams/qoi/internal/container"
)

// DecodeSegment decodes one segment from src into dst, which must be
// exactly the segment's pixel count times channels bytes long. It returns
// the number of src bytes consumed. Decoding starts from NewState, so the
// caller decides where segment boundaries are.
//
// A run that would extend past the end of dst is a format error: encoded
// segments never carry a run across their boundary.
func DecodeSegment(dst, src []byte, channels int) (int, error) {
	if err := checkInput(len(dst), channels); err != nil {
		return 0, err
	}

	s := NewState()
	px := s.prev
	p := 0

	for off := 0; off < len(dst); {
		if p >= len(src) {
			return p, container.ErrTruncated
		}
		b1 := src[p]
		p++

		switch {
		case b1 == container.OpRGB:
			if p+3 > len(src) {
				return p, container.ErrTruncated
			}
			px.r, px.g, px.b = src[p], src[p+1], src[p+2]
			p += 3
		case b1 == container.OpRGBA:
			if p+4 > len(src) {
				return p, container.ErrTruncated
			}
			px.r, px.g, px.b, px.a = src[p], src[p+1], src[p+2], src[p+3]
			p += 4
		case b1&container.OpMask == container.OpIndex:
			px = s.index[b1]
		case b1&container.OpMask == container.OpDiff:
			px.r += (b1>>4)&0x03 - 2
			px.g += (b1>>2)&0x03 - 2
			px.b += b1&0x03 - 2
		case b1&container.OpMask == container.OpLuma:
			if p >= len(src) {
				return p, container.ErrTruncated
			}
			b2 := src[p]
			p++
			vg := b1&0x3f - 32
			px.r += vg - 8 + (b2>>4)&0x0f
			px.g += vg
			px.b += vg - 8 + b2&0x0f
		case b1&container.OpMask == container.OpRun:
			s.run = int(b1&0x3f) + 1
			if off+s.run*channels > len(dst) {
				return p, container.FormatError(fmt.Sprintf("run of %d crosses segment boundary", s.run))
			}
			for ; s.run > 0; s.run-- {
				off = putPixel(dst, off, px, channels)
			}
			continue
		}

		s.index[px.hash()] = px
		off = putPixel(dst, off, px, channels)
	}

	return p, nil
}

func putPixel(dst []byte, off int, px pixel, channels int) int {
	dst[off] = px.r
	dst[off+1] = px.g
	dst[off+2] = px.b
	if channels == container.ChannelsRGBA {
		dst[off+3] = px.a
	}
	return off + channels
}
