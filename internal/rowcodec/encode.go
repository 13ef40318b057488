package rowcodec

import "github.com/deepteams/qoi/internal/container"

// EncodeSegment encodes pix (row-major samples, channels bytes per pixel)
// into dst and returns the number of bytes written. dst must hold at least
// MaxSegmentSize(len(pix)/channels, channels) bytes; EncodeSegment never
// writes past that bound and never reads outside pix.
//
// Opcode selection per pixel, in priority order: run extension, rgba when
// alpha changed, index hit, diff, luma, rgb. Runs are flushed at MaxRun and at the end of pix.
func EncodeSegment(dst, pix []byte, channels int) (int, error) {
	if err := checkInput(len(pix), channels); err != nil {
		return 0, err
	}
	if len(dst) < MaxSegmentSize(len(pix)/channels, channels) {
		return 0, ErrShortBuffer
	}

	s := NewState()
	p := 0
	px := pixel{a: 255}
	last := len(pix) - channels

	for off := 0; off <= last; off += channels {
		px.r = pix[off]
		px.g = pix[off+1]
		px.b = pix[off+2]
		if channels == container.ChannelsRGBA {
			px.a = pix[off+3]
		}

		if px == s.prev {
			s.run++
			if s.run == container.MaxRun || off == last {
				dst[p] = container.OpRun | byte(s.run-1)
				p++
				s.run = 0
			}
			continue
		}

		if s.run > 0 {
			dst[p] = container.OpRun | byte(s.run-1)
			p++
			s.run = 0
		}

		// An alpha change always emits RGBA, even on an index hit.
		h := px.hash()
		if px.a != s.prev.a {
			s.index[h] = px
			dst[p] = container.OpRGBA
			dst[p+1] = px.r
			dst[p+2] = px.g
			dst[p+3] = px.b
			dst[p+4] = px.a
			p += 5
			s.prev = px
			continue
		}
		if s.index[h] == px {
			dst[p] = container.OpIndex | h
			p++
			s.prev = px
			continue
		}
		s.index[h] = px

		// Channel deltas wrap modulo 256.
		vr := int(int8(px.r - s.prev.r))
		vg := int(int8(px.g - s.prev.g))
		vb := int(int8(px.b - s.prev.b))
		vgr := vr - vg
		vgb := vb - vg

		switch {
		case vr >= -2 && vr <= 1 && vg >= -2 && vg <= 1 && vb >= -2 && vb <= 1:
			dst[p] = container.OpDiff | byte(vr+2)<<4 | byte(vg+2)<<2 | byte(vb+2)
			p++
		case vg >= -32 && vg <= 31 && vgr >= -8 && vgr <= 7 && vgb >= -8 && vgb <= 7:
			dst[p] = container.OpLuma | byte(vg+32)
			dst[p+1] = byte(vgr+8)<<4 | byte(vgb+8)
			p += 2
		default:
			dst[p] = container.OpRGB
			dst[p+1] = px.r
			dst[p+2] = px.g
			dst[p+3] = px.b
			p += 4
		}
		s.prev = px
	}

	return p, nil
}
