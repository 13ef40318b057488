package qoi

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"time"

	"github.com/deepteams/qoi/internal/container"
	"github.com/deepteams/qoi/internal/dispatch"
	"github.com/deepteams/qoi/internal/layout"
	"github.com/deepteams/qoi/internal/merge"
	"github.com/deepteams/qoi/internal/pool"
)

// EncoderOptions controls QOI encoding parameters. The zero value is
// usable and equivalent to DefaultOptions().
type EncoderOptions struct {
	// Channels selects the output channel count for Encode: 3 (RGB),
	// 4 (RGBA) or 0 to pick 4 only when the image has a non-opaque pixel.
	// EncodePixels takes the channel count from its Descriptor instead.
	Channels int

	// Colorspace is written to the header for Encode. EncodePixels takes
	// it from its Descriptor.
	Colorspace Colorspace

	// Framing selects row-parallel (default) or canonical sequential
	// output. Sequential output is a single segment and gains nothing
	// from Workers.
	Framing Framing

	// Workers is the number of goroutines used by the default backend.
	// 0 means GOMAXPROCS. Ignored when Backend is set.
	Workers int

	// Backend runs the per-row encode tasks and the merge copies.
	// nil uses GoroutineBackend(Workers).
	Backend Backend

	// Merge selects how encoded rows are packed into the output.
	Merge MergeStrategy

	// MaxMemory caps the bytes an encode may request for its scratch
	// buffer and output together. 0 means no limit. The scratch buffer is
	// charged before any row is encoded, the output at its actual size
	// once all rows are done. Exceeding the cap at either point fails with
	// ErrAllocation and writes nothing.
	MaxMemory int64

	// Logger receives debug records about the encode. nil uses
	// slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns encoding options with row framing, automatic
// channel selection, sRGB tagging, one worker per CPU and sequential merge.
func DefaultOptions() *EncoderOptions {
	return &EncoderOptions{
		Channels:   0,
		Colorspace: SRGB,
		Framing:    FramingRows,
		Workers:    0,
		Merge:      MergeSequential,
	}
}

// validateConfig returns an error describing the first invalid parameter
// found, or nil if the configuration is valid.
func validateConfig(opts *EncoderOptions) error {
	switch opts.Channels {
	case 0, container.ChannelsRGB, container.ChannelsRGBA:
	default:
		return fmt.Errorf("qoi: invalid Channels %d (must be 0, 3 or 4)", opts.Channels)
	}
	if opts.Colorspace > Linear {
		return fmt.Errorf("qoi: invalid Colorspace %d (must be 0 or 1)", opts.Colorspace)
	}
	switch opts.Framing {
	case FramingRows, FramingSequential:
	default:
		return fmt.Errorf("qoi: invalid Framing %d", int(opts.Framing))
	}
	if opts.Workers < 0 {
		return fmt.Errorf("qoi: invalid Workers %d (must be >= 0)", opts.Workers)
	}
	switch opts.Merge {
	case MergeSequential, MergePrefixSum:
	default:
		return fmt.Errorf("qoi: invalid Merge %d", int(opts.Merge))
	}
	if opts.MaxMemory < 0 {
		return fmt.Errorf("qoi: invalid MaxMemory %d (must be >= 0)", opts.MaxMemory)
	}
	return nil
}

// Encode writes the image img to w in QOI format.
// If opts is nil, DefaultOptions() is used.
// Returns an error if opts contains invalid parameter values.
func Encode(w io.Writer, img image.Image, opts *EncoderOptions) error {
	return EncodeContext(context.Background(), w, img, opts)
}

// EncodeContext is like Encode but stops early when ctx is cancelled.
func EncodeContext(ctx context.Context, w io.Writer, img image.Image, opts *EncoderOptions) error {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := validateConfig(opts); err != nil {
		return err
	}

	channels := opts.Channels
	if channels == 0 {
		channels = container.ChannelsRGB
		if imageHasAlpha(img) {
			channels = container.ChannelsRGBA
		}
	}
	b := img.Bounds()
	desc := Descriptor{
		Width:      b.Dx(),
		Height:     b.Dy(),
		Channels:   channels,
		Colorspace: opts.Colorspace,
	}
	// Reject oversize images before materializing their pixels.
	if _, err := layout.Plan(desc.layout(), opts.Framing); err != nil {
		return err
	}

	out, err := EncodePixels(ctx, imagePixels(img, channels), desc, opts)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// EncodePixels encodes raw row-major samples described by desc and
// returns the complete QOI stream. pix must hold exactly
// desc.Width*desc.Height*desc.Channels bytes and is only read.
//
// opts.Channels and opts.Colorspace are ignored; desc is authoritative.
func EncodePixels(ctx context.Context, pix []byte, desc Descriptor, opts *EncoderOptions) ([]byte, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := validateConfig(opts); err != nil {
		return nil, err
	}
	if desc.Colorspace > Linear {
		return nil, fmt.Errorf("%w: colorspace %d", ErrInvalidDescriptor, desc.Colorspace)
	}
	l, err := layout.Plan(desc.layout(), opts.Framing)
	if err != nil {
		return nil, err
	}

	backend := opts.Backend
	if backend == nil {
		backend = dispatch.Goroutines{Workers: opts.Workers}
	}
	dc := dispatch.NewContext(backend, opts.Logger)
	budget := &pool.Budget{Max: opts.MaxMemory}

	s, err := dc.Submit(ctx, l, pix, budget)
	if err != nil {
		return nil, err
	}
	defer s.Release(budget)

	start := time.Now()
	out, err := merge.Merge(ctx, s, opts.Merge, backend, budget)
	if err != nil {
		return nil, err
	}
	dc.Logger.Debug("qoi: segments merged",
		"encode_id", dc.ID,
		"strategy", opts.Merge,
		"payload_bytes", len(out)-container.HeaderSize-container.EndMarkerSize,
		"output_bytes", len(out),
		"elapsed", time.Since(start),
	)
	return out, nil
}

func (d Descriptor) layout() layout.Descriptor {
	return layout.Descriptor{
		Width:      d.Width,
		Height:     d.Height,
		Channels:   d.Channels,
		Colorspace: uint8(d.Colorspace),
	}
}

// imageHasAlpha reports whether the image has any pixel with alpha < 255.
func imageHasAlpha(img image.Image) bool {
	b := img.Bounds()
	if nrgba, ok := img.(*image.NRGBA); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			off := nrgba.PixOffset(b.Min.X, y) + 3
			for x := 0; x < b.Dx(); x++ {
				if nrgba.Pix[off] != 255 {
					return true
				}
				off += 4
			}
		}
		return false
	}
	if rgba, ok := img.(*image.RGBA); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			off := rgba.PixOffset(b.Min.X, y) + 3
			for x := 0; x < b.Dx(); x++ {
				if rgba.Pix[off] != 255 {
					return true
				}
				off += 4
			}
		}
		return false
	}
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if a != 0xFFFF {
				return true
			}
		}
	}
	return false
}

// imagePixels returns img as tightly packed non-premultiplied samples
// with the given channel count. A 4-channel *image.NRGBA whose rows are
// contiguous is returned without copying. With 3 channels alpha is
// dropped.
func imagePixels(img image.Image, channels int) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if nrgba, ok := img.(*image.NRGBA); ok {
		start := nrgba.PixOffset(b.Min.X, b.Min.Y)
		if channels == container.ChannelsRGBA && nrgba.Stride == w*4 {
			return nrgba.Pix[start : start+w*h*4]
		}
		pix := make([]byte, w*h*channels)
		dst := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			src := nrgba.PixOffset(b.Min.X, y)
			if channels == container.ChannelsRGBA {
				dst += copy(pix[dst:dst+w*4], nrgba.Pix[src:src+w*4])
				continue
			}
			for x := 0; x < w; x++ {
				pix[dst] = nrgba.Pix[src]
				pix[dst+1] = nrgba.Pix[src+1]
				pix[dst+2] = nrgba.Pix[src+2]
				dst += 3
				src += 4
			}
		}
		return pix
	}

	pix := make([]byte, w*h*channels)
	dst := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			pix[dst] = c.R
			pix[dst+1] = c.G
			pix[dst+2] = c.B
			if channels == container.ChannelsRGBA {
				pix[dst+3] = c.A
			}
			dst += channels
		}
	}
	return pix
}
