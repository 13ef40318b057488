package qoi

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/deepteams/qoi/internal/container"
	"github.com/deepteams/qoi/internal/dispatch"
	"github.com/deepteams/qoi/internal/layout"
	"github.com/deepteams/qoi/internal/merge"
	"github.com/deepteams/qoi/internal/pool"
	"github.com/deepteams/qoi/internal/rowcodec"
)

func init() {
	image.RegisterFormat("qoi", container.Magic, Decode, DecodeConfig)
}

// Errors returned by the encoder and decoder.
var (
	ErrInvalidDescriptor = layout.ErrInvalidDescriptor
	ErrSizeOverflow      = layout.ErrSizeOverflow
	ErrDispatch          = dispatch.ErrDispatch
	ErrAllocation        = pool.ErrBudget
	ErrTruncated         = container.ErrTruncated
	ErrTooLarge          = container.ErrTooLarge
)

// A FormatError reports that the input is not a valid QOI stream.
type FormatError = container.FormatError

// Colorspace is the informative colorspace tag stored in the header.
type Colorspace uint8

const (
	SRGB   Colorspace = container.ColorspaceSRGB   // sRGB with linear alpha
	Linear Colorspace = container.ColorspaceLinear // all channels linear
)

// String returns a human-readable colorspace name.
func (c Colorspace) String() string {
	switch c {
	case SRGB:
		return "srgb"
	case Linear:
		return "linear"
	default:
		return fmt.Sprintf("Colorspace(%d)", uint8(c))
	}
}

// Framing selects where the codec state is reset.
type Framing = layout.Framing

const (
	FramingRows       = layout.FramingRows
	FramingSequential = layout.FramingSequential
)

// MergeStrategy selects how encoded rows are packed into the output.
type MergeStrategy = merge.Strategy

const (
	MergeSequential = merge.Sequential
	MergePrefixSum  = merge.PrefixSum
)

// Backend runs n independent tasks and returns after all of them finished.
// Implementations must call task exactly once for every index in [0, n)
// unless ctx is cancelled or a task fails, and must not return early.
type Backend = dispatch.Backend

// GoroutineBackend returns a Backend running tasks on workers goroutines.
// workers <= 0 uses GOMAXPROCS.
func GoroutineBackend(workers int) Backend {
	return dispatch.Goroutines{Workers: workers}
}

// SerialBackend returns a Backend running tasks one by one on the caller's
// goroutine.
func SerialBackend() Backend {
	return dispatch.Serial{}
}

// Descriptor describes a raw pixel buffer: Width*Height pixels, row-major,
// Channels bytes per pixel (3 = RGB, 4 = RGBA), no padding between rows.
type Descriptor struct {
	Width      int
	Height     int
	Channels   int
	Colorspace Colorspace
}

// Features describes a QOI stream's header.
type Features struct {
	Width      int
	Height     int
	Channels   int
	Colorspace Colorspace
	HasAlpha   bool
}

// DecoderOptions controls decoding.
type DecoderOptions struct {
	// Framing must match the framing the stream was encoded with.
	// The zero value is FramingRows, the encoder's default; nil options
	// decode the same way. Standard QOI files need FramingSequential.
	Framing Framing
}

// readAll reads all data from r. If r implements Len() int (e.g.
// *bytes.Reader), a single exact-sized allocation is used instead of
// the repeated doublings that io.ReadAll performs.
func readAll(r io.Reader) ([]byte, error) {
	if lr, ok := r.(interface{ Len() int }); ok {
		n := lr.Len()
		if n > 0 {
			data := make([]byte, n)
			_, err := io.ReadFull(r, data)
			return data, err
		}
	}
	return io.ReadAll(r)
}

func readHeader(r io.Reader) (container.Header, error) {
	var buf [container.HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return container.Header{}, ErrTruncated
		}
		return container.Header{}, fmt.Errorf("qoi: reading header: %w", err)
	}
	h, _, err := container.ParseHeader(buf[:])
	return h, err
}

// Decode reads a standard QOI image from r and returns it as an
// *image.NRGBA. It is the decoder registered with the image package.
//
// Streams written with FramingRows (the encoder default) restart the
// codec state on every row and must be read with DecodeWithOptions.
func Decode(r io.Reader) (image.Image, error) {
	return DecodeWithOptions(r, &DecoderOptions{Framing: FramingSequential})
}

// DecodeWithOptions reads a QOI image from r using the given framing.
// nil opts selects FramingRows.
func DecodeWithOptions(r io.Reader, opts *DecoderOptions) (image.Image, error) {
	pix, desc, err := DecodePixels(r, opts)
	if err != nil {
		return nil, err
	}
	img := image.NewNRGBA(image.Rect(0, 0, desc.Width, desc.Height))
	if desc.Channels == container.ChannelsRGBA {
		copy(img.Pix, pix)
		return img, nil
	}
	for i, j := 0, 0; i < len(pix); i, j = i+3, j+4 {
		img.Pix[j] = pix[i]
		img.Pix[j+1] = pix[i+1]
		img.Pix[j+2] = pix[i+2]
		img.Pix[j+3] = 0xff
	}
	return img, nil
}

// DecodeConfig returns the color model and dimensions of a QOI image
// without decoding the entire image. The color model is always
// color.NRGBAModel.
func DecodeConfig(r io.Reader) (image.Config, error) {
	h, err := readHeader(r)
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{
		ColorModel: color.NRGBAModel,
		Width:      int(h.Width),
		Height:     int(h.Height),
	}, nil
}

// GetFeatures reads the QOI header without decoding pixel data.
func GetFeatures(r io.Reader) (*Features, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	return &Features{
		Width:      int(h.Width),
		Height:     int(h.Height),
		Channels:   int(h.Channels),
		Colorspace: Colorspace(h.Colorspace),
		HasAlpha:   h.Channels == container.ChannelsRGBA,
	}, nil
}

// DecodePixels decodes a QOI stream into raw row-major samples with the
// stream's own channel count.
func DecodePixels(r io.Reader, opts *DecoderOptions) ([]byte, Descriptor, error) {
	if opts == nil {
		opts = &DecoderOptions{}
	}
	data, err := readAll(r)
	if err != nil {
		return nil, Descriptor{}, fmt.Errorf("qoi: reading data: %w", err)
	}
	return decodeBytes(data, opts.Framing)
}

// decodeBytes decodes a complete QOI stream from a byte slice.
func decodeBytes(data []byte, framing Framing) ([]byte, Descriptor, error) {
	h, n, err := container.ParseHeader(data)
	if err != nil {
		return nil, Descriptor{}, err
	}
	desc := Descriptor{
		Width:      int(h.Width),
		Height:     int(h.Height),
		Channels:   int(h.Channels),
		Colorspace: Colorspace(h.Colorspace),
	}
	if len(data) < n+container.EndMarkerSize {
		return nil, desc, ErrTruncated
	}
	if !container.HasEndMarker(data) {
		return nil, desc, FormatError("missing end marker")
	}
	body := data[n : len(data)-container.EndMarkerSize]
	// A single opcode covers at most MaxRun pixels.
	if uint64(len(body))*container.MaxRun < uint64(desc.Width)*uint64(desc.Height) {
		return nil, desc, ErrTruncated
	}

	var segments int
	switch framing {
	case FramingRows:
		segments = desc.Height
	case FramingSequential:
		segments = 1
	default:
		return nil, desc, fmt.Errorf("qoi: unknown framing %d", int(framing))
	}

	pix := make([]byte, desc.Width*desc.Height*desc.Channels)
	segBytes := len(pix) / segments
	p := 0
	for i := 0; i < segments; i++ {
		consumed, err := rowcodec.DecodeSegment(pix[i*segBytes:(i+1)*segBytes], body[p:], desc.Channels)
		if err != nil {
			return nil, desc, fmt.Errorf("qoi: segment %d: %w", i, err)
		}
		p += consumed
	}
	if p != len(body) {
		return nil, desc, FormatError(fmt.Sprintf("%d unused bytes before end marker", len(body)-p))
	}
	return pix, desc, nil
}
