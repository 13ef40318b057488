// Package qoi provides a pure Go, row-parallel encoder and a matching
// decoder for the QOI ("Quite OK Image") format.
//
// The canonical QOI encoder is a single sequential pass: the previous
// pixel, the 64-entry color index and the pending run carry across the
// whole image. This package instead resets that state at the start of
// every image row, so rows can be encoded independently on any number of
// goroutines (or any other Backend) and then packed into one stream. The
// price is a little compression at row boundaries.
//
// The package supports:
//   - Row-parallel encoding (FramingRows, the default)
//   - Canonical sequential encoding (FramingSequential)
//   - RGB and RGBA input, sRGB and linear colorspace tags
//   - Sequential or prefix-sum segment merging
//   - Decoding of both framings; image.Decode support for standard QOI
//
// Wire contract for row framing: a decoder must reset the previous pixel
// to opaque black and clear the color index at every row boundary, and a
// run never crosses a row. Streams in row framing are therefore not
// readable by a standard sequential QOI decoder unless the image is a
// single row. Streams in sequential framing are standard QOI.
//
// Basic usage for encoding:
//
//	err := qoi.Encode(writer, img, nil)
//
// Encoding raw samples:
//
//	out, err := qoi.EncodePixels(ctx, pix, qoi.Descriptor{Width: w, Height: h, Channels: 4}, nil)
//
// Basic usage for decoding a standard QOI file:
//
//	img, err := qoi.Decode(reader)
//
// Decoding this package's default row-framed output:
//
//	img, err := qoi.DecodeWithOptions(reader, nil)
package qoi
