package main

import (
	"bytes"
	"io"
	"runtime"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

func isZstd(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}

// newZstdWriter wraps w in a zstd encoder. level follows
// zstd.EncoderLevel: 1 fastest .. 4 best compression.
func newZstdWriter(w io.Writer, level int) (*zstd.Encoder, error) {
	return zstd.NewWriter(w,
		zstd.WithEncoderConcurrency(runtime.NumCPU()),
		zstd.WithEncoderLevel(zstd.EncoderLevel(level)),
	)
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
