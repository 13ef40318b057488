package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/deepteams/qoi/internal/layout"
	"github.com/deepteams/qoi/internal/pool"
	"github.com/deepteams/qoi/internal/rowcodec"
)

// Context is the compute context for a single encode. It is created per
// encode call and carries the backend, the logger and an encode ID that
// tags every log record of that encode.
type Context struct {
	ID      uuid.UUID
	Backend Backend
	Logger  *slog.Logger
}

// NewContext returns a Context with a fresh random ID. A nil backend
// selects Goroutines with GOMAXPROCS workers; a nil logger uses
// slog.Default.
func NewContext(backend Backend, logger *slog.Logger) *Context {
	if backend == nil {
		backend = Goroutines{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		ID:      uuid.New(),
		Backend: backend,
		Logger:  logger,
	}
}

// Submit encodes every segment of pix into a new scratch arena and returns
// it once all segments are done. On error no scratch is returned and the
// arena has already been released to budget.
func (c *Context) Submit(ctx context.Context, l layout.Layout, pix []byte, budget *pool.Budget) (*layout.Scratch, error) {
	if len(pix) != l.Desc.PixelBytes() {
		return nil, fmt.Errorf("%w: pixel buffer is %d bytes, want %d",
			layout.ErrInvalidDescriptor, len(pix), l.Desc.PixelBytes())
	}

	s, err := layout.NewScratch(l, budget)
	if err != nil {
		return nil, err
	}

	c.Logger.Debug("qoi: dispatching segments",
		"encode_id", c.ID,
		"backend", c.Backend,
		"workers", parallelism(c.Backend, l.Segments),
		"framing", l.Framing,
		"segments", l.Segments,
		"stride", l.Stride,
		"scratch_bytes", l.ScratchSize,
	)

	start := time.Now()
	channels := l.Desc.Channels
	err = c.Backend.Run(ctx, l.Segments, func(i int) error {
		ps, pe := l.PixelRange(i)
		n, err := rowcodec.EncodeSegment(s.Slot(i), pix[ps:pe], channels)
		if err != nil {
			return err
		}
		s.Lengths[i] = uint32(n)
		return nil
	})
	if err == nil {
		// Every segment has at least one pixel and so at least one byte.
		for i, n := range s.Lengths {
			if n == 0 {
				err = fmt.Errorf("qoi: segment %d did not complete", i)
				break
			}
		}
	}
	if err != nil {
		s.Release(budget)
		c.Logger.Debug("qoi: dispatch failed", "encode_id", c.ID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrDispatch, err)
	}

	c.Logger.Debug("qoi: segments encoded",
		"encode_id", c.ID,
		"elapsed", time.Since(start),
	)
	return s, nil
}
