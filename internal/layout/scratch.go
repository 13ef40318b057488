package layout

import (
	"fmt"
	"math"

	"github.com/deepteams/qoi/internal/container"
	"github.com/deepteams/qoi/internal/pool"
)

// Scratch is the arena for one encode: a flat buffer of Segments slots and
// the segment length table. Slot i and Lengths[i] are written only by the
// encoder of segment i.
type Scratch struct {
	Layout  Layout
	Buf     []byte
	Lengths []uint32
}

// NewScratch draws a scratch buffer for l from the pool, charged to budget.
func NewScratch(l Layout, budget *pool.Budget) (*Scratch, error) {
	buf, err := budget.Get(l.ScratchSize)
	if err != nil {
		return nil, fmt.Errorf("qoi: scratch arena: %w", err)
	}
	return &Scratch{
		Layout:  l,
		Buf:     buf,
		Lengths: pool.GetUint32(l.Segments),
	}, nil
}

// Slot returns the full capacity of slot i.
func (s *Scratch) Slot(i int) []byte {
	start, end := s.Layout.SlotRange(i)
	return s.Buf[start:end:end]
}

// Segment returns the valid encoded bytes of slot i.
func (s *Scratch) Segment(i int) []byte {
	start, _ := s.Layout.SlotRange(i)
	return s.Buf[start : start+int(s.Lengths[i])]
}

// PayloadSize returns the sum of all segment lengths.
func (s *Scratch) PayloadSize() (int, error) {
	var total uint64
	for i, n := range s.Lengths {
		if int(n) > s.Layout.Stride {
			return 0, fmt.Errorf("qoi: segment %d length %d exceeds stride %d", i, n, s.Layout.Stride)
		}
		total += uint64(n)
	}
	if total > math.MaxInt-container.HeaderSize-container.EndMarkerSize {
		return 0, ErrSizeOverflow
	}
	return int(total), nil
}

// OutputSize returns header + payload + end marker.
func (s *Scratch) OutputSize() (int, error) {
	n, err := s.PayloadSize()
	if err != nil {
		return 0, err
	}
	return container.HeaderSize + n + container.EndMarkerSize, nil
}

// Release returns the buffers to their pools. s must not be used after.
func (s *Scratch) Release(budget *pool.Budget) {
	budget.Put(s.Buf)
	pool.PutUint32(s.Lengths)
	s.Buf = nil
	s.Lengths = nil
}
