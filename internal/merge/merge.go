// Package merge compacts a filled scratch arena into a finished QOI
// stream: header, every segment's valid bytes in segment order, then the
// end marker. The output is sized exactly once from the length table.
package merge

import (
	"context"
	"fmt"

	"github.com/deepteams/qoi/internal/container"
	"github.com/deepteams/qoi/internal/dispatch"
	"github.com/deepteams/qoi/internal/layout"
	"github.com/deepteams/qoi/internal/pool"
)

// Strategy selects how segments are copied into the output.
type Strategy int

const (
	// Sequential copies segments one after another with a running cursor.
	Sequential Strategy = iota
	// PrefixSum computes every segment's output offset first, then copies
	// segments independently over a dispatch backend.
	PrefixSum
)

// String returns a human-readable strategy name.
func (s Strategy) String() string {
	switch s {
	case Sequential:
		return "sequential"
	case PrefixSum:
		return "prefix-sum"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// Merge builds the output stream from s. The output buffer is charged to
// budget and ownership passes to the caller. backend is used only by
// PrefixSum; nil runs the copies serially.
func Merge(ctx context.Context, s *layout.Scratch, strategy Strategy, backend dispatch.Backend, budget *pool.Budget) ([]byte, error) {
	size, err := s.OutputSize()
	if err != nil {
		return nil, err
	}
	out, err := budget.Make(size)
	if err != nil {
		return nil, fmt.Errorf("qoi: output buffer: %w", err)
	}

	s.Layout.Desc.Header().Put(out)
	switch strategy {
	case Sequential:
		copySequential(out, s)
	case PrefixSum:
		if backend == nil {
			backend = dispatch.Serial{}
		}
		if err := copyPrefixSum(ctx, out, s, backend); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("qoi: unknown merge strategy %d", int(strategy))
	}
	copy(out[size-container.EndMarkerSize:], container.EndMarker[:])
	return out, nil
}

func copySequential(out []byte, s *layout.Scratch) {
	p := container.HeaderSize
	for i := range s.Lengths {
		p += copy(out[p:], s.Segment(i))
	}
}

// Offsets returns the output offset of every segment: the header size plus
// the exclusive prefix sum of the segment lengths.
func Offsets(lengths []uint32) []int {
	offsets := make([]int, len(lengths))
	p := container.HeaderSize
	for i, n := range lengths {
		offsets[i] = p
		p += int(n)
	}
	return offsets
}

func copyPrefixSum(ctx context.Context, out []byte, s *layout.Scratch, backend dispatch.Backend) error {
	offsets := Offsets(s.Lengths)
	err := backend.Run(ctx, len(offsets), func(i int) error {
		copy(out[offsets[i]:], s.Segment(i))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: merge: %w", dispatch.ErrDispatch, err)
	}
	return nil
}
