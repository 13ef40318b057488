package merge

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/deepteams/qoi/internal/container"
	"github.com/deepteams/qoi/internal/dispatch"
	"github.com/deepteams/qoi/internal/layout"
	"github.com/deepteams/qoi/internal/pool"
)

// fakeScratch builds a scratch arena whose segment i holds i+1 bytes of
// value i, followed by garbage in the unused stride tail.
func fakeScratch(t *testing.T, w, h int) (*layout.Scratch, *pool.Budget) {
	t.Helper()
	l, err := layout.Plan(layout.Descriptor{Width: w, Height: h, Channels: 3, Colorspace: 1}, layout.FramingRows)
	if err != nil {
		t.Fatal(err)
	}
	budget := &pool.Budget{}
	s, err := layout.NewScratch(l, budget)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < h; i++ {
		slot := s.Slot(i)
		for j := range slot {
			slot[j] = 0xee
		}
		n := i%l.Stride + 1
		for j := 0; j < n; j++ {
			slot[j] = byte(i)
		}
		s.Lengths[i] = uint32(n)
	}
	return s, budget
}

func TestMerge_Layout(t *testing.T) {
	s, budget := fakeScratch(t, 4, 3)
	defer s.Release(budget)

	out, err := Merge(context.Background(), s, Sequential, nil, budget)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	want := []byte{'q', 'o', 'i', 'f', 0, 0, 0, 4, 0, 0, 0, 3, 3, 1}
	want = append(want, 0)
	want = append(want, 1, 1)
	want = append(want, 2, 2, 2)
	want = append(want, container.EndMarker[:]...)
	if !bytes.Equal(out, want) {
		t.Fatalf("out = % x\nwant  % x", out, want)
	}
}

func TestMerge_SizeInvariant(t *testing.T) {
	s, budget := fakeScratch(t, 7, 40)
	defer s.Release(budget)

	out, err := Merge(context.Background(), s, Sequential, nil, budget)
	if err != nil {
		t.Fatal(err)
	}
	sum := 0
	for _, n := range s.Lengths {
		sum += int(n)
	}
	if len(out) != container.HeaderSize+sum+container.EndMarkerSize {
		t.Fatalf("len = %d, want %d", len(out), container.HeaderSize+sum+container.EndMarkerSize)
	}
	if bytes.Contains(out, []byte{0xee}) {
		t.Fatal("stride tail leaked into output")
	}
}

func TestMerge_StrategiesAgree(t *testing.T) {
	s, budget := fakeScratch(t, 9, 100)
	defer s.Release(budget)

	want, err := Merge(context.Background(), s, Sequential, nil, budget)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range []dispatch.Backend{nil, dispatch.Serial{}, dispatch.Goroutines{Workers: 4}} {
		got, err := Merge(context.Background(), s, PrefixSum, b, budget)
		if err != nil {
			t.Fatalf("%v: %v", b, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("%v: prefix-sum output differs from sequential", b)
		}
	}
}

func TestOffsets(t *testing.T) {
	got := Offsets([]uint32{3, 1, 4, 1, 5})
	want := []int{14, 17, 18, 22, 23}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Offsets = %v, want %v", got, want)
		}
	}
}

func TestMerge_Budget(t *testing.T) {
	s, budget := fakeScratch(t, 4, 3)
	defer s.Release(budget)
	budget.Max = budget.Used() + 10

	_, err := Merge(context.Background(), s, Sequential, nil, budget)
	if !errors.Is(err, pool.ErrBudget) {
		t.Fatalf("err = %v, want ErrBudget", err)
	}
}

func TestMerge_Cancelled(t *testing.T) {
	s, budget := fakeScratch(t, 4, 3)
	defer s.Release(budget)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Merge(ctx, s, PrefixSum, dispatch.Serial{}, budget)
	if !errors.Is(err, dispatch.ErrDispatch) {
		t.Fatalf("err = %v, want ErrDispatch", err)
	}
}

func TestMerge_UnknownStrategy(t *testing.T) {
	s, budget := fakeScratch(t, 2, 2)
	defer s.Release(budget)
	if _, err := Merge(context.Background(), s, Strategy(7), nil, budget); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}
