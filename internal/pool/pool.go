// Package pool provides bucketed sync.Pool instances for the encoder's
// scratch arenas and segment length tables, plus a per-encode memory
// budget. Buffers are organized by size class to minimize waste.
package pool

import (
	"errors"
	"fmt"
	"sync"
)

// Size classes for bucketed pools. Scratch arenas are width*height*(c+1)
// bytes, so the classes span a thumbnail up to a large photograph.
const (
	Size16K  = 16384
	Size256K = 262144
	Size4M   = 4194304
	Size32M  = 33554432
	Size128M = 134217728
)

// ErrBudget is returned when an allocation would exceed the encode's
// memory budget.
var ErrBudget = errors.New("qoi: allocation exceeds memory budget")

// bucketIndex returns the pool index for a given size, or -1 for sizes
// above the largest class. Those are allocated directly and never pooled.
func bucketIndex(size int) int {
	switch {
	case size <= Size16K:
		return 0
	case size <= Size256K:
		return 1
	case size <= Size4M:
		return 2
	case size <= Size32M:
		return 3
	case size <= Size128M:
		return 4
	default:
		return -1
	}
}

var sizes = [5]int{Size16K, Size256K, Size4M, Size32M, Size128M}

var pools [5]sync.Pool

var lengthPool sync.Pool

func init() {
	for i := range pools {
		sz := sizes[i]
		pools[i] = sync.Pool{
			New: func() any {
				b := make([]byte, sz)
				return &b
			},
		}
	}
}

// Get returns a byte slice of the requested size from the pool. The
// contents are not zeroed. The caller should call Put when done.
func Get(size int) []byte {
	idx := bucketIndex(size)
	if idx < 0 {
		return make([]byte, size)
	}
	bp := pools[idx].Get().(*[]byte)
	b := *bp
	if cap(b) < size {
		b = make([]byte, size)
		*bp = b
		return b
	}
	return b[:size]
}

// Put returns a byte slice to the pool. Slices whose capacity is not an
// exact size class were not produced by Get and are dropped.
func Put(b []byte) {
	c := cap(b)
	idx := bucketIndex(c)
	if idx < 0 || sizes[idx] != c {
		return
	}
	b = b[:c]
	pools[idx].Put(&b)
}

// GetUint32 returns a zeroed uint32 slice of the requested length.
func GetUint32(length int) []uint32 {
	if v := lengthPool.Get(); v != nil {
		sp := v.(*[]uint32)
		if cap(*sp) >= length {
			s := (*sp)[:length]
			clear(s)
			return s
		}
	}
	return make([]uint32, length)
}

// PutUint32 returns a slice obtained from GetUint32 to the pool.
func PutUint32(s []uint32) {
	if cap(s) == 0 {
		return
	}
	s = s[:cap(s)]
	lengthPool.Put(&s)
}

// Budget tracks the bytes requested by one encode. A Budget with Max <= 0
// is unlimited. It is not safe for concurrent use; allocation happens
// before and after the parallel phase, never during it.
type Budget struct {
	Max  int64
	used int64
}

// Used returns the number of bytes currently reserved.
func (b *Budget) Used() int64 {
	return b.used
}

func (b *Budget) reserve(size int) error {
	if size < 0 {
		return fmt.Errorf("%w: negative size %d", ErrBudget, size)
	}
	if b.Max > 0 && b.used+int64(size) > b.Max {
		return fmt.Errorf("%w: need %d bytes, %d of %d in use", ErrBudget, size, b.used, b.Max)
	}
	b.used += int64(size)
	return nil
}

// Get reserves size bytes and returns a pooled buffer. Release it with Put.
func (b *Budget) Get(size int) ([]byte, error) {
	if err := b.reserve(size); err != nil {
		return nil, err
	}
	return Get(size), nil
}

// Put releases a buffer obtained from Get.
func (b *Budget) Put(buf []byte) {
	b.used -= int64(len(buf))
	Put(buf)
}

// Make reserves size bytes and returns a fresh zeroed buffer that is never
// returned to a pool. Used for memory whose ownership leaves the encoder.
func (b *Budget) Make(size int) ([]byte, error) {
	if err := b.reserve(size); err != nil {
		return nil, err
	}
	return make([]byte, size), nil
}
