package pool

import (
	"errors"
	"sync"
	"testing"
)

func TestGetPut_ExactSize(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"16K", Size16K},
		{"256K", Size256K},
		{"4M", Size4M},
		{"500B", 500},
		{"100K", 100_000},
		{"1x1 rgba", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Get(tt.size)
			if len(b) != tt.size {
				t.Errorf("Get(%d): len = %d, want %d", tt.size, len(b), tt.size)
			}
			Put(b)
		})
	}
}

func TestBucketIndex(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		wantBucket int
	}{
		{"0->bucket0", 0, 0},
		{"16384->bucket0", Size16K, 0},
		{"16385->bucket1", Size16K + 1, 1},
		{"262144->bucket1", Size256K, 1},
		{"262145->bucket2", Size256K + 1, 2},
		{"4M->bucket2", Size4M, 2},
		{"32M->bucket3", Size32M, 3},
		{"128M->bucket4", Size128M, 4},
		{"above->unpooled", Size128M + 1, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if idx := bucketIndex(tt.size); idx != tt.wantBucket {
				t.Errorf("bucketIndex(%d) = %d, want %d", tt.size, idx, tt.wantBucket)
			}
		})
	}
}

func TestGet_MinCapacity(t *testing.T) {
	b := Get(1000)
	if cap(b) < Size16K {
		t.Errorf("Get(1000): cap = %d, want >= %d", cap(b), Size16K)
	}
	Put(b)
}

func TestPut_ForeignSlice(t *testing.T) {
	// Slices not produced by Get are dropped, not pooled.
	Put(make([]byte, 100))
	Put(make([]byte, 0, Size16K+3))
	Put(nil)

	b := Get(Size16K)
	if len(b) != Size16K {
		t.Errorf("Get after foreign Put: len = %d", len(b))
	}
	Put(b)
}

func TestGetUint32_Zeroed(t *testing.T) {
	s := GetUint32(64)
	for i := range s {
		s[i] = uint32(i + 1)
	}
	PutUint32(s)

	s2 := GetUint32(32)
	if len(s2) != 32 {
		t.Fatalf("len = %d, want 32", len(s2))
	}
	for i, v := range s2 {
		if v != 0 {
			t.Fatalf("s2[%d] = %d, want 0", i, v)
		}
	}
	PutUint32(s2)
	PutUint32(nil)
}

func TestBudget_Unlimited(t *testing.T) {
	var b Budget
	buf, err := b.Get(Size256K)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if b.Used() != Size256K {
		t.Errorf("Used = %d, want %d", b.Used(), Size256K)
	}
	b.Put(buf)
	if b.Used() != 0 {
		t.Errorf("Used after Put = %d, want 0", b.Used())
	}
}

func TestBudget_Exceeded(t *testing.T) {
	b := Budget{Max: 1000}
	buf, err := b.Get(600)
	if err != nil {
		t.Fatalf("Get(600): %v", err)
	}
	if _, err := b.Make(500); !errors.Is(err, ErrBudget) {
		t.Fatalf("Make(500) err = %v, want ErrBudget", err)
	}
	b.Put(buf)
	out, err := b.Make(1000)
	if err != nil {
		t.Fatalf("Make(1000) after release: %v", err)
	}
	if len(out) != 1000 {
		t.Errorf("len = %d, want 1000", len(out))
	}
}

func TestConcurrency(t *testing.T) {
	const goroutines = 16
	const iterations = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				for _, size := range []int{128, 20_000, 300_000} {
					b := Get(size)
					if len(b) != size {
						t.Errorf("concurrent Get(%d): len = %d", size, len(b))
						return
					}
					for j := range b {
						b[j] = byte(j)
					}
					Put(b)
				}
			}
		}()
	}
	wg.Wait()
}

func BenchmarkGet(b *testing.B) {
	for _, size := range []int{Size16K, Size4M} {
		b.Run(sizeName(size), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				Put(Get(size))
			}
		})
	}
}

func sizeName(n int) string {
	switch n {
	case Size16K:
		return "16K"
	case Size4M:
		return "4M"
	}
	return "other"
}
