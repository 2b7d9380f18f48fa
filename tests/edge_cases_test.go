package palloc_test

import (
	"sync"
	"testing"
	"unsafe"

	alloc "github.com/aaslam12/palloc"
)

// TestArenaEdgeCases covers boundary behavior for the bump allocator that
// isn't exercised by the package's own unit tests.
func TestArenaEdgeCases(t *testing.T) {
	t.Run("ZeroAndNegativeSizes", func(t *testing.T) {
		for _, bytes := range []int{0, -1, -1000} {
			a, err := alloc.NewArena(bytes)
			if err != nil {
				t.Fatalf("NewArena(%d) error = %v", bytes, err)
			}
			if a.Capacity() <= 0 {
				t.Errorf("NewArena(%d) capacity = %d, want > 0", bytes, a.Capacity())
			}
			a.Close()
		}
	})

	t.Run("AllocLargerThanRemainingCapacity", func(t *testing.T) {
		a, err := alloc.NewArena(1024)
		if err != nil {
			t.Fatal(err)
		}
		defer a.Close()

		if b := a.Alloc(a.Capacity() + 1); b != nil {
			t.Errorf("Alloc(capacity+1) = %v, want nil", b)
		}

		// Capacity is still fully available since the failed alloc must not
		// have partially consumed it.
		if b := a.Alloc(a.Capacity()); len(b) != a.Capacity() {
			t.Errorf("Alloc(capacity) after a failed oversized alloc length = %d, want %d", len(b), a.Capacity())
		}
	})

	t.Run("RepeatedResetReuse", func(t *testing.T) {
		a, err := alloc.NewArena(4096)
		if err != nil {
			t.Fatal(err)
		}
		defer a.Close()

		for round := 0; round < 5; round++ {
			b := a.Alloc(a.Capacity())
			if len(b) != a.Capacity() {
				t.Fatalf("round %d: Alloc(capacity) length = %d, want %d", round, len(b), a.Capacity())
			}
			if a.Alloc(1) != nil {
				t.Fatalf("round %d: expected exhaustion after filling capacity", round)
			}
			a.Reset()
		}
	})
}

// TestPoolEdgeCases covers block-size rounding and free-list integrity.
func TestPoolEdgeCases(t *testing.T) {
	t.Run("BlockSizeRoundsUpToPowerOfTwo", func(t *testing.T) {
		cases := []struct {
			requested int
			want      int
		}{
			{1, 8}, // floored to pointer size, then rounded
			{8, 8},
			{9, 16},
			{100, 128},
			{4096, 4096},
		}
		for _, tc := range cases {
			p, err := alloc.NewPool(tc.requested, 4)
			if err != nil {
				t.Fatal(err)
			}
			if p.BlockSize() != tc.want {
				t.Errorf("NewPool(%d, _).BlockSize() = %d, want %d", tc.requested, p.BlockSize(), tc.want)
			}
			p.Close()
		}
	})

	t.Run("ExhaustionReturnsNilNotPanic", func(t *testing.T) {
		p, err := alloc.NewPool(32, 2)
		if err != nil {
			t.Fatal(err)
		}
		defer p.Close()

		a1 := p.Alloc()
		a2 := p.Alloc()
		if a1 == nil || a2 == nil {
			t.Fatal("expected both allocations to succeed")
		}
		if a3 := p.Alloc(); a3 != nil {
			t.Errorf("Alloc() on exhausted pool = %v, want nil", a3)
		}
	})

	t.Run("FreeThenAllocReturnsSameBlock", func(t *testing.T) {
		p, err := alloc.NewPool(32, 2)
		if err != nil {
			t.Fatal(err)
		}
		defer p.Close()

		a1 := p.Alloc()
		p.Free(a1)
		a2 := p.Alloc()
		if &a1[0] != &a2[0] {
			t.Error("expected freeing the only in-flight block to make it the very next alloc")
		}
	})

	t.Run("ResetRestoresFullCapacity", func(t *testing.T) {
		p, err := alloc.NewPool(64, 8)
		if err != nil {
			t.Fatal(err)
		}
		defer p.Close()

		for i := 0; i < 8; i++ {
			p.Alloc()
		}
		if p.FreeSpace() != 0 {
			t.Fatalf("FreeSpace after exhausting = %d, want 0", p.FreeSpace())
		}

		p.Reset()
		if p.FreeSpace() != 8*64 {
			t.Errorf("FreeSpace after Reset = %d, want %d", p.FreeSpace(), 8*64)
		}
	})
}

// TestSlabEdgeCases covers size-class routing and the magazine cache's
// interaction with Reset.
func TestSlabEdgeCases(t *testing.T) {
	t.Run("SizeBeyondTopClassIsRejected", func(t *testing.T) {
		s, err := alloc.NewSlab(1)
		if err != nil {
			t.Fatal(err)
		}
		defer s.Close()

		if b := s.Alloc(4097); b != nil {
			t.Errorf("Alloc(4097) = %v, want nil", b)
		}
	})

	t.Run("ScaleMultipliesBaseBlockCounts", func(t *testing.T) {
		s1, err := alloc.NewSlab(1)
		if err != nil {
			t.Fatal(err)
		}
		defer s1.Close()

		s2, err := alloc.NewSlab(2)
		if err != nil {
			t.Fatal(err)
		}
		defer s2.Close()

		if s2.PoolBlockSize(0) != s1.PoolBlockSize(0) {
			t.Fatal("scale must not change the block size, only the block count")
		}
		if s2.PoolFreeSpace(0) != 2*s1.PoolFreeSpace(0) {
			t.Errorf("scale=2 class 0 free space = %d, want %d", s2.PoolFreeSpace(0), 2*s1.PoolFreeSpace(0))
		}
	})

	t.Run("NonPositiveScaleDefaultsToOne", func(t *testing.T) {
		s1, err := alloc.NewSlab(1)
		if err != nil {
			t.Fatal(err)
		}
		defer s1.Close()

		s0, err := alloc.NewSlab(0)
		if err != nil {
			t.Fatal(err)
		}
		defer s0.Close()

		if s0.TotalCapacity() != s1.TotalCapacity() {
			t.Error("scale <= 0 should behave like scale == 1")
		}
	})

	t.Run("ResetInvalidatesCachedMagazinesWithoutDoubleFree", func(t *testing.T) {
		s, err := alloc.NewSlab(1)
		if err != nil {
			t.Fatal(err)
		}
		defer s.Close()

		// Populate this goroutine's magazine for the smallest class, then
		// reset the whole slab. The magazine's cached blocks belong to a
		// pool generation that no longer exists; the next touch must drop
		// them rather than hand them out or free them again.
		blocks := make([][]byte, 8)
		for i := range blocks {
			blocks[i] = s.Alloc(8)
		}
		for _, b := range blocks {
			s.Free(b, 8)
		}

		s.Reset()

		b := s.Alloc(8)
		if b == nil {
			t.Fatal("expected alloc to succeed against the freshly reset pool")
		}
	})

	t.Run("MagazineEvictionUnderManySlabs", func(t *testing.T) {
		// This goroutine touches more than maxCachedSlabs distinct Slabs in
		// a row, which forces the cache registry to evict an entry. The
		// evicted entry's magazine must be flushed back to its own Slab,
		// not leaked or handed to the wrong one.
		var slabs []*alloc.Slab
		for i := 0; i < 6; i++ {
			s, err := alloc.NewSlab(1)
			if err != nil {
				t.Fatal(err)
			}
			slabs = append(slabs, s)
		}
		defer func() {
			for _, s := range slabs {
				s.Close()
			}
		}()

		for _, s := range slabs {
			b := s.Alloc(8)
			if b == nil {
				t.Fatal("expected alloc to succeed")
			}
			s.Free(b, 8)
		}
	})
}

// TestConcurrentPoolExhaustion drives many goroutines against a small pool
// to confirm the total number of successful allocations never exceeds the
// pool's block count, and no two succeed for the same block.
func TestConcurrentPoolExhaustion(t *testing.T) {
	const blockCount = 100
	p, err := alloc.NewPool(64, blockCount)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	const workers = 32
	results := make(chan []byte, workers*4)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				b := p.Alloc()
				if b == nil {
					return
				}
				results <- b
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[uintptr]bool)
	count := 0
	for b := range results {
		count++
		addr := addrOf(b)
		if seen[addr] {
			t.Fatalf("block at %x handed out twice", addr)
		}
		seen[addr] = true
	}
	if count != blockCount {
		t.Errorf("total successful allocs = %d, want %d", count, blockCount)
	}
}

func addrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
