package alloc

import (
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
)

// sizeClass describes one rung of the slab ladder: every block in it is
// blockSize bytes, and the pool backing it starts with baseCount blocks
// (before the constructor's scale factor is applied).
type sizeClass struct {
	blockSize int
	baseCount int
}

// sizeClassLadder is the fixed ten-entry configuration every Slab is built
// from. Values are exact, not tunable beyond the constructor's scale.
var sizeClassLadder = [10]sizeClass{
	{8, 512},
	{16, 512},
	{32, 256},
	{64, 256},
	{128, 128},
	{256, 128},
	{512, 64},
	{1024, 64},
	{2048, 32},
	{4096, 32},
}

// Slab dispatches allocations across a fixed ladder of power-of-two size
// classes, each backed by its own Pool. The smallest numCachedClasses
// classes additionally get a per-goroutine magazine cache (see cache.go) so
// that the hot path for small, frequently churned allocations touches the
// shared pool's mutex only when a magazine is refilled or flushed.
type Slab struct {
	pools  [10]*Pool
	epoch  atomic.Uint64
	logger *slog.Logger
}

// SlabOption configures optional behavior on NewSlab.
type SlabOption func(*Slab)

// WithLogger attaches a logger that Slab uses for low-frequency structural
// events (pool exhaustion, a full magazine flushing half of itself back to
// its pool). A Slab built without a logger never logs.
func WithLogger(l *slog.Logger) SlabOption {
	return func(s *Slab) {
		s.logger = l
	}
}

// NewSlab builds the ten-pool ladder, scaling each class's base block
// count by scale (rounded up, floored at 1 block). scale <= 0 is treated
// as 1.
func NewSlab(scale float64, opts ...SlabOption) (*Slab, error) {
	if scale <= 0 {
		scale = 1
	}
	s := &Slab{}
	for _, opt := range opts {
		opt(s)
	}

	for i, class := range sizeClassLadder {
		count := int(math.Ceil(float64(class.baseCount) * scale))
		if count < 1 {
			count = 1
		}
		pool, err := NewPool(class.blockSize, count)
		if err != nil {
			for j := 0; j < i; j++ {
				s.pools[j].Close()
			}
			return nil, fmt.Errorf("alloc: building size class %d (%dB): %w", i, class.blockSize, err)
		}
		s.pools[i] = pool
	}
	return s, nil
}

// classFor returns the ladder index of the smallest size class able to
// hold size bytes, or -1 if size exceeds the top (4096B) class.
func classFor(size int) int {
	for i, class := range sizeClassLadder {
		if size <= class.blockSize {
			return i
		}
	}
	return -1
}

// Alloc returns one uninitialized block from the smallest size class able
// to hold size bytes (the slice's length is that class's block size), or
// nil if size <= 0, size exceeds the top class, or that class's pool is
// exhausted.
func (s *Slab) Alloc(size int) []byte {
	if size <= 0 {
		return nil
	}
	class := classFor(size)
	if class < 0 {
		return nil
	}

	if class < numCachedClasses {
		if b := s.allocFromCache(class); b != nil {
			return b
		}
	}

	b := s.pools[class].Alloc()
	if b == nil && s.logger != nil {
		s.logger.Warn("alloc: pool exhausted", "class", class, "blockSize", sizeClassLadder[class].blockSize)
	}
	return b
}

// Calloc is Alloc with the matched class's full block size zeroed.
func (s *Slab) Calloc(size int) []byte {
	b := s.Alloc(size)
	if b != nil {
		clear(b)
	}
	return b
}

// Free returns ptr, originally obtained from Alloc/Calloc with the given
// size, to its size class.
func (s *Slab) Free(ptr []byte, size int) {
	if ptr == nil || size <= 0 {
		return
	}
	class := classFor(size)
	if class < 0 {
		return
	}

	if class < numCachedClasses {
		if s.freeToCache(class, ptr) {
			return
		}
	}
	s.pools[class].Free(ptr)
}

// allocFromCache serves class out of the calling goroutine's magazine. On a
// miss it refills the magazine with a batch of up to magazineCapacity/2
// blocks from the shared pool in one locked call, amortizing the pool's
// mutex over many future allocations instead of paying it on every miss.
func (s *Slab) allocFromCache(class int) []byte {
	slot := slotForCurrentGoroutine()
	slot.mu.Lock()
	defer slot.mu.Unlock()

	entry := bindEntry(slot, s)
	currentEpoch := s.epoch.Load()
	if entry.epoch != currentEpoch {
		dropEntry(entry)
		entry.owner = s
		entry.epoch = currentEpoch
	}

	mag := &entry.magazines[class]
	if b := mag.tryPop(); b != nil {
		return b
	}

	if !mag.refillFrom(s.pools[class]) {
		return nil
	}
	return mag.tryPop()
}

// freeToCache pushes ptr onto the calling goroutine's magazine for class. If
// the magazine is full, it flushes the oldest half of it back to the shared
// pool in one batched call before pushing, so a magazine pinned at capacity
// drains instead of falling back to a per-free pool lock forever. Always
// returns true: ptr is either pushed onto the magazine or, if that push
// still fails, freed to the pool here, so the caller must not Free it again.
func (s *Slab) freeToCache(class int, ptr []byte) bool {
	slot := slotForCurrentGoroutine()
	slot.mu.Lock()
	defer slot.mu.Unlock()

	entry := bindEntry(slot, s)
	currentEpoch := s.epoch.Load()
	if entry.epoch != currentEpoch {
		dropEntry(entry)
		entry.owner = s
		entry.epoch = currentEpoch
	}

	mag := &entry.magazines[class]
	if mag.isFull() {
		if s.logger != nil {
			s.logger.Debug("alloc: magazine full, flushing oldest half to pool", "class", class)
		}
		mag.flushOldestHalf(s.pools[class])
	}

	if !mag.tryPush(ptr) {
		// flushOldestHalf always frees at least one slot when the magazine
		// was full; this is unreachable outside that invariant breaking.
		s.pools[class].Free(ptr)
	}
	return true
}

// Reset reclaims every block across every size class (each Pool.Reset
// relinks all of that pool's blocks) and bumps the epoch so that every goroutine's cached magazines are dropped
// (not flushed) on next touch, instead of handing out blocks from a pool
// generation that no longer exists. As documented, this is NOT safe to
// call concurrently with Alloc/Calloc/Free — only the epoch bump itself is
// an atomic release, not a substitute for external synchronization.
func (s *Slab) Reset() {
	for _, p := range s.pools {
		p.Reset()
	}
	s.epoch.Add(1)
}

// Close closes every size class's pool and invalidates this Slab's entries
// across every goroutine's cache, not just the caller's.
func (s *Slab) Close() error {
	invalidateRegistryFor(s)
	var firstErr error
	for _, p := range s.pools {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PoolCount returns the number of size classes (always 10).
func (s *Slab) PoolCount() int {
	return len(s.pools)
}

// TotalCapacity returns the sum of every size class's pool capacity, in
// bytes.
func (s *Slab) TotalCapacity() int {
	total := 0
	for _, p := range s.pools {
		total += p.Capacity()
	}
	return total
}

// TotalFree returns the sum of every size class's free bytes. This does
// not include blocks currently parked in a per-goroutine magazine, which
// are free from the caller's perspective but not yet visible to the
// shared pool.
func (s *Slab) TotalFree() int {
	total := 0
	for _, p := range s.pools {
		total += p.FreeSpace()
	}
	return total
}

// PoolBlockSize returns the block size of size class i.
func (s *Slab) PoolBlockSize(i int) int {
	return s.pools[i].BlockSize()
}

// PoolFreeSpace returns the free bytes remaining in size class i's pool.
func (s *Slab) PoolFreeSpace(i int) int {
	return s.pools[i].FreeSpace()
}
