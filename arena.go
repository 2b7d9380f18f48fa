package alloc

import (
	"log/slog"
	"sync/atomic"
)

// Arena is a lock-free bump allocator over one mmap'd, page-aligned region.
// Allocation is a compare-and-swap on a running byte offset; there is no
// per-allocation bookkeeping and no individual free — call Reset to reclaim
// everything at once, or Close to release the region back to the OS.
//
// Arena is safe for concurrent Alloc/Calloc callers. Reset and Close are not
// safe to call concurrently with any other operation on the same Arena.
// Arena is not safe to copy; it owns a single mmap handle. To hand
// ownership of the mmap handle to another variable or goroutine, call
// Take rather than assigning or passing the struct by value.
type Arena struct {
	memory   []byte
	capacity int64
	used     atomic.Int64
	logger   *slog.Logger
}

// ArenaOption configures optional behavior on NewArena.
type ArenaOption func(*Arena)

// WithArenaLogger attaches a logger that Arena uses for low-frequency
// structural events (capacity exhaustion). An Arena built without a logger
// never logs.
func WithArenaLogger(l *slog.Logger) ArenaOption {
	return func(a *Arena) {
		a.logger = l
	}
}

// NewArena creates a new Arena able to serve bytes bytes of bump
// allocation, rounded up to the next OS page multiple. bytes <= 0 rounds up
// to one page.
func NewArena(bytes int, opts ...ArenaOption) (*Arena, error) {
	capacity := roundUpPage(bytes)
	mem, err := mapRegion(capacity)
	if err != nil {
		return nil, err
	}
	a := &Arena{memory: mem, capacity: int64(capacity)}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Take transfers ownership of a's backing mmap region to a newly returned
// Arena and releases a to the same empty state Close leaves it in, without
// actually unmapping the region. This is the explicit move-transfer Arena's
// doc comment asks callers to use instead of copying the struct directly,
// since Go has no move constructors to enforce it. Not safe to call
// concurrently with Alloc/Calloc/Reset/Close on a.
func (a *Arena) Take() *Arena {
	moved := &Arena{memory: a.memory, capacity: a.capacity, logger: a.logger}
	moved.used.Store(a.used.Load())

	a.memory = nil
	a.capacity = 0
	a.used.Store(0)
	return moved
}

// Alloc returns a slice of n uninitialized bytes from the arena, or nil if
// n <= 0 or there is not enough room left before capacity.
func (a *Arena) Alloc(n int) []byte {
	if n <= 0 || a.memory == nil {
		return nil
	}
	length := int64(n)
	for {
		current := a.used.Load()
		if length > a.capacity-current {
			if a.logger != nil {
				a.logger.Warn("alloc: arena exhausted", "requested", n, "used", current, "capacity", a.capacity)
			}
			return nil
		}
		if a.used.CompareAndSwap(current, current+length) {
			return a.memory[current : current+length : current+length]
		}
	}
}

// Calloc is Alloc followed by a zeroing of the returned region. The zeroing
// happens after the CAS has published the region, since no other caller can
// observe it before that point.
func (a *Arena) Calloc(n int) []byte {
	b := a.Alloc(n)
	if b != nil {
		clear(b)
	}
	return b
}

// Reset returns the arena's entire capacity to the free state in O(1) by
// rewinding the bump counter. It does not zero memory. Not safe to call
// concurrently with Alloc/Calloc or with another Reset.
func (a *Arena) Reset() int {
	a.used.Store(0)
	return 0
}

// Close unmaps the arena's backing region. Idempotent: calling Close more
// than once is a no-op after the first call. Not safe to call concurrently
// with Alloc/Calloc/Reset.
func (a *Arena) Close() error {
	if a.memory == nil {
		return nil
	}
	mem := a.memory
	a.memory = nil
	a.capacity = 0
	a.used.Store(0)
	return unmapRegion(mem)
}

// Used returns the number of bytes currently bumped past, observed with
// acquire ordering.
func (a *Arena) Used() int {
	return int(a.used.Load())
}

// Capacity returns the total number of bytes the arena can ever serve.
func (a *Arena) Capacity() int {
	return int(a.capacity)
}
