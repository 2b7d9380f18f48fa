package alloc

import (
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"
	"unsafe"
)

const ptrSize = int(unsafe.Sizeof(uintptr(0)))

// freeNode is the layout every unused block is reinterpreted as: its first
// pointer-sized word threads the singly-linked free list.
type freeNode struct {
	next *freeNode
}

// Pool is a fixed-block-size free-list allocator over one mmap'd,
// page-aligned region. Alloc/Free are O(1) and guarded by a single mutex;
// the critical section is just a free-list pop/push plus a counter update.
//
// Pool is safe for concurrent Alloc/Calloc/Free callers. Reset is not safe
// to call concurrently with any other operation. Pool is not safe to copy;
// it owns a single mmap handle.
type Pool struct {
	memory     []byte
	capacity   int
	blockSize  int
	blockCount int

	mu       sync.Mutex
	freeList *freeNode
	freeCnt  atomic.Int64
}

// NewPool creates a Pool of blockCount blocks, each blockSize bytes rounded
// up first to the pointer size and then to the next power of two.
func NewPool(blockSize, blockCount int) (*Pool, error) {
	p := &Pool{}
	if err := p.init(blockSize, blockCount); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pool) init(blockSize, blockCount int) error {
	if blockSize < ptrSize {
		blockSize = ptrSize
	}
	blockSize = nextPow2(blockSize)
	if blockCount < 0 {
		blockCount = 0
	}

	capacity := roundUpPage(blockSize * blockCount)
	mem, err := mapRegion(capacity)
	if err != nil {
		return err
	}

	p.memory = mem
	p.capacity = capacity
	p.blockSize = blockSize
	p.blockCount = blockCount
	p.buildFreeList()
	p.freeCnt.Store(int64(blockCount))
	return nil
}

// buildFreeList relinks every block in descending index order so the first
// alloc returns the lowest-address block, matching the invariant in §4.2.
// Caller must hold p.mu, or be in a context (construction) where no other
// goroutine can observe p yet.
func (p *Pool) buildFreeList() {
	var head *freeNode
	for i := p.blockCount; i > 0; i-- {
		off := (i - 1) * p.blockSize
		node := (*freeNode)(unsafe.Pointer(&p.memory[off]))
		node.next = head
		head = node
	}
	p.freeList = head
}

// nextPow2 returns the smallest power of two >= n.
func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// Alloc pops the head of the free list and returns it uninitialized, or nil
// if the pool is exhausted.
func (p *Pool) Alloc() []byte {
	p.mu.Lock()
	node := p.freeList
	if node == nil {
		p.mu.Unlock()
		return nil
	}
	p.freeList = node.next
	p.freeCnt.Add(-1)
	p.mu.Unlock()

	return unsafe.Slice((*byte)(unsafe.Pointer(node)), p.blockSize)
}

// Calloc is Alloc followed by a zeroing of the returned block, done outside
// the critical section since the block is private to the caller once popped.
func (p *Pool) Calloc() []byte {
	b := p.Alloc()
	if b != nil {
		clear(b)
	}
	return b
}

// Free returns ptr to the pool's free list. A nil ptr is a no-op. In
// palloc_debug builds, freeing a pointer that does not belong to this pool
// panics; in normal builds this is a programmer error with no defined
// behavior, per the package's documented failure semantics.
func (p *Pool) Free(ptr []byte) {
	if ptr == nil {
		return
	}
	assertf(p.owns(ptr), "alloc: Free called with a pointer not owned by this pool")

	node := (*freeNode)(unsafe.Pointer(&ptr[0]))
	p.mu.Lock()
	node.next = p.freeList
	p.freeList = node
	p.freeCnt.Add(1)
	p.mu.Unlock()
}

// owns reports whether ptr points into this pool's region at an exact
// block-size-aligned offset.
func (p *Pool) owns(ptr []byte) bool {
	if len(ptr) == 0 || len(p.memory) == 0 {
		return false
	}
	base := uintptr(unsafe.Pointer(&p.memory[0]))
	end := base + uintptr(p.blockSize*p.blockCount)
	addr := uintptr(unsafe.Pointer(&ptr[0]))
	if addr < base || addr >= end {
		return false
	}
	return (addr-base)%uintptr(p.blockSize) == 0
}

// Reset rebuilds the free list from scratch so every block is free again.
// Not safe to call concurrently with Alloc/Calloc/Free.
func (p *Pool) Reset() {
	p.mu.Lock()
	p.buildFreeList()
	p.freeCnt.Store(int64(p.blockCount))
	p.mu.Unlock()
}

// Close unmaps the pool's backing region. Idempotent.
func (p *Pool) Close() error {
	if p.memory == nil {
		return nil
	}
	mem := p.memory
	p.memory = nil
	p.freeList = nil
	p.freeCnt.Store(0)
	p.capacity = 0
	return unmapRegion(mem)
}

// FreeSpace returns the number of free bytes, equal to the number of free
// blocks times the block size.
func (p *Pool) FreeSpace() int {
	return int(p.freeCnt.Load()) * p.blockSize
}

// Capacity returns the total mapped capacity in bytes (a page multiple,
// possibly larger than blockSize*blockCount).
func (p *Pool) Capacity() int {
	return p.capacity
}

// BlockSize returns the effective (post-rounding) block size.
func (p *Pool) BlockSize() int {
	return p.blockSize
}

// BlockCount returns the number of blocks the pool manages.
func (p *Pool) BlockCount() int {
	return p.blockCount
}

// allocBatch pops up to n blocks into out, returning the number actually
// produced. Package-private: used only by Slab to refill a magazine.
func (p *Pool) allocBatch(n int, out [][]byte) int {
	if n <= 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	i := 0
	for ; i < n; i++ {
		node := p.freeList
		if node == nil {
			break
		}
		p.freeList = node.next
		out[i] = unsafe.Slice((*byte)(unsafe.Pointer(node)), p.blockSize)
	}
	if i > 0 {
		p.freeCnt.Add(-int64(i))
	}
	return i
}

// freeBatch pushes every block in in back onto the free list, skipping nils.
// Package-private: used only by Slab to return a magazine's overflow.
func (p *Pool) freeBatch(in [][]byte) {
	if len(in) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	pushed := 0
	for _, ptr := range in {
		if ptr == nil {
			continue
		}
		assertf(p.owns(ptr), "alloc: freeBatch called with a pointer not owned by this pool")
		node := (*freeNode)(unsafe.Pointer(&ptr[0]))
		node.next = p.freeList
		p.freeList = node
		pushed++
	}
	if pushed > 0 {
		p.freeCnt.Add(int64(pushed))
	}
}

func (p *Pool) String() string {
	return fmt.Sprintf("Pool(blockSize=%d, blockCount=%d, free=%d)", p.blockSize, p.blockCount, p.freeCnt.Load())
}
