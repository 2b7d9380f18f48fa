package alloc

import (
	"runtime"
	"strconv"
	"sync"
)

// maxCachedSlabs bounds how many distinct Slab instances a single goroutine
// may keep magazines for at once, mirroring the C++ original's
// MAX_CACHED_SLABS.
const maxCachedSlabs = 4

// numCachedClasses is the number of "hot" size classes (the smallest ones)
// that get a per-goroutine magazine; the remaining, larger classes are
// served straight from their Pool.
const numCachedClasses = 4

// magazineCapacity is the fixed number of block pointers a magazine can
// hold before it must be flushed back to its Pool.
const magazineCapacity = 128

// magazine is a fixed-capacity LIFO stack of free blocks for one size
// class, private to the goroutine that owns the cacheEntry containing it.
type magazine struct {
	blocks [magazineCapacity][]byte
	count  int
}

func (m *magazine) tryPop() []byte {
	if m.count == 0 {
		return nil
	}
	m.count--
	b := m.blocks[m.count]
	m.blocks[m.count] = nil
	return b
}

func (m *magazine) tryPush(b []byte) bool {
	if m.count >= magazineCapacity {
		return false
	}
	m.blocks[m.count] = b
	m.count++
	return true
}

func (m *magazine) isEmpty() bool { return m.count == 0 }
func (m *magazine) isFull() bool  { return m.count >= magazineCapacity }

// refillFrom pulls up to magazineCapacity/2 blocks out of pool in a single
// batched call and pushes them in, amortizing pool's mutex over many
// allocations instead of paying it once per Alloc. Returns false if the
// pool had nothing to give.
func (m *magazine) refillFrom(pool *Pool) bool {
	want := magazineCapacity / 2
	if space := magazineCapacity - m.count; want > space {
		want = space
	}
	if want <= 0 {
		return false
	}
	buf := make([][]byte, want)
	got := pool.allocBatch(want, buf)
	for i := 0; i < got; i++ {
		m.blocks[m.count] = buf[i]
		m.count++
	}
	return got > 0
}

// flushOldestHalf returns the bottom magazineCapacity/2 entries (the
// oldest-pushed half of the stack) to pool in a single batched call, then
// compacts the remaining entries down to the bottom of the array. Used to
// make room in a full magazine without pinning it at capacity forever.
func (m *magazine) flushOldestHalf(pool *Pool) {
	half := magazineCapacity / 2
	if half > m.count {
		half = m.count
	}
	if half == 0 {
		return
	}
	pool.freeBatch(m.blocks[:half])
	copy(m.blocks[:m.count-half], m.blocks[half:m.count])
	for i := m.count - half; i < m.count; i++ {
		m.blocks[i] = nil
	}
	m.count -= half
}

// drainInto pops every block out of m and hands each to fn, then resets m.
func (m *magazine) drainInto(fn func([]byte)) {
	for i := 0; i < m.count; i++ {
		fn(m.blocks[i])
		m.blocks[i] = nil
	}
	m.count = 0
}

// cacheEntry binds one goroutine's magazines to one Slab. epoch is the
// Slab's epoch value as of the last time this entry was validated; a
// mismatch means the Slab has been Reset since and every magazine here
// must be dropped (not flushed — their blocks no longer belong to any live
// pool generation) before reuse.
type cacheEntry struct {
	owner     *Slab
	epoch     uint64
	magazines [numCachedClasses]magazine
}

func (e *cacheEntry) invalidate() {
	e.owner = nil
	e.epoch = 0
	for i := range e.magazines {
		e.magazines[i].count = 0
	}
}

// goroutineSlot is the per-goroutine row of the registry: up to
// maxCachedSlabs entries, one per Slab this goroutine currently holds
// magazines for.
type goroutineSlot struct {
	mu      sync.Mutex
	entries [maxCachedSlabs]cacheEntry
}

// cacheShard is one bucket of the sharded registry map, guarded by its own
// mutex to keep contention local to goroutines that hash to the same shard.
type cacheShard struct {
	mu   sync.Mutex
	rows map[uint64]*goroutineSlot
}

const cacheShardCount = 32

var cacheRegistry [cacheShardCount]cacheShard

func init() {
	for i := range cacheRegistry {
		cacheRegistry[i].rows = make(map[uint64]*goroutineSlot)
	}
}

func shardFor(gid uint64) *cacheShard {
	return &cacheRegistry[gid%cacheShardCount]
}

// goroutineID parses the numeric id out of the header line runtime.Stack
// produces ("goroutine 37 [running]:"). This is the same family of trick
// as deriving a per-execution-context identifier from a runtime.Stack dump
// (see the retrieval pack's getCurrentCPUID), but reads the id verbatim
// instead of hashing, since the registry needs a true per-goroutine key
// rather than a bucket hint.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]

	const prefix = "goroutine "
	if len(b) <= len(prefix) || string(b[:len(prefix)]) != prefix {
		return 0
	}
	b = b[len(prefix):]

	i := 0
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
	}
	id, err := strconv.ParseUint(string(b[:i]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func slotForCurrentGoroutine() *goroutineSlot {
	gid := goroutineID()
	shard := shardFor(gid)

	shard.mu.Lock()
	slot, ok := shard.rows[gid]
	if !ok {
		slot = &goroutineSlot{}
		shard.rows[gid] = slot
	}
	shard.mu.Unlock()
	return slot
}

// bindEntry returns the cacheEntry this goroutine should use for s, creating
// or evicting one as needed. The caller must hold slot.mu for the duration
// of its use of the returned entry.
func bindEntry(slot *goroutineSlot, s *Slab) *cacheEntry {
	for i := range slot.entries {
		if slot.entries[i].owner == s {
			return &slot.entries[i]
		}
	}
	for i := range slot.entries {
		if slot.entries[i].owner == nil {
			slot.entries[i].owner = s
			slot.entries[i].epoch = s.epoch.Load()
			return &slot.entries[i]
		}
	}

	// All entries occupied: evict the last one, flushing its magazines
	// back to their owner's pools first (or dropping them if the owner has
	// been Reset since they were cached). This is a deterministic, not an
	// LRU, policy — preserved as-is rather than strengthened.
	last := &slot.entries[maxCachedSlabs-1]
	if last.owner != nil {
		if last.epoch != last.owner.epoch.Load() {
			dropEntry(last)
		} else {
			flushEntry(last)
		}
	}
	last.owner = s
	last.epoch = s.epoch.Load()
	return last
}

// flushEntry returns every cached block in e back to e.owner's pools. Used
// when bindEntry evicts an entry whose epoch is still current.
func flushEntry(e *cacheEntry) {
	if e.owner == nil {
		return
	}
	for class := 0; class < numCachedClasses; class++ {
		pool := e.owner.pools[class]
		e.magazines[class].drainInto(func(b []byte) {
			pool.Free(b)
		})
	}
	e.invalidate()
}

// dropEntry discards e's cached blocks without flushing them to a pool.
// Used when e's epoch is stale: the blocks it references came from a pool
// generation that Reset has already reclaimed wholesale, so returning them
// again would double-free.
func dropEntry(e *cacheEntry) {
	e.invalidate()
}

// invalidateRegistryFor walks every goroutine's row in the registry and
// invalidates every entry owned by s, dropping its cached blocks without
// returning them to a pool. Called from Slab.Close so
// that closing one goroutine's Slab does not leave dangling owner pointers
// in another goroutine's cache — strictly more thorough than a
// single-thread-only destructor walk.
func invalidateRegistryFor(s *Slab) {
	for i := range cacheRegistry {
		shard := &cacheRegistry[i]
		shard.mu.Lock()
		rows := make([]*goroutineSlot, 0, len(shard.rows))
		for _, row := range shard.rows {
			rows = append(rows, row)
		}
		shard.mu.Unlock()

		for _, row := range rows {
			row.mu.Lock()
			for j := range row.entries {
				if row.entries[j].owner == s {
					row.entries[j].invalidate()
				}
			}
			row.mu.Unlock()
		}
	}
}
