package alloc

// ArenaStats is a point-in-time snapshot of an Arena's usage.
type ArenaStats struct {
	SizeInUse   int     // Bytes bumped past so far
	Capacity    int     // Total bytes the arena can ever serve
	Utilization float64 // SizeInUse / Capacity, 0 if Capacity is 0
}

// Stats returns a snapshot of the arena's current usage.
func (a *Arena) Stats() ArenaStats {
	used := a.Used()
	capacity := a.Capacity()
	var util float64
	if capacity != 0 {
		util = float64(used) / float64(capacity)
	}
	return ArenaStats{
		SizeInUse:   used,
		Capacity:    capacity,
		Utilization: util,
	}
}

// PoolStats is a point-in-time snapshot of a Pool's usage.
type PoolStats struct {
	BlockSize   int
	BlockCount  int
	FreeSpace   int // Bytes currently free (free blocks * BlockSize)
	Capacity    int // Total mapped bytes
	Utilization float64
}

// Stats returns a snapshot of the pool's current usage.
func (p *Pool) Stats() PoolStats {
	capacity := p.Capacity()
	free := p.FreeSpace()
	managed := p.BlockSize() * p.BlockCount()
	var util float64
	if capacity != 0 && managed != 0 {
		util = float64(managed-free) / float64(managed)
	}
	return PoolStats{
		BlockSize:   p.BlockSize(),
		BlockCount:  p.BlockCount(),
		FreeSpace:   free,
		Capacity:    capacity,
		Utilization: util,
	}
}

// SlabStats is a point-in-time snapshot of a Slab's usage across every
// size class. It does not account for blocks currently parked in a
// per-goroutine magazine cache.
type SlabStats struct {
	PoolCount     int
	TotalCapacity int
	TotalFree     int
	Utilization   float64
	Classes       [10]PoolStats
}

// Stats returns a snapshot of the slab's current usage, including a
// per-size-class breakdown.
func (s *Slab) Stats() SlabStats {
	var out SlabStats
	out.PoolCount = s.PoolCount()
	for i, p := range s.pools {
		out.Classes[i] = p.Stats()
		out.TotalCapacity += out.Classes[i].Capacity
		out.TotalFree += out.Classes[i].FreeSpace
	}
	if out.TotalCapacity != 0 {
		out.Utilization = float64(out.TotalCapacity-out.TotalFree) / float64(out.TotalCapacity)
	}
	return out
}
