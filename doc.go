// Package alloc implements a small family of memory allocators that obtain
// raw address space from the operating system and hand it out in
// policy-controlled shapes.
//
// # Overview
//
// Three cooperating allocators are provided, leaves first:
//
//   - Arena: a lock-free bump allocator over one mmap'd region. Good for
//     linear, reset-scoped allocation such as per-request scratch space.
//   - Pool: a mutex-protected free-list allocator over one mmap'd region
//     divided into equal-sized blocks. Good for fixed-shape objects that
//     are allocated and freed at a high rate.
//   - Slab: a ladder of ten Pools at compile-time size classes, with a
//     per-goroutine magazine cache layered over the hot (small) classes.
//     Good for general-purpose variable-size allocation without going
//     back to the Go heap.
//
// # Basic usage
//
//	a, err := alloc.NewArena(1 << 16)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer a.Close()
//
//	buf := a.Alloc(128)
//	a.Reset() // O(1), reuses the same mapped region
//
//	p, err := alloc.NewPool(64, 1024)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer p.Close()
//
//	blk := p.Alloc()
//	p.Free(blk)
//
//	s, err := alloc.NewSlab(1.0)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer s.Close()
//
//	obj := s.Alloc(40) // routed to the 64-byte class
//	s.Free(obj, 40)
//
// # Thread safety
//
// Arena.Alloc/Calloc are safe for concurrent callers (lock-free CAS on the
// bump counter). Arena.Reset/Close are not safe with concurrent allocation.
// Pool.Alloc/Calloc/Free are safe for concurrent callers (short mutex
// critical sections); Pool.Reset is not. Slab.Alloc/Calloc/Free are safe for
// concurrent callers; Slab.Reset is not safe with concurrent alloc/free, but
// its epoch bump is itself atomic — see the Slab.Reset doc comment for the
// exact contract.
//
// # Memory ownership
//
// Every Arena and Pool owns exactly one anonymous, private OS mapping for
// its lifetime. Nothing in this package touches the filesystem, network, or
// environment; the only OS interaction is one mmap per construction and one
// munmap per Close.
package alloc
