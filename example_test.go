package alloc

import (
	"fmt"
	"sync"
)

// Example demonstrates basic arena usage: bump-allocate, reset, reuse.
func Example() {
	a, err := NewArena(4096)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer a.Close()

	buf := a.Alloc(1024)
	fmt.Printf("Allocated buffer of size: %d\n", len(buf))

	ptr := TypedAlloc[int](a)
	*ptr = 42
	fmt.Printf("Allocated int with value: %d\n", *ptr)

	slice := TypedAllocSlice[int32](a, 5)
	for i := range slice {
		slice[i] = int32(i * 2)
	}
	fmt.Printf("Allocated slice: %v\n", slice)

	fmt.Printf("Memory in use: %d bytes\n", a.Used())

	a.Reset()
	fmt.Printf("After reset, memory in use: %d bytes\n", a.Used())

	// Output:
	// Allocated buffer of size: 1024
	// Allocated int with value: 42
	// Allocated slice: [0 2 4 6 8]
	// Memory in use: 1052 bytes
	// After reset, memory in use: 0 bytes
}

// ExamplePool demonstrates a fixed-block free-list allocator's free-block
// accounting across Alloc, Free and Reset.
func ExamplePool() {
	p, err := NewPool(32, 4)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer p.Close()

	a := p.Alloc()
	b := p.Alloc()
	fmt.Printf("free blocks after two allocs: %d\n", p.FreeSpace()/p.BlockSize())

	p.Free(a)
	p.Free(b)
	fmt.Printf("free blocks after two frees: %d\n", p.FreeSpace()/p.BlockSize())

	p.Reset()
	fmt.Printf("free blocks after reset: %d\n", p.FreeSpace()/p.BlockSize())

	// Output:
	// free blocks after two allocs: 2
	// free blocks after two frees: 4
	// free blocks after reset: 4
}

// ExampleSlab demonstrates that allocations are routed to the smallest
// size class that can hold them.
func ExampleSlab() {
	s, err := NewSlab(1)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer s.Close()

	small := s.Alloc(10)
	large := s.Alloc(3000)
	fmt.Printf("10-byte alloc rounds to class block size: %d\n", len(small))
	fmt.Printf("3000-byte alloc rounds to class block size: %d\n", len(large))

	s.Free(small, 10)
	s.Free(large, 3000)

	// Output:
	// 10-byte alloc rounds to class block size: 16
	// 3000-byte alloc rounds to class block size: 4096
}

// ExampleSlab_concurrent demonstrates that many goroutines can allocate
// and free through the same Slab without external locking.
func ExampleSlab_concurrent() {
	s, err := NewSlab(1)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer s.Close()

	var wg sync.WaitGroup
	const workers = 8
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b := s.Alloc(16)
				if b != nil {
					s.Free(b, 16)
				}
			}
		}()
	}
	wg.Wait()

	fmt.Println("done")
	// Output:
	// done
}
