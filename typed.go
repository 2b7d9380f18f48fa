package alloc

import "unsafe"

// TypedAlloc returns a pointer to a zeroed T carved out of the arena, or nil
// if the arena has no room left. The returned pointer is only valid while a
// is reachable and has not been Reset or Close'd.
func TypedAlloc[T any](a *Arena) *T {
	var zero T
	b := a.Calloc(int(unsafe.Sizeof(zero)))
	if b == nil {
		return nil
	}
	return (*T)(unsafe.Pointer(&b[0]))
}

// TypedAllocUninitialized is TypedAlloc without the zeroing; the memory
// contents are whatever was left over from a prior Reset, if any.
func TypedAllocUninitialized[T any](a *Arena) *T {
	var zero T
	b := a.Alloc(int(unsafe.Sizeof(zero)))
	if b == nil {
		return nil
	}
	return (*T)(unsafe.Pointer(&b[0]))
}

// TypedAllocSlice carves n contiguous, uninitialized Ts out of the arena.
// Returns nil if n <= 0 or the arena has no room left.
func TypedAllocSlice[T any](a *Arena, n int) []T {
	if n <= 0 {
		return nil
	}
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	b := a.Alloc(elemSize * n)
	if b == nil {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), n)
}
