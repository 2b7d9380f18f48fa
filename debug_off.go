//go:build !palloc_debug

package alloc

const debugMode = false

// assertf is a no-op outside the palloc_debug build; the condition is not
// even evaluated beyond being passed in, so callers should keep arguments
// cheap (no allocation, no locking) at call sites reached on hot paths.
func assertf(cond bool, format string, args ...any) {}
