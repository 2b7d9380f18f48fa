//go:build palloc_debug

package alloc

import "fmt"

// debugMode reports whether the package was built with the palloc_debug
// build tag. The programmer-error assertion (Pool.Free/freeBatch of a
// pointer the pool does not own, which includes freeing into a closed pool)
// only runs when this is true, mirroring the original's PALLOC_DEBUG
// preprocessor guard. Double frees are not detected.
const debugMode = true

// assertf panics with a formatted message if cond is false. Only compiled
// in under the palloc_debug build tag; a normal build uses the no-op in
// debug_off.go instead.
func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
