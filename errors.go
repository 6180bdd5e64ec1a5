package malloc

import "errors"

// Sentinel errors returned by Malloc. No third-party error-wrapping
// library is used here: none of the example repos this allocator was
// grounded on pulls one in, and plain sentinels checked with errors.Is
// are the idiom they use instead (see DESIGN.md).
var (
	// ErrOutOfMemory is returned when the boundary driver refuses to
	// extend the heap by the required amount.
	ErrOutOfMemory = errors.New("malloc: out of memory")

	// ErrBootstrap is returned when the very first program-break query
	// fails.
	ErrBootstrap = errors.New("malloc: heap bootstrap failed")
)
