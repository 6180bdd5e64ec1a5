package malloc

import "unsafe"

// header is the fixed-layout block header that precedes every payload in
// the managed region. It is never allocated by the Go runtime: instances
// live inside memory obtained from the boundary driver and are reached
// exclusively through unsafe pointer casts confined to this file and to
// alloc.go/free.go.
type header struct {
	size uint64
	free bool
	prev *header
	next *header
}

// addrOf returns the address of h as a uintptr, for byte-distance
// arithmetic. All inter-header distances in this package are computed in
// bytes via addrOf/headerAt, never by incrementing a typed *header, which
// would scale by unsafe.Sizeof(header{}) instead of by a block's size.
func addrOf(h *header) uintptr { return uintptr(unsafe.Pointer(h)) }

// headerAt reinterprets the byte address addr as a header. The caller must
// guarantee addr lies within the managed region and is correctly aligned;
// callers in this package only ever pass addresses derived from a prior
// sbrk result, from addrOf(b) + headerSize + a block size, or from a
// payload pointer minus headerSize.
func headerAt(addr uintptr) *header { return (*header)(unsafe.Pointer(addr)) }

// payload returns the address of the first payload byte following h, given
// the allocator's configured header footprint.
func (h *header) payload(headerSize uintptr) unsafe.Pointer {
	return unsafe.Pointer(addrOf(h) + headerSize)
}

// headerFromPayload recovers the header preceding a payload pointer
// previously returned by Malloc.
func headerFromPayload(p unsafe.Pointer, headerSize uintptr) *header {
	return headerAt(uintptr(p) - headerSize)
}

// roundup rounds n up to the nearest multiple of m, m a power of two.
func roundup(n, m int) int { return (n + m - 1) &^ (m - 1) }

// roundup64 is the int64 form of roundup. It is exact for negative n down
// to -(m-1), which alloc.go's extend relies on when a tail-reuse credit
// slightly exceeds the requested growth.
func roundup64(n, m int64) int64 { return (n + m - 1) &^ (m - 1) }
