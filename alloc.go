package malloc

import (
	"fmt"
	"os"
	"unsafe"
)

// effectiveSize rounds a requested payload size up so that the block's
// total footprint (header + payload) is a multiple of the configured
// alignment (spec §4.1).
func (a *Allocator) effectiveSize(n int) uint64 {
	total := n + int(a.headerSize)
	return uint64(n + (roundup(total, a.alignment) - total))
}

// Malloc returns an aligned pointer to size bytes of uninitialized
// payload, or nil on out-of-memory or size == 0. It panics for a negative
// size, matching the teacher's own Malloc contract
// (_examples/cznic-memory/memory.go).
func (a *Allocator) Malloc(n int) (r unsafe.Pointer, err error) {
	if trace {
		defer func() {
			fmt.Fprintf(os.Stderr, "Malloc(%#x) %p, %v\n", n, r, err)
		}()
	}

	a.ensureInit()

	if n < 0 {
		panic("malloc: invalid malloc size")
	}

	if n == 0 {
		return nil, nil
	}

	size := a.effectiveSize(n)

	if a.head == nil {
		base, err := a.drv.sbrk(0)
		if err != nil {
			return nil, fmt.Errorf("malloc: %w: %v", ErrBootstrap, err)
		}

		// Don't commit a.head/a.tail until extend actually grows the
		// heap: if the very first growth attempt fails, the heap must
		// stay empty rather than dangling on an address nothing was
		// ever carved from (spec §7's no-partial-state guarantee).
		h := headerAt(base)

		newTail, p, err := a.extend(h, size, 0)
		if err != nil {
			return nil, err
		}

		a.head = h
		a.tail = newTail
		a.allocs++

		return p, nil
	}

	for b := a.head; b != nil; b = b.next {
		if b.free && b.size >= size+uint64(a.headerSize) {
			a.placeInFreeBlock(b, size)
			a.allocs++

			return b.payload(a.headerSize), nil
		}
	}

	var additional uint64
	if a.tail.free {
		additional = a.tail.size + uint64(a.headerSize)
	}

	newTail, p, err := a.extend(nil, size, additional)
	if err != nil {
		return nil, err
	}

	a.tail = newTail
	a.allocs++

	return p, nil
}

// placeInFreeBlock carves block b down to size bytes (splitting off a new
// free block from its tail when there's enough slack to be worth it) and
// marks it in-use. Mirrors _examples/original_source/malloc.c's split
// branch inside _malloc exactly, including the "absorb the slack instead
// of splitting" threshold.
func (a *Allocator) placeInFreeBlock(b *header, size uint64) {
	if b.size > size+2*uint64(a.headerSize) {
		tailSize := b.size - (size + uint64(a.headerSize))

		nb := headerAt(addrOf(b) + a.headerSize + uintptr(size))
		nb.size = tailSize
		nb.free = true
		nb.prev = b
		nb.next = b.next

		if b.next != nil {
			b.next.prev = nb
		}

		b.next = nb
		b.size = size
	}

	b.free = false

	if a.tail == b && b.next != nil {
		a.tail = b.next
	}
}

// extend grows the heap to satisfy a request the first-fit search
// couldn't place, reusing a free tail block's capacity as a credit
// (additional) against the growth needed. bootstrapAt is non-nil only for
// the very first allocation against an empty heap, where it names the
// header carved at the heap's base address; otherwise extend reuses
// a.tail in place (if free) or appends a new header after it. It returns
// the header that should become the allocator's new tail, leaving all
// mutation of Allocator.head/tail/allocs to the caller so a failed sbrk
// never leaves head/tail pointing at ungrown memory. Mirrors the growth
// branch of _examples/original_source/malloc.c's _malloc.
func (a *Allocator) extend(bootstrapAt *header, size, additional uint64) (*header, unsafe.Pointer, error) {
	grow := int64(size) + int64(a.headerSize) - int64(additional)
	grow = roundup64(grow, int64(a.pageSize))

	prevBreak, err := a.drv.sbrk(int(grow))
	if err != nil {
		return nil, nil, ErrOutOfMemory
	}

	var block *header
	switch {
	case bootstrapAt != nil:
		block = bootstrapAt
	case a.tail.free:
		block = a.tail
	default:
		block = headerAt(prevBreak)
		block.prev = a.tail
		a.tail.next = block
	}

	block.next = nil
	block.free = false
	block.size = size

	returnPtr := block.payload(a.headerSize)

	newTail := block

	leftover := grow + int64(additional) - int64(size+uint64(a.headerSize))
	if leftover > int64(a.headerSize) {
		nb := headerAt(addrOf(block) + a.headerSize + uintptr(size))
		block.next = nb
		nb.prev = block
		nb.next = nil
		nb.free = true
		nb.size = uint64(leftover) - uint64(a.headerSize)
		newTail = nb
	} else {
		block.size += uint64(leftover)
	}

	return newTail, returnPtr, nil
}
