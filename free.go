package malloc

import (
	"fmt"
	"os"
	"unsafe"
)

// Free releases a pointer previously returned by Malloc. A nil pointer, or
// a pointer whose header is already marked free, is a no-op -- double-free
// on an allocator-owned pointer is tolerated silently (spec §4.4/§7).
func (a *Allocator) Free(p unsafe.Pointer) {
	if trace {
		defer func() {
			fmt.Fprintf(os.Stderr, "Free(%p)\n", p)
		}()
	}

	a.ensureInit()

	if p == nil {
		return
	}

	h := headerFromPayload(p, a.headerSize)
	if h.free {
		return
	}

	h.free = true
	a.allocs--

	if h.next != nil && h.next.free {
		a.absorbNext(h)
	}

	if h.prev != nil && h.prev.free {
		h = h.prev
		a.absorbNext(h)
	}

	if h.next == nil && h.size+uint64(a.headerSize) >= uint64(a.pageSize) {
		a.contract(h)
	}
}

// absorbNext merges h's immediate successor into h. The caller has
// already verified h.next is free.
func (a *Allocator) absorbNext(h *header) {
	n := h.next
	h.size += n.size + uint64(a.headerSize)
	h.next = n.next

	if h.next != nil {
		h.next.prev = h
	} else {
		a.tail = h
	}
}

// contract returns whole pages from the top of the heap to the OS when a
// freed block (possibly just coalesced) sits at the tail and is at least
// one page wide, mirroring
// _examples/original_source/malloc.c's _free tail-contraction branch.
func (a *Allocator) contract(h *header) {
	total := h.size + uint64(a.headerSize)
	leftover := total % uint64(a.pageSize)
	excess := total - leftover

	if h.prev == nil {
		a.head = nil
		a.tail = nil
	} else {
		h.prev.size += leftover
		h.prev.next = nil
		a.tail = h.prev
	}

	_, _ = a.drv.sbrk(-int(excess))
}
