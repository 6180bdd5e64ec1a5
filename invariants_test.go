package malloc

import (
	"testing"
	"unsafe"
)

// checkInvariants walks the block directory and asserts invariants 1-6 of
// spec §8 hold. It is called after every operation in the randomized
// tests below, in the spirit of
// _examples/cznic-memory/all_test.go's post-operation verification
// passes.
func checkInvariants(t *testing.T, a *Allocator) {
	t.Helper()

	if a.head == nil {
		if a.tail != nil {
			t.Fatalf("head is nil but tail is %p", a.tail)
		}

		return
	}

	if a.head.prev != nil {
		t.Fatalf("head.prev is not nil")
	}

	if a.tail.next != nil {
		t.Fatalf("tail.next is not nil")
	}

	liveBlocks := 0
	sawTail := false

	for b := a.head; b != nil; b = b.next {
		if b.size == 0 {
			t.Fatalf("block at %p has zero size", b)
		}

		if !b.free {
			liveBlocks++
		}

		if b.next != nil {
			wantNext := addrOf(b) + a.headerSize + uintptr(b.size)
			if addrOf(b.next) != wantNext {
				t.Fatalf("contiguity: block %p size %d next at %p, want %p", b, b.size, b.next, wantNext)
			}

			if b.next.prev != b {
				t.Fatalf("list consistency: %p.next.prev != %p", b, b)
			}

			if b.free && b.next.free {
				t.Fatalf("coalescing invariant violated at %p and %p", b, b.next)
			}
		}

		if b.prev != nil && b.prev.next != b {
			t.Fatalf("list consistency: %p.prev.next != %p", b, b)
		}

		if !b.free {
			payload := uintptr(b.payload(a.headerSize))
			if payload%uintptr(a.alignment) != 0 {
				t.Fatalf("payload at %p not aligned to %d", unsafe.Pointer(payload), a.alignment)
			}
		}

		if b == a.tail {
			sawTail = true
		}
	}

	if !sawTail {
		t.Fatalf("tail %p unreachable by walking next from head", a.tail)
	}

	if liveBlocks != a.allocs {
		t.Fatalf("live block count %d does not match allocs counter %d", liveBlocks, a.allocs)
	}

	brk, err := a.drv.sbrk(0)
	if err != nil {
		t.Fatalf("sbrk(0) query: %v", err)
	}

	var total uint64
	for b := a.head; b != nil; b = b.next {
		total += uint64(a.headerSize) + b.size
	}

	if want := uint64(brk - addrOf(a.head)); total != want {
		t.Fatalf("sum of block footprints %d != current_break-head_address %d", total, want)
	}
}
