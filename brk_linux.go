//go:build linux

package malloc

import "golang.org/x/sys/unix"

// osBreakSource drives the real Linux brk(2) syscall directly, the same
// raw-syscall style _examples/cznic-memory/mmap_unix.go uses for mmap:
// no cgo, one raw brk syscall for a query and two (query, then set) for a
// move.
type osBreakSource struct{}

func newOSBreakSource() breakSource { return osBreakSource{} }

func (osBreakSource) sbrk(delta int) (uintptr, error) {
	cur, _, errno := unix.RawSyscall(unix.SYS_BRK, 0, 0, 0)
	if errno != 0 {
		return 0, errno
	}

	if delta == 0 {
		return cur, nil
	}

	want := cur + uintptr(delta)
	if delta < 0 {
		want = cur - uintptr(-delta)
	}

	got, _, errno := unix.RawSyscall(unix.SYS_BRK, want, 0, 0)
	if errno != 0 {
		return 0, errno
	}

	// brk(2) always returns the resulting break, even on failure to
	// satisfy the full request; compare against what we asked for.
	if got != want {
		return 0, ErrOutOfMemory
	}

	return cur, nil
}
