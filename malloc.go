// Package malloc implements a process-wide free-list heap allocator that
// manages a single contiguous region obtained by moving the program break.
//
// The zero value of Allocator is ready for use: Malloc, Free and Break
// fill in the default alignment, page size, header footprint and OS
// boundary driver on first use. New constructs one with options applied,
// and the package-level Malloc/Free operate on a process-wide default.
package malloc

import (
	"os"
	"unsafe"
)

const (
	defaultAlignment = 16
	defaultPageSize  = 4096
)

// trace gates verbose Malloc/Free tracing to os.Stderr, in the same
// package-level-flag idiom _examples/cznic-memory/memory.go uses to wrap
// every Malloc/Free/Calloc ("if trace { ... fmt.Fprintf(os.Stderr, ...) }")
// rather than a logging framework or per-call option. Off by default.
var trace bool

// SetTrace enables or disables stderr tracing of every Malloc/Free call
// across all allocators in this process, matching spec.md's diagnostics
// surface.
func SetTrace(on bool) { trace = on }

// Allocator manages one heap: a head/tail pair plus the in-band directory
// of block headers they thread. It is not safe for concurrent use; the
// caller must serialize all Malloc/Free calls (spec §5).
type Allocator struct {
	drv breakSource

	head *header
	tail *header

	alignment  int
	pageSize   int
	headerSize uintptr

	allocs int
}

// Option configures an Allocator constructed via New.
type Option func(*Allocator)

// WithAlignment overrides the default 16-byte payload alignment. n must be
// a power of two.
func WithAlignment(n int) Option {
	return func(a *Allocator) { a.alignment = n }
}

// WithPageSize overrides the page size used for heap-growth rounding and
// tail contraction. n must be a multiple of the configured alignment.
func WithPageSize(n int) Option {
	return func(a *Allocator) { a.pageSize = n }
}

// New returns a ready-to-use Allocator. With no options it uses 16-byte
// alignment and the platform's page size (falling back to 4096).
func New(opts ...Option) *Allocator {
	a := &Allocator{}
	for _, opt := range opts {
		opt(a)
	}

	a.ensureInit()

	return a
}

func (a *Allocator) ensureInit() {
	if a.alignment == 0 {
		a.alignment = defaultAlignment
	}

	if a.pageSize == 0 {
		a.pageSize = platformPageSize()
	}

	if a.headerSize == 0 {
		a.headerSize = uintptr(roundup(int(unsafe.Sizeof(header{})), a.alignment))
	}

	if a.drv == nil {
		a.drv = newOSBreakSource()
	}
}

func platformPageSize() int {
	if n := os.Getpagesize(); n > 0 {
		return n
	}

	return defaultPageSize
}

// Allocs reports the number of live (allocated, not yet freed) blocks.
// Intended for tests and the demonstration driver, not for allocation
// decisions.
func (a *Allocator) Allocs() int { return a.allocs }

// Break reports the allocator's current program-break position, or an
// error if the boundary driver cannot be queried. Exposed for the
// verification harness described in spec §6/§8.
func (a *Allocator) Break() (uintptr, error) {
	a.ensureInit()
	return a.drv.sbrk(0)
}

// Default is the process-wide allocator backing the package-level Malloc
// and Free functions, per design note "Global mutable state: bundle
// head/tail into an allocator value held in a well-defined process-wide
// location."
var Default = New()

// Malloc allocates size bytes from the default allocator. See
// (*Allocator).Malloc.
func Malloc(size int) (unsafe.Pointer, error) { return Default.Malloc(size) }

// Free releases a pointer previously returned by Malloc. See
// (*Allocator).Free.
func Free(p unsafe.Pointer) { Default.Free(p) }
