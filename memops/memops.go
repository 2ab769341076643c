// Package memops defines the pluggable allocator contract used by the
// filter VM's heap arena. Most callers never need anything but the
// default, GC-backed implementation; the interface exists so a caller
// running many short-lived VM programs can swap in a pooled or arena
// allocator without the VM package knowing about it.
package memops

// Ops is an allocator contract modeled on realloc/free: Alloc may be
// asked to grow, shrink, or freshly allocate (oldp nil means fresh), and
// Free releases a chunk previously returned by Alloc. Implementations
// must treat a nil oldp to Alloc, and a nil p to Free, as well-formed
// requests (new allocation, no-op release respectively).
type Ops interface {
	// Alloc returns a chunk of at least size bytes. If oldp is non-nil it
	// names a chunk previously returned by this Ops, whose content up to
	// min(size, len(oldp)) is preserved in the result.
	Alloc(size int, oldp []byte) []byte
	// Free releases a chunk previously returned by Alloc. Freeing nil is
	// a no-op.
	Free(p []byte)
}

// stdOps is the default Ops, backed directly by the Go runtime's
// allocator/GC: Alloc copies into a freshly made slice and Free does
// nothing, since Go slices need no explicit release.
type stdOps struct{}

// Std is the default MemOps, analogous to the original library's
// Mem_StdOps: plain make()/GC, no pooling.
var Std Ops = stdOps{}

func (stdOps) Alloc(size int, oldp []byte) []byte {
	b := make([]byte, size)
	if oldp != nil {
		copy(b, oldp)
	}
	return b
}

func (stdOps) Free([]byte) {}
