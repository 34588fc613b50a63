// Package frame implements the physical frame allocator: a monotonically
// advancing stack allocator over [start, MemoryEnd) with a LIFO recycle
// list, matching spec.md section 4.1 exactly. Grounded on biscuit's
// mem.Physmem_t free-list design (mem/mem.go's _phys_new/_phys_put), but
// trimmed to the single-CPU LIFO stack the spec calls for instead of
// biscuit's per-CPU free lists (this kernel has no SMP, per spec.md's
// explicit non-goal).
package frame

import (
	"fmt"

	"rvcore/addr"
	"rvcore/physmem"
)

// Allocator is a LIFO stack frame allocator over a fixed PPN window.
type Allocator struct {
	start   addr.PPN // low end of the window, inclusive
	current addr.PPN // next never-yet-allocated PPN
	end     addr.PPN // high end of the window, exclusive
	recycled []addr.PPN
}

// Global is the kernel's one frame allocator, covering
// [kernel_end_ceil, MemoryEnd_floor). Set up once at boot by Init.
var Global *Allocator

// Init creates the global frame allocator over [start, end).
func Init(start, end addr.PPN) {
	Global = &Allocator{start: start, current: start, end: end}
}

// Alloc hands out one physical frame, preferring the most recently
// recycled frame over advancing the bump pointer. It returns false if the
// window is exhausted — per spec.md section 7, callers in the kernel core
// treat that as fatal (NewTracker panics on it), but Alloc itself is
// total so tests can probe exhaustion without panicking.
func (a *Allocator) Alloc() (addr.PPN, bool) {
	if n := len(a.recycled); n > 0 {
		ppn := a.recycled[n-1]
		a.recycled = a.recycled[:n-1]
		return ppn, true
	}
	if a.current >= a.end {
		return 0, false
	}
	ppn := a.current
	a.current++
	return ppn, true
}

// AllocatedCount reports how many frames in this allocator's window are
// currently checked out (advanced past start but not sitting on the
// recycle list), for diagnostics (internal/kdiag's frame profile).
func (a *Allocator) AllocatedCount() int {
	return int(a.current-a.start) - len(a.recycled)
}

// Dealloc returns ppn to the recycle list. It is fatal (spec.md section
//4.1) to deallocate a PPN outside [start, current) or one already present
// in the recycle list — both indicate a double free.
func (a *Allocator) Dealloc(ppn addr.PPN) {
	if ppn < a.start || ppn >= a.current {
		panic(fmt.Sprintf("frame: dealloc of out-of-range ppn %#x", uint64(ppn)))
	}
	for _, r := range a.recycled {
		if r == ppn {
			panic(fmt.Sprintf("frame: double free of ppn %#x", uint64(ppn)))
		}
	}
	a.recycled = append(a.recycled, ppn)
}

// Tracker owns exactly one allocated physical frame. When it is dropped
// (via Free, since Go has no destructors) the frame returns to the
// allocator. The constructor zero-fills the frame, matching spec.md
// section 3's "Frame" invariant.
type Tracker struct {
	ppn  addr.PPN
	freed bool
}

// NewTracker allocates and zero-fills one frame from a. It panics if the
// allocator is exhausted, matching spec.md section 7's treatment of frame
// exhaustion as fatal in the core.
func NewTracker(a *Allocator) *Tracker {
	ppn, ok := a.Alloc()
	if !ok {
		panic("frame: out of physical memory")
	}
	t := &Tracker{ppn: ppn}
	page := physmem.Global.Page(uint64(ppn.ToPA()), 4096)
	for i := range page {
		page[i] = 0
	}
	return t
}

// PPN returns the frame's physical page number.
func (t *Tracker) PPN() addr.PPN { return t.ppn }

// Bytes returns the frame's backing 4096-byte array for direct access.
func (t *Tracker) Bytes() []byte {
	return physmem.Global.Page(uint64(t.ppn.ToPA()), 4096)
}

// Free returns the frame to the global allocator. Calling Free twice on
// the same Tracker is a programming error and panics (spec.md section 3:
// "Double-free is a programming error and must panic"), mirrored here by
// Allocator.Dealloc's own recycled-set check plus a local guard so the
// panic message is specific to the Tracker API.
func (t *Tracker) Free() {
	if t.freed {
		panic(fmt.Sprintf("frame: double free of tracker for ppn %#x", uint64(t.ppn)))
	}
	t.freed = true
	Global.Dealloc(t.ppn)
}
