// Package pid implements the process identifier allocator: monotonic
// allocation with a free list, PID 0 reserved for the init process —
// spec.md section 4.6. Grounded on rcore-os's original_source/task/pid.rs,
// expressed in biscuit's "Handle owns a resource, Drop (here: Release)
// returns it" idiom (see biscuit's fd.Fd_t lifecycle).
package pid

import "fmt"

// Allocator hands out process identifiers, preferring recycled ids over
// advancing the high-water mark.
type Allocator struct {
	current   int
	recycled  []int
}

// Global is the kernel's one PID allocator.
var Global = &Allocator{current: 0}

// Alloc returns a fresh PID, taking from the recycle list first.
func (a *Allocator) Alloc() int {
	if n := len(a.recycled); n > 0 {
		pid := a.recycled[n-1]
		a.recycled = a.recycled[:n-1]
		return pid
	}
	pid := a.current
	a.current++
	return pid
}

// Dealloc returns pid to the recycle list. Double-freeing a PID is a
// programming error.
func (a *Allocator) Dealloc(pid int) {
	for _, r := range a.recycled {
		if r == pid {
			panic(fmt.Sprintf("pid: double free of pid %d", pid))
		}
	}
	a.recycled = append(a.recycled, pid)
}

// Handle owns exactly one allocated PID; Release returns it to the
// allocator it came from.
type Handle struct {
	alloc    *Allocator
	pid      int
	released bool
}

// Alloc allocates a new Handle from a.
func Alloc(a *Allocator) *Handle {
	return &Handle{alloc: a, pid: a.Alloc()}
}

// PID returns the held process id.
func (h *Handle) PID() int { return h.pid }

// Release returns the PID to its allocator's free list. Calling Release
// twice is a programming error, matching frame.Tracker's double-free
// guard.
func (h *Handle) Release() {
	if h.released {
		panic(fmt.Sprintf("pid: double release of pid %d", h.pid))
	}
	h.released = true
	h.alloc.Dealloc(h.pid)
}

// InitPID is the reserved identifier of the init process, per spec.md
// section 3.
const InitPID = 0
