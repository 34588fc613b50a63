// Package kstack places a per-PID kernel stack into the kernel address
// space, separated from its neighbors by a one-page guard — spec.md
// section 4.6. Grounded on rcore-os's original_source/config.rs
// kernel_stack_position formula, expressed as a Framed MapArea pushed
// into (and popped from) the kernel's MemorySet the way biscuit's
// per-process resources are pushed/popped from shared kernel structures
// on TCB birth/death.
package kstack

import (
	"rvcore/addr"
	"rvcore/config"
	"rvcore/memset"
)

// TopFor returns the top virtual address of PID p's kernel stack:
// TRAMPOLINE - p*(KSTACK_SIZE+PAGE_SIZE), per spec.md section 4.6.
func TopFor(p int) addr.VA {
	return addr.VA(config.TrampolineVA) - addr.VA(p)*addr.VA(config.KernelStackSize+config.PageSize)
}

// BottomFor returns the bottom virtual address of PID p's kernel stack.
func BottomFor(p int) addr.VA {
	return TopFor(p) - addr.VA(config.KernelStackSize)
}

// Handle owns the kernel-space mapping for one task's kernel stack. It
// must be released (via Unmap) when the owning task is reaped, mirroring
// MemorySet area lifetime elsewhere in this kernel.
type Handle struct {
	pid int
	ks  *memset.MemorySet
}

// Map adds a Framed R|W area for PID p's kernel stack into the kernel
// address space ks.
func Map(ks *memset.MemorySet, p int) *Handle {
	ks.InsertFramedArea(BottomFor(p), TopFor(p), memset.PermR|memset.PermW)
	return &Handle{pid: p, ks: ks}
}

// Top returns this handle's kernel stack top virtual address, the value
// seeded into a fresh TaskContext's sp and into TrapContext.kernel_sp.
func (h *Handle) Top() addr.VA { return TopFor(h.pid) }

// Unmap removes this PID's kernel stack area from the kernel address
// space, freeing its frames. Called when the owning task's resources are
// released (TaskControlBlock reap).
func (h *Handle) Unmap() {
	h.ks.RemoveArea(BottomFor(h.pid), TopFor(h.pid))
}
