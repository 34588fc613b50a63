// Package trapctx defines the trap context: the record a trap handler
// saves a user task's registers into and a trap return reads them back
// from, resident in every address space's dedicated trap-context page
// (addr.VA = config.TrapContextVA) — spec.md section 4.9. Grounded on
// rcore-os's original_source/trap/context.rs.
package trapctx

import (
	"sync"

	"rvcore/addr"
)

// TrapContext is the register save area plus the kernel-side bookkeeping
// a trap handler needs to find its way back into the kernel on the next
// trap: the kernel's page table token, this task's kernel stack top, and
// the host address of trap_handler. X mirrors the 32 RISC-V general
// registers; SEPC/SStatus stand in for the trapped-from program counter
// and privilege state.
type TrapContext struct {
	X           [32]uint64
	SStatus     uint64
	SEPC        uint64
	KernelSATP  uint64
	KernelSP    uint64
	TrapHandler uint64
}

var (
	mu    sync.Mutex
	pages = map[addr.PPN]*TrapContext{}
)

// At returns the TrapContext resident in the frame backing ppn, creating
// a fresh zeroed one on first access — the trap-context page's one
// occupant, the way rcore-os gives the whole page to a single
// TrapContext value.
func At(ppn addr.PPN) *TrapContext {
	mu.Lock()
	defer mu.Unlock()
	tc, ok := pages[ppn]
	if !ok {
		tc = &TrapContext{}
		pages[ppn] = tc
	}
	return tc
}

// Release frees the side-table slot for ppn when its owning frame is
// returned to the allocator, so a later reuse of the same PPN does not
// observe a stale trap context.
func Release(ppn addr.PPN) {
	mu.Lock()
	defer mu.Unlock()
	delete(pages, ppn)
}

// New builds a trap context primed to enter a freshly loaded user image:
// sepc at the image entry point, sp at the user stack pointer, and the
// kernel-side fields filled in from this task's kernel stack.
func New(entry, userSP, kernelSP addr.VA) TrapContext {
	var tc TrapContext
	tc.SEPC = uint64(entry)
	tc.X[2] = uint64(userSP) // sp
	tc.KernelSP = uint64(kernelSP)
	return tc
}
