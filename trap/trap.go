// Package trap dispatches on the reason a task entered the kernel:
// syscall, page fault, illegal instruction, or timer interrupt — spec.md
// section 4.9. Grounded on rcore-os's original_source/trap/mod.rs
// trap_handler match over scause, and on biscuit's trap dispatch in
// syscall/syscall.go's Syscall entry point for the "look up a table,
// call through it" shape.
package trap

import (
	"rvcore/defs"
	"rvcore/task"
)

// Cause identifies why a task trapped into the kernel, standing in for
// decoding RISC-V's scause CSR.
type Cause int

const (
	// UserEnvCall is an ecall instruction executed from U-mode: a syscall.
	UserEnvCall Cause = iota
	// StoreFault/StorePageFault: a store to an unmapped or read-only page.
	StoreFault
	StorePageFault
	// IllegalInstruction: the task executed something the ISA does not
	// define, or that U-mode is not permitted to execute.
	IllegalInstruction
	// SupervisorTimer: the scheduling quantum elapsed.
	SupervisorTimer
	// Other covers every scause this kernel does not special-case; the
	// handler panics, matching rcore-os's trap_handler catch-all.
	Other
)

// SyscallFn dispatches one syscall for tcb using the registers saved in
// its trap context, returning the value to place in a0. Set by the
// syscall package to avoid an import cycle.
var SyscallFn func(tcb *task.ControlBlock) int64

// Handle processes one trap for tcb and reports whether the task should
// continue running (true) or has been suspended/exited and the scheduler
// should pick something else (false). Grounded on trap_handler's match
// arms in mod.rs, with TrapReturn folded into the caller (userlib's call
// wrapper, which reads a0 straight back) the way biscuit's syscall return path falls straight
// back into the caller without an assembly trampoline.
func Handle(tcb *task.ControlBlock, cause Cause) (continueRunning bool) {
	tc := tcb.TrapContext()
	switch cause {
	case UserEnvCall:
		tc.SEPC += 4 // skip over the ecall instruction on return
		ret := SyscallFn(tcb)
		tc = tcb.TrapContext() // exec may have replaced the trap context page
		tc.X[10] = uint64(ret) // a0
		return true

	case StoreFault, StorePageFault:
		markExitOnTrap(tcb, int32(defs.ErrPageFault))
		return false

	case IllegalInstruction:
		markExitOnTrap(tcb, int32(defs.ErrIllegalInstruction))
		return false

	case SupervisorTimer:
		return false // quantum expired; caller suspends and reschedules

	default:
		panic("trap: unsupported trap cause reached Handle")
	}
}

// markExitOnTrap is set by the kernel boot harness to the init task so
// exit can reparent children; trap itself has no notion of which task is
// init.
var initTask *task.ControlBlock

// SetInitTask records the init task used to reparent orphaned children
// when a task is killed by a trap.
func SetInitTask(t *task.ControlBlock) { initTask = t }

func markExitOnTrap(tcb *task.ControlBlock, code int32) {
	task.Exit(tcb, initTask, code)
}
