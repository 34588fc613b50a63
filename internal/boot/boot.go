// Package boot wires every subsystem package together into one running
// kernel instance: physical memory arena, frame allocator, kernel address
// space, trampoline frame, and the trap/syscall dispatch tables — the
// steps rcore-os's os/src/main.rs performs in its rust_main before
// jumping to the first task, collected here so cmd/kernel and every
// cmd/* test harness (forktest, usershell) share one bootstrap path
// instead of duplicating it.
package boot

import (
	"time"

	"rvcore/addr"
	"rvcore/config"
	"rvcore/frame"
	"rvcore/klog"
	"rvcore/memset"
	"rvcore/physmem"
	"rvcore/sbi"
	"rvcore/syscall"
	"rvcore/task"
	"rvcore/timer"
	"rvcore/trap"
)

// Kernel holds the handles a running instance needs after bootstrap:
// mainly the kernel's own address space, since everything else
// (frame.Global, pid.Global, sched.Global) is process-wide state the
// rest of the kernel already reaches through package-level globals, the
// same single-instance assumption biscuit's own globals make.
type Kernel struct {
	Space         *memset.MemorySet
	TrampolinePPN addr.PPN
}

// Bootstrap brings up physical memory, the frame allocator, the
// trampoline frame, and the kernel's own address space, then wires
// trap.SyscallFn to syscall.Dispatch. Grounded on rcore-os's rust_main:
// clear_bss (no analog: Go zero-initializes), init the frame allocator
// (frame.Init), build the kernel space, enable the timer interrupt
// (timer.Init). Physical addresses run from zero to config.MemoryEnd,
// matching the QEMU virt machine layout rcore-os targets; frames below
// config.AppBase are reserved for this toy kernel's own footprint and
// never handed to the allocator. The kernel space holds the trampoline
// and identity-maps [config.AppBase, config.MemoryEnd), the window every
// allocated frame comes from.
func Bootstrap() *Kernel {
	physmem.Init(config.MemoryEnd)
	klog.Infof("physical memory arena: %d bytes", config.MemoryEnd)

	kernelEnd, memEnd := addr.PA(config.AppBase).Floor(), addr.PA(config.MemoryEnd).Floor()
	frame.Init(kernelEnd, memEnd)

	trampoline := frame.NewTracker(frame.Global)
	space := memset.NewBare()
	space.MapTrampoline(trampoline.PPN())
	space.Push(memset.NewMapArea(addr.VPN(uint64(kernelEnd)), addr.VPN(uint64(memEnd)), memset.Identical, memset.PermR|memset.PermW|memset.PermX), nil)
	task.SetTrampolinePPN(trampoline.PPN())
	task.SetKernelSpace(space)

	timer.Init(time.Now())

	trap.SyscallFn = syscall.Dispatch
	syscall.StdinByte = sbi.ConsoleGetChar
	syscall.StdoutWrite = func(b []byte) {
		for _, c := range b {
			sbi.ConsolePutChar(c)
		}
	}

	return &Kernel{Space: space, TrampolinePPN: trampoline.PPN()}
}

// RunLoop drives the cooperative scheduler until its ready queue runs dry,
// mirroring rcore-os's run_tasks idle loop.
func RunLoop(p interface{ RunOne() bool }) {
	for p.RunOne() {
	}
}
