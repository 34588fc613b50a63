// Package task implements the task control block: the kernel's unit of
// schedulable work, its address space, its kernel stack, and its place in
// the parent/children hierarchy — spec.md section 4.7. Grounded on
// rcore-os's original_source/task/task_control_block.rs and expressed in
// biscuit's tinfo.Tnote_t idiom: an immutable identity plus a
// sync.Mutex-guarded mutable inner struct (see tinfo.Tnote_t).
package task

import (
	"sync"

	"rvcore/addr"
	"rvcore/defs"
	"rvcore/kstack"
	"rvcore/memset"
	"rvcore/pid"
	"rvcore/trapctx"
)

// Context holds the callee-saved registers a context switch preserves
// across a task suspend/resume, standing in for the ra/sp/s0-s11 frame
// biscuit's assembly __switch would save. Goroutine scheduling means Go's
// runtime already preserves real registers; this struct only carries the
// logical resume point the scheduler hands back to a resumed task.
type Context struct {
	RA uint64
	SP uint64
	S  [12]uint64
}

// GoTrapReturn is a hook for the function a resumed task re-enters
// through, mirroring __restore jumping back into trap_return. No package
// in this module assigns or calls it: a resumed task simply continues
// from Park on its own goroutine.
var GoTrapReturn func(tc *ControlBlock)

// inner holds the mutable, lock-guarded half of a task's state.
type inner struct {
	TrapContextPPN addr.PPN
	BaseSize       uint64
	TaskCx         Context
	Status         defs.TaskStatus
	MemSet         *memset.MemorySet
	Parent         *weakRef
	Children       []*ControlBlock
	ExitCode       int32
}

// weakRef is a non-owning back-pointer to a parent ControlBlock, mirroring
// rCore's Weak<TaskControlBlock>: it must never keep the parent alive on
// its own, only let a child look its parent up while the parent exists.
type weakRef struct {
	target *ControlBlock
}

// ControlBlock is one task: a fixed pid and kernel-stack handle, plus a
// mutex-guarded inner state block.
//
// Scheduling runs the task's program on its own goroutine, handed control
// and taken back off it by an unbuffered channel ping-pong (resume/
// yielded) rather than a saved register frame — this kernel never has a
// real assembly __switch to call, and biscuit already establishes the
// precedent of letting the Go runtime's own goroutines stand in for
// kernel threads (see tinfo.Tnote_t/runtime.Gptr). Exactly one of the
// processor goroutine and the task's goroutine runs at a time.
type ControlBlock struct {
	PID    *pid.Handle
	KStack *kstack.Handle

	mu    sync.Mutex
	inner inner

	resume  chan struct{}
	yielded chan struct{}
}

// FaultCode is implemented by panic values that a task's own misbehavior
// (an unmapped access, an operation forbidden in user mode) should turn
// into a forced exit rather than bring the whole kernel process down —
// the goroutine-level analog of trap_handler's StoreFault/
// IllegalInstruction arms killing just the offending task.
type FaultCode interface {
	ExitCode() int32
}

// Start launches program on a fresh goroutine parked immediately waiting
// for its first Resume. Called once, right after the task is constructed
// (by New or Fork). A panic carrying a FaultCode is recovered and turned
// into a forced Exit with that code instead of crashing the kernel
// process; any other panic is a kernel bug and is allowed to propagate.
func (tcb *ControlBlock) Start(program func(*ControlBlock)) {
	tcb.resume = make(chan struct{})
	tcb.yielded = make(chan struct{})
	go func() {
		<-tcb.resume
		func() {
			defer func() {
				if r := recover(); r != nil {
					fc, ok := r.(FaultCode)
					if !ok {
						panic(r)
					}
					Exit(tcb, initTaskForReap, fc.ExitCode())
				}
			}()
			program(tcb)
		}()
		if tcb.Status() != defs.Zombie {
			tcb.SetStatus(defs.Zombie)
		}
		tcb.yielded <- struct{}{}
	}()
}

// initTaskForReap is the task orphans are reparented to when a fault
// forces another task to exit. Set once by the boot harness.
var initTaskForReap *ControlBlock

// SetInitTask records the init task used for orphan reparenting on a
// fault-forced exit.
func SetInitTask(t *ControlBlock) { initTaskForReap = t }

// Resume hands control to the task's goroutine and blocks until it yields
// control back (by calling Park, or by its program function returning).
// Called from the processor goroutine only.
func (tcb *ControlBlock) Resume() {
	tcb.resume <- struct{}{}
	<-tcb.yielded
}

// Park hands control back to whichever goroutine is blocked in Resume and
// blocks until the next Resume call. Called from the task's own goroutine
// — by sched.Suspend for sys_yield, and nowhere else, since exit simply
// lets the program function return.
func (tcb *ControlBlock) Park() {
	tcb.yielded <- struct{}{}
	<-tcb.resume
}

// Locked runs fn with the task's inner state locked, the way callers
// reach into tinfo.Tnote_t under its Mutex; fn passes results out through
// variables it captures.
func (tcb *ControlBlock) Locked(fn func(in *inner)) {
	tcb.mu.Lock()
	defer tcb.mu.Unlock()
	fn(&tcb.inner)
}

// Status returns the task's current scheduling status.
func (tcb *ControlBlock) Status() defs.TaskStatus {
	var s defs.TaskStatus
	tcb.Locked(func(in *inner) { s = in.Status })
	return s
}

// SetStatus transitions the task to a new status.
func (tcb *ControlBlock) SetStatus(s defs.TaskStatus) {
	tcb.Locked(func(in *inner) { in.Status = s })
}

// MemorySet returns the task's address space.
func (tcb *ControlBlock) MemorySet() *memset.MemorySet {
	var ms *memset.MemorySet
	tcb.Locked(func(in *inner) { ms = in.MemSet })
	return ms
}

// TrapContext returns a pointer into the task's trap-context page, valid
// as long as the caller does not switch address spaces.
func (tcb *ControlBlock) TrapContext() *trapctx.TrapContext {
	var ppn addr.PPN
	tcb.Locked(func(in *inner) { ppn = in.TrapContextPPN })
	return trapctx.At(ppn)
}

// Parent returns the parent task, or nil if this task has none (it is the
// init task, or its parent has already exited).
func (tcb *ControlBlock) Parent() *ControlBlock {
	var p *ControlBlock
	tcb.Locked(func(in *inner) {
		if in.Parent != nil {
			p = in.Parent.target
		}
	})
	return p
}

// Children returns a snapshot of the task's current child list.
func (tcb *ControlBlock) Children() []*ControlBlock {
	var out []*ControlBlock
	tcb.Locked(func(in *inner) { out = append(out, in.Children...) })
	return out
}

// trampolinePPN is set once by the boot harness and shared by every task's
// address space, mirroring the single TRAMPOLINE physical frame in
// rcore-os's memory_set.rs.
var trampolinePPN addr.PPN

// SetTrampolinePPN records the frame backing the trampoline page, shared
// by every MemorySet built through this package.
func SetTrampolinePPN(ppn addr.PPN) { trampolinePPN = ppn }

// kernelSpace is the kernel's own address space, into which every task's
// kernel stack area is pushed (and later popped on reap). Set once by the
// boot harness.
var kernelSpace *memset.MemorySet

// SetKernelSpace records the kernel's address space used for kernel stack
// placement.
func SetKernelSpace(ms *memset.MemorySet) { kernelSpace = ms }

// New builds the initial task from an ELF image: a fresh address space,
// kernel stack, and trap context primed to enter the image's entry point
// on first resume. Grounded on TaskControlBlock::new in task_control_block.rs.
func New(elf memset.ElfImage) *ControlBlock {
	ms, userSP, entry := memset.FromELF(elf, trampolinePPN)
	trapPPN := ms.TrapContextPPN()

	pidHandle := pid.Alloc(pid.Global)
	ksHandle := kstack.Map(kernelSpace, pidHandle.PID())

	tcb := &ControlBlock{PID: pidHandle, KStack: ksHandle}
	tcb.inner = inner{
		TrapContextPPN: trapPPN,
		BaseSize:       uint64(userSP),
		Status:         defs.Ready,
		MemSet:         ms,
	}

	tc := trapctx.At(trapPPN)
	*tc = trapctx.New(entry, userSP, ksHandle.Top())
	return tcb
}

// Fork creates a child task sharing no memory with its parent: a deep
// copy of the parent's address space (memset.FromExistedUserSpace), a
// fresh pid and kernel stack, and a trap context cloned from the
// parent's — except for the return value register, which the caller
// zeroes for the child once fork returns through syscall dispatch.
// Grounded on TaskControlBlock::fork.
func Fork(parent *ControlBlock) *ControlBlock {
	parentMS := parent.MemorySet()
	childMS := memset.FromExistedUserSpace(parentMS, trampolinePPN)
	trapPPN := childMS.TrapContextPPN()

	pidHandle := pid.Alloc(pid.Global)
	ksHandle := kstack.Map(kernelSpace, pidHandle.PID())

	child := &ControlBlock{PID: pidHandle, KStack: ksHandle}
	parentTrap := parent.TrapContext()
	var parentBaseSize uint64
	parent.Locked(func(in *inner) { parentBaseSize = in.BaseSize })
	child.inner = inner{
		TrapContextPPN: trapPPN,
		BaseSize:       parentBaseSize,
		Status:         defs.Ready,
		MemSet:         childMS,
		Parent:         &weakRef{target: parent},
	}

	childTrap := trapctx.At(trapPPN)
	*childTrap = *parentTrap
	childTrap.KernelSP = uint64(ksHandle.Top())

	parent.Locked(func(in *inner) { in.Children = append(in.Children, child) })
	return child
}

// Exec replaces the task's address space in place with a fresh ELF image,
// keeping its pid, kernel stack, and position in the task tree.
// Grounded on TaskControlBlock::exec.
func Exec(tcb *ControlBlock, elf memset.ElfImage) {
	newMS, userSP, entry := memset.FromELF(elf, trampolinePPN)
	trapPPN := newMS.TrapContextPPN()

	var oldMS *memset.MemorySet
	var oldTrapPPN addr.PPN
	tcb.Locked(func(in *inner) {
		oldMS = in.MemSet
		oldTrapPPN = in.TrapContextPPN
		in.MemSet = newMS
		in.TrapContextPPN = trapPPN
		in.BaseSize = uint64(userSP)
	})
	oldMS.RecycleDataPages()
	oldMS.Drop()
	trapctx.Release(oldTrapPPN)

	tc := trapctx.At(trapPPN)
	*tc = trapctx.New(entry, userSP, tcb.KStack.Top())
}

// Exit marks the task a zombie with the given exit code, reparenting its
// children to the init task and releasing its address space's data pages
// (the page table itself is released later by Waitpid's reaper). Grounded
// on TaskControlBlock::exit semantics embedded in rcore-os's exit_current
// flow.
func Exit(tcb *ControlBlock, initTask *ControlBlock, code int32) {
	var ms *memset.MemorySet
	var trapPPN addr.PPN
	var children []*ControlBlock
	tcb.Locked(func(in *inner) {
		in.Status = defs.Zombie
		in.ExitCode = code
		children = in.Children
		in.Children = nil
		ms = in.MemSet
		trapPPN = in.TrapContextPPN
	})

	for _, c := range children {
		c.Locked(func(in *inner) { in.Parent = &weakRef{target: initTask} })
	}
	initTask.Locked(func(in *inner) { in.Children = append(in.Children, children...) })

	ms.RecycleDataPages()
	trapctx.Release(trapPPN)
}

// Waitpid looks among tcb's children for a zombie matching pid (or any
// zombie when pid == -1), removes it from the child list, releases its
// remaining resources (page table, pid, kernel stack), writes its exit
// code through exitCodeOut, and returns its pid. Returns
// (-1, defs.ErrNotReady) if a matching child exists but has not yet
// exited, or (-1, defs.ErrNoChild) if no matching child exists at all.
// Grounded on TaskControlBlock::waitpid in the original source and on
// biscuit's Wait4 reaping of a dead child's thread state.
func Waitpid(tcb *ControlBlock, pid int, exitCodeOut *int32) (int, defs.Err_t) {
	var found *ControlBlock
	var idx = -1
	var anyMatch bool

	tcb.Locked(func(in *inner) {
		for i, c := range in.Children {
			if pid != -1 && c.PID.PID() != pid {
				continue
			}
			anyMatch = true
			if c.Status() == defs.Zombie {
				found = c
				idx = i
				break
			}
		}
	})

	if !anyMatch {
		return -1, defs.ErrNoChild
	}
	if found == nil {
		return -1, defs.ErrNotReady
	}

	tcb.Locked(func(in *inner) {
		in.Children = append(in.Children[:idx], in.Children[idx+1:]...)
	})

	found.Locked(func(in *inner) {
		if exitCodeOut != nil {
			*exitCodeOut = in.ExitCode
		}
	})
	found.MemorySet().Drop()
	found.KStack.Unmap()
	found.PID.Release()

	return found.PID.PID(), 0
}
