// Package userlib is the syscall-wrapper runtime linked into every user
// program in this kernel: cmd/initproc, cmd/usershell, cmd/forktest.
// Since this kernel has no RISC-V instruction decoder standing between a
// task and the syscalls it issues (spec.md section 1 permits replacing
// bare-metal execution with equivalent behavior), a "user program" here is
// an ordinary Go function that calls these wrappers directly; each
// wrapper drives the same trap.Handle/syscall.Dispatch path a real ecall
// would, by building the trap context a real ecall would have left
// behind and running it through the kernel's dispatch table. Grounded on
// rcore-os's original_source/user/src/lib.rs syscall wrapper shape (one
// thin function per syscall number) and on biscuit's litter of small
// wrapper functions around raw Syscall calls.
package userlib

import (
	"rvcore/addr"
	"rvcore/config"
	"rvcore/defs"
	"rvcore/memset"
	"rvcore/sched"
	"rvcore/syscall"
	"rvcore/task"
	"rvcore/trap"
	"rvcore/uaccess"
)

// call issues syscall number num with up to three arguments by writing
// them into tcb's trap context exactly where a real ecall would leave
// them (a7 = num, a0-a2 = args), then runs it through trap.Handle's
// UserEnvCall arm — the same path a real ecall trap takes — and returns
// the resulting a0. Routing through trap.Handle rather than calling
// syscall.Dispatch directly means every wrapper in this package exercises
// the same trap-cause dispatch a StoreFault or IllegalInstruction would,
// not a shortcut around it.
func call(tcb *task.ControlBlock, num uint64, a0, a1, a2 uint64) int64 {
	tc := tcb.TrapContext()
	tc.X[17] = num
	tc.X[10], tc.X[11], tc.X[12] = a0, a1, a2
	trap.Handle(tcb, trap.UserEnvCall)
	return int64(tcb.TrapContext().X[10])
}

// Write writes buf to fd through sys_write, copying buf into the task's
// own address space first since the real syscall ABI takes a user
// pointer, not a kernel slice.
func Write(tcb *task.ControlBlock, fd int, buf []byte) int64 {
	scratch := scratchAddr(tcb, len(buf))
	pt := tcb.MemorySet().PageTable()
	uaccess.CopyOut(pt, scratch, buf)
	return call(tcb, syscall.SysWrite, uint64(fd), uint64(scratch), uint64(len(buf)))
}

// Read reads up to len(buf) bytes from fd through sys_read, returning the
// count actually read.
func Read(tcb *task.ControlBlock, fd int, buf []byte) int64 {
	scratch := scratchAddr(tcb, len(buf))
	n := call(tcb, syscall.SysRead, uint64(fd), uint64(scratch), uint64(len(buf)))
	if n > 0 {
		pt := tcb.MemorySet().PageTable()
		uaccess.CopyIn(pt, scratch, buf[:n])
	}
	return n
}

// Exit terminates the calling task with code, via sys_exit. It never
// returns control to the caller's Go goroutine in the sense that the
// task is marked Zombie; callers still return normally from their own Go
// function, mirroring the fact that sys_exit never returns in a real
// kernel only because the task is gone — here the goroutine simply stops
// being scheduled.
func Exit(tcb *task.ControlBlock, code int32) {
	call(tcb, syscall.SysExit, uint64(uint32(code)), 0, 0)
}

// Yield gives up the remainder of the task's quantum via sys_yield.
func Yield(tcb *task.ControlBlock) { call(tcb, syscall.SysYield, 0, 0, 0) }

// GetTime returns elapsed microseconds via sys_get_time.
func GetTime(tcb *task.ControlBlock) int64 { return call(tcb, syscall.SysGetTime, 0, 0, 0) }

// ForkWith creates a child of parent and starts it running childProgram
// on its own goroutine, scheduling it on the ready queue, and returns the
// child's pid. A real fork returns twice — once in each process, with
// the child observing a 0 return — which a single Go call stack cannot
// reproduce; ForkWith makes that split explicit instead of pretending a
// shared return value can stand in for it, at the cost of the child not
// literally resuming parent's code at the fork point the way rCore's
// user-mode fork does. The underlying TCB-level fork (address space deep
// copy, pid/kernel-stack allocation, trap context clone) is exactly
// task.Fork, the same primitive syscall.Dispatch's sys_fork case drives.
func ForkWith(parent *task.ControlBlock, childProgram func(*task.ControlBlock)) int64 {
	child := task.Fork(parent)
	childTrap := child.TrapContext()
	childTrap.X[10] = 0 // fork returns 0 in the child
	child.Start(childProgram)
	Spawn(child)
	return int64(child.PID.PID())
}

// Waitpid waits for pid (-1 for any child) and returns its pid, writing
// its exit code into exitCode if non-nil. While a matching child exists
// but has not exited, it yields and retries; it returns -1 if there is no
// matching child.
func Waitpid(tcb *task.ControlBlock, pid int, exitCode *int32) int64 {
	var scratch addr.VA
	if exitCode != nil {
		scratch = scratchAddr(tcb, 4)
	}
	ret := call(tcb, syscall.SysWaitpid, uint64(int64(pid)), uint64(scratch), 0)
	for ret == int64(defs.ErrNotReady) {
		Yield(tcb)
		ret = call(tcb, syscall.SysWaitpid, uint64(int64(pid)), uint64(scratch), 0)
	}
	if exitCode == nil {
		return ret
	}
	if ret >= 0 {
		var buf [4]byte
		pt := tcb.MemorySet().PageTable()
		uaccess.CopyIn(pt, scratch, buf[:])
		*exitCode = int32(uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24)
	}
	return ret
}

// scratchAddr returns a user-space address with at least n bytes free
// below the task's current stack pointer, used as a landing pad for
// syscall buffers so wrapper functions never need to hand the kernel a
// kernel-space pointer.
func scratchAddr(tcb *task.ControlBlock, n int) addr.VA {
	tc := tcb.TrapContext()
	sp := addr.VA(tc.X[2])
	return sp - addr.VA(n)
}

// Spawn hands off a task to the scheduler's ready queue, the step every
// Fork caller (or the boot harness, for the first task) must perform
// before the task can run.
func Spawn(tcb *task.ControlBlock) { sched.Global.Add(tcb) }

// TrivialImage returns a one-segment ElfImage occupying a single RWX page
// at config.AppBase. Every user program in this kernel is really a Go
// function driving the task through its syscall wrappers rather than a
// stream of fetched RISC-V instructions (see the package doc comment), so
// the address space it runs in only needs to exist, not contain real
// machine code.
func TrivialImage() memset.ElfImage {
	return memset.ElfImage{
		Entry: addr.VA(config.AppBase),
		Segments: []memset.ElfSegment{{
			VAddr:      addr.VA(config.AppBase),
			MemSize:    config.PageSize,
			FileSize:   0,
			Readable:   true,
			Writable:   true,
			Executable: true,
		}},
	}
}
