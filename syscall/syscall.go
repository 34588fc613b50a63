// Package syscall dispatches a trapped ecall to its handler by syscall
// number, matching the numbering spec.md section 6 borrows from the
// standard RISC-V Linux ABI. Grounded on biscuit's syscall/syscall.go
// Syscall dispatch switch and on rcore-os's original_source/syscall/
// mod.rs's sys_call match.
package syscall

import (
	"time"

	"rvcore/addr"
	"rvcore/defs"
	"rvcore/memset"
	"rvcore/sched"
	"rvcore/task"
	"rvcore/timer"
	"rvcore/uaccess"
)

func addrOf(v uint64) addr.VA { return addr.VA(v) }

// Numbers matching spec.md section 6.
const (
	SysRead    = 63
	SysWrite   = 64
	SysExit    = 93
	SysYield   = 124
	SysGetTime = 169
	SysFork    = 220
	SysExec    = 221
	SysWaitpid = 260
)

// ExecLookup resolves a path to an ELF image for sys_exec. Set by the
// boot harness to a lookup over the mounted easy-fs image (or, in
// appimage mode, over the compiled-in app list).
var ExecLookup func(path string) (memset.ElfImage, bool)

// ExecRun resolves a path to the Go closure that plays the role of that
// binary's compiled code, run directly on the exec'ing task's own
// goroutine once its address space has been replaced — the in-process
// analog of control never returning to the code that called exec(). Set
// alongside ExecLookup by internal/appimage; a path present in
// ExecLookup but absent here execs into an address space that simply
// runs no further code before returning (exit code 0).
var ExecRun func(path string) (func(*task.ControlBlock), bool)

// StdinByte reads one byte from the console without blocking forever,
// returning ok=false if none is available. Set by the boot harness to
// sbi.ConsoleGetChar.
var StdinByte func() (byte, bool)

// StdoutWrite writes bytes to the console. Set by the boot harness to a
// loop over sbi.ConsolePutChar.
var StdoutWrite func([]byte)

// InitTask is the task children are reparented to on exit. Set once by
// the boot harness.
var InitTask *task.ControlBlock

// Dispatch decodes tcb's trap-context registers as a syscall (a7 = number,
// a0-a2 = arguments) and returns the value to place in a0. Grounded on
// biscuit's Syscall switch: one case per syscall number, each delegating
// to a small sys_* function.
func Dispatch(tcb *task.ControlBlock) int64 {
	tc := tcb.TrapContext()
	num := tc.X[17] // a7
	a0, a1, a2 := tc.X[10], tc.X[11], tc.X[12]

	switch num {
	case SysRead:
		return sysRead(tcb, int(a0), a1, int(a2))
	case SysWrite:
		return sysWrite(tcb, int(a0), a1, int(a2))
	case SysExit:
		return sysExit(tcb, int32(a0))
	case SysYield:
		return sysYield(tcb)
	case SysGetTime:
		return sysGetTime()
	case SysFork:
		return sysFork(tcb)
	case SysExec:
		return sysExec(tcb, a0)
	case SysWaitpid:
		return sysWaitpid(tcb, int(int64(int32(a0))), a1)
	default:
		panic("syscall: unsupported syscall number")
	}
}

// sysRead services fd 0 (stdin) only, matching spec.md section 6's
// Non-goal of a general file-descriptor table: it copies up to len bytes
// into the user buffer at buf, one console byte at a time, returning the
// count actually read (0 if the console had nothing available).
func sysRead(tcb *task.ControlBlock, fd int, buf uint64, length int) int64 {
	if fd != 0 {
		return int64(defs.ErrBadAddr)
	}
	pt := tcb.MemorySet().PageTable()
	read := 0
	for read < length {
		b, ok := StdinByte()
		if !ok {
			break
		}
		uaccess.CopyOut(pt, addrOf(buf)+addrOf(uint64(read)), []byte{b})
		read++
	}
	return int64(read)
}

// sysWrite services fd 1 (stdout) only, copying len bytes out of the
// user buffer at buf and writing them to the console.
func sysWrite(tcb *task.ControlBlock, fd int, buf uint64, length int) int64 {
	if fd != 1 {
		return int64(defs.ErrBadAddr)
	}
	pt := tcb.MemorySet().PageTable()
	out := make([]byte, length)
	uaccess.CopyIn(pt, addrOf(buf), out)
	StdoutWrite(out)
	return int64(length)
}

func sysExit(tcb *task.ControlBlock, code int32) int64 {
	task.Exit(tcb, InitTask, code)
	return 0
}

func sysYield(tcb *task.ControlBlock) int64 {
	sched.Suspend(tcb)
	return 0
}

func sysGetTime() int64 {
	return timer.GetTimeUS(time.Now())
}

func sysFork(parent *task.ControlBlock) int64 {
	child := task.Fork(parent)
	childTrap := child.TrapContext()
	childTrap.X[10] = 0 // fork returns 0 in the child
	sched.Global.Add(child)
	return int64(child.PID.PID())
}

func sysExec(tcb *task.ControlBlock, pathAddr uint64) int64 {
	pt := tcb.MemorySet().PageTable()
	path := uaccess.Str(pt, addrOf(pathAddr))
	if ExecLookup == nil {
		return int64(defs.ErrBadAddr)
	}
	elf, ok := ExecLookup(path)
	if !ok {
		return int64(defs.ErrBadAddr)
	}
	task.Exec(tcb, elf)
	if ExecRun != nil {
		if run, ok := ExecRun(path); ok {
			run(tcb)
		}
	}
	return 0
}

// sysWaitpid waits for a child matching pid (or any child when pid == -1)
// and, on success, writes its exit code into the user int32 at
// exitCodeAddr.
func sysWaitpid(tcb *task.ControlBlock, pid int, exitCodeAddr uint64) int64 {
	var code int32
	gotPID, err := task.Waitpid(tcb, pid, &code)
	if err != 0 {
		return int64(err)
	}
	if exitCodeAddr != 0 {
		pt := tcb.MemorySet().PageTable()
		var buf [4]byte
		buf[0] = byte(code)
		buf[1] = byte(code >> 8)
		buf[2] = byte(code >> 16)
		buf[3] = byte(code >> 24)
		uaccess.CopyOut(pt, addrOf(exitCodeAddr), buf[:])
	}
	return int64(gotPID)
}
