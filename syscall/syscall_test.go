package syscall_test

import (
	"testing"

	"rvcore/addr"
	"rvcore/defs"
	"rvcore/internal/boot"
	"rvcore/memset"
	"rvcore/syscall"
	"rvcore/task"
	"rvcore/uaccess"
	"rvcore/userlib"
)

func setup(t *testing.T) *task.ControlBlock {
	t.Helper()
	boot.Bootstrap()
	initTask := task.New(userlib.TrivialImage())
	syscall.InitTask = initTask
	task.SetInitTask(initTask)
	return initTask
}

func TestDispatchWriteReadsFromUserBuffer(t *testing.T) {
	setup(t)
	tcb := task.New(userlib.TrivialImage())

	var written []byte
	syscall.StdoutWrite = func(b []byte) { written = append(written, b...) }

	pt := tcb.MemorySet().PageTable()
	va := tcb.TrapContext().X[2] - 64 // below the stack pointer, inside the mapped page
	uaccess.CopyOut(pt, addr.VA(va), []byte("hi"))

	tc := tcb.TrapContext()
	tc.X[17] = syscall.SysWrite
	tc.X[10], tc.X[11], tc.X[12] = 1, uint64(va), 2

	ret := syscall.Dispatch(tcb)
	if ret != 2 {
		t.Fatalf("sys_write returned %d, want 2", ret)
	}
	if string(written) != "hi" {
		t.Fatalf("stdout got %q, want %q", written, "hi")
	}
}

func TestDispatchWriteWrongFDIsError(t *testing.T) {
	setup(t)
	tcb := task.New(userlib.TrivialImage())
	syscall.StdoutWrite = func([]byte) {}

	tc := tcb.TrapContext()
	tc.X[17] = syscall.SysWrite
	tc.X[10], tc.X[11], tc.X[12] = 2, 0, 0

	if ret := syscall.Dispatch(tcb); ret != int64(defs.ErrBadAddr) {
		t.Fatalf("sys_write on fd 2 = %d, want %d", ret, defs.ErrBadAddr)
	}
}

func TestDispatchReadStopsWhenConsoleEmpty(t *testing.T) {
	setup(t)
	tcb := task.New(userlib.TrivialImage())
	bytes := []byte("ab")
	syscall.StdinByte = func() (byte, bool) {
		if len(bytes) == 0 {
			return 0, false
		}
		b := bytes[0]
		bytes = bytes[1:]
		return b, true
	}

	va := tcb.TrapContext().X[2] - 64
	tc := tcb.TrapContext()
	tc.X[17] = syscall.SysRead
	tc.X[10], tc.X[11], tc.X[12] = 0, uint64(va), 8

	ret := syscall.Dispatch(tcb)
	if ret != 2 {
		t.Fatalf("sys_read returned %d, want 2", ret)
	}
}

func TestDispatchForkAddsChildToReadyQueueAndZeroesA0(t *testing.T) {
	setup(t)
	tcb := task.New(userlib.TrivialImage())
	tc := tcb.TrapContext()
	tc.X[17] = syscall.SysFork

	childPID := syscall.Dispatch(tcb)
	if childPID == int64(tcb.PID.PID()) {
		t.Fatal("fork should return a distinct child pid")
	}
}

func TestDispatchExecUnknownPathIsError(t *testing.T) {
	setup(t)
	tcb := task.New(userlib.TrivialImage())
	syscall.ExecLookup = func(string) (memset.ElfImage, bool) { return memset.ElfImage{}, false }

	pt := tcb.MemorySet().PageTable()
	va := tcb.TrapContext().X[2] - 64
	uaccess.CopyOut(pt, addr.VA(va), append([]byte("nope"), 0))

	tc := tcb.TrapContext()
	tc.X[17] = syscall.SysExec
	tc.X[10] = uint64(va)

	if ret := syscall.Dispatch(tcb); ret != int64(defs.ErrBadAddr) {
		t.Fatalf("exec of an unknown path = %d, want %d", ret, defs.ErrBadAddr)
	}
}

func TestDispatchExecRunsRegisteredBody(t *testing.T) {
	setup(t)
	tcb := task.New(userlib.TrivialImage())
	syscall.ExecLookup = func(string) (memset.ElfImage, bool) { return userlib.TrivialImage(), true }
	ran := false
	syscall.ExecRun = func(string) (func(*task.ControlBlock), bool) {
		return func(*task.ControlBlock) { ran = true }, true
	}

	pt := tcb.MemorySet().PageTable()
	va := tcb.TrapContext().X[2] - 64
	uaccess.CopyOut(pt, addr.VA(va), append([]byte("prog"), 0))

	tc := tcb.TrapContext()
	tc.X[17] = syscall.SysExec
	tc.X[10] = uint64(va)

	syscall.Dispatch(tcb)
	if !ran {
		t.Fatal("expected the registered ExecRun body to run after exec replaces the address space")
	}
}

func TestDispatchWaitpidNoChild(t *testing.T) {
	setup(t)
	tcb := task.New(userlib.TrivialImage())
	tc := tcb.TrapContext()
	tc.X[17] = syscall.SysWaitpid
	negOne := int64(-1)
	tc.X[10] = uint64(negOne)
	tc.X[11] = 0

	if ret := syscall.Dispatch(tcb); ret != int64(defs.ErrNoChild) {
		t.Fatalf("waitpid with no children = %d, want %d", ret, defs.ErrNoChild)
	}
}

func TestDispatchUnknownSyscallPanics(t *testing.T) {
	setup(t)
	tcb := task.New(userlib.TrivialImage())
	tc := tcb.TrapContext()
	tc.X[17] = 0xffff

	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic on an unsupported syscall number")
		}
	}()
	syscall.Dispatch(tcb)
}
