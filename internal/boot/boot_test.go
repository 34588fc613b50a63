package boot_test

import (
	"testing"

	"rvcore/internal/boot"
	"rvcore/sched"
	"rvcore/syscall"
	"rvcore/task"
	"rvcore/trap"
	"rvcore/userlib"
)

func TestBootstrapWiresTrapAndConsole(t *testing.T) {
	k := boot.Bootstrap()
	if k.Space == nil {
		t.Fatal("expected a non-nil kernel address space")
	}
	if trap.SyscallFn == nil {
		t.Fatal("Bootstrap should wire trap.SyscallFn")
	}
	if syscall.StdinByte == nil || syscall.StdoutWrite == nil {
		t.Fatal("Bootstrap should wire console StdinByte/StdoutWrite")
	}
}

func TestBootstrapSupportsBuildingATask(t *testing.T) {
	boot.Bootstrap()
	tcb := task.New(userlib.TrivialImage())
	if tcb.MemorySet() == nil {
		t.Fatal("a task built right after Bootstrap should have a usable address space")
	}
}

func TestRunLoopStopsWhenQueueEmpty(t *testing.T) {
	boot.Bootstrap()
	calls := 0
	boot.RunLoop(countingProcessor{calls: &calls})
	if calls != 1 {
		t.Fatalf("RunLoop should call RunOne exactly once before seeing it return false, got %d calls", calls)
	}
}

type countingProcessor struct{ calls *int }

func (c countingProcessor) RunOne() bool {
	*c.calls++
	return false
}

func TestRunLoopDrainsRealReadyQueue(t *testing.T) {
	boot.Bootstrap()
	tcb := task.New(userlib.TrivialImage())
	ran := false
	tcb.Start(func(*task.ControlBlock) { ran = true })
	userlib.Spawn(tcb)

	boot.RunLoop(sched.CurrentProcessor)
	if !ran {
		t.Fatal("RunLoop should drive the real scheduler until its queue is empty")
	}
}
