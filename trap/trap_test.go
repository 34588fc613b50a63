package trap_test

import (
	"testing"

	"rvcore/defs"
	"rvcore/internal/boot"
	"rvcore/task"
	"rvcore/trap"
	"rvcore/userlib"
)

func setup(t *testing.T) *task.ControlBlock {
	t.Helper()
	boot.Bootstrap()
	initTask := task.New(userlib.TrivialImage())
	task.SetInitTask(initTask)
	trap.SetInitTask(initTask)
	return initTask
}

func TestHandleUserEnvCallAdvancesSEPCAndSetsA0(t *testing.T) {
	setup(t)
	tcb := task.New(userlib.TrivialImage())
	tc := tcb.TrapContext()
	startSEPC := tc.SEPC

	var sawTCB *task.ControlBlock
	trap.SyscallFn = func(got *task.ControlBlock) int64 {
		sawTCB = got
		return 99
	}

	cont := trap.Handle(tcb, trap.UserEnvCall)
	if !cont {
		t.Fatal("UserEnvCall should report the task continues running")
	}
	if sawTCB != tcb {
		t.Fatal("SyscallFn should be called with the trapping task")
	}
	if tcb.TrapContext().SEPC != startSEPC+4 {
		t.Fatal("Handle should advance SEPC past the ecall instruction")
	}
	if tcb.TrapContext().X[10] != 99 {
		t.Fatal("Handle should place SyscallFn's return value in a0 (X[10])")
	}
}

func TestHandleStorePageFaultKillsTask(t *testing.T) {
	initTask := setup(t)
	tcb := task.Fork(initTask)

	cont := trap.Handle(tcb, trap.StorePageFault)
	if cont {
		t.Fatal("a fault trap should report the task does not continue running")
	}
	if tcb.Status() != defs.Zombie {
		t.Fatalf("status = %v, want Zombie after a fault", tcb.Status())
	}

	var code int32
	if _, err := task.Waitpid(initTask, tcb.PID.PID(), &code); err != 0 {
		t.Fatalf("Waitpid after a store page fault: %v", err)
	}
	if code != int32(defs.ErrPageFault) {
		t.Fatalf("exit code = %d, want %d (spec.md S5: store/page fault exits with -2)", code, defs.ErrPageFault)
	}
}

func TestHandleIllegalInstructionKillsTask(t *testing.T) {
	setup(t)
	tcb := task.New(userlib.TrivialImage())

	trap.Handle(tcb, trap.IllegalInstruction)
	if tcb.Status() != defs.Zombie {
		t.Fatal("illegal instruction should force the task to exit")
	}
}

func TestHandleSupervisorTimerSuspends(t *testing.T) {
	setup(t)
	tcb := task.New(userlib.TrivialImage())
	cont := trap.Handle(tcb, trap.SupervisorTimer)
	if cont {
		t.Fatal("a timer trap should report the task does not continue running (it must be rescheduled)")
	}
}

func TestHandleUnknownCausePanics(t *testing.T) {
	setup(t)
	tcb := task.New(userlib.TrivialImage())
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic on an unsupported trap cause")
		}
	}()
	trap.Handle(tcb, trap.Cause(999))
}
