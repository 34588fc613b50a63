package task_test

import (
	"testing"

	"rvcore/defs"
	"rvcore/internal/boot"
	"rvcore/task"
	"rvcore/userlib"
)

func setup(t *testing.T) {
	t.Helper()
	boot.Bootstrap()
}

func TestNewTaskStartsReady(t *testing.T) {
	setup(t)
	tcb := task.New(userlib.TrivialImage())
	if tcb.Status() != defs.Ready {
		t.Fatalf("status = %v, want Ready", tcb.Status())
	}
	if tcb.MemorySet() == nil {
		t.Fatal("expected a non-nil address space")
	}
	if tcb.Parent() != nil {
		t.Fatal("a task created by New should have no parent")
	}
}

func TestForkAddsChildAndClonesTrapContext(t *testing.T) {
	setup(t)
	parent := task.New(userlib.TrivialImage())
	parentTC := parent.TrapContext()
	parentTC.X[5] = 0xdead

	child := task.Fork(parent)
	if child.Parent() != parent {
		t.Fatal("child's Parent() should be the forking task")
	}
	found := false
	for _, c := range parent.Children() {
		if c == child {
			found = true
		}
	}
	if !found {
		t.Fatal("forked child should appear in parent.Children()")
	}
	if child.TrapContext().X[5] != 0xdead {
		t.Fatal("child's trap context should start as a copy of the parent's")
	}
	if child.PID.PID() == parent.PID.PID() {
		t.Fatal("child must get a distinct pid")
	}
}

func TestExecReplacesAddressSpaceKeepsPID(t *testing.T) {
	setup(t)
	tcb := task.New(userlib.TrivialImage())
	pid := tcb.PID.PID()
	oldMS := tcb.MemorySet()

	task.Exec(tcb, userlib.TrivialImage())

	if tcb.PID.PID() != pid {
		t.Fatal("exec must not change the task's pid")
	}
	if tcb.MemorySet() == oldMS {
		t.Fatal("exec should install a fresh address space")
	}
}

func TestExitMarksZombieAndReparentsChildren(t *testing.T) {
	setup(t)
	initTask := task.New(userlib.TrivialImage())
	parent := task.New(userlib.TrivialImage())
	child := task.Fork(parent)

	task.Exit(parent, initTask, 7)
	if parent.Status() != defs.Zombie {
		t.Fatalf("status = %v, want Zombie", parent.Status())
	}
	if len(parent.Children()) != 0 {
		t.Fatal("exit should clear the exiting task's own child list")
	}
	found := false
	for _, c := range initTask.Children() {
		if c == child {
			found = true
		}
	}
	if !found {
		t.Fatal("orphaned child should be reparented onto initTask")
	}
}

func TestWaitpidNoChildReturnsErrNoChild(t *testing.T) {
	setup(t)
	tcb := task.New(userlib.TrivialImage())
	var code int32
	pid, err := task.Waitpid(tcb, -1, &code)
	if pid != -1 || err != defs.ErrNoChild {
		t.Fatalf("got (%d, %v), want (-1, ErrNoChild)", pid, err)
	}
}

func TestWaitpidChildNotYetZombie(t *testing.T) {
	setup(t)
	parent := task.New(userlib.TrivialImage())
	task.Fork(parent)
	var code int32
	pid, err := task.Waitpid(parent, -1, &code)
	if pid != -1 || err != defs.ErrNotReady {
		t.Fatalf("got (%d, %v), want (-1, ErrNotReady)", pid, err)
	}
}

func TestWaitpidReapsZombieChild(t *testing.T) {
	setup(t)
	initTask := task.New(userlib.TrivialImage())
	parent := task.New(userlib.TrivialImage())
	child := task.Fork(parent)
	task.Exit(child, initTask, 42)

	var code int32
	pid, err := task.Waitpid(parent, -1, &code)
	if err != 0 {
		t.Fatalf("unexpected error %v", err)
	}
	if pid != child.PID.PID() {
		t.Fatalf("reaped pid = %d, want %d", pid, child.PID.PID())
	}
	if code != 42 {
		t.Fatalf("exit code = %d, want 42", code)
	}
	if len(parent.Children()) != 0 {
		t.Fatal("reaped child should be removed from the parent's child list")
	}
}
