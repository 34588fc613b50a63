// Package defs carries the small cross-cutting types shared by every
// kernel package: the syscall-ABI error sentinel type and the task-status
// enum. Grounded on biscuit's defs package, which plays the same role
// (small, dependency-free, imported by everything).
package defs

// Err_t is the kernel-internal error/result type. Zero means success;
// negative values are sentinel error codes that flow, unmodified, into the
// a0 register on syscall return — the same representation the syscall ABI
// uses, so there is no translation layer between "kernel failed" and
// "userspace sees -1/-2/-3".
type Err_t int

// Sentinel return codes named by the syscall ABI (spec.md section 6/7).
const (
	// ErrNoChild is returned by waitpid when the caller has no matching child.
	ErrNoChild Err_t = -1
	// ErrNotReady is returned by waitpid when a matching child exists but
	// has not yet exited. A stdin read with no data returns a count of 0
	// instead.
	ErrNotReady Err_t = -2
	// ErrIllegalInstruction is the exit code forced on a task that trapped
	// with an illegal instruction.
	ErrIllegalInstruction Err_t = -3
	// ErrBadAddr is returned by exec when the named binary does not exist.
	ErrBadAddr Err_t = -1
	// ErrPageFault is the exit code forced on a task that trapped with a
	// store/page fault — a store to an unmapped or read-only page, or a
	// syscall-supplied user pointer that does not resolve in the task's
	// own page table (spec.md section 7/8 scenario S5).
	ErrPageFault Err_t = -2
)

// TaskStatus is the lifecycle state of a TaskControlBlock.
type TaskStatus int

const (
	// UnInit marks a TCB that has been allocated but not yet scheduled.
	UnInit TaskStatus = iota
	// Ready marks a TCB sitting in the ready queue.
	Ready
	// Running marks the TCB currently executing on the one virtual CPU.
	Running
	// Zombie marks a TCB that has exited and is waiting to be reaped.
	Zombie
)

func (s TaskStatus) String() string {
	switch s {
	case UnInit:
		return "uninit"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Zombie:
		return "zombie"
	default:
		return "unknown"
	}
}
