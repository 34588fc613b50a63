// Package sched implements the ready queue and the single-core processor
// that drives task switches — spec.md section 4.8. Grounded on rcore-os's
// original_source/task/manager.rs and processor.rs, expressed without
// assembly: this kernel never suspends a real register file, so "context
// switch" here means handing the Go call stack from the idle loop to
// whichever task function the trap/syscall path decides to resume next.
package sched

import (
	"container/list"
	"sync"

	"rvcore/defs"
	"rvcore/task"
)

// Manager is the FIFO ready queue shared by every core. Grounded on
// TaskManager in manager.rs: push at the back, pop from the front.
type Manager struct {
	mu    sync.Mutex
	ready *list.List
}

// Global is the kernel's one ready queue.
var Global = NewManager()

// NewManager returns an empty ready queue.
func NewManager() *Manager {
	return &Manager{ready: list.New()}
}

// Add appends tcb to the back of the ready queue.
func (m *Manager) Add(tcb *task.ControlBlock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready.PushBack(tcb)
}

// Fetch removes and returns the task at the front of the ready queue, or
// nil if the queue is empty.
func (m *Manager) Fetch() *task.ControlBlock {
	m.mu.Lock()
	defer m.mu.Unlock()
	front := m.ready.Front()
	if front == nil {
		return nil
	}
	m.ready.Remove(front)
	return front.Value.(*task.ControlBlock)
}

// Processor tracks which task is presently running on this core.
// Grounded on processor.rs's Processor struct (current + idle_task_cx);
// the idle task context itself has no analog here since idling is just
// RunOne returning to its caller's loop.
type Processor struct {
	mu      sync.Mutex
	current *task.ControlBlock
}

// CurrentProcessor is the kernel's one (single-core) processor.
var CurrentProcessor = &Processor{}

// Current returns the task presently running on this core, or nil if the
// core is idle.
func (p *Processor) Current() *task.ControlBlock {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// TakeCurrent clears and returns the presently running task, leaving the
// processor idle — used when a task suspends or exits and control returns
// to the scheduling loop.
func (p *Processor) TakeCurrent() *task.ControlBlock {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur := p.current
	p.current = nil
	return cur
}

func (p *Processor) setCurrent(tcb *task.ControlBlock) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = tcb
}

// RunOne pops the next ready task (if any), marks it Running and current,
// and resumes its goroutine. Resume blocks until the task next suspends
// (via Suspend/Park) or exits (its program function returns), at which
// point RunOne clears the current task and returns true. Returns false
// when the ready queue is empty. Grounded on run_tasks's fetch-switch-loop
// in processor.rs, collapsed across the processor/task goroutine boundary
// described on task.ControlBlock in place of an assembly __switch.
func (p *Processor) RunOne() bool {
	tcb := Global.Fetch()
	if tcb == nil {
		return false
	}
	tcb.SetStatus(defs.Running)
	p.setCurrent(tcb)
	tcb.Resume()
	p.TakeCurrent()
	return true
}

// Suspend moves the currently running task back onto the ready queue,
// marking it Ready, then parks its goroutine until the processor resumes
// it again. Called from the task's own goroutine (via userlib.Yield), it
// only returns once this task is next chosen to run. Grounded on
// rcore-os's suspend_current_and_run_next, split across the
// processor/task goroutine boundary described on ControlBlock.
func Suspend(tcb *task.ControlBlock) {
	tcb.SetStatus(defs.Ready)
	Global.Add(tcb)
	tcb.Park()
}

