// Package timer tracks the kernel's notion of elapsed time, standing in
// for the SBI timer/mtime register this kernel never boots real hardware
// to read — spec.md section 4.9's SupervisorTimer trap and the
// sys_get_time syscall both key off it. Grounded on rcore-os's
// original_source/timer.rs CLOCK_FREQ/TICKS_PER_SEC constants.
package timer

import (
	"sync/atomic"
	"time"

	"rvcore/config"
)

// bootTime is the wall-clock instant timer was initialized, standing in
// for the hardware cycle counter reading zero at boot.
var bootTime time.Time

// ticks counts SetNextTrigger calls, standing in for mtimecmp
// advancing once per scheduling quantum.
var ticks atomic.Int64

// Init records the boot instant. Called once by the boot harness before
// any task runs.
func Init(now time.Time) {
	bootTime = now
}

// GetTimeUS returns elapsed time since Init in microseconds, the value
// sys_get_time copies into user space. Grounded on get_time_us in
// timer.rs: (cycles * 1_000_000) / CLOCK_FREQ, here simply wall-clock
// elapsed time since CLOCK_FREQ is a property of hardware this kernel
// does not boot.
func GetTimeUS(now time.Time) int64 {
	return now.Sub(bootTime).Microseconds()
}

// SetNextTrigger advances the tick counter, mirroring set_next_trigger's
// mtimecmp += CLOCK_FREQ/TICKS_PER_SEC. The value is exposed only for
// diagnostics; nothing in this kernel fires a real timer interrupt off
// of it.
func SetNextTrigger() int64 {
	return ticks.Add(1)
}

// Ticks returns the number of scheduling quanta elapsed so far.
func Ticks() int64 {
	return ticks.Load()
}

// QuantumDuration is how much wall-clock time one scheduling quantum
// represents, derived from config.ClockFreq/config.TicksPerSec the same
// way set_next_trigger derives its mtimecmp step.
var QuantumDuration = time.Second / time.Duration(config.TicksPerSec)
