// Package sbi stands in for the Supervisor Binary Interface calls a real
// RISC-V kernel issues via ecall from S-mode to M-mode firmware: console
// I/O, timer programming, and shutdown. Grounded on rcore-os's
// original_source/sbi.rs (console_putchar/console_getchar/set_timer/
// shutdown), re-expressed as calls into the host process's own stdio the
// way spec.md section 1 permits for anything bare-metal.
package sbi

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"rvcore/timer"
)

var (
	stdout io.Writer = os.Stdout
	stdin            = bufio.NewReader(os.Stdin)
)

// ConsolePutChar writes one byte to the console, the host-process analog
// of SBI's console_putchar ecall.
func ConsolePutChar(c byte) {
	fmt.Fprintf(stdout, "%c", c)
}

// ConsoleGetChar reads one byte from the console, returning (0, false)
// when no byte is available without blocking semantics this host
// implementation chooses not to emulate (it blocks on the real read
// instead, which every caller in this kernel already tolerates).
func ConsoleGetChar() (byte, bool) {
	b, err := stdin.ReadByte()
	if err != nil {
		return 0, false
	}
	return b, true
}

// SetTimer programs the next timer interrupt, standing in for SBI's
// set_timer ecall. This host kernel never receives a real timer
// interrupt; callers use it only to advance timer.Ticks for diagnostics.
func SetTimer() int64 {
	return timer.SetNextTrigger()
}

// Shutdown stops the kernel process, standing in for SBI's
// system-reset/shutdown ecall. failure selects a non-zero host exit
// status, mirroring a panic-triggered shutdown versus a clean one.
func Shutdown(failure bool) {
	if failure {
		os.Exit(1)
	}
	os.Exit(0)
}
