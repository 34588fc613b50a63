// Package klog is the kernel's internal logger. It wraps the standard
// library's log package the way biscuit wraps fmt.Printf behind small
// package-level debug switches (see fs/blk.go's bdev_debug) instead of
// pulling in a structured-logging dependency the teacher never used: the
// kernel core has no third-party logger in its dependency graph, so this
// stays on the standard library by design, not by omission.
package klog

import (
	"log"
	"os"
	"sync/atomic"
)

var logger = log.New(os.Stderr, "kernel: ", log.Lmicroseconds)

var debugEnabled atomic.Bool

// SetDebug toggles verbose tracing for hot paths (block cache hits/misses,
// page-fault resolution, scheduler transitions).
func SetDebug(on bool) {
	debugEnabled.Store(on)
}

// Infof logs a boot/lifecycle milestone. Always emitted.
func Infof(format string, args ...any) {
	logger.Printf(format, args...)
}

// Debugf logs a hot-path trace, compiled out at runtime unless SetDebug(true)
// was called, so the common case pays only an atomic load.
func Debugf(format string, args ...any) {
	if debugEnabled.Load() {
		logger.Printf(format, args...)
	}
}

// Panicf logs then panics, for hard invariant violations (double free, PTE
// state mismatch, ...). The kernel's panic handler (cmd/kernel) is
// responsible for turning this into an SBI shutdown.
func Panicf(format string, args ...any) {
	logger.Printf(format, args...)
	panic(logger.Prefix() + format)
}
