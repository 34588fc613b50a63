// Command kernel plays the role of firmware plus bootloader plus the
// running kernel image itself: it brings up the physical memory arena,
// wires the SBI shim to the hosting process's own stdio, resolves exec
// targets (against a mounted easy-fs image when one is given, or the
// compiled-in builtins otherwise), and drives the cooperative scheduler
// to completion. Grounded on rcore-os's os/src/main.rs boot sequence and
// on biscuit's kernel/chentry.go for the "one small main wiring
// everything else together" shape a kernel's own entrypoint takes.
package main

import (
	"flag"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"rvcore/blkcache"
	"rvcore/frame"
	"rvcore/internal/apps"
	"rvcore/internal/appimage"
	"rvcore/internal/boot"
	"rvcore/internal/kdiag"
	"rvcore/klog"
	"rvcore/sched"
	"rvcore/syscall"
	"rvcore/task"
	"rvcore/trap"
	"rvcore/userlib"
)

func main() {
	batch := flag.Bool("batch", false, "run a single named app with no fork/multitasking, the batch.rs predecessor mode")
	app := flag.String("app", "user_shell", "in -batch mode, the exec target to run directly as the one and only task")
	imgPath := flag.String("img", "", "path to an easy-fs disk image built by cmd/mkuserimg; exec targets not found on it fall back to the compiled-in builtins")
	rawTTY := flag.Bool("raw-tty", true, "put the hosting terminal into raw mode so console reads are unbuffered, single-character, like real firmware")
	profilePath := flag.String("profile", "", "if set, write a pprof-format frame-allocator occupancy profile here before shutdown")
	debug := flag.Bool("debug", false, "enable klog.Debugf hot-path tracing")
	flag.Parse()

	klog.SetDebug(*debug)

	if *rawTTY {
		restore, err := makeStdinRaw()
		if err != nil {
			klog.Infof("raw-tty: %v (continuing with line-buffered input)", err)
		} else {
			defer restore()
		}
	}

	boot.Bootstrap()
	wireExecTargets(*imgPath)

	if *batch {
		runBatch(*app)
	} else {
		runMultitasking()
	}

	if *profilePath != "" {
		if err := kdiag.WriteFrameProfile(*profilePath, frame.Global); err != nil {
			klog.Infof("profile: %v", err)
		}
	}
}

// wireExecTargets installs syscall.ExecLookup/ExecRun, either against a
// mounted easy-fs image (when imgPath is non-empty) or the compiled-in
// builtins table alone.
func wireExecTargets(imgPath string) {
	if imgPath == "" {
		appimage.InstallBuiltinsOnly()
		return
	}
	disk, err := blkcache.OpenFileDisk(imgPath)
	if err != nil {
		klog.Infof("img: %v (falling back to compiled-in builtins)", err)
		appimage.InstallBuiltinsOnly()
		return
	}
	cache := blkcache.NewCache(64)
	appimage.Mount(disk, cache).Install()
}

// runMultitasking boots the real init->shell->reap flow: pid 0 is the
// init task, which forks pid 1 into the shell and spends the rest of its
// life reaping zombies, with the scheduler free to round-robin any
// number of concurrently forked children in between.
func runMultitasking() {
	init := task.New(userlib.TrivialImage())
	syscall.InitTask = init
	task.SetInitTask(init)
	trap.SetInitTask(init)
	init.Start(apps.InitProc)
	userlib.Spawn(init)

	boot.RunLoop(sched.CurrentProcessor)
}

// runBatch runs exactly one task directly, with no fork and a ready
// queue that only ever holds that one task — rcore-os's early batch.rs
// predecessor to full multitasking, kept here as a documented historical
// stage (spec.md's supplemented-features list) useful for isolating
// memory-subsystem bugs from scheduler bugs.
func runBatch(appName string) {
	run, ok := lookupRun(appName)
	if !ok {
		fmt.Fprintf(os.Stderr, "kernel: -batch: no such app %q\n", appName)
		os.Exit(1)
	}

	t := task.New(userlib.TrivialImage())
	syscall.InitTask = t
	task.SetInitTask(t)
	trap.SetInitTask(t)
	t.Start(run)
	userlib.Spawn(t)

	boot.RunLoop(sched.CurrentProcessor)
}

func lookupRun(name string) (func(*task.ControlBlock), bool) {
	if syscall.ExecRun == nil {
		return nil, false
	}
	return syscall.ExecRun(name)
}

// makeStdinRaw puts fd 0 into raw mode (no line buffering, no echo, no
// signal-generating control characters) via golang.org/x/sys/unix
// termios ioctls, returning a restore function. Grounded on the
// cfmakeraw(3) field manipulation x/sys/unix exposes directly instead of
// wrapping, since this module otherwise has no terminal-handling
// dependency to reach for.
func makeStdinRaw() (restore func(), err error) {
	fd := int(os.Stdin.Fd())
	orig, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, err
	}

	raw := *orig
	raw.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	raw.Oflag &^= unix.OPOST
	raw.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	raw.Cflag &^= unix.CSIZE | unix.PARENB
	raw.Cflag |= unix.CS8
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		return nil, err
	}
	return func() { unix.IoctlSetTermios(fd, unix.TCSETS, orig) }, nil
}
