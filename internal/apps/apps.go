// Package apps holds the program bodies run by this kernel's built-in
// user tasks: init, the shell, and the fork-stress test — shared by
// cmd/kernel (which boots the real init→shell flow) and the standalone
// cmd/initproc, cmd/usershell, cmd/forktest binaries (which each boot a
// fresh kernel instance running just one of these, for isolated manual
// testing). Grounded on rcore-os's original_source/user/src/bin/
// {initproc,user_shell,forktest}.rs.
package apps

import (
	"fmt"

	"rvcore/syscall"
	"rvcore/task"
	"rvcore/userlib"
)

// execByName replaces tcb's address space with the named exec target's
// image and, if a runnable body is registered for that name (see
// internal/appimage), runs it directly on tcb's own goroutine — control
// never returns to whatever ran before the exec, the in-process analog
// of exec() not returning to its caller. Reports whether name resolved
// to anything at all.
func execByName(tcb *task.ControlBlock, name string) bool {
	img, ok := syscall.ExecLookup(name)
	if !ok {
		return false
	}
	task.Exec(tcb, img)
	if syscall.ExecRun != nil {
		if run, ok := syscall.ExecRun(name); ok {
			run(tcb)
		}
	}
	return true
}

// InitProc forks a child that execs into the shell, then loops reaping
// zombies until it has no children left. Grounded on initproc.rs, which
// forks rather than execs itself into user_shell so that the init task
// (pid 0) survives
// to keep reaping every other process's orphans for the life of the
// kernel.
func InitProc(tcb *task.ControlBlock) {
	userlib.ForkWith(tcb, func(child *task.ControlBlock) {
		if !execByName(child, "user_shell") {
			userlib.Exit(child, -1)
		}
	})

	for {
		var code int32
		pid := userlib.Waitpid(tcb, -1, &code)
		if pid == int64(-1) { // no children left at all
			return
		}
		if pid == int64(-2) { // children exist, none zombie yet
			userlib.Yield(tcb)
		}
	}
}

// UserShell reads one line at a time from stdin, execs it as a child
// task (looked up by name through syscall.ExecLookup), and waits for
// that child before prompting again. Grounded on user_shell.rs, minus
// terminal line editing (spec.md's dropped-feature list; a raw byte
// reader stands in for it here).
func UserShell(tcb *task.ControlBlock) {
	for {
		userlib.Write(tcb, 1, []byte(">> "))
		line := readLine(tcb)
		if line == "" {
			continue
		}

		childPID := userlib.ForkWith(tcb, func(child *task.ControlBlock) {
			if !execByName(child, line) {
				userlib.Write(child, 1, []byte("unknown command: "+line+"\n"))
				userlib.Exit(child, -1)
			}
		})

		var childCode int32
		userlib.Waitpid(tcb, int(childPID), &childCode)
		userlib.Write(tcb, 1, []byte(fmt.Sprintf("[shell] %s exited with %d\n", line, childCode)))
	}
}

func readLine(tcb *task.ControlBlock) string {
	var line []byte
	var b [1]byte
	for {
		n := userlib.Read(tcb, 0, b[:])
		if n <= 0 {
			userlib.Yield(tcb)
			continue
		}
		if b[0] == '\n' || b[0] == '\r' {
			break
		}
		line = append(line, b[0])
	}
	return string(line)
}

// ForkTest spawns n children, each immediately exiting with its own
// index as exit code, then waits for all of them and reports any whose
// exit code did not match. Grounded on forktest.rs / forktest2.rs's
// fork-storm stress shape (spec.md section 8's invariant that every
// child's exit code survives the trip through waitpid).
func ForkTest(tcb *task.ControlBlock, n int) (mismatches int) {
	pids := make([]int64, n)
	for i := 0; i < n; i++ {
		want := int32(i)
		pids[i] = userlib.ForkWith(tcb, func(child *task.ControlBlock) {
			userlib.Exit(child, want)
		})
	}

	for i, pid := range pids {
		var code int32
		for {
			got := userlib.Waitpid(tcb, int(pid), &code)
			if got == int64(-2) {
				userlib.Yield(tcb)
				continue
			}
			break
		}
		if code != int32(i) {
			mismatches++
		}
	}
	return mismatches
}
