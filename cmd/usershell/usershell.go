// Command usershell boots a standalone kernel instance running just the
// shell program directly as pid 0 (skipping the init/exec indirection),
// for manual interactive testing of command dispatch and exec lookup.
package main

import (
	"rvcore/internal/apps"
	"rvcore/internal/appimage"
	"rvcore/internal/boot"
	"rvcore/sched"
	"rvcore/syscall"
	"rvcore/task"
	"rvcore/trap"
	"rvcore/userlib"
)

func main() {
	boot.Bootstrap()
	appimage.InstallBuiltinsOnly()

	shell := task.New(userlib.TrivialImage())
	syscall.InitTask = shell
	task.SetInitTask(shell)
	trap.SetInitTask(shell)
	shell.Start(apps.UserShell)
	userlib.Spawn(shell)

	boot.RunLoop(sched.CurrentProcessor)
}
