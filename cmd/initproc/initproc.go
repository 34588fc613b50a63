// Command initproc boots a standalone kernel instance and runs just the
// init→shell→reap flow, for manual testing of that flow in isolation
// from cmd/kernel's full -batch/appimage wiring.
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

	init := task.New(userlib.TrivialImage())
	syscall.InitTask = init
	task.SetInitTask(init)
	trap.SetInitTask(init)
	init.Start(apps.InitProc)
	userlib.Spawn(init)

	boot.RunLoop(sched.CurrentProcessor)
}
