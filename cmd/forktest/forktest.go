// Command forktest boots a standalone kernel instance and runs the
// fork-storm stress scenario directly, reporting any child whose exit
// code did not survive the round trip through fork/exit/waitpid.
package main

import (
	"flag"
	"fmt"
	"os"

	"rvcore/internal/apps"
	"rvcore/internal/appimage"
	"rvcore/internal/boot"
	"rvcore/klog"
	"rvcore/sched"
	"rvcore/syscall"
	"rvcore/task"
	"rvcore/trap"
	"rvcore/userlib"
)

func main() {
	n := flag.Int("n", 64, "number of children to fork")
	flag.Parse()

	boot.Bootstrap()
	appimage.InstallBuiltinsOnly()

	root := task.New(userlib.TrivialImage())
	syscall.InitTask = root
	task.SetInitTask(root)
	trap.SetInitTask(root)

	var mismatches int
	root.Start(func(tcb *task.ControlBlock) {
		mismatches = apps.ForkTest(tcb, *n)
	})
	userlib.Spawn(root)

	boot.RunLoop(sched.CurrentProcessor)

	if mismatches > 0 {
		klog.Infof("forktest: %d of %d children returned the wrong exit code", mismatches, *n)
		fmt.Fprintf(os.Stderr, "forktest: FAILED (%d mismatches)\n", mismatches)
		os.Exit(1)
	}
	fmt.Printf("forktest: OK (%d children)\n", *n)
}
