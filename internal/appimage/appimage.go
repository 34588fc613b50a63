// Package appimage resolves an exec() target name to a runnable program,
// standing in for rcore-os's loader.rs app-name-to-ELF-bytes table. The
// out-of-scope half of that table — the _num_app/app_names linker symbols
// an embedded kernel image would use — stays out of scope per spec.md
// section 1; this package instead looks names up against an easy-fs
// volume built by cmd/mkuserimg, the way a real kernel would resolve exec
// against a mounted filesystem rather than linker-embedded bytes.
//
// Since this kernel has no RISC-V instruction decoder (userlib's package
// doc explains why), the bytes a looked-up file holds are never actually
// executed. What runs in their place is a small compiled-in table of Go
// closures — the kernel's own built-in programs — keyed by the same name.
// A name present in the mounted image but absent from that table still
// execs (the task's address space is replaced) but runs no further code,
// which is indistinguishable, from inside this kernel, from a real binary
// that happens to do nothing.
package appimage

import (
	"rvcore/blkcache"
	"rvcore/easyfs"
	"rvcore/internal/apps"
	"rvcore/memset"
	"rvcore/syscall"
	"rvcore/task"
	"rvcore/userlib"
)

// builtins maps an exec target name to the Go closure that plays the role
// of its compiled program body.
var builtins = map[string]func(*task.ControlBlock){
	"user_shell": apps.UserShell,
	"forktest":   runForkTest,
}

func runForkTest(tcb *task.ControlBlock) {
	mismatches := apps.ForkTest(tcb, 16)
	if mismatches > 0 {
		userlib.Exit(tcb, 1)
		return
	}
	userlib.Exit(tcb, 0)
}

// Loader resolves exec targets against a mounted easy-fs volume.
type Loader struct {
	root *easyfs.Inode
}

// lsBuiltin lists l's mounted volume's root directory to stdout, the
// in-scope half of spec.md's supplemented `ls`/`stat` feature (original
// source: easy-fs/src/vfs.rs's Inode::ls, surfaced through user_shell.rs).
// A full `cat <name>` is not implemented: this kernel's exec ABI (see
// syscall.ExecLookup/ExecRun) passes no argv, so a builtin has no way to
// learn which file a shell command line named.
func (l *Loader) lsBuiltin(tcb *task.ControlBlock) {
	for _, entry := range l.root.Ls() {
		userlib.Write(tcb, 1, []byte(entry.Name+"\n"))
	}
	userlib.Exit(tcb, 0)
}

// Mount opens an existing easy-fs volume on disk, backed by cache, and
// returns a Loader resolving exec targets against its root directory.
func Mount(disk blkcache.Disk, cache *blkcache.Cache) *Loader {
	fs := easyfs.Open(disk, cache)
	return &Loader{root: easyfs.RootInode(fs)}
}

// Lookup resolves name to an ElfImage if a file by that name exists in
// the mounted volume's root directory. The returned image is always
// userlib.TrivialImage's single RWX page: the file's actual on-disk bytes
// are opaque to this kernel, which never parses them as RISC-V machine
// code (see the package doc comment).
func (l *Loader) Lookup(name string) (memset.ElfImage, bool) {
	if l.root.Find(name) == nil {
		return memset.ElfImage{}, false
	}
	return userlib.TrivialImage(), true
}

// Install wires syscall.ExecLookup and syscall.ExecRun to l, falling back
// to the compiled-in builtins table for names the filesystem does not
// carry, so a mounted volume without "user_shell"/"forktest" entries
// still resolves them. The standalone cmd/initproc and cmd/usershell
// harnesses mount no volume and use InstallBuiltinsOnly instead.
func (l *Loader) Install() {
	syscall.ExecLookup = func(name string) (memset.ElfImage, bool) {
		if name == "ls" {
			return userlib.TrivialImage(), true
		}
		if img, ok := l.Lookup(name); ok {
			return img, true
		}
		if _, ok := builtins[name]; ok {
			return userlib.TrivialImage(), true
		}
		return memset.ElfImage{}, false
	}
	syscall.ExecRun = func(name string) (func(*task.ControlBlock), bool) {
		if name == "ls" {
			return l.lsBuiltin, true
		}
		run, ok := builtins[name]
		return run, ok
	}
}

// InstallBuiltinsOnly wires syscall.ExecLookup/ExecRun to the compiled-in
// builtins table alone, with no backing filesystem volume — used by the
// single-program standalone harnesses (cmd/initproc, cmd/usershell,
// cmd/forktest) that boot a fresh in-memory kernel instance with nothing
// mounted.
func InstallBuiltinsOnly() {
	syscall.ExecLookup = func(name string) (memset.ElfImage, bool) {
		if _, ok := builtins[name]; ok {
			return userlib.TrivialImage(), true
		}
		return memset.ElfImage{}, false
	}
	syscall.ExecRun = func(name string) (func(*task.ControlBlock), bool) {
		run, ok := builtins[name]
		return run, ok
	}
}
