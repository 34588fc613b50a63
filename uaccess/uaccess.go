// Package uaccess copies bytes between the kernel and a user task's
// address space across the page table boundary — spec.md section 4.9's
// translate_byte_buffer/translate/translate_str family. Grounded on
// biscuit's vm.Vm_t userspace-copy helpers (Userdmap8_inner, Userstr,
// K2user, User2k in vm/as.go): walk the target page table, split the
// request at page boundaries, and go through physmem for the actual byte
// copy, since both host and user "physical" memory are the same arena.
package uaccess

import (
	"fmt"

	"rvcore/addr"
	"rvcore/config"
	"rvcore/defs"
	"rvcore/pagetable"
	"rvcore/physmem"
)

// Fault is panicked when a task hands the kernel a user address that does
// not resolve in its own page table — the in-process analog of a
// StorePageFault trap. task.ControlBlock.Start recovers values
// implementing task.FaultCode (which Fault does, via ExitCode) and turns
// them into a forced task exit instead of crashing the kernel process.
type Fault struct {
	Addr addr.VA
}

func (f Fault) Error() string {
	return fmt.Sprintf("uaccess: unmapped user address %#x", uint64(f.Addr))
}

// ExitCode satisfies task.FaultCode.
func (f Fault) ExitCode() int32 { return int32(defs.ErrPageFault) }

// ByteBuffers splits [va, va+len) into one []byte slice per physical page
// it spans, each slice aliasing the task's actual backing memory — the
// same shape biscuit's Userdmap8_inner returns and rcore-os's
// translate_byte_buffer exists to produce for read/write syscall buffers
// that may straddle a page boundary.
func ByteBuffers(pt *pagetable.PageTable, va addr.VA, length int) [][]byte {
	if length == 0 {
		return nil
	}
	var bufs [][]byte
	start := va
	end := va + addr.VA(length)
	for start < end {
		pageEnd := addr.VA(start.Floor().ToVA()) + addr.VA(config.PageSize)
		if pageEnd > end {
			pageEnd = end
		}
		pa, ok := pt.TranslateVA(start)
		if !ok {
			panic(Fault{Addr: start})
		}
		n := int(pageEnd - start)
		bufs = append(bufs, physmem.Global.Bytes(uint64(pa), n))
		start = pageEnd
	}
	return bufs
}

// CopyOut copies src into the user buffer at va, splitting across pages
// as needed. Grounded on biscuit's K2user.
func CopyOut(pt *pagetable.PageTable, va addr.VA, src []byte) {
	bufs := ByteBuffers(pt, va, len(src))
	off := 0
	for _, b := range bufs {
		copy(b, src[off:off+len(b)])
		off += len(b)
	}
}

// CopyIn copies len(dst) bytes from the user buffer at va into dst.
// Grounded on biscuit's User2k.
func CopyIn(pt *pagetable.PageTable, va addr.VA, dst []byte) {
	bufs := ByteBuffers(pt, va, len(dst))
	off := 0
	for _, b := range bufs {
		copy(dst[off:off+len(b)], b)
		off += len(b)
	}
}

// Str reads a NUL-terminated string starting at va out of the task's
// address space, one byte at a time across page boundaries. Grounded on
// biscuit's Userstr / rcore-os's translate_str.
func Str(pt *pagetable.PageTable, va addr.VA) string {
	var out []byte
	for {
		var b [1]byte
		CopyIn(pt, va, b[:])
		if b[0] == 0 {
			break
		}
		out = append(out, b[0])
		va++
	}
	return string(out)
}
