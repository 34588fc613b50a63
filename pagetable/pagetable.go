// Package pagetable implements the 3-level SV39 page table: walk,
// map/unmap, and the token written to satp. Grounded on biscuit's pmap
// walk (vm/as.go's pmap_walk / Page_insert) adapted from biscuit's 4-level
// x86 layout down to SV39's 3 levels, and on rcore-os's
// original_source/mem/page_table.rs for the exact PTE bit layout and the
// find_pte_create two-phase (create intermediate, then leaf) walk spec.md
// section 4.2 calls for.
package pagetable

import (
	"fmt"

	"rvcore/addr"
	"rvcore/frame"
	"rvcore/physmem"
)

// Flag is one bit of a page table entry.
type Flag uint64

const (
	FlagV Flag = 1 << 0 // valid
	FlagR Flag = 1 << 1 // readable
	FlagW Flag = 1 << 2 // writable
	FlagX Flag = 1 << 3 // executable
	FlagU Flag = 1 << 4 // user accessible
	FlagG Flag = 1 << 5 // global
	FlagA Flag = 1 << 6 // accessed
	FlagD Flag = 1 << 7 // dirty
)

// PTE is one 64-bit SV39 page table entry: PPN<<10 | flags.
type PTE uint64

func newPTE(ppn addr.PPN, flags Flag) PTE {
	return PTE(uint64(ppn)<<10 | uint64(flags))
}

// PPN extracts the physical page number this entry points at.
func (e PTE) PPN() addr.PPN { return addr.PPN(uint64(e) >> 10) }

// Flags extracts the flag bits of this entry.
func (e PTE) Flags() Flag { return Flag(uint64(e) & 0xff) }

// Valid reports whether the V bit is set.
func (e PTE) Valid() bool { return e.Flags()&FlagV != 0 }

// Readable, Writable, Executable, and User report the corresponding bits.
func (e PTE) Readable() bool   { return e.Flags()&FlagR != 0 }
func (e PTE) Writable() bool   { return e.Flags()&FlagW != 0 }
func (e PTE) Executable() bool { return e.Flags()&FlagX != 0 }
func (e PTE) User() bool       { return e.Flags()&FlagU != 0 }

const entriesPerTable = 512

// ppnBytes returns the 4096-byte backing store of the frame at ppn,
// exactly as biscuit's mem.Physmem.Dmap turns a physical page number into
// a directly addressable page.
func ppnBytes(ppn addr.PPN) []byte {
	return physmem.Global.Page(uint64(ppn.ToPA()), 4096)
}

func writePTE(ppn addr.PPN, index int, e PTE) {
	bytes := ppnBytes(ppn)
	v := uint64(e)
	lo := index * 8
	for b := 0; b < 8; b++ {
		bytes[lo+b] = byte(v >> (8 * b))
	}
}

func readPTE(ppn addr.PPN, index int) PTE {
	bytes := ppnBytes(ppn)
	lo := index * 8
	var v uint64
	for b := 0; b < 8; b++ {
		v |= uint64(bytes[lo+b]) << (8 * b)
	}
	return PTE(v)
}

// PageTable owns a root frame plus every frame used for intermediate
// level-1/level-2 tables. Those frames are recorded in frames and freed
// when Drop is called — Go has no scope-based destructors, so callers
// (MemorySet) must call Drop explicitly when the page table is no longer
// needed, exactly where biscuit would rely on Go's own finalizer-free
// manual Dec_pmap bookkeeping.
type PageTable struct {
	root   addr.PPN
	frames []*frame.Tracker // intermediate + root frames this table owns
	alloc  *frame.Allocator
}

// New creates an empty page table with a freshly allocated, zeroed root.
func New(alloc *frame.Allocator) *PageTable {
	root := frame.NewTracker(alloc)
	return &PageTable{root: root.PPN(), frames: []*frame.Tracker{root}, alloc: alloc}
}

// FromToken reconstructs a PageTable handle from a satp-style token for
// read-only translation (used by the kernel to read another address
// space's page table without owning its frames, e.g. cross-space access
// helpers). The returned PageTable must not be Dropped.
func FromToken(token uint64, alloc *frame.Allocator) *PageTable {
	return &PageTable{root: addr.PPN(token & ((1 << 44) - 1)), alloc: alloc}
}

// Token returns the value to write to satp to select SV39 paging rooted
// at this table: (8<<60) | root_ppn.
func (pt *PageTable) Token() uint64 {
	return (uint64(8) << 60) | uint64(pt.root)
}

// findPTE walks the table for vpn, optionally creating intermediate
// tables. At levels 0 and 1 a missing intermediate PTE is filled with a
// freshly allocated, zeroed frame marked only V, and that frame is
// recorded in pt.frames so it is freed when the table is dropped — this
// is spec.md section 4.2's find_pte_create. When create is false, a
// missing intermediate returns (0, false) — find_pte.
func (pt *PageTable) findPTE(vpn addr.VPN, create bool) (ppn addr.PPN, index int, ok bool) {
	idx := vpn.Indexes()
	cur := pt.root
	for level := 0; level < 3; level++ {
		i := int(idx[level])
		e := readPTE(cur, i)
		if level == 2 {
			return cur, i, true
		}
		if !e.Valid() {
			if !create {
				return 0, 0, false
			}
			t := frame.NewTracker(pt.alloc)
			pt.frames = append(pt.frames, t)
			e = newPTE(t.PPN(), FlagV)
			writePTE(cur, i, e)
		}
		cur = e.PPN()
	}
	panic("unreachable")
}

// Map installs vpn -> ppn with the given flags (V is added automatically).
// It panics if the leaf is already valid, per spec.md section 4.2.
func (pt *PageTable) Map(vpn addr.VPN, ppn addr.PPN, flags Flag) {
	tbl, i, _ := pt.findPTE(vpn, true)
	if readPTE(tbl, i).Valid() {
		panic(fmt.Sprintf("pagetable: remap of already-mapped vpn %#x", uint64(vpn)))
	}
	writePTE(tbl, i, newPTE(ppn, flags|FlagV))
}

// Unmap removes the mapping for vpn. It panics if the leaf is not valid.
func (pt *PageTable) Unmap(vpn addr.VPN) {
	tbl, i, ok := pt.findPTE(vpn, false)
	if !ok || !readPTE(tbl, i).Valid() {
		panic(fmt.Sprintf("pagetable: unmap of unmapped vpn %#x", uint64(vpn)))
	}
	writePTE(tbl, i, 0)
}

// Translate returns the leaf PTE for vpn if it is valid.
func (pt *PageTable) Translate(vpn addr.VPN) (PTE, bool) {
	tbl, i, ok := pt.findPTE(vpn, false)
	if !ok {
		return 0, false
	}
	e := readPTE(tbl, i)
	if !e.Valid() {
		return 0, false
	}
	return e, true
}

// TranslateVA resolves a virtual address to a physical address by
// combining the leaf PPN with va's 12-bit page offset.
func (pt *PageTable) TranslateVA(va addr.VA) (addr.PA, bool) {
	pte, ok := pt.Translate(va.Floor())
	if !ok {
		return 0, false
	}
	return addr.PA(uint64(pte.PPN().ToPA()) | va.PageOffset()), true
}

// Drop frees every frame this table owns (root + intermediates). It must
// be called exactly once; calling it on a table obtained from FromToken
// is a misuse and panics, since FromToken tables do not own frames.
func (pt *PageTable) Drop() {
	if pt.frames == nil {
		panic("pagetable: Drop called on a non-owning table (use FromToken carefully)")
	}
	for _, f := range pt.frames {
		f.Free()
	}
	pt.frames = nil
}
