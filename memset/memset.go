// Package memset implements MapArea and MemorySet: a page table plus the
// ordered collection of mapping regions that own their backing frames,
// including cross-address-space ELF loading and copy cloning for fork.
// Grounded on rcore-os's original_source/mem/memory_set.rs for the exact
// region/segment semantics spec.md section 4.3 names, expressed in
// biscuit's idiom of small typed structs with explicit Lock-free mutation
// (this kernel is single-CPU cooperative, so MemorySet carries no mutex —
// see spec.md section 5).
package memset

import (
	"fmt"

	"rvcore/addr"
	"rvcore/config"
	"rvcore/frame"
	"rvcore/pagetable"
	"rvcore/physmem"
)

// MapType distinguishes an identity-mapped kernel region from a region
// backed by freshly allocated frames.
type MapType int

const (
	// Identical maps VPN == PPN, used only for the kernel's own self-map.
	Identical MapType = iota
	// Framed backs each VPN with a frame the area owns.
	Framed
)

// MapPermission is the subset of page-table flags a region may carry:
// R, W, X, and U.
type MapPermission pagetable.Flag

const (
	PermR MapPermission = MapPermission(pagetable.FlagR)
	PermW MapPermission = MapPermission(pagetable.FlagW)
	PermX MapPermission = MapPermission(pagetable.FlagX)
	PermU MapPermission = MapPermission(pagetable.FlagU)
)

// MapArea is a contiguous range of virtual pages [startVPN, endVPN) with a
// uniform MapType and MapPermission. Invariant (spec.md section 3): every
// VPN in range is mapped in the owning page table for as long as the area
// is live; Unmap both unmaps and frees the area's owned frames.
type MapArea struct {
	startVPN addr.VPN
	endVPN   addr.VPN
	mapType  MapType
	perm     MapPermission
	// frames maps each Framed VPN to the tracker owning its backing frame.
	// Empty for Identical areas, which own no frames.
	frames map[addr.VPN]*frame.Tracker
}

// NewMapArea constructs an area over [start, end) with the given type and
// permission. The caller must call Map to actually install the mapping.
func NewMapArea(start, end addr.VPN, mt MapType, perm MapPermission) *MapArea {
	return &MapArea{startVPN: start, endVPN: end, mapType: mt, perm: perm, frames: map[addr.VPN]*frame.Tracker{}}
}

// Range reports the area's VPN bounds.
func (m *MapArea) Range() (addr.VPN, addr.VPN) { return m.startVPN, m.endVPN }

func (m *MapArea) flags() pagetable.Flag {
	return pagetable.Flag(m.perm) | pagetable.FlagV
}

// Map installs every page of the area into pt.
func (m *MapArea) Map(pt *pagetable.PageTable) {
	for vpn := m.startVPN; vpn < m.endVPN; vpn++ {
		m.mapOne(pt, vpn)
	}
}

func (m *MapArea) mapOne(pt *pagetable.PageTable, vpn addr.VPN) {
	var ppn addr.PPN
	switch m.mapType {
	case Identical:
		ppn = addr.PPN(uint64(vpn))
	case Framed:
		t := frame.NewTracker(frame.Global)
		ppn = t.PPN()
		m.frames[vpn] = t
	default:
		panic("memset: unknown map type")
	}
	pt.Map(vpn, ppn, m.flags())
}

// Unmap removes every page of the area from pt and frees any owned
// frames — the area's frames field is cleared so a second Unmap is a
// panic via pagetable's own "unmap of unmapped vpn" check.
func (m *MapArea) Unmap(pt *pagetable.PageTable) {
	for vpn := m.startVPN; vpn < m.endVPN; vpn++ {
		pt.Unmap(vpn)
		if t, ok := m.frames[vpn]; ok {
			t.Free()
			delete(m.frames, vpn)
		}
	}
}

// CopyFrom deep-copies the byte contents of every frame src owns for this
// area's range into this area's own (already-mapped) frames. Used by
// FromExistedUserSpace to give a child process byte-identical but independently
// writable memory — spec.md section 8, property 8.
func (m *MapArea) CopyFrom(pt, srcPT *pagetable.PageTable) {
	for vpn := m.startVPN; vpn < m.endVPN; vpn++ {
		dstPTE, ok := pt.Translate(vpn)
		if !ok {
			panic("memset: copy target not mapped")
		}
		srcPTE, ok := srcPT.Translate(vpn)
		if !ok {
			panic("memset: copy source not mapped")
		}
		dst := pageBytes(dstPTE.PPN())
		src := pageBytes(srcPTE.PPN())
		copy(dst, src)
	}
}

func pageBytes(ppn addr.PPN) []byte {
	return physmem.Global.Page(uint64(ppn.ToPA()), config.PageSize)
}

// MemorySet is a page table plus the ordered collection of MapAreas that
// own their frames, per spec.md section 3.
type MemorySet struct {
	pt    *pagetable.PageTable
	areas []*MapArea
}

// NewBare creates an empty address space with a freshly allocated page
// table and no areas.
func NewBare() *MemorySet {
	return &MemorySet{pt: pagetable.New(frame.Global)}
}

// PageTable exposes the underlying page table (needed by TaskControlBlock
// to resolve the trap-context PPN and by the cross-space access helpers).
func (ms *MemorySet) PageTable() *pagetable.PageTable { return ms.pt }

// Token returns the satp value selecting this address space.
func (ms *MemorySet) Token() uint64 { return ms.pt.Token() }

// Push maps area into ms's page table and, if data is non-nil, copies it
// page by page into the freshly allocated frames; any data shorter than
// the area is implicitly zero-padded because NewTracker zero-fills every
// frame it allocates (spec.md section 4.3).
func (ms *MemorySet) Push(area *MapArea, data []byte) {
	area.Map(ms.pt)
	if data != nil {
		start, end := area.Range()
		off := 0
		for vpn := start; vpn < end && off < len(data); vpn++ {
			t := area.frames[vpn]
			if t == nil {
				panic("memset: Push with data on a non-Framed area")
			}
			n := len(data) - off
			if n > config.PageSize {
				n = config.PageSize
			}
			copy(t.Bytes(), data[off:off+n])
			off += n
		}
	}
	ms.areas = append(ms.areas, area)
}

// InsertFramedArea creates and pushes a Framed area over [start, end)
// with no initial data.
func (ms *MemorySet) InsertFramedArea(start, end addr.VA, perm MapPermission) {
	area := NewMapArea(start.Floor(), end.Ceil(), Framed, perm)
	ms.Push(area, nil)
}

// RemoveArea finds the area covering exactly [start, end), unmaps it
// (freeing its frames) and drops it from this MemorySet's area list. It
// panics if no such area exists. Used by kstack.Handle.Unmap to release
// one task's kernel stack without disturbing any other area — spec.md
// section 4.6's "kernel stack ... loses [its area] when [the handle is]
// dropped".
func (ms *MemorySet) RemoveArea(start, end addr.VA) {
	startVPN, endVPN := start.Floor(), end.Ceil()
	for i, area := range ms.areas {
		as, ae := area.Range()
		if as == startVPN && ae == endVPN {
			area.Unmap(ms.pt)
			ms.areas = append(ms.areas[:i], ms.areas[i+1:]...)
			return
		}
	}
	panic("memset: RemoveArea found no matching area")
}

// mapTrampoline installs the fixed-VA trampoline mapping directly,
// without an owning MapArea: the trampoline is shared kernel code, not
// memory any address space owns or frees (spec.md section 4.3).
func (ms *MemorySet) mapTrampoline(trampolinePPN addr.PPN) {
	vpn := addr.VA(config.TrampolineVA).Floor()
	ms.pt.Map(vpn, trampolinePPN, pagetable.FlagR|pagetable.FlagX)
}

// MapTrampoline installs the same fixed-VA trampoline mapping FromELF
// gives every user address space, for use by the boot harness building
// the kernel's own address space, which needs the trampoline at the same
// VA so trap entry/return can run with either page table loaded.
func (ms *MemorySet) MapTrampoline(trampolinePPN addr.PPN) {
	ms.mapTrampoline(trampolinePPN)
}

// NewKernelSpace builds the kernel's own address space: the trampoline
// mapping plus one Identical area covering [0, memEnd) so the kernel can
// address every physical frame (including frames backing user tasks) by
// its physical address directly, matching rcore-os's KERNEL_SPACE layout
// minus the per-section .text/.rodata/.data/.bss split — this in-process
// kernel has no ELF sections of its own to mirror.
func NewKernelSpace(trampolinePPN addr.PPN, memEnd addr.PA) *MemorySet {
	ms := NewBare()
	ms.mapTrampoline(trampolinePPN)
	endVPN := addr.VPN(uint64(memEnd.Ceil()))
	area := NewMapArea(addr.VPN(0), endVPN, Identical, PermR|PermW|PermX)
	ms.areas = append(ms.areas, area)
	area.Map(ms.pt)
	return ms
}

// ElfImage is the minimal decoded shape of a user ELF binary this kernel
// consumes: PT_LOAD segments plus the entry point. Building this from raw
// bytes is the ELF-parser dependency's job (spec.md section 1's external
// collaborator); FromELF here takes an already-parsed ElfImage so the
// memset package stays decoupled from any particular parser library.
type ElfImage struct {
	Entry    addr.VA
	Segments []ElfSegment
}

// ElfSegment is one PT_LOAD program header's relevant fields.
type ElfSegment struct {
	VAddr    addr.VA
	MemSize  uint64
	FileSize uint64
	Data     []byte // bytes[ph.offset : ph.offset+ph.filesz]
	Readable, Writable, Executable bool
}

// FromELF builds a brand-new user address space from a parsed ELF image:
// trampoline, one Framed area per PT_LOAD segment, a guard page, a user
// stack, and the trap-context page. It returns the memory set, the
// initial user stack pointer, and the entry point — spec.md section 4.3.
func FromELF(img ElfImage, trampolinePPN addr.PPN) (ms *MemorySet, userSP addr.VA, entry addr.VA) {
	ms = NewBare()
	ms.mapTrampoline(trampolinePPN)

	var maxEndVPN addr.VPN
	for _, seg := range img.Segments {
		startVPN := seg.VAddr.Floor()
		endVPN := addr.VA(uint64(seg.VAddr) + seg.MemSize).Ceil()
		var perm MapPermission
		if seg.Readable {
			perm |= PermR
		}
		if seg.Writable {
			perm |= PermW
		}
		if seg.Executable {
			perm |= PermX
		}
		perm |= PermU
		area := NewMapArea(startVPN, endVPN, Framed, perm)
		ms.Push(area, seg.Data)
		if endVPN > maxEndVPN {
			maxEndVPN = endVPN
		}
	}

	// One guard page above the last segment, per spec.md section 4.3.
	userStackBottomVPN := maxEndVPN + 1
	userStackTopVPN := userStackBottomVPN + addr.VPN(config.UserStackSize/config.PageSize)
	ms.InsertFramedArea(userStackBottomVPN.ToVA(), userStackTopVPN.ToVA(), PermR|PermW|PermU)

	// Trap-context page, fixed VA, just below the trampoline.
	trapCtxVPN := addr.VA(config.TrapContextVA).Floor()
	ms.InsertFramedArea(trapCtxVPN.ToVA(), (trapCtxVPN + 1).ToVA(), PermR|PermW)

	return ms, userStackTopVPN.ToVA(), img.Entry
}

// FromExistedUserSpace builds a deep-copy child address space from src: a
// fresh trampoline mapping, then one area per source area with identical
// range/type/permission whose frames are byte-for-byte copies of the
// source's — "fork" (spec.md section 4.3, section 8 property 8).
func FromExistedUserSpace(src *MemorySet, trampolinePPN addr.PPN) *MemorySet {
	ms := NewBare()
	ms.mapTrampoline(trampolinePPN)
	for _, srcArea := range src.areas {
		start, end := srcArea.Range()
		area := NewMapArea(start, end, srcArea.mapType, srcArea.perm)
		area.Map(ms.pt)
		if srcArea.mapType == Framed {
			area.CopyFrom(ms.pt, src.pt)
		}
		ms.areas = append(ms.areas, area)
	}
	return ms
}

// TrapContextPPN resolves the physical frame backing the fixed-VA
// trap-context page, for the kernel's own direct access to a task's trap
// frame (no translation needed since the kernel already has the PPN).
func (ms *MemorySet) TrapContextPPN() addr.PPN {
	vpn := addr.VA(config.TrapContextVA).Floor()
	pte, ok := ms.pt.Translate(vpn)
	if !ok {
		panic("memset: trap context page not mapped")
	}
	return pte.PPN()
}

// RecycleDataPages clears every area (unmapping and freeing its frames)
// while leaving the trampoline mapping and the page table itself intact,
// so the exit path can still complete the final context switch through a
// live satp — spec.md section 4.3 / 4.7.
func (ms *MemorySet) RecycleDataPages() {
	for _, area := range ms.areas {
		area.Unmap(ms.pt)
	}
	ms.areas = nil
}

// Activate hands this address space's token to writeSatp, the stand-in
// for a satp write. It issues no sfence.vma equivalent, and nothing in the
// scheduler calls it: tasks here run on goroutines and never switch satp.
func (ms *MemorySet) Activate(writeSatp func(uint64)) {
	writeSatp(ms.Token())
}

// Drop releases the page table's own frames (root + intermediate tables).
// Callers must have already called RecycleDataPages (or never pushed any
// area) — Drop does not know how to unmap leaf data pages itself, matching
// PageTable.Drop's "just free what I own" contract.
func (ms *MemorySet) Drop() {
	if len(ms.areas) != 0 {
		panic(fmt.Sprintf("memset: Drop with %d live areas; call RecycleDataPages first", len(ms.areas)))
	}
	ms.pt.Drop()
}
