package memset

import (
	"testing"

	"rvcore/addr"
	"rvcore/config"
	"rvcore/frame"
	"rvcore/physmem"
)

func setup(t *testing.T, frames int) {
	t.Helper()
	physmem.Init(uint64(frames) * 4096)
	frame.Init(0, addr.PPN(frames))
}

func TestInsertFramedAreaIsTranslatable(t *testing.T) {
	setup(t, 64)
	ms := NewBare()
	start := addr.VA(0x1000)
	end := addr.VA(0x3000)
	ms.InsertFramedArea(start, end, PermR|PermW)

	if _, ok := ms.PageTable().Translate(start.Floor()); !ok {
		t.Fatal("expected the first page of the inserted area to be mapped")
	}
	if _, ok := ms.PageTable().Translate((end - 1).Floor()); !ok {
		t.Fatal("expected the last page of the inserted area to be mapped")
	}
}

func TestRemoveAreaUnmapsAndFreesFrames(t *testing.T) {
	setup(t, 64)
	ms := NewBare()
	start, end := addr.VA(0x1000), addr.VA(0x3000)
	ms.InsertFramedArea(start, end, PermR|PermW)
	before := frame.Global.AllocatedCount()

	ms.RemoveArea(start, end)

	if _, ok := ms.PageTable().Translate(start.Floor()); ok {
		t.Fatal("expected the area's page to be unmapped after RemoveArea")
	}
	if got := frame.Global.AllocatedCount(); got != before-2 {
		t.Fatalf("AllocatedCount = %d after RemoveArea, want %d (two frames freed)", got, before-2)
	}
}

func TestRemoveAreaOfUnknownRangePanics(t *testing.T) {
	setup(t, 64)
	ms := NewBare()
	defer func() {
		if recover() == nil {
			t.Fatal("expected RemoveArea on a nonexistent range to panic")
		}
	}()
	ms.RemoveArea(addr.VA(0x1000), addr.VA(0x2000))
}

func TestPushWithDataCopiesIntoFreshFrames(t *testing.T) {
	setup(t, 64)
	ms := NewBare()
	area := NewMapArea(addr.VPN(1), addr.VPN(2), Framed, PermR|PermW)
	data := []byte("hello world")
	ms.Push(area, data)

	pte, ok := ms.PageTable().Translate(addr.VPN(1))
	if !ok {
		t.Fatal("expected area's page to be mapped")
	}
	got := physmem.Global.Bytes(uint64(pte.PPN().ToPA()), len(data))
	if string(got) != "hello world" {
		t.Fatalf("Page() = %q, want %q", got, "hello world")
	}
}

func TestFromELFMapsSegmentsStackAndTrapContext(t *testing.T) {
	setup(t, 64)
	trampoline := frame.NewTracker(frame.Global)

	img := ElfImage{
		Entry: addr.VA(0x1000),
		Segments: []ElfSegment{
			{
				VAddr:     addr.VA(0x1000),
				MemSize:   0x1000,
				FileSize:  5,
				Data:      []byte("abcde"),
				Readable:  true,
				Executable: true,
			},
		},
	}

	ms, userSP, entry := FromELF(img, trampoline.PPN())
	if entry != img.Entry {
		t.Fatalf("entry = %#x, want %#x", uint64(entry), uint64(img.Entry))
	}
	if userSP == 0 {
		t.Fatal("expected a non-zero user stack pointer")
	}

	if _, ok := ms.PageTable().Translate(addr.VA(0x1000).Floor()); !ok {
		t.Fatal("expected the ELF segment's page to be mapped")
	}
	trampVPN := addr.VA(config.TrampolineVA).Floor()
	if _, ok := ms.PageTable().Translate(trampVPN); !ok {
		t.Fatal("expected the trampoline page to be mapped")
	}
	trapCtxVPN := addr.VA(config.TrapContextVA).Floor()
	if _, ok := ms.PageTable().Translate(trapCtxVPN); !ok {
		t.Fatal("expected the trap-context page to be mapped")
	}
	if _, ok := ms.PageTable().Translate(userSP.Floor() - 1); !ok {
		t.Fatal("expected the user stack to extend below userSP")
	}
}

func TestFromExistedUserSpaceCopiesDataIndependently(t *testing.T) {
	setup(t, 64)
	trampoline := frame.NewTracker(frame.Global)

	img := ElfImage{
		Entry: addr.VA(0x1000),
		Segments: []ElfSegment{
			{VAddr: addr.VA(0x1000), MemSize: 0x1000, FileSize: 5, Data: []byte("abcde"), Readable: true, Writable: true},
		},
	}
	src, _, _ := FromELF(img, trampoline.PPN())
	child := FromExistedUserSpace(src, trampoline.PPN())

	srcPTE, _ := src.PageTable().Translate(addr.VA(0x1000).Floor())
	childPTE, _ := child.PageTable().Translate(addr.VA(0x1000).Floor())
	if srcPTE.PPN() == childPTE.PPN() {
		t.Fatal("expected the child's frame to be a distinct copy, not shared")
	}

	childBytes := physmem.Global.Bytes(uint64(childPTE.PPN().ToPA()), 5)
	if string(childBytes) != "abcde" {
		t.Fatalf("child's copied bytes = %q, want %q", childBytes, "abcde")
	}
}

func TestRecycleDataPagesClearsAreasButKeepsPageTable(t *testing.T) {
	setup(t, 64)
	ms := NewBare()
	ms.InsertFramedArea(addr.VA(0x1000), addr.VA(0x2000), PermR|PermW)

	ms.RecycleDataPages()

	if _, ok := ms.PageTable().Translate(addr.VA(0x1000).Floor()); ok {
		t.Fatal("expected RecycleDataPages to unmap all areas")
	}
	ms.Drop() // must not panic: no areas remain
}

func TestDropWithLiveAreasPanics(t *testing.T) {
	setup(t, 64)
	ms := NewBare()
	ms.InsertFramedArea(addr.VA(0x1000), addr.VA(0x2000), PermR|PermW)

	defer func() {
		if recover() == nil {
			t.Fatal("expected Drop with live areas to panic")
		}
	}()
	ms.Drop()
}

func TestNewKernelSpaceMapsTrampolineAndIdentityRange(t *testing.T) {
	setup(t, 64)
	trampoline := frame.NewTracker(frame.Global)

	ms := NewKernelSpace(trampoline.PPN(), addr.PA(0x4000))

	if _, ok := ms.PageTable().Translate(addr.VPN(1)); !ok {
		t.Fatal("expected the identity area to map VPN 1")
	}
	pte, ok := ms.PageTable().Translate(addr.VPN(1))
	if !ok || pte.PPN() != addr.PPN(1) {
		t.Fatalf("expected identity mapping VPN==PPN, got PPN %v", pte.PPN())
	}
	trampPTE, ok := ms.PageTable().Translate(addr.VA(config.TrampolineVA).Floor())
	if !ok || trampPTE.PPN() != trampoline.PPN() {
		t.Fatalf("expected the trampoline page to map to PPN %v", trampoline.PPN())
	}
}
