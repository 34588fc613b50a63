package pagetable

import (
	"testing"

	"rvcore/addr"
	"rvcore/frame"
	"rvcore/physmem"
)

func setup(t *testing.T, frames int) {
	t.Helper()
	physmem.Init(uint64(frames) * 4096)
	frame.Init(0, addr.PPN(frames))
}

func TestMapTranslateUnmap(t *testing.T) {
	setup(t, 64)
	pt := New(frame.Global)
	defer pt.Drop()

	vpn := addr.VPN(0x1234)
	ppn := addr.PPN(7)
	pt.Map(vpn, ppn, FlagR|FlagW|FlagU)

	pte, ok := pt.Translate(vpn)
	if !ok {
		t.Fatal("expected mapping to be present")
	}
	if pte.PPN() != ppn {
		t.Fatalf("translated ppn = %d, want %d", pte.PPN(), ppn)
	}
	if !pte.Valid() || !pte.Readable() || !pte.Writable() || !pte.User() {
		t.Fatalf("unexpected flags: %v", pte.Flags())
	}
	if pte.Executable() {
		t.Fatal("executable bit should not be set")
	}

	pt.Unmap(vpn)
	if _, ok := pt.Translate(vpn); ok {
		t.Fatal("expected mapping to be gone after unmap")
	}
}

func TestRemapPanics(t *testing.T) {
	setup(t, 64)
	pt := New(frame.Global)
	defer pt.Drop()
	pt.Map(addr.VPN(1), addr.PPN(2), FlagR)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on remap of valid leaf")
		}
	}()
	pt.Map(addr.VPN(1), addr.PPN(3), FlagR)
}

func TestUnmapInvalidPanics(t *testing.T) {
	setup(t, 64)
	pt := New(frame.Global)
	defer pt.Drop()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on unmap of unmapped leaf")
		}
	}()
	pt.Unmap(addr.VPN(99))
}

func TestTranslateVA(t *testing.T) {
	setup(t, 64)
	pt := New(frame.Global)
	defer pt.Drop()
	vpn := addr.VPN(5)
	pt.Map(vpn, addr.PPN(9), FlagR|FlagW)
	va := addr.VA(uint64(vpn)<<12 + 0x42)
	pa, ok := pt.TranslateVA(va)
	if !ok {
		t.Fatal("expected TranslateVA to succeed")
	}
	want := addr.PA(9<<12 + 0x42)
	if pa != want {
		t.Fatalf("TranslateVA = %#x, want %#x", uint64(pa), uint64(want))
	}
}

func TestTokenEncodesSv39(t *testing.T) {
	setup(t, 64)
	pt := New(frame.Global)
	defer pt.Drop()
	tok := pt.Token()
	if tok>>60 != 8 {
		t.Fatalf("token mode bits = %d, want 8 (SV39)", tok>>60)
	}
}
