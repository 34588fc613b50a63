package uaccess

import (
	"testing"

	"rvcore/addr"
	"rvcore/config"
	"rvcore/defs"
	"rvcore/frame"
	"rvcore/pagetable"
	"rvcore/physmem"
)

func setup(t *testing.T, frames int) {
	t.Helper()
	physmem.Init(uint64(frames) * 4096)
	frame.Init(0, addr.PPN(frames))
}

func TestByteBuffersSinglePage(t *testing.T) {
	setup(t, 64)
	pt := pagetable.New(frame.Global)
	defer pt.Drop()

	vpn := addr.VPN(3)
	pt.Map(vpn, addr.PPN(10), pagetable.FlagR|pagetable.FlagW|pagetable.FlagU)

	va := addr.VA(uint64(vpn)<<12 + 16)
	bufs := ByteBuffers(pt, va, 32)
	if len(bufs) != 1 {
		t.Fatalf("expected a single buffer, got %d", len(bufs))
	}
	if len(bufs[0]) != 32 {
		t.Fatalf("buffer length = %d, want 32", len(bufs[0]))
	}
}

func TestByteBuffersSpansPageBoundary(t *testing.T) {
	setup(t, 64)
	pt := pagetable.New(frame.Global)
	defer pt.Drop()

	pt.Map(addr.VPN(1), addr.PPN(20), pagetable.FlagR|pagetable.FlagW)
	pt.Map(addr.VPN(2), addr.PPN(21), pagetable.FlagR|pagetable.FlagW)

	va := addr.VA(uint64(1)<<12 + uint64(config.PageSize) - 8)
	bufs := ByteBuffers(pt, va, 16)
	if len(bufs) != 2 {
		t.Fatalf("expected the request to split across the page boundary into 2 buffers, got %d", len(bufs))
	}
	if len(bufs[0]) != 8 || len(bufs[1]) != 8 {
		t.Fatalf("unexpected split sizes: %d, %d", len(bufs[0]), len(bufs[1]))
	}
}

func TestByteBuffersUnmappedPanicsFault(t *testing.T) {
	setup(t, 64)
	pt := pagetable.New(frame.Global)
	defer pt.Drop()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected a panic on unmapped address")
		}
		if _, ok := r.(Fault); !ok {
			t.Fatalf("expected panic value to be Fault, got %T", r)
		}
	}()
	ByteBuffers(pt, addr.VA(0x9000), 8)
}

func TestCopyOutCopyInRoundTrip(t *testing.T) {
	setup(t, 64)
	pt := pagetable.New(frame.Global)
	defer pt.Drop()

	pt.Map(addr.VPN(4), addr.PPN(30), pagetable.FlagR|pagetable.FlagW)
	va := addr.VA(uint64(4)<<12 + 100)

	want := []byte("hello uaccess")
	CopyOut(pt, va, want)

	got := make([]byte, len(want))
	CopyIn(pt, va, got)
	if string(got) != string(want) {
		t.Fatalf("CopyIn = %q, want %q", got, want)
	}
}

func TestStrReadsUntilNUL(t *testing.T) {
	setup(t, 64)
	pt := pagetable.New(frame.Global)
	defer pt.Drop()

	pt.Map(addr.VPN(5), addr.PPN(40), pagetable.FlagR|pagetable.FlagW)
	va := addr.VA(uint64(5) << 12)

	payload := append([]byte("user_shell"), 0, 'X')
	CopyOut(pt, va, payload)

	if got := Str(pt, va); got != "user_shell" {
		t.Fatalf("Str = %q, want %q", got, "user_shell")
	}
}

func TestFaultExitCode(t *testing.T) {
	f := Fault{Addr: addr.VA(0x1234)}
	if f.ExitCode() != int32(defs.ErrPageFault) {
		t.Fatalf("Fault.ExitCode() = %d, want %d (spec.md S5: page fault exits with -2)", f.ExitCode(), defs.ErrPageFault)
	}
	if f.Error() == "" {
		t.Fatal("Fault.Error should be non-empty")
	}
}
