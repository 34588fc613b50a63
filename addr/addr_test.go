package addr

import "testing"

func TestIndexesRoundTrip(t *testing.T) {
	cases := []VPN{0, 1, 0x1ff, 0x200, 0x3ffff, 0x40000, 0x7ffffff}
	for _, vpn := range cases {
		idx := vpn.Indexes()
		got := FromIndexes(idx)
		if got != vpn {
			t.Errorf("Indexes round trip for vpn %#x: got %#x via idx %v", uint64(vpn), uint64(got), idx)
		}
	}
}

func TestPAPPNRoundTrip(t *testing.T) {
	pa := PA(0x1000)
	ppn := pa.ToPPN()
	if ppn.ToPA() != pa {
		t.Fatalf("PA->PPN->PA mismatch: %#x", uint64(ppn.ToPA()))
	}
}

func TestUnalignedPAPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on unaligned PA.ToPPN()")
		}
	}()
	PA(0x1001).ToPPN()
}

func TestPageOffset(t *testing.T) {
	va := VA(0x1000 + 0x123)
	if va.PageOffset() != 0x123 {
		t.Fatalf("PageOffset = %#x, want 0x123", va.PageOffset())
	}
}

func TestCeilFloor(t *testing.T) {
	if VA(0x1001).Ceil() != VPN(2) {
		t.Fatalf("Ceil(0x1001) = %d, want 2", VA(0x1001).Ceil())
	}
	if VA(0x1000).Floor() != VPN(1) {
		t.Fatalf("Floor(0x1000) = %d, want 1", VA(0x1000).Floor())
	}
}
