// Package addr defines the SV39 address and page-number value types.
// Physical addresses are 56 bits wide, virtual addresses 39 bits
// (sign-extended on use by real hardware; this kernel never maps anything
// in the negative half except the fixed trampoline/trap-context pages, so
// sign extension is not modeled). Conversions between an address and its
// page number assert alignment, matching spec.md section 3's invariant
// that PA->PPN requires a zero page offset.
//
// Grounded on biscuit's mem.Pa_t plus rcore-os's original_source/mem/address.rs
// split of PhysAddr/VirtAddr/PhysPageNum/VirtPageNum into distinct types.
package addr

import "fmt"

const pageShift = 12
const pageSize = 1 << pageShift
const pageOffsetMask = pageSize - 1

// PA is a physical address.
type PA uint64

// VA is a virtual address.
type VA uint64

// PPN is a physical page number.
type PPN uint64

// VPN is a virtual page number.
type VPN uint64

// PageOffset returns the low 12 bits of a physical address.
func (p PA) PageOffset() uint64 { return uint64(p) & pageOffsetMask }

// PageOffset returns the low 12 bits of a virtual address.
func (v VA) PageOffset() uint64 { return uint64(v) & pageOffsetMask }

// Floor rounds a physical address down to the containing page number.
func (p PA) Floor() PPN { return PPN(uint64(p) >> pageShift) }

// Ceil rounds a physical address up to a page number.
func (p PA) Ceil() PPN {
	if p == 0 {
		return 0
	}
	return PPN((uint64(p) + pageSize - 1) >> pageShift)
}

// Floor rounds a virtual address down to the containing page number.
func (v VA) Floor() VPN { return VPN(uint64(v) >> pageShift) }

// Ceil rounds a virtual address up to a page number.
func (v VA) Ceil() VPN {
	if v == 0 {
		return 0
	}
	return VPN((uint64(v) + pageSize - 1) >> pageShift)
}

// ToPA converts a page-aligned physical page number to a physical address.
func (p PPN) ToPA() PA { return PA(uint64(p) << pageShift) }

// ToVA converts a page-aligned virtual page number to a virtual address.
func (v VPN) ToVA() VA { return VA(uint64(v) << pageShift) }

// ToPPN converts a physical address to its page number. It panics if pa is
// not page aligned, per spec.md section 3's PA->PPN invariant.
func (p PA) ToPPN() PPN {
	if p.PageOffset() != 0 {
		panic(fmt.Sprintf("addr: PA %#x is not page aligned", uint64(p)))
	}
	return PPN(uint64(p) >> pageShift)
}

// ToVPN converts a virtual address to its page number. It panics if va is
// not page aligned.
func (v VA) ToVPN() VPN {
	if v.PageOffset() != 0 {
		panic(fmt.Sprintf("addr: VA %#x is not page aligned", uint64(v)))
	}
	return VPN(uint64(v) >> pageShift)
}

// Indexes returns the three 9-bit SV39 page-table indices for vpn,
// most-significant first: index[0] selects the root-table entry,
// index[2] selects the leaf entry.
func (v VPN) Indexes() [3]uint64 {
	n := uint64(v)
	var idx [3]uint64
	for i := 2; i >= 0; i-- {
		idx[i] = n & 0x1ff
		n >>= 9
	}
	return idx
}

// FromIndexes reassembles a VPN from the three 9-bit indices produced by
// Indexes, most-significant first. Used by tests to check the round trip
// named in spec.md section 8, property 5.
func FromIndexes(idx [3]uint64) VPN {
	return VPN((idx[0] << 18) | (idx[1] << 9) | idx[2])
}

// Next returns the page number that follows n.
func (n VPN) Next() VPN { return n + 1 }

// Sub returns the number of pages between a and b (a-b).
func (a VPN) Sub(b VPN) int64 { return int64(a) - int64(b) }
