// Package config holds the fixed geometry of the kernel: page size, the
// physical memory window the frame allocator draws from, stack sizes, and
// the virtual addresses reserved in every address space for the trampoline
// and trap context. None of this is meant to be tunable at runtime — this
// is a teaching kernel booted with one fixed machine description, not a
// general-purpose one.
package config

// PageShift is the base-2 exponent of PageSize.
const PageShift = 12

// PageSize is the size of a page in bytes (4 KiB, per SV39).
const PageSize = 1 << PageShift

// PageOffsetMask extracts the in-page offset of a virtual or physical address.
const PageOffsetMask = PageSize - 1

// KernelHeapSize is the size in bytes of the kernel's own heap arena.
const KernelHeapSize = 16 * 1024

// KernelStackSize is the size in bytes of one task's kernel stack.
const KernelStackSize = 16 * 1024

// UserStackSize is the size in bytes of a freshly exec'd task's user stack.
const UserStackSize = 8 * 1024

// MemoryEnd is the first physical address the frame allocator may not hand out.
const MemoryEnd = 0x8080_0000

// AppBase is the physical load address user binaries are historically linked at.
const AppBase = 0x8040_0000

// Sv39VAWidth is the number of significant bits in a user-visible virtual address.
const Sv39VAWidth = 39

// TrampolineVA is the fixed virtual address of the trampoline page, the
// highest page of every address space.
const TrampolineVA = ^uint64(0) - PageSize + 1

// TrapContextVA is the fixed virtual address of the trap-context page,
// immediately below the trampoline.
const TrapContextVA = TrampolineVA - PageSize

// ClockFreq is the frequency, in Hz, of the RISC-V `time` CSR.
const ClockFreq = 12_500_000

// TicksPerSec is how many timer interrupts the kernel programs per second.
const TicksPerSec = 100
