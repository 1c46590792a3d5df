// Package sv39 implements C2: the Sv39 three-level page table that backs
// every AddressSpace. It is modeled on gopheros/kernel/mem/vmm's PTE flag
// manipulation and walk-function shape (pte.go, walk.go), adapted from
// amd64's four-level format to the RISC-V Sv39 three-level, 9-bit-per-level
// format used by this kernel (see other_examples' riscv MMU fragment for the
// real flag bit positions).
package sv39

import (
	"github.com/LittleLucifer1/duck-os/kernel"
	"github.com/LittleLucifer1/duck-os/mm/pmm"
)

// Flag describes a bit in a page table entry. Bit positions match the RISC-V
// privileged spec's Sv39 PTE layout.
type Flag uintptr

// PTE flags.
const (
	FlagValid Flag = 1 << iota
	FlagRead
	FlagWrite
	FlagExec
	FlagUser
	FlagGlobal
	FlagAccessed
	FlagDirty
	// FlagCOW is a software-defined bit (RSW field, bits 8-9 in the spec)
	// marking a page shared by a CowManager. It is never set alongside
	// FlagWrite; the COW fault handler is the only code that clears it.
	FlagCOW Flag = 1 << 8
)

const (
	levels       = 3
	bitsPerLevel = 9
	ppnShift     = 10
)

// entry is a single Sv39 page table entry.
type entry uintptr

func (e entry) hasFlags(f Flag) bool   { return uintptr(e)&uintptr(f) == uintptr(f) }
func (e entry) hasAnyFlag(f Flag) bool { return uintptr(e)&uintptr(f) != 0 }
func (e *entry) setFlags(f Flag)       { *e = entry(uintptr(*e) | uintptr(f)) }
func (e *entry) clearFlags(f Flag)     { *e = entry(uintptr(*e) &^ uintptr(f)) }
func (e entry) frame() pmm.Frame       { return pmm.Frame(uintptr(e) >> ppnShift) }
func (e *entry) setFrame(f pmm.Frame)  { *e = entry((uintptr(*e) & (1<<ppnShift - 1)) | uintptr(f)<<ppnShift) }

// vpnIndex returns the 9-bit index into the level-th table (0 = root, 2 =
// leaf) for the given virtual page number.
func vpnIndex(vpn uintptr, level int) uintptr {
	shift := uintptr((levels - 1 - level) * bitsPerLevel)
	return (vpn >> shift) & (1<<bitsPerLevel - 1)
}

// VPNFromAddress returns the virtual page number containing addr.
func VPNFromAddress(addr uintptr) uintptr { return addr >> kernel.PageShift }

// PermFlags is the subset of Flag values that describe page permissions
// (read/write/execute/user), as opposed to bookkeeping bits like Valid,
// Accessed or COW.
type PermFlags = Flag

// Perm combinators used throughout the MM core.
const (
	PermR   PermFlags = FlagRead
	PermRW  PermFlags = FlagRead | FlagWrite
	PermRX  PermFlags = FlagRead | FlagExec
	PermRWX PermFlags = FlagRead | FlagWrite | FlagExec
)
