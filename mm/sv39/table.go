package sv39

import (
	"github.com/LittleLucifer1/duck-os/kernel"
	"github.com/LittleLucifer1/duck-os/kernel/ksync"
	"github.com/LittleLucifer1/duck-os/mm/pmm"
)

const errModule = "sv39"

var (
	// ErrAlreadyMapped is returned by Map when the VPN is already present;
	// the caller must Unmap first (spec.md §4.2).
	ErrAlreadyMapped = kernel.New(errModule, kernel.KindEXIST, "virtual page already mapped")
	// ErrNotMapped is returned by Translate/ModifyFlags/Unmap when the VPN
	// has no leaf PTE.
	ErrNotMapped = kernel.New(errModule, kernel.KindFAULT, "virtual address does not point to a mapped physical page")
)

// frameTable backs every intermediate (non-leaf) page table: 512 8-byte
// entries per 4 KiB page, matching the Sv39 format.
type frameTable [512]entry

// Table is a three-level Sv39 page table. The zero value is not usable; use
// NewTable. Each method holds the table's own lock for its duration;
// callers that need several operations to apply together hold the owning
// AddressSpace's lock around them (spec.md §5 lock-ordering:
// address-space → page-table → frame-allocator).
type Table struct {
	lock  ksync.Spinlock
	alloc *pmm.Allocator
	root  *pmm.FrameHandle
	owned []*pmm.FrameHandle // intermediate and leaf frames this table allocated
}

// NewTable allocates an empty root table.
func NewTable(alloc *pmm.Allocator) (*Table, error) {
	root, err := alloc.Alloc()
	if err != nil {
		return nil, err
	}
	return &Table{alloc: alloc, root: root, owned: []*pmm.FrameHandle{root}}, nil
}

// RootFrame returns the physical frame holding the root table, the value
// written to satp by Activate.
func (t *Table) RootFrame() pmm.Frame { return t.root.PPN() }

// Release frees the root table and every intermediate table frame this
// Table allocated. It does not free leaf data frames backing user pages;
// those are owned by the AddressSpace's PMA/Page entries.
func (t *Table) Release() {
	t.lock.Acquire()
	defer t.lock.Release()

	for _, h := range t.owned {
		h.Free()
	}
	t.owned = nil
}

func tableAt(frame pmm.Frame, alloc *pmm.Allocator) *frameTable {
	return (*frameTable)(bytesToTablePtr(frame.Bytes(alloc)))
}

// Map installs a VPN→PPN mapping with the given flags, allocating
// intermediate tables lazily. It fails with ErrAlreadyMapped if the leaf PTE
// is already valid; the caller must Unmap first (spec.md §4.2).
func (t *Table) Map(vpn uintptr, frame pmm.Frame, flags Flag) error {
	t.lock.Acquire()
	defer t.lock.Release()

	leaf, err := t.walkCreate(vpn)
	if err != nil {
		return err
	}
	if leaf.hasFlags(FlagValid) {
		return ErrAlreadyMapped
	}
	leaf.setFrame(frame)
	leaf.setFlags(flags | FlagValid)
	return nil
}

// MapLazy writes a zero PTE (no FlagValid) so that the first access traps;
// used by map_all_lazy (spec.md §4.3) for VMAs that defer page allocation to
// the fault handler.
func (t *Table) MapLazy(vpn uintptr) error {
	t.lock.Acquire()
	defer t.lock.Release()

	_, err := t.walkCreate(vpn)
	return err
}

// Unmap clears the leaf PTE for vpn. Intermediate tables are never reclaimed
// (spec.md §4.2).
func (t *Table) Unmap(vpn uintptr) error {
	t.lock.Acquire()
	defer t.lock.Release()

	leaf, ok := t.walkExisting(vpn)
	if !ok {
		return ErrNotMapped
	}
	*leaf = 0
	return nil
}

// TranslateVA2PA converts a virtual address to the physical address it maps
// to, or ErrNotMapped if the page is not present.
func (t *Table) TranslateVA2PA(va uintptr) (uintptr, error) {
	t.lock.Acquire()
	defer t.lock.Release()

	leaf, ok := t.walkExisting(va >> kernel.PageShift)
	if !ok || !leaf.hasFlags(FlagValid) {
		return 0, ErrNotMapped
	}
	return leaf.frame().Address() | (va & (kernel.PageSize - 1)), nil
}

// PTEView is the flags+frame snapshot returned by TranslateVA2PTE. Flags
// holds only the bits below the PPN field (bits 0-9); it never carries the
// PTE's physical frame, so callers can safely OR it into a new leaf's flags
// without corrupting that leaf's PPN.
type PTEView struct {
	Frame pmm.Frame
	Flags Flag
}

const flagBits = Flag(1<<ppnShift - 1)

// TranslateVA2PTE returns the flags and frame of the leaf PTE mapping va.
func (t *Table) TranslateVA2PTE(va uintptr) (PTEView, error) {
	t.lock.Acquire()
	defer t.lock.Release()

	leaf, ok := t.walkExisting(va >> kernel.PageShift)
	if !ok || !leaf.hasFlags(FlagValid) {
		return PTEView{}, ErrNotMapped
	}
	return PTEView{Frame: leaf.frame(), Flags: Flag(*leaf) & flagBits &^ FlagValid}, nil
}

// ModifyFlags replaces the permission flags of an already-mapped VPN,
// preserving FlagValid.
func (t *Table) ModifyFlags(vpn uintptr, newFlags Flag) error {
	t.lock.Acquire()
	defer t.lock.Release()

	leaf, ok := t.walkExisting(vpn)
	if !ok || !leaf.hasFlags(FlagValid) {
		return ErrNotMapped
	}
	*leaf = entry(uintptr(leaf.frame())<<ppnShift) | entry(newFlags) | entry(FlagValid)
	return nil
}

// walkCreate performs a page table walk for vpn, allocating any missing
// intermediate table along the way, and returns the leaf entry.
func (t *Table) walkCreate(vpn uintptr) (*entry, error) {
	tbl := tableAt(t.root.PPN(), t.alloc)
	for level := 0; level < levels-1; level++ {
		idx := vpnIndex(vpn, level)
		pte := &tbl[idx]
		if !pte.hasFlags(FlagValid) {
			h, err := t.alloc.Alloc()
			if err != nil {
				return nil, err
			}
			t.owned = append(t.owned, h)
			pte.setFrame(h.PPN())
			pte.setFlags(FlagValid)
		}
		tbl = tableAt(pte.frame(), t.alloc)
	}
	return &tbl[vpnIndex(vpn, levels-1)], nil
}

// walkExisting performs a read-only walk, returning ok=false if any
// intermediate table is missing.
func (t *Table) walkExisting(vpn uintptr) (*entry, bool) {
	tbl := tableAt(t.root.PPN(), t.alloc)
	for level := 0; level < levels-1; level++ {
		pte := &tbl[vpnIndex(vpn, level)]
		if !pte.hasFlags(FlagValid) {
			return nil, false
		}
		tbl = tableAt(pte.frame(), t.alloc)
	}
	return &tbl[vpnIndex(vpn, levels-1)], true
}

// KernelTemplate holds the root-level entries shared by every address space,
// so user tables constructed with NewUserTable always carry the kernel
// mappings (spec.md §4.2: "new_user() returns a table seeded with the
// kernel's top-level entries").
type KernelTemplate struct {
	entries [512]entry
}

// Capture snapshots the current table's root-level entries for reuse as a
// KernelTemplate.
func (t *Table) Capture() *KernelTemplate {
	t.lock.Acquire()
	defer t.lock.Release()

	kt := &KernelTemplate{}
	copy(kt.entries[:], tableAt(t.root.PPN(), t.alloc)[:])
	return kt
}

// NewUserTable allocates a fresh root table seeded with tmpl's entries.
func NewUserTable(alloc *pmm.Allocator, tmpl *KernelTemplate) (*Table, error) {
	t, err := NewTable(alloc)
	if err != nil {
		return nil, err
	}
	if tmpl != nil {
		copy(tableAt(t.root.PPN(), alloc)[:], tmpl.entries[:])
	}
	return t, nil
}

// active records which Table is currently installed, standing in for the
// satp CSR in this hosted model.
var active *Table

// Activate writes the table's root frame to the simulated address
// translation register and issues a local TLB flush (spec.md §4.2). There is
// no real TLB in this hosted model, so FlushTLBEntry/FlushTLBAll are no-ops kept
// for call-site fidelity with the teacher's irq/fault-handling code, which
// always flushes after a mapping change.
func (t *Table) Activate() {
	active = t
}

// FlushTLBEntry invalidates a single VPN's translation. A no-op in this
// hosted model; kept so fault handlers read the same as the teacher's own
// "update mapping, then flush" sequence.
func FlushTLBEntry(vpn uintptr) {}

// FlushTLBAll invalidates every cached translation for the active table.
func FlushTLBAll() {}
