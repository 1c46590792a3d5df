// Package vmm implements C4-C8: the physical/virtual memory area pair that
// backs a VMA (PMA), the VMA itself, the non-overlapping VMA range that
// makes up an AddressSpace, COW forking, and the page-fault dispatcher.
// Grounded throughout on _examples/original_source/os/src/mm's
// vma.rs/pma.rs/cow.rs/memory_set/page_fault.rs, in the structural idiom of
// gopher-os-gopher-os's kernel/mem/vmm package (small composable types, a
// package-level frame allocator hook, PTE-flag-driven fault handling).
package vmm

import (
	"github.com/LittleLucifer1/duck-os/kernel"
	"github.com/LittleLucifer1/duck-os/mm/page"
)

const errModule = "vmm"

// BackingFile records the file a Mmap-type VMA's PMA mirrors: a byte offset
// into the file where the VMA's mapping begins, plus the file handle itself
// (kept as an opaque `any` here to avoid a vmm↔vfs import cycle; the fault
// dispatcher type-asserts it to the interface it needs).
type BackingFile struct {
	Offset int64
	File   any
}

// PMA is the physical side of one VMA: the set of Pages currently backing
// its virtual range, plus an optional BackingFile for file-mapped regions.
// Every VPN key here must lie within the owning VMA's [start, end) range
// (spec.md §3 invariant).
type PMA struct {
	pages   map[uintptr]*page.Page
	backing *BackingFile
}

func newPMA() *PMA {
	return &PMA{pages: make(map[uintptr]*page.Page)}
}

// Page returns the page mapped at vpn, if any.
func (p *PMA) Page(vpn uintptr) (*page.Page, bool) {
	pg, ok := p.pages[vpn]
	return pg, ok
}

// PushPage inserts or replaces the page mapped at vpn.
func (p *PMA) PushPage(vpn uintptr, pg *page.Page) {
	p.pages[vpn] = pg
}

// PopPage removes the page mapped at vpn, if present. It is a no-op
// otherwise, matching original_source's pop_pma_page.
func (p *PMA) PopPage(vpn uintptr) {
	delete(p.pages, vpn)
}

// SetBackingFile records the file this PMA mirrors (used by Mmap VMAs).
func (p *PMA) SetBackingFile(b *BackingFile) { p.backing = b }

// Backing returns the file this PMA mirrors, or nil for an anonymous
// mapping.
func (p *PMA) Backing() *BackingFile { return p.backing }

// ShrinkLeft drops every page in [oldStartVPN, newStartVPN) after a VMA's
// start has moved forward.
func (p *PMA) ShrinkLeft(oldStartVPN, newStartVPN uintptr) {
	for vpn := oldStartVPN; vpn < newStartVPN; vpn++ {
		p.PopPage(vpn)
	}
}

// ShrinkRight drops every page in [newEndVPN, oldEndVPN) after a VMA's end
// has moved backward.
func (p *PMA) ShrinkRight(newEndVPN, oldEndVPN uintptr) {
	for vpn := newEndVPN; vpn < oldEndVPN; vpn++ {
		p.PopPage(vpn)
	}
}

// Split removes every page in [splitVPN, endVPN) from p and returns a new
// PMA holding them, used when a VMA is split at splitVPN.
func (p *PMA) Split(splitVPN, endVPN uintptr) *PMA {
	right := newPMA()
	for vpn := splitVPN; vpn < endVPN; vpn++ {
		if pg, ok := p.pages[vpn]; ok {
			right.pages[vpn] = pg
			delete(p.pages, vpn)
		}
	}
	return right
}

// WriteAt writes data into the page mapped at vpn starting at pageOffset.
// The caller guarantees the page exists and that the write does not cross a
// page boundary (the VMA layer chunks multi-page writes).
func (p *PMA) WriteAt(vpn uintptr, pageOffset int, data []byte) error {
	pg, ok := p.pages[vpn]
	if !ok {
		return kernel.New(errModule, kernel.KindFAULT, "no page backing vpn for write")
	}
	_, err := pg.Write(pageOffset, data)
	return err
}

// ReadAt reads from the page mapped at vpn starting at pageOffset.
func (p *PMA) ReadAt(vpn uintptr, pageOffset int, data []byte) error {
	pg, ok := p.pages[vpn]
	if !ok {
		return kernel.New(errModule, kernel.KindFAULT, "no page backing vpn for read")
	}
	_, err := pg.Read(pageOffset, data)
	return err
}
