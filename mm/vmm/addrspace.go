package vmm

import (
	"github.com/LittleLucifer1/duck-os/kernel"
	"github.com/LittleLucifer1/duck-os/kernel/ksync"
	"github.com/LittleLucifer1/duck-os/mm/pmm"
	"github.com/LittleLucifer1/duck-os/mm/sv39"
)

// AddressSpace is C7: a page table, its VMA range, the user heap's current
// end, and a CowManager, all guarded together (spec.md §3's AddressSpace
// invariant: every VMA/PTE/CowManager triple stays consistent under this
// one lock).
type AddressSpace struct {
	lock ksync.Spinlock

	table   *sv39.Table
	ranges  *Range
	heapEnd uintptr
	cow     *CowManager
	alloc   *pmm.Allocator
}

// NewAddressSpace constructs a fresh user address space with the given
// kernel template installed (spec.md's new_user()).
func NewAddressSpace(alloc *pmm.Allocator, tmpl *sv39.KernelTemplate) (*AddressSpace, error) {
	t, err := sv39.NewUserTable(alloc, tmpl)
	if err != nil {
		return nil, err
	}
	return &AddressSpace{table: t, ranges: NewRange(), cow: NewCowManager(), alloc: alloc}, nil
}

// Table returns the underlying page table.
func (a *AddressSpace) Table() *sv39.Table { return a.table }

// Ranges returns the VMA range.
func (a *AddressSpace) Ranges() *Range { return a.ranges }

// Allocator returns the frame allocator backing this address space, for
// callers that map pages into it manually (the loader's page-cache-shared
// segment path, which calls VMA.MapOne directly instead of going through
// InsertVMA).
func (a *AddressSpace) Allocator() *pmm.Allocator { return a.alloc }

// HeapEnd returns the current top of the user heap.
func (a *AddressSpace) HeapEnd() uintptr {
	a.lock.Acquire()
	defer a.lock.Release()
	return a.heapEnd
}

// SetHeapEnd updates the current top of the user heap (used by brk).
func (a *AddressSpace) SetHeapEnd(end uintptr) {
	a.lock.Acquire()
	defer a.lock.Release()
	a.heapEnd = end
}

// InsertVMA adds vma to the address space, mapping it eagerly or lazily as
// directed.
func (a *AddressSpace) InsertVMA(vma *VMA, lazy bool) error {
	a.lock.Acquire()
	defer a.lock.Release()

	if err := a.ranges.InsertRaw(vma); err != nil {
		return err
	}
	if lazy {
		return vma.MapAllLazy(a.table)
	}
	return vma.MapAll(a.table, a.alloc)
}

// Dispatch services a page fault at vaddr (spec.md §4.5):
//  1. if vaddr's VPN is tracked by the CowManager, run the COW handler;
//  2. else find the owning VMA and run its handler;
//  3. if neither applies, return ErrFault (EFAULT).
func (a *AddressSpace) Dispatch(vaddr uintptr) error {
	a.lock.Acquire()
	defer a.lock.Release()

	vpn := vaddr >> kernel.PageShift
	if a.cow.IsInCOW(vpn) {
		vma, ok := a.ranges.Find(vaddr)
		if !ok {
			return ErrFault
		}
		return handleCowFault(&FaultContext{
			PMA: vma.PMA(), VAddr: vaddr, StartVA: vma.Start(),
			Perm: vma.Permission(), Table: a.table, Alloc: a.alloc, Cow: a.cow,
		})
	}

	vma, ok := a.ranges.Find(vaddr)
	if !ok || vma.handler == nil {
		return ErrFault
	}
	return vma.handler.HandleFault(&FaultContext{
		PMA: vma.PMA(), VAddr: vaddr, StartVA: vma.Start(),
		Perm: vma.Permission(), Table: a.table, Alloc: a.alloc, Cow: a.cow,
	})
}

// ForkCOW constructs a new user AddressSpace sharing every currently-mapped
// Framed page with the source as copy-on-write, and cloning every Direct
// VMA's bookkeeping without touching its PTEs (the kernel half is already
// present via the shared KernelTemplate). Matches
// original_source's AddressSpace::from_user_lazily / CowManager::from_other_cow.
func (a *AddressSpace) ForkCOW(tmpl *sv39.KernelTemplate) (*AddressSpace, error) {
	a.lock.Acquire()
	defer a.lock.Release()

	child, err := NewAddressSpace(a.alloc, tmpl)
	if err != nil {
		return nil, err
	}
	child.heapEnd = a.heapEnd

	for _, vma := range a.ranges.vmas {
		childVMA := vma.cloneEmpty()

		if vma.strategy == Direct {
			if err := child.ranges.InsertRaw(childVMA); err != nil {
				return nil, err
			}
			continue
		}

		startVPN, endVPN := vma.VPNRange()
		for vpn := startVPN; vpn < endVPN; vpn++ {
			pg, ok := vma.pma.Page(vpn)
			if !ok {
				continue
			}

			view, err := a.table.TranslateVA2PTE(vpn << kernel.PageShift)
			if err != nil {
				continue
			}
			newFlags := (view.Flags | sv39.FlagCOW) &^ sv39.FlagWrite
			if err := a.table.ModifyFlags(vpn, newFlags); err != nil {
				return nil, err
			}

			if err := child.table.Map(vpn, pg.PPN(), newFlags); err != nil {
				return nil, err
			}
			childVMA.pma.PushPage(vpn, pg)

			a.cow.Put(vpn, pg)
			child.cow.Put(vpn, pg)
		}

		if err := child.ranges.InsertRaw(childVMA); err != nil {
			return nil, err
		}
	}

	return child, nil
}

// ClearUserSpace unmaps every user-range VMA, clears the CowManager and
// resets heap_end, implementing exec() (spec.md §4.6's clear_user_space).
func (a *AddressSpace) ClearUserSpace() error {
	a.lock.Acquire()
	defer a.lock.Release()

	for _, vma := range append([]*VMA(nil), a.ranges.vmas...) {
		if err := vma.Remove(a.table); err != nil {
			return err
		}
		a.ranges.remove(vma)
	}
	a.cow.Clear()
	a.heapEnd = 0
	return nil
}

// Release tears down the address space's page table. Callers must have
// already dropped every reference to the address space's pages.
func (a *AddressSpace) Release() {
	a.table.Release()
}
