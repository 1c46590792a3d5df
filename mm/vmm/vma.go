package vmm

import (
	"github.com/LittleLucifer1/duck-os/kernel"
	"github.com/LittleLucifer1/duck-os/mm/page"
	"github.com/LittleLucifer1/duck-os/mm/pmm"
	"github.com/LittleLucifer1/duck-os/mm/sv39"
)

// Kind identifies what a VMA is used for; it selects which fault handler
// (if any) is attached (spec.md §4.3/§4.5).
type Kind uint8

// VMA kinds, matching original_source's VmaType.
const (
	KindELF Kind = iota
	KindUserStack
	KindMmap
	KindUserHeap
	KindPhysFrame
	KindMmio
	KindInterp
)

// MapStrategy selects how a VMA's VPNs are backed by physical frames
// (spec.md §4.3).
type MapStrategy uint8

const (
	// Direct maps VPN -> PPN = VPN - kernel offset, with no PMA entry. Used
	// only for kernel-internal regions.
	Direct MapStrategy = iota
	// Framed allocates (or is given) a Page per VPN and records it in the
	// VMA's PMA.
	Framed
)

// kernelDirectOffset is the fixed VPN->PPN offset used by Direct-mapped
// VMAs (spec.md §4.3: "VPN - fixed kernel offset").
const kernelDirectOffset = kernel.KernelHalfBase >> kernel.PageShift

// VMA is one logical segment of an address space: a page-aligned virtual
// range with uniform permissions, its PMA, and (for Framed VMAs with a
// fault-driven backing) a handler.
type VMA struct {
	pma *PMA

	start, end uintptr // page-aligned virtual addresses, half-open [start,end)
	perm       sv39.PermFlags
	kind       Kind
	strategy   MapStrategy
	handler    FaultHandler
}

// New builds a VMA covering [start, end), rounding both endpoints to page
// boundaries.
func New(start, end uintptr, perm sv39.PermFlags, strategy MapStrategy, kind Kind, handler FaultHandler) *VMA {
	return &VMA{
		pma:      newPMA(),
		start:    kernel.PageAlignDown(start),
		end:      kernel.PageAlignUp(end),
		perm:     perm,
		kind:     kind,
		strategy: strategy,
		handler:  handler,
	}
}

// cloneEmpty returns a VMA with the same bounds/permission/kind/handler but
// an empty PMA, used when copying a VMA across address spaces without
// copying its physical pages (COW fork copies the PTEs/pages separately).
func (v *VMA) cloneEmpty() *VMA {
	return &VMA{
		pma:      newPMA(),
		start:    v.start,
		end:      v.end,
		perm:     v.perm,
		kind:     v.kind,
		strategy: v.strategy,
		handler:  v.handler,
	}
}

// Start, End, Permission, Kind, Strategy, PMA are plain accessors.
func (v *VMA) Start() uintptr             { return v.start }
func (v *VMA) End() uintptr               { return v.end }
func (v *VMA) Permission() sv39.PermFlags { return v.perm }
func (v *VMA) Kind() Kind                 { return v.kind }
func (v *VMA) Strategy() MapStrategy      { return v.strategy }
func (v *VMA) PMA() *PMA                  { return v.pma }

// VPNRange returns the half-open [startVPN, endVPN) this VMA covers.
func (v *VMA) VPNRange() (uintptr, uintptr) {
	return v.start >> kernel.PageShift, v.end >> kernel.PageShift
}

// Contains reports whether addr falls within [start, end).
func (v *VMA) Contains(addr uintptr) bool {
	return v.start <= addr && addr < v.end
}

// Overlaps reports whether [start, end) intersects this VMA's range.
func (v *VMA) Overlaps(start, end uintptr) bool {
	return !(end <= v.start || start >= v.end)
}

// MapOne installs a VPN, using the supplied page when provided (Framed) or
// computing a Direct PPN, and returns the frame it mapped.
func (v *VMA) MapOne(pt *sv39.Table, alloc *pmm.Allocator, vpn uintptr, pg *page.Page) (pmm.Frame, error) {
	switch v.strategy {
	case Direct:
		frame := pmm.Frame(vpn - kernelDirectOffset)
		if err := pt.Map(vpn, frame, v.perm|sv39.FlagUser); err != nil {
			return 0, err
		}
		return frame, nil
	default: // Framed
		if pg == nil {
			var err error
			pg, err = page.New(alloc, v.perm)
			if err != nil {
				return 0, err
			}
		}
		v.pma.PushPage(vpn, pg)
		if err := pt.Map(vpn, pg.PPN(), v.perm|sv39.FlagUser); err != nil {
			return 0, err
		}
		return pg.PPN(), nil
	}
}

// MapOneLazily writes a zero PTE for vpn so a later access traps into the
// fault dispatcher (spec.md's map_all_lazy). Only valid for Framed VMAs.
func (v *VMA) MapOneLazily(pt *sv39.Table, vpn uintptr) error {
	return pt.MapLazy(vpn)
}

// Unmap clears vpn's PTE and, for Framed VMAs, removes its PMA entry.
func (v *VMA) Unmap(pt *sv39.Table, vpn uintptr) error {
	if v.strategy == Framed {
		v.pma.PopPage(vpn)
	}
	return pt.Unmap(vpn)
}

// MapAll maps every VPN in the VMA's range with a fresh page per VPN.
func (v *VMA) MapAll(pt *sv39.Table, alloc *pmm.Allocator) error {
	startVPN, endVPN := v.VPNRange()
	for vpn := startVPN; vpn < endVPN; vpn++ {
		if _, err := v.MapOne(pt, alloc, vpn, nil); err != nil {
			return err
		}
	}
	return nil
}

// MapAllLazy writes a zero PTE for every VPN in the VMA's range.
func (v *VMA) MapAllLazy(pt *sv39.Table) error {
	startVPN, endVPN := v.VPNRange()
	for vpn := startVPN; vpn < endVPN; vpn++ {
		if err := v.MapOneLazily(pt, vpn); err != nil {
			return err
		}
	}
	return nil
}

// Remove unmaps every VPN in the VMA's range (spec.md's remove(pt)).
func (v *VMA) Remove(pt *sv39.Table) error {
	startVPN, endVPN := v.VPNRange()
	for vpn := startVPN; vpn < endVPN; vpn++ {
		if err := v.Unmap(pt, vpn); err != nil {
			return err
		}
	}
	return nil
}

// Modify updates the VMA's permission and every already-mapped leaf PTE in
// its range to match (spec.md's modify(new_permission)).
func (v *VMA) Modify(pt *sv39.Table, newPerm sv39.PermFlags) error {
	v.perm = newPerm
	startVPN, endVPN := v.VPNRange()
	for vpn := startVPN; vpn < endVPN; vpn++ {
		if _, ok := v.pma.Page(vpn); ok {
			if err := pt.ModifyFlags(vpn, newPerm|sv39.FlagUser); err != nil {
				return err
			}
		}
	}
	return nil
}

// Expand grows the VMA's end to newEnd (used by the brk syscall). No pages
// are allocated or mapped; a subsequent fault handles that.
func (v *VMA) Expand(newEnd uintptr) { v.end = kernel.PageAlignUp(newEnd) }

// Split divides the VMA at pos (must be page-aligned), shrinking the
// receiver to [start, pos) and returning a new VMA for [pos, end), with the
// PMA's pages partitioned accordingly.
func (v *VMA) Split(pos uintptr) *VMA {
	oldEnd := v.end
	v.end = pos

	right := v.cloneEmpty()
	right.start, right.end = pos, oldEnd

	if v.strategy == Framed {
		posVPN, oldEndVPN := pos>>kernel.PageShift, oldEnd>>kernel.PageShift
		right.pma = v.pma.Split(posVPN, oldEndVPN)
	}
	return right
}

// WriteDataToPages writes data into the VMA starting at virtual address
// startVA, chunking across as many pages as needed (spec.md §4.3:
// write_data_to_page). Used by the ELF loader to deposit segment contents.
func (v *VMA) WriteDataToPages(startVA uintptr, data []byte, offsetInFirstPage int) error {
	return v.ioDataToPages(startVA, data, offsetInFirstPage, true)
}

// ReadDataFromPages is the read-side counterpart of WriteDataToPages.
func (v *VMA) ReadDataFromPages(startVA uintptr, data []byte, offsetInFirstPage int) error {
	return v.ioDataToPages(startVA, data, offsetInFirstPage, false)
}

func (v *VMA) ioDataToPages(startVA uintptr, data []byte, offset int, write bool) error {
	start := 0
	currentVA := startVA
	maxLen := len(data)

	for {
		end := maxLen
		if chunkEnd := start + int(kernel.PageSize) - offset; chunkEnd < end {
			end = chunkEnd
		}
		vpn := currentVA >> kernel.PageShift

		var err error
		if write {
			err = v.pma.WriteAt(vpn, offset, data[start:end])
		} else {
			err = v.pma.ReadAt(vpn, offset, data[start:end])
		}
		if err != nil {
			return err
		}

		start = end
		if start >= maxLen {
			return nil
		}
		offset = 0
		currentVA += kernel.PageSize
	}
}
