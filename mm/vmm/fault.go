package vmm

import (
	"github.com/LittleLucifer1/duck-os/kernel"
	"github.com/LittleLucifer1/duck-os/mm/page"
	"github.com/LittleLucifer1/duck-os/mm/pmm"
	"github.com/LittleLucifer1/duck-os/mm/sv39"
)

// ErrFault is returned by Dispatch when a faulting address has no owning
// VMA or CowManager entry (spec.md §4.5: "If no VMA contains the VA, raise
// EFAULT").
var ErrFault = kernel.New(errModule, kernel.KindFAULT, "no mapping for faulting address")

// FaultContext carries everything a FaultHandler needs to service one page
// fault. Grounded on original_source's PageFaultHandler::handler_page_fault
// parameter list (pma, vaddr, start_va, permission, cow_page_manager, pt).
type FaultContext struct {
	PMA     *PMA
	VAddr   uintptr
	StartVA uintptr
	Perm    sv39.PermFlags
	Table   *sv39.Table
	Alloc   *pmm.Allocator
	Cow     *CowManager
}

// FaultHandler services a page fault for one VMA kind.
type FaultHandler interface {
	HandleFault(ctx *FaultContext) error
}

// UserStackHandler allocates a private RW page on first touch (spec.md
// §4.5: "UserStack: allocate a Page, insert into PMA, install PTE (R|W|U),
// flush").
type UserStackHandler struct{}

// HandleFault implements FaultHandler.
func (UserStackHandler) HandleFault(ctx *FaultContext) error {
	return faultInAnonymousPage(ctx, sv39.PermRW)
}

// UserHeapHandler is identical to UserStackHandler except it also carries X
// for heap traps that need execute permission (spec.md §4.5).
type UserHeapHandler struct{}

// HandleFault implements FaultHandler.
func (UserHeapHandler) HandleFault(ctx *FaultContext) error {
	return faultInAnonymousPage(ctx, sv39.PermRWX)
}

func faultInAnonymousPage(ctx *FaultContext, perm sv39.PermFlags) error {
	vpn := ctx.VAddr >> kernel.PageShift
	pg, err := page.New(ctx.Alloc, perm)
	if err != nil {
		return err
	}
	ctx.PMA.PushPage(vpn, pg)
	if err := ctx.Table.Map(vpn, pg.PPN(), perm|sv39.FlagUser); err != nil {
		return err
	}
	ctx.Table.Activate()
	return nil
}

// PageProvider is the subset of a file's page cache a MmapHandler needs to
// fault a file-backed page in. vfs/pagecache.Cache satisfies this.
type PageProvider interface {
	FindPageAndCreate(offset int64) (*page.Page, error)
}

// MmapHandler faults a page in for a memory-mapped region: from the
// backing file's page cache if one is set, or a fresh zero page otherwise
// (spec.md §4.5).
type MmapHandler struct{}

// HandleFault implements FaultHandler.
func (MmapHandler) HandleFault(ctx *FaultContext) error {
	vpn := ctx.VAddr >> kernel.PageShift

	backing := ctx.PMA.Backing()
	if backing == nil {
		return faultInAnonymousPage(ctx, ctx.Perm)
	}

	provider, ok := backing.File.(PageProvider)
	if !ok {
		return kernel.New(errModule, kernel.KindFAULT, "mmap backing file has no page cache")
	}

	fileOffset := backing.Offset + int64(ctx.VAddr-ctx.StartVA)
	pg, err := provider.FindPageAndCreate(fileOffset)
	if err != nil {
		return err
	}
	if err := pg.Load(); err != nil {
		return err
	}

	ctx.PMA.PushPage(vpn, pg)
	if err := ctx.Table.Map(vpn, pg.PPN(), ctx.Perm|sv39.FlagUser); err != nil {
		return err
	}
	ctx.Table.Activate()
	return nil
}

// handleCowFault services a write fault on a COW-shared page: it always
// allocates a fresh page and byte-copies the shared one, clears the COW
// flag, adds write permission, remaps the VPN to the new page, and drops
// the old page's share count (freeing it once it reaches zero) (spec.md
// §4.5/§4.6).
func handleCowFault(ctx *FaultContext) error {
	vpn := ctx.VAddr >> kernel.PageShift

	view, err := ctx.Table.TranslateVA2PTE(ctx.VAddr)
	if err != nil {
		return err
	}
	if !hasFlag(view.Flags, sv39.FlagCOW) || hasFlag(view.Flags, sv39.FlagWrite) {
		return kernel.New(errModule, kernel.KindFAULT, "cow fault on a page without the cow invariant")
	}

	shared, ok := ctx.Cow.Take(vpn)
	if !ok {
		return kernel.New(errModule, kernel.KindFAULT, "faulting vpn not present in cow manager")
	}

	newFlags := (view.Flags | sv39.FlagWrite) &^ sv39.FlagCOW

	newPage, err := page.NewCopy(ctx.Alloc, shared.Permission(), shared)
	if err != nil {
		return err
	}

	if err := ctx.Table.Unmap(vpn); err != nil {
		return err
	}
	if err := ctx.Table.Map(vpn, newPage.PPN(), newFlags); err != nil {
		return err
	}
	ctx.Table.Activate()

	ctx.PMA.PushPage(vpn, newPage)

	if shared.DecRefCOW() <= 0 {
		shared.Free()
	}
	return nil
}

// hasFlag reports whether f carries every bit in other.
func hasFlag(f, other sv39.Flag) bool { return f&other == other }
