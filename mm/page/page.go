// Package page implements C3: a Page, the unit of data a PMA entry or the
// page cache holds. A Page owns one physical frame plus permission bits and,
// for file-backed pages, the per-sector sync state the page cache needs to
// avoid re-reading data it already holds. Grounded on
// _examples/original_source/os/src/mm/pma.rs's Page/DiskFileInfo, translated
// from Rust's Arc<Page>+SpinLock<usize> cow_count into the teacher's
// Go idiom of a plain struct guarded by an explicit lock
// (gopher-os-gopher-os/src/gopheros/kernel/sync.Spinlock).
package page

import (
	"github.com/LittleLucifer1/duck-os/kernel"
	"github.com/LittleLucifer1/duck-os/kernel/ksync"
	"github.com/LittleLucifer1/duck-os/mm/pmm"
	"github.com/LittleLucifer1/duck-os/mm/sv39"
)

const errModule = "page"

// DataState describes the sync state of one on-disk sector backing a page.
type DataState uint8

// Sector states, matching original_source's DataState enum.
const (
	StateEmpty DataState = iota
	StateSync
	StateDirty
)

// DiskBackedReader is the subset of vfs/inode.Inode a Page needs to fault
// sectors in from disk. It is defined here (rather than importing vfs/inode
// directly) to avoid a cyclic import between mm and vfs; vfs/pagecache
// supplies the concrete inode.
type DiskBackedReader interface {
	ReadAt(buf []byte, offset int64) (int, error)
}

// diskInfo tracks the file-backing of a page used by the page cache: which
// inode and page-aligned file offset the page mirrors, and the per-sector
// state array (spec.md's DiskFileInfo).
type diskInfo struct {
	lock        ksync.IRQLock // sector state is also touched by the fault dispatcher
	inode       DiskBackedReader
	pageOffset  int64 // byte offset of this page within the file
	sectorState [kernel.SectorsPerPage]DataState
}

// Page is the unit of physical storage referenced by a PMA entry, a
// CowManager entry, or a page-cache slot.
type Page struct {
	frame      *pmm.FrameHandle
	permission sv39.PermFlags
	disk       *diskInfo

	cowLock  ksync.Spinlock
	cowCount int
}

// New allocates a fresh zero-filled anonymous page.
func New(alloc *pmm.Allocator, perm sv39.PermFlags) (*Page, error) {
	f, err := alloc.Alloc()
	if err != nil {
		return nil, err
	}
	return &Page{frame: f, permission: perm}, nil
}

// NewDiskBacked allocates an empty page that will be populated on demand
// from the given inode starting at pageOffset (a page-aligned byte offset
// into the file). Used by the page cache when faulting in a file-backed
// page for the first time.
func NewDiskBacked(alloc *pmm.Allocator, perm sv39.PermFlags, inode DiskBackedReader, pageOffset int64) (*Page, error) {
	p, err := New(alloc, perm)
	if err != nil {
		return nil, err
	}
	p.disk = &diskInfo{inode: inode, pageOffset: pageOffset}
	return p, nil
}

// NewCopy allocates a new page and copies src's contents into it, used by
// the COW fault handler and by fork paths that must break sharing
// immediately.
func NewCopy(alloc *pmm.Allocator, perm sv39.PermFlags, src *Page) (*Page, error) {
	p, err := New(alloc, perm)
	if err != nil {
		return nil, err
	}
	copy(p.frame.Bytes(), src.frame.Bytes())
	return p, nil
}

// PPN returns the physical frame backing this page.
func (p *Page) PPN() pmm.Frame { return p.frame.PPN() }

// Offset returns the page-aligned byte offset this page mirrors within its
// inode, or 0 if the page is anonymous.
func (p *Page) Offset() int64 {
	if p.disk == nil {
		return 0
	}
	return p.disk.pageOffset
}

// Permission returns the page's permission bits.
func (p *Page) Permission() sv39.PermFlags { return p.permission }

// SetPermission updates the page's permission bits.
func (p *Page) SetPermission(perm sv39.PermFlags) { p.permission = perm }

// Bytes returns the page's raw backing storage.
func (p *Page) Bytes() []byte { return p.frame.Bytes() }

// Clear zero-fills the page's contents.
func (p *Page) Clear() {
	clear(p.frame.Bytes())
}

// Free returns the page's frame to its allocator. Callers must ensure no
// other PMA/CowManager/page-cache entry still references this Page.
func (p *Page) Free() { p.frame.Free() }

// IncRefCOW increments the page's COW share count, returning the new count.
func (p *Page) IncRefCOW() int {
	p.cowLock.Acquire()
	defer p.cowLock.Release()
	p.cowCount++
	return p.cowCount
}

// DecRefCOW decrements the page's COW share count, returning the new count.
// Callers must Free the page once the count reaches zero.
func (p *Page) DecRefCOW() int {
	p.cowLock.Acquire()
	defer p.cowLock.Release()
	p.cowCount--
	return p.cowCount
}

// COWCount returns the current COW share count.
func (p *Page) COWCount() int {
	p.cowLock.Acquire()
	defer p.cowLock.Release()
	return p.cowCount
}

func secIdx(pageOffset int) int { return pageOffset / kernel.SectorSize }

// ensureSector faults in a single sector from disk if it is still Empty,
// leaving it Sync.
func (p *Page) ensureSector(idx int) error {
	d := p.disk
	d.lock.Acquire()
	state := d.sectorState[idx]
	d.lock.Release()
	if state != StateEmpty {
		return nil
	}

	start := idx * kernel.SectorSize
	n, err := d.inode.ReadAt(p.frame.Bytes()[start:start+kernel.SectorSize], d.pageOffset+int64(start))
	if err != nil {
		return kernel.Wrap(errModule, kernel.KindFAULT, err)
	}
	_ = n

	d.lock.Acquire()
	d.sectorState[idx] = StateSync
	d.lock.Release()
	return nil
}

// Load faults in every sector of a disk-backed page. Used by the page fault
// dispatcher's Mmap handler the first time a file-backed page is mapped.
func (p *Page) Load() error {
	if p.disk == nil {
		return kernel.New(errModule, kernel.KindINVAL, "Load called on an anonymous page")
	}
	for idx := 0; idx < kernel.SectorsPerPage; idx++ {
		if err := p.ensureSector(idx); err != nil {
			return err
		}
	}
	return nil
}

// Read copies len(buf) bytes starting at pageOffset out of the page,
// faulting in any Empty disk-backed sector it touches first.
func (p *Page) Read(pageOffset int, buf []byte) (int, error) {
	if pageOffset < 0 || pageOffset >= int(kernel.PageSize) {
		return 0, kernel.New(errModule, kernel.KindINVAL, "page offset out of range")
	}
	n := len(buf)
	if max := int(kernel.PageSize) - pageOffset; n > max {
		n = max
	}

	if p.disk != nil {
		end := pageOffset + n
		for idx := secIdx(pageOffset); idx <= secIdx(end-1); idx++ {
			if err := p.ensureSector(idx); err != nil {
				return 0, err
			}
		}
	}

	copy(buf[:n], p.frame.Bytes()[pageOffset:pageOffset+n])
	return n, nil
}

// Write copies len(buf) bytes into the page starting at pageOffset. For a
// disk-backed page, any sector the write only partially covers is first
// faulted in (so the surrounding bytes aren't lost), then marked Dirty.
func (p *Page) Write(pageOffset int, buf []byte) (int, error) {
	if pageOffset < 0 || pageOffset >= int(kernel.PageSize) {
		return 0, kernel.New(errModule, kernel.KindINVAL, "page offset out of range")
	}
	n := len(buf)
	if max := int(kernel.PageSize) - pageOffset; n > max {
		n = max
	}

	if p.disk != nil {
		d := p.disk
		end := pageOffset + n
		for idx := secIdx(pageOffset); idx <= secIdx(end-1); idx++ {
			// A sector fully overwritten by this write need not be read
			// first; a partially-overwritten Empty sector must be, so the
			// untouched bytes survive.
			secStart, secEnd := idx*kernel.SectorSize, (idx+1)*kernel.SectorSize
			fullyCovered := pageOffset <= secStart && end >= secEnd
			d.lock.Acquire()
			state := d.sectorState[idx]
			d.lock.Release()
			if state == StateEmpty && !fullyCovered {
				if err := p.ensureSector(idx); err != nil {
					return 0, err
				}
			}
			d.lock.Acquire()
			d.sectorState[idx] = StateDirty
			d.lock.Release()
		}
	}

	copy(p.frame.Bytes()[pageOffset:pageOffset+n], buf[:n])
	return n, nil
}

// DiskWriter is the subset of vfs/inode.Inode the page cache's write-back
// path needs.
type DiskWriter interface {
	WriteAt(buf []byte, offset int64) (int, error)
	Size() int64
}

// Sync writes every Dirty sector back to the page's backing inode, stopping
// (without error) once the inode has been truncated past this page's
// offset.
func (p *Page) Sync(w DiskWriter) error {
	if p.disk == nil {
		return kernel.New(errModule, kernel.KindINVAL, "Sync called on an anonymous page")
	}
	d := p.disk

	for idx := 0; idx < kernel.SectorsPerPage; idx++ {
		d.lock.Acquire()
		state := d.sectorState[idx]
		d.lock.Release()
		if state != StateDirty {
			continue
		}

		secOff := idx * kernel.SectorSize
		fileOff := d.pageOffset + int64(secOff)
		if w.Size() <= fileOff {
			return nil
		}
		if _, err := w.WriteAt(p.frame.Bytes()[secOff:secOff+kernel.SectorSize], fileOff); err != nil {
			return kernel.Wrap(errModule, kernel.KindFAULT, err)
		}
		d.lock.Acquire()
		d.sectorState[idx] = StateSync
		d.lock.Release()
	}
	return nil
}
