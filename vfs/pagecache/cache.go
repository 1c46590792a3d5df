// Package pagecache implements C9: the per-inode map from file-page index
// to Page that bridges the MM core (mm/vmm's Mmap fault handler) and the
// VFS core (vfs/file's read/write path, which is always mediated by this
// cache for regular files). Grounded on
// _examples/original_source/os/src/fs/page_cache.rs (the file_page_index ->
// Page map and find_page/find_page_and_create shape) and spec.md §4.7.
package pagecache

import (
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/LittleLucifer1/duck-os/kernel"
	"github.com/LittleLucifer1/duck-os/kernel/ksync"
	"github.com/LittleLucifer1/duck-os/mm/page"
	"github.com/LittleLucifer1/duck-os/mm/pmm"
	"github.com/LittleLucifer1/duck-os/mm/sv39"
)

const errModule = "pagecache"

// ErrNoPage is returned by FindPageAndCreate when a page does not exist at
// the requested offset and the cache has no backing inode to fault it in
// from — the Go rendering of original_source's find_page_and_create
// returning None for an inode-less cache (spec.md §4.7).
var ErrNoPage = kernel.New(errModule, kernel.KindNOENT, "no page at offset and no backing inode to fault it in from")

// BackingInode is the subset of vfs/inode.Inode this cache needs to fault a
// disk-backed page in, expressed as the mm/page interfaces directly so this
// package need not import vfs/inode; *inode.Inode satisfies it, and
// vfs/file imports both packages.
type BackingInode interface {
	page.DiskBackedReader
	page.DiskWriter
}

// Cache is one inode's page cache: file-page-aligned offset -> *page.Page.
// A Cache with a nil inode backs an in-memory file (spec.md §4.7's
// "in-memory pseudo-files pass no inode"); FindPageAndCreate then only
// succeeds for offsets some writer has already populated via Put.
type Cache struct {
	lock  ksync.Spinlock
	alloc *pmm.Allocator
	inode BackingInode
	perm  sv39.PermFlags
	pages map[int64]*page.Page
}

// New returns an empty page cache. inode may be nil for an in-memory file.
func New(alloc *pmm.Allocator, inode BackingInode, perm sv39.PermFlags) *Cache {
	return &Cache{alloc: alloc, inode: inode, perm: perm, pages: make(map[int64]*page.Page)}
}

func pageOffsetOf(offset int64) int64 {
	return offset &^ (int64(kernel.PageSize) - 1)
}

// FindPage looks up the page covering offset without creating one.
func (c *Cache) FindPage(offset int64) (*page.Page, bool) {
	c.lock.Acquire()
	defer c.lock.Release()
	pg, ok := c.pages[pageOffsetOf(offset)]
	return pg, ok
}

// FindPageAndCreate returns the page covering offset, faulting it in from
// the backing inode on a miss. It satisfies mm/vmm's PageProvider interface
// so an Mmap VMA's fault handler can call it directly (spec.md §4.7/§4.5).
func (c *Cache) FindPageAndCreate(offset int64) (*page.Page, error) {
	pageOff := pageOffsetOf(offset)

	c.lock.Acquire()
	if pg, ok := c.pages[pageOff]; ok {
		c.lock.Release()
		return pg, nil
	}
	c.lock.Release()

	if c.inode == nil {
		return nil, ErrNoPage
	}

	pg, err := page.NewDiskBacked(c.alloc, c.perm, c.inode, pageOff)
	if err != nil {
		return nil, err
	}

	c.lock.Acquire()
	defer c.lock.Release()
	// Another fault may have raced us in between the unlocked NewDiskBacked
	// call; keep whichever page landed first so every caller observes the
	// same backing frame.
	if existing, ok := c.pages[pageOff]; ok {
		return existing, nil
	}
	c.pages[pageOff] = pg
	return pg, nil
}

// Put registers pg as the page covering offset, used by a write path that
// must materialize a page before any read has faulted one in (e.g. a tmpfs
// file's first write, which has no on-disk content to fault in from).
func (c *Cache) Put(offset int64, pg *page.Page) {
	c.lock.Acquire()
	defer c.lock.Release()
	c.pages[pageOffsetOf(offset)] = pg
}

// Evict removes the page covering offset, without freeing it — used by
// truncate when shrinking a file past a page it had cached.
func (c *Cache) Evict(offset int64) {
	c.lock.Acquire()
	defer c.lock.Release()
	delete(c.pages, pageOffsetOf(offset))
}

// ReadAt reads len(buf) bytes starting at file offset off, faulting in
// (or, for an in-memory file, requiring already-populated) pages as it
// crosses page boundaries. Used by vfs/file's regular-file read path,
// which is always mediated by the page cache (spec.md §4.9).
func (c *Cache) ReadAt(buf []byte, off int64) (int, error) {
	return c.ioAt(buf, off, false)
}

// WriteAt writes len(buf) bytes starting at file offset off, creating pages
// on demand.
func (c *Cache) WriteAt(buf []byte, off int64) (int, error) {
	return c.ioAt(buf, off, true)
}

func (c *Cache) ioAt(buf []byte, off int64, write bool) (int, error) {
	total := 0
	for total < len(buf) {
		pageOff := pageOffsetOf(off)
		inPage := int(off - pageOff)
		chunk := int(kernel.PageSize) - inPage
		if remaining := len(buf) - total; chunk > remaining {
			chunk = remaining
		}

		pg, err := c.FindPageAndCreate(off)
		if err == ErrNoPage {
			if !write {
				return total, nil
			}
			// A write to a never-faulted offset of an inode-less cache
			// materializes a fresh anonymous page rather than failing —
			// there is no disk content to read, but the write itself is
			// the content.
			pg, err = page.New(c.alloc, c.perm)
			if err != nil {
				return total, err
			}
			c.Put(off, pg)
		} else if err != nil {
			return total, err
		}

		var n int
		if write {
			n, err = pg.Write(inPage, buf[total:total+chunk])
		} else {
			n, err = pg.Read(inPage, buf[total:total+chunk])
		}
		if err != nil {
			return total, err
		}

		total += n
		off += int64(n)
		if n < chunk {
			break
		}
	}
	return total, nil
}

// Prefetch faults in every page covering the given file offsets
// concurrently, loading each from disk before returning. A sequential
// read-ahead of N pages would serialize N disk round-trips; this fans them
// out instead, stopping at the first real error.
func (c *Cache) Prefetch(offsets []int64) error {
	var g errgroup.Group
	for _, off := range offsets {
		off := off
		g.Go(func() error {
			pg, err := c.FindPageAndCreate(off)
			if err == ErrNoPage {
				return nil
			}
			if err != nil {
				return errors.Wrapf(err, "prefetch offset %d", off)
			}
			return pg.Load()
		})
	}
	return g.Wait()
}

// Sync writes back every dirty page to w (normally the cache's own inode).
func (c *Cache) Sync(w page.DiskWriter) error {
	c.lock.Acquire()
	pages := make([]*page.Page, 0, len(c.pages))
	for _, pg := range c.pages {
		pages = append(pages, pg)
	}
	c.lock.Release()

	for _, pg := range pages {
		if err := pg.Sync(w); err != nil {
			return errors.Wrapf(err, "sync page at offset %d", pg.Offset())
		}
	}
	return nil
}
