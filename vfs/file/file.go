// Package file implements C12: open-file state (position, readdir cursor,
// open flags, an optional page-cache handle) and the read/write/seek/
// truncate/ioctl/close operations spec.md §4.9 describes. Grounded on
// _examples/original_source/os/src/fs/file.rs's File trait (FileMeta/
// FileMetaInner's f_pos/dirent_index fields, the default seek/truncate/
// close bodies) and ext4_dentry.rs's open() (which builds a FileMeta with a
// fresh PageCache per open, the origin of "open constructs the page cache
// handle" rather than the inode owning one permanently).
package file

import (
	"sort"

	"github.com/LittleLucifer1/duck-os/kernel"
	"github.com/LittleLucifer1/duck-os/kernel/ksync"
	"github.com/LittleLucifer1/duck-os/sysnum"
	"github.com/LittleLucifer1/duck-os/vfs/dentry"
	"github.com/LittleLucifer1/duck-os/vfs/inode"
	"github.com/LittleLucifer1/duck-os/vfs/pagecache"
)

const errModule = "file"

// Sentinel errors (spec.md §6's error set).
var (
	ErrIsDir  = kernel.New(errModule, kernel.KindISDIR, "operation not permitted on a directory")
	ErrBadF   = kernel.New(errModule, kernel.KindBADF, "file not opened for this operation")
	ErrInval  = kernel.New(errModule, kernel.KindINVAL, "invalid argument")
	ErrNotDir = kernel.New(errModule, kernel.KindNOTDIR, "not a directory")
)

// Whence selects the reference point for Seek (spec.md §4.9's SeekFrom).
type Whence uint8

const (
	SeekStart Whence = iota
	SeekCurrent
	SeekEnd
)

// DirentReader lists directory entries by index. Readdir does not use it: a
// directory File is opened without a page cache, and Readdir takes its
// listing from its dentry's materialized children.
type DirentReader interface {
	ReadDir() []*dentry.Dentry
}

// File is one process's view of an open filesystem object: its dentry, the
// inode it names, an optional regular-file page cache, open flags, current
// position and readdir cursor (spec.md §3's File tuple).
type File struct {
	lock ksync.Spinlock

	dentry *dentry.Dentry
	inode  *inode.Inode
	cache  *pagecache.Cache // nil for directories and page-cache-bypassing devices
	flags  sysnum.OpenFlags

	pos         int64
	direntIndex int
}

// Open builds a File for d under flags. cache may be nil for directories
// and devices that bypass the page cache (spec.md §4.9: regular-file I/O
// is "always mediated by the page cache"; devfs nodes are not regular
// files). Open increments the inode's open_count and, per O_APPEND/
// O_TRUNC, seeks to end or truncates to zero before returning.
func Open(d *dentry.Dentry, flags sysnum.OpenFlags, cache *pagecache.Cache) (*File, error) {
	in := d.Inode()
	in.IncOpen()

	f := &File{dentry: d, inode: in, cache: cache, flags: flags}

	if flags.Has(sysnum.OTrunc) && in.Mode() == inode.ModeRegular {
		if err := f.Truncate(0); err != nil {
			return nil, err
		}
	}
	if flags.Has(sysnum.OAppend) {
		if _, err := f.Seek(SeekEnd, 0); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Dentry, Inode are plain accessors.
func (f *File) Dentry() *dentry.Dentry { return f.dentry }
func (f *File) Inode() *inode.Inode    { return f.inode }

// Cache returns the file's page cache, or nil for directories and devices
// that bypass it — the loader's segment mapper uses this to share cached
// pages for read-only PT_LOAD segments instead of copying their bytes.
func (f *File) Cache() *pagecache.Cache { return f.cache }

func (f *File) position() int64 {
	f.lock.Acquire()
	defer f.lock.Release()
	return f.pos
}

// Read reads into buf starting at the file's current position, advancing
// it by the number of bytes read. Regular files are mediated by the page
// cache; other inode kinds (devfs nodes) are read directly.
func (f *File) Read(buf []byte) (int, error) {
	if f.inode.Mode() == inode.ModeDirectory {
		return 0, ErrIsDir
	}

	pos := f.position()
	n, err := f.readAt(buf, pos)
	if err != nil {
		return n, err
	}

	f.lock.Acquire()
	f.pos += int64(n)
	f.lock.Release()

	if !f.flags.Has(sysnum.ONoatime) {
		f.inode.TouchAtime()
	}
	return n, nil
}

func (f *File) readAt(buf []byte, pos int64) (int, error) {
	if f.cache != nil {
		return f.cache.ReadAt(buf, pos)
	}
	return f.inode.ReadAt(buf, pos)
}

// Write writes buf starting at the file's current position, advancing it
// and growing the inode's recorded size (spec.md §4.9: "i_size = max(old,
// new_end)").
func (f *File) Write(buf []byte) (int, error) {
	if f.inode.Mode() == inode.ModeDirectory {
		return 0, ErrIsDir
	}
	if !f.flags.Writable() {
		return 0, ErrBadF
	}

	pos := f.position()
	var n int
	var err error
	if f.cache != nil {
		n, err = f.cache.WriteAt(buf, pos)
	} else {
		n, err = f.inode.WriteAt(buf, pos)
	}
	if err != nil {
		return n, err
	}

	f.lock.Acquire()
	f.pos += int64(n)
	newPos := f.pos
	f.lock.Release()

	f.inode.TouchWrite(newPos)
	return n, nil
}

// ReadAll reads the entire file in one call, used for small pseudo-files
// (procfs) that never seek, and for regular files where a whole-file read
// is cheaper than chunking through Read.
func (f *File) ReadAll() ([]byte, error) {
	if f.cache == nil {
		return f.inode.ReadAll()
	}
	size := f.inode.Size()
	buf := make([]byte, size)
	if _, err := f.cache.ReadAt(buf, 0); err != nil {
		return nil, err
	}
	return buf, nil
}

// Seek updates the file's position per whence/offset and returns the new
// position (spec.md §4.9's seek; negative results are rejected since
// sparse-file holes below zero make no sense and spec.md's Non-goals
// exclude sparse files regardless).
func (f *File) Seek(whence Whence, offset int64) (int64, error) {
	f.lock.Acquire()
	defer f.lock.Release()

	var newPos int64
	switch whence {
	case SeekStart:
		newPos = offset
	case SeekCurrent:
		newPos = f.pos + offset
	case SeekEnd:
		newPos = f.inode.Size() + offset
	default:
		return 0, ErrInval
	}
	if newPos < 0 {
		return 0, ErrInval
	}
	f.pos = newPos
	return newPos, nil
}

// Truncate resizes the file to newSize. On shrink, any page-cache pages
// wholly beyond the new size are evicted so a later fault-in doesn't serve
// stale contents.
//
// original_source's default truncate body computes
// `buf = vec![0; old_file_size - new_size]` identically in both the shrink
// and grow branches, which underflows (or wraps) whenever new_size exceeds
// old_file_size — that expression was never meant to run on growth. This
// implementation instead delegates resizing (shrink or grow) entirely to
// the inode's Ops.Truncate, whose growth case zero-fills the newly exposed
// bytes directly at the data layer, sidestepping the original's bug rather
// than reproducing it.
func (f *File) Truncate(newSize int64) error {
	if f.inode.Mode() != inode.ModeRegular {
		return ErrIsDir
	}
	if newSize < 0 {
		return ErrInval
	}

	oldSize := f.inode.Size()
	if err := f.inode.Truncate(newSize); err != nil {
		return err
	}

	if f.cache != nil && newSize < oldSize {
		for off := kernel.PageAlignUp(uintptr(newSize)); off < uintptr(oldSize); off += kernel.PageSize {
			f.cache.Evict(int64(off))
		}
	}
	return nil
}

// DirentIndex returns the readdir cursor getdents64 resumes from.
func (f *File) DirentIndex() int {
	f.lock.Acquire()
	defer f.lock.Release()
	return f.direntIndex
}

// SetDirentIndex advances the readdir cursor past the last fully written
// entry (spec.md §6: "the file's dirent_index advances past the last fully
// written entry").
func (f *File) SetDirentIndex(idx int) {
	f.lock.Acquire()
	defer f.lock.Release()
	f.direntIndex = idx
}

// Readdir returns this directory's materialized children in a stable,
// name-sorted order — a Go map has no inherent iteration order, so this is
// this implementation's rendering of spec.md §6's "child-map order" for
// getdents64 pagination to stay consistent call to call.
func (f *File) Readdir() ([]*dentry.Dentry, error) {
	if f.inode.Mode() != inode.ModeDirectory {
		return nil, ErrNotDir
	}
	children := f.dentry.Children()
	sort.Slice(children, func(i, j int) bool { return children[i].Name() < children[j].Name() })
	return children, nil
}

// Ioctl dispatches a device-specific command to the inode, if its Ops
// implements inode.Ioctler (spec.md §4.8's device pseudo-file ioctls).
func (f *File) Ioctl(cmd, arg uintptr) (uintptr, error) {
	return f.inode.Ioctl(cmd, arg)
}

// Close decrements the inode's open_count and, if the inode is now
// orphaned (no links and no other opens), removes its backing data
// (spec.md §3's File lifecycle).
func (f *File) Close() error {
	if orphaned := f.inode.DecOpen(); orphaned {
		return f.inode.DeleteData()
	}
	return nil
}
