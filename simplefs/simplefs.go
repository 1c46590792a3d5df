// Package simplefs implements the dentry.MediaOps backing every in-memory
// filesystem this core mounts (devfs, procfs, tmpfs, and any plain
// directory none of those special-case). It keeps one authoritative record
// per child path — name, mode, inode — independent of whatever a Dentry's
// own child map currently holds, so a cache-evicted path can still be
// resolved. Grounded on
// _examples/original_source/os/src/fs/simplefs/{simple_dentry.rs,
// simple_inode.rs}, the pack's own minimal Dentry/Inode pair used as the
// directory implementation behind devfs/procfs/tmpfs in the original.
package simplefs

import (
	"path"
	"sync/atomic"

	"github.com/LittleLucifer1/duck-os/kernel"
	"github.com/LittleLucifer1/duck-os/kernel/ksync"
	"github.com/LittleLucifer1/duck-os/vfs/dentry"
	"github.com/LittleLucifer1/duck-os/vfs/inode"
)

const errModule = "simplefs"

// dataOps backs a plain in-memory regular file with a growable byte buffer,
// the same shape as a tmpfs file.
type dataOps struct {
	lock ksync.Spinlock
	data []byte
}

func (o *dataOps) ReadAt(buf []byte, offset int64) (int, error) {
	o.lock.Acquire()
	defer o.lock.Release()
	if offset >= int64(len(o.data)) {
		return 0, nil
	}
	return copy(buf, o.data[offset:]), nil
}

func (o *dataOps) WriteAt(buf []byte, offset int64) (int, error) {
	o.lock.Acquire()
	defer o.lock.Release()
	end := offset + int64(len(buf))
	if end > int64(len(o.data)) {
		grown := make([]byte, end)
		copy(grown, o.data)
		o.data = grown
	}
	return copy(o.data[offset:], buf), nil
}

func (o *dataOps) Truncate(newSize int64) error {
	o.lock.Acquire()
	defer o.lock.Release()
	if newSize <= int64(len(o.data)) {
		o.data = o.data[:newSize]
		return nil
	}
	grown := make([]byte, newSize)
	copy(grown, o.data)
	o.data = grown
	return nil
}

func (o *dataOps) ReadAll() ([]byte, error) {
	o.lock.Acquire()
	defer o.lock.Release()
	out := make([]byte, len(o.data))
	copy(out, o.data)
	return out, nil
}

func (o *dataOps) DeleteData() error {
	o.lock.Acquire()
	defer o.lock.Release()
	o.data = nil
	return nil
}

// dirOps backs a directory inode. A directory's data capability is never
// exercised by vfs/file (which refuses Read/Write/ReadAll/Truncate on
// ModeDirectory inodes before reaching Ops), so reaching here is an
// invariant violation rather than user-correctable input.
type dirOps struct{}

func (dirOps) ReadAt([]byte, int64) (int, error)  { panic("simplefs: read on a directory inode") }
func (dirOps) WriteAt([]byte, int64) (int, error) { panic("simplefs: write on a directory inode") }
func (dirOps) Truncate(int64) error               { panic("simplefs: truncate on a directory inode") }
func (dirOps) ReadAll() ([]byte, error)           { panic("simplefs: read_all on a directory inode") }
func (dirOps) DeleteData() error                  { return nil }

// symlinkOps stores an immutable symlink target, readable only through
// ReadAll/ReadAt.
type symlinkOps struct {
	target []byte
}

func (o *symlinkOps) ReadAt(buf []byte, offset int64) (int, error) {
	if offset >= int64(len(o.target)) {
		return 0, nil
	}
	return copy(buf, o.target[offset:]), nil
}
func (o *symlinkOps) WriteAt([]byte, int64) (int, error) {
	return 0, kernel.New(errModule, kernel.KindPERM, "symlink targets are immutable")
}
func (o *symlinkOps) Truncate(int64) error {
	return kernel.New(errModule, kernel.KindPERM, "symlink targets are immutable")
}
func (o *symlinkOps) ReadAll() ([]byte, error) {
	out := make([]byte, len(o.target))
	copy(out, o.target)
	return out, nil
}
func (o *symlinkOps) DeleteData() error { o.target = nil; return nil }

// record is one on-media entry: simplefs's source of truth for a child
// independent of whatever a Dentry currently has materialized.
type record struct {
	name  string
	mode  inode.Mode
	inode *inode.Inode
}

// FS is an in-memory dentry.MediaOps implementation. One instance backs one
// mounted filesystem's entire tree (devfs, procfs, tmpfs each construct
// their own).
type FS struct {
	lock    ksync.Spinlock
	nextIno uint64
	byPath  map[string]*record
}

// New returns an empty in-memory filesystem.
func New() *FS {
	return &FS{byPath: make(map[string]*record)}
}

func childPath(parent *dentry.Dentry, name string) string {
	return path.Join(parent.Path(), name)
}

func (fs *FS) allocIno() uint64 {
	return atomic.AddUint64(&fs.nextIno, 1)
}

// NewRootInode returns a fresh directory inode suitable for a mounted
// filesystem's root, ino 0 by convention.
func (fs *FS) NewRootInode() *inode.Inode {
	return inode.New(0, inode.ModeDirectory, inode.Dev{}, 0, dirOps{})
}

// RegisterChild records name as a child of parent with the given mode and
// capability set, independent of mode-based defaults — used by devfs/procfs
// to install device and pseudo-file nodes with custom Ops at init time, and
// internally by CreateChild for ordinary creates.
func (fs *FS) RegisterChild(parent *dentry.Dentry, name string, mode inode.Mode, ops inode.Ops) (*inode.Inode, error) {
	fs.lock.Acquire()
	defer fs.lock.Release()

	key := childPath(parent, name)
	if _, exists := fs.byPath[key]; exists {
		return nil, dentry.ErrExist
	}

	in := inode.New(fs.allocIno(), mode, inode.Dev{}, 0, ops)
	fs.byPath[key] = &record{name: name, mode: mode, inode: in}
	return in, nil
}

// LookupChild implements dentry.MediaOps.
func (fs *FS) LookupChild(parent *dentry.Dentry, name string) (*inode.Inode, inode.Mode, error) {
	fs.lock.Acquire()
	defer fs.lock.Release()

	rec, ok := fs.byPath[childPath(parent, name)]
	if !ok {
		return nil, 0, dentry.ErrNotFound
	}
	return rec.inode, rec.mode, nil
}

// LoadChildren implements dentry.MediaOps.
func (fs *FS) LoadChildren(parent *dentry.Dentry) ([]dentry.ChildInfo, error) {
	fs.lock.Acquire()
	defer fs.lock.Release()

	prefix := parent.Path()
	var out []dentry.ChildInfo
	for key, rec := range fs.byPath {
		if path.Dir(key) != prefix {
			continue
		}
		out = append(out, dentry.ChildInfo{Name: rec.name, Inode: rec.inode, Mode: rec.mode})
	}
	return out, nil
}

// CreateChild implements dentry.MediaOps, choosing a default Ops
// implementation by mode (directory vs. regular); devfs/procfs bypass this
// and call RegisterChild directly for their special files.
func (fs *FS) CreateChild(parent *dentry.Dentry, name string, mode inode.Mode) (*inode.Inode, error) {
	var ops inode.Ops
	switch mode {
	case inode.ModeDirectory:
		ops = dirOps{}
	default:
		ops = &dataOps{}
	}
	return fs.RegisterChild(parent, name, mode, ops)
}

// Remove implements dentry.MediaOps, dropping d's on-media record. The
// inode's data itself is freed separately via inode.Inode.DeleteData once
// the caller (vfs/dentry.Unlink) confirms it is orphaned.
func (fs *FS) Remove(d *dentry.Dentry) error {
	fs.lock.Acquire()
	defer fs.lock.Release()
	delete(fs.byPath, d.Path())
	return nil
}

// Move implements dentry.MediaOps.
func (fs *FS) Move(oldPath, newPath string, mode inode.Mode) error {
	fs.lock.Acquire()
	defer fs.lock.Release()

	rec, ok := fs.byPath[oldPath]
	if !ok {
		return dentry.ErrNotFound
	}
	delete(fs.byPath, oldPath)
	rec.name = path.Base(newPath)
	fs.byPath[newPath] = rec
	return nil
}

// Symlink implements dentry.MediaOps.
func (fs *FS) Symlink(parent *dentry.Dentry, name, target string) (*inode.Inode, error) {
	return fs.RegisterChild(parent, name, inode.ModeSymlink, &symlinkOps{target: []byte(target)})
}

// ReadSymlink implements dentry.MediaOps by reading d's inode directly; no
// FS-table lookup is needed since the target lives in the inode's Ops.
func (fs *FS) ReadSymlink(d *dentry.Dentry, buf []byte) (int, error) {
	data, err := d.Inode().ReadAll()
	if err != nil {
		return 0, err
	}
	return copy(buf, data), nil
}

// Link implements dentry.MediaOps, pointing a new path at an existing
// inode. The caller (vfs/dentry.Link) is responsible for IncLink.
func (fs *FS) Link(existingPath, newPath string) error {
	fs.lock.Acquire()
	defer fs.lock.Release()

	rec, ok := fs.byPath[existingPath]
	if !ok {
		return dentry.ErrNotFound
	}
	fs.byPath[newPath] = &record{name: path.Base(newPath), mode: rec.mode, inode: rec.inode}
	return nil
}
