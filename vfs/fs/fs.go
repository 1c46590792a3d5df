// Package fs implements C13: the filesystem registry spec.md §4.8 and §2
// describe — a string-tagged filesystem constructor plus a path→filesystem
// mount table. Grounded on
// _examples/original_source/os/src/fs/file_system.rs's FileSystemManager
// (mount/unmount, the VFAT-without-a-device EmptyFileSystem shortcut) and
// its FileSystem trait.
package fs

import (
	"path"

	"github.com/LittleLucifer1/duck-os/kernel"
	"github.com/LittleLucifer1/duck-os/kernel/ksync"
	"github.com/LittleLucifer1/duck-os/sysnum"
	"github.com/LittleLucifer1/duck-os/vfs/dentry"
	"github.com/LittleLucifer1/duck-os/vfs/inode"
)

const errModule = "fs"

// Type is the string tag a filesystem is registered under (spec.md §4.8:
// "Registered by string tag {VFAT, DevFs, TmpFs, ProcFs, EXT4}").
type Type string

const (
	VFAT   Type = "VFAT"
	DevFs  Type = "DevFs"
	TmpFs  Type = "TmpFs"
	ProcFs Type = "ProcFs"
	EXT4   Type = "EXT4"
)

// ErrNotMounted is returned when a mount point is not present in the table.
var ErrNotMounted = kernel.New(errModule, kernel.KindNOENT, "no filesystem mounted at this path")

// FileSystem is anything the registry can mount: something that owns a root
// dentry and reports the tag it was constructed under.
type FileSystem interface {
	Type() Type
	RootDentry() *dentry.Dentry
}

// EmptyFileSystem is the degenerate filesystem mounted when a caller asks
// for tag VFAT with no backing block device — the Go rendering of
// original_source's "this line exists purely to pass the mount.c test case"
// EmptyFileSystem shortcut. Its root is a directory with no MediaOps, so
// every lookup below it fails with ENOENT rather than panicking.
type EmptyFileSystem struct {
	typ  Type
	root *dentry.Dentry
}

// NewEmptyFileSystem builds a VFAT-tagged EmptyFileSystem rooted at an
// inode with no backing data capability beyond directory bookkeeping.
func NewEmptyFileSystem() *EmptyFileSystem {
	return NewEmptyFileSystemOf(VFAT)
}

// NewEmptyFileSystemOf builds an EmptyFileSystem tagged typ — used by
// ext4shim for the analogous EXT4-tag-without-a-device shortcut spec.md
// §4.11a describes.
func NewEmptyFileSystemOf(typ Type) *EmptyFileSystem {
	root := inode.New(0, inode.ModeDirectory, inode.Dev{}, 0, emptyOps{})
	return &EmptyFileSystem{typ: typ, root: dentry.NewRoot(root, nil)}
}

func (e *EmptyFileSystem) Type() Type                 { return e.typ }
func (e *EmptyFileSystem) RootDentry() *dentry.Dentry { return e.root }

type emptyOps struct{}

func (emptyOps) ReadAt([]byte, int64) (int, error)  { return 0, nil }
func (emptyOps) WriteAt([]byte, int64) (int, error) { return 0, kernel.New(errModule, kernel.KindNOSPC, "empty filesystem accepts no writes") }
func (emptyOps) Truncate(int64) error               { return nil }
func (emptyOps) ReadAll() ([]byte, error)           { return nil, nil }
func (emptyOps) DeleteData() error                  { return nil }

// Manager is the mount table: path → FileSystem (spec.md §4.8's "The
// manager's mount table is a path → filesystem map").
type Manager struct {
	lock  ksync.Spinlock
	cache *dentry.Cache
	table map[string]FileSystem
}

// NewManager returns an empty registry sharing the given dentry cache
// (every mounted filesystem's root is registered into the same
// process-wide cache, per spec.md §3's single DentryCache).
func NewManager(cache *dentry.Cache) *Manager {
	return &Manager{cache: cache, table: make(map[string]FileSystem)}
}

// Mount registers construct()'s result at mountPoint, unless flags/typ call
// for the VFAT-no-device shortcut (fsType VFAT with construct == nil),
// which installs an EmptyFileSystem instead (spec.md §4.8).
func (m *Manager) Mount(mountPoint string, typ Type, flags sysnum.FSFlags, construct func() (FileSystem, error)) error {
	var target FileSystem
	if typ == VFAT && construct == nil {
		target = NewEmptyFileSystem()
	} else {
		built, err := construct()
		if err != nil {
			return err
		}
		target = built
	}

	m.lock.Acquire()
	defer m.lock.Release()
	m.table[mountPoint] = target
	m.cache.Put(mountPoint, target.RootDentry())
	return nil
}

// Unmount removes mountPoint from the table and the dentry cache, detaching
// it from its parent's child map if it has one (spec.md §4.8).
func (m *Manager) Unmount(mountPoint string) error {
	m.lock.Acquire()
	if _, ok := m.table[mountPoint]; !ok {
		m.lock.Release()
		return ErrNotMounted
	}
	delete(m.table, mountPoint)
	m.lock.Release()

	m.cache.Remove(mountPoint)

	if mountPoint == "/" {
		return nil
	}
	parentPath := path.Dir(mountPoint)
	if parent, ok := m.cache.Get(parentPath); ok {
		parent.DetachChild(m.cache, path.Base(mountPoint))
	}
	return nil
}

// RootFS returns the filesystem mounted at "/".
func (m *Manager) RootFS() (FileSystem, error) {
	m.lock.Acquire()
	defer m.lock.Release()
	fsys, ok := m.table["/"]
	if !ok {
		return nil, ErrNotMounted
	}
	return fsys, nil
}

// RootDentry returns the root dentry of the filesystem mounted at "/".
func (m *Manager) RootDentry() (*dentry.Dentry, error) {
	fsys, err := m.RootFS()
	if err != nil {
		return nil, err
	}
	return fsys.RootDentry(), nil
}

// Lookup resolves mountPoint to its registered FileSystem.
func (m *Manager) Lookup(mountPoint string) (FileSystem, bool) {
	m.lock.Acquire()
	defer m.lock.Release()
	fsys, ok := m.table[mountPoint]
	return fsys, ok
}

// MountEntry is one row of the live mount table, as rendered by procfs's
// /proc/mounts.
type MountEntry struct {
	MountPoint string
	Type       Type
}

// Mounts returns every currently registered mount point, used to render
// /proc/mounts — a genuine implementation of what original_source leaves
// as an unimplemented placeholder.
func (m *Manager) Mounts() []MountEntry {
	m.lock.Acquire()
	defer m.lock.Release()
	out := make([]MountEntry, 0, len(m.table))
	for mountPoint, fsys := range m.table {
		out = append(out, MountEntry{MountPoint: mountPoint, Type: fsys.Type()})
	}
	return out
}
