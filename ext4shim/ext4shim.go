// Package ext4shim adapts the vfs/dentry and vfs/inode contracts to an
// external, disk-backed ext4 driver — the "Ext4File"/"Ext4Dir" low-level
// handle spec.md §1 names as an out-of-scope collaborator. This package
// does not implement the ext4 on-disk format itself; it only translates
// between this core's VFS shape and whatever concrete driver satisfies
// the Device interface below. Grounded on
// _examples/original_source/os/src/fs/ext4/{ext4_inode.rs,ext4_dentry.rs,
// ext4_fs.rs}, which wrap the lwext4_rust crate's Ext4File/Ext4Dir the
// same way.
package ext4shim

import (
	"path"

	"github.com/LittleLucifer1/duck-os/kernel"
	"github.com/LittleLucifer1/duck-os/vfs/dentry"
	"github.com/LittleLucifer1/duck-os/vfs/fs"
	"github.com/LittleLucifer1/duck-os/vfs/inode"
)

const errModule = "ext4shim"

// EntryKind mirrors the on-disk object kinds a directory listing reports,
// matching original_source's InodeTypes::EXT4_DE_*.
type EntryKind uint8

const (
	EntryRegular EntryKind = iota
	EntryDirectory
	EntrySymlink
)

// DirEntry is one row of a directory listing.
type DirEntry struct {
	Name string
	Kind EntryKind
}

// File is the external driver's open-file handle: seek/read/write/
// truncate/size, matching Ext4File's method set (ext4_inode.rs's
// Ext4Inode::read/write/delete_data/read_all all funnel through exactly
// these operations).
type File interface {
	Seek(offset int64, whence int) (int64, error)
	Read(buf []byte) (int, error)
	Write(buf []byte) (int, error)
	Truncate(size int64) error
	Size() int64
}

// Dir is the external driver's open-directory handle: a listing of
// immediate children, matching Ext4Dir's lwext4_dir_entries.
type Dir interface {
	Entries() ([]DirEntry, error)
}

// Device is the external ext4 driver surface this package adapts: the
// set of path-addressed operations original_source calls through
// lwext4_rust's free functions (lwext4_rmfile, lwext4_rmdir, lwext4_link,
// lwext4_symlink, lwext4_readlink, lwext4_mvfile/lwext4_mvdir) plus
// Ext4File::open/Ext4Dir::open for traversal.
type Device interface {
	OpenFile(path string, mode inode.Mode) (File, error)
	OpenDir(path string) (Dir, error)
	Exists(path string) (EntryKind, bool)
	Mkdir(path string) error
	Mknod(path string) error
	Remove(path string, kind EntryKind) error
	Move(oldPath, newPath string) error
	Link(existingPath, newPath string) error
	Symlink(target, path string) error
	Readlink(path string) (string, error)
}

// fileOps adapts a File to inode.Ops by seeking before every ReadAt/
// WriteAt, the same "seek then read/write" pattern
// ext4_inode.rs::Inode::read/write use against Ext4File.
type fileOps struct {
	f File
}

func (o *fileOps) ReadAt(buf []byte, offset int64) (int, error) {
	if _, err := o.f.Seek(offset, 0); err != nil {
		return 0, err
	}
	return o.f.Read(buf)
}

func (o *fileOps) WriteAt(buf []byte, offset int64) (int, error) {
	if _, err := o.f.Seek(offset, 0); err != nil {
		return 0, err
	}
	return o.f.Write(buf)
}

func (o *fileOps) Truncate(newSize int64) error { return o.f.Truncate(newSize) }

func (o *fileOps) ReadAll() ([]byte, error) {
	size := o.f.Size()
	buf := make([]byte, size)
	if _, err := o.f.Seek(0, 0); err != nil {
		return nil, err
	}
	if _, err := o.f.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// DeleteData truncates the on-disk file to zero length, matching
// ext4_inode.rs::Inode::delete_data's call through to Ext4File::truncate(0)
// — actual unlink of the directory entry happens one layer up, in Remove.
func (o *fileOps) DeleteData() error { return o.f.Truncate(0) }

// dirOps backs a directory inode; like simplefs's dirOps, any call here
// is an invariant violation since vfs/file never routes directory I/O
// through Ops.
type dirOps struct{}

func (dirOps) ReadAt([]byte, int64) (int, error)  { panic("ext4shim: read on a directory inode") }
func (dirOps) WriteAt([]byte, int64) (int, error) { panic("ext4shim: write on a directory inode") }
func (dirOps) Truncate(int64) error               { panic("ext4shim: truncate on a directory inode") }
func (dirOps) ReadAll() ([]byte, error)           { panic("ext4shim: read_all on a directory inode") }
func (dirOps) DeleteData() error                  { return nil }

// symlinkOps reads a symlink's target through the device on every call,
// since the driver (not this shim) owns the target's storage.
type symlinkOps struct {
	dev  Device
	path string
}

func (o *symlinkOps) ReadAt(buf []byte, offset int64) (int, error) {
	target, err := o.dev.Readlink(o.path)
	if err != nil {
		return 0, err
	}
	if offset >= int64(len(target)) {
		return 0, nil
	}
	return copy(buf, target[offset:]), nil
}
func (o *symlinkOps) WriteAt([]byte, int64) (int, error) {
	return 0, kernel.New(errModule, kernel.KindPERM, "symlink targets are immutable")
}
func (o *symlinkOps) Truncate(int64) error {
	return kernel.New(errModule, kernel.KindPERM, "symlink targets are immutable")
}
func (o *symlinkOps) ReadAll() ([]byte, error) {
	target, err := o.dev.Readlink(o.path)
	if err != nil {
		return nil, err
	}
	return []byte(target), nil
}
func (o *symlinkOps) DeleteData() error { return nil }

// mediaOps implements dentry.MediaOps over a Device, building a fresh
// *inode.Inode for each lookup the way ext4_dentry.rs's look_up does —
// this shim keeps no independent on-media table of its own; the device
// is the source of truth.
type mediaOps struct {
	dev Device
}

func modeFor(kind EntryKind) inode.Mode {
	switch kind {
	case EntryDirectory:
		return inode.ModeDirectory
	case EntrySymlink:
		return inode.ModeSymlink
	default:
		return inode.ModeRegular
	}
}

func (m *mediaOps) openInode(path string, kind EntryKind) (*inode.Inode, error) {
	switch kind {
	case EntryDirectory:
		if _, err := m.dev.OpenDir(path); err != nil {
			return nil, err
		}
		return inode.New(0, inode.ModeDirectory, inode.Dev{}, 0, dirOps{}), nil
	case EntrySymlink:
		return inode.New(0, inode.ModeSymlink, inode.Dev{}, 0, &symlinkOps{dev: m.dev, path: path}), nil
	default:
		f, err := m.dev.OpenFile(path, inode.ModeRegular)
		if err != nil {
			return nil, err
		}
		return inode.New(0, inode.ModeRegular, inode.Dev{}, f.Size(), &fileOps{f: f}), nil
	}
}

func (m *mediaOps) LookupChild(parent *dentry.Dentry, name string) (*inode.Inode, inode.Mode, error) {
	childPath := path.Join(parent.Path(), name)
	kind, ok := m.dev.Exists(childPath)
	if !ok {
		return nil, 0, dentry.ErrNotFound
	}
	in, err := m.openInode(childPath, kind)
	if err != nil {
		return nil, 0, err
	}
	return in, modeFor(kind), nil
}

func (m *mediaOps) LoadChildren(parent *dentry.Dentry) ([]dentry.ChildInfo, error) {
	dir, err := m.dev.OpenDir(parent.Path())
	if err != nil {
		return nil, err
	}
	entries, err := dir.Entries()
	if err != nil {
		return nil, err
	}

	out := make([]dentry.ChildInfo, 0, len(entries))
	for _, e := range entries {
		childPath := path.Join(parent.Path(), e.Name)
		in, err := m.openInode(childPath, e.Kind)
		if err != nil {
			return nil, err
		}
		out = append(out, dentry.ChildInfo{Name: e.Name, Inode: in, Mode: modeFor(e.Kind)})
	}
	return out, nil
}

func (m *mediaOps) CreateChild(parent *dentry.Dentry, name string, mode inode.Mode) (*inode.Inode, error) {
	childPath := path.Join(parent.Path(), name)
	if mode == inode.ModeDirectory {
		if err := m.dev.Mkdir(childPath); err != nil {
			return nil, err
		}
		return m.openInode(childPath, EntryDirectory)
	}
	if err := m.dev.Mknod(childPath); err != nil {
		return nil, err
	}
	return m.openInode(childPath, EntryRegular)
}

func (m *mediaOps) Remove(d *dentry.Dentry) error {
	kind := EntryRegular
	if d.Inode().Mode() == inode.ModeDirectory {
		kind = EntryDirectory
	}
	return m.dev.Remove(d.Path(), kind)
}

func (m *mediaOps) Move(oldPath, newPath string, _ inode.Mode) error {
	return m.dev.Move(oldPath, newPath)
}

func (m *mediaOps) Symlink(parent *dentry.Dentry, name, target string) (*inode.Inode, error) {
	childPath := path.Join(parent.Path(), name)
	if err := m.dev.Symlink(target, childPath); err != nil {
		return nil, err
	}
	return inode.New(0, inode.ModeSymlink, inode.Dev{}, int64(len(target)), &symlinkOps{dev: m.dev, path: childPath}), nil
}

func (m *mediaOps) ReadSymlink(d *dentry.Dentry, buf []byte) (int, error) {
	target, err := m.dev.Readlink(d.Path())
	if err != nil {
		return 0, err
	}
	return copy(buf, target), nil
}

func (m *mediaOps) Link(existingPath, newPath string) error {
	return m.dev.Link(existingPath, newPath)
}

// FileSystem is the ext4 adapter, mountable under tag fs.EXT4.
type FileSystem struct {
	root *dentry.Dentry
}

// Mount opens dev's root directory and returns a FileSystem rooted there.
func Mount(dev Device) (*FileSystem, error) {
	media := &mediaOps{dev: dev}
	if _, err := dev.OpenDir("/"); err != nil {
		return nil, err
	}
	root := inode.New(0, inode.ModeDirectory, inode.Dev{}, 0, dirOps{})
	return &FileSystem{root: dentry.NewRoot(root, media)}, nil
}

func (f *FileSystem) Type() fs.Type              { return fs.EXT4 }
func (f *FileSystem) RootDentry() *dentry.Dentry { return f.root }

// NewEmptyFileSystem registers a device-less root tagged EXT4, the ext4
// analogue of fs.NewEmptyFileSystem for tag VFAT — used when tag EXT4 is
// requested with no live block device.
func NewEmptyFileSystem() *fs.EmptyFileSystem {
	return fs.NewEmptyFileSystemOf(fs.EXT4)
}
