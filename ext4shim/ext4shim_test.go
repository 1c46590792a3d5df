package ext4shim

import (
	"testing"

	"github.com/LittleLucifer1/duck-os/vfs/dentry"
	"github.com/LittleLucifer1/duck-os/vfs/inode"
)

// memFile is a File backed by an in-memory buffer, standing in for a real
// Ext4File handle in tests.
type memFile struct {
	data []byte
	pos  int64
}

func (f *memFile) Seek(offset int64, _ int) (int64, error) { f.pos = offset; return f.pos, nil }
func (f *memFile) Read(buf []byte) (int, error) {
	if f.pos >= int64(len(f.data)) {
		return 0, nil
	}
	return copy(buf, f.data[f.pos:]), nil
}
func (f *memFile) Write(buf []byte) (int, error) {
	end := f.pos + int64(len(buf))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	return copy(f.data[f.pos:], buf), nil
}
func (f *memFile) Truncate(size int64) error {
	if size <= int64(len(f.data)) {
		f.data = f.data[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, f.data)
	f.data = grown
	return nil
}
func (f *memFile) Size() int64 { return int64(len(f.data)) }

type memDir struct{ dev *memDevice }

func (d *memDir) Entries() ([]DirEntry, error) { return d.dev.entries, nil }

// memDevice is a minimal in-memory Device used to exercise mediaOps
// without a real disk-backed driver.
type memDevice struct {
	files   map[string]*memFile
	dirs    map[string]bool
	links   map[string]string
	entries []DirEntry
}

func newMemDevice() *memDevice {
	return &memDevice{files: map[string]*memFile{}, dirs: map[string]bool{"/": true}, links: map[string]string{}}
}

func (d *memDevice) OpenFile(path string, _ inode.Mode) (File, error) {
	f, ok := d.files[path]
	if !ok {
		return nil, dentry.ErrNotFound
	}
	return f, nil
}
func (d *memDevice) OpenDir(path string) (Dir, error) {
	if !d.dirs[path] {
		return nil, dentry.ErrNotFound
	}
	return &memDir{dev: d}, nil
}
func (d *memDevice) Exists(path string) (EntryKind, bool) {
	if d.dirs[path] {
		return EntryDirectory, true
	}
	if _, ok := d.files[path]; ok {
		return EntryRegular, true
	}
	if _, ok := d.links[path]; ok {
		return EntrySymlink, true
	}
	return 0, false
}
func (d *memDevice) Mkdir(path string) error { d.dirs[path] = true; return nil }
func (d *memDevice) Mknod(path string) error { d.files[path] = &memFile{}; return nil }
func (d *memDevice) Remove(path string, kind EntryKind) error {
	if kind == EntryDirectory {
		delete(d.dirs, path)
	} else {
		delete(d.files, path)
	}
	return nil
}
func (d *memDevice) Move(oldPath, newPath string) error {
	if f, ok := d.files[oldPath]; ok {
		delete(d.files, oldPath)
		d.files[newPath] = f
	}
	return nil
}
func (d *memDevice) Link(existingPath, newPath string) error {
	d.files[newPath] = d.files[existingPath]
	return nil
}
func (d *memDevice) Symlink(target, path string) error { d.links[path] = target; return nil }
func (d *memDevice) Readlink(path string) (string, error) {
	target, ok := d.links[path]
	if !ok {
		return "", dentry.ErrNotFound
	}
	return target, nil
}

func TestMountOpensRoot(t *testing.T) {
	dev := newMemDevice()
	if _, err := Mount(dev); err != nil {
		t.Fatalf("Mount: %v", err)
	}
}

func TestCreateRegularFileWritesThroughDevice(t *testing.T) {
	dev := newMemDevice()
	fsys, err := Mount(dev)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	cache := dentry.NewCache()

	child, err := fsys.RootDentry().Create(cache, "f", inode.ModeRegular)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := child.Inode().WriteAt([]byte("hi"), 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if dev.files["/f"] == nil || string(dev.files["/f"].data) != "hi" {
		t.Fatalf("expected device to observe the write; got %+v", dev.files["/f"])
	}
}

func TestLookupChildReopensExistingFile(t *testing.T) {
	dev := newMemDevice()
	dev.files["/existing"] = &memFile{data: []byte("on-disk")}
	fsys, err := Mount(dev)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	cache := dentry.NewCache()

	found, err := dentry.PathToDentry(cache, fsys.RootDentry(), "/existing")
	if err != nil {
		t.Fatalf("PathToDentry: %v", err)
	}
	data, err := found.Inode().ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "on-disk" {
		t.Fatalf("expected on-disk contents; got %q", data)
	}
}

func TestSymlinkReadsBackThroughDevice(t *testing.T) {
	dev := newMemDevice()
	fsys, err := Mount(dev)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	cache := dentry.NewCache()

	link, err := fsys.RootDentry().Symlink(cache, "l", "/target")
	if err != nil {
		t.Fatalf("Symlink: %v", err)
	}
	data, err := link.Inode().ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "/target" {
		t.Fatalf("expected target /target; got %q", data)
	}
}

func TestEmptyFileSystemHasNoChildren(t *testing.T) {
	fsys := NewEmptyFileSystem()
	cache := dentry.NewCache()
	if _, err := dentry.PathToDentry(cache, fsys.RootDentry(), "/anything"); err == nil {
		t.Fatal("expected lookup under an empty ext4 filesystem to fail")
	}
}
