package dentry

import (
	"bytes"
	"testing"

	"github.com/LittleLucifer1/duck-os/vfs/inode"
)

// fakeMediaOps is a tiny in-memory filesystem used to exercise the dentry
// tree's on-media fallback path without a real disk library underneath,
// in the spirit of original_source's EmptyFileSystem/SimpleDentry stubs.
type fakeMediaOps struct {
	nextIno uint64
	// dir -> name -> (inode, mode); entries present here but not yet
	// materialized as a Dentry are what LookupChild/LoadChildren surface.
	entries  map[string]map[string]*inode.Inode
	modes    map[string]map[string]inode.Mode
	symlinks map[string]string
}

func newFakeFS() *fakeMediaOps {
	return &fakeMediaOps{
		entries:  make(map[string]map[string]*inode.Inode),
		modes:    make(map[string]map[string]inode.Mode),
		symlinks: make(map[string]string),
	}
}

type fakeOps struct{ data []byte }

func (f *fakeOps) ReadAt(buf []byte, offset int64) (int, error) {
	if offset >= int64(len(f.data)) {
		return 0, nil
	}
	return copy(buf, f.data[offset:]), nil
}
func (f *fakeOps) WriteAt(buf []byte, offset int64) (int, error) {
	end := offset + int64(len(buf))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	return copy(f.data[offset:], buf), nil
}
func (f *fakeOps) Truncate(n int64) error { f.data = f.data[:n]; return nil }
func (f *fakeOps) ReadAll() ([]byte, error) {
	out := make([]byte, len(f.data))
	copy(out, f.data)
	return out, nil
}
func (f *fakeOps) DeleteData() error { f.data = nil; return nil }

func (fs *fakeMediaOps) put(dirPath, name string, in *inode.Inode, mode inode.Mode) {
	if fs.entries[dirPath] == nil {
		fs.entries[dirPath] = make(map[string]*inode.Inode)
		fs.modes[dirPath] = make(map[string]inode.Mode)
	}
	fs.entries[dirPath][name] = in
	fs.modes[dirPath][name] = mode
}

func (fs *fakeMediaOps) LookupChild(parent *Dentry, name string) (*inode.Inode, inode.Mode, error) {
	dir := fs.entries[parent.Path()]
	if dir == nil {
		return nil, 0, ErrNotFound
	}
	in, ok := dir[name]
	if !ok {
		return nil, 0, ErrNotFound
	}
	return in, fs.modes[parent.Path()][name], nil
}

func (fs *fakeMediaOps) LoadChildren(parent *Dentry) ([]ChildInfo, error) {
	dir := fs.entries[parent.Path()]
	out := make([]ChildInfo, 0, len(dir))
	for name, in := range dir {
		out = append(out, ChildInfo{Name: name, Inode: in, Mode: fs.modes[parent.Path()][name]})
	}
	return out, nil
}

func (fs *fakeMediaOps) CreateChild(parent *Dentry, name string, mode inode.Mode) (*inode.Inode, error) {
	fs.nextIno++
	in := inode.New(fs.nextIno, mode, inode.Dev{}, 0, &fakeOps{})
	fs.put(parent.Path(), name, in, mode)
	return in, nil
}

func (fs *fakeMediaOps) Remove(d *Dentry) error {
	parentPath := d.Parent().Path()
	delete(fs.entries[parentPath], d.Name())
	return nil
}

func (fs *fakeMediaOps) Move(oldPath, newPath string, mode inode.Mode) error {
	return nil
}

func (fs *fakeMediaOps) Symlink(parent *Dentry, name, target string) (*inode.Inode, error) {
	fs.nextIno++
	in := inode.New(fs.nextIno, inode.ModeSymlink, inode.Dev{}, int64(len(target)), &fakeOps{data: []byte(target)})
	fs.put(parent.Path(), name, in, inode.ModeSymlink)
	fs.symlinks[joinPath(parent.Path(), name)] = target
	return in, nil
}

func (fs *fakeMediaOps) ReadSymlink(d *Dentry, buf []byte) (int, error) {
	target := fs.symlinks[d.Path()]
	return copy(buf, target), nil
}

func (fs *fakeMediaOps) Link(existingPath, newPath string) error { return nil }

func newTestRoot(t *testing.T) (*Dentry, *Cache, *fakeMediaOps) {
	t.Helper()
	fs := newFakeFS()
	rootInode := inode.New(1, inode.ModeDirectory, inode.Dev{}, 0, &fakeOps{})
	root := NewRoot(rootInode, fs)
	cache := NewCache()
	cache.Put("/", root)
	return root, cache, fs
}

func TestCreateThenLookUpHitsChildMap(t *testing.T) {
	root, cache, _ := newTestRoot(t)

	child, err := root.Create(cache, "foo.txt", inode.ModeRegular)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if child.Path() != "/foo.txt" {
		t.Fatalf("expected path /foo.txt; got %s", child.Path())
	}

	got, err := root.LookUp(cache, "foo.txt")
	if err != nil {
		t.Fatalf("LookUp: %v", err)
	}
	if got != child {
		t.Fatal("expected LookUp to return the exact same dentry instance from the child map")
	}
}

func TestLookUpFallsBackToMediaThenCaches(t *testing.T) {
	root, cache, fs := newTestRoot(t)

	in := inode.New(99, inode.ModeRegular, inode.Dev{}, 5, &fakeOps{data: []byte("hello")})
	fs.put("/", "media-only.txt", in, inode.ModeRegular)

	d, err := root.LookUp(cache, "media-only.txt")
	if err != nil {
		t.Fatalf("LookUp: %v", err)
	}
	if d.Inode() != in {
		t.Fatal("expected media-backed lookup to wrap the filesystem's inode")
	}

	if _, ok := cache.Get("/media-only.txt"); !ok {
		t.Fatal("expected a media-fallback lookup to register in the cache")
	}
}

func TestLookUpMissingReturnsErrNotFound(t *testing.T) {
	root, cache, _ := newTestRoot(t)
	if _, err := root.LookUp(cache, "nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound; got %v", err)
	}
}

func TestPathToDentryWalksNestedComponents(t *testing.T) {
	root, cache, _ := newTestRoot(t)

	sub, err := root.Create(cache, "sub", inode.ModeDirectory)
	if err != nil {
		t.Fatalf("Create(sub): %v", err)
	}
	if _, err := sub.Create(cache, "leaf.txt", inode.ModeRegular); err != nil {
		t.Fatalf("Create(leaf): %v", err)
	}

	d, err := PathToDentry(cache, root, "/sub/leaf.txt")
	if err != nil {
		t.Fatalf("PathToDentry: %v", err)
	}
	if d.Path() != "/sub/leaf.txt" {
		t.Fatalf("expected /sub/leaf.txt; got %s", d.Path())
	}
}

func TestUnlinkRegularFileDropsLinkCountAndRemoves(t *testing.T) {
	root, cache, fs := newTestRoot(t)
	child, err := root.Create(cache, "f", inode.ModeRegular)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := root.Unlink(cache, child); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if _, ok := cache.Get("/f"); ok {
		t.Fatal("expected unlinked dentry to be removed from the cache")
	}
	if len(root.Children()) != 0 {
		t.Fatal("expected unlinked dentry to be removed from parent's child map")
	}
	if _, ok := fs.entries["/"]["f"]; ok {
		t.Fatal("expected physical removal once link count reached zero")
	}
}

func TestUnlinkNonEmptyDirectoryFailsENOTEMPTY(t *testing.T) {
	root, cache, _ := newTestRoot(t)
	sub, err := root.Create(cache, "sub", inode.ModeDirectory)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := sub.Create(cache, "inner.txt", inode.ModeRegular); err != nil {
		t.Fatalf("Create(inner): %v", err)
	}

	if err := root.Unlink(cache, sub); err != ErrNotEmpty {
		t.Fatalf("expected ErrNotEmpty; got %v", err)
	}
}

func TestRenameMovesBetweenDirectories(t *testing.T) {
	root, cache, _ := newTestRoot(t)
	srcDir, err := root.Create(cache, "src", inode.ModeDirectory)
	if err != nil {
		t.Fatalf("Create(src): %v", err)
	}
	dstDir, err := root.Create(cache, "dst", inode.ModeDirectory)
	if err != nil {
		t.Fatalf("Create(dst): %v", err)
	}
	if _, err := srcDir.Create(cache, "f.txt", inode.ModeRegular); err != nil {
		t.Fatalf("Create(f.txt): %v", err)
	}

	if err := srcDir.Rename(cache, "f.txt", dstDir, "g.txt"); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	if len(srcDir.Children()) != 0 {
		t.Fatal("expected source directory to have no children after rename")
	}
	moved, err := dstDir.LookUp(cache, "g.txt")
	if err != nil {
		t.Fatalf("LookUp(g.txt): %v", err)
	}
	if moved.Path() != "/dst/g.txt" {
		t.Fatalf("expected /dst/g.txt; got %s", moved.Path())
	}
	if _, ok := cache.Get("/src/f.txt"); ok {
		t.Fatal("expected old path to be evicted from the cache")
	}
}

func TestSymlinkAndReadSymlink(t *testing.T) {
	root, cache, _ := newTestRoot(t)
	link, err := root.Symlink(cache, "l", "/target/path")
	if err != nil {
		t.Fatalf("Symlink: %v", err)
	}
	buf := make([]byte, 64)
	n, err := link.ReadSymlink(buf)
	if err != nil {
		t.Fatalf("ReadSymlink: %v", err)
	}
	if !bytes.Equal(buf[:n], []byte("/target/path")) {
		t.Fatalf("expected /target/path; got %q", buf[:n])
	}
}

func TestLinkSharesInodeAndIncrementsLinkCount(t *testing.T) {
	root, cache, _ := newTestRoot(t)
	orig, err := root.Create(cache, "orig.txt", inode.ModeRegular)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	linked, err := orig.Link(cache, root, "alias.txt")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if linked.Inode() != orig.Inode() {
		t.Fatal("expected the new link to share the same inode")
	}
	if got := orig.Inode().LinkCount(); got != 2 {
		t.Fatalf("expected link count 2; got %d", got)
	}
}
