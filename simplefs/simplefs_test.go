package simplefs

import (
	"testing"

	"github.com/LittleLucifer1/duck-os/vfs/dentry"
	"github.com/LittleLucifer1/duck-os/vfs/inode"
)

func newRoot(t *testing.T) (*FS, *dentry.Dentry, *dentry.Cache) {
	t.Helper()
	fs := New()
	root := dentry.NewRoot(fs.NewRootInode(), fs)
	return fs, root, dentry.NewCache()
}

func TestCreateThenLookupRoundTrips(t *testing.T) {
	_, root, cache := newRoot(t)

	child, err := root.Create(cache, "hello", inode.ModeRegular)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := child.Inode().WriteAt([]byte("hi"), 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	found, err := dentry.PathToDentry(cache, root, "/hello")
	if err != nil {
		t.Fatalf("PathToDentry: %v", err)
	}
	if found.Inode() != child.Inode() {
		t.Fatal("expected the same inode on lookup")
	}
}

func TestLoadChildrenListsRegisteredNodes(t *testing.T) {
	fsImpl, root, cache := newRoot(t)
	if _, err := root.Create(cache, "a", inode.ModeRegular); err != nil {
		t.Fatalf("Create a: %v", err)
	}
	if _, err := root.Create(cache, "b", inode.ModeRegular); err != nil {
		t.Fatalf("Create b: %v", err)
	}

	infos, err := fsImpl.LoadChildren(root)
	if err != nil {
		t.Fatalf("LoadChildren: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 children; got %d", len(infos))
	}
}

func TestSymlinkReadsBackTarget(t *testing.T) {
	fsImpl, root, cache := newRoot(t)
	link, err := root.Symlink(cache, "l", "/hello")
	if err != nil {
		t.Fatalf("Symlink: %v", err)
	}
	buf := make([]byte, 64)
	n, err := fsImpl.ReadSymlink(link, buf)
	if err != nil {
		t.Fatalf("ReadSymlink: %v", err)
	}
	if string(buf[:n]) != "/hello" {
		t.Fatalf("expected target /hello; got %q", buf[:n])
	}
}

func TestRemoveDropsOnMediaRecord(t *testing.T) {
	fsImpl, root, cache := newRoot(t)
	child, err := root.Create(cache, "f", inode.ModeRegular)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := fsImpl.Remove(child); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, _, err := fsImpl.LookupChild(root, "f"); err != dentry.ErrNotFound {
		t.Fatalf("expected ErrNotFound after Remove; got %v", err)
	}
}
