package procfs

import (
	"strings"
	"testing"

	"github.com/LittleLucifer1/duck-os/simplefs"
	"github.com/LittleLucifer1/duck-os/vfs/dentry"
	"github.com/LittleLucifer1/duck-os/vfs/fs"
)

type stubFS struct {
	typ  fs.Type
	root *dentry.Dentry
}

func (s *stubFS) Type() fs.Type              { return s.typ }
func (s *stubFS) RootDentry() *dentry.Dentry { return s.root }

func newStub(typ fs.Type) *stubFS {
	impl := simplefs.New()
	return &stubFS{typ: typ, root: dentry.NewRoot(impl.NewRootInode(), impl)}
}

func TestMemInfoSerializesAllFields(t *testing.T) {
	info := MemInfo{TotalMem: 1000, FreeMem: 500, AvailMem: 600, Buffer: 10, Cache: 20, TotalSwap: 0, FreeSwap: 0, Shmem: 5, Slab: 7}
	out := string(info.Serialize())

	for _, want := range []string{
		"MemTotal:\t1000 KB\n",
		"MemFree:\t500 KB\n",
		"MemAvailable:\t600 KB\n",
		"Buffers:\t10 KB\n",
		"Cached:\t20 KB\n",
		"SwapCached:\t0 KB\n",
		"SwapTotal:\t0 KB\n",
		"SwapFree:\t0 KB\n",
		"Shmem:\t5 KB\n",
		"Slab:\t7 KB\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected serialize output to contain %q; got %q", want, out)
		}
	}
}

func TestMeminfoFileIsReadOnly(t *testing.T) {
	mgr := fs.NewManager(dentry.NewCache())
	procFS, err := New(MemInfo{TotalMem: 1}, mgr)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cache := dentry.NewCache()
	d, err := dentry.PathToDentry(cache, procFS.RootDentry(), "/meminfo")
	if err != nil {
		t.Fatalf("PathToDentry: %v", err)
	}

	if _, err := d.Inode().WriteAt([]byte("x"), 0); err == nil {
		t.Fatal("expected WriteAt to meminfo to fail")
	}
	data, err := d.Inode().ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !strings.Contains(string(data), "MemTotal:\t1 KB\n") {
		t.Fatalf("expected meminfo contents; got %q", data)
	}
}

func TestMountsFileRendersLiveMountTable(t *testing.T) {
	cache := dentry.NewCache()
	mgr := fs.NewManager(cache)

	if err := mgr.Mount("/", fs.TmpFs, 0, func() (fs.FileSystem, error) { return newStub(fs.TmpFs), nil }); err != nil {
		t.Fatalf("Mount /: %v", err)
	}
	if err := mgr.Mount("/dev", fs.DevFs, 0, func() (fs.FileSystem, error) { return newStub(fs.DevFs), nil }); err != nil {
		t.Fatalf("Mount /dev: %v", err)
	}

	procFS, err := New(MemInfo{}, mgr)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := mgr.Mount("/proc", fs.ProcFs, 0, func() (fs.FileSystem, error) { return procFS, nil }); err != nil {
		t.Fatalf("Mount /proc: %v", err)
	}

	mountsCache := dentry.NewCache()
	d, err := dentry.PathToDentry(mountsCache, procFS.RootDentry(), "/mounts")
	if err != nil {
		t.Fatalf("PathToDentry: %v", err)
	}
	data, err := d.Inode().ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	out := string(data)
	for _, want := range []string{"/ TmpFs\n", "/dev DevFs\n", "/proc ProcFs\n"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected mounts output to contain %q; got %q", want, out)
		}
	}
}
