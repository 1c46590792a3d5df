package process

import (
	"bytes"
	"testing"

	"github.com/LittleLucifer1/duck-os/sysnum"
	"github.com/LittleLucifer1/duck-os/tmpfs"
	"github.com/LittleLucifer1/duck-os/vfs/dentry"
	"github.com/LittleLucifer1/duck-os/vfs/fdtable"
	"github.com/LittleLucifer1/duck-os/vfs/fs"
)

// newTestProcess mounts a fresh tmpfs at "/" and returns a Process rooted
// there, the plain-testing counterpart of scenario_test.go's
// newScenarioProcess (no stdio fds pre-reserved; these tests don't care
// about exact fd numbers).
func newTestProcess(t *testing.T) *Process {
	t.Helper()
	cache := dentry.NewCache()
	mgr := fs.NewManager(cache)
	if err := mgr.Mount("/", fs.TmpFs, 0, func() (fs.FileSystem, error) { return tmpfs.New(), nil }); err != nil {
		t.Fatalf("Mount(/): %v", err)
	}
	p, err := New(fdtable.New(), mgr, cache, bytes.NewReader(make([]byte, 256)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func mustOpen(t *testing.T, p *Process, path string, flags sysnum.OpenFlags) int {
	t.Helper()
	fd := p.OpenAt(sysnum.AtFdcwd, path, flags)
	if fd < 0 {
		t.Fatalf("OpenAt(%q): negated errno %d", path, fd)
	}
	return fd
}

func TestChdirAndGetcwd(t *testing.T) {
	p := newTestProcess(t)
	if got := p.Mkdirat(sysnum.AtFdcwd, "/sub"); got != 0 {
		t.Fatalf("Mkdirat: %d", got)
	}
	if got := p.Chdir("/sub"); got != 0 {
		t.Fatalf("Chdir: %d", got)
	}
	buf := make([]byte, 64)
	n := p.Getcwd(buf)
	if n <= 0 {
		t.Fatalf("Getcwd: %d", n)
	}
	if got := string(buf[:n]); got != "/sub" {
		t.Fatalf("Getcwd: got %q, want /sub", got)
	}
}

func TestGetcwdRangeError(t *testing.T) {
	p := newTestProcess(t)
	buf := make([]byte, 0)
	if got := p.Getcwd(buf); got >= 0 {
		t.Fatalf("Getcwd with an empty buffer should fail; got %d", got)
	}
}

func TestChdirOnNonDirectoryFails(t *testing.T) {
	p := newTestProcess(t)
	fd := mustOpen(t, p, "/f", sysnum.OCreat|sysnum.ORdwr)
	if got := p.Close(fd); got != 0 {
		t.Fatalf("Close: %d", got)
	}
	if got := p.Chdir("/f"); got >= 0 {
		t.Fatalf("Chdir onto a regular file should fail; got %d", got)
	}
}

func TestLinkatSymlinkatReadlinkat(t *testing.T) {
	p := newTestProcess(t)

	fd := mustOpen(t, p, "/orig", sysnum.OCreat|sysnum.ORdwr)
	if n := p.Write(fd, []byte("payload")); n != len("payload") {
		t.Fatalf("Write: %d", n)
	}
	if got := p.Close(fd); got != 0 {
		t.Fatalf("Close: %d", got)
	}

	if got := p.Linkat(sysnum.AtFdcwd, "/orig", sysnum.AtFdcwd, "/hardlink"); got != 0 {
		t.Fatalf("Linkat: %d", got)
	}
	linkedFd := mustOpen(t, p, "/hardlink", sysnum.ORdonly)
	buf := make([]byte, len("payload"))
	if n := p.Read(linkedFd, buf); n != len(buf) || string(buf) != "payload" {
		t.Fatalf("reading through the hard link: n=%d buf=%q", n, buf)
	}
	if got := p.Close(linkedFd); got != 0 {
		t.Fatalf("Close: %d", got)
	}

	if got := p.Symlinkat("/orig", sysnum.AtFdcwd, "/symlink"); got != 0 {
		t.Fatalf("Symlinkat: %d", got)
	}
	target := make([]byte, 32)
	n := p.Readlinkat(sysnum.AtFdcwd, "/symlink", target)
	if n <= 0 {
		t.Fatalf("Readlinkat: %d", n)
	}
	if got := string(target[:n]); got != "/orig" {
		t.Fatalf("Readlinkat: got %q, want /orig", got)
	}
}

func TestRenameat2MovesEntry(t *testing.T) {
	p := newTestProcess(t)

	fd := mustOpen(t, p, "/a", sysnum.OCreat|sysnum.ORdwr)
	if got := p.Close(fd); got != 0 {
		t.Fatalf("Close: %d", got)
	}
	if got := p.Renameat2(sysnum.AtFdcwd, "/a", sysnum.AtFdcwd, "/b", 0); got != 0 {
		t.Fatalf("Renameat2: %d", got)
	}
	if got := p.Unlinkat(sysnum.AtFdcwd, "/a", 0); got >= 0 {
		t.Fatalf("/a should no longer exist after rename; Unlinkat returned %d", got)
	}
	if got := p.Unlinkat(sysnum.AtFdcwd, "/b", 0); got != 0 {
		t.Fatalf("Unlinkat(/b): %d", got)
	}
}

func TestFstatReportsWrittenSize(t *testing.T) {
	p := newTestProcess(t)
	fd := mustOpen(t, p, "/sized", sysnum.OCreat|sysnum.ORdwr)
	if n := p.Write(fd, []byte("0123456789")); n != 10 {
		t.Fatalf("Write: %d", n)
	}

	var st sysnum.Stat
	if got := p.Fstat(fd, &st); got != 0 {
		t.Fatalf("Fstat: %d", got)
	}
	if st.Size != 10 {
		t.Fatalf("Fstat: Size = %d, want 10", st.Size)
	}
	if st.Nlink != 1 {
		t.Fatalf("Fstat: Nlink = %d, want 1", st.Nlink)
	}
}

func TestUnameReportsFixedIdentity(t *testing.T) {
	p := newTestProcess(t)
	u := p.Uname()
	if u.Sysname == "" || u.Machine == "" {
		t.Fatalf("Uname returned an incomplete record: %+v", u)
	}
}

func TestGetrandomFillsBuffer(t *testing.T) {
	p := newTestProcess(t)
	buf := make([]byte, 16)
	n := p.Getrandom(buf, 0)
	if n != len(buf) {
		t.Fatalf("Getrandom: %d, want %d", n, len(buf))
	}
}

func TestMountAndUmount(t *testing.T) {
	p := newTestProcess(t)

	if got := p.Mkdirat(sysnum.AtFdcwd, "/mnt"); got != 0 {
		t.Fatalf("Mkdirat(/mnt): %d", got)
	}
	factory := func(string) (fs.FileSystem, error) { return tmpfs.New(), nil }
	if got := p.Mount("", "/mnt", fs.TmpFs, 0, factory); got != 0 {
		t.Fatalf("Mount: %d", got)
	}
	if got := p.Umount2("/mnt"); got != 0 {
		t.Fatalf("Umount2: %d", got)
	}
}

func TestUmountRootFails(t *testing.T) {
	p := newTestProcess(t)
	if got := p.Umount2("/"); got >= 0 {
		t.Fatalf("unmounting / should fail; got %d", got)
	}
}
