package file

import (
	"bytes"
	"testing"

	"github.com/LittleLucifer1/duck-os/mm/pmm"
	"github.com/LittleLucifer1/duck-os/mm/sv39"
	"github.com/LittleLucifer1/duck-os/sysnum"
	"github.com/LittleLucifer1/duck-os/vfs/dentry"
	"github.com/LittleLucifer1/duck-os/vfs/inode"
	"github.com/LittleLucifer1/duck-os/vfs/pagecache"
)

type memOps struct{ data []byte }

func (m *memOps) ReadAt(buf []byte, offset int64) (int, error) {
	if offset >= int64(len(m.data)) {
		return 0, nil
	}
	return copy(buf, m.data[offset:]), nil
}
func (m *memOps) WriteAt(buf []byte, offset int64) (int, error) {
	end := offset + int64(len(buf))
	if end > int64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	return copy(m.data[offset:], buf), nil
}
func (m *memOps) Truncate(newSize int64) error {
	if newSize <= int64(len(m.data)) {
		m.data = m.data[:newSize]
		return nil
	}
	grown := make([]byte, newSize)
	copy(grown, m.data)
	m.data = grown
	return nil
}
func (m *memOps) ReadAll() ([]byte, error) {
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out, nil
}
func (m *memOps) DeleteData() error { m.data = nil; return nil }

func newRegularFile(t *testing.T, flags sysnum.OpenFlags, initial []byte) (*File, *memOps) {
	t.Helper()
	ops := &memOps{data: initial}
	in := inode.New(1, inode.ModeRegular, inode.Dev{}, int64(len(initial)), ops)
	d := dentry.New("f", "/f", in, nil, nil)
	alloc := pmm.NewAllocator(pmm.Frame(0), 64)
	cache := pagecache.New(alloc, in, sv39.PermRW)

	f, err := Open(d, flags, cache)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return f, ops
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	f, _ := newRegularFile(t, sysnum.ORdwr, nil)

	if _, err := f.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := f.Seek(SeekStart, 0); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	got := make([]byte, 5)
	n, err := f.Read(got)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 5 || !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("expected hello; got %q (n=%d)", got, n)
	}
}

func TestWriteGrowsInodeSize(t *testing.T) {
	f, _ := newRegularFile(t, sysnum.ORdwr, nil)
	if _, err := f.Write([]byte("0123456789")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := f.Inode().Size(); got != 10 {
		t.Fatalf("expected inode size 10; got %d", got)
	}
}

func TestOAppendSeeksToEndOnOpen(t *testing.T) {
	f, _ := newRegularFile(t, sysnum.ORdwr|sysnum.OAppend, []byte("existing"))
	if got := f.position(); got != int64(len("existing")) {
		t.Fatalf("expected position at end-of-file after O_APPEND open; got %d", got)
	}
}

func TestOTruncZeroesOnOpen(t *testing.T) {
	f, _ := newRegularFile(t, sysnum.ORdwr|sysnum.OTrunc, []byte("existing"))
	if got := f.Inode().Size(); got != 0 {
		t.Fatalf("expected size 0 after O_TRUNC open; got %d", got)
	}
}

func TestWriteToReadOnlyFileFailsEBADF(t *testing.T) {
	f, _ := newRegularFile(t, sysnum.ORdonly, nil)
	if _, err := f.Write([]byte("x")); err != ErrBadF {
		t.Fatalf("expected ErrBadF; got %v", err)
	}
}

func TestTruncateShrinkEvictsPagesAndPreservesSurvivingBytes(t *testing.T) {
	f, ops := newRegularFile(t, sysnum.ORdwr, []byte("0123456789"))

	if err := f.Truncate(4); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if got := f.Inode().Size(); got != 4 {
		t.Fatalf("expected size 4; got %d", got)
	}
	if !bytes.Equal(ops.data, []byte("0123")) {
		t.Fatalf("expected underlying data shrunk to 0123; got %q", ops.data)
	}
}

func TestTruncateGrowZeroFillsNewBytes(t *testing.T) {
	f, ops := newRegularFile(t, sysnum.ORdwr, []byte("ab"))

	if err := f.Truncate(5); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if got := f.Inode().Size(); got != 5 {
		t.Fatalf("expected size 5; got %d", got)
	}
	want := []byte{'a', 'b', 0, 0, 0}
	if !bytes.Equal(ops.data, want) {
		t.Fatalf("expected %v; got %v", want, ops.data)
	}
}

func TestCloseOrphanedInodeDeletesData(t *testing.T) {
	f, ops := newRegularFile(t, sysnum.ORdwr, []byte("bye"))
	// Simulate the dentry-level unlink already having dropped the link
	// count to zero while this handle is still the sole opener.
	f.Inode().DecLink()

	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if ops.data != nil {
		t.Fatalf("expected data to be deleted once orphaned; got %q", ops.data)
	}
}
