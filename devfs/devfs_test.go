package devfs

import (
	"bytes"
	"testing"
	"unsafe"

	"github.com/LittleLucifer1/duck-os/vfs/dentry"
)

type fixedReader struct{ b byte }

func (r fixedReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.b
	}
	return len(p), nil
}

func newDevFS(t *testing.T) (*FileSystem, *dentry.Cache) {
	t.Helper()
	fsys, err := New(fixedReader{b: 0x42})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return fsys, dentry.NewCache()
}

func lookup(t *testing.T, fsys *FileSystem, cache *dentry.Cache, name string) *dentry.Dentry {
	t.Helper()
	d, err := dentry.PathToDentry(cache, fsys.RootDentry(), "/"+name)
	if err != nil {
		t.Fatalf("PathToDentry(%q): %v", name, err)
	}
	return d
}

func TestInstallsFixedDeviceSet(t *testing.T) {
	fsys, cache := newDevFS(t)
	for _, name := range []string{"null", "zero", "urandom", "rtc", "tty", "cpu_dma_latency"} {
		lookup(t, fsys, cache, name)
	}
}

func TestNullReadsZeroBytesWritesDiscard(t *testing.T) {
	fsys, cache := newDevFS(t)
	in := lookup(t, fsys, cache, "null").Inode()

	buf := []byte{1, 2, 3}
	n, err := in.ReadAt(buf, 0)
	if err != nil || n != 0 {
		t.Fatalf("ReadAt: n=%d err=%v", n, err)
	}

	n, err = in.WriteAt([]byte("hello"), 0)
	if err != nil || n != 5 {
		t.Fatalf("WriteAt: n=%d err=%v", n, err)
	}
}

func TestZeroFillsReadBuffer(t *testing.T) {
	fsys, cache := newDevFS(t)
	in := lookup(t, fsys, cache, "zero").Inode()

	buf := bytes.Repeat([]byte{0xff}, 8)
	n, err := in.ReadAt(buf, 0)
	if err != nil || n != len(buf) {
		t.Fatalf("ReadAt: n=%d err=%v", n, err)
	}
	for _, b := range buf {
		if b != 0 {
			t.Fatalf("expected all-zero buffer; got %v", buf)
		}
	}
}

func TestUrandomReadsFromSource(t *testing.T) {
	fsys, cache := newDevFS(t)
	in := lookup(t, fsys, cache, "urandom").Inode()

	buf := make([]byte, 4)
	n, err := in.ReadAt(buf, 0)
	if err != nil || n != 4 {
		t.Fatalf("ReadAt: n=%d err=%v", n, err)
	}
	for _, b := range buf {
		if b != 0x42 {
			t.Fatalf("expected bytes from the fixed reader; got %v", buf)
		}
	}
}

func TestRTCIoctlWritesZeroedTime(t *testing.T) {
	fsys, cache := newDevFS(t)
	in := lookup(t, fsys, cache, "rtc").Inode()

	got := rtcTime{sec: 5, min: 6, hour: 7, mday: 8, mon: 9, year: 10}
	if _, err := in.Ioctl(rtcRdTime, uintptr(unsafe.Pointer(&got))); err != nil {
		t.Fatalf("Ioctl: %v", err)
	}
	if got != (rtcTime{}) {
		t.Fatalf("expected a zeroed rtcTime; got %+v", got)
	}
}

func TestTTYIoctlRoundTripsTermiosAndWinSize(t *testing.T) {
	fsys, cache := newDevFS(t)
	in := lookup(t, fsys, cache, "tty").Inode()

	var got termios
	if _, err := in.Ioctl(tcgets, uintptr(unsafe.Pointer(&got))); err != nil {
		t.Fatalf("TCGETS: %v", err)
	}
	if got != defaultTermios() {
		t.Fatalf("expected default termios; got %+v", got)
	}

	set := defaultTermios()
	set.cflag = 0xdead
	if _, err := in.Ioctl(tcsets, uintptr(unsafe.Pointer(&set))); err != nil {
		t.Fatalf("TCSETS: %v", err)
	}

	var readBack termios
	if _, err := in.Ioctl(tcgets, uintptr(unsafe.Pointer(&readBack))); err != nil {
		t.Fatalf("TCGETS: %v", err)
	}
	if readBack.cflag != 0xdead {
		t.Fatalf("expected the updated cflag to stick; got %#x", readBack.cflag)
	}
}

func TestTTYIoctlForegroundPgidDefaultsToOne(t *testing.T) {
	fsys, cache := newDevFS(t)
	in := lookup(t, fsys, cache, "tty").Inode()

	var pgid uintptr
	if _, err := in.Ioctl(tiocgpgrp, uintptr(unsafe.Pointer(&pgid))); err != nil {
		t.Fatalf("TIOCGPGRP: %v", err)
	}
	if pgid != 1 {
		t.Fatalf("expected default fg_pgid 1; got %d", pgid)
	}
}

func TestTTYIoctlUnknownCommandFails(t *testing.T) {
	fsys, cache := newDevFS(t)
	in := lookup(t, fsys, cache, "tty").Inode()

	if _, err := in.Ioctl(0xffff, 0); err == nil {
		t.Fatal("expected an error for an unrecognized ioctl command")
	}
}
