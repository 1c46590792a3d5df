// Package devfs implements the device pseudo-filesystem mounted at /dev:
// null, zero, urandom, rtc and tty nodes, each backed by a custom
// inode.Ops (and, for rtc/tty, inode.Ioctler) installed over a shared
// simplefs.FS root. Grounded on
// _examples/original_source/os/src/fs/devfs/{mod.rs,null.rs,zero.rs,
// rtc.rs,tty.rs,urandom.rs}.
package devfs

import (
	"io"

	"github.com/LittleLucifer1/duck-os/kernel"
	"github.com/LittleLucifer1/duck-os/simplefs"
	"github.com/LittleLucifer1/duck-os/vfs/dentry"
	"github.com/LittleLucifer1/duck-os/vfs/fs"
	"github.com/LittleLucifer1/duck-os/vfs/inode"
)

const errModule = "devfs"

// FileSystem is the device pseudo-filesystem, mountable under tag
// fs.DevFs.
type FileSystem struct {
	impl *simplefs.FS
	root *dentry.Dentry
}

// New builds a devfs rooted at an empty directory and installs the fixed
// set of device nodes original_source's DevFileSystem::init registers:
// null, zero, urandom, rtc, tty and cpu_dma_latency. rng backs urandom;
// passing a randgen.SyncSource is the expected caller for a live kernel.
func New(rng io.Reader) (*FileSystem, error) {
	impl := simplefs.New()
	root := dentry.NewRoot(impl.NewRootInode(), impl)

	devices := []struct {
		name string
		ops  inode.Ops
		mode inode.Mode
	}{
		{"null", &nullOps{}, inode.ModeCharDevice},
		{"zero", &zeroOps{}, inode.ModeCharDevice},
		{"urandom", &urandomOps{rng: rng}, inode.ModeCharDevice},
		{"rtc", newRTCOps(), inode.ModeCharDevice},
		{"tty", newTTYOps(), inode.ModeCharDevice},
		// original_source misspells this cpu_pma_latency; the correct
		// spelling is used here.
		{"cpu_dma_latency", &zeroOps{}, inode.ModeCharDevice},
	}
	for _, dev := range devices {
		if _, err := impl.RegisterChild(root, dev.name, dev.mode, dev.ops); err != nil {
			return nil, err
		}
	}

	return &FileSystem{impl: impl, root: root}, nil
}

func (f *FileSystem) Type() fs.Type              { return fs.DevFs }
func (f *FileSystem) RootDentry() *dentry.Dentry { return f.root }

// nullOps backs /dev/null: reads report EOF, writes discard everything.
type nullOps struct{}

func (nullOps) ReadAt([]byte, int64) (int, error)  { return 0, nil }
func (nullOps) WriteAt(buf []byte, _ int64) (int, error) { return len(buf), nil }
func (nullOps) Truncate(int64) error               { return nil }
func (nullOps) ReadAll() ([]byte, error)           { return nil, nil }
func (nullOps) DeleteData() error                  { return nil }

// zeroOps backs /dev/zero: reads fill the buffer with zero bytes, writes
// discard everything.
type zeroOps struct{}

func (zeroOps) ReadAt(buf []byte, _ int64) (int, error) {
	for i := range buf {
		buf[i] = 0
	}
	return len(buf), nil
}
func (zeroOps) WriteAt(buf []byte, _ int64) (int, error) { return len(buf), nil }
func (zeroOps) Truncate(int64) error                     { return nil }
func (zeroOps) ReadAll() ([]byte, error)                 { return nil, nil }
func (zeroOps) DeleteData() error                        { return nil }

// urandomOps backs /dev/urandom, filling reads from the shared RNG — the
// same io.Reader shape the ELF loader uses to fill AT_RANDOM.
type urandomOps struct {
	rng io.Reader
}

func (o *urandomOps) ReadAt(buf []byte, _ int64) (int, error) {
	return o.rng.Read(buf)
}
func (o *urandomOps) WriteAt(buf []byte, _ int64) (int, error) { return len(buf), nil }
func (o *urandomOps) Truncate(int64) error                     { return nil }
func (o *urandomOps) ReadAll() ([]byte, error)                 { return nil, nil }
func (o *urandomOps) DeleteData() error                        { return nil }

var errNoIoctl = kernel.New(errModule, kernel.KindINVAL, "unsupported ioctl")
