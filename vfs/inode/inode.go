// Package inode implements C11: the inode abstraction shared by every
// filesystem family this core mounts. An Inode owns the metadata spec.md §3
// names (ino, mode, device binding, size, timestamps, open/link counts)
// plus a polymorphic Ops capability set that each filesystem supplies —
// disk-backed regular files, devfs pseudo-devices, tmpfs memory buffers and
// ext4shim adapters all plug into the same Inode shape. Grounded on
// _examples/original_source/os/src/fs/ext4/ext4_inode.rs's Ext4Inode
// (meta + capability delegation) and simplefs/simple_inode.rs's InodeMeta
// field list, since the pack's own inode.rs trait definition was not
// captured in the retrieval set.
package inode

import (
	"time"

	"github.com/LittleLucifer1/duck-os/kernel"
	"github.com/LittleLucifer1/duck-os/kernel/ksync"
)

const errModule = "inode"

// Mode identifies what kind of filesystem object an Inode represents.
type Mode uint8

// Inode modes, matching original_source's InodeMode.
const (
	ModeRegular Mode = iota
	ModeDirectory
	ModeCharDevice
	ModeBlockDevice
	ModeFifo
	ModeSymlink
)

// Dev identifies the device an inode is bound to: the backing filesystem's
// device id for a regular file/directory, or a major/minor pair for a
// char/block device node. The zero value means "not device-bound".
type Dev struct {
	FSDev        uint64
	Major, Minor uint32
}

// TimeSpec is a (seconds, nanoseconds) timestamp, matching the stat record
// layout in spec.md §6.
type TimeSpec struct {
	Sec  int64
	Nsec int64
}

// Now returns the current time as a TimeSpec, used to stamp atime/mtime/
// ctime on every mutating operation.
func Now() TimeSpec {
	t := time.Now()
	return TimeSpec{Sec: t.Unix(), Nsec: int64(t.Nanosecond())}
}

// Ops is the polymorphic capability set spec.md §3 describes an Inode as
// being "polymorphic over": {read_at, write_at, truncate, read_all,
// delete_data}. Each filesystem family (ext4shim, devfs, tmpfs, procfs)
// supplies its own Ops implementation; Inode itself only owns metadata and
// delegates data operations here.
type Ops interface {
	ReadAt(buf []byte, offset int64) (int, error)
	WriteAt(buf []byte, offset int64) (int, error)
	// Truncate resizes the underlying data to newSize, zero-filling any
	// newly exposed bytes on growth.
	Truncate(newSize int64) error
	ReadAll() ([]byte, error)
	// DeleteData physically removes the underlying data, called once an
	// inode's link_count and open_count both reach zero.
	DeleteData() error
}

// Inode is one filesystem object's metadata plus its data capability. A
// dentry materializes at most one Inode per on-disk object; File holds a
// reference to the Inode it was opened against.
type Inode struct {
	lock ksync.Spinlock

	ino  uint64
	mode Mode
	dev  Dev
	size int64

	atime, mtime, ctime TimeSpec

	openCount int
	linkCount int

	ops Ops
}

// New builds an Inode with the given identity and capability set. linkCount
// starts at 1, matching a freshly created on-disk object already linked
// into its parent directory.
func New(ino uint64, mode Mode, dev Dev, size int64, ops Ops) *Inode {
	now := Now()
	return &Inode{
		ino: ino, mode: mode, dev: dev, size: size,
		atime: now, mtime: now, ctime: now,
		linkCount: 1,
		ops:       ops,
	}
}

// Ino, Mode, Dev are immutable for the lifetime of an Inode.
func (n *Inode) Ino() uint64 { return n.ino }
func (n *Inode) Mode() Mode  { return n.mode }
func (n *Inode) Dev() Dev    { return n.dev }

// Size returns the inode's current byte size. It also satisfies
// mm/page.DiskWriter and vfs/pagecache.BackingInode.
func (n *Inode) Size() int64 {
	n.lock.Acquire()
	defer n.lock.Release()
	return n.size
}

// Times returns the inode's atime, mtime and ctime.
func (n *Inode) Times() (atime, mtime, ctime TimeSpec) {
	n.lock.Acquire()
	defer n.lock.Release()
	return n.atime, n.mtime, n.ctime
}

// TouchAtime stamps atime to now, used by a read that was not opened
// O_NOATIME (spec.md §4.9).
func (n *Inode) TouchAtime() {
	n.lock.Acquire()
	defer n.lock.Release()
	n.atime = Now()
}

// TouchWrite stamps mtime and ctime to now and, if end exceeds the current
// size, grows it — the Go rendering of spec.md §4.9's "i_size = max(old,
// new_end)" after a successful write.
func (n *Inode) TouchWrite(end int64) {
	n.lock.Acquire()
	defer n.lock.Release()
	now := Now()
	n.mtime, n.ctime = now, now
	if end > n.size {
		n.size = end
	}
}

// SetSize overwrites the inode's recorded size directly, used by Truncate.
func (n *Inode) SetSize(size int64) {
	n.lock.Acquire()
	defer n.lock.Release()
	n.size = size
	now := Now()
	n.mtime, n.ctime = now, now
}

// IncOpen/DecOpen track how many open Files reference this inode.
// DecOpen reports whether the inode is now orphaned (open_count == 0 &&
// link_count == 0) and should have its data removed (spec.md §3's Inode
// lifecycle).
func (n *Inode) IncOpen() {
	n.lock.Acquire()
	defer n.lock.Release()
	n.openCount++
}

func (n *Inode) DecOpen() (orphaned bool) {
	n.lock.Acquire()
	defer n.lock.Release()
	n.openCount--
	return n.openCount <= 0 && n.linkCount <= 0
}

// IncLink/DecLink track hard links. DecLink reports the same orphan
// condition as DecOpen.
func (n *Inode) IncLink() {
	n.lock.Acquire()
	defer n.lock.Release()
	n.linkCount++
}

func (n *Inode) DecLink() (orphaned bool) {
	n.lock.Acquire()
	defer n.lock.Release()
	n.linkCount--
	return n.openCount <= 0 && n.linkCount <= 0
}

func (n *Inode) LinkCount() int {
	n.lock.Acquire()
	defer n.lock.Release()
	return n.linkCount
}

// ReadAt, WriteAt delegate to Ops, satisfying mm/page.DiskBackedReader,
// mm/page.DiskWriter and vfs/pagecache.BackingInode so an *Inode can back a
// page cache directly.
func (n *Inode) ReadAt(buf []byte, offset int64) (int, error) {
	return n.ops.ReadAt(buf, offset)
}

func (n *Inode) WriteAt(buf []byte, offset int64) (int, error) {
	return n.ops.WriteAt(buf, offset)
}

// ReadAll reads the whole object in one call, used for small pseudo-files
// (procfs) and symlink targets that never go through the page cache.
func (n *Inode) ReadAll() ([]byte, error) {
	return n.ops.ReadAll()
}

// Truncate resizes the inode's data and updates the recorded size/ctime.
func (n *Inode) Truncate(newSize int64) error {
	if newSize < 0 {
		return kernel.New(errModule, kernel.KindINVAL, "negative truncate size")
	}
	if err := n.ops.Truncate(newSize); err != nil {
		return err
	}
	n.SetSize(newSize)
	return nil
}

// DeleteData physically removes the inode's backing data. Callers must
// ensure the inode is orphaned (DecOpen/DecLink returned true) first.
func (n *Inode) DeleteData() error {
	return n.ops.DeleteData()
}

// Ioctler is an optional capability an Ops implementation may also satisfy.
// It is kept separate from Ops itself because spec.md §3 defines an
// Inode's polymorphic capability set as exactly
// {read_at, write_at, truncate, read_all, delete_data} — ioctl is a
// device-specific extension only devfs's tty/rtc nodes need (spec.md
// §4.8's "Device pseudo-files").
type Ioctler interface {
	Ioctl(cmd, arg uintptr) (uintptr, error)
}

// Ioctl performs a device-specific command if this inode's Ops also
// implements Ioctler; otherwise it fails with EINVAL.
func (n *Inode) Ioctl(cmd, arg uintptr) (uintptr, error) {
	if ioc, ok := n.ops.(Ioctler); ok {
		return ioc.Ioctl(cmd, arg)
	}
	return 0, kernel.New(errModule, kernel.KindINVAL, "inode does not support ioctl")
}
