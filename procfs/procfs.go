// Package procfs implements the /proc pseudo-filesystem: a meminfo
// pseudo-file and a mounts pseudo-file, both backed by a shared
// simplefs.FS root. Grounded on
// _examples/original_source/os/src/fs/procfs/{mod.rs,meminfo.rs,
// mounts.rs}.
package procfs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/LittleLucifer1/duck-os/kernel"
	"github.com/LittleLucifer1/duck-os/simplefs"
	"github.com/LittleLucifer1/duck-os/vfs/dentry"
	"github.com/LittleLucifer1/duck-os/vfs/fs"
	"github.com/LittleLucifer1/duck-os/vfs/inode"
)

const errModule = "procfs"

var errReadOnly = kernel.New(errModule, kernel.KindACCES, "proc pseudo-files are read-only")

// MemInfo mirrors original_source's MemInfo: a fixed snapshot of the
// memory counters /proc/meminfo reports. This core tracks no live
// allocator statistics feed, so the values a caller supplies are rendered
// verbatim rather than sampled from a running allocator.
type MemInfo struct {
	TotalMem, FreeMem, AvailMem uint64
	Buffer, Cache               uint64
	TotalSwap, FreeSwap         uint64
	Shmem, Slab                 uint64
}

// Serialize renders m in the same "Key:\tvalue KB\n" shape
// original_source's MemInfo::serialize produces, SwapCached hardcoded to 0
// exactly as the original does (this core has no swap cache to report).
func (m MemInfo) Serialize() []byte {
	var b strings.Builder
	row := func(key string, v uint64) {
		fmt.Fprintf(&b, "%s:\t%d KB\n", key, v)
	}
	row("MemTotal", m.TotalMem)
	row("MemFree", m.FreeMem)
	row("MemAvailable", m.AvailMem)
	row("Buffers", m.Buffer)
	row("Cached", m.Cache)
	row("SwapCached", 0)
	row("SwapTotal", m.TotalSwap)
	row("SwapFree", m.FreeSwap)
	row("Shmem", m.Shmem)
	row("Slab", m.Slab)
	return []byte(b.String())
}

// FileSystem is the proc pseudo-filesystem, mountable under tag
// fs.ProcFs.
type FileSystem struct {
	impl *fs.Manager
	root *dentry.Dentry
}

// New builds a procfs rooted at an empty directory and installs meminfo
// and mounts. meminfo is a fixed snapshot; mounts renders mgr's live mount
// table on every read (mgr is normally the Manager procfs itself is mounted
// into, so /proc/mounts reflects mounts made after procfs itself was
// mounted).
func New(info MemInfo, mgr *fs.Manager) (*FileSystem, error) {
	simple := simplefs.New()
	root := dentry.NewRoot(simple.NewRootInode(), simple)

	if _, err := simple.RegisterChild(root, "meminfo", inode.ModeRegular, &meminfoOps{info: info}); err != nil {
		return nil, err
	}
	if _, err := simple.RegisterChild(root, "mounts", inode.ModeRegular, &mountsOps{mgr: mgr}); err != nil {
		return nil, err
	}

	return &FileSystem{impl: mgr, root: root}, nil
}

func (f *FileSystem) Type() fs.Type              { return fs.ProcFs }
func (f *FileSystem) RootDentry() *dentry.Dentry { return f.root }

// meminfoOps serves a fixed MemInfo snapshot, re-serialized on every read
// (original_source's MemInfoFile::read re-serializes MEM_INFO on every
// call rather than caching the bytes).
type meminfoOps struct {
	info MemInfo
}

func (o *meminfoOps) ReadAt(buf []byte, offset int64) (int, error) {
	data := o.info.Serialize()
	if offset >= int64(len(data)) {
		return 0, nil
	}
	return copy(buf, data[offset:]), nil
}
func (o *meminfoOps) WriteAt([]byte, int64) (int, error) { return 0, errReadOnly }
func (o *meminfoOps) Truncate(int64) error               { return errReadOnly }
func (o *meminfoOps) ReadAll() ([]byte, error)           { return o.info.Serialize(), nil }
func (o *meminfoOps) DeleteData() error                  { return nil }

// mountsOps renders mgr's live mount table as "mountpoint type\n" lines,
// sorted by mount point for a stable read. original_source's MountsFile
// is an unimplemented "TODO: Not implemented!" placeholder; this
// implementation supplements that gap with a real rendering.
type mountsOps struct {
	mgr *fs.Manager
}

func (o *mountsOps) render() []byte {
	entries := o.mgr.Mounts()
	sort.Slice(entries, func(i, j int) bool { return entries[i].MountPoint < entries[j].MountPoint })

	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s %s\n", e.MountPoint, e.Type)
	}
	return []byte(b.String())
}

func (o *mountsOps) ReadAt(buf []byte, offset int64) (int, error) {
	data := o.render()
	if offset >= int64(len(data)) {
		return 0, nil
	}
	return copy(buf, data[offset:]), nil
}
func (o *mountsOps) WriteAt([]byte, int64) (int, error) { return 0, errReadOnly }
func (o *mountsOps) Truncate(int64) error               { return errReadOnly }
func (o *mountsOps) ReadAll() ([]byte, error)           { return o.render(), nil }
func (o *mountsOps) DeleteData() error                  { return nil }
