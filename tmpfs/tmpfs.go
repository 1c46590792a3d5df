// Package tmpfs implements the in-memory scratch filesystem mounted under
// tag fs.TmpFs: an empty directory at mount time, populated purely by
// ordinary creates through the generic dentry.MediaOps path. Grounded on
// _examples/original_source/os/src/fs/tmpfs/mod.rs's TmpFileSystem, which
// likewise does no node registration beyond the root itself.
package tmpfs

import (
	"github.com/LittleLucifer1/duck-os/simplefs"
	"github.com/LittleLucifer1/duck-os/vfs/dentry"
	"github.com/LittleLucifer1/duck-os/vfs/fs"
)

// FileSystem is an empty in-memory filesystem, mountable under tag
// fs.TmpFs.
type FileSystem struct {
	impl *simplefs.FS
	root *dentry.Dentry
}

// New returns a fresh, empty tmpfs.
func New() *FileSystem {
	impl := simplefs.New()
	return &FileSystem{impl: impl, root: dentry.NewRoot(impl.NewRootInode(), impl)}
}

func (f *FileSystem) Type() fs.Type              { return fs.TmpFs }
func (f *FileSystem) RootDentry() *dentry.Dentry { return f.root }
