package process

import (
	"github.com/LittleLucifer1/duck-os/sysnum"
	"github.com/LittleLucifer1/duck-os/vfs/dentry"
	"github.com/LittleLucifer1/duck-os/vfs/file"
	"github.com/LittleLucifer1/duck-os/vfs/fs"
	"github.com/LittleLucifer1/duck-os/vfs/inode"
)

// Mkdirat creates a directory at pathname (spec.md §4.8's create,
// original_source's sys_mkdirat).
func (p *Process) Mkdirat(dirfd int, pathname string) int {
	if _, err := p.resolvePath(dirfd, pathname); err == nil {
		return sysnum.NegatedErrno(errExist)
	}
	abs, err := p.absolutePath(dirfd, pathname)
	if err != nil {
		return sysnum.NegatedErrno(err)
	}
	parentPath, name := parentAndName(abs)
	parent, err := dentry.PathToDentry(p.DentryCache, p.root, parentPath)
	if err != nil {
		return sysnum.NegatedErrno(err)
	}
	if parent.Inode().Mode() != inode.ModeDirectory {
		return sysnum.NegatedErrno(errNotDir)
	}
	if _, err := parent.Create(p.DentryCache, name, inode.ModeDirectory); err != nil {
		return sysnum.NegatedErrno(err)
	}
	return 0
}

// Unlinkat removes pathname — rmdir semantics under AT_REMOVEDIR, unlink
// otherwise (spec.md §4.8's unlink, original_source's sys_unlinkat).
func (p *Process) Unlinkat(dirfd int, pathname string, flags int) int {
	abs, err := p.absolutePath(dirfd, pathname)
	if err != nil {
		return sysnum.NegatedErrno(err)
	}
	if abs == p.cwdDentry().Path() {
		return sysnum.NegatedErrno(errBusy)
	}

	target, err := dentry.PathToDentry(p.DentryCache, p.root, abs)
	if err != nil {
		return sysnum.NegatedErrno(err)
	}

	isDir := target.Inode().Mode() == inode.ModeDirectory
	if isDir && flags&sysnum.AtRemoveDir == 0 {
		return sysnum.NegatedErrno(errIsDir)
	}
	if !isDir && flags&sysnum.AtRemoveDir != 0 {
		return sysnum.NegatedErrno(errNotDir)
	}

	parent := target.Parent()
	if parent == nil {
		return sysnum.NegatedErrno(errPerm)
	}
	if err := parent.Unlink(p.DentryCache, target); err != nil {
		return sysnum.NegatedErrno(err)
	}
	return 0
}

// Linkat creates a new hard link newPath naming the same inode as oldPath
// (spec.md §4.8's link, original_source's sys_linkat).
func (p *Process) Linkat(oldDirfd int, oldPath string, newDirfd int, newPath string) int {
	old, err := p.resolvePath(oldDirfd, oldPath)
	if err != nil {
		return sysnum.NegatedErrno(err)
	}
	if old.Inode().Mode() != inode.ModeRegular {
		return sysnum.NegatedErrno(errPerm)
	}
	if _, err := p.resolvePath(newDirfd, newPath); err == nil {
		return sysnum.NegatedErrno(errExist)
	}

	newAbs, err := p.absolutePath(newDirfd, newPath)
	if err != nil {
		return sysnum.NegatedErrno(err)
	}
	parentPath, name := parentAndName(newAbs)
	newParent, err := dentry.PathToDentry(p.DentryCache, p.root, parentPath)
	if err != nil {
		return sysnum.NegatedErrno(err)
	}
	if newParent.Inode().Mode() != inode.ModeDirectory {
		return sysnum.NegatedErrno(errNotDir)
	}
	if _, err := old.Link(p.DentryCache, newParent, name); err != nil {
		return sysnum.NegatedErrno(err)
	}
	return 0
}

// Symlinkat creates a symbolic link at linkPath containing target (spec.md
// §4.8's symlink, original_source's sys_symlinkat).
func (p *Process) Symlinkat(target string, newDirfd int, linkPath string) int {
	if _, err := p.resolvePath(newDirfd, linkPath); err == nil {
		return sysnum.NegatedErrno(errExist)
	}
	abs, err := p.absolutePath(newDirfd, linkPath)
	if err != nil {
		return sysnum.NegatedErrno(err)
	}
	parentPath, name := parentAndName(abs)
	parent, err := dentry.PathToDentry(p.DentryCache, p.root, parentPath)
	if err != nil {
		return sysnum.NegatedErrno(err)
	}
	if _, err := parent.Symlink(p.DentryCache, name, target); err != nil {
		return sysnum.NegatedErrno(err)
	}
	return 0
}

// Readlinkat reads pathname's symlink target into buf (spec.md §4.8's
// readlink, original_source's sys_readlinkat).
func (p *Process) Readlinkat(dirfd int, pathname string, buf []byte) int {
	d, err := p.resolvePath(dirfd, pathname)
	if err != nil {
		return sysnum.NegatedErrno(err)
	}
	if d.Inode().Mode() != inode.ModeSymlink {
		return sysnum.NegatedErrno(errInval)
	}
	n, err := d.ReadSymlink(buf)
	if err != nil {
		return sysnum.NegatedErrno(err)
	}
	return n
}

// Renameat2 moves oldPath to newPath (spec.md §4.8's rename,
// original_source's sys_renameat2; flags are accepted but not yet
// interpreted since this core implements no RENAME_NOREPLACE/EXCHANGE
// semantics beyond Rename's own existing-target handling).
func (p *Process) Renameat2(oldDirfd int, oldPath string, newDirfd int, newPath string, flags uint32) int {
	oldAbs, err := p.absolutePath(oldDirfd, oldPath)
	if err != nil {
		return sysnum.NegatedErrno(err)
	}
	newAbs, err := p.absolutePath(newDirfd, newPath)
	if err != nil {
		return sysnum.NegatedErrno(err)
	}
	if oldAbs == newAbs {
		return 0
	}

	oldParentPath, oldName := parentAndName(oldAbs)
	newParentPath, newName := parentAndName(newAbs)
	oldParent, err := dentry.PathToDentry(p.DentryCache, p.root, oldParentPath)
	if err != nil {
		return sysnum.NegatedErrno(err)
	}
	newParent, err := dentry.PathToDentry(p.DentryCache, p.root, newParentPath)
	if err != nil {
		return sysnum.NegatedErrno(err)
	}

	if err := oldParent.Rename(p.DentryCache, oldName, newParent, newName); err != nil {
		return sysnum.NegatedErrno(err)
	}
	return 0
}

// Getdents64 lists fd's directory entries into buf starting at the file's
// dirent_index, stopping once the next entry would overflow buf (spec.md
// §6's getdents64 record layout, original_source's sys_getdents64).
func (p *Process) Getdents64(fd int, buf []byte) int {
	f, _, err := p.Files.Get(fd)
	if err != nil {
		return sysnum.NegatedErrno(err)
	}
	of, ok := f.(*file.File)
	if !ok {
		return sysnum.NegatedErrno(errInval)
	}
	children, err := of.Readdir()
	if err != nil {
		return sysnum.NegatedErrno(err)
	}

	off := 0
	idx := of.DirentIndex()
	for ; idx < len(children); idx++ {
		child := children[idx]
		ent := sysnum.Dirent64{
			Ino:  child.Inode().Ino(),
			Off:  uint64(idx),
			Type: direntType(child.Inode().Mode()),
			Name: child.Name(),
		}
		encoded := ent.Encode()
		if off+len(encoded) > len(buf) {
			break
		}
		copy(buf[off:], encoded)
		off += len(encoded)
	}
	of.SetDirentIndex(idx)
	return off
}

// Getcwd writes the absolute current working directory path into buf
// (spec.md §6's sys_getcwd; ERANGE if buf is too small).
func (p *Process) Getcwd(buf []byte) int {
	cwd := p.cwdDentry().Path()
	if len(buf) < len(cwd) {
		return sysnum.NegatedErrno(errRange)
	}
	n := copy(buf, cwd)
	return n
}

// Chdir changes the process's current working directory (spec.md §4.8's
// sys_chdir).
func (p *Process) Chdir(pathname string) int {
	d, err := p.resolvePath(sysnum.AtFdcwd, pathname)
	if err != nil {
		return sysnum.NegatedErrno(err)
	}
	if d.Inode().Mode() != inode.ModeDirectory {
		return sysnum.NegatedErrno(errNotDir)
	}
	p.lock.Acquire()
	p.cwd = d
	p.lock.Release()
	return 0
}

// FSFactory constructs a FileSystem of a registered Type given the
// resolved device path named in a mount() call.
type FSFactory func(devPath string) (fs.FileSystem, error)

// Mount mounts a filesystem of type typ at targetPath (spec.md §4.8's
// mount, original_source's sys_mount). A nil factory requests the
// no-device shortcut fs.Manager.Mount already implements for VFAT/EXT4.
func (p *Process) Mount(devPath, targetPath string, typ fs.Type, flags sysnum.FSFlags, factory FSFactory) int {
	var construct func() (fs.FileSystem, error)
	if factory != nil {
		construct = func() (fs.FileSystem, error) { return factory(devPath) }
	}
	if err := p.FSManager.Mount(targetPath, typ, flags, construct); err != nil {
		return sysnum.NegatedErrno(err)
	}
	return 0
}

// Umount2 unmounts the filesystem at targetPath (spec.md §4.8's umount,
// original_source's sys_umount2 — the root filesystem cannot be unmounted).
func (p *Process) Umount2(targetPath string) int {
	if targetPath == "/" {
		return sysnum.NegatedErrno(errPerm)
	}
	if err := p.FSManager.Unmount(targetPath); err != nil {
		return sysnum.NegatedErrno(err)
	}
	return 0
}
