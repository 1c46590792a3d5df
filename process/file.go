package process

import (
	"github.com/LittleLucifer1/duck-os/mm/pmm"
	"github.com/LittleLucifer1/duck-os/mm/sv39"
	"github.com/LittleLucifer1/duck-os/sysnum"
	"github.com/LittleLucifer1/duck-os/vfs/dentry"
	"github.com/LittleLucifer1/duck-os/vfs/file"
	"github.com/LittleLucifer1/duck-os/vfs/inode"
	"github.com/LittleLucifer1/duck-os/vfs/pagecache"
	"github.com/LittleLucifer1/duck-os/vfs/pipe"
)

// fileCacheConfig holds what SetAllocator needs to build a fresh page cache
// per regular-file open (original_source's ext4_dentry.rs open() builds one
// per open). Left unset, regular files still work — OpenAt just passes nil,
// and reads/writes fall through straight to the inode's Ops — the accepted
// tradeoff for a process with no frame allocator wired in.
type fileCacheConfig struct {
	alloc *pmm.Allocator
	perm  sv39.PermFlags
}

// SetAllocator wires a frame allocator into p so OpenAt constructs a page
// cache for every regular file it opens, the same way a real mount would.
func (p *Process) SetAllocator(alloc *pmm.Allocator) {
	p.cacheCfg = &fileCacheConfig{alloc: alloc, perm: sv39.PermRW}
}

// OpenAt resolves pathname relative to dirfd and returns a new fd for it,
// creating the file first if O_CREAT is set and it doesn't yet exist
// (spec.md §4.9, original_source's sys_openat). The mode argument real
// openat() takes is the new file's permission bits; this core has no
// notion of permission bits (uid/gid/mode are fixed at zero, per spec.md
// §6's stat layout), so — matching original_source's own "_mode: usize"
// — it is not accepted here at all.
func (p *Process) OpenAt(dirfd int, pathname string, flags sysnum.OpenFlags) int {
	d, err := p.resolvePath(dirfd, pathname)
	if err != nil {
		if !flags.Has(sysnum.OCreat) {
			return sysnum.NegatedErrno(err)
		}
		abs, aerr := p.absolutePath(dirfd, pathname)
		if aerr != nil {
			return sysnum.NegatedErrno(aerr)
		}
		parentPath, name := parentAndName(abs)
		parent, perr := dentry.PathToDentry(p.DentryCache, p.root, parentPath)
		if perr != nil {
			return sysnum.NegatedErrno(perr)
		}
		created, cerr := parent.Create(p.DentryCache, name, inode.ModeRegular)
		if cerr != nil {
			return sysnum.NegatedErrno(cerr)
		}
		d = created
	} else {
		if flags.Has(sysnum.OCreat) && flags.Has(sysnum.OExcl) {
			return sysnum.NegatedErrno(errExist)
		}
		if flags.Has(sysnum.ODirectory) && d.Inode().Mode() != inode.ModeDirectory {
			return sysnum.NegatedErrno(errNotDir)
		}
	}

	f, err := file.Open(d, flags, p.fileCache(d.Inode()))
	if err != nil {
		return sysnum.NegatedErrno(err)
	}
	return p.Files.InsertGetFd(f, flags)
}

// fileCache returns a fresh page cache for a regular file if an allocator
// has been wired in, nil otherwise (directories and devices always get
// nil, per vfs/file.File's contract).
func (p *Process) fileCache(in *inode.Inode) *pagecache.Cache {
	if in.Mode() != inode.ModeRegular || p.cacheCfg == nil {
		return nil
	}
	return pagecache.New(p.cacheCfg.alloc, in, p.cacheCfg.perm)
}

// Close closes fd (spec.md §4.9's sys_close).
func (p *Process) Close(fd int) int {
	return sysnum.NegatedErrno(p.Files.Close(fd))
}

// Read reads into buf from fd at its current position.
func (p *Process) Read(fd int, buf []byte) int {
	f, _, err := p.Files.Get(fd)
	if err != nil {
		return sysnum.NegatedErrno(err)
	}
	n, err := f.Read(buf)
	if err != nil {
		return sysnum.NegatedErrno(err)
	}
	return n
}

// Write writes buf to fd at its current position.
func (p *Process) Write(fd int, buf []byte) int {
	f, _, err := p.Files.Get(fd)
	if err != nil {
		return sysnum.NegatedErrno(err)
	}
	n, err := f.Write(buf)
	if err != nil {
		return sysnum.NegatedErrno(err)
	}
	return n
}

// Lseek repositions fd's offset (whence follows file.Whence's Start/Current/
// End order, matching spec.md §6's disk cursor convention).
func (p *Process) Lseek(fd int, offset int64, whence file.Whence) int {
	f, _, err := p.Files.Get(fd)
	if err != nil {
		return sysnum.NegatedErrno(err)
	}
	newPos, err := f.Seek(whence, offset)
	if err != nil {
		return sysnum.NegatedErrno(err)
	}
	return int(newPos)
}

// Ftruncate resizes fd's file to length bytes.
func (p *Process) Ftruncate(fd int, length int64) int {
	f, _, err := p.Files.Get(fd)
	if err != nil {
		return sysnum.NegatedErrno(err)
	}
	if err := f.Truncate(length); err != nil {
		return sysnum.NegatedErrno(err)
	}
	return 0
}

// Dup clones oldfd onto the lowest free slot (spec.md §4.9's sys_dup).
func (p *Process) Dup(oldfd int) int {
	fd, err := p.Files.Dup(oldfd)
	if err != nil {
		return sysnum.NegatedErrno(err)
	}
	return fd
}

// Dup3 clones oldfd onto newfd (spec.md §4.9's sys_dup3).
func (p *Process) Dup3(oldfd, newfd int, flags sysnum.OpenFlags) int {
	fd, err := p.Files.Dup3(oldfd, newfd, flags)
	if err != nil {
		return sysnum.NegatedErrno(err)
	}
	return fd
}

// Pipe2 creates a pipe and installs its two endpoints into fds[0] (read)
// and fds[1] (write), matching original_source's sys_pipe2.
func (p *Process) Pipe2(fds []int, flags sysnum.OpenFlags) int {
	if len(fds) < 2 {
		return sysnum.NegatedErrno(errInval)
	}
	r, w := pipe.New(pipe.DefaultCapacity)
	fds[0] = p.Files.InsertGetFd(r, flags|sysnum.ORdonly)
	fds[1] = p.Files.InsertGetFd(w, flags|sysnum.OWronly)
	return 0
}
