package process

import (
	"github.com/LittleLucifer1/duck-os/kernel"
	"github.com/LittleLucifer1/duck-os/sysnum"
	"github.com/LittleLucifer1/duck-os/vfs/file"
	"github.com/LittleLucifer1/duck-os/vfs/inode"
)

// modeBits maps an inode.Mode to the on-wire st_mode value spec.md §6's
// stat layout names (the S_IF* family, the part of st_mode POSIX readers
// actually switch on).
func modeBits(m inode.Mode) uint32 {
	switch m {
	case inode.ModeDirectory:
		return 0o040000
	case inode.ModeCharDevice:
		return 0o020000
	case inode.ModeBlockDevice:
		return 0o060000
	case inode.ModeFifo:
		return 0o010000
	case inode.ModeSymlink:
		return 0o120000
	default:
		return 0o100000
	}
}

func toTimespec(t inode.TimeSpec) sysnum.Timespec {
	return sysnum.Timespec{Sec: t.Sec, Nsec: t.Nsec}
}

// Fstat fills st from fd's inode (spec.md §6's stat record, original_source's
// sys_fstat).
func (p *Process) Fstat(fd int, st *sysnum.Stat) int {
	f, _, err := p.Files.Get(fd)
	if err != nil {
		return sysnum.NegatedErrno(err)
	}
	of, ok := f.(*file.File)
	if !ok {
		return sysnum.NegatedErrno(errInval)
	}

	in := of.Inode()
	atime, mtime, ctime := in.Times()
	*st = sysnum.Stat{
		Dev:     in.Dev().FSDev,
		Ino:     in.Ino(),
		Mode:    modeBits(in.Mode()),
		Nlink:   uint32(in.LinkCount()),
		Size:    in.Size(),
		Blksize: uint32(kernel.PageSize),
		Blocks:  in.Size() / int64(kernel.SectorSize),
		Atime:   toTimespec(atime),
		Mtime:   toTimespec(mtime),
		Ctime:   toTimespec(ctime),
	}
	return 0
}

// Uname returns this kernel's identification strings (spec.md §6's uname
// record, original_source's sys_uname).
func (p *Process) Uname() sysnum.Utsname {
	return sysnum.NewUtsname()
}

// Getrandom fills buf from the process's random source (misc.rs's
// sys_getrandom; flags are accepted but unused since this core has no
// blocking-vs-nonblocking entropy pool distinction to make).
func (p *Process) Getrandom(buf []byte, flags uint32) int {
	n, err := p.RNG.Read(buf)
	if err != nil {
		return sysnum.NegatedErrno(err)
	}
	return n
}
