package sysnum

import (
	"golang.org/x/sys/unix"

	"github.com/LittleLucifer1/duck-os/kernel"
)

// errnoOf maps a kernel.ErrKind to its POSIX errno value. Negating this is
// the syscall boundary's only translation step (spec.md §7: "the syscall
// boundary is the only place that converts a kernel.Error's Kind to a
// negated integer").
var errnoOf = map[kernel.ErrKind]int{
	kernel.KindNone:     0,
	kernel.KindBADF:     int(unix.EBADF),
	kernel.KindINVAL:    int(unix.EINVAL),
	kernel.KindFAULT:    int(unix.EFAULT),
	kernel.KindACCES:    int(unix.EACCES),
	kernel.KindEXIST:    int(unix.EEXIST),
	kernel.KindNOENT:    int(unix.ENOENT),
	kernel.KindNOTDIR:   int(unix.ENOTDIR),
	kernel.KindISDIR:    int(unix.EISDIR),
	kernel.KindNOTEMPTY: int(unix.ENOTEMPTY),
	kernel.KindBUSY:     int(unix.EBUSY),
	kernel.KindPERM:     int(unix.EPERM),
	kernel.KindRANGE:    int(unix.ERANGE),
	kernel.KindPIPE:     int(unix.EPIPE),
	kernel.KindNOMEM:    int(unix.ENOMEM),
	kernel.KindNOSPC:    int(unix.ENOSPC),
}

// NegatedErrno converts err into the non-negative-on-success,
// negated-errno-on-failure return convention spec.md §6 documents for every
// syscall in the surface. A nil err returns 0.
func NegatedErrno(err error) int {
	if err == nil {
		return 0
	}
	kind := kernel.KindOf(err)
	if errno, ok := errnoOf[kind]; ok && errno != 0 {
		return -errno
	}
	return -int(unix.EINVAL)
}
