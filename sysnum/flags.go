// Package sysnum defines the external interface surface named in spec.md
// §6: open/mount flag bitmasks, the stat/dirent record layouts, and the
// syscall surface's POSIX-negated-errno convention. It leans on
// golang.org/x/sys/unix for the numeric values the real Linux ABI assigns
// to these flags/ioctls, grounded on the pack's own heavy use of that
// package for exactly this kind of ioctl/stat plumbing (gvisor-ligolo,
// absfs-memmapfs, lxd idmap all import it for the same reason).
package sysnum

import "golang.org/x/sys/unix"

// OpenFlags is the openat() flag bitmask spec.md §6 names.
type OpenFlags uint32

// Open flags recognized by this core (spec.md §6).
const (
	ORdonly    OpenFlags = OpenFlags(unix.O_RDONLY)
	OWronly    OpenFlags = OpenFlags(unix.O_WRONLY)
	ORdwr      OpenFlags = OpenFlags(unix.O_RDWR)
	OCreat     OpenFlags = OpenFlags(unix.O_CREAT)
	OExcl      OpenFlags = OpenFlags(unix.O_EXCL)
	OTrunc     OpenFlags = OpenFlags(unix.O_TRUNC)
	OAppend    OpenFlags = OpenFlags(unix.O_APPEND)
	ODirectory OpenFlags = OpenFlags(unix.O_DIRECTORY)
	OCloexec   OpenFlags = OpenFlags(unix.O_CLOEXEC)
	OPath      OpenFlags = OpenFlags(unix.O_PATH)
	ONoatime   OpenFlags = OpenFlags(unix.O_NOATIME)
	ONonblock  OpenFlags = OpenFlags(unix.O_NONBLOCK)

	// accessModeMask isolates the RDONLY/WRONLY/RDWR bits, which (unlike
	// every other flag here) are not independently OR-able.
	accessModeMask = ORdonly | OWronly | ORdwr
)

// Has reports whether flags carries every bit in bit.
func (flags OpenFlags) Has(bit OpenFlags) bool { return flags&bit == bit }

// Writable reports whether flags permit writing (O_WRONLY or O_RDWR).
func (flags OpenFlags) Writable() bool {
	mode := flags & accessModeMask
	return mode == OWronly || mode == ORdwr
}

// Readable reports whether flags permit reading (O_RDONLY or O_RDWR).
func (flags OpenFlags) Readable() bool {
	mode := flags & accessModeMask
	return mode == ORdonly || mode == ORdwr
}

// FSFlags is the 9-bit mount flag mask spec.md §6 names.
type FSFlags uint32

// Mount flags. MS_NOSUID is the one spec.md calls out by name; the rest
// round the mask out to the documented 9 bits using the real Linux mount
// flag values.
const (
	MSRdonly      FSFlags = FSFlags(unix.MS_RDONLY)
	MSNosuid      FSFlags = FSFlags(unix.MS_NOSUID)
	MSNodev       FSFlags = FSFlags(unix.MS_NODEV)
	MSNoexec      FSFlags = FSFlags(unix.MS_NOEXEC)
	MSSynchronous FSFlags = FSFlags(unix.MS_SYNCHRONOUS)
	MSRemount     FSFlags = FSFlags(unix.MS_REMOUNT)
	MSMandlock    FSFlags = FSFlags(unix.MS_MANDLOCK)
	MSDirsync     FSFlags = FSFlags(unix.MS_DIRSYNC)
	MSNoatime     FSFlags = FSFlags(unix.MS_NOATIME)
)

func (flags FSFlags) Has(bit FSFlags) bool { return flags&bit == bit }
