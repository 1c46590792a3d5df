package sysnum

import "encoding/binary"

// AtFdcwd is the dirfd value meaning "resolve pathname against the calling
// process's current working directory" (spec.md §6's *at() family).
const AtFdcwd = -100

// AtRemoveDir is the unlinkat() flag requesting rmdir rather than unlink
// semantics.
const AtRemoveDir = 0x200

// Timespec is a (seconds, nanoseconds) timestamp, the wire shape spec.md §6
// names for a stat record's atime/mtime/ctime fields.
type Timespec struct {
	Sec  int64
	Nsec int64
}

func (t Timespec) encode(dst []byte) {
	binary.LittleEndian.PutUint64(dst[0:8], uint64(t.Sec))
	binary.LittleEndian.PutUint64(dst[8:16], uint64(t.Nsec))
}

// Stat is the record layout spec.md §6 names: device id, inode number,
// mode, number of hard links, uid=0, gid=0, rdev=0, size in bytes,
// blksize=PAGE_SIZE, blocks=size/SECTOR_SIZE, atime/mtime/ctime.
type Stat struct {
	Dev     uint64
	Ino     uint64
	Mode    uint32
	Nlink   uint32
	Size    int64
	Blksize uint32
	Blocks  int64
	Atime   Timespec
	Mtime   Timespec
	Ctime   Timespec
}

// StatSize is the packed byte length of Stat.Encode's output.
const StatSize = 8 + 8 + 4 + 4 + 4 + 4 + 8 + 4 + 4 + 8 + 24 + 24 + 24

// Encode packs st per the field order spec.md §6 lists, uid/gid/rdev fixed
// at zero as the spec requires.
func (st Stat) Encode() []byte {
	buf := make([]byte, StatSize)
	binary.LittleEndian.PutUint64(buf[0:8], st.Dev)
	binary.LittleEndian.PutUint64(buf[8:16], st.Ino)
	binary.LittleEndian.PutUint32(buf[16:20], st.Mode)
	binary.LittleEndian.PutUint32(buf[20:24], st.Nlink)
	// uid, gid
	binary.LittleEndian.PutUint32(buf[24:28], 0)
	binary.LittleEndian.PutUint32(buf[28:32], 0)
	// rdev
	binary.LittleEndian.PutUint64(buf[32:40], 0)
	binary.LittleEndian.PutUint64(buf[40:48], uint64(st.Size))
	binary.LittleEndian.PutUint32(buf[48:52], st.Blksize)
	// pad to keep Blocks 8-byte aligned, matching the teacher's habit of
	// packing records by field order rather than chasing C struct layout
	binary.LittleEndian.PutUint32(buf[52:56], 0)
	binary.LittleEndian.PutUint64(buf[56:64], uint64(st.Blocks))
	st.Atime.encode(buf[64:80])
	st.Mtime.encode(buf[80:96])
	st.Ctime.encode(buf[96:112])
	return buf
}

// DirentType is the d_type byte a getdents64 entry reports, the standard
// Linux dirent d_type values.
type DirentType uint8

const (
	DtUnknown DirentType = 0
	DtFifo    DirentType = 1
	DtChr     DirentType = 2
	DtDir     DirentType = 4
	DtBlk     DirentType = 6
	DtReg     DirentType = 8
	DtLnk     DirentType = 10
)

// Dirent64 is one getdents64 entry (spec.md §6, packed): ino, off, reclen,
// type, then a zero-terminated name. Reclen is sizeof(header)+len(name)+1.
type Dirent64 struct {
	Ino  uint64
	Off  uint64
	Type DirentType
	Name string
}

// dirent64HeaderSize is sizeof({ino, off, reclen, type}) with no padding,
// matching spec.md §6's reclen formula literally.
const dirent64HeaderSize = 8 + 8 + 2 + 1

// Reclen is the byte length this entry occupies once encoded.
func (d Dirent64) Reclen() uint16 {
	return uint16(dirent64HeaderSize + len(d.Name) + 1)
}

// Encode packs d into its on-wire form.
func (d Dirent64) Encode() []byte {
	reclen := d.Reclen()
	buf := make([]byte, reclen)
	binary.LittleEndian.PutUint64(buf[0:8], d.Ino)
	binary.LittleEndian.PutUint64(buf[8:16], d.Off)
	binary.LittleEndian.PutUint16(buf[16:18], reclen)
	buf[18] = byte(d.Type)
	copy(buf[19:], d.Name)
	buf[19+len(d.Name)] = 0
	return buf
}

// utsFieldLen is the width of one fixed-width ASCII field of a Utsname record.
const utsFieldLen = 65

// Utsname is the fixed set of ASCII identification strings spec.md §6's
// uname() record names, matching Linux's struct utsname field order.
type Utsname struct {
	Sysname, Nodename, Release, Version, Machine, Domainname string
}

// NewUtsname returns this kernel's identification strings.
func NewUtsname() Utsname {
	return Utsname{
		Sysname:    "duck-os",
		Nodename:   "duck-os",
		Release:    "1.0.0",
		Version:    "#1 SMP",
		Machine:    "riscv64",
		Domainname: "(none)",
	}
}

func putUtsField(buf []byte, s string) {
	n := copy(buf, s)
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
}

// Encode packs u into six fixed utsFieldLen-byte, NUL-padded fields.
func (u Utsname) Encode() []byte {
	buf := make([]byte, 6*utsFieldLen)
	fields := []string{u.Sysname, u.Nodename, u.Release, u.Version, u.Machine, u.Domainname}
	for i, f := range fields {
		putUtsField(buf[i*utsFieldLen:(i+1)*utsFieldLen], f)
	}
	return buf
}
