// Package fdtable implements C14: the per-process mapping from small
// integer file descriptors to open files, spec.md §4.9 describes ("allocate
// lowest-free, dup, cloexec"). Grounded on
// _examples/original_source/os/src/syscall/fs.rs's sys_dup/sys_dup3/
// sys_pipe2 (the fd_table.rs source that defines FdInfo/insert_get_fd/
// insert_spec_fd itself fell outside the retrieval pack's file cap, but its
// call sites there fully constrain the contract this package implements).
package fdtable

import (
	"github.com/LittleLucifer1/duck-os/kernel"
	"github.com/LittleLucifer1/duck-os/kernel/ksync"
	"github.com/LittleLucifer1/duck-os/sysnum"
	"github.com/LittleLucifer1/duck-os/vfs/file"
)

const errModule = "fdtable"

// ErrBadFd is returned for an operation on an fd that isn't open.
var ErrBadFd = kernel.New(errModule, kernel.KindBADF, "file descriptor not open")

// ErrInval is returned for a malformed fd argument (spec.md §4.9's
// "dup3(old, new, flags) requires old != new").
var ErrInval = kernel.New(errModule, kernel.KindINVAL, "invalid file descriptor argument")

// File is anything a descriptor slot can hold: a regular *vfs/file.File or a
// pipe endpoint, both of which already expose exactly this method set.
type File interface {
	Read(buf []byte) (int, error)
	Write(buf []byte) (int, error)
	ReadAll() ([]byte, error)
	Seek(whence file.Whence, offset int64) (int64, error)
	Truncate(newSize int64) error
	Ioctl(cmd, arg uintptr) (uintptr, error)
	Close() error
}

// entry pairs an open file with its descriptor-local flags. Only
// O_CLOEXEC/O_NONBLOCK are descriptor-local per POSIX; the file's own
// access-mode flags live on the File itself.
type entry struct {
	file  File
	flags sysnum.OpenFlags
}

// Table is one process's fd table: a small-integer -> open-file map
// allocated lowest-free-first (spec.md §4.9).
type Table struct {
	lock    ksync.Spinlock
	entries map[int]entry
}

// New returns an empty fd table.
func New() *Table {
	return &Table{entries: make(map[int]entry)}
}

// lowestFree returns the smallest fd not currently in use. Caller holds the
// lock.
func (t *Table) lowestFree() int {
	for fd := 0; ; fd++ {
		if _, ok := t.entries[fd]; !ok {
			return fd
		}
	}
}

// InsertGetFd installs f at the smallest free fd and returns it.
func (t *Table) InsertGetFd(f File, flags sysnum.OpenFlags) int {
	t.lock.Acquire()
	defer t.lock.Release()

	fd := t.lowestFree()
	t.entries[fd] = entry{file: f, flags: flags}
	return fd
}

// InsertSpecFd installs f at exactly fd, succeeding only if that slot is
// free (spec.md §4.9: "insert_spec_fd at an exact index succeeds only if
// that slot is free").
func (t *Table) InsertSpecFd(fd int, f File, flags sysnum.OpenFlags) (bool, error) {
	if fd < 0 {
		return false, ErrInval
	}
	t.lock.Acquire()
	defer t.lock.Release()

	if _, occupied := t.entries[fd]; occupied {
		return false, nil
	}
	t.entries[fd] = entry{file: f, flags: flags}
	return true, nil
}

// Get returns the file and flags installed at fd.
func (t *Table) Get(fd int) (File, sysnum.OpenFlags, error) {
	t.lock.Acquire()
	defer t.lock.Release()

	e, ok := t.entries[fd]
	if !ok {
		return nil, 0, ErrBadFd
	}
	return e.file, e.flags, nil
}

// Close closes and removes fd, a no-op returning ErrBadFd if fd isn't open.
func (t *Table) Close(fd int) error {
	t.lock.Acquire()
	e, ok := t.entries[fd]
	if !ok {
		t.lock.Release()
		return ErrBadFd
	}
	delete(t.entries, fd)
	t.lock.Release()

	return e.file.Close()
}

// Dup clones oldfd onto the lowest free slot, sharing the same underlying
// file and position but never the CLOEXEC flag (spec.md §4.9: "dup(old)
// clones without CLOEXEC").
func (t *Table) Dup(oldfd int) (int, error) {
	t.lock.Acquire()
	defer t.lock.Release()

	e, ok := t.entries[oldfd]
	if !ok {
		return 0, ErrBadFd
	}
	newFlags := e.flags &^ sysnum.OCloexec
	fd := t.lowestFree()
	t.entries[fd] = entry{file: e.file, flags: newFlags}
	return fd, nil
}

// Dup3 clones oldfd onto newfd, closing whatever was at newfd first. The
// close-then-install is performed under the table's lock so no other caller
// can take newfd in between (spec.md §4.9: "atomic with respect to the
// close to prevent another caller from taking it").
func (t *Table) Dup3(oldfd, newfd int, flags sysnum.OpenFlags) (int, error) {
	if oldfd == newfd {
		return 0, ErrInval
	}

	t.lock.Acquire()
	defer t.lock.Release()

	e, ok := t.entries[oldfd]
	if !ok {
		return 0, ErrBadFd
	}
	newFlags := e.flags &^ sysnum.OCloexec
	if flags.Has(sysnum.OCloexec) {
		newFlags |= sysnum.OCloexec
	}

	if old, occupied := t.entries[newfd]; occupied {
		delete(t.entries, newfd)
		if err := old.file.Close(); err != nil {
			return 0, err
		}
	}
	t.entries[newfd] = entry{file: e.file, flags: newFlags}
	return newfd, nil
}
