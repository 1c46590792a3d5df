// Package pipe implements C15: a bounded in-memory byte ring exposed as two
// file endpoints, spec.md §4.10 describes. Grounded on
// _examples/original_source/os/src/syscall/fs.rs's sys_pipe2 (the pipe.rs
// source defining make_pipes itself fell outside the retrieval pack's
// per-file cap, but sys_pipe2's call shape — make_pipes() returning a
// (read, write) pair that the fd table then inserts with O_RDONLY/O_WRONLY
// plus the caller's flags — fully constrains the endpoint contract below).
package pipe

import (
	"sync"

	"github.com/LittleLucifer1/duck-os/kernel"
	"github.com/LittleLucifer1/duck-os/vfs/file"
)

const errModule = "pipe"

// ErrPipe is returned by a write once every read endpoint has been closed
// (spec.md §4.10: "Write blocks until space exists or all read endpoints
// are dropped (then returns EPIPE)").
var ErrPipe = kernel.New(errModule, kernel.KindPIPE, "no reader remains for this pipe")

// ErrNotSupported is returned for operations a pipe endpoint has no
// sensible meaning for: seek, truncate, ioctl.
var ErrNotSupported = kernel.New(errModule, kernel.KindINVAL, "operation not supported on a pipe")

// ErrWrongEnd is returned when a read is attempted on a write endpoint, or
// a write on a read endpoint.
var ErrWrongEnd = kernel.New(errModule, kernel.KindBADF, "wrong end of pipe for this operation")

// DefaultCapacity is the ring's size absent an explicit capacity, one page
// — the same unit the rest of this module's data-movement paths (the page
// cache, VMA framing) use.
const DefaultCapacity = int(kernel.PageSize)

// ring is the shared byte buffer plus the reader/writer liveness counts
// that determine EOF (spec.md: "until ... all write endpoints are
// dropped") and EPIPE (until "all read endpoints are dropped") semantics.
type ring struct {
	mu                sync.Mutex
	notEmpty, notFull *sync.Cond

	buf        []byte
	head, size int

	readers, writers int
}

func newRing(capacity int) *ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	r := &ring{buf: make([]byte, capacity), readers: 1, writers: 1}
	r.notEmpty = sync.NewCond(&r.mu)
	r.notFull = sync.NewCond(&r.mu)
	return r
}

func (r *ring) read(buf []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.size == 0 {
		if r.writers == 0 {
			return 0, nil
		}
		r.notEmpty.Wait()
	}

	n := 0
	for n < len(buf) && r.size > 0 {
		buf[n] = r.buf[r.head]
		r.head = (r.head + 1) % len(r.buf)
		r.size--
		n++
	}
	r.notFull.Broadcast()
	return n, nil
}

func (r *ring) write(buf []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for n < len(buf) {
		if r.readers == 0 {
			if n > 0 {
				return n, nil
			}
			return 0, ErrPipe
		}
		for r.size == len(r.buf) {
			if r.readers == 0 {
				if n > 0 {
					return n, nil
				}
				return 0, ErrPipe
			}
			r.notFull.Wait()
		}
		for n < len(buf) && r.size < len(r.buf) {
			idx := (r.head + r.size) % len(r.buf)
			r.buf[idx] = buf[n]
			r.size++
			n++
		}
		r.notEmpty.Broadcast()
	}
	return n, nil
}

func (r *ring) closeReader() {
	r.mu.Lock()
	r.readers--
	r.mu.Unlock()
	r.notFull.Broadcast()
}

func (r *ring) closeWriter() {
	r.mu.Lock()
	r.writers--
	r.mu.Unlock()
	r.notEmpty.Broadcast()
}

// ReadEnd is a pipe's read side, implementing the same method set
// vfs/fdtable.File expects of any descriptor-table entry.
type ReadEnd struct {
	r *ring
}

func (e *ReadEnd) Read(buf []byte) (int, error)            { return e.r.read(buf) }
func (e *ReadEnd) Write([]byte) (int, error)               { return 0, ErrWrongEnd }
func (e *ReadEnd) Truncate(int64) error                    { return ErrNotSupported }
func (e *ReadEnd) Ioctl(uintptr, uintptr) (uintptr, error) { return 0, ErrNotSupported }
func (e *ReadEnd) Seek(file.Whence, int64) (int64, error)  { return 0, ErrNotSupported }

// ReadAll drains everything currently available, blocking for at least one
// chunk the way a blocking small-read loop does, and returns once the
// writer side produces an EOF.
func (e *ReadEnd) ReadAll() ([]byte, error) {
	var out []byte
	chunk := make([]byte, DefaultCapacity)
	for {
		n, err := e.Read(chunk)
		if err != nil {
			return out, err
		}
		if n == 0 {
			return out, nil
		}
		out = append(out, chunk[:n]...)
	}
}

// Close drops this read endpoint, waking any writer blocked on a full ring
// once the last reader is gone (spec.md §4.10).
func (e *ReadEnd) Close() error {
	e.r.closeReader()
	return nil
}

// WriteEnd is a pipe's write side.
type WriteEnd struct {
	r *ring
}

func (e *WriteEnd) Write(buf []byte) (int, error)           { return e.r.write(buf) }
func (e *WriteEnd) Read([]byte) (int, error)                { return 0, ErrWrongEnd }
func (e *WriteEnd) ReadAll() ([]byte, error)                { return nil, ErrWrongEnd }
func (e *WriteEnd) Truncate(int64) error                    { return ErrNotSupported }
func (e *WriteEnd) Ioctl(uintptr, uintptr) (uintptr, error) { return 0, ErrNotSupported }
func (e *WriteEnd) Seek(file.Whence, int64) (int64, error)  { return 0, ErrNotSupported }

// Close drops this write endpoint, waking any reader blocked on an empty
// ring once the last writer is gone so it observes EOF.
func (e *WriteEnd) Close() error {
	e.r.closeWriter()
	return nil
}

// New creates a pipe of the given capacity (DefaultCapacity if <= 0) and
// returns its two endpoints — the Go analogue of make_pipes(), consumed by
// sys_pipe2 the same way original_source's sys_pipe2 consumes make_pipes.
func New(capacity int) (*ReadEnd, *WriteEnd) {
	r := newRing(capacity)
	return &ReadEnd{r: r}, &WriteEnd{r: r}
}
