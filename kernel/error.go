// Package kernel contains the types shared across every other package in
// this module: the kernel-wide error type, the POSIX error kinds the
// syscall boundary understands, and the handful of size constants that both
// the MM and VFS cores depend on.
package kernel

import "fmt"

// ErrKind identifies a POSIX error kind. The syscall boundary is the only
// place that turns a Kind into a negated errno integer (spec.md §7).
type ErrKind uint8

// The error kinds named in spec.md §6. KindNone is the zero value and never
// appears on a non-nil *Error.
const (
	KindNone ErrKind = iota
	KindBADF
	KindINVAL
	KindFAULT
	KindACCES
	KindEXIST
	KindNOENT
	KindNOTDIR
	KindISDIR
	KindNOTEMPTY
	KindBUSY
	KindPERM
	KindRANGE
	KindPIPE
	KindNOMEM
	KindNOSPC
)

var kindNames = map[ErrKind]string{
	KindNone:     "none",
	KindBADF:     "EBADF",
	KindINVAL:    "EINVAL",
	KindFAULT:    "EFAULT",
	KindACCES:    "EACCES",
	KindEXIST:    "EEXIST",
	KindNOENT:    "ENOENT",
	KindNOTDIR:   "ENOTDIR",
	KindISDIR:    "EISDIR",
	KindNOTEMPTY: "ENOTEMPTY",
	KindBUSY:     "EBUSY",
	KindPERM:     "EPERM",
	KindRANGE:    "ERANGE",
	KindPIPE:     "EPIPE",
	KindNOMEM:    "ENOMEM",
	KindNOSPC:    "ENOSPC",
}

// String implements fmt.Stringer.
func (k ErrKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "EUNKNOWN"
}

// Error describes a kernel error. All kernel errors are values of this type
// so that every fallible operation in the MM/VFS core can propagate a POSIX
// error kind all the way to the syscall boundary without allocating a new
// error type per call site.
type Error struct {
	// Module is the package/subsystem where the error originated.
	Module string
	// Kind is the POSIX error kind this error corresponds to.
	Kind ErrKind
	// Message is a human-readable description of the failure.
	Message string
	// cause is the lower-level error this one was translated from, if any.
	// Kept so errors.Is/errors.As can still reach a driver- or test-level
	// sentinel after it crosses the kernel error boundary.
	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("[%s] %s", e.Module, e.Kind)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Module, e.Kind, e.Message)
}

// Unwrap returns the error this one was translated from, or nil for an
// error that originated at the kernel boundary itself.
func (e *Error) Unwrap() error { return e.cause }

// New builds an *Error tagged with the given module, kind and message.
func New(module string, kind ErrKind, message string) *Error {
	return &Error{Module: module, Kind: kind, Message: message}
}

// Wrap builds an *Error that carries cause's message and, unlike New,
// keeps cause reachable via errors.Is/errors.As through Unwrap — used at
// points that translate a lower-level failure (disk I/O, an allocator
// error) into the POSIX kind the syscall boundary understands.
func Wrap(module string, kind ErrKind, cause error) *Error {
	return &Error{Module: module, Kind: kind, Message: cause.Error(), cause: cause}
}

// KindOf extracts the POSIX kind from err, returning KindNone if err is nil
// and KindINVAL if err is not a *Error.
func KindOf(err error) ErrKind {
	if err == nil {
		return KindNone
	}
	if kerr, ok := err.(*Error); ok {
		return kerr.Kind
	}
	return KindINVAL
}
