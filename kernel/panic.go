package kernel

import (
	"os"

	"github.com/LittleLucifer1/duck-os/kernel/klog"
)

var (
	// haltFn is mocked by tests. It stands in for the teacher's cpu.Halt:
	// this hosted model has no CPU to halt, so the default terminates the
	// process.
	haltFn = func() { os.Exit(1) }

	errRuntimePanic = &Error{Module: "rt", Kind: KindINVAL, Message: "unknown cause"}
)

// Panic logs the supplied error (if not nil) and halts the simulated kernel.
// Calls to Panic never return. Panic is reserved for invariant violations
// (spec.md §7): dentry/cache divergence, unknown tty ioctls, and similar
// conditions that user-correctable input can never trigger.
func Panic(e interface{}) {
	var err *Error

	switch t := e.(type) {
	case *Error:
		err = t
	case string:
		cp := *errRuntimePanic
		cp.Message = t
		err = &cp
	case error:
		cp := *errRuntimePanic
		cp.Message = t.Error()
		err = &cp
	}

	if err != nil {
		klog.Errorf(err.Module, "unrecoverable error: %s", err.Message)
	} else {
		klog.Errorf("rt", "unrecoverable error")
	}

	haltFn()
}
