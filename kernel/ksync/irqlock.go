package ksync

// IRQLock guards data also touched from a simulated trap/fault handler:
// termios/winsize/fg_pgid on tty files, page-cache sector state, the frame
// allocator's bitmap, and the global RNG (spec.md §5). It has the same
// shape as Spinlock; the distinct type lets a lock-ordering review (§5)
// grep for "IRQLock" to find every structure a fault handler can touch
// without walking every call site.
type IRQLock struct {
	Spinlock
}
