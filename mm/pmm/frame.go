// Package pmm implements C1: a bitmap allocator for physical page frames.
// It is modeled on gopheros/kernel/mem/pmm (the Frame type) and
// gopheros/kernel/mem/pmm/allocator (the bitmap allocator), adapted from a
// multiboot-memory-map-driven freestanding allocator to a fixed-size hosted
// one: this module simulates physical memory as a flat byte arena rather
// than reading a real e820/multiboot map.
package pmm

import (
	"math"

	"github.com/LittleLucifer1/duck-os/kernel"
)

// Frame describes a physical memory page index (a "physical page number").
type Frame uintptr

// InvalidFrame is a sentinel Frame value that never names a real frame.
const InvalidFrame = Frame(math.MaxUint64)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool { return f != InvalidFrame }

// Address returns the simulated physical address for this frame.
func (f Frame) Address() uintptr { return uintptr(f) << kernel.PageShift }

// Bytes returns the frame's backing storage. The allocator owns a single
// contiguous arena; this is a slice into it.
func (f Frame) Bytes(a *Allocator) []byte {
	off := uintptr(f-a.base) << kernel.PageShift
	return a.arena[off : off+uintptr(kernel.PageSize)]
}

// FrameFromAddress returns the frame number containing the given physical
// address.
func FrameFromAddress(addr uintptr) Frame {
	return Frame(addr >> kernel.PageShift)
}
