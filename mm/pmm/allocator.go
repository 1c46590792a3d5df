package pmm

import (
	"runtime"

	"github.com/LittleLucifer1/duck-os/kernel"
	"github.com/LittleLucifer1/duck-os/kernel/ksync"
)

const errModule = "pmm"

// ErrOutOfMemory is returned by Alloc when no frame is free.
var ErrOutOfMemory = kernel.New(errModule, kernel.KindNOMEM, "out of memory")

// Allocator is a bitmap-backed physical frame allocator. It owns a flat byte
// arena that stands in for physical memory in this hosted model (the
// teacher's BitmapAllocator instead partitions the multiboot-reported
// memory map; there is no such map here, so the arena is simply
// pre-sized at construction).
//
// Invariant (spec.md §3): the free set tracked by bitmap and the set of live
// FrameHandle PPNs partition [base, base+frameCount).
type Allocator struct {
	lock ksync.IRQLock

	base       Frame
	frameCount uint32
	freeCount  uint32
	bitmap     []uint64 // 1 bit per frame, 1 == reserved
	arena      []byte
}

// NewAllocator creates an allocator managing frameCount frames starting at
// physical frame number base.
func NewAllocator(base Frame, frameCount uint32) *Allocator {
	words := (frameCount + 63) / 64
	return &Allocator{
		base:       base,
		frameCount: frameCount,
		freeCount:  frameCount,
		bitmap:     make([]uint64, words),
		arena:      make([]byte, uintptr(frameCount)*kernel.PageSize),
	}
}

// FrameHandle is an owning handle for a single allocated Frame. No two live
// FrameHandles ever share a PPN. Free returns the frame to the allocator;
// forgetting to call Free leaks the frame until the finalizer runs, mirroring
// (imperfectly, since Go lacks deterministic destructors) the teacher's
// "destruction returns it to the allocator" contract.
type FrameHandle struct {
	alloc *Allocator
	frame Frame
	freed bool
}

// PPN returns the physical frame number owned by this handle.
func (h *FrameHandle) PPN() Frame { return h.frame }

// Bytes returns the page-sized backing storage for this frame.
func (h *FrameHandle) Bytes() []byte { return h.frame.Bytes(h.alloc) }

// Free returns the frame to the allocator. Free is idempotent.
func (h *FrameHandle) Free() {
	if h.freed {
		return
	}
	h.freed = true
	h.alloc.free(h.frame)
	runtime.SetFinalizer(h, nil)
}

// Alloc reserves and returns a free frame, or ErrOutOfMemory.
func (a *Allocator) Alloc() (*FrameHandle, error) {
	a.lock.Acquire()
	defer a.lock.Release()

	for word := range a.bitmap {
		if a.bitmap[word] == ^uint64(0) {
			continue
		}
		for bit := 0; bit < 64; bit++ {
			idx := uint32(word*64 + bit)
			if idx >= a.frameCount {
				break
			}
			if a.bitmap[word]&(1<<uint(bit)) != 0 {
				continue
			}
			a.bitmap[word] |= 1 << uint(bit)
			a.freeCount--
			frame := a.base + Frame(idx)
			clear(a.arenaSlice(frame))
			h := &FrameHandle{alloc: a, frame: frame}
			runtime.SetFinalizer(h, (*FrameHandle).Free)
			return h, nil
		}
	}
	return nil, ErrOutOfMemory
}

func (a *Allocator) arenaSlice(f Frame) []byte {
	off := uintptr(f-a.base) << kernel.PageShift
	return a.arena[off : off+uintptr(kernel.PageSize)]
}

func (a *Allocator) free(f Frame) {
	a.lock.Acquire()
	defer a.lock.Release()

	idx := uint32(f - a.base)
	word, bit := idx/64, idx%64
	a.bitmap[word] &^= 1 << bit
	a.freeCount++
}

// FreeCount returns the number of currently-unallocated frames.
func (a *Allocator) FreeCount() uint32 {
	a.lock.Acquire()
	defer a.lock.Release()
	return a.freeCount
}

// TotalFrames returns the total number of frames managed by this allocator.
func (a *Allocator) TotalFrames() uint32 { return a.frameCount }
