package vmm

import (
	"sort"

	"github.com/LittleLucifer1/duck-os/kernel"
	"github.com/LittleLucifer1/duck-os/mm/sv39"
)

// UnmapOutcome classifies how one VMA resolved against a requested unmap
// range (spec.md §4.3's intersection algebra).
type UnmapOutcome uint8

const (
	UnmapUnchanged UnmapOutcome = iota
	UnmapShrink
	UnmapRemoved
	UnmapSplit
)

// MprotectOutcome classifies how one VMA resolved against a requested
// mprotect range.
type MprotectOutcome uint8

const (
	MprotectUnchanged MprotectOutcome = iota
	MprotectModified
	MprotectShrinkLeft
	MprotectShrinkRight
	MprotectSplit
)

// Range holds the non-overlapping, sorted-by-start VMAs that make up one
// AddressSpace (spec.md C6). All mutating operations keep the slice sorted.
type Range struct {
	vmas []*VMA
}

// NewRange returns an empty VMA range.
func NewRange() *Range { return &Range{} }

// All returns every VMA in the range, in sorted order. Callers must not
// mutate the returned slice.
func (r *Range) All() []*VMA { return r.vmas }

// Find returns the VMA containing addr, if any.
func (r *Range) Find(addr uintptr) (*VMA, bool) {
	for _, v := range r.vmas {
		if v.Contains(addr) {
			return v, true
		}
	}
	return nil, false
}

// InsertRaw inserts vma into the range in sorted position, failing if it
// overlaps an existing VMA (spec.md's insert_raw).
func (r *Range) InsertRaw(vma *VMA) error {
	idx := sort.Search(len(r.vmas), func(i int) bool { return r.vmas[i].start >= vma.start })
	if idx > 0 && r.vmas[idx-1].Overlaps(vma.start, vma.end) {
		return kernel.New(errModule, kernel.KindEXIST, "vma overlaps an existing mapping")
	}
	if idx < len(r.vmas) && r.vmas[idx].Overlaps(vma.start, vma.end) {
		return kernel.New(errModule, kernel.KindEXIST, "vma overlaps an existing mapping")
	}
	r.vmas = append(r.vmas, nil)
	copy(r.vmas[idx+1:], r.vmas[idx:])
	r.vmas[idx] = vma
	return nil
}

func (r *Range) remove(vma *VMA) {
	for i, v := range r.vmas {
		if v == vma {
			r.vmas = append(r.vmas[:i], r.vmas[i+1:]...)
			return
		}
	}
}

// FindAnywhere searches upward from hint for the first aligned gap of at
// least len bytes inside [lowBound, highBound), returning the chosen start
// (spec.md's find_anywhere).
func (r *Range) FindAnywhere(hint, length, lowBound, highBound uintptr) (uintptr, error) {
	if hint < lowBound {
		hint = lowBound
	}
	candidate := kernel.PageAlignUp(hint)

	for candidate+length <= highBound {
		end := candidate + length
		blocked := false
		for _, v := range r.vmas {
			if v.Overlaps(candidate, end) {
				candidate = kernel.PageAlignUp(v.end)
				blocked = true
				break
			}
		}
		if !blocked {
			return candidate, nil
		}
	}
	return 0, kernel.New(errModule, kernel.KindNOMEM, "no virtual address gap large enough")
}

// FindFixed verifies [start, end) is free, unmapping any overlap found
// (MAP_FIXED semantics, spec.md's find_fixed).
func (r *Range) FindFixed(start, end uintptr, pt *sv39.Table) error {
	_, err := r.Unmap(start, end, pt)
	return err
}

// Unmap walks every VMA overlapping [start, end), applying the intersection
// algebra described in spec.md §4.3, and returns the VMAs that survived in
// modified form so callers (e.g. munmap) can report what changed.
func (r *Range) Unmap(start, end uintptr, pt *sv39.Table) ([]*VMA, error) {
	start, end = kernel.PageAlignDown(start), kernel.PageAlignUp(end)

	var touched []*VMA
	for _, v := range append([]*VMA(nil), r.vmas...) {
		outcome, rest, err := v.unmapIfOverlap(start, end, pt)
		if err != nil {
			return nil, err
		}
		switch outcome {
		case UnmapUnchanged:
			continue
		case UnmapRemoved:
			r.remove(v)
		case UnmapShrink:
			touched = append(touched, v)
		case UnmapSplit:
			touched = append(touched, v, rest)
			if err := r.InsertRaw(rest); err != nil {
				return nil, err
			}
		}
	}
	return touched, nil
}

// Mprotect walks every VMA overlapping [start, end), applying
// split_and_modify_if_overlap (spec.md's mprotect).
func (r *Range) Mprotect(start, end uintptr, newPerm sv39.PermFlags, pt *sv39.Table) error {
	start, end = kernel.PageAlignDown(start), kernel.PageAlignUp(end)

	for _, v := range append([]*VMA(nil), r.vmas...) {
		outcome, extra, err := v.splitAndModifyIfOverlap(start, end, newPerm, pt)
		if err != nil {
			return err
		}
		for _, e := range extra {
			if e != nil {
				if err := r.InsertRaw(e); err != nil {
					return err
				}
			}
		}
		_ = outcome
	}
	return nil
}

// Expand grows the VMA whose end equals start to newEnd (spec.md's expand,
// used by brk).
func (r *Range) Expand(start, newEnd uintptr) error {
	for _, v := range r.vmas {
		if v.end == start {
			v.Expand(newEnd)
			return nil
		}
	}
	return kernel.New(errModule, kernel.KindINVAL, "no vma ends at the given address to expand")
}
