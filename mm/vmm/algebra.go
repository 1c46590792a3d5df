package vmm

import (
	"github.com/LittleLucifer1/duck-os/mm/sv39"
)

// unmapIfOverlap resolves v against a requested unmap range [start, end),
// translated directly from original_source's VirtMemoryAddr::unmap_if_overlap.
// On UnmapSplit, rest is the new right-hand VMA the caller must insert.
func (v *VMA) unmapIfOverlap(start, end uintptr, pt *sv39.Table) (UnmapOutcome, *VMA, error) {
	if !v.Overlaps(start, end) {
		return UnmapUnchanged, nil, nil
	}

	switch {
	case start <= v.start:
		if end < v.end {
			// Left side intersects: keep [end, v.end) as the VMA, drop
			// [v.start, end) from the page table.
			right := v.Split(end)
			if err := v.Remove(pt); err != nil {
				return 0, nil, err
			}
			*v = *right
			return UnmapShrink, nil, nil
		}
		// The requested range fully covers v.
		if err := v.Remove(pt); err != nil {
			return 0, nil, err
		}
		return UnmapRemoved, nil, nil
	case end < v.end:
		// The requested range is strictly inside v: split into left/right,
		// keep both, drop only the middle.
		right := v.Split(end)
		middle := v.Split(start)
		if err := middle.Remove(pt); err != nil {
			return 0, nil, err
		}
		return UnmapSplit, right, nil
	default:
		// Right side intersects.
		middle := v.Split(start)
		if err := middle.Remove(pt); err != nil {
			return 0, nil, err
		}
		return UnmapShrink, nil, nil
	}
}

// splitAndModifyIfOverlap resolves v against a requested mprotect range,
// translated from original_source's split_and_modify_if_overlap. extra
// holds any newly created VMA(s) the caller must insert into the range.
func (v *VMA) splitAndModifyIfOverlap(start, end uintptr, newPerm sv39.PermFlags, pt *sv39.Table) (MprotectOutcome, []*VMA, error) {
	if !v.Overlaps(start, end) {
		return MprotectUnchanged, nil, nil
	}

	switch {
	case start <= v.start:
		if end < v.end {
			right := v.Split(end)
			if err := v.Modify(pt, newPerm); err != nil {
				return 0, nil, err
			}
			return MprotectShrinkLeft, []*VMA{right}, nil
		}
		if err := v.Modify(pt, newPerm); err != nil {
			return 0, nil, err
		}
		return MprotectModified, nil, nil
	case end < v.end:
		right := v.Split(end)
		middle := v.Split(start)
		if err := middle.Modify(pt, newPerm); err != nil {
			return 0, nil, err
		}
		return MprotectSplit, []*VMA{middle, right}, nil
	default:
		right := v.Split(start)
		if err := right.Modify(pt, newPerm); err != nil {
			return 0, nil, err
		}
		return MprotectShrinkRight, []*VMA{right}, nil
	}
}
