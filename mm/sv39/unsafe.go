package sv39

import "unsafe"

// bytesToTablePtr reinterprets a page-sized byte slice as a frameTable. This
// mirrors the teacher's bitmap allocator, which also reinterprets raw frame
// bytes via unsafe.Pointer rather than copying; the frame is exclusively
// owned by this Table for as long as it remains an intermediate or leaf
// table.
func bytesToTablePtr(b []byte) unsafe.Pointer {
	return unsafe.Pointer(&b[0])
}
