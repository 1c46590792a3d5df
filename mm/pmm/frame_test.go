package pmm

import (
	"testing"

	"github.com/LittleLucifer1/duck-os/kernel"
)

func TestFrameMethods(t *testing.T) {
	specs := []struct {
		frame    Frame
		wantAddr uintptr
	}{
		{frame: 0, wantAddr: 0},
		{frame: 1, wantAddr: uintptr(kernel.PageSize)},
		{frame: 16, wantAddr: 16 << kernel.PageShift},
	}

	for specIndex, spec := range specs {
		if !spec.frame.Valid() {
			t.Errorf("[spec %d] expected frame to be valid", specIndex)
		}

		if got := spec.frame.Address(); got != spec.wantAddr {
			t.Errorf("[spec %d] expected Address() to return 0x%x; got 0x%x", specIndex, spec.wantAddr, got)
		}
	}

	if InvalidFrame.Valid() {
		t.Error("expected InvalidFrame.Valid() to return false")
	}
}

func TestFrameFromAddress(t *testing.T) {
	specs := []struct {
		addr      uintptr
		wantFrame Frame
	}{
		{addr: 0, wantFrame: 0},
		{addr: uintptr(kernel.PageSize), wantFrame: 1},
		{addr: uintptr(kernel.PageSize) + 123, wantFrame: 1},
		{addr: 16 << kernel.PageShift, wantFrame: 16},
	}

	for specIndex, spec := range specs {
		if got := FrameFromAddress(spec.addr); got != spec.wantFrame {
			t.Errorf("[spec %d] expected FrameFromAddress(0x%x) to return %d; got %d", specIndex, spec.addr, spec.wantFrame, got)
		}
	}
}
