package vmm

import (
	"testing"

	"github.com/LittleLucifer1/duck-os/kernel"
	"github.com/LittleLucifer1/duck-os/mm/pmm"
	"github.com/LittleLucifer1/duck-os/mm/sv39"
)

func newTestTable(t *testing.T) (*sv39.Table, *pmm.Allocator) {
	t.Helper()
	alloc := pmm.NewAllocator(pmm.Frame(0), 4096)
	tbl, err := sv39.NewTable(alloc)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	return tbl, alloc
}

func TestVMAMapAllUnmap(t *testing.T) {
	tbl, alloc := newTestTable(t)
	vma := New(0x1000, 0x4000, sv39.PermRW, Framed, KindUserHeap, nil)

	if err := vma.MapAll(tbl, alloc); err != nil {
		t.Fatalf("MapAll: %v", err)
	}

	startVPN, endVPN := vma.VPNRange()
	for vpn := startVPN; vpn < endVPN; vpn++ {
		if _, err := tbl.TranslateVA2PA(vpn << kernel.PageShift); err != nil {
			t.Fatalf("expected vpn %d to be mapped: %v", vpn, err)
		}
	}

	if err := vma.Remove(tbl); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	for vpn := startVPN; vpn < endVPN; vpn++ {
		if _, err := tbl.TranslateVA2PA(vpn << kernel.PageShift); err != sv39.ErrNotMapped {
			t.Fatalf("expected vpn %d to be unmapped after Remove; got %v", vpn, err)
		}
	}
}

func TestVMASplit(t *testing.T) {
	tbl, alloc := newTestTable(t)
	vma := New(0, 0x4000, sv39.PermRW, Framed, KindUserHeap, nil)
	if err := vma.MapAll(tbl, alloc); err != nil {
		t.Fatalf("MapAll: %v", err)
	}

	right := vma.Split(0x2000)

	if vma.End() != 0x2000 {
		t.Fatalf("expected left half to end at 0x2000; got 0x%x", vma.End())
	}
	if right.Start() != 0x2000 || right.End() != 0x4000 {
		t.Fatalf("expected right half [0x2000,0x4000); got [0x%x,0x%x)", right.Start(), right.End())
	}

	if _, ok := vma.pma.Page(2); ok {
		t.Fatal("expected left half's pma to no longer hold vpn 2 after split")
	}
	if _, ok := right.pma.Page(2); !ok {
		t.Fatal("expected right half's pma to hold vpn 2 after split")
	}
}

func TestVMAModify(t *testing.T) {
	tbl, alloc := newTestTable(t)
	vma := New(0, 0x1000, sv39.PermR, Framed, KindUserHeap, nil)
	if err := vma.MapAll(tbl, alloc); err != nil {
		t.Fatalf("MapAll: %v", err)
	}

	if err := vma.Modify(tbl, sv39.PermRW); err != nil {
		t.Fatalf("Modify: %v", err)
	}

	view, err := tbl.TranslateVA2PTE(0)
	if err != nil {
		t.Fatalf("TranslateVA2PTE: %v", err)
	}
	if !hasFlag(view.Flags, sv39.FlagWrite) {
		t.Fatalf("expected write flag to be set after Modify; got %v", view.Flags)
	}
}

func TestVMAWriteReadDataAcrossPages(t *testing.T) {
	tbl, alloc := newTestTable(t)
	vma := New(0, 0x3000, sv39.PermRW, Framed, KindUserHeap, nil)
	if err := vma.MapAll(tbl, alloc); err != nil {
		t.Fatalf("MapAll: %v", err)
	}

	data := make([]byte, int(kernel.PageSize)+100)
	for i := range data {
		data[i] = byte(i)
	}

	// start offset within first page is PageSize-50, forcing the write to
	// span three pages.
	startOffset := int(kernel.PageSize) - 50
	if err := vma.WriteDataToPages(0, data, startOffset); err != nil {
		t.Fatalf("WriteDataToPages: %v", err)
	}

	got := make([]byte, len(data))
	if err := vma.ReadDataFromPages(0, got, startOffset); err != nil {
		t.Fatalf("ReadDataFromPages: %v", err)
	}

	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("byte %d mismatch: got %d want %d", i, got[i], data[i])
		}
	}
}
