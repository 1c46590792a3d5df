// Package loader implements C16: turning a raw ELF image into a mapped
// address space ready to enter at its program counter, spec.md §4.11
// describes. It depends on nothing but C7 (mm/vmm.AddressSpace) and C12
// (vfs/file.File), reached only through the Opener callback a caller
// supplies for resolving PT_INTERP — the loader itself never imports
// vfs/dentry or vfs/fs. Grounded on
// _examples/original_source/os/src/process/loader/mod.rs's load_elf/
// map_elf_at/load_dl_interp.
package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/LittleLucifer1/duck-os/kernel"
	"github.com/LittleLucifer1/duck-os/mm/sv39"
	"github.com/LittleLucifer1/duck-os/mm/vmm"
	"github.com/LittleLucifer1/duck-os/vfs/file"
	"github.com/LittleLucifer1/duck-os/vfs/pagecache"
)

const errModule = "loader"

// Sentinel errors.
var (
	// ErrBadMagic is returned when debug/elf can't parse the image at all —
	// it does its own magic/class/endianness validation before this package
	// ever sees a *elf.File (spec.md §4.11 step 1: "Verify magic").
	ErrBadMagic = kernel.New(errModule, kernel.KindINVAL, "not a valid ELF image")
	// ErrInterpNotFound is returned when none of a PT_INTERP's candidate
	// paths could be opened.
	ErrInterpNotFound = kernel.New(errModule, kernel.KindNOENT, "dynamic linker not found at any candidate path")
)

// The two musl dynamic linker paths original_source special-cases: only for
// these does it also try /libc.so and /lib/libc.so, since a musl-linked
// binary's libc is the interpreter itself rather than a separate shared
// object.
const (
	muslInterpHard = "/lib/ld-musl-riscv64.so.1"
	muslInterpSoft = "/lib/ld-musl-riscv64-sf.so.1"
)

// Opener resolves a path (as named by a PT_INTERP segment) to an open file,
// the loader's only way to reach the filesystem. Keeping it a callback
// rather than a direct vfs/fs import is what lets this package depend on
// just C7+C12.
type Opener func(path string) (*file.File, error)

// Load maps an ELF image (and, if present, its PT_INTERP dynamic linker)
// into as, installs a heap and stack VMA, writes argv/envp/auxv onto the
// stack, and returns the entry point and initial stack pointer a caller
// should resume a new thread at (spec.md §4.11's load_elf).
func Load(data []byte, as *vmm.AddressSpace, open Opener, args, envs []string, rng io.Reader) (entry, sp uintptr, err error) {
	main, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return 0, 0, ErrBadMagic
	}

	var interpBase uintptr
	var interpEntry uintptr
	if interpPath, ok := findInterpPath(main); ok {
		interpFile, err := resolveInterp(interpPath, open)
		if err != nil {
			return 0, 0, err
		}
		raw, err := interpFile.ReadAll()
		if err != nil {
			return 0, 0, err
		}
		interpELF, err := elf.NewFile(bytes.NewReader(raw))
		if err != nil {
			return 0, 0, ErrBadMagic
		}
		interpBase = kernel.DynLinkerBase
		if _, err := mapSegments(interpELF, raw, as, interpBase, interpFile.Cache()); err != nil {
			return 0, 0, err
		}
		interpEntry = interpBase + uintptr(interpELF.Entry)
	}

	mainEnd, err := mapSegments(main, data, as, 0, nil)
	if err != nil {
		return 0, 0, err
	}

	heapStart := kernel.PageAlignUp(mainEnd)
	heapVMA := vmm.New(heapStart, heapStart, sv39.PermRWX, vmm.Framed, vmm.KindUserHeap, vmm.UserHeapHandler{})
	if err := as.InsertVMA(heapVMA, false); err != nil {
		return 0, 0, err
	}
	as.SetHeapEnd(heapStart)

	stackStart := kernel.UserStackTop - kernel.UserStackSize
	stackVMA := vmm.New(stackStart, kernel.UserStackTop, sv39.PermRW, vmm.Framed, vmm.KindUserStack, vmm.UserStackHandler{})
	if err := as.InsertVMA(stackVMA, false); err != nil {
		return 0, 0, err
	}

	phdr, phent, phnum, err := programHeaderTable(data, firstLoadVaddr(main))
	if err != nil {
		return 0, 0, err
	}

	sp, err = buildStack(stackVMA, kernel.UserStackTop, args, envs, rng, auxvInput{
		phdr:  phdr,
		phent: phent,
		phnum: phnum,
		entry: uintptr(main.Entry),
		base:  interpBase,
	})
	if err != nil {
		return 0, 0, err
	}

	if interpBase != 0 {
		return interpEntry, sp, nil
	}
	return uintptr(main.Entry), sp, nil
}

// findInterpPath returns the null-trimmed path named by a PT_INTERP
// segment, if one is present.
func findInterpPath(ef *elf.File) (string, bool) {
	for _, ph := range ef.Progs {
		if ph.Type != elf.PT_INTERP {
			continue
		}
		raw, err := io.ReadAll(ph.Open())
		if err != nil {
			return "", false
		}
		return strings.TrimRight(string(raw), "\x00"), true
	}
	return "", false
}

// resolveInterp tries interpPath and, for the two known musl linker paths,
// the fallbacks /libc.so and /lib/libc.so, returning the first one that
// opens (spec.md §4.11 step 2).
func resolveInterp(interpPath string, open Opener) (*file.File, error) {
	candidates := []string{interpPath}
	if interpPath == muslInterpHard || interpPath == muslInterpSoft {
		candidates = append(candidates, "/libc.so", "/lib/libc.so")
	}

	var lastErr error
	for _, c := range candidates {
		f, err := open(c)
		if err == nil {
			return f, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrInterpNotFound
	}
	return nil, lastErr
}

// permFor derives a VMA's page permission from a PT_LOAD segment's flags.
// FlagUser is not included here: VMA.MapOne ORs it in itself.
func permFor(flags elf.ProgFlag) sv39.PermFlags {
	var p sv39.PermFlags
	if flags&elf.PF_R != 0 {
		p |= sv39.FlagRead
	}
	if flags&elf.PF_W != 0 {
		p |= sv39.FlagWrite
	}
	if flags&elf.PF_X != 0 {
		p |= sv39.FlagExec
	}
	return p
}

// mapSegments maps every PT_LOAD segment of ef at baseAddr+p_vaddr, sharing
// cache's pages for read-only segments when a cache is available and
// depositing the segment's file bytes into freshly allocated pages
// otherwise, returning the page-aligned maximum end address reached
// (spec.md §4.11 step 3, original_source's map_elf_at).
func mapSegments(ef *elf.File, raw []byte, as *vmm.AddressSpace, baseAddr uintptr, cache *pagecache.Cache) (uintptr, error) {
	var maxEnd uintptr
	for _, ph := range ef.Progs {
		if ph.Type != elf.PT_LOAD {
			continue
		}

		startVA := baseAddr + uintptr(ph.Vaddr)
		endVA := startVA + uintptr(ph.Memsz)
		writable := ph.Flags&elf.PF_W != 0
		vma := vmm.New(startVA, endVA, permFor(ph.Flags), vmm.Framed, vmm.KindELF, nil)

		if cache != nil && !writable {
			if err := mapSharedSegment(vma, as, cache, startVA, ph.Off); err != nil {
				return 0, err
			}
			if err := as.Ranges().InsertRaw(vma); err != nil {
				return 0, err
			}
		} else {
			if err := as.InsertVMA(vma, false); err != nil {
				return 0, err
			}
			if ph.Filesz > 0 {
				data := raw[ph.Off : ph.Off+ph.Filesz]
				offsetInFirstPage := int(startVA - kernel.PageAlignDown(startVA))
				if err := vma.WriteDataToPages(startVA, data, offsetInFirstPage); err != nil {
					return 0, err
				}
			}
		}

		if end := kernel.PageAlignUp(endVA); end > maxEnd {
			maxEnd = end
		}
	}
	return maxEnd, nil
}

// mapSharedSegment maps a read-only segment's pages directly from cache,
// the "push_no_map" path original_source takes when a file's page cache is
// already available — no copy, the process's mapping and the page cache
// entry reference the same frame.
func mapSharedSegment(vma *vmm.VMA, as *vmm.AddressSpace, cache *pagecache.Cache, startVA uintptr, fileOff uint64) error {
	startVPN, endVPN := vma.VPNRange()
	delta := int64(startVA - kernel.PageAlignDown(startVA))
	fileOffset := int64(fileOff) - delta

	for vpn := startVPN; vpn < endVPN; vpn++ {
		pg, err := cache.FindPageAndCreate(fileOffset)
		if err != nil {
			return errors.Wrapf(err, "load shared segment page at file offset %d", fileOffset)
		}
		if _, err := vma.MapOne(as.Table(), as.Allocator(), vpn, pg); err != nil {
			return errors.Wrapf(err, "map shared segment page for vpn %d", vpn)
		}
		fileOffset += int64(kernel.PageSize)
	}
	return nil
}

// firstLoadVaddr returns the virtual address of the first PT_LOAD segment
// in header order, the base AT_PHDR is computed relative to
// (original_source's init_auxv finds elf_head_addr the same way).
func firstLoadVaddr(ef *elf.File) uintptr {
	for _, ph := range ef.Progs {
		if ph.Type == elf.PT_LOAD {
			return uintptr(ph.Vaddr)
		}
	}
	return 0
}

// programHeaderTable extracts e_phoff/e_phentsize/e_phnum directly from the
// raw ELF64 header, fields debug/elf parses internally but never exposes on
// File or FileHeader, and returns (AT_PHDR, AT_PHENT, AT_PHNUM).
func programHeaderTable(data []byte, elfHeadVaddr uintptr) (phdr, phent, phnum uintptr, err error) {
	const ehdrSize = 64
	if len(data) < ehdrSize {
		return 0, 0, 0, ErrBadMagic
	}
	phoff := binary.LittleEndian.Uint64(data[32:40])
	phentsize := binary.LittleEndian.Uint16(data[54:56])
	phnumField := binary.LittleEndian.Uint16(data[56:58])
	return elfHeadVaddr + uintptr(phoff), uintptr(phentsize), uintptr(phnumField), nil
}
