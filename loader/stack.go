package loader

import (
	"encoding/binary"
	"io"

	"github.com/LittleLucifer1/duck-os/kernel"
	"github.com/LittleLucifer1/duck-os/mm/vmm"
)

// Auxiliary vector keys (spec.md §4.11 step 6's enumerated list; the
// numeric values follow the standard Linux auxv.h assignment).
const (
	atNull     = 0
	atPhdr     = 3
	atPhent    = 4
	atPhnum    = 5
	atPagesz   = 6
	atBase     = 7
	atFlags    = 8
	atEntry    = 9
	atUID      = 11
	atGID      = 13
	atEGID     = 14
	atPlatform = 15
	atHWCap    = 16
	atClktck   = 17
	atSecure   = 23
	atRandom   = 25
	atExecfn   = 31
)

// original_source's init_auxv also pushes an AT_IGNORE=0 entry ahead of
// AT_PHDR. spec.md's own auxv enumeration omits it, so this implementation
// does too — AT_IGNORE carries no information a libc start file reads.

const platformString = "riscv64\x00"
const randomBytes = 16
const wordSize = 8

// auxvInput carries the per-image values the auxv array needs beyond what
// the stack-building process computes for itself (pointers into the stack
// it has just written).
type auxvInput struct {
	phdr, phent, phnum, entry, base uintptr
}

// stackWriter deposits bytes into a VMA at a shrinking virtual address,
// mirroring original_source's StackInfo::build_stack.
type stackWriter struct {
	vma *vmm.VMA
	sp  uintptr
}

// writeAt deposits data at the given virtual address of vma, which must
// already be backed by real pages (true for a VMA installed via
// AddressSpace.InsertVMA with lazy=false).
func writeAt(vma *vmm.VMA, addr uintptr, data []byte) error {
	offset := int(addr & (kernel.PageSize - 1))
	return vma.WriteDataToPages(addr, data, offset)
}

func (w *stackWriter) write(data []byte) error {
	return writeAt(w.vma, w.sp, data)
}

// push reserves len(data) bytes below the current pointer and writes data
// there, returning the new (lower) stack pointer.
func (w *stackWriter) push(data []byte) error {
	w.sp -= uintptr(len(data))
	return w.write(data)
}

func (w *stackWriter) pushWord(v uint64) error {
	var b [wordSize]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return w.push(b[:])
}

func (w *stackWriter) alignTo16() {
	w.sp &^= uintptr(2*wordSize - 1)
}

// buildStack writes envp strings, argv strings, the platform string, random
// bytes, the auxv array, the envp and argv pointer arrays (each NULL
// terminated) and finally argc onto the stack top-down, returning the
// resulting stack pointer (spec.md §4.11 step 6, original_source's
// StackInfo::build_stack).
func buildStack(vma *vmm.VMA, stackTop uintptr, args, envs []string, rng io.Reader, aux auxvInput) (uintptr, error) {
	w := &stackWriter{vma: vma, sp: stackTop}

	envpAddr := make([]uintptr, len(envs))
	for i, s := range envs {
		if err := w.push(append([]byte(s), 0)); err != nil {
			return 0, err
		}
		envpAddr[i] = w.sp
	}
	w.alignTo16()

	argvAddr := make([]uintptr, len(args))
	for i, s := range args {
		if err := w.push(append([]byte(s), 0)); err != nil {
			return 0, err
		}
		argvAddr[i] = w.sp
	}
	w.alignTo16()

	if err := w.push([]byte(platformString)); err != nil {
		return 0, err
	}
	atPlatformAddr := w.sp

	randBuf := make([]byte, randomBytes)
	if _, err := io.ReadFull(rng, randBuf); err != nil {
		return 0, err
	}
	if err := w.push(randBuf); err != nil {
		return 0, err
	}
	atRandomAddr := w.sp
	w.alignTo16()

	var execfn uintptr
	if len(argvAddr) > 0 {
		execfn = argvAddr[0]
	}
	auxv := [][2]uint64{
		{atPhdr, uint64(aux.phdr)},
		{atPhent, uint64(aux.phent)},
		{atPhnum, uint64(aux.phnum)},
		{atPagesz, uint64(kernel.PageSize)},
		{atFlags, 0},
		{atEntry, uint64(aux.entry)},
		{atUID, 0},
		{atGID, 0},
		{atEGID, 0},
		{atHWCap, 0},
		{atClktck, 100},
		{atSecure, 0},
		{atPlatform, uint64(atPlatformAddr)},
		{atRandom, uint64(atRandomAddr)},
		{atExecfn, uint64(execfn)},
		{atBase, uint64(aux.base)},
		{atNull, 0},
	}
	w.sp -= uintptr(len(auxv) * 2 * wordSize)
	auxvBase := w.sp
	for i, pair := range auxv {
		off := uintptr(i * 2 * wordSize)
		var b [2 * wordSize]byte
		binary.LittleEndian.PutUint64(b[:wordSize], pair[0])
		binary.LittleEndian.PutUint64(b[wordSize:], pair[1])
		if err := writeAt(vma, auxvBase+off, b[:]); err != nil {
			return 0, err
		}
	}

	if err := w.pushWord(0); err != nil {
		return 0, err
	}
	if err := pushPointerArray(w, envpAddr); err != nil {
		return 0, err
	}

	if err := w.pushWord(0); err != nil {
		return 0, err
	}
	if err := pushPointerArray(w, argvAddr); err != nil {
		return 0, err
	}

	if err := w.pushWord(uint64(len(args))); err != nil {
		return 0, err
	}

	return w.sp, nil
}

// pushPointerArray reserves len(addrs)*wordSize bytes and writes addrs in
// order starting at the new (lower) stack pointer, so addrs[0] ends up at
// the lowest address — the NULL terminator a caller pushed immediately
// before calling this then sits right above the array.
func pushPointerArray(w *stackWriter, addrs []uintptr) error {
	w.sp -= uintptr(len(addrs) * wordSize)
	base := w.sp
	for i, a := range addrs {
		var b [wordSize]byte
		binary.LittleEndian.PutUint64(b[:], uint64(a))
		if err := writeAt(w.vma, base+uintptr(i*wordSize), b[:]); err != nil {
			return err
		}
	}
	return nil
}
