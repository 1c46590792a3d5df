package devfs

import (
	"unsafe"

	"github.com/LittleLucifer1/duck-os/kernel/ksync"
)

// tty ioctl command numbers, matching <asm-generic/ioctls.h> and
// original_source's TtyIoctlCmd.
const (
	tcgets     = 0x5401
	tcsets     = 0x5402
	tcsetsw    = 0x5403
	tcsetsf    = 0x5404
	tcgeta     = 0x5405
	tcseta     = 0x5406
	tcsetaw    = 0x5407
	tcsetaf    = 0x5408
	tcsbrk     = 0x5409
	tiocgpgrp  = 0x540F
	tiocspgrp  = 0x5410
	tiocgwinsz = 0x5413
	tiocswinsz = 0x5414
)

// winSize mirrors struct winsize.
type winSize struct {
	row, col, xpixel, ypixel uint16
}

func defaultWinSize() winSize { return winSize{row: 67, col: 120} }

// termios mirrors struct termios's fields original_source sets: the
// cc array is fixed at 19 bytes per that layout.
type termios struct {
	iflag, oflag, cflag, lflag uint32
	line                       uint8
	cc                         [19]byte
}

// defaultTermios reproduces original_source's Termios::new() flag values
// (BRKINT|ICRNL|IXON|IUTF8|IMAXBEL|IXANY, OPOST|ONLCR, CS8|CREAD|HUPCL,
// ISIG|ICANON|ECHO|ECHOE|ECHOK|ECHOCTL|ECHOKE|IEXTEN) and control-character
// defaults (Ctrl-C/\/U/D/Q/S/Z etc.).
func defaultTermios() termios {
	return termios{
		iflag: 0o000002 | 0o000400 | 0o002000 | 0o040000 | 0o020000 | 0o004000,
		oflag: 0o000001 | 0o000004,
		cflag: 0o000060 | 0o000200 | 0o002000,
		lflag: 0o000001 | 0o000002 | 0o000010 | 0o000020 | 0o000040 | 0o001000 | 0o004000 | 0o100000,
		cc: [19]byte{
			3, 28, 127, 21, 4, 0, 1, 0, 17, 19, 26, 255, 18, 15, 23, 22, 255, 0, 0,
		},
	}
}

// ttyOps backs /dev/tty: reads report 0 bytes and writes report the full
// length without storing anything (original_source's TtyFile::read/write are themselves marked
// unimplemented); the interesting behavior is its ioctl set, which
// manipulates per-file termios/window-size/foreground-pgid state.
type ttyOps struct {
	lock    ksync.Spinlock
	fgPgid  uintptr
	winSize winSize
	termios termios
}

// newTTYOps returns a tty device with the same defaults
// original_source's TtyInner::new uses, including fg_pgid hardcoded to 1 —
// flagged in the original as possibly unintentional, carried forward
// unchanged here.
func newTTYOps() *ttyOps {
	return &ttyOps{fgPgid: 1, winSize: defaultWinSize(), termios: defaultTermios()}
}

func (*ttyOps) ReadAt([]byte, int64) (int, error)        { return 0, nil }
func (*ttyOps) WriteAt(buf []byte, _ int64) (int, error) { return len(buf), nil }
func (*ttyOps) Truncate(int64) error                     { return nil }
func (*ttyOps) ReadAll() ([]byte, error)                 { return nil, nil }
func (*ttyOps) DeleteData() error                        { return nil }

// Ioctl implements inode.Ioctler over the command set original_source's
// TtyFile::ioctl switches on.
func (o *ttyOps) Ioctl(cmd, arg uintptr) (uintptr, error) {
	o.lock.Acquire()
	defer o.lock.Release()

	switch cmd {
	case tcgets, tcgeta:
		*(*termios)(unsafe.Pointer(arg)) = o.termios
	case tcsets, tcsetsw, tcsetsf, tcseta, tcsetaw, tcsetaf:
		o.termios = *(*termios)(unsafe.Pointer(arg))
	case tiocgpgrp:
		*(*uintptr)(unsafe.Pointer(arg)) = o.fgPgid
	case tiocspgrp:
		o.fgPgid = *(*uintptr)(unsafe.Pointer(arg))
	case tiocgwinsz:
		*(*winSize)(unsafe.Pointer(arg)) = o.winSize
	case tiocswinsz:
		o.winSize = *(*winSize)(unsafe.Pointer(arg))
	case tcsbrk:
		// no-op: nothing behind this tty actually sends a break.
	default:
		return 0, errNoIoctl
	}
	return 0, nil
}
