package devfs

import "unsafe"

// rtcTime mirrors struct rtc_time's fields used by RTC_RD_TIME, matching
// original_source's RtcTime (tm_sec..tm_year, all i32).
type rtcTime struct {
	sec, min, hour, mday, mon, year int32
}

const rtcRdTime = 0x80247009

// rtcOps backs /dev/rtc: reads report an all-zero buffer and the one
// ioctl command original_source implements (RTC_RD_TIME) writes a
// zeroed rtcTime, since this core tracks no real-time clock state.
type rtcOps struct{}

func newRTCOps() *rtcOps { return &rtcOps{} }

func (*rtcOps) ReadAt(buf []byte, _ int64) (int, error) {
	for i := range buf {
		buf[i] = 0
	}
	return len(buf), nil
}
func (*rtcOps) WriteAt(buf []byte, _ int64) (int, error) { return len(buf), nil }
func (*rtcOps) Truncate(int64) error                     { return nil }
func (*rtcOps) ReadAll() ([]byte, error)                 { return nil, nil }
func (*rtcOps) DeleteData() error                        { return nil }

// Ioctl implements inode.Ioctler. arg is the address of an rtcTime the
// caller owns; every command this core recognizes writes a zeroed value
// into it, matching original_source's RtcFile::ioctl, which never reads
// any actual clock hardware.
func (*rtcOps) Ioctl(cmd, arg uintptr) (uintptr, error) {
	if cmd != rtcRdTime {
		return 0, errNoIoctl
	}
	dst := (*rtcTime)(unsafe.Pointer(arg))
	*dst = rtcTime{}
	return 0, nil
}
