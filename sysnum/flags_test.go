package sysnum

import (
	"testing"

	"github.com/LittleLucifer1/duck-os/kernel"
)

func TestOpenFlagsReadableWritable(t *testing.T) {
	cases := []struct {
		flags    OpenFlags
		readable bool
		writable bool
	}{
		{ORdonly, true, false},
		{OWronly, false, true},
		{ORdwr, true, true},
		{ORdwr | OAppend, true, true},
	}
	for _, c := range cases {
		if got := c.flags.Readable(); got != c.readable {
			t.Errorf("flags=%d: Readable() = %v, want %v", c.flags, got, c.readable)
		}
		if got := c.flags.Writable(); got != c.writable {
			t.Errorf("flags=%d: Writable() = %v, want %v", c.flags, got, c.writable)
		}
	}
}

func TestOpenFlagsHas(t *testing.T) {
	flags := OCreat | OExcl | OCloexec
	if !flags.Has(OCreat) || !flags.Has(OExcl) {
		t.Fatal("expected Has to report set bits")
	}
	if flags.Has(OTrunc) {
		t.Fatal("expected Has to report unset bits as false")
	}
}

func TestNegatedErrno(t *testing.T) {
	if got := NegatedErrno(nil); got != 0 {
		t.Fatalf("expected 0 for nil error; got %d", got)
	}
	err := kernel.New("test", kernel.KindNOENT, "missing")
	if got := NegatedErrno(err); got >= 0 {
		t.Fatalf("expected a negative errno; got %d", got)
	}
}
