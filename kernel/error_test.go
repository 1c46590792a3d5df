package kernel

import (
	"errors"
	"strings"
	"testing"
)

func TestKernelError(t *testing.T) {
	err := &Error{
		Module:  "foo",
		Kind:    KindINVAL,
		Message: "error message",
	}

	if !strings.Contains(err.Error(), err.Message) {
		t.Fatalf("expected err.Error() to contain %q; got %q", err.Message, err.Error())
	}
	if !strings.Contains(err.Error(), "EINVAL") {
		t.Fatalf("expected err.Error() to contain the error kind; got %q", err.Error())
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(nil); got != KindNone {
		t.Fatalf("expected KindNone for nil error; got %s", got)
	}

	err := New("mm", KindNOMEM, "out of frames")
	if got := KindOf(err); got != KindNOMEM {
		t.Fatalf("expected KindNOMEM; got %s", got)
	}

	if got := KindOf(errPlain("boom")); got != KindINVAL {
		t.Fatalf("expected KindINVAL fallback for foreign errors; got %s", got)
	}
}

type errPlain string

func (e errPlain) Error() string { return string(e) }

func TestWrapUnwrapsToCause(t *testing.T) {
	cause := errPlain("disk fault")
	err := Wrap("pagecache", KindFAULT, cause)

	if !strings.Contains(err.Error(), "disk fault") {
		t.Fatalf("expected err.Error() to contain the cause's message; got %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is(err, cause) to hold through Wrap's Unwrap")
	}
	if New("pagecache", KindFAULT, "no cause").Unwrap() != nil {
		t.Fatalf("expected New's Unwrap to be nil: there is no lower-level cause")
	}
}
