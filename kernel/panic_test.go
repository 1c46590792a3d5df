package kernel

import (
	"os"
	"testing"
)

func TestPanic(t *testing.T) {
	defer func() { haltFn = func() { os.Exit(1) } }()

	t.Run("with error", func(t *testing.T) {
		var haltCalled bool
		haltFn = func() { haltCalled = true }

		err := &Error{Module: "test", Kind: KindFAULT, Message: "panic test"}
		Panic(err)

		if !haltCalled {
			t.Fatal("expected haltFn to be called by Panic")
		}
	})

	t.Run("without error", func(t *testing.T) {
		var haltCalled bool
		haltFn = func() { haltCalled = true }

		Panic(nil)

		if !haltCalled {
			t.Fatal("expected haltFn to be called by Panic")
		}
	})

	t.Run("with plain error value", func(t *testing.T) {
		var haltCalled bool
		haltFn = func() { haltCalled = true }

		Panic(errPlain("boom"))

		if !haltCalled {
			t.Fatal("expected haltFn to be called by Panic")
		}
	})
}
