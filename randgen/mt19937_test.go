package randgen

import "testing"

// Reference stream for the canonical MT19937 with seed 5489 (the algorithm's
// own published default): positions 0 and 1 are checked against their
// reference values; positions 623 and 624, either side of the first state
// regeneration, are only checked to differ from each other.
func TestDefaultSeedMatchesReferenceStream(t *testing.T) {
	src := New()

	want := map[int]uint32{
		0: 3499211612,
		1: 581869302,
	}
	got := make([]uint32, 625)
	for i := range got {
		got[i] = src.Uint32()
	}
	for pos, w := range want {
		if got[pos] != w {
			t.Errorf("position %d: got %d, want %d", pos, got[pos], w)
		}
	}
	if got[623] == got[624] {
		t.Errorf("expected positions 623 and 624 to differ")
	}
}

func TestReadFillsBufferDeterministically(t *testing.T) {
	a := New()
	b := New()

	bufA := make([]byte, 37)
	bufB := make([]byte, 37)
	if _, err := a.Read(bufA); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if _, err := b.Read(bufB); err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i := range bufA {
		if bufA[i] != bufB[i] {
			t.Fatalf("two generators seeded identically diverged at byte %d", i)
		}
	}
}

func TestSyncSourceConcurrentUse(t *testing.T) {
	s := NewSync()
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				s.Uint32()
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
