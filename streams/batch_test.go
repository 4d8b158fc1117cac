package streams

import "testing"

func TestBatchOf(t *testing.T) {
	b := BatchOf(1, 2, 3)
	var got []int
	for {
		v, ok := b.Next()
		if !ok {
			break
		}
		got = append(got, v)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("got %v, want [1 2 3]", got)
	}
	if _, ok := b.Next(); ok {
		t.Error("exhausted batch still yields values")
	}
}

func TestBatchOf_Empty(t *testing.T) {
	b := BatchOf[string]()
	if _, ok := b.Next(); ok {
		t.Error("empty batch yielded a value")
	}
}

func TestReleasableBatchOf(t *testing.T) {
	released := 0
	b := ReleasableBatchOf(func() { released++ }, "a", "b")
	if v, ok := b.Next(); !ok || v != "a" {
		t.Fatalf("got (%q, %v), want (a, true)", v, ok)
	}
	b.Release()
	if released != 1 {
		t.Errorf("releases = %d, want 1", released)
	}
}

func TestBatchFromSeq(t *testing.T) {
	seq := func(yield func(int) bool) {
		for v := 10; v <= 30; v += 10 {
			if !yield(v) {
				return
			}
		}
	}
	b := BatchFromSeq(seq)
	var got []int
	for {
		v, ok := b.Next()
		if !ok {
			break
		}
		got = append(got, v)
	}
	if len(got) != 3 || got[0] != 10 || got[2] != 30 {
		t.Errorf("got %v, want [10 20 30]", got)
	}
}

func TestBatchFromSeq_ReleaseStopsSequence(t *testing.T) {
	cleaned := false
	seq := func(yield func(int) bool) {
		defer func() { cleaned = true }()
		for v := 0; ; v++ {
			if !yield(v) {
				return
			}
		}
	}
	b := BatchFromSeq(seq)
	if v, ok := b.Next(); !ok || v != 0 {
		t.Fatalf("got (%d, %v), want (0, true)", v, ok)
	}
	b.Release()
	if !cleaned {
		t.Error("sequence cleanup did not run on release")
	}
	if _, ok := b.Next(); ok {
		t.Error("released batch still yields values")
	}
}
