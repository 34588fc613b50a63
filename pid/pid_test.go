package pid

import "testing"

func TestAllocAdvancesMonotonically(t *testing.T) {
	a := &Allocator{}
	if got := a.Alloc(); got != 0 {
		t.Fatalf("first Alloc = %d, want 0", got)
	}
	if got := a.Alloc(); got != 1 {
		t.Fatalf("second Alloc = %d, want 1", got)
	}
}

func TestDeallocIsReusedBeforeAdvancing(t *testing.T) {
	a := &Allocator{}
	first := a.Alloc()
	_ = a.Alloc()
	a.Dealloc(first)

	if got := a.Alloc(); got != first {
		t.Fatalf("Alloc after Dealloc = %d, want recycled %d", got, first)
	}
	if got := a.Alloc(); got != 2 {
		t.Fatalf("Alloc after recycle list drained = %d, want 2", got)
	}
}

func TestDoubleDeallocPanics(t *testing.T) {
	a := &Allocator{}
	p := a.Alloc()
	a.Dealloc(p)
	defer func() {
		if recover() == nil {
			t.Fatal("expected double Dealloc to panic")
		}
	}()
	a.Dealloc(p)
}

func TestHandleReleaseReturnsPIDAndDoubleReleasePanics(t *testing.T) {
	a := &Allocator{}
	h := Alloc(a)
	pid := h.PID()
	h.Release()

	if got := a.Alloc(); got != pid {
		t.Fatalf("Alloc after Release = %d, want recycled %d", got, pid)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected double Release to panic")
		}
	}()
	h.Release()
}
