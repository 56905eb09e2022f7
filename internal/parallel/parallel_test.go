package parallel

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestSubmit_NilPoolRunsInline(t *testing.T) {
	ran := false
	f := Submit[int](nil, func() (int, error) {
		ran = true
		return 7, nil
	})
	if !ran {
		t.Fatal("task did not run at submission time")
	}
	v, err := f.Result()
	if err != nil {
		t.Fatal(err)
	}
	if v != 7 {
		t.Fatalf("got %d, want 7", v)
	}
}

func TestSubmit_PropagatesErrors(t *testing.T) {
	p := New(2)
	want := errors.New("boom")
	f := Submit(p, func() (string, error) {
		return "", want
	})
	if _, err := f.Result(); !errors.Is(err, want) {
		t.Fatalf("got %v, want %v", err, want)
	}
	p.Wait()
}

func TestPool_BoundsConcurrency(t *testing.T) {
	p := New(3)
	var active, peak atomic.Int64

	futures := make([]*Future[int], 20)
	gate := make(chan struct{})
	for i := range futures {
		futures[i] = Submit(p, func() (int, error) {
			n := active.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			<-gate
			active.Add(-1)
			return 1, nil
		})
	}
	close(gate)

	var total int
	for _, f := range futures {
		v, err := f.Result()
		if err != nil {
			t.Fatal(err)
		}
		total += v
	}
	p.Wait()

	if total != 20 {
		t.Fatalf("expected 20 completed tasks, got %d", total)
	}
	if got := peak.Load(); got > 3 {
		t.Fatalf("pool of 3 ran %d tasks at once", got)
	}
}

func TestNew_ClampsSize(t *testing.T) {
	p := New(0)
	f := Submit(p, func() (bool, error) { return true, nil })
	if v, err := f.Result(); err != nil || !v {
		t.Fatalf("got %v, %v", v, err)
	}
	p.Wait()
}
