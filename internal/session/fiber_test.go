package session

import (
	"bytes"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestFiberRunsInOrder(t *testing.T) {
	t.Parallel()

	pool := NewPool(8)
	f := NewFiber(pool, zap.NewNop())

	var (
		mu      sync.Mutex
		got     []int
		active  atomic.Int32
		overlap atomic.Bool
	)
	for i := 0; i < 200; i++ {
		f.Enqueue(func() {
			if active.Add(1) > 1 {
				overlap.Store(true)
			}
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			active.Add(-1)
		})
	}
	pool.Wait()

	if overlap.Load() {
		t.Error("fiber tasks ran concurrently")
	}
	if len(got) != 200 {
		t.Fatalf("ran %d tasks, want 200", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("task %d ran at position %d", v, i)
		}
	}
}

func TestFibersRunInParallel(t *testing.T) {
	t.Parallel()

	pool := NewPool(2)
	a := NewFiber(pool, zap.NewNop())
	b := NewFiber(pool, zap.NewNop())

	release := make(chan struct{})
	started := make(chan struct{}, 2)
	block := func() {
		started <- struct{}{}
		<-release
	}
	a.Enqueue(block)
	b.Enqueue(block)

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("fibers did not run in parallel")
		}
	}
	close(release)
	pool.Wait()
}

func TestFiberRecoversPanics(t *testing.T) {
	t.Parallel()

	pool := NewPool(1)
	f := NewFiber(pool, zap.NewNop())

	var ran atomic.Bool
	f.Enqueue(func() { panic("boom") })
	f.Enqueue(func() { ran.Store(true) })
	pool.Wait()

	if !ran.Load() {
		t.Error("fiber stopped after a panicking task")
	}
	if f.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", f.Pending())
	}
}

func TestFiberReentrantEnqueue(t *testing.T) {
	t.Parallel()

	pool := NewPool(1)
	f := NewFiber(pool, zap.NewNop())

	var order []string
	f.Enqueue(func() {
		order = append(order, "outer")
		f.Enqueue(func() { order = append(order, "inner") })
	})
	pool.Wait()

	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Errorf("order = %v", order)
	}
}

func TestBufferPool(t *testing.T) {
	t.Parallel()

	p := NewBufferPool(16)
	src := []byte("payload")
	b := p.Rent(src)
	src[0] = 'X'
	if !bytes.Equal(*b, []byte("payload")) {
		t.Errorf("Rent must copy, got %q", *b)
	}
	p.Release(b)
	p.Release(nil)

	big := p.Rent(make([]byte, 128))
	if len(*big) != 128 {
		t.Errorf("len = %d, want 128", len(*big))
	}
	p.Release(big)
}
