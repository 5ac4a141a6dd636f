package download

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	k := newKeyedMutex()
	var active, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := k.lock("https://library.example/ebooks/1")
			n := atomic.AddInt32(&active, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
			release()
		}()
	}
	wg.Wait()
	if peak != 1 {
		t.Fatalf("expected at most one holder, saw %d", peak)
	}
	if len(k.locks) != 0 {
		t.Fatalf("expected released keys to be dropped, %d left", len(k.locks))
	}
}

func TestWorkerPoolRejectsSubmitAfterClose(t *testing.T) {
	p := newWorkerPool(2, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.start(ctx)

	var ran int32
	for i := 0; i < 4; i++ {
		if err := p.submit(func(context.Context) { atomic.AddInt32(&ran, 1) }); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	p.close()
	if ran != 4 {
		t.Fatalf("expected 4 jobs run, got %d", ran)
	}
	if err := p.submit(func(context.Context) {}); !errors.Is(err, errPoolClosed) {
		t.Fatalf("expected errPoolClosed, got %v", err)
	}
}

func TestWorkerPoolStopsOnCancel(t *testing.T) {
	p := newWorkerPool(2, 16)
	ctx, cancel := context.WithCancel(context.Background())
	p.start(ctx)

	cancel()
	done := make(chan struct{}, 1)
	go func() {
		p.close()
		done <- struct{}{}
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("close blocked after context cancellation")
	}
}
