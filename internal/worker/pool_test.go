package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewPool(t *testing.T) {
	ctx := context.Background()

	if p := NewPool[int](ctx, 5); p.workers != 5 {
		t.Errorf("expected 5 workers, got %d", p.workers)
	}
	if p := NewPool[int](ctx, 0); p.workers != 1 {
		t.Errorf("expected default 1 worker for 0 input, got %d", p.workers)
	}
	if p := NewPool[int](ctx, -1); p.workers != 1 {
		t.Errorf("expected default 1 worker for negative input, got %d", p.workers)
	}
}

func TestPool_ResultsInSubmissionOrder(t *testing.T) {
	pool := NewPool[int](context.Background(), 4)
	pool.Start()

	for i := 0; i < 20; i++ {
		n := i
		pool.Submit(func(ctx context.Context) int {
			// Later jobs finish first
			time.Sleep(time.Duration(20-n) * time.Millisecond)
			return n * n
		})
	}

	results := pool.Wait()
	if len(results) != 20 {
		t.Fatalf("expected 20 results, got %d", len(results))
	}
	for i, r := range results {
		if r != i*i {
			t.Errorf("result %d = %d, want %d", i, r, i*i)
		}
	}
}

func TestPool_ManyJobsDoNotDeadlock(t *testing.T) {
	pool := NewPool[int](context.Background(), 2)
	pool.Start()

	done := make(chan []int)
	go func() {
		for i := 0; i < 500; i++ {
			pool.Submit(func(ctx context.Context) int { return 1 })
		}
		done <- pool.Wait()
	}()

	select {
	case results := <-done:
		if len(results) != 500 {
			t.Errorf("expected 500 results, got %d", len(results))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pool deadlocked")
	}
}

func TestPool_Concurrency(t *testing.T) {
	var running, peak int32
	results := Map(context.Background(), 3, make([]int, 12), func(ctx context.Context, _ int) bool {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return true
	})

	if len(results) != 12 {
		t.Fatalf("expected 12 results, got %d", len(results))
	}
	if peak > 3 {
		t.Errorf("expected at most 3 concurrent jobs, saw %d", peak)
	}
}

func TestPool_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := Map(ctx, 2, []int{1, 2, 3}, func(ctx context.Context, n int) *int { return &n })
	if len(results) != 3 {
		t.Fatalf("expected a slot per item, got %d", len(results))
	}
	for i, r := range results {
		if r != nil {
			t.Errorf("expected zero result for cancelled job %d", i)
		}
	}
}

func TestMap_Empty(t *testing.T) {
	results := Map(context.Background(), 4, []string{}, func(ctx context.Context, s string) string { return s })
	if results == nil || len(results) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", results)
	}
}

func TestPool_Shutdown(t *testing.T) {
	pool := NewPool[error](context.Background(), 1)
	pool.Start()

	pool.Submit(func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	})

	start := time.Now()
	pool.Shutdown()
	if time.Since(start) > time.Second {
		t.Error("expected Shutdown to cancel the running job")
	}
}
