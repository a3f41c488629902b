package workqueue

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/automeet/errors"
)

func newTestQueue[T any](t *testing.T, h Handler[T], opts ...Option) *Queue[T] {
	t.Helper()
	q, err := New(h, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return q
}

func TestNew_Invalid(t *testing.T) {
	if _, err := New[int](nil); !errors.HasCode(err, errors.ErrCodeConfigInvalid) {
		t.Errorf("expected CONFIG_INVALID for nil handler, got %v", err)
	}
	noop := func(context.Context, int) error { return nil }
	if _, err := New(noop, WithBufferSize(-1)); !errors.HasCode(err, errors.ErrCodeConfigInvalid) {
		t.Errorf("expected CONFIG_INVALID for negative buffer, got %v", err)
	}
	if _, err := New(noop, WithOnError(func(string, error) {})); !errors.HasCode(err, errors.ErrCodeConfigInvalid) {
		t.Errorf("expected CONFIG_INVALID for mismatched callback, got %v", err)
	}
}

func TestStart_Invalid(t *testing.T) {
	q := newTestQueue(t, func(context.Context, int) error { return nil })
	if err := q.Start(0); !errors.HasCode(err, errors.ErrCodeConfigInvalid) {
		t.Errorf("expected CONFIG_INVALID for zero workers, got %v", err)
	}
	if err := q.Start(2); err != nil {
		t.Fatal(err)
	}
	defer q.Stop(context.Background())
	if err := q.Start(2); !errors.HasCode(err, errors.ErrCodeUsage) {
		t.Errorf("expected USAGE_ERROR on double start, got %v", err)
	}
}

func TestPublish_NotRunning(t *testing.T) {
	q := newTestQueue(t, func(context.Context, int) error { return nil })
	if err := q.Publish(context.Background(), 1); !errors.HasCode(err, errors.ErrCodeUsage) {
		t.Errorf("expected USAGE_ERROR before start, got %v", err)
	}
}

func TestQueue_EveryItemHandledOnce(t *testing.T) {
	for _, tc := range []struct{ items, workers, buffer int }{
		{0, 2, 4}, {1, 1, 0}, {50, 1, 4}, {200, 4, 8}, {500, 16, 64},
	} {
		var mu sync.Mutex
		seen := make(map[int]int)
		q := newTestQueue(t, func(_ context.Context, n int) error {
			mu.Lock()
			seen[n]++
			mu.Unlock()
			return nil
		}, WithBufferSize(tc.buffer))

		if err := q.Start(tc.workers); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < tc.items; i++ {
			if err := q.Publish(context.Background(), i); err != nil {
				t.Fatal(err)
			}
		}
		if err := q.Stop(context.Background()); err != nil {
			t.Fatal(err)
		}

		if len(seen) != tc.items {
			t.Fatalf("%+v: expected %d distinct items, got %d", tc, tc.items, len(seen))
		}
		for n, c := range seen {
			if c != 1 {
				t.Fatalf("%+v: item %d handled %d times", tc, n, c)
			}
		}
		if s := q.Stats(); s.Processed != int64(tc.items) || s.Published != int64(tc.items) || s.Running {
			t.Errorf("%+v: unexpected stats %+v", tc, s)
		}
	}
}

func TestQueue_FaultIsolation(t *testing.T) {
	var (
		mu      sync.Mutex
		handled []int
		failed  []int
	)
	boom := stderrors.New("boom")
	q := newTestQueue(t, func(_ context.Context, n int) error {
		switch {
		case n%5 == 0:
			panic("handler exploded")
		case n%3 == 0:
			return boom
		}
		mu.Lock()
		handled = append(handled, n)
		mu.Unlock()
		return nil
	}, WithOnError(func(n int, err error) {
		mu.Lock()
		failed = append(failed, n)
		mu.Unlock()
	}))

	if err := q.Start(3); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 30; i++ {
		if err := q.Publish(context.Background(), i); err != nil {
			t.Fatal(err)
		}
	}
	if err := q.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}

	// 1..30: multiples of 5 (6) panic, other multiples of 3 (8) fail.
	if len(failed) != 14 || len(handled) != 16 {
		t.Errorf("expected 14 failed and 16 handled, got %d and %d", len(failed), len(handled))
	}
	sort.Ints(failed)
	if failed[0] != 3 || failed[1] != 5 {
		t.Errorf("unexpected failed items %v", failed)
	}
	if s := q.Stats(); s.Failed != 14 || s.Processed != 16 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestQueue_PanicReportedAsInternalError(t *testing.T) {
	errCh := make(chan error, 1)
	q := newTestQueue(t, func(context.Context, string) error { panic("nil map") },
		WithOnError(func(_ string, err error) { errCh <- err }))
	_ = q.Start(1)
	_ = q.Publish(context.Background(), "x")
	_ = q.Stop(context.Background())

	err := <-errCh
	if !errors.HasCode(err, errors.ErrCodeInternal) {
		t.Errorf("expected INTERNAL_ERROR for panic, got %v", err)
	}
}

func TestPublish_BlocksUnderBackpressure(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	q := newTestQueue(t, func(context.Context, int) error {
		started <- struct{}{}
		<-release
		return nil
	}, WithBufferSize(1))
	_ = q.Start(1)

	_ = q.Publish(context.Background(), 1)
	<-started // worker is busy with item 1
	if err := q.Publish(context.Background(), 2); err != nil {
		t.Fatal(err) // fills the buffer
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	begin := time.Now()
	err := q.Publish(ctx, 3)
	if !errors.HasCode(err, errors.ErrCodeCancelled) {
		t.Fatalf("expected CANCELLED while buffer full, got %v", err)
	}
	if time.Since(begin) < 40*time.Millisecond {
		t.Error("expected Publish to block until the deadline")
	}

	close(release)
	go func() {
		for range started {
		}
	}()
	if err := q.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	close(started)
	if s := q.Stats(); s.Processed != 2 || s.Published != 2 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestStop_DrainsPendingItems(t *testing.T) {
	var handled atomic.Int64
	gate := make(chan struct{})
	q := newTestQueue(t, func(context.Context, int) error {
		<-gate
		handled.Add(1)
		return nil
	}, WithBufferSize(20))
	_ = q.Start(2)
	for i := 0; i < 20; i++ {
		_ = q.Publish(context.Background(), i)
	}

	stopped := make(chan error, 1)
	go func() { stopped <- q.Stop(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	if err := q.Publish(context.Background(), 99); !errors.HasCode(err, errors.ErrCodeUsage) {
		t.Errorf("expected USAGE_ERROR after Stop, got %v", err)
	}
	close(gate)

	if err := <-stopped; err != nil {
		t.Fatal(err)
	}
	if handled.Load() != 20 {
		t.Errorf("expected all 20 pending items drained, got %d", handled.Load())
	}
}

func TestStop_TimeoutKeepsDraining(t *testing.T) {
	var handled atomic.Int64
	gate := make(chan struct{})
	q := newTestQueue(t, func(context.Context, int) error {
		<-gate
		handled.Add(1)
		return nil
	})
	_ = q.Start(1)
	for i := 0; i < 3; i++ {
		_ = q.Publish(context.Background(), i)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Stop(ctx); !errors.HasCode(err, errors.ErrCodeCancelled) {
		t.Fatalf("expected CANCELLED on stop timeout, got %v", err)
	}

	close(gate)
	if err := q.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if handled.Load() != 3 {
		t.Errorf("expected background drain of 3 items, got %d", handled.Load())
	}
}

func TestQueue_RestartAfterStop(t *testing.T) {
	var handled atomic.Int64
	q := newTestQueue(t, func(context.Context, int) error {
		handled.Add(1)
		return nil
	})
	for run := 0; run < 3; run++ {
		if err := q.Start(2); err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		_ = q.Publish(context.Background(), run)
		if err := q.Stop(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if handled.Load() != 3 {
		t.Errorf("expected 3 handled across restarts, got %d", handled.Load())
	}
	if err := q.Stop(context.Background()); err != nil {
		t.Errorf("stopping a stopped queue should be a no-op, got %v", err)
	}
}

func TestStop_ReleasesBlockedPublisher(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	q := newTestQueue(t, func(context.Context, int) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	}, WithBufferSize(1))
	_ = q.Start(1)

	_ = q.Publish(context.Background(), 1)
	<-started
	_ = q.Publish(context.Background(), 2) // fills the buffer

	blocked := make(chan error, 1)
	go func() { blocked <- q.Publish(context.Background(), 3) }()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	begin := time.Now()
	if err := q.Stop(ctx); !errors.HasCode(err, errors.ErrCodeCancelled) {
		t.Fatalf("expected CANCELLED while the worker is busy, got %v", err)
	}
	if elapsed := time.Since(begin); elapsed > time.Second {
		t.Errorf("Stop ignored its context for %v", elapsed)
	}

	select {
	case err := <-blocked:
		if !errors.HasCode(err, errors.ErrCodeUsage) {
			t.Errorf("expected USAGE_ERROR for the blocked publish, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked Publish was not released by Stop")
	}

	statsDone := make(chan Stats, 1)
	go func() { statsDone <- q.Stats() }()
	select {
	case s := <-statsDone:
		if s.Running {
			t.Error("expected stopped queue in stats")
		}
	case <-time.After(time.Second):
		t.Fatal("Stats blocked during Stop")
	}

	close(release)
	if err := q.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s := q.Stats(); s.Processed != 2 || s.Published != 2 {
		t.Errorf("unexpected stats %+v", s)
	}
}
