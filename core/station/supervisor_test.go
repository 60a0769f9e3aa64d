package station

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunReplacesPredecessor(t *testing.T) {
	s := NewSupervisor()
	ctx := context.Background()

	var live atomic.Int32
	var peak atomic.Int32
	started := make(chan struct{}, 8)
	blocker := func(taskCtx context.Context) {
		n := live.Add(1)
		if n > peak.Load() {
			peak.Store(n)
		}
		started <- struct{}{}
		<-taskCtx.Done()
		live.Add(-1)
	}

	for i := 0; i < 5; i++ {
		s.Run(ctx, "worker", blocker)
	}
	for i := 0; i < 5; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatalf("instance %d never started", i)
		}
	}

	if got := live.Load(); got != 1 {
		t.Fatalf("live instances = %d, want 1", got)
	}
	// Replacement waits for the old instance, so two instances of the
	// same name never overlap.
	if got := peak.Load(); got != 1 {
		t.Fatalf("peak concurrent instances = %d, want 1", got)
	}

	s.Stop("worker")
	if got := live.Load(); got != 0 {
		t.Fatalf("live instances after Stop = %d, want 0", got)
	}
}

func TestStopUnknownName(t *testing.T) {
	s := NewSupervisor()
	s.Stop("never-started")
}

func TestStopAll(t *testing.T) {
	s := NewSupervisor()
	ctx := context.Background()

	var live atomic.Int32
	for _, name := range []string{"a", "b", "c"} {
		s.Run(ctx, name, func(taskCtx context.Context) {
			live.Add(1)
			<-taskCtx.Done()
			live.Add(-1)
		})
	}

	s.StopAll()
	if got := live.Load(); got != 0 {
		t.Fatalf("live instances after StopAll = %d, want 0", got)
	}
	for _, name := range []string{"a", "b", "c"} {
		if s.Running(name) {
			t.Errorf("task %q still registered after StopAll", name)
		}
	}
}

func TestRunningReflectsCompletion(t *testing.T) {
	s := NewSupervisor()
	ctx := context.Background()

	done := make(chan struct{})
	s.Run(ctx, "oneshot", func(context.Context) {
		close(done)
	})
	<-done

	deadline := time.Now().Add(2 * time.Second)
	for s.Running("oneshot") {
		if time.Now().After(deadline) {
			t.Fatal("finished task still reported as running")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestParentContextCancelsTasks(t *testing.T) {
	s := NewSupervisor()
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	s.Run(ctx, "worker", func(taskCtx context.Context) {
		<-taskCtx.Done()
		close(stopped)
	})

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not observe parent context cancellation")
	}
}
