package inmemory

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestAcquireLockExcludesSecondHolder(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	lock, err := s.AcquireLock(ctx, "nightly-report", time.Minute)
	if err != nil || lock == nil {
		t.Fatalf("expected lock to be acquired, got %+v err %v", lock, err)
	}

	second, err := s.AcquireLock(ctx, "nightly-report", time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if second != nil {
		t.Fatalf("expected second acquire to fail while held, got %+v", second)
	}
}

func TestReleaseLockRequiresMatchingFencingValue(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	lock, _ := s.AcquireLock(ctx, "reindex", time.Minute)
	forged := *lock
	forged.Value = "not-the-real-value"

	released, err := s.ReleaseLock(ctx, &forged)
	if err != nil {
		t.Fatalf("ReleaseLock: %v", err)
	}
	if released {
		t.Fatal("expected release with wrong fencing value to fail")
	}

	released, err = s.ReleaseLock(ctx, lock)
	if err != nil {
		t.Fatalf("ReleaseLock: %v", err)
	}
	if !released {
		t.Fatal("expected release with correct fencing value to succeed")
	}
}

func TestAcquireLockExpiresAfterTTL(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	if _, err := s.AcquireLock(ctx, "etl", 10*time.Millisecond); err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}

	time.Sleep(30 * time.Millisecond)

	lock, err := s.AcquireLock(ctx, "etl", time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock after expiry: %v", err)
	}
	if lock == nil {
		t.Fatal("expected expired lock to be reacquirable")
	}
}

func TestJobContextRoundTripIsDefensiveCopy(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	in := map[string]any{"attempt": 1}
	if err := s.SetJobContext(ctx, "job-1", in, time.Minute); err != nil {
		t.Fatalf("SetJobContext: %v", err)
	}
	in["attempt"] = 99

	got, err := s.GetJobContext(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJobContext: %v", err)
	}
	if got["attempt"] != 1 {
		t.Fatalf("expected stored context to be insulated from caller mutation, got %+v", got)
	}

	got["attempt"] = 42
	got2, _ := s.GetJobContext(ctx, "job-1")
	if got2["attempt"] != 1 {
		t.Fatalf("expected returned context to be a defensive copy, got %+v", got2)
	}
}

func TestIncrementBatchIsSerializedAcrossGoroutines(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.IncrementBatch(ctx, "runs")
		}()
	}
	wg.Wait()

	got, err := s.GetBatch(ctx, "runs")
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if got != 100 {
		t.Fatalf("expected 100 serialized increments, got %d", got)
	}
}

func TestReplicaLiveness(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	if alive, _ := s.IsReplicaAlive(ctx, "replica-a"); alive {
		t.Fatal("expected unknown replica to be reported dead")
	}

	if err := s.MarkReplicaAlive(ctx, "replica-a", 30*time.Second); err != nil {
		t.Fatalf("MarkReplicaAlive: %v", err)
	}
	if alive, _ := s.IsReplicaAlive(ctx, "replica-a"); !alive {
		t.Fatal("expected replica with ample remaining TTL to be reported alive")
	}
}

// TestReplicaLivenessRequiresMoreThanFiveSecondsMargin exercises the cache
// contract's pingReplica rule: a presence marker with low remaining TTL does
// not count as healthy even though it has not yet expired.
func TestReplicaLivenessRequiresMoreThanFiveSecondsMargin(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	if err := s.MarkReplicaAlive(ctx, "replica-b", 2*time.Second); err != nil {
		t.Fatalf("MarkReplicaAlive: %v", err)
	}
	if alive, _ := s.IsReplicaAlive(ctx, "replica-b"); alive {
		t.Fatal("expected replica with under-five-second remaining TTL to be reported dead")
	}
}

// TestCloseStopsWorkerGoroutine confirms Close actually terminates the
// worker goroutine New starts, rather than leaving it running forever.
func TestCloseStopsWorkerGoroutine(t *testing.T) {
	s := New()
	s.Close()

	select {
	case <-s.done:
	case <-time.After(time.Second):
		t.Fatal("expected the worker goroutine's done channel to be closed")
	}
}
