//nolint:testpackage // Testing internal job state requires same package access
package jobs

import (
	"errors"
	"sync"
	"testing"

	"github.com/cybermed/agent/internal/logging"
)

func TestStore_TryStart_FromIdle(t *testing.T) {
	store := NewStore(logging.NewNop())

	if err := store.TryStart(3); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}

	snap := store.Snapshot()
	if snap.Status != StatusInitializing {
		t.Errorf("expected status initializing, got %s", snap.Status)
	}
	if snap.TargetCount != 3 || snap.CompletedCount != 0 {
		t.Errorf("expected counts 0/3, got %d/%d", snap.CompletedCount, snap.TargetCount)
	}
	if snap.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestStore_TryStart_RejectsWhileRunning(t *testing.T) {
	store := NewStore(logging.NewNop())

	if err := store.TryStart(2); err != nil {
		t.Fatalf("first start failed: %v", err)
	}

	before := store.Snapshot()
	if err := store.TryStart(5); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	// A rejected start must not mutate anything.
	after := store.Snapshot()
	if after != before {
		t.Errorf("rejected start mutated state: %+v -> %+v", before, after)
	}
}

func TestStore_TryStart_ConcurrentExactlyOneWinner(t *testing.T) {
	store := NewStore(logging.NewNop())

	const goroutines = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.TryStart(1); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("expected exactly one winning TryStart, got %d", winners)
	}
}

func TestStore_TryStart_AllowedAfterTerminal(t *testing.T) {
	store := NewStore(logging.NewNop())

	if err := store.TryStart(1); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	store.MarkRunning()
	store.Advance(0, errors.New("boom"))

	if err := store.TryStart(4); err != nil {
		t.Fatalf("expected start after terminal job to succeed, got %v", err)
	}

	snap := store.Snapshot()
	if snap.Status != StatusInitializing {
		t.Errorf("expected status initializing, got %s", snap.Status)
	}
	if snap.CompletedCount != 0 {
		t.Errorf("expected completed_count reset to 0, got %d", snap.CompletedCount)
	}
	if snap.LastError != "" {
		t.Errorf("expected last_error cleared, got %q", snap.LastError)
	}
}

func TestStore_Advance_Monotonic(t *testing.T) {
	store := NewStore(logging.NewNop())

	if err := store.TryStart(3); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	store.MarkRunning()

	prev := 0
	for range 3 {
		store.Advance(1, nil)
		snap := store.Snapshot()
		if snap.CompletedCount < prev {
			t.Fatalf("completed_count decreased: %d -> %d", prev, snap.CompletedCount)
		}
		if snap.CompletedCount > snap.TargetCount {
			t.Fatalf("completed_count %d exceeds target %d", snap.CompletedCount, snap.TargetCount)
		}
		prev = snap.CompletedCount
	}

	if prev != 3 {
		t.Errorf("expected final count 3, got %d", prev)
	}
}

func TestStore_Advance_SerializedUnderConcurrency(t *testing.T) {
	store := NewStore(logging.NewNop())

	const target = 100
	if err := store.TryStart(target); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	store.MarkRunning()

	var wg sync.WaitGroup
	for range target {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Advance(1, nil)
		}()
	}
	wg.Wait()

	if snap := store.Snapshot(); snap.CompletedCount != target {
		t.Errorf("lost increments: expected %d, got %d", target, snap.CompletedCount)
	}
}

func TestStore_Advance_ErrorFreezesJob(t *testing.T) {
	store := NewStore(logging.NewNop())

	if err := store.TryStart(2); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	store.MarkRunning()
	store.Advance(0, errors.New("classifier unavailable"))

	snap := store.Snapshot()
	if snap.Status != StatusError {
		t.Fatalf("expected status error, got %s", snap.Status)
	}
	if snap.LastError != "classifier unavailable" {
		t.Errorf("unexpected last_error %q", snap.LastError)
	}
	if snap.CompletedCount != 0 {
		t.Errorf("failed unit must not count as completed, got %d", snap.CompletedCount)
	}

	// Late advances are no-ops on a terminal job.
	store.Advance(1, nil)
	store.Advance(0, errors.New("later failure"))
	store.MarkCompleted()

	after := store.Snapshot()
	if after.Status != StatusError || after.CompletedCount != 0 || after.LastError != "classifier unavailable" {
		t.Errorf("terminal job mutated: %+v", after)
	}
}

func TestStore_MarkCompleted_Terminality(t *testing.T) {
	store := NewStore(logging.NewNop())

	if err := store.TryStart(1); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	store.MarkRunning()
	store.Advance(1, nil)
	store.MarkCompleted()

	snap := store.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected status completed, got %s", snap.Status)
	}

	store.Advance(1, nil)
	if after := store.Snapshot(); after.CompletedCount != 1 {
		t.Errorf("completed job mutated by late advance: %d", after.CompletedCount)
	}
}

func TestStore_Snapshot_IdleByDefault(t *testing.T) {
	store := NewStore(logging.NewNop())

	snap := store.Snapshot()
	if snap.Status != StatusIdle {
		t.Errorf("expected idle status, got %s", snap.Status)
	}
	if snap.TargetCount != 0 || snap.CompletedCount != 0 {
		t.Errorf("expected zero counts, got %d/%d", snap.CompletedCount, snap.TargetCount)
	}
}
