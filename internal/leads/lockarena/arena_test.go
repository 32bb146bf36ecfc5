package lockarena

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/goleak"
)

func TestTryAcquireRejectsSecondCaller(t *testing.T) {
	arena := New()
	id := uuid.New()

	release, ok := arena.TryAcquire(id)
	if !ok {
		t.Fatalf("expected first acquire to succeed")
	}
	if _, ok := arena.TryAcquire(id); ok {
		t.Fatalf("expected second acquire to be rejected while held")
	}

	release()
	if arena.Held(id) {
		t.Fatalf("expected lead to be free after release")
	}
	if arena.Len() != 0 {
		t.Fatalf("expected arena to drop idle entries, got %d", arena.Len())
	}

	again, ok := arena.TryAcquire(id)
	if !ok {
		t.Fatalf("expected acquire after release to succeed")
	}
	again()
}

func TestReleaseIsIdempotent(t *testing.T) {
	arena := New()
	id := uuid.New()

	release, _ := arena.TryAcquire(id)
	release()

	other, ok := arena.TryAcquire(id)
	if !ok {
		t.Fatalf("expected acquire to succeed")
	}
	// A stale release must not free the new holder.
	release()
	if !arena.Held(id) {
		t.Fatalf("stale release freed a lead held by another operation")
	}
	other()
}

func TestDistinctLeadsDoNotContend(t *testing.T) {
	arena := New()
	a, okA := arena.TryAcquire(uuid.New())
	b, okB := arena.TryAcquire(uuid.New())
	if !okA || !okB {
		t.Fatalf("expected independent leads to be acquired together")
	}
	a()
	b()
}

func TestConcurrentAcquireHasSingleWinner(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	arena := New()
	id := uuid.New()

	const callers = 64
	var (
		winners  atomic.Int32
		wg       sync.WaitGroup
		start    = make(chan struct{})
		releases = make(chan func(), callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if release, ok := arena.TryAcquire(id); ok {
				winners.Add(1)
				releases <- release
			}
		}()
	}
	close(start)
	wg.Wait()
	close(releases)

	if got := winners.Load(); got != 1 {
		t.Fatalf("expected exactly one winner, got %d", got)
	}
	for release := range releases {
		release()
	}
	if arena.Len() != 0 {
		t.Fatalf("expected empty arena, got %d", arena.Len())
	}
}
