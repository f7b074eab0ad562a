package catalog

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestSessionLocksSerializeOverlappingSets(t *testing.T) {
	locks := newSessionLocks()
	var (
		active  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Alternate argument order; acquisition is always ascending.
			ids := []int64{1, 2}
			if i%2 == 1 {
				ids = []int64{2, 1}
			}
			unlock := locks.lock(ids...)
			n := active.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			active.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	if maxSeen.Load() != 1 {
		t.Fatalf("expected exclusive access, saw %d concurrent holders", maxSeen.Load())
	}
	if len(locks.entries) != 0 {
		t.Fatalf("expected lock entries to be released, got %d", len(locks.entries))
	}
}

func TestSessionLocksDeduplicateIDs(t *testing.T) {
	locks := newSessionLocks()
	unlock := locks.lock(5, 5)
	unlock()
	if len(locks.entries) != 0 {
		t.Fatalf("expected no leftover entries, got %d", len(locks.entries))
	}
}
