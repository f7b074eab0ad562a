package catalog

import (
	"slices"
	"sync"
)

// sessionLocks serializes mutations per session id within this process.
type sessionLocks struct {
	mu      sync.Mutex
	entries map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{entries: make(map[int64]*lockEntry)}
}

// lock acquires every id in ascending order and returns the release func.
func (l *sessionLocks) lock(ids ...int64) func() {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	held := make([]*lockEntry, 0, len(sorted))
	for _, id := range sorted {
		l.mu.Lock()
		entry, ok := l.entries[id]
		if !ok {
			entry = &lockEntry{}
			l.entries[id] = entry
		}
		entry.refs++
		l.mu.Unlock()

		entry.mu.Lock()
		held = append(held, entry)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			entry := held[i]
			entry.mu.Unlock()
			l.mu.Lock()
			entry.refs--
			if entry.refs == 0 {
				delete(l.entries, sorted[i])
			}
			l.mu.Unlock()
		}
	}
}
