// Package leaderboard provides a bounded, persistently-backed ranked set
// safe for concurrent use.
package leaderboard

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Item is the constraint for ranked entries: a strict total order and a
// stable de-duplication key.
type Item[T any] interface {
	// Less reports whether the receiver outranks other.
	Less(other T) bool
	// Key identifies an entry; two entries with equal keys are duplicates.
	Key() string
}

// Leaderboard is a fixed-capacity ranked set. Entries are kept best-first;
// at capacity the worst entry is evicted for a strictly better newcomer.
// Every successful mutation is written through to a JSON file; the in-memory
// set stays authoritative when the write fails.
type Leaderboard[T Item[T]] struct {
	mu       sync.RWMutex
	entries  []T
	capacity int
	path     string
	logger   *slog.Logger
}

// Open loads a leaderboard from its backing file. A missing file starts an
// empty board; a corrupt file is an error so data is not silently discarded.
func Open[T Item[T]](path string, capacity int, logger *slog.Logger) (*Leaderboard[T], error) {
	l := &Leaderboard[T]{capacity: capacity, path: path, logger: logger}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, &l.entries); err != nil {
		return nil, err
	}

	sort.Slice(l.entries, func(i, j int) bool { return l.entries[i].Less(l.entries[j]) })
	if len(l.entries) > capacity {
		l.entries = l.entries[:capacity]
	}
	return l, nil
}

// TryAdd offers an entry to the board and reports whether it was admitted.
// Duplicates (by Key) are rejected. At capacity the entry must strictly
// outrank the current worst member.
func (l *Leaderboard[T]) TryAdd(entry T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.entries {
		if e.Key() == entry.Key() {
			return false
		}
	}

	if len(l.entries) >= l.capacity {
		if len(l.entries) == 0 {
			// Zero capacity admits nothing.
			return false
		}
		worst := l.entries[len(l.entries)-1]
		if !entry.Less(worst) {
			return false
		}
		l.entries = l.entries[:len(l.entries)-1]
	}

	idx := sort.Search(len(l.entries), func(i int) bool { return entry.Less(l.entries[i]) })
	l.entries = append(l.entries, entry)
	copy(l.entries[idx+1:], l.entries[idx:])
	l.entries[idx] = entry

	l.persist()
	return true
}

// List returns the entries best-first.
func (l *Leaderboard[T]) List() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]T(nil), l.entries...)
}

// Len returns the number of entries.
func (l *Leaderboard[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// persist rewrites the full entry list. Failures are logged and swallowed:
// durability is best-effort, the in-memory board is the source of truth.
// Callers hold the write lock.
func (l *Leaderboard[T]) persist() {
	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		l.logger.Error("failed to encode leaderboard", "error", err)
		return
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		l.logger.Error("failed to create leaderboard directory", "path", l.path, "error", err)
		return
	}
	if err := os.WriteFile(l.path, data, 0644); err != nil {
		l.logger.Error("failed to write leaderboard", "path", l.path, "error", err)
	}
}
