package repo

import "sync"

// ActiveSet tracks working-copy directories currently in use by running
// jobs. The sweeper consults it so live copies are never removed.
type ActiveSet struct {
	mu   sync.RWMutex
	dirs map[string]int
}

// NewActiveSet returns an empty set.
func NewActiveSet() *ActiveSet {
	return &ActiveSet{dirs: make(map[string]int)}
}

// Add marks a directory as in use. Calls nest: a directory stays active
// until every Add is balanced by a Remove.
func (s *ActiveSet) Add(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirs[dir]++
}

// Remove releases one use of a directory.
func (s *ActiveSet) Remove(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirs[dir] <= 1 {
		delete(s.dirs, dir)
		return
	}
	s.dirs[dir]--
}

// Contains reports whether any job is using the directory.
func (s *ActiveSet) Contains(dir string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.dirs[dir]
	return ok
}

// Len returns the number of active directories.
func (s *ActiveSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dirs)
}
