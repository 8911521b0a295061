package repo

import (
	"sync"
	"testing"
)

func TestActiveSetAddRemove(t *testing.T) {
	s := NewActiveSet()

	if s.Contains("/repos/a") {
		t.Error("empty set should not contain anything")
	}

	s.Add("/repos/a")
	if !s.Contains("/repos/a") {
		t.Error("dir missing after Add")
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}

	s.Remove("/repos/a")
	if s.Contains("/repos/a") {
		t.Error("dir still present after Remove")
	}
}

func TestActiveSetNestedUse(t *testing.T) {
	s := NewActiveSet()

	s.Add("/repos/a")
	s.Add("/repos/a")
	s.Remove("/repos/a")
	if !s.Contains("/repos/a") {
		t.Error("dir released while a second job still holds it")
	}

	s.Remove("/repos/a")
	if s.Contains("/repos/a") {
		t.Error("dir still present after balanced removes")
	}
}

func TestActiveSetConcurrentAccess(t *testing.T) {
	s := NewActiveSet()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Add("/repos/shared")
			s.Contains("/repos/shared")
			s.Remove("/repos/shared")
		}()
	}
	wg.Wait()

	if s.Len() != 0 {
		t.Errorf("Len = %d after balanced concurrent use, want 0", s.Len())
	}
}
