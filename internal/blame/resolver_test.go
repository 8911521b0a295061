package blame

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"relic/internal/relicerr"
	"relic/internal/scan"
	"relic/internal/slogutil"
)

func fakeResolver(workers int, lookup lookupFunc) *Resolver {
	return &Resolver{
		timeout: time.Minute,
		workers: workers,
		logger:  slogutil.NewDiscardLogger(),
		lookup:  lookup,
	}
}

func candidate(file string, line int) scan.Candidate {
	return scan.Candidate{FilePath: file, LineNumber: line, SourceURL: "https://github.com/a/b.git"}
}

func fixedLookup(times map[string]time.Time) lookupFunc {
	return func(_ context.Context, _ string, c scan.Candidate) (Attribution, error) {
		ts, ok := times[c.FilePath]
		if !ok {
			return Attribution{}, errors.New("no history")
		}
		return Attribution{RevisionID: "rev-" + c.FilePath, Timestamp: ts}, nil
	}
}

func TestResolvePicksOldestTimestamp(t *testing.T) {
	r := fakeResolver(4, fixedLookup(map[string]time.Time{
		"old.go": time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC),
		"new.go": time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC),
	}))

	w, err := r.Resolve(context.Background(), "", []scan.Candidate{
		candidate("new.go", 10),
		candidate("old.go", 42),
	})
	if err != nil {
		t.Fatal(err)
	}
	if w.Candidate.FilePath != "old.go" || w.Candidate.LineNumber != 42 {
		t.Errorf("winner = %s:%d, want old.go:42", w.Candidate.FilePath, w.Candidate.LineNumber)
	}
}

func TestResolveTieBreaks(t *testing.T) {
	ts := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	lookup := func(_ context.Context, _ string, c scan.Candidate) (Attribution, error) {
		return Attribution{Timestamp: ts}, nil
	}

	t.Run("same timestamp prefers lower file path", func(t *testing.T) {
		r := fakeResolver(0, lookup)
		w, err := r.Resolve(context.Background(), "", []scan.Candidate{
			candidate("zeta.go", 1),
			candidate("alpha.go", 1),
		})
		if err != nil {
			t.Fatal(err)
		}
		if w.Candidate.FilePath != "alpha.go" {
			t.Errorf("winner file = %q, want alpha.go", w.Candidate.FilePath)
		}
	})

	t.Run("same file prefers lower line", func(t *testing.T) {
		r := fakeResolver(0, lookup)
		w, err := r.Resolve(context.Background(), "", []scan.Candidate{
			candidate("main.go", 90),
			candidate("main.go", 7),
		})
		if err != nil {
			t.Fatal(err)
		}
		if w.Candidate.LineNumber != 7 {
			t.Errorf("winner line = %d, want 7", w.Candidate.LineNumber)
		}
	})
}

func TestResolveDropsFailedLookups(t *testing.T) {
	r := fakeResolver(2, fixedLookup(map[string]time.Time{
		"ok.go": time.Date(2022, 2, 2, 0, 0, 0, 0, time.UTC),
	}))

	w, err := r.Resolve(context.Background(), "", []scan.Candidate{
		candidate("broken.go", 5),
		candidate("ok.go", 5),
	})
	if err != nil {
		t.Fatal(err)
	}
	if w.Candidate.FilePath != "ok.go" {
		t.Errorf("winner = %q, want ok.go", w.Candidate.FilePath)
	}
}

func TestResolveAllFailed(t *testing.T) {
	r := fakeResolver(2, fixedLookup(nil))

	_, err := r.Resolve(context.Background(), "", []scan.Candidate{
		candidate("a.go", 1),
		candidate("b.go", 2),
	})
	if !relicerr.HasCode(err, relicerr.AllAttributionsFailed) {
		t.Errorf("error = %v, want AllAttributionsFailed", err)
	}
}

func TestResolveEmptyCandidates(t *testing.T) {
	r := fakeResolver(2, fixedLookup(nil))

	_, err := r.Resolve(context.Background(), "", nil)
	if !relicerr.HasCode(err, relicerr.NoCandidates) {
		t.Errorf("error = %v, want NoCandidates", err)
	}
}

func TestResolveBoundsConcurrency(t *testing.T) {
	const workers = 3
	var inFlight, peak atomic.Int32

	lookup := func(_ context.Context, _ string, c scan.Candidate) (Attribution, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return Attribution{Timestamp: time.Unix(int64(c.LineNumber), 0)}, nil
	}

	r := fakeResolver(workers, lookup)
	var candidates []scan.Candidate
	for i := 1; i <= 20; i++ {
		candidates = append(candidates, candidate("f.go", i))
	}

	w, err := r.Resolve(context.Background(), "", candidates)
	if err != nil {
		t.Fatal(err)
	}
	if w.Candidate.LineNumber != 1 {
		t.Errorf("winner line = %d, want 1", w.Candidate.LineNumber)
	}
	if p := peak.Load(); p > workers {
		t.Errorf("peak concurrent lookups = %d, want <= %d", p, workers)
	}
}
