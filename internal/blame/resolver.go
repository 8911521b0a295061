package blame

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"relic/internal/relicerr"
	"relic/internal/scan"
)

// Winner is a candidate combined with its attribution. Permalink is filled
// in by the caller once the winning revision is known.
type Winner struct {
	Candidate   scan.Candidate `json:"candidate"`
	Attribution Attribution    `json:"attribution"`
	Permalink   string         `json:"permalink,omitempty"`
}

// Less defines the total order used for reduction and ranking: oldest
// timestamp first, then filePath, then lineNumber ascending.
func (w Winner) Less(other Winner) bool {
	if !w.Attribution.Timestamp.Equal(other.Attribution.Timestamp) {
		return w.Attribution.Timestamp.Before(other.Attribution.Timestamp)
	}
	if w.Candidate.FilePath != other.Candidate.FilePath {
		return w.Candidate.FilePath < other.Candidate.FilePath
	}
	return w.Candidate.LineNumber < other.Candidate.LineNumber
}

// Key identifies a winner for leaderboard de-duplication.
func (w Winner) Key() string {
	return w.Candidate.Key()
}

// lookupFunc attributes one candidate line. Swappable in tests.
type lookupFunc func(ctx context.Context, dir string, c scan.Candidate) (Attribution, error)

// Resolver fans attribution lookups out across candidates and reduces the
// survivors to a single winner.
type Resolver struct {
	timeout time.Duration
	// workers bounds concurrent lookups; 0 means one goroutine per candidate.
	workers int
	logger  *slog.Logger
	lookup  lookupFunc
}

// NewResolver creates a resolver backed by git blame.
func NewResolver(timeoutSeconds, workers int, logger *slog.Logger) *Resolver {
	timeout := time.Duration(timeoutSeconds) * time.Second
	return &Resolver{
		timeout: timeout,
		workers: workers,
		logger:  logger,
		lookup: func(ctx context.Context, dir string, c scan.Candidate) (Attribution, error) {
			return attributeLine(ctx, dir, c.FilePath, c.LineNumber, timeout)
		},
	}
}

// Resolve attributes every candidate independently and returns the oldest
// survivor. A failed lookup drops its candidate and never aborts siblings.
// All lookups failing is distinct from an empty candidate set.
func (r *Resolver) Resolve(ctx context.Context, dir string, candidates []scan.Candidate) (*Winner, error) {
	if len(candidates) == 0 {
		return nil, relicerr.New(relicerr.NoCandidates, "no candidates to attribute", nil)
	}

	winners := make([]*Winner, len(candidates))

	var sem chan struct{}
	if r.workers > 0 {
		sem = make(chan struct{}, r.workers)
	}

	var wg sync.WaitGroup
	for i, c := range candidates {
		wg.Add(1)
		go func(i int, c scan.Candidate) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}

			attr, err := r.lookup(ctx, dir, c)
			if err != nil {
				r.logger.Warn("attribution failed, dropping candidate",
					"file", c.FilePath, "line", c.LineNumber, "error", err)
				return
			}
			winners[i] = &Winner{Candidate: c, Attribution: attr}
		}(i, c)
	}
	wg.Wait()

	var best *Winner
	for _, w := range winners {
		if w == nil {
			continue
		}
		if best == nil || w.Less(*best) {
			best = w
		}
	}

	if best == nil {
		return nil, relicerr.New(relicerr.AllAttributionsFailed, "every attribution lookup failed", nil)
	}
	return best, nil
}
