// Package sweeper reclaims working copies that have sat unused past the
// retention window.
package sweeper

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"relic/internal/repo"
)

// Sweeper periodically removes idle working copies, skipping any directory a
// running job currently holds.
type Sweeper struct {
	reposDir string
	maxAge   time.Duration
	interval time.Duration
	active   *repo.ActiveSet
	logger   *slog.Logger
}

// New creates a sweeper over the repos directory.
func New(reposDir string, maxAgeDays, intervalHours int, active *repo.ActiveSet, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		reposDir: reposDir,
		maxAge:   time.Duration(maxAgeDays) * 24 * time.Hour,
		interval: time.Duration(intervalHours) * time.Hour,
		active:   active,
		logger:   logger,
	}
}

// Run sweeps on a fixed interval until the context is cancelled. One sweep
// runs immediately on start.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep removes every working copy whose modification time exceeds the
// retention window and that no job holds active, returning the number
// removed. Removal failures are logged per copy and do not halt the sweep.
func (s *Sweeper) Sweep() int {
	entries, err := os.ReadDir(s.reposDir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error("failed to read repos directory", "dir", s.reposDir, "error", err)
		}
		return 0
	}

	removed := 0
	cutoff := time.Now().Add(-s.maxAge)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(s.reposDir, entry.Name())

		if s.active.Contains(dir) {
			s.logger.Debug("skipping active working copy", "dir", dir)
			continue
		}

		info, err := entry.Info()
		if err != nil {
			s.logger.Warn("failed to stat working copy", "dir", dir, "error", err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn("failed to remove idle working copy", "dir", dir, "error", err)
			continue
		}
		s.logger.Info("removed idle working copy", "dir", dir, "idleSince", info.ModTime())
		removed++
	}

	return removed
}
