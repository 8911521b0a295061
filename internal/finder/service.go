// Package finder orchestrates end-to-end scans: working-copy acquisition,
// marker scanning, attribution, leaderboard ranking, and job status
// broadcast. It owns all shared mutable state; nothing here is reachable
// through package-level variables.
package finder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"relic/internal/blame"
	"relic/internal/config"
	"relic/internal/jobs"
	"relic/internal/leaderboard"
	"relic/internal/relicerr"
	"relic/internal/repo"
	"relic/internal/scan"
	"relic/internal/sweeper"
)

// repoManager, candidateScanner, and winnerResolver are the seams between
// the pipeline and the external tools. Production wiring uses the concrete
// types; tests substitute fakes.
type repoManager interface {
	Acquire(locator string) (*repo.Handle, error)
	Prepare(ctx context.Context, h *repo.Handle) error
	Hosts() *repo.HostTable
	ReposDir() string
}

type candidateScanner interface {
	Scan(ctx context.Context, dir, sourceURL string) ([]scan.Candidate, error)
}

type winnerResolver interface {
	Resolve(ctx context.Context, dir string, candidates []scan.Candidate) (*blame.Winner, error)
}

// Service runs scans and exposes their progress and outcomes.
type Service struct {
	cfg      *config.Config
	logger   *slog.Logger
	manager  repoManager
	scanner  candidateScanner
	resolver winnerResolver
	board    *leaderboard.Leaderboard[blame.Winner]
	tracker  *jobs.Tracker
	store    *jobs.Store
	active   *repo.ActiveSet
	sweeper  *sweeper.Sweeper
}

// New builds a fully wired service from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Service, error) {
	hosts, err := repo.LoadHostTable(filepath.Join(cfg.DataDir, "hosts.yaml"))
	if err != nil {
		return nil, fmt.Errorf("load host table: %w", err)
	}

	board, err := leaderboard.Open[blame.Winner](cfg.LeaderboardPath(), cfg.Leaderboard.Capacity, logger)
	if err != nil {
		return nil, fmt.Errorf("open leaderboard: %w", err)
	}

	store, err := jobs.OpenStore(cfg.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}

	active := repo.NewActiveSet()
	manager := repo.NewManager(cfg.ReposDir(), cfg.Git, hosts, logger)

	return &Service{
		cfg:      cfg,
		logger:   logger,
		manager:  manager,
		scanner:  scan.NewScanner(cfg.Scan.Marker, cfg.Scan.ContextLines, cfg.Scan.TimeoutSeconds, logger),
		resolver: blame.NewResolver(cfg.Git.BlameTimeoutSeconds, cfg.Jobs.AttributionWorkers, logger),
		board:    board,
		tracker:  jobs.NewTracker(logger),
		store:    store,
		active:   active,
		sweeper:  sweeper.New(manager.ReposDir(), cfg.Sweep.MaxRepoAgeDays, cfg.Sweep.IntervalHours, active, logger),
	}, nil
}

// Close releases the job store.
func (s *Service) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// StartBackground launches the idle-copy sweeper and the stale-job cleanup
// loop. Both stop when the context is cancelled.
func (s *Service) StartBackground(ctx context.Context) {
	go s.sweeper.Run(ctx)
	go s.cleanupLoop(ctx)
}

func (s *Service) cleanupLoop(ctx context.Context) {
	interval := time.Duration(s.cfg.Jobs.CleanupIntervalMinutes) * time.Minute
	retention := time.Duration(s.cfg.Jobs.RetentionHours) * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.tracker.CleanupOld(retention); n > 0 {
				s.logger.Debug("swept stale jobs", "count", n)
			}
			if s.store != nil {
				if n, err := s.store.CleanupOld(retention); err != nil {
					s.logger.Warn("job record cleanup failed", "error", err)
				} else if n > 0 {
					s.logger.Debug("swept stale job records", "count", n)
				}
			}
		}
	}
}

// Submit validates the locator, allocates a job, and runs the scan pipeline
// in the background. InvalidLocator surfaces here, before a job exists.
func (s *Service) Submit(locator string) (string, error) {
	handle, err := s.manager.Acquire(locator)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	s.tracker.Register(id)
	if s.store != nil {
		if err := s.store.CreateRecord(id, handle.URL); err != nil {
			s.logger.Warn("failed to record job", "job", id, "error", err)
		}
	}

	go s.run(context.Background(), id, handle)

	s.logger.Info("scan submitted", "job", id, "repo", handle.Name)
	return id, nil
}

// run drives one job through Init -> Clone -> Scan -> {Complete|Error}. A
// pipeline failure becomes the job's terminal result; it never escapes the
// goroutine.
func (s *Service) run(ctx context.Context, id string, handle *repo.Handle) {
	s.publish(id, jobs.StatusEvent{
		Stage: jobs.StageInit, Message: "scan accepted", Percentage: 5,
	})

	s.active.Add(handle.Dir)
	defer s.active.Remove(handle.Dir)

	s.publish(id, jobs.StatusEvent{
		Stage: jobs.StageClone, Message: "preparing working copy of " + repo.DisplayName(handle.URL), Percentage: 15,
	})
	if err := s.manager.Prepare(ctx, handle); err != nil {
		s.fail(id, err)
		return
	}

	s.publish(id, jobs.StatusEvent{
		Stage: jobs.StageScan, Message: "searching for markers", Percentage: 50,
	})
	candidates, err := s.scanner.Scan(ctx, handle.Dir, handle.URL)
	if err != nil {
		s.fail(id, err)
		return
	}

	if len(candidates) == 0 {
		// A clean repository is a success, not an error.
		s.complete(id, nil, "no markers found")
		return
	}

	s.publish(id, jobs.StatusEvent{
		Stage:   jobs.StageScan,
		Message: fmt.Sprintf("attributing %d candidates", len(candidates)), Percentage: 75,
	})
	winner, err := s.resolver.Resolve(ctx, handle.Dir, candidates)
	if err != nil {
		s.fail(id, err)
		return
	}

	winner.Permalink = s.manager.Hosts().Permalink(
		handle.URL, winner.Attribution.RevisionID,
		winner.Candidate.FilePath, winner.Candidate.LineNumber)

	if s.board.TryAdd(*winner) {
		s.logger.Info("leaderboard entry admitted",
			"repo", handle.Name, "age_days", winner.Attribution.AgeInDays())
	}

	s.complete(id, winner, "scan complete")
}

// complete records a successful terminal result. winner may be nil for a
// repository with no markers.
func (s *Service) complete(id string, winner *blame.Winner, message string) {
	if err := s.tracker.SetResult(id, jobs.Result{Winner: winner}); err != nil {
		s.logger.Error("failed to store job result", "job", id, "error", err)
	}

	if s.store != nil {
		winnerJSON := ""
		if winner != nil {
			if data, err := json.Marshal(winner); err == nil {
				winnerJSON = string(data)
			}
		}
		if err := s.store.FinishRecord(id, jobs.StageComplete, winnerJSON, ""); err != nil {
			s.logger.Warn("failed to finish job record", "job", id, "error", err)
		}
	}

	s.publish(id, jobs.StatusEvent{
		Stage:        jobs.StageComplete,
		Message:      message,
		Percentage:   100,
		RedirectHint: "/scans/" + id,
	})
}

// fail records an error terminal result.
func (s *Service) fail(id string, cause error) {
	s.logger.Warn("scan failed", "job", id, "error", cause)

	if err := s.tracker.SetResult(id, jobs.Result{Error: cause.Error()}); err != nil {
		s.logger.Error("failed to store job result", "job", id, "error", err)
	}
	if s.store != nil {
		if err := s.store.FinishRecord(id, jobs.StageError, "", cause.Error()); err != nil {
			s.logger.Warn("failed to finish job record", "job", id, "error", err)
		}
	}

	s.publish(id, jobs.StatusEvent{
		Stage:   jobs.StageError,
		Message: "scan failed",
		Error:   cause.Error(),
	})
}

func (s *Service) publish(id string, ev jobs.StatusEvent) {
	if err := s.tracker.Publish(id, ev); err != nil {
		s.logger.Error("failed to publish status", "job", id, "error", err)
	}
}

// ScanOnce runs the pipeline synchronously without job tracking, for the
// one-shot CLI. The winner still competes for the leaderboard.
func (s *Service) ScanOnce(ctx context.Context, locator string) (*blame.Winner, error) {
	handle, err := s.manager.Acquire(locator)
	if err != nil {
		return nil, err
	}

	s.active.Add(handle.Dir)
	defer s.active.Remove(handle.Dir)

	if err := s.manager.Prepare(ctx, handle); err != nil {
		return nil, err
	}

	candidates, err := s.scanner.Scan(ctx, handle.Dir, handle.URL)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, relicerr.Newf(relicerr.NoCandidates, "no markers found in %s", repo.DisplayName(handle.URL))
	}

	winner, err := s.resolver.Resolve(ctx, handle.Dir, candidates)
	if err != nil {
		return nil, err
	}

	winner.Permalink = s.manager.Hosts().Permalink(
		handle.URL, winner.Attribution.RevisionID,
		winner.Candidate.FilePath, winner.Candidate.LineNumber)
	s.board.TryAdd(*winner)

	return winner, nil
}

// Subscribe returns the status stream for a job.
func (s *Service) Subscribe(id string) (*jobs.Subscription, error) {
	return s.tracker.Subscribe(id)
}

// Result returns a job's terminal outcome, if it has one. Jobs the tracker
// no longer knows (swept, or submitted before a restart) are answered from
// the durable record when one exists and is terminal.
func (s *Service) Result(id string) (jobs.Result, bool, error) {
	result, done, err := s.tracker.Result(id)
	if err == nil {
		return result, done, nil
	}
	if !relicerr.HasCode(err, relicerr.JobNotFound) || s.store == nil {
		return jobs.Result{}, false, err
	}

	rec, recErr := s.store.GetRecord(id)
	if recErr != nil {
		s.logger.Warn("job record lookup failed", "job", id, "error", recErr)
		return jobs.Result{}, false, err
	}
	if rec == nil || !rec.Stage.Terminal() {
		return jobs.Result{}, false, err
	}

	result = jobs.Result{Error: rec.Error}
	if rec.WinnerJSON != "" {
		var w blame.Winner
		if jerr := json.Unmarshal([]byte(rec.WinnerJSON), &w); jerr != nil {
			s.logger.Warn("job record has undecodable winner", "job", id, "error", jerr)
		} else {
			result.Winner = &w
		}
	}
	return result, true, nil
}

// Leaderboard lists the all-time best entries, oldest marker first.
func (s *Service) Leaderboard() []blame.Winner {
	return s.board.List()
}

// Records lists recent job records from durable storage.
func (s *Service) Records(limit int) ([]jobs.Record, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListRecords(limit)
}

// SweepNow runs one sweep of idle working copies and returns the count
// removed.
func (s *Service) SweepNow() int {
	return s.sweeper.Sweep()
}
