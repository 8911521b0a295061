// Package repo owns the lifecycle of local working copies of remote
// repositories: locator validation, stable on-disk identity, clone/refresh,
// and the active-use registry consulted by the sweeper.
package repo

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"relic/internal/config"
	"relic/internal/relicerr"
)

// Handle names and locates one local working copy of a remote repository.
type Handle struct {
	// URL is the normalized remote locator (always .git-suffixed).
	URL string `json:"url"`
	// Name is the qualified owner-repo name extracted from the locator.
	Name string `json:"name"`
	// Dir is the working copy path under the repos directory.
	Dir string `json:"dir"`
}

// Manager acquires and refreshes working copies under a single repos
// directory.
type Manager struct {
	reposDir string
	cfg      config.GitConfig
	hosts    *HostTable
	logger   *slog.Logger
}

// NewManager creates a working-copy manager. The repos directory is created
// on first acquire.
func NewManager(reposDir string, cfg config.GitConfig, hosts *HostTable, logger *slog.Logger) *Manager {
	if hosts == nil {
		hosts = NewHostTable()
	}
	return &Manager{reposDir: reposDir, cfg: cfg, hosts: hosts, logger: logger}
}

// ReposDir returns the directory holding all working copies.
func (m *Manager) ReposDir() string {
	return m.reposDir
}

// Acquire validates and normalizes a locator and computes the handle for its
// working copy. No network traffic happens here; Prepare does the cloning.
func (m *Manager) Acquire(locator string) (*Handle, error) {
	normalized, err := m.normalizeLocator(locator)
	if err != nil {
		return nil, err
	}

	name, err := qualifiedName(normalized)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(m.reposDir, 0755); err != nil {
		return nil, relicerr.New(relicerr.DirectoryFailure, "failed to create repos directory", err)
	}

	return &Handle{
		URL:  normalized,
		Name: name,
		Dir:  filepath.Join(m.reposDir, localIdentity(name)),
	}, nil
}

// normalizeLocator checks that the locator is a well-formed URL on a
// recognized or plausible git host and appends the .git suffix.
func (m *Manager) normalizeLocator(locator string) (string, error) {
	u, err := url.Parse(locator)
	if err != nil || u.Host == "" || u.Scheme == "" {
		return "", relicerr.Newf(relicerr.InvalidLocator, "malformed repository URL: %s", locator)
	}

	if !m.hosts.Recognized(u.Host) && !strings.HasSuffix(locator, ".git") {
		return "", relicerr.Newf(relicerr.InvalidLocator, "unrecognized git host: %s", u.Host)
	}

	if strings.HasSuffix(locator, ".git") {
		return locator, nil
	}
	return locator + ".git", nil
}

// qualifiedName extracts "owner-repo" from a normalized locator.
func qualifiedName(locator string) (string, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", relicerr.Newf(relicerr.InvalidLocator, "failed to parse URL: %s", locator)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || segments[0] == "" {
		return "", relicerr.Newf(relicerr.InvalidLocator, "URL does not contain a repository path: %s", locator)
	}

	repoName := strings.TrimSuffix(segments[len(segments)-1], ".git")
	owner := segments[len(segments)-2]
	return owner + "-" + repoName, nil
}

// localIdentity derives a stable, collision-resistant directory name from a
// qualified repository name.
func localIdentity(name string) string {
	sum := sha256.Sum256([]byte(name))
	return fmt.Sprintf("%s-%x", name, sum[:6])
}

// Prepare makes the working copy current: clone if the directory is absent,
// otherwise fetch and hard-reset. Idempotent across concurrent jobs on the
// same locator because both paths converge on the same directory state.
func (m *Manager) Prepare(ctx context.Context, h *Handle) error {
	if _, err := os.Stat(h.Dir); err == nil {
		m.logger.Debug("working copy exists, refreshing", "repo", h.Name)
		return m.refresh(ctx, h)
	}
	m.logger.Debug("working copy absent, cloning", "repo", h.Name)
	return m.clone(ctx, h)
}

func (m *Manager) cloneTimeout() time.Duration {
	return time.Duration(m.cfg.CloneTimeoutSeconds) * time.Second
}

// clone performs a shallow single-branch clone, trying the default branch
// then the fallback, and deepens history afterwards so blame reaches old
// lines without a full-history clone.
func (m *Manager) clone(ctx context.Context, h *Handle) error {
	if err := os.MkdirAll(filepath.Dir(h.Dir), 0755); err != nil {
		return relicerr.New(relicerr.DirectoryFailure, "failed to create parent directory", err)
	}

	if err := m.cloneBranch(ctx, h, m.cfg.DefaultBranch); err != nil {
		m.logger.Debug("clone of default branch failed, trying fallback",
			"repo", h.Name, "branch", m.cfg.FallbackBranch, "error", err)
		if err := m.cloneBranch(ctx, h, m.cfg.FallbackBranch); err != nil {
			return err
		}
	}

	return m.deepen(ctx, h)
}

func (m *Manager) cloneBranch(ctx context.Context, h *Handle, branch string) error {
	_, err := runGit(ctx, m.reposDir, m.cloneTimeout(),
		"clone",
		"--single-branch",
		"--branch", branch,
		"--filter=blob:none",
		fmt.Sprintf("--depth=%d", m.cfg.CloneDepth),
		h.URL,
		h.Dir,
	)
	return err
}

func (m *Manager) deepen(ctx context.Context, h *Handle) error {
	_, err := runGit(ctx, h.Dir, m.cloneTimeout(),
		"fetch", "--deepen", fmt.Sprintf("%d", m.cfg.DeepenDepth), "origin")
	return err
}

// refresh brings an existing working copy up to date and touches its mtime so
// the sweeper's age test reflects last use rather than last clone.
func (m *Manager) refresh(ctx context.Context, h *Handle) error {
	if _, err := runGit(ctx, h.Dir, m.cloneTimeout(), "fetch", "--all"); err != nil {
		return err
	}

	if _, err := runGit(ctx, h.Dir, m.cloneTimeout(),
		"reset", "--hard", "origin/"+m.cfg.DefaultBranch); err != nil {
		if _, err := runGit(ctx, h.Dir, m.cloneTimeout(),
			"reset", "--hard", "origin/"+m.cfg.FallbackBranch); err != nil {
			return err
		}
	}

	now := time.Now()
	if err := os.Chtimes(h.Dir, now, now); err != nil {
		return relicerr.New(relicerr.DirectoryFailure, "failed to update working copy mtime", err)
	}
	return nil
}

// Hosts returns the host table used for locator validation and permalinks.
func (m *Manager) Hosts() *HostTable {
	return m.hosts
}
