// Package scan finds marker candidates in a prepared working copy by
// driving ripgrep and normalizing its line-oriented output.
package scan

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"relic/internal/relicerr"
)

// Candidate is one marker occurrence found during a scan. Immutable once
// produced; Context is captured once and never re-read.
type Candidate struct {
	// FilePath is relative to the working copy root.
	FilePath   string `json:"filePath"`
	LineNumber int    `json:"lineNumber"`
	// Text is the full matched line, trimmed.
	Text string `json:"text"`
	// Context holds up to contextLines lines before and after the match,
	// clipped at file boundaries. The matched line itself is included.
	Context []string `json:"context"`
	// SourceURL is the normalized locator of the repository scanned.
	SourceURL string `json:"sourceUrl"`
}

// Key identifies a candidate for de-duplication: two otherwise identical
// markers from different repositories are distinct.
func (c Candidate) Key() string {
	return c.SourceURL + "\x00" + c.FilePath + "\x00" + strconv.Itoa(c.LineNumber)
}

// Scanner runs marker searches against working copies.
type Scanner struct {
	marker       string
	contextLines int
	timeout      time.Duration
	logger       *slog.Logger
}

// NewScanner creates a scanner for a literal, case-sensitive marker.
func NewScanner(marker string, contextLines, timeoutSeconds int, logger *slog.Logger) *Scanner {
	return &Scanner{
		marker:       marker,
		contextLines: contextLines,
		timeout:      time.Duration(timeoutSeconds) * time.Second,
		logger:       logger,
	}
}

// Scan searches dir once and returns all candidates. Zero matches is a valid
// empty result, not an error. A matched file that cannot be re-opened for
// context extraction fails the whole scan: it means the search output and the
// filesystem disagree.
func (s *Scanner) Scan(ctx context.Context, dir, sourceURL string) ([]Candidate, error) {
	output, err := s.run(ctx, dir)
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, line := range strings.Split(output, "\n") {
		if line == "" {
			continue
		}
		c, err := s.parseMatch(dir, sourceURL, line)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}

	s.logger.Debug("scan complete", "dir", dir, "candidates", len(candidates))
	return candidates, nil
}

// run invokes ripgrep and maps its exit conditions: exit 1 with empty stderr
// means no matches.
func (s *Scanner) run(ctx context.Context, dir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "rg",
		s.marker,
		"--line-number",
		"--no-heading",
		"--color=never",
		"--max-columns=1000",
		"-g", "!.git/",
	)
	cmd.Dir = dir

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", relicerr.New(relicerr.Timeout, "search timed out", err)
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr := strings.TrimSpace(string(exitErr.Stderr))
			if exitErr.ExitCode() == 1 && stderr == "" {
				return "", nil
			}
			return "", relicerr.New(relicerr.ToolFailure, "search tool failed", err).
				WithDetails(map[string]interface{}{"stderr": stderr})
		}
		return "", relicerr.New(relicerr.ToolFailure, "failed to execute search tool", err)
	}

	return string(output), nil
}

// parseMatch splits one "path:line:content" record and captures the context
// window around the matched line.
func (s *Scanner) parseMatch(dir, sourceURL, record string) (Candidate, error) {
	parts := strings.SplitN(record, ":", 3)
	if len(parts) != 3 {
		return Candidate{}, relicerr.Newf(relicerr.ParseFailure, "malformed search record: %q", record)
	}

	lineNumber, err := strconv.Atoi(parts[1])
	if err != nil {
		return Candidate{}, relicerr.Newf(relicerr.ParseFailure, "non-numeric line number in record: %q", record)
	}

	window, err := s.extractContext(filepath.Join(dir, parts[0]), lineNumber)
	if err != nil {
		return Candidate{}, err
	}

	return Candidate{
		FilePath:   filepath.ToSlash(parts[0]),
		LineNumber: lineNumber,
		Text:       strings.TrimSpace(parts[2]),
		Context:    window,
		SourceURL:  sourceURL,
	}, nil
}

// extractContext re-reads the matched file and returns the lines surrounding
// the match, clipped at file boundaries.
func (s *Scanner) extractContext(path string, lineNumber int) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, relicerr.New(relicerr.ParseFailure, "matched file unreadable for context", err).
			WithDetails(map[string]interface{}{"path": path})
	}

	lines := strings.Split(string(data), "\n")
	if lineNumber < 1 || lineNumber > len(lines) {
		return nil, relicerr.Newf(relicerr.ParseFailure, "line %d out of range for %s", lineNumber, path)
	}

	start := lineNumber - 1 - s.contextLines
	if start < 0 {
		start = 0
	}
	end := lineNumber + s.contextLines
	if end > len(lines) {
		end = len(lines)
	}

	return append([]string(nil), lines[start:end]...), nil
}
