// Package blame attributes marker candidates to the revision that introduced
// them and reduces the surviving set to the single oldest winner.
package blame

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"relic/internal/relicerr"
)

// Attribution is the historical record for one candidate line. Produced at
// most once per candidate.
type Attribution struct {
	RevisionID  string    `json:"revisionId"`
	AuthorName  string    `json:"authorName"`
	AuthorEmail string    `json:"authorEmail"`
	Timestamp   time.Time `json:"timestamp"`
	Summary     string    `json:"summary"`
}

// AgeInDays is derived from the timestamp on every read, so two reads at
// different wall-clock times may disagree by the elapsed interval.
func (a Attribution) AgeInDays() int {
	return int(time.Since(a.Timestamp).Hours() / 24)
}

// attributeLine runs a single-line porcelain blame followed by a summary
// lookup for the identified revision.
func attributeLine(ctx context.Context, dir, filePath string, line int, timeout time.Duration) (Attribution, error) {
	porcelain, err := runGit(ctx, dir, timeout,
		"blame", "-p", "-L", strconv.Itoa(line)+","+strconv.Itoa(line), "--", filePath)
	if err != nil {
		return Attribution{}, err
	}

	attr, err := parsePorcelain(porcelain)
	if err != nil {
		return Attribution{}, err
	}

	summary, err := runGit(ctx, dir, timeout, "show", "-s", "--format=%s", attr.RevisionID)
	if err != nil {
		return Attribution{}, err
	}
	attr.Summary = summary

	return attr, nil
}

// parsePorcelain extracts the revision, author, and author timestamp from
// porcelain blame output for a single line.
func parsePorcelain(output string) (Attribution, error) {
	lines := strings.Split(output, "\n")
	if len(lines) == 0 || lines[0] == "" {
		return Attribution{}, relicerr.New(relicerr.ParseFailure, "empty blame output", nil)
	}

	header := strings.Fields(lines[0])
	if len(header) < 3 || len(header[0]) < 7 {
		return Attribution{}, relicerr.Newf(relicerr.ParseFailure, "malformed blame header: %q", lines[0])
	}

	attr := Attribution{RevisionID: header[0]}
	haveTime := false

	for _, line := range lines[1:] {
		switch {
		case strings.HasPrefix(line, "author "):
			attr.AuthorName = strings.TrimPrefix(line, "author ")
		case strings.HasPrefix(line, "author-mail "):
			mail := strings.TrimPrefix(line, "author-mail ")
			attr.AuthorEmail = strings.Trim(mail, "<>")
		case strings.HasPrefix(line, "author-time "):
			ts, err := strconv.ParseInt(strings.TrimPrefix(line, "author-time "), 10, 64)
			if err != nil {
				return Attribution{}, relicerr.Newf(relicerr.ParseFailure, "bad author-time in blame output: %q", line)
			}
			attr.Timestamp = time.Unix(ts, 0).UTC()
			haveTime = true
		}
	}

	if !haveTime {
		return Attribution{}, relicerr.New(relicerr.ParseFailure, "blame output missing author-time", nil)
	}
	return attr, nil
}

// runGit mirrors the working-copy git runner but lives here so the package
// has no dependency on repo internals.
func runGit(ctx context.Context, dir string, timeout time.Duration, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", relicerr.New(relicerr.Timeout, "git command timed out", err)
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", relicerr.New(relicerr.ToolFailure, "git command failed", err).
				WithDetails(map[string]interface{}{
					"args":   args,
					"stderr": strings.TrimSpace(string(exitErr.Stderr)),
				})
		}
		return "", relicerr.New(relicerr.ToolFailure, "failed to execute git", err)
	}

	return strings.TrimSpace(string(output)), nil
}
