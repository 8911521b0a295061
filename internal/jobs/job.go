// Package jobs tracks scan jobs through their status state machine,
// broadcasts progress to live and late-joining subscribers, and records
// finished jobs durably.
package jobs

import (
	"time"

	"relic/internal/blame"
)

// Stage is one step of the job state machine. Complete and Error are
// terminal.
type Stage string

const (
	StageInit     Stage = "init"
	StageClone    Stage = "clone"
	StageScan     Stage = "scan"
	StageComplete Stage = "complete"
	StageError    Stage = "error"
)

// Terminal reports whether the stage ends the job.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageError
}

// StatusEvent is one progress transition. Events are append-only per job and
// their order is the emission order.
type StatusEvent struct {
	Message    string `json:"message"`
	Stage      Stage  `json:"stage"`
	Percentage int    `json:"percentage,omitempty"`
	Error      string `json:"error,omitempty"`
	// RedirectHint tells a UI where to go once the job is done.
	RedirectHint string `json:"redirectHint,omitempty"`
}

// Result is the terminal outcome of a job, stored independently of the event
// stream so polling callers need no live subscription. A nil Winner with an
// empty Error means the scan succeeded but found nothing.
type Result struct {
	Winner *blame.Winner `json:"winner,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// Record is the durable summary of a submitted job.
type Record struct {
	ID          string     `json:"id"`
	Locator     string     `json:"locator"`
	Stage       Stage      `json:"stage"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Error       string     `json:"error,omitempty"`
	// WinnerJSON is the encoded winner, empty when the job failed or found
	// nothing.
	WinnerJSON string `json:"-"`
}
