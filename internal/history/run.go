// Package history keeps a journal of reorder runs in a SQLite database.
package history

import (
	"time"

	"github.com/google/uuid"
)

// Status is the outcome of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusDryRun    Status = "dry-run"
	StatusFailed    Status = "failed"
)

// Run is one invocation of the reorder command.
type Run struct {
	ID         string     `json:"id" yaml:"id"`
	StartedAt  time.Time  `json:"startedAt" yaml:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty" yaml:"finishedAt,omitempty"`
	Status     Status     `json:"status" yaml:"status"`

	InputPath  string `json:"inputPath" yaml:"inputPath"`
	OutputPath string `json:"outputPath,omitempty" yaml:"outputPath,omitempty"`
	Snapshot   string `json:"snapshot,omitempty" yaml:"snapshot,omitempty"`

	Citations   int      `json:"citations" yaml:"citations"`
	Entries     int      `json:"entries" yaml:"entries"`
	Matched     int      `json:"matched" yaml:"matched"`
	MissingKeys []string `json:"missingKeys,omitempty" yaml:"missingKeys,omitempty"`
	OrphanKeys  []string `json:"orphanKeys,omitempty" yaml:"orphanKeys,omitempty"`

	InputDigest  string `json:"inputDigest,omitempty" yaml:"inputDigest,omitempty"`
	OutputDigest string `json:"outputDigest,omitempty" yaml:"outputDigest,omitempty"`

	ErrorCode string `json:"errorCode,omitempty" yaml:"errorCode,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewRun starts a run for input.
func NewRun(input string) *Run {
	return &Run{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
		Status:    StatusRunning,
		InputPath: input,
	}
}

// MarkFinished records a successful outcome.
func (r *Run) MarkFinished(status Status) {
	now := time.Now().UTC()
	r.FinishedAt = &now
	r.Status = status
}

// MarkFailed records a failure with its error code.
func (r *Run) MarkFailed(code, message string) {
	now := time.Now().UTC()
	r.FinishedAt = &now
	r.Status = StatusFailed
	r.ErrorCode = code
	r.Error = message
}

// Duration returns how long the run took, zero while it is still running.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
