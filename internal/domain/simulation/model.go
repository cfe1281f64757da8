// internal/domain/simulation/model.go

package simulation

import (
	"context"
	"errors"
	"time"

	"wallace/internal/domain/geo"
	"wallace/internal/domain/keyword"
)

// ErrNotFound is returned when a run does not exist
var ErrNotFound = errors.New("run not found")

// Status is the lifecycle state of a run
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Request describes one simulation
type Request struct {
	Seed           string         `json:"seed"`
	Scope          geo.Scope      `json:"scope"`
	TrendsWindow   keyword.Window `json:"trends_window"`
	TimelineWindow keyword.Window `json:"timeline_window"`
	// MaxDepth overrides the configured number of expansion levels when positive
	MaxDepth int `json:"max_depth,omitempty"`
}

// Run is the outcome of one simulation
type Run struct {
	ID             string                   `json:"id"`
	Seed           string                   `json:"seed"`
	Scope          geo.Scope                `json:"scope"`
	Level          geo.Level                `json:"level"`
	TrendsWindow   keyword.Window           `json:"trends_window"`
	TimelineWindow keyword.Window           `json:"timeline_window"`
	MaxDepth       int                      `json:"max_depth"`
	Status         Status                   `json:"status"`
	Topics         []keyword.Topic          `json:"topics,omitempty"`
	Tree           []*keyword.QueryNode     `json:"tree,omitempty"`
	Rows           []keyword.Row            `json:"rows"`
	Volumes        []keyword.RelativeVolume `json:"volumes"`
	Failures       []string                 `json:"failures,omitempty"`
	Error          string                   `json:"error,omitempty"`
	StartedAt      time.Time                `json:"started_at"`
	FinishedAt     time.Time                `json:"finished_at"`
}

// Runner defines the interface for running and retrieving simulations
type Runner interface {
	// Run executes a simulation synchronously
	Run(ctx context.Context, req Request) (*Run, error)

	// Start executes a simulation in the background and returns its ID
	Start(ctx context.Context, req Request) (string, error)

	// GetRun returns a stored run by ID
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns the most recent runs
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}
