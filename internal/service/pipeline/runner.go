// internal/service/pipeline/runner.go

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"wallace/internal/domain/geo"
	"wallace/internal/domain/keyword"
	"wallace/internal/domain/simulation"
	"wallace/internal/service/expansion"
	"wallace/internal/service/remote"
	"wallace/internal/service/volume"
)

// TopicSource returns related topics for a term
type TopicSource interface {
	TopTopics(ctx context.Context, term string, scope geo.Scope, window keyword.Window) ([]keyword.Topic, error)
}

// Source is the full trends API surface a run needs
type Source interface {
	expansion.QuerySource
	volume.TimelineSource
	TopicSource
}

// Store defines storage for runs
type Store interface {
	SaveRun(ctx context.Context, run simulation.Run) error
	GetRun(ctx context.Context, id string) (*simulation.Run, error)
	ListRuns(ctx context.Context, limit int) ([]simulation.Run, error)
}

// Publisher publishes run progress events
type Publisher interface {
	Publish(runID, event string, payload interface{}) error
}

// RunnerConfig contains configuration for the runner
type RunnerConfig struct {
	MaxDepth       int
	BatchSize      int
	PartialVolumes bool
}

// SimulationRunner implements the simulation.Runner interface
type SimulationRunner struct {
	source    Source
	caller    *remote.Caller
	store     Store
	publisher Publisher
	config    RunnerConfig
	logger    *slog.Logger
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSimulationRunner creates a new runner. A nil store keeps runs in memory;
// a nil publisher drops events.
func NewSimulationRunner(
	source Source,
	caller *remote.Caller,
	store Store,
	publisher Publisher,
	logger *slog.Logger,
	config RunnerConfig,
) *SimulationRunner {
	if store == nil {
		store = NewMemoryStore()
	}
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxDepth <= 0 {
		config.MaxDepth = expansion.DefaultMaxDepth
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &SimulationRunner{
		source:    source,
		caller:    caller,
		store:     store,
		publisher: publisher,
		config:    config,
		logger:    logger,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Run executes a simulation synchronously
func (r *SimulationRunner) Run(ctx context.Context, req simulation.Request) (*simulation.Run, error) {
	return r.run(ctx, uuid.New().String(), req)
}

// Start validates the request and runs it in the background
func (r *SimulationRunner) Start(ctx context.Context, req simulation.Request) (string, error) {
	if _, err := geo.Classify(req.Scope.Code); err != nil {
		return "", err
	}
	if req.Seed == "" {
		return "", fmt.Errorf("seed term is required")
	}

	id := uuid.New().String()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if _, err := r.run(r.ctx, id, req); err != nil {
			r.logger.Error("Simulation failed", "run_id", id, "error", err)
		}
	}()
	return id, nil
}

// GetRun returns a stored run by ID
func (r *SimulationRunner) GetRun(ctx context.Context, id string) (*simulation.Run, error) {
	return r.store.GetRun(ctx, id)
}

// ListRuns returns the most recent runs
func (r *SimulationRunner) ListRuns(ctx context.Context, limit int) ([]simulation.Run, error) {
	return r.store.ListRuns(ctx, limit)
}

// Stop cancels background runs and waits for them to finish
func (r *SimulationRunner) Stop(ctx context.Context) error {
	r.cancel()

	c := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(c)
	}()

	select {
	case <-c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *SimulationRunner) run(ctx context.Context, id string, req simulation.Request) (*simulation.Run, error) {
	depth := r.config.MaxDepth
	if req.MaxDepth > 0 {
		depth = req.MaxDepth
	}

	run := &simulation.Run{
		ID:             id,
		Seed:           req.Seed,
		Scope:          req.Scope,
		TrendsWindow:   req.TrendsWindow,
		TimelineWindow: req.TimelineWindow,
		MaxDepth:       depth,
		Status:         simulation.StatusRunning,
		Rows:           []keyword.Row{},
		Volumes:        []keyword.RelativeVolume{},
		StartedAt:      r.now(),
	}
	log := r.logger.With("run_id", id, "seed", req.Seed, "scope", req.Scope.Code)

	level, err := geo.Classify(req.Scope.Code)
	if err != nil {
		log.Error("Could not evaluate seed set", "error", err)
		return nil, r.fail(run, err)
	}
	run.Level = level

	log.Info("Starting simulation with trends", "area", req.Scope.Description, "level", level, "max_depth", depth)
	if err := r.store.SaveRun(ctx, *run); err != nil {
		log.Warn("Error saving running run", "error", err)
	}
	r.publish(id, "started", run)

	run.Topics, err = r.topics(ctx, req)
	if err != nil {
		return nil, r.fail(run, err)
	}
	r.publish(id, "topics", run.Topics)

	expander := expansion.NewExpander(r.source, r.caller, r.logger, expansion.ExpanderConfig{
		MaxDepth: depth,
		OnLevel: func(level int, accepted []*keyword.QueryNode) {
			r.publish(id, "level", levelEvent{Level: level, Accepted: len(accepted)})
		},
	})
	expanded, err := expander.Expand(ctx, req.Seed, req.Scope, req.TrendsWindow)
	if err != nil {
		return nil, r.fail(run, err)
	}
	for _, f := range expanded.Failures {
		run.Failures = append(run.Failures, f.Error())
	}
	run.Tree = expanded.Roots
	run.Rows = keyword.Flatten(expanded.Roots)

	log.Info("Starting simulation with health trends", "terms", len(run.Rows))
	if terms := keyword.Terms(expanded.Roots); len(terms) > 0 {
		batcher := volume.NewBatcher(r.source, r.caller, r.logger, volume.BatcherConfig{
			BatchSize: r.config.BatchSize,
			Partial:   r.config.PartialVolumes,
		})
		batch, err := batcher.Fetch(ctx, terms, req.Scope, req.TimelineWindow)
		if err != nil {
			return nil, r.fail(run, err)
		}
		for _, f := range batch.Failures {
			run.Failures = append(run.Failures, f.Error())
		}
		run.Volumes = volume.Aggregate(batch.Series)
	}
	r.publish(id, "volumes", run.Volumes)

	run.Status = simulation.StatusCompleted
	run.FinishedAt = r.now()
	if err := r.store.SaveRun(ctx, *run); err != nil {
		return run, fmt.Errorf("error saving run: %w", err)
	}
	r.publish(id, "completed", summary(run))

	log.Info("Simulation completed", "queries", len(run.Rows), "volumes", len(run.Volumes), "failures", len(run.Failures))
	return run, nil
}

// topics fetches the seed's related topics. Only cancellation is fatal here.
func (r *SimulationRunner) topics(ctx context.Context, req simulation.Request) ([]keyword.Topic, error) {
	var topics []keyword.Topic
	_, err := r.caller.Do(ctx, remote.TopicPolicy, req.Seed, func(ctx context.Context) error {
		var err error
		topics, err = r.source.TopTopics(ctx, req.Seed, req.Scope, req.TrendsWindow)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Error("Could not fetch top topics", "seed", req.Seed, "error", err)
		return nil, nil
	}
	return topics, nil
}

func (r *SimulationRunner) fail(run *simulation.Run, err error) error {
	run.Status = simulation.StatusFailed
	run.Error = err.Error()
	run.FinishedAt = r.now()

	// The caller's context may be the reason for the failure
	if saveErr := r.store.SaveRun(context.Background(), *run); saveErr != nil {
		r.logger.Error("Error saving failed run", "run_id", run.ID, "error", saveErr)
	}
	r.publish(run.ID, "failed", summary(run))
	return err
}

func (r *SimulationRunner) publish(runID, event string, payload interface{}) {
	if err := r.publisher.Publish(runID, event, payload); err != nil {
		r.logger.Warn("Error publishing run event", "run_id", runID, "event", event, "error", err)
	}
}

type levelEvent struct {
	Level    int `json:"level"`
	Accepted int `json:"accepted"`
}

type runSummary struct {
	ID       string            `json:"id"`
	Status   simulation.Status `json:"status"`
	Queries  int               `json:"queries"`
	Volumes  int               `json:"volumes"`
	Failures int               `json:"failures"`
	Error    string            `json:"error,omitempty"`
}

func summary(run *simulation.Run) runSummary {
	return runSummary{
		ID:       run.ID,
		Status:   run.Status,
		Queries:  len(run.Rows),
		Volumes:  len(run.Volumes),
		Failures: len(run.Failures),
		Error:    run.Error,
	}
}
