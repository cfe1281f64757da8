// internal/adapter/storage/simulation_store.go

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"wallace/internal/domain/geo"
	"wallace/internal/domain/keyword"
	"wallace/internal/domain/simulation"
)

// Schema creates the tables used by SimulationStore
const Schema = `
	CREATE TABLE IF NOT EXISTS simulations (
		id                TEXT PRIMARY KEY,
		seed              TEXT NOT NULL,
		scope_code        TEXT NOT NULL,
		scope_description TEXT NOT NULL,
		scope_level       TEXT NOT NULL,
		trends_start      TEXT NOT NULL,
		trends_end        TEXT NOT NULL,
		timeline_start    TEXT NOT NULL,
		timeline_end      TEXT NOT NULL,
		max_depth         INTEGER NOT NULL,
		status            TEXT NOT NULL,
		topics            JSONB NOT NULL DEFAULT '[]',
		tree              JSONB NOT NULL DEFAULT '[]',
		failures          TEXT[] NOT NULL DEFAULT '{}',
		error             TEXT NOT NULL DEFAULT '',
		started_at        TIMESTAMPTZ NOT NULL,
		finished_at       TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS simulation_queries (
		simulation_id TEXT NOT NULL REFERENCES simulations(id) ON DELETE CASCADE,
		position      INTEGER NOT NULL,
		query         TEXT NOT NULL,
		value         DOUBLE PRECISION NOT NULL,
		level         INTEGER NOT NULL,
		PRIMARY KEY (simulation_id, position)
	);

	CREATE TABLE IF NOT EXISTS simulation_volumes (
		simulation_id TEXT NOT NULL REFERENCES simulations(id) ON DELETE CASCADE,
		position      INTEGER NOT NULL,
		term          TEXT NOT NULL,
		weight        DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (simulation_id, position)
	);

	CREATE INDEX IF NOT EXISTS simulations_started_at_idx ON simulations (started_at DESC);
`

// SimulationStore implements storage for simulation runs
type SimulationStore struct {
	db *pgxpool.Pool
}

// NewSimulationStore creates a new simulation store
func NewSimulationStore(db *pgxpool.Pool) *SimulationStore {
	return &SimulationStore{
		db: db,
	}
}

// EnsureSchema creates missing tables
func (s *SimulationStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("error creating schema: %w", err)
	}
	return nil
}

// SaveRun saves a run with its query rows and volumes, replacing earlier versions
func (s *SimulationStore) SaveRun(ctx context.Context, run simulation.Run) error {
	query := `
		INSERT INTO simulations (
			id, seed, scope_code, scope_description, scope_level,
			trends_start, trends_end, timeline_start, timeline_end,
			max_depth, status, topics, tree, failures, error,
			started_at, finished_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13, $14, $15,
			$16, $17
		)
		ON CONFLICT (id) DO UPDATE
		SET
			status = $11,
			topics = $12,
			tree = $13,
			failures = $14,
			error = $15,
			finished_at = $17
	`

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	var finishedAt *time.Time
	if !run.FinishedAt.IsZero() {
		finishedAt = &run.FinishedAt
	}

	topicsJSON, err := json.Marshal(nonNilTopics(run.Topics))
	if err != nil {
		return fmt.Errorf("error marshaling topics: %w", err)
	}

	treeJSON, err := json.Marshal(nonNilTree(run.Tree))
	if err != nil {
		return fmt.Errorf("error marshaling tree: %w", err)
	}

	failures := run.Failures
	if failures == nil {
		failures = []string{}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(
		ctx,
		query,
		run.ID,
		run.Seed,
		run.Scope.Code,
		run.Scope.Description,
		string(run.Level),
		run.TrendsWindow.Start,
		run.TrendsWindow.End,
		run.TimelineWindow.Start,
		run.TimelineWindow.End,
		run.MaxDepth,
		string(run.Status),
		topicsJSON,
		treeJSON,
		failures,
		run.Error,
		run.StartedAt,
		finishedAt,
	)
	if err != nil {
		return fmt.Errorf("error executing query: %w", err)
	}

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM simulation_queries WHERE simulation_id = $1`, run.ID)
	batch.Queue(`DELETE FROM simulation_volumes WHERE simulation_id = $1`, run.ID)
	for i, row := range run.Rows {
		batch.Queue(
			`INSERT INTO simulation_queries (simulation_id, position, query, value, level) VALUES ($1, $2, $3, $4, $5)`,
			run.ID, i, row.Query, row.Value, row.Level,
		)
	}
	for i, v := range run.Volumes {
		batch.Queue(
			`INSERT INTO simulation_volumes (simulation_id, position, term, weight) VALUES ($1, $2, $3, $4)`,
			run.ID, i, v.Term, v.Weight,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("error writing run rows: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("error closing batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("error committing run: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID with its rows and volumes
func (s *SimulationStore) GetRun(ctx context.Context, id string) (*simulation.Run, error) {
	query := `
		SELECT
			id, seed, scope_code, scope_description, scope_level,
			trends_start, trends_end, timeline_start, timeline_end,
			max_depth, status, topics, tree, failures, error,
			started_at, finished_at
		FROM simulations
		WHERE id = $1
	`

	run, err := scanRun(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simulation.ErrNotFound
		}
		return nil, fmt.Errorf("error querying run: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT query, value, level FROM simulation_queries
		WHERE simulation_id = $1 ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("error querying run rows: %w", err)
	}
	defer rows.Close()

	run.Rows = []keyword.Row{}
	for rows.Next() {
		var r keyword.Row
		if err := rows.Scan(&r.Query, &r.Value, &r.Level); err != nil {
			return nil, fmt.Errorf("error scanning run row: %w", err)
		}
		run.Rows = append(run.Rows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}

	volumes, err := s.db.Query(ctx, `
		SELECT term, weight FROM simulation_volumes
		WHERE simulation_id = $1 ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("error querying run volumes: %w", err)
	}
	defer volumes.Close()

	run.Volumes = []keyword.RelativeVolume{}
	for volumes.Next() {
		var v keyword.RelativeVolume
		if err := volumes.Scan(&v.Term, &v.Weight); err != nil {
			return nil, fmt.Errorf("error scanning run volume: %w", err)
		}
		run.Volumes = append(run.Volumes, v)
	}
	if err := volumes.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run volumes: %w", err)
	}

	return run, nil
}

// ListRuns returns the most recent runs without their rows and volumes
func (s *SimulationStore) ListRuns(ctx context.Context, limit int) ([]simulation.Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	query := `
		SELECT
			id, seed, scope_code, scope_description, scope_level,
			trends_start, trends_end, timeline_start, timeline_end,
			max_depth, status, topics, tree, failures, error,
			started_at, finished_at
		FROM simulations
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	var runs []simulation.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning run: %w", err)
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

func scanRun(row pgx.Row) (*simulation.Run, error) {
	var run simulation.Run
	var level, status string
	var topicsJSON, treeJSON []byte
	var finishedAt *time.Time

	err := row.Scan(
		&run.ID,
		&run.Seed,
		&run.Scope.Code,
		&run.Scope.Description,
		&level,
		&run.TrendsWindow.Start,
		&run.TrendsWindow.End,
		&run.TimelineWindow.Start,
		&run.TimelineWindow.End,
		&run.MaxDepth,
		&status,
		&topicsJSON,
		&treeJSON,
		&run.Failures,
		&run.Error,
		&run.StartedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Level = geo.Level(level)
	run.Status = simulation.Status(status)
	if finishedAt != nil {
		run.FinishedAt = *finishedAt
	}

	if err := json.Unmarshal(topicsJSON, &run.Topics); err != nil {
		return nil, fmt.Errorf("error unmarshaling topics: %w", err)
	}
	if err := json.Unmarshal(treeJSON, &run.Tree); err != nil {
		return nil, fmt.Errorf("error unmarshaling tree: %w", err)
	}

	return &run, nil
}

func nonNilTopics(t []keyword.Topic) []keyword.Topic {
	if t == nil {
		return []keyword.Topic{}
	}
	return t
}

func nonNilTree(t []*keyword.QueryNode) []*keyword.QueryNode {
	if t == nil {
		return []*keyword.QueryNode{}
	}
	return t
}
