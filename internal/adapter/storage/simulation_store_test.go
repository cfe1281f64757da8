package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallace/internal/domain/geo"
	"wallace/internal/domain/keyword"
	"wallace/internal/domain/simulation"
)

// newTestStore connects to TEST_DATABASE_URL, skipping when it is unset
func newTestStore(t *testing.T) *SimulationStore {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := pgxpool.Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	store := NewSimulationStore(db)
	require.NoError(t, store.EnsureSchema(ctx))
	return store
}

func TestSimulationStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := simulation.Run{
		ID:             uuid.New().String(),
		Seed:           "flu",
		Scope:          geo.Scope{Code: "US-MA", Description: "Massachusetts"},
		Level:          geo.LevelRegion,
		TrendsWindow:   keyword.Window{Start: "2020-01", End: "2020-12"},
		TimelineWindow: keyword.Window{Start: "2020-01-01", End: "2020-12-31"},
		MaxDepth:       2,
		Status:         simulation.StatusRunning,
		StartedAt:      time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, store.SaveRun(ctx, run))

	run.Status = simulation.StatusCompleted
	run.Topics = []keyword.Topic{{Title: "Influenza", MID: "/m/0cycc", Value: 100}}
	run.Tree = []*keyword.QueryNode{{Term: "flu symptoms", Score: 90, Level: 1, Children: []*keyword.QueryNode{{Term: "cold", Score: 40, Level: 2}}}}
	run.Rows = keyword.Flatten(run.Tree)
	run.Volumes = []keyword.RelativeVolume{{Term: "flu symptoms", Weight: 0.6}, {Term: "cold", Weight: 0.4}}
	run.Failures = []string{"chunk 1: no data"}
	run.FinishedAt = run.StartedAt.Add(time.Minute)
	require.NoError(t, store.SaveRun(ctx, run))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, simulation.StatusCompleted, got.Status)
	assert.Equal(t, geo.LevelRegion, got.Level)
	assert.Equal(t, run.Rows, got.Rows)
	assert.Equal(t, run.Volumes, got.Volumes)
	assert.Equal(t, run.Topics, got.Topics)
	assert.Equal(t, run.Failures, got.Failures)
	require.Len(t, got.Tree, 1)
	assert.Equal(t, "cold", got.Tree[0].Children[0].Term)
	assert.True(t, run.FinishedAt.Equal(got.FinishedAt))

	runs, err := store.ListRuns(ctx, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, runs)
}

func TestSimulationStoreNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRun(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, simulation.ErrNotFound)
}
