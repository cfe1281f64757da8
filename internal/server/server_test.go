package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallace/internal/config"
	"wallace/internal/domain/geo"
	"wallace/internal/domain/keyword"
	"wallace/internal/domain/upstream"
	"wallace/internal/service/pipeline"
	"wallace/internal/service/remote"
)

type emptySource struct{}

func (emptySource) TopQueries(ctx context.Context, term string, scope geo.Scope, window keyword.Window) ([]keyword.Query, error) {
	return nil, upstream.ErrEmptyResponse
}

func (emptySource) TopTopics(ctx context.Context, term string, scope geo.Scope, window keyword.Window) ([]keyword.Topic, error) {
	return nil, upstream.ErrEmptyResponse
}

func (emptySource) TimelinesForHealth(ctx context.Context, terms []string, scope geo.Scope, window keyword.Window) ([]keyword.TermSeries, error) {
	return nil, upstream.ErrEmptyResponse
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := pipeline.NewSimulationRunner(emptySource{}, remote.NewCaller(remote.DefaultRetryConfig(), remote.WithLogger(logger)), nil, nil, logger, pipeline.RunnerConfig{})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		runner.Stop(ctx)
	})
	return NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 0, CorsOrigins: []string{"*"}}, runner, nil, "simulation", logger)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestSimulationRoutes(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/simulations", strings.NewReader(`{"seed":"flu","geo_code":"US"}`)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	assert.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/simulations", nil))
		return rec.Code == http.StatusOK && strings.Contains(rec.Body.String(), `"status":"completed"`)
	}, time.Second, 10*time.Millisecond)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/geo/classify?code=US-MA", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"level":"region"`)
}
