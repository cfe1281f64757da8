package volume

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallace/internal/domain/geo"
	"wallace/internal/domain/keyword"
	"wallace/internal/domain/upstream"
	"wallace/internal/service/remote"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeTimelines returns one series per requested term; chunks listed in fail return the given error
type fakeTimelines struct {
	calls [][]string
	fail  map[int]error
}

func (f *fakeTimelines) TimelinesForHealth(ctx context.Context, terms []string, scope geo.Scope, window keyword.Window) ([]keyword.TermSeries, error) {
	index := len(f.calls)
	f.calls = append(f.calls, append([]string(nil), terms...))
	if err, ok := f.fail[index]; ok {
		return nil, err
	}

	series := make([]keyword.TermSeries, 0, len(terms))
	for _, term := range terms {
		series = append(series, keyword.TermSeries{Term: term, Points: []keyword.VolumePoint{{Date: window.Start, Value: 1}}})
	}
	return series, nil
}

func newTestBatcher(source TimelineSource, partial bool) *Batcher {
	retry := remote.DefaultRetryConfig()
	retry.MaxRetries = 1
	caller := remote.NewCaller(retry,
		remote.WithLogger(discard),
		remote.WithSleeper(func(ctx context.Context, d time.Duration) error { return nil }),
	)
	return NewBatcher(source, caller, discard, BatcherConfig{Partial: partial})
}

func makeTerms(n int) []string {
	terms := make([]string, n)
	for i := range terms {
		terms[i] = fmt.Sprintf("term %d", i)
	}
	return terms
}

func seriesTerms(series []keyword.TermSeries) []string {
	terms := make([]string, 0, len(series))
	for _, s := range series {
		terms = append(terms, s.Term)
	}
	return terms
}

func TestChunk(t *testing.T) {
	chunks, err := Chunk(makeTerms(61), 30)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 30)
	assert.Len(t, chunks[1], 30)
	assert.Len(t, chunks[2], 1)
	assert.Equal(t, "term 60", chunks[2][0])

	chunks, err = Chunk(nil, 30)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	_, err = Chunk(makeTerms(3), 0)
	assert.Error(t, err)
}

func TestFetchCallsOncePerChunkInOrder(t *testing.T) {
	for _, n := range []int{1, 29, 30, 31, 60, 75} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			source := &fakeTimelines{}
			terms := makeTerms(n)

			batch, err := newTestBatcher(source, false).Fetch(context.Background(), terms, geo.Scope{Code: "US"}, keyword.Window{Start: "2020-01-01"})

			require.NoError(t, err)
			want := (n + MaxBatchSize - 1) / MaxBatchSize
			assert.Len(t, source.calls, want)
			assert.Equal(t, want, batch.Calls)
			assert.True(t, batch.Complete())
			assert.Equal(t, terms, seriesTerms(batch.Series))
			for _, call := range source.calls {
				assert.LessOrEqual(t, len(call), MaxBatchSize)
			}
		})
	}
}

func TestFetchAllOrNothing(t *testing.T) {
	source := &fakeTimelines{fail: map[int]error{1: &upstream.StatusError{Code: 404}}}

	batch, err := newTestBatcher(source, false).Fetch(context.Background(), makeTerms(75), geo.Scope{Code: "US"}, keyword.Window{})

	require.NoError(t, err)
	assert.Empty(t, batch.Series)
	require.Len(t, batch.Failures, 1)
	assert.Equal(t, 1, batch.Failures[0].Index)
	assert.Len(t, source.calls, 2, "fetching stops at the failed chunk")
	assert.False(t, batch.Complete())
}

func TestFetchPartial(t *testing.T) {
	source := &fakeTimelines{fail: map[int]error{1: &upstream.StatusError{Code: 503}}}

	batch, err := newTestBatcher(source, true).Fetch(context.Background(), makeTerms(75), geo.Scope{Code: "US"}, keyword.Window{})

	require.NoError(t, err)
	assert.Len(t, source.calls, 4, "the failing chunk is retried once, the rest are fetched")
	assert.Len(t, batch.Series, 45)
	require.Len(t, batch.Failures, 1)
	assert.Equal(t, makeTerms(75)[30:60], batch.Failures[0].Terms)
	assert.True(t, errors.Is(batch.Failures[0].Err, upstream.ErrRetriesExhausted))
}

func TestFetchPropagatesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	source := &cancelingTimelines{cancel: cancel}

	_, err := newTestBatcher(source, true).Fetch(ctx, makeTerms(40), geo.Scope{Code: "US"}, keyword.Window{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, source.calls)
}

func TestFetchRequestTimeoutIsChunkFailure(t *testing.T) {
	timeout := fmt.Errorf("Client.Timeout exceeded: %w", context.DeadlineExceeded)
	source := &fakeTimelines{fail: map[int]error{0: timeout, 1: timeout}}

	batch, err := newTestBatcher(source, true).Fetch(context.Background(), makeTerms(40), geo.Scope{Code: "US"}, keyword.Window{})

	require.NoError(t, err)
	require.Len(t, batch.Failures, 1)
	assert.Equal(t, 0, batch.Failures[0].Index)
	assert.Equal(t, makeTerms(40)[30:], seriesTerms(batch.Series))
}

// cancelingTimelines cancels the caller's context on its first call
type cancelingTimelines struct {
	cancel context.CancelFunc
	calls  int
}

func (c *cancelingTimelines) TimelinesForHealth(ctx context.Context, terms []string, scope geo.Scope, window keyword.Window) ([]keyword.TermSeries, error) {
	c.calls++
	c.cancel()
	return nil, ctx.Err()
}
