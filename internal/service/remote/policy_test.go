package remote

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

	"wallace/internal/domain/upstream"
)

// recordingSleeper captures backoff delays without waiting
type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func newTestCaller(retry RetryConfig) (*Caller, *recordingSleeper) {
	s := &recordingSleeper{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCaller(retry, WithSleeper(s.sleep), WithLogger(logger)), s
}

// scripted returns the errors in order, then nil
func scripted(errs ...error) (func(ctx context.Context) error, *int) {
	calls := 0
	return func(ctx context.Context) error {
		calls++
		if calls <= len(errs) {
			return errs[calls-1]
		}
		return nil
	}, &calls
}

func status(code int) error {
	return &upstream.StatusError{Code: code, Message: "test"}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		policy Policy
		want   Class
	}{
		{"success", nil, QueryPolicy, ClassOK},
		{"empty body", upstream.ErrEmptyResponse, QueryPolicy, ClassEmpty},
		{"wrapped empty body", fmt.Errorf("decode: %w", upstream.ErrEmptyResponse), VolumePolicy, ClassEmpty},
		{"query 400", status(400), QueryPolicy, ClassNoData},
		{"query 404", status(404), QueryPolicy, ClassUnclassified},
		{"topic 404", status(404), TopicPolicy, ClassNoData},
		{"volume 404", status(404), VolumePolicy, ClassNoData},
		{"volume 400", status(400), VolumePolicy, ClassUnclassified},
		{"rate limited", status(429), QueryPolicy, ClassRateLimited},
		{"server error", status(503), VolumePolicy, ClassServerError},
		{"search quota", status(403), SearchPolicy, ClassFatal},
		{"search 400", status(400), SearchPolicy, ClassNoData},
		{"unknown error", errors.New("boom"), QueryPolicy, ClassUnclassified},
		{"canceled", context.Canceled, QueryPolicy, ClassCanceled},
		{"request timeout", fmt.Errorf("get: %w", context.DeadlineExceeded), QueryPolicy, ClassTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err, tt.policy))
		})
	}
}

func TestDelay(t *testing.T) {
	retry := DefaultRetryConfig()

	assert.Equal(t, 2*time.Second, retry.Delay(2*time.Second, 0))
	assert.Equal(t, 4*time.Second, retry.Delay(2*time.Second, 1))
	assert.Equal(t, 16*time.Second, retry.Delay(2*time.Second, 3))
	assert.Equal(t, 30*time.Second, retry.Delay(2*time.Second, 4))
	assert.Equal(t, 30*time.Second, retry.Delay(2*time.Second, 50))
}

func TestDoRateLimitedThenSuccess(t *testing.T) {
	caller, sleeper := newTestCaller(DefaultRetryConfig())
	fn, calls := scripted(status(429))

	outcome, err := caller.Do(context.Background(), QueryPolicy, "flu", fn)

	require.NoError(t, err)
	assert.Equal(t, Data, outcome)
	assert.Equal(t, 2, *calls)
	assert.Equal(t, []time.Duration{2 * time.Second}, sleeper.delays)
}

func TestDoServerErrorBacksOffExponentially(t *testing.T) {
	caller, sleeper := newTestCaller(DefaultRetryConfig())
	fn, calls := scripted(status(500), status(502), status(503))

	outcome, err := caller.Do(context.Background(), QueryPolicy, "flu", fn)

	require.NoError(t, err)
	assert.Equal(t, Data, outcome)
	assert.Equal(t, 4, *calls)
	assert.Equal(t, []time.Duration{3 * time.Second, 6 * time.Second, 12 * time.Second}, sleeper.delays)
}

func TestDoRetriesExhausted(t *testing.T) {
	retry := DefaultRetryConfig()
	retry.MaxRetries = 2
	caller, sleeper := newTestCaller(retry)
	fn, calls := scripted(status(429), status(429), status(429), status(429))

	outcome, err := caller.Do(context.Background(), VolumePolicy, "chunk 1/1", fn)

	assert.Equal(t, NoData, outcome)
	require.Error(t, err)
	assert.True(t, errors.Is(err, upstream.ErrRetriesExhausted))

	var exhausted *upstream.RetriesExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, 3, *calls)
	assert.Len(t, sleeper.delays, 2)
}

func TestDoNoDataOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		policy Policy
	}{
		{"empty body", upstream.ErrEmptyResponse, QueryPolicy},
		{"query bad request", status(400), QueryPolicy},
		{"volume not found", status(404), VolumePolicy},
		{"unclassified downgraded", errors.New("connection reset"), QueryPolicy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller, sleeper := newTestCaller(DefaultRetryConfig())
			fn, calls := scripted(tt.err)

			outcome, err := caller.Do(context.Background(), tt.policy, "op", fn)

			require.NoError(t, err)
			assert.Equal(t, NoData, outcome)
			assert.Equal(t, 1, *calls)
			assert.Empty(t, sleeper.delays)
		})
	}
}

func TestDoStrictSurfacesUnclassified(t *testing.T) {
	retry := DefaultRetryConfig()
	retry.Strict = true
	caller, _ := newTestCaller(retry)
	cause := errors.New("connection reset")
	fn, _ := scripted(cause)

	outcome, err := caller.Do(context.Background(), QueryPolicy, "flu", fn)

	assert.Equal(t, NoData, outcome)
	var unclassified *upstream.UnclassifiedError
	require.True(t, errors.As(err, &unclassified))
	assert.ErrorIs(t, err, cause)
}

func TestDoFatal(t *testing.T) {
	caller, sleeper := newTestCaller(DefaultRetryConfig())
	fn, calls := scripted(status(403))

	_, err := caller.Do(context.Background(), SearchPolicy, "flu", fn)

	var fatal *upstream.FatalError
	require.True(t, errors.As(err, &fatal))
	assert.Equal(t, 1, *calls)
	assert.Empty(t, sleeper.delays)
}

func TestDoCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &recordingSleeper{}
	caller := NewCaller(DefaultRetryConfig(), WithSleeper(func(ctx context.Context, d time.Duration) error {
		cancel()
		return s.sleep(ctx, d)
	}), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	fn, calls := scripted(status(429), status(429))

	_, err := caller.Do(ctx, QueryPolicy, "flu", fn)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, *calls)
}

func TestDoCanceledCall(t *testing.T) {
	caller, _ := newTestCaller(DefaultRetryConfig())
	ctx, cancel := context.WithCancel(context.Background())
	fn := func(ctx context.Context) error {
		cancel()
		return fmt.Errorf("get: %w", ctx.Err())
	}

	_, err := caller.Do(ctx, QueryPolicy, "flu", fn)
	assert.Equal(t, context.Canceled, err)
}

func TestDoCallerDeadline(t *testing.T) {
	caller, sleeper := newTestCaller(DefaultRetryConfig())
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	fn := func(ctx context.Context) error {
		<-ctx.Done()
		return fmt.Errorf("get: %w", ctx.Err())
	}

	_, err := caller.Do(ctx, QueryPolicy, "flu", fn)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, sleeper.delays)
}

func TestDoRequestTimeoutIsRetried(t *testing.T) {
	caller, sleeper := newTestCaller(DefaultRetryConfig())
	timeout := fmt.Errorf("Client.Timeout exceeded: %w", context.DeadlineExceeded)
	fn, calls := scripted(timeout)

	outcome, err := caller.Do(context.Background(), QueryPolicy, "flu", fn)

	require.NoError(t, err)
	assert.Equal(t, Data, outcome)
	assert.Equal(t, 2, *calls)
	assert.Equal(t, []time.Duration{3 * time.Second}, sleeper.delays)
}

func TestDoRequestTimeoutsExhaustRetries(t *testing.T) {
	retry := DefaultRetryConfig()
	retry.MaxRetries = 1
	caller, _ := newTestCaller(retry)
	timeout := fmt.Errorf("Client.Timeout exceeded: %w", context.DeadlineExceeded)
	fn, _ := scripted(timeout, timeout)

	_, err := caller.Do(context.Background(), QueryPolicy, "flu", fn)

	assert.ErrorIs(t, err, upstream.ErrRetriesExhausted)
}

func TestDoStrayCanceledErrorIsUnclassified(t *testing.T) {
	caller, _ := newTestCaller(DefaultRetryConfig())
	fn, _ := scripted(context.Canceled)

	outcome, err := caller.Do(context.Background(), QueryPolicy, "flu", fn)
	require.NoError(t, err)
	assert.Equal(t, NoData, outcome)
}

func TestDoClassesShareAttemptCounter(t *testing.T) {
	retry := DefaultRetryConfig()
	retry.MaxRetries = 2
	caller, sleeper := newTestCaller(retry)
	fn, calls := scripted(status(429), status(503), status(503))

	_, err := caller.Do(context.Background(), QueryPolicy, "flu", fn)

	assert.ErrorIs(t, err, upstream.ErrRetriesExhausted)
	assert.Equal(t, 3, *calls)
	// The server error after one rate limit backs off as the second attempt
	assert.Equal(t, []time.Duration{2 * time.Second, 6 * time.Second}, sleeper.delays)
}

func TestSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}
