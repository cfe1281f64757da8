// internal/service/remote/policy.go

package remote

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"wallace/internal/domain/upstream"
)

// Outcome is the result of a policy-wrapped call
type Outcome int

const (
	// Data means the call returned a payload
	Data Outcome = iota
	// NoData is a valid empty result the caller treats as zero results
	NoData
)

func (o Outcome) String() string {
	if o == Data {
		return "data"
	}
	return "no_data"
}

// Class is the classification of a single attempt
type Class int

const (
	ClassOK Class = iota
	ClassEmpty
	ClassNoData
	ClassRateLimited
	ClassServerError
	ClassTimeout
	ClassFatal
	ClassUnclassified
	ClassCanceled
)

func (c Class) String() string {
	switch c {
	case ClassOK:
		return "ok"
	case ClassEmpty:
		return "empty"
	case ClassNoData:
		return "no_data"
	case ClassRateLimited:
		return "rate_limited"
	case ClassServerError:
		return "server_error"
	case ClassTimeout:
		return "timeout"
	case ClassFatal:
		return "fatal"
	case ClassCanceled:
		return "canceled"
	default:
		return "unclassified"
	}
}

// Policy is the error-handling table of one endpoint family
type Policy struct {
	Name             string
	NoDataCodes      []int
	FatalCodes       []int
	RateLimitDelay   time.Duration
	ServerErrorDelay time.Duration
}

// Reference tables for the trends endpoints and the web search endpoint
var (
	QueryPolicy = Policy{
		Name:             "top_queries",
		NoDataCodes:      []int{http.StatusBadRequest},
		RateLimitDelay:   2 * time.Second,
		ServerErrorDelay: 3 * time.Second,
	}
	TopicPolicy = Policy{
		Name:             "top_topics",
		NoDataCodes:      []int{http.StatusNotFound},
		RateLimitDelay:   2 * time.Second,
		ServerErrorDelay: 1 * time.Second,
	}
	VolumePolicy = Policy{
		Name:             "timelines_for_health",
		NoDataCodes:      []int{http.StatusNotFound},
		RateLimitDelay:   2 * time.Second,
		ServerErrorDelay: 1 * time.Second,
	}
	SearchPolicy = Policy{
		Name:             "custom_search",
		NoDataCodes:      []int{http.StatusBadRequest, http.StatusNotFound},
		FatalCodes:       []int{http.StatusForbidden},
		RateLimitDelay:   2 * time.Second,
		ServerErrorDelay: 1 * time.Second,
	}
)

// Classify maps the error of one attempt onto its class under the policy.
// A deadline error is a per-request timeout; only the caller's own context
// decides cancellation, which Caller.Do checks before classifying.
func Classify(err error, p Policy) Class {
	if err == nil {
		return ClassOK
	}
	if errors.Is(err, context.Canceled) {
		return ClassCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	if errors.Is(err, upstream.ErrEmptyResponse) {
		return ClassEmpty
	}

	var statusErr *upstream.StatusError
	if !errors.As(err, &statusErr) {
		return ClassUnclassified
	}

	code := statusErr.StatusCode()
	switch {
	case contains(p.FatalCodes, code):
		return ClassFatal
	case contains(p.NoDataCodes, code):
		return ClassNoData
	case code == http.StatusTooManyRequests:
		return ClassRateLimited
	case code/100 == 5:
		return ClassServerError
	default:
		return ClassUnclassified
	}
}

func contains(codes []int, code int) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

// RetryConfig bounds the retry loop for transient failures
type RetryConfig struct {
	MaxRetries int
	Multiplier float64
	MaxDelay   time.Duration
	// Strict surfaces unclassified failures instead of downgrading them to NoData
	Strict bool
}

// DefaultRetryConfig returns the default retry bounds
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 5,
		Multiplier: 2,
		MaxDelay:   30 * time.Second,
	}
}

// Delay returns the wait before retry number attempt (0-based) for a class base delay
func (r RetryConfig) Delay(base time.Duration, attempt int) time.Duration {
	delay := float64(base)
	multiplier := r.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	for i := 0; i < attempt; i++ {
		delay *= multiplier
		if r.MaxDelay > 0 && time.Duration(delay) >= r.MaxDelay {
			return r.MaxDelay
		}
	}
	if r.MaxDelay > 0 && time.Duration(delay) > r.MaxDelay {
		return r.MaxDelay
	}
	return time.Duration(delay)
}

// Sleeper blocks for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Caller runs remote calls under a Policy. It holds no per-call state.
type Caller struct {
	retry   RetryConfig
	limiter *rate.Limiter
	sleep   Sleeper
	logger  *slog.Logger
}

// CallerOption configures a Caller
type CallerOption func(*Caller)

// WithLimiter paces every attempt through the limiter
func WithLimiter(l *rate.Limiter) CallerOption {
	return func(c *Caller) { c.limiter = l }
}

// WithSleeper replaces the backoff sleeper
func WithSleeper(s Sleeper) CallerOption {
	return func(c *Caller) { c.sleep = s }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) CallerOption {
	return func(c *Caller) { c.logger = l }
}

// NewCaller creates a new caller
func NewCaller(retry RetryConfig, opts ...CallerOption) *Caller {
	c := &Caller{
		retry:  retry,
		sleep:  Sleep,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do runs fn until it yields a non-transient outcome. fn stores its payload
// through a closure; it is invoked again unchanged on every retry.
//
// Rate limits, server errors and request timeouts share one attempt counter:
// together they spend a single MaxRetries budget, and each backoff grows with
// the total number of attempts so far, whatever the class of earlier ones.
// An error returned after ctx is done is reported as ctx.Err().
func (c *Caller) Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) (Outcome, error) {
	log := c.logger.With("policy", p.Name, "op", op)

	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return NoData, err
			}
		}

		err := fn(ctx)
		if err != nil && ctx.Err() != nil {
			return NoData, ctx.Err()
		}
		class := Classify(err, p)

		var delay time.Duration
		switch class {
		case ClassOK:
			return Data, nil
		case ClassEmpty:
			log.Info("Remote returned an empty response")
			return NoData, nil
		case ClassNoData:
			log.Info("Not enough data returned by remote", "error", err)
			return NoData, nil
		case ClassFatal:
			log.Error("Remote refused the call", "error", err)
			return NoData, &upstream.FatalError{Op: op, Err: err}
		case ClassUnclassified, ClassCanceled:
			if c.retry.Strict {
				log.Error("Unclassified remote error", "error", err)
				return NoData, &upstream.UnclassifiedError{Op: op, Err: err}
			}
			log.Error("Unclassified remote error, continuing without data", "error", err)
			return NoData, nil
		case ClassRateLimited:
			delay = c.retry.Delay(p.RateLimitDelay, attempt)
			log.Warn("Rate limit exceeded, waiting before retry", "attempt", attempt+1, "delay", delay)
		case ClassServerError:
			delay = c.retry.Delay(p.ServerErrorDelay, attempt)
			log.Error("Remote server error, waiting before retry", "attempt", attempt+1, "delay", delay, "error", err)
		case ClassTimeout:
			delay = c.retry.Delay(p.ServerErrorDelay, attempt)
			log.Warn("Remote request timed out, waiting before retry", "attempt", attempt+1, "delay", delay, "error", err)
		}

		if attempt >= c.retry.MaxRetries {
			return NoData, &upstream.RetriesExhaustedError{Op: op, Attempts: attempt + 1, Last: err}
		}
		if err := c.sleep(ctx, delay); err != nil {
			return NoData, err
		}
	}
}
