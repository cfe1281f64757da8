// internal/service/volume/batcher.go

package volume

import (
	"context"
	"fmt"
	"log/slog"

	"wallace/internal/domain/geo"
	"wallace/internal/domain/keyword"
	"wallace/internal/service/remote"
)

// MaxBatchSize is the most terms the timelines endpoint accepts per call
const MaxBatchSize = 30

// TimelineSource fetches raw point series for a bounded set of terms
type TimelineSource interface {
	TimelinesForHealth(ctx context.Context, terms []string, scope geo.Scope, window keyword.Window) ([]keyword.TermSeries, error)
}

// BatcherConfig contains configuration for the batcher
type BatcherConfig struct {
	BatchSize int
	// Partial keeps the series of successful chunks when others fail
	Partial bool
}

// ChunkFailure records a chunk that produced no series
type ChunkFailure struct {
	Index int      `json:"index"`
	Terms []string `json:"terms"`
	Err   error    `json:"-"`
}

// Error returns the failure cause, "no data" when the chunk was simply empty
func (f ChunkFailure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("chunk %d: no data", f.Index)
	}
	return fmt.Sprintf("chunk %d: %v", f.Index, f.Err)
}

// Batch is the concatenated result of all chunk calls
type Batch struct {
	Series   []keyword.TermSeries
	Failures []ChunkFailure
	Calls    int
}

// Complete reports whether every chunk returned data
func (b Batch) Complete() bool {
	return len(b.Failures) == 0
}

// Batcher splits term lists into endpoint-sized chunks and fetches them in order
type Batcher struct {
	source TimelineSource
	caller *remote.Caller
	config BatcherConfig
	logger *slog.Logger
}

// NewBatcher creates a new batcher
func NewBatcher(source TimelineSource, caller *remote.Caller, logger *slog.Logger, config BatcherConfig) *Batcher {
	if config.BatchSize <= 0 || config.BatchSize > MaxBatchSize {
		config.BatchSize = MaxBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Batcher{
		source: source,
		caller: caller,
		config: config,
		logger: logger,
	}
}

// Chunk partitions terms into consecutive chunks of at most size terms
func Chunk(terms []string, size int) ([][]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid chunk size %d", size)
	}

	chunks := make([][]string, 0, (len(terms)+size-1)/size)
	for start := 0; start < len(terms); start += size {
		end := start + size
		if end > len(terms) {
			end = len(terms)
		}
		chunks = append(chunks, terms[start:end])
	}
	return chunks, nil
}

// Fetch issues one timelines call per chunk, in order, and concatenates the series.
// Unless the batcher is partial, a chunk without data empties the whole batch.
func (b *Batcher) Fetch(ctx context.Context, terms []string, scope geo.Scope, window keyword.Window) (Batch, error) {
	chunks, err := Chunk(terms, b.config.BatchSize)
	if err != nil {
		return Batch{}, err
	}

	var batch Batch
	for i, chunk := range chunks {
		var series []keyword.TermSeries
		batch.Calls++
		outcome, err := b.caller.Do(ctx, remote.VolumePolicy, fmt.Sprintf("chunk %d/%d", i+1, len(chunks)), func(ctx context.Context) error {
			var err error
			series, err = b.source.TimelinesForHealth(ctx, chunk, scope, window)
			return err
		})
		if err != nil && ctx.Err() != nil {
			return Batch{}, ctx.Err()
		}

		if err == nil && outcome == remote.Data {
			batch.Series = append(batch.Series, series...)
			continue
		}

		failure := ChunkFailure{Index: i, Terms: chunk, Err: err}
		batch.Failures = append(batch.Failures, failure)
		b.logger.Info("Volume chunk returned no data", "chunk", i, "terms", len(chunk), "error", err)

		if !b.config.Partial {
			b.logger.Info("Discarding volume batch after failed chunk", "chunks", len(chunks))
			batch.Series = nil
			return batch, nil
		}
	}

	return batch, nil
}
