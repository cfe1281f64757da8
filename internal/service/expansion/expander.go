// internal/service/expansion/expander.go

package expansion

import (
	"context"
	"fmt"
	"log/slog"

	"wallace/internal/domain/geo"
	"wallace/internal/domain/keyword"
	"wallace/internal/service/remote"
)

// DefaultMaxDepth is the reference number of expansion levels
const DefaultMaxDepth = 3

// QuerySource returns related queries for a term
type QuerySource interface {
	TopQueries(ctx context.Context, term string, scope geo.Scope, window keyword.Window) ([]keyword.Query, error)
}

// ExpanderConfig contains configuration for the expander
type ExpanderConfig struct {
	MaxDepth int
	// OnLevel is called after each completed level with the nodes accepted at it
	OnLevel func(level int, accepted []*keyword.QueryNode)
}

// Failure records a node whose discovery call failed rather than returning no data
type Failure struct {
	Term  string `json:"term"`
	Level int    `json:"level"`
	Err   error  `json:"-"`
}

func (f Failure) Error() string {
	return fmt.Sprintf("expand %q at level %d: %v", f.Term, f.Level, f.Err)
}

// Result is the output of one expansion pass
type Result struct {
	Roots    []*keyword.QueryNode
	Seen     *SeenSet
	Failures []Failure
}

// Expander builds the keyword tree level by level
type Expander struct {
	source QuerySource
	caller *remote.Caller
	config ExpanderConfig
	logger *slog.Logger
}

// NewExpander creates a new expander
func NewExpander(source QuerySource, caller *remote.Caller, logger *slog.Logger, config ExpanderConfig) *Expander {
	if config.MaxDepth <= 0 {
		config.MaxDepth = DefaultMaxDepth
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Expander{
		source: source,
		caller: caller,
		config: config,
		logger: logger,
	}
}

// Expand runs one pass from seed with a fresh SeenSet
func (e *Expander) Expand(ctx context.Context, seed string, scope geo.Scope, window keyword.Window) (*Result, error) {
	return e.ExpandInto(ctx, seed, scope, window, NewSeenSet(seed))
}

// ExpandInto runs one pass from seed, deduplicating against seen.
// The seed is excluded from seen first, so it never appears in its own tree.
// Each level is fully expanded, in order, before the next one starts.
func (e *Expander) ExpandInto(ctx context.Context, seed string, scope geo.Scope, window keyword.Window, seen *SeenSet) (*Result, error) {
	seen.Exclude(seed)
	result := &Result{Seen: seen}
	p := &pass{scope: scope, window: window, seen: seen, result: result}
	log := e.logger.With("seed", seed, "scope", scope.Code)

	roots, err := e.children(ctx, p, seed, 1)
	if err != nil {
		return nil, err
	}
	result.Roots = roots
	e.levelDone(1, roots)

	frontier := roots
	for level := 2; level <= e.config.MaxDepth && len(frontier) > 0; level++ {
		var next []*keyword.QueryNode
		for _, parent := range frontier {
			kids, err := e.children(ctx, p, parent.Term, level)
			if err != nil {
				return nil, err
			}
			parent.Children = append(parent.Children, kids...)
			next = append(next, kids...)
		}
		log.Info("Expanded level", "level", level, "accepted", len(next), "seen", seen.Len())
		e.levelDone(level, next)
		frontier = next
	}

	return result, nil
}

// pass is the state threaded through one expansion
type pass struct {
	scope  geo.Scope
	window keyword.Window
	seen   *SeenSet
	result *Result
}

// children fetches related queries for term and accepts the unseen ones at level
func (e *Expander) children(ctx context.Context, p *pass, term string, level int) ([]*keyword.QueryNode, error) {
	var queries []keyword.Query
	outcome, err := e.caller.Do(ctx, remote.QueryPolicy, term, func(ctx context.Context) error {
		var err error
		queries, err = e.source.TopQueries(ctx, term, p.scope, p.window)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Error("Discovery failed, node keeps no children", "term", term, "level", level, "error", err)
		p.result.Failures = append(p.result.Failures, Failure{Term: term, Level: level, Err: err})
		return nil, nil
	}
	if outcome == remote.NoData {
		return nil, nil
	}

	var accepted []*keyword.QueryNode
	for _, q := range queries {
		if !p.seen.Add(q.Term) {
			continue
		}
		e.logger.Debug("Adding term to seed set", "term", q.Term, "level", level)
		accepted = append(accepted, &keyword.QueryNode{Term: q.Term, Score: q.Score, Level: level})
	}
	return accepted, nil
}

func (e *Expander) levelDone(level int, accepted []*keyword.QueryNode) {
	if e.config.OnLevel != nil {
		e.config.OnLevel(level, accepted)
	}
}
