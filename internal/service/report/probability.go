// internal/service/report/probability.go

package report

import (
	"context"
	"errors"
	"log/slog"

	"wallace/internal/adapter/search"
	"wallace/internal/domain/keyword"
	"wallace/internal/domain/upstream"
	"wallace/internal/service/remote"
)

// clickThrough is the share of clicks by organic result position (Chitika study)
var clickThrough = map[int]float64{
	1: 0.35,
	2: 0.20,
	3: 0.15,
	4: 0.08,
	5: 0.07,
	6: 0.05,
	7: 0.04,
	8: 0.03,
	9: 0.02,
}

// ClickThroughRate returns the click-through rate of a result position
func ClickThroughRate(position int) float64 {
	if rate, ok := clickThrough[position]; ok {
		return rate
	}
	return 0.01
}

// SiteProbability is the chance a searcher lands on a result, given its query's weight
func SiteProbability(weight float64, position int) float64 {
	return weight * ClickThroughRate(position)
}

// Searcher runs a web search
type Searcher interface {
	Search(ctx context.Context, q string) ([]search.Result, error)
}

// Row is one line of the site probability report
type Row struct {
	InitialQuery    string  `json:"initial_search_query"`
	Query           string  `json:"query"`
	Position        int     `json:"position"`
	Link            string  `json:"link"`
	DisplayLink     string  `json:"displayLink"`
	SiteProbability float64 `json:"site_probability"`
}

// Builder builds site probability reports
type Builder struct {
	searcher Searcher
	caller   *remote.Caller
	logger   *slog.Logger
}

// NewBuilder creates a new report builder
func NewBuilder(searcher Searcher, caller *remote.Caller, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{searcher: searcher, caller: caller, logger: logger}
}

// Build searches every weighted term in order. A spent quota stops the report;
// the rows gathered so far are returned with the error.
func (b *Builder) Build(ctx context.Context, initialQuery string, volumes []keyword.RelativeVolume) ([]Row, error) {
	var rows []Row
	for _, v := range volumes {
		var results []search.Result
		outcome, err := b.caller.Do(ctx, remote.SearchPolicy, v.Term, func(ctx context.Context) error {
			var err error
			results, err = b.searcher.Search(ctx, v.Term)
			return err
		})
		if err != nil {
			var fatal *upstream.FatalError
			if errors.As(err, &fatal) || ctx.Err() != nil {
				return rows, err
			}
			b.logger.Error("Search failed, skipping term", "term", v.Term, "error", err)
			continue
		}
		if outcome == remote.NoData {
			continue
		}

		for i, r := range results {
			position := i + 1
			rows = append(rows, Row{
				InitialQuery:    initialQuery,
				Query:           v.Term,
				Position:        position,
				Link:            r.Link,
				DisplayLink:     r.DisplayLink,
				SiteProbability: SiteProbability(v.Weight, position),
			})
		}
	}
	return rows, nil
}
