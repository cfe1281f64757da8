// internal/service/volume/aggregator.go

package volume

import "wallace/internal/domain/keyword"

// Aggregate converts raw series into weights that sum to 1, in input order.
// A zero grand total yields an empty result.
func Aggregate(series []keyword.TermSeries) []keyword.RelativeVolume {
	totals := make([]float64, len(series))
	grand := 0.0
	for i, s := range series {
		totals[i] = s.Total()
		grand += totals[i]
	}

	if grand == 0 {
		return []keyword.RelativeVolume{}
	}

	volumes := make([]keyword.RelativeVolume, 0, len(series))
	for i, s := range series {
		volumes = append(volumes, keyword.RelativeVolume{Term: s.Term, Weight: totals[i] / grand})
	}
	return volumes
}
