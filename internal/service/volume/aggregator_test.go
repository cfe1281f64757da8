package volume

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallace/internal/domain/keyword"
)

func series(term string, values ...float64) keyword.TermSeries {
	s := keyword.TermSeries{Term: term}
	for _, v := range values {
		s.Points = append(s.Points, keyword.VolumePoint{Value: v})
	}
	return s
}

func TestAggregate(t *testing.T) {
	volumes := Aggregate([]keyword.TermSeries{
		series("flu symptoms", 1, 2),
		series("flu shot", 3, 4),
	})

	require.Len(t, volumes, 2)
	assert.Equal(t, "flu symptoms", volumes[0].Term)
	assert.InDelta(t, 0.3, volumes[0].Weight, 1e-9)
	assert.Equal(t, "flu shot", volumes[1].Term)
	assert.InDelta(t, 0.7, volumes[1].Weight, 1e-9)
}

func TestAggregateSumsToOne(t *testing.T) {
	volumes := Aggregate([]keyword.TermSeries{
		series("a", 13, 7),
		series("b"),
		series("c", 0.5),
		series("d", 99, 1, 3),
	})

	sum := 0.0
	for _, v := range volumes {
		assert.GreaterOrEqual(t, v.Weight, 0.0)
		sum += v.Weight
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Equal(t, 0.0, volumes[1].Weight)
}

func TestAggregateZeroTotal(t *testing.T) {
	assert.Empty(t, Aggregate(nil))
	assert.Empty(t, Aggregate([]keyword.TermSeries{series("a", 0), series("b")}))
}
