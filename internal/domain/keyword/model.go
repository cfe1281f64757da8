// internal/domain/keyword/model.go

package keyword

// Window is a date range passed to the trends API ("2004-01" or "2004-01-31" style dates)
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Query is a related query returned by the discovery endpoint
type Query struct {
	Term  string  `json:"term"`
	Score float64 `json:"score"`
}

// Topic is a related topic returned by the discovery endpoint
type Topic struct {
	Title string  `json:"title"`
	MID   string  `json:"mid"`
	Value float64 `json:"value"`
}

// QueryNode is one discovered keyword and its score at discovery time
type QueryNode struct {
	Term     string       `json:"term"`
	Score    float64      `json:"score"`
	Level    int          `json:"level"`
	Children []*QueryNode `json:"children,omitempty"`
}

// Row is an export-ready view of a QueryNode
type Row struct {
	Query string  `json:"query"`
	Value float64 `json:"value"`
	Level int     `json:"level"`
}

// Flatten walks the tree depth-first, parents before children, preserving sibling order
func Flatten(roots []*QueryNode) []Row {
	var rows []Row
	var walk func(nodes []*QueryNode)
	walk = func(nodes []*QueryNode) {
		for _, n := range nodes {
			rows = append(rows, Row{Query: n.Term, Value: n.Score, Level: n.Level})
			walk(n.Children)
		}
	}
	walk(roots)
	return rows
}

// Terms returns the flattened term list in Flatten order
func Terms(roots []*QueryNode) []string {
	rows := Flatten(roots)
	terms := make([]string, 0, len(rows))
	for _, r := range rows {
		terms = append(terms, r.Query)
	}
	return terms
}

// Depth returns the deepest level present in the tree, 0 for an empty tree
func Depth(roots []*QueryNode) int {
	depth := 0
	for _, r := range Flatten(roots) {
		if r.Level > depth {
			depth = r.Level
		}
	}
	return depth
}

// VolumePoint is one sample of a term's search volume
type VolumePoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// TermSeries is the raw point series for one term
type TermSeries struct {
	Term   string        `json:"term"`
	Points []VolumePoint `json:"points"`
}

// Total sums the series' point values
func (s TermSeries) Total() float64 {
	total := 0.0
	for _, p := range s.Points {
		total += p.Value
	}
	return total
}

// RelativeVolume is a term's share of the total search volume of one aggregation
type RelativeVolume struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}
