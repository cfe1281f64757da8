// internal/service/expansion/seen.go

package expansion

// SeenSet is the dedup set of one expansion pass. Seed terms are rejected
// like any seen term but are not counted as accepted terms.
// It is owned by the goroutine running the pass and is not safe for concurrent use.
type SeenSet struct {
	seeds map[string]struct{}
	terms map[string]struct{}
	order []string
}

// NewSeenSet creates an empty set for a pass started from seed
func NewSeenSet(seed string) *SeenSet {
	s := &SeenSet{seeds: make(map[string]struct{}), terms: make(map[string]struct{})}
	s.Exclude(seed)
	return s
}

// Exclude rejects term from now on without counting it as accepted
func (s *SeenSet) Exclude(term string) {
	if term != "" {
		s.seeds[term] = struct{}{}
	}
}

// Add inserts term and reports whether it was accepted
func (s *SeenSet) Add(term string) bool {
	if s.Contains(term) {
		return false
	}
	s.terms[term] = struct{}{}
	s.order = append(s.order, term)
	return true
}

// Contains reports whether term is a seed or has been accepted
func (s *SeenSet) Contains(term string) bool {
	if _, ok := s.seeds[term]; ok {
		return true
	}
	_, ok := s.terms[term]
	return ok
}

// Len returns the number of accepted terms
func (s *SeenSet) Len() int {
	return len(s.terms)
}

// Terms returns the accepted terms in insertion order
func (s *SeenSet) Terms() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
