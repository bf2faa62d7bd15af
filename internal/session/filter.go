// Package session implements the flashcard session engine: filtering parsed
// records against the learned set, the viewing cursor, and the timer that
// advances it.
package session

import "github.com/verte-zerg/tuivoc/internal/model"

// LearnedSet is the set of terms excluded from review. Membership is exact and
// case-sensitive.
type LearnedSet map[string]struct{}

// NewLearnedSet builds a set from terms.
func NewLearnedSet(terms ...string) LearnedSet {
	set := make(LearnedSet, len(terms))
	for _, term := range terms {
		set[term] = struct{}{}
	}
	return set
}

// Has reports whether term is learned.
func (s LearnedSet) Has(term string) bool {
	_, ok := s[term]
	return ok
}

// Add inserts term.
func (s LearnedSet) Add(term string) {
	s[term] = struct{}{}
}

// Clone returns an independent copy.
func (s LearnedSet) Clone() LearnedSet {
	out := make(LearnedSet, len(s))
	for term := range s {
		out[term] = struct{}{}
	}
	return out
}

// BuildActiveSet keeps the records whose term is not learned, preserving order.
func BuildActiveSet(records []model.Record, learned LearnedSet) []model.Record {
	active := make([]model.Record, 0, len(records))
	for _, rec := range records {
		if learned.Has(rec.Term) {
			continue
		}
		active = append(active, rec)
	}
	return active
}

// MarkLearned removes the record at position from active and returns the new
// active set along with a snapshot of learned that includes its term. An empty
// set or an out-of-range position is a no-op and reports false.
func MarkLearned(active []model.Record, position int, learned LearnedSet) ([]model.Record, LearnedSet, bool) {
	if position < 0 || position >= len(active) {
		return active, learned, false
	}
	snapshot := learned.Clone()
	snapshot.Add(active[position].Term)

	next := make([]model.Record, 0, len(active)-1)
	next = append(next, active[:position]...)
	next = append(next, active[position+1:]...)
	return next, snapshot, true
}
