package model

// #region imports
import (
	"errors"
	"fmt"
	"sort"
)

// #endregion

// #region errors

// ErrDuplicateCandidate is returned when a candidate ID is added twice.
var ErrDuplicateCandidate = errors.New("duplicate candidate id")

// #endregion

// #region ranked-list

// RankedList is an ordered collection of candidates, score-descending.
// Rank is the 1-indexed position. Ties keep first-seen insertion order,
// so two lists built from the same inputs are always identical.
type RankedList struct {
	items []CandidateItem
	index map[string]int // id → insertion position
}

// NewRankedList returns an empty ranked list.
func NewRankedList() *RankedList {
	return &RankedList{index: make(map[string]int)}
}

// Add appends a candidate. Duplicate IDs are rejected.
func (l *RankedList) Add(item CandidateItem) error {
	if item.ID == "" {
		return errors.New("candidate id must not be empty")
	}
	if _, ok := l.index[item.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCandidate, item.ID)
	}
	l.index[item.ID] = len(l.items)
	l.items = append(l.items, item)
	return nil
}

// Len returns the number of candidates.
func (l *RankedList) Len() int { return len(l.items) }

// Contains reports whether the ID is present.
func (l *RankedList) Contains(id string) bool {
	_, ok := l.index[id]
	return ok
}

// #endregion ranked-list

// #region ordering

// Items returns candidates in rank order: score-descending, with ties
// broken by insertion order (first seen wins).
func (l *RankedList) Items() []CandidateItem {
	out := make([]CandidateItem, len(l.items))
	copy(out, l.items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// IDs returns candidate IDs in rank order.
func (l *RankedList) IDs() []string {
	items := l.Items()
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

// TopN returns the first n candidates in rank order (fewer if the list
// is shorter).
func (l *RankedList) TopN(n int) []CandidateItem {
	items := l.Items()
	if n > len(items) {
		n = len(items)
	}
	if n < 0 {
		n = 0
	}
	return items[:n]
}

// #endregion ordering

// #region clone

// Clone returns an independent copy preserving insertion order, so the
// original list can be re-ranked elsewhere without being disturbed.
func (l *RankedList) Clone() *RankedList {
	out := NewRankedList()
	for _, it := range l.items {
		item := it
		item.Biomarkers = append([]string(nil), it.Biomarkers...)
		out.index[item.ID] = len(out.items)
		out.items = append(out.items, item)
	}
	return out
}

// #endregion clone
