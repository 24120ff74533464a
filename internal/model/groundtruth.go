package model

// #region imports
import (
	"fmt"
	"sort"
)

// #endregion

// #region confidence

// Confidence is the expert label attached to a ground-truth trial.
// Labels are ordered: low < medium < high < very_high.
type Confidence string

const (
	ConfidenceLow      Confidence = "low"
	ConfidenceMedium   Confidence = "medium"
	ConfidenceHigh     Confidence = "high"
	ConfidenceVeryHigh Confidence = "very_high"
)

// Relevance maps the confidence label to the graded relevance weight
// used by NDCG: low→1 … very_high→4. Unknown labels count as low.
func (c Confidence) Relevance() float64 {
	switch c {
	case ConfidenceVeryHigh:
		return 4
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	default:
		return 1
	}
}

// Valid reports whether the label is one of the four known values.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh, ConfidenceVeryHigh:
		return true
	}
	return false
}

// #endregion confidence

// #region ground-truth-entry

// GroundTruthEntry marks one trial as a correct match for a case.
type GroundTruthEntry struct {
	ID         string     `yaml:"nct_id" json:"nct_id"`
	Confidence Confidence `yaml:"confidence" json:"confidence"`
	Rationale  string     `yaml:"rationale" json:"rationale"`
}

// #endregion ground-truth-entry

// #region ground-truth-set

// GroundTruthSet holds the expert-labeled correct trials for one case,
// keyed by trial ID.
type GroundTruthSet struct {
	entries map[string]GroundTruthEntry
}

// NewGroundTruthSet builds a set from entries, rejecting duplicates and
// unknown confidence labels.
func NewGroundTruthSet(entries []GroundTruthEntry) (GroundTruthSet, error) {
	set := GroundTruthSet{entries: make(map[string]GroundTruthEntry, len(entries))}
	for _, e := range entries {
		if e.ID == "" {
			return GroundTruthSet{}, fmt.Errorf("ground truth entry with empty id")
		}
		if !e.Confidence.Valid() {
			return GroundTruthSet{}, fmt.Errorf("ground truth %s: unknown confidence %q", e.ID, e.Confidence)
		}
		if _, dup := set.entries[e.ID]; dup {
			return GroundTruthSet{}, fmt.Errorf("ground truth %s: duplicate entry", e.ID)
		}
		set.entries[e.ID] = e
	}
	return set, nil
}

// Len returns the number of ground-truth trials.
func (s GroundTruthSet) Len() int { return len(s.entries) }

// Contains reports whether the trial ID is labeled correct.
func (s GroundTruthSet) Contains(id string) bool {
	_, ok := s.entries[id]
	return ok
}

// Relevance returns the graded relevance for a trial ID, 0 if unlabeled.
func (s GroundTruthSet) Relevance(id string) float64 {
	e, ok := s.entries[id]
	if !ok {
		return 0
	}
	return e.Confidence.Relevance()
}

// Entries returns entries sorted by descending relevance, then by ID,
// which is the ideal NDCG ordering.
func (s GroundTruthSet) Entries() []GroundTruthEntry {
	out := make([]GroundTruthEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].Confidence.Relevance(), out[j].Confidence.Relevance()
		if ri != rj {
			return ri > rj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// IDs returns the labeled trial IDs in the Entries order.
func (s GroundTruthSet) IDs() []string {
	entries := s.Entries()
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

// #endregion ground-truth-set
