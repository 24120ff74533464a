package model

// #region query-entity

// QueryEntity is the structured patient representation produced by the
// profiling phase. It is read-only once built; downstream phases only
// consume it.
type QueryEntity struct {
	Demographics     map[string]string
	Diagnoses        string
	Biomarkers       []string
	TreatmentHistory []string
	SearchTerms      []string
}

// #endregion query-entity

// #region candidate-item

// CandidateItem is one clinical trial under ranking.
type CandidateItem struct {
	ID              string // NCT identifier, e.g. NCT01234567
	Title           string
	Description     string
	Phase           string
	Status          string
	Biomarkers      []string
	Criteria        string // raw eligibility criteria text
	Score           float64
	RankExplanation string
}

// #endregion candidate-item

// #region passage

// Passage is a piece of retrieved knowledge supporting a ranking decision.
type Passage struct {
	SourceID string
	Category string
	Text     string
	Score    float64
}

// #endregion passage
