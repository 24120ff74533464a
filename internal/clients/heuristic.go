package clients

// #region imports
import (
	"context"
	"strings"
	"unicode"

	"trialmatch/internal/model"
)

// #endregion

// #region heuristic-scorer

// HeuristicScorer is a deterministic lexical RelevanceScorer: the score
// is the fraction of patient terms the trial text mentions, boosted by
// evidence passages that mention the trial's own terms. It is the
// offline stand-in for the LLM scorer and the scorer used in tests.
type HeuristicScorer struct{}

// NewHeuristicScorer returns the lexical scorer.
func NewHeuristicScorer() *HeuristicScorer { return &HeuristicScorer{} }

// Score grades the candidate 0–100 from term overlap.
func (s *HeuristicScorer) Score(ctx context.Context, entity *model.QueryEntity, candidate model.CandidateItem, evidence []model.Passage) (float64, error) {
	terms := patientTerms(entity)
	if len(terms) == 0 {
		return 0, nil
	}

	trialText := strings.ToLower(candidate.Title + " " + candidate.Description + " " + candidate.Criteria)
	hits := 0
	for term := range terms {
		if strings.Contains(trialText, term) {
			hits++
		}
	}
	base := 100 * float64(hits) / float64(len(terms))

	// Evidence that mentions the trial's matched terms nudges the score
	// up, capped so evidence alone cannot dominate.
	bonus := 0.0
	for _, p := range evidence {
		lower := strings.ToLower(p.Text)
		for term := range terms {
			if strings.Contains(lower, term) && strings.Contains(trialText, term) {
				bonus += 2
			}
		}
	}
	if bonus > 20 {
		bonus = 20
	}

	score := base + bonus
	if score > 100 {
		score = 100
	}
	return score, nil
}

// patientTerms collects lowercase match terms from the query entity.
func patientTerms(entity *model.QueryEntity) map[string]bool {
	terms := make(map[string]bool)
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if len(s) >= 3 {
			terms[s] = true
		}
	}
	for _, b := range entity.Biomarkers {
		add(b)
	}
	for _, t := range entity.SearchTerms {
		add(t)
	}
	for _, w := range strings.Fields(entity.Diagnoses) {
		w = strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if len(w) >= 5 {
			add(w)
		}
	}
	return terms
}

// #endregion heuristic-scorer

// #region plain-extractor

// PlainTextExtractor implements NarrativeExtractor for documents whose
// text is already extracted upstream: it normalizes whitespace and
// strips control characters.
type PlainTextExtractor struct{}

// NewPlainTextExtractor returns the pass-through extractor.
func NewPlainTextExtractor() *PlainTextExtractor { return &PlainTextExtractor{} }

// Extract returns the cleaned document text.
func (e *PlainTextExtractor) Extract(ctx context.Context, raw []byte) (string, error) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range string(raw) {
		if r == '\n' || r == '\t' || unicode.IsPrint(r) {
			b.WriteRune(r)
		}
	}
	lines := strings.Split(b.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

// #endregion plain-extractor
