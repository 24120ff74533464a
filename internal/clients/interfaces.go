// Package clients declares the external collaborator contracts the
// matching core calls out to, plus the adapters that implement them.
// The core depends only on these interfaces, never on transport detail.
package clients

// #region imports
import (
	"context"

	"trialmatch/internal/model"
)

// #endregion

// #region contracts

// TrialSearcher queries an external trial registry. Zero results is a
// valid outcome, not an error; implementations fail only on transport
// problems.
type TrialSearcher interface {
	Search(ctx context.Context, terms []string) ([]model.CandidateItem, error)
}

// KnowledgeRetriever returns supporting passages for a query, bounded
// to k. It returns an empty slice, not an error, when the backing index
// has no match.
type KnowledgeRetriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]model.Passage, error)
}

// RelevanceScorer scores a candidate against the patient given the
// retrieved evidence, on a 0–100 scale. Implementations must be
// deterministic for identical inputs (LLM backends run at temperature 0).
type RelevanceScorer interface {
	Score(ctx context.Context, entity *model.QueryEntity, candidate model.CandidateItem, evidence []model.Passage) (float64, error)
}

// NarrativeExtractor turns a raw patient document into free text.
// Invoked once per run, by the profiling phase only.
type NarrativeExtractor interface {
	Extract(ctx context.Context, raw []byte) (string, error)
}

// #endregion contracts
