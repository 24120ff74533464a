// Package phase implements the four workflow phases — profiling,
// discovery, knowledge enhancement, eligibility — each as one generic
// state machine instance with its logic supplied as a state table.
package phase

// #region imports
import (
	"time"

	"trialmatch/internal/clients"
)

// #endregion

// #region deps

// Deps bundles the external collaborators the phases call out to.
type Deps struct {
	Searcher  clients.TrialSearcher
	Retriever clients.KnowledgeRetriever
	Scorer    clients.RelevanceScorer
	Extractor clients.NarrativeExtractor

	// ExternalTimeout bounds each collaborator call. Timeouts surface
	// as recoverable failures eligible for state retry.
	ExternalTimeout time.Duration
}

// timeout returns the configured bound with a safe default.
func (d Deps) timeout() time.Duration {
	if d.ExternalTimeout <= 0 {
		return 30 * time.Second
	}
	return d.ExternalTimeout
}

// #endregion deps
