package knowledge

// #region imports
import (
	"context"
	"math"
	"sort"
	"strings"

	"trialmatch/internal/model"
	"trialmatch/internal/ragconf"
)

// #endregion

// #region retriever

// Retriever answers passage queries over a chunked corpus. Chunking
// parameters and the enabled-source filter come from the configuration
// it was built for, so each ablation variant retrieves from exactly the
// corpus slice it declares.
type Retriever struct {
	chunks []Chunk
}

// NewRetriever chunks the documents belonging to the configuration's
// enabled sources. A control configuration yields an empty retriever
// that answers every query with zero passages.
func NewRetriever(docs []Document, cfg ragconf.Config) *Retriever {
	enabled := make(map[string]bool)
	for _, s := range cfg.Sources() {
		enabled[s] = true
	}

	r := &Retriever{}
	for _, doc := range docs {
		if !enabled[doc.Category] {
			continue
		}
		r.chunks = append(r.chunks, ChunkDocument(doc, cfg.ChunkSize, cfg.ChunkOverlap)...)
	}
	return r
}

// ChunkCount returns the number of indexed chunks.
func (r *Retriever) ChunkCount() int { return len(r.chunks) }

// #endregion retriever

// #region retrieve

// Retrieve returns up to k passages matching the query, best first.
// No match returns an empty slice, never an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]model.Passage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 || len(r.chunks) == 0 {
		return []model.Passage{}, nil
	}

	terms := tokenize(query)
	if len(terms) == 0 {
		return []model.Passage{}, nil
	}

	type scored struct {
		idx   int
		score float64
	}
	var hits []scored
	for i, ch := range r.chunks {
		s := overlapScore(terms, ch.Text)
		if s > 0 {
			hits = append(hits, scored{idx: i, score: s})
		}
	}
	if len(hits) == 0 {
		return []model.Passage{}, nil
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if k > len(hits) {
		k = len(hits)
	}

	passages := make([]model.Passage, k)
	for i := 0; i < k; i++ {
		ch := r.chunks[hits[i].idx]
		passages[i] = model.Passage{
			SourceID: ch.SourceID,
			Category: ch.Category,
			Text:     ch.Text,
			Score:    hits[i].score,
		}
	}
	return passages, nil
}

// #endregion retrieve

// #region scoring

// overlapScore counts distinct query terms present in the chunk,
// dampened by chunk length so short focused chunks beat long ones with
// the same hits.
func overlapScore(terms map[string]bool, text string) float64 {
	lower := strings.ToLower(text)
	hits := 0
	for term := range terms {
		if strings.Contains(lower, term) {
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	return float64(hits) / math.Sqrt(float64(len(text)))
}

func tokenize(query string) map[string]bool {
	terms := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, ".,;:()[]")
		if len(w) >= 3 {
			terms[w] = true
		}
	}
	return terms
}

// #endregion scoring
