// Package evaluation scores ranked candidate lists against graded
// ground truth and compares configurations across a shared case set.
package evaluation

// #region imports
import (
	"math"
	"sort"

	"trialmatch/internal/model"
)

// #endregion

// #region metric-set

// MetricSet maps metric names ("precision@3", "mrr", "ndcg@5", ...) to
// values.
type MetricSet map[string]float64

// CutoffKs are the K values every scored ranking reports at.
var CutoffKs = []int{1, 3, 5, 10}

// Score computes the standard metric set for one ranking against one
// ground-truth set.
func Score(ranking *model.RankedList, truth model.GroundTruthSet) MetricSet {
	ids := ranking.IDs()
	m := MetricSet{}
	for _, k := range CutoffKs {
		m[metricName("precision", k)] = PrecisionAtK(ids, truth, k)
	}
	m["mrr"] = ReciprocalRank(ids, truth)
	m["first_hit_rank"] = float64(FirstHitRank(ids, truth))
	m["ndcg@5"] = NDCGAtK(ids, truth, 5)
	m["hit_rate@5"] = HitRateAtK(ids, truth, 5)
	m["hit_rate@10"] = HitRateAtK(ids, truth, 10)
	return m
}

func metricName(base string, k int) string {
	names := map[int]string{1: "@1", 3: "@3", 5: "@5", 10: "@10"}
	return base + names[k]
}

// #endregion metric-set

// #region metrics

// PrecisionAtK is the share of the top K positions holding ground-truth
// IDs. Empty ground truth scores 0, never a division error.
func PrecisionAtK(ids []string, truth model.GroundTruthSet, k int) float64 {
	if k <= 0 || truth.Len() == 0 {
		return 0
	}
	hits := 0
	for i, id := range ids {
		if i >= k {
			break
		}
		if truth.Contains(id) {
			hits++
		}
	}
	return float64(hits) / float64(k)
}

// FirstHitRank returns the 1-indexed rank of the first ground-truth ID,
// or 0 when none appears.
func FirstHitRank(ids []string, truth model.GroundTruthSet) int {
	for i, id := range ids {
		if truth.Contains(id) {
			return i + 1
		}
	}
	return 0
}

// ReciprocalRank is 1/rank of the first ground-truth hit, 0 if none.
func ReciprocalRank(ids []string, truth model.GroundTruthSet) float64 {
	if r := FirstHitRank(ids, truth); r > 0 {
		return 1 / float64(r)
	}
	return 0
}

// HitRateAtK is 1 when any ground-truth ID appears in the top K.
func HitRateAtK(ids []string, truth model.GroundTruthSet, k int) float64 {
	if r := FirstHitRank(ids, truth); r > 0 && r <= k {
		return 1
	}
	return 0
}

// NDCGAtK computes normalized discounted cumulative gain at K using the
// confidence-derived relevance weights (low=1 .. very_high=4). The
// ideal ordering places ground-truth entries first, descending
// relevance; by construction the ideal list scores exactly 1.
func NDCGAtK(ids []string, truth model.GroundTruthSet, k int) float64 {
	if k <= 0 || truth.Len() == 0 {
		return 0
	}
	dcg := 0.0
	for i, id := range ids {
		if i >= k {
			break
		}
		if rel := truth.Relevance(id); rel > 0 {
			dcg += rel / math.Log2(float64(i)+2)
		}
	}

	ideal := idealDCG(truth, k)
	if ideal == 0 {
		return 0
	}
	return dcg / ideal
}

// idealDCG is the DCG of ground truth sorted by descending relevance,
// occupying the top ranks.
func idealDCG(truth model.GroundTruthSet, k int) float64 {
	rels := make([]float64, 0, truth.Len())
	for _, e := range truth.Entries() {
		rels = append(rels, e.Confidence.Relevance())
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(rels)))

	ideal := 0.0
	for i, rel := range rels {
		if i >= k {
			break
		}
		ideal += rel / math.Log2(float64(i)+2)
	}
	return ideal
}

// #endregion metrics
