package evaluation

// #region imports
import (
	"fmt"
	"math"
	"sort"

	"trialmatch/internal/model"
)

// #endregion

// #region case-result

// CaseResult is one (config, case) evaluation cell.
type CaseResult struct {
	ConfigID string
	CaseID   string
	Metrics  MetricSet
	// Ranked IDs in order, kept for the artifact record.
	RankedIDs []string
	// Uncovered lists ground-truth IDs absent from the candidate list.
	// A non-empty value usually means the search never surfaced the
	// trial, not that ranking demoted it.
	Uncovered []string
	Err       error
}

// EvaluateCase scores one ranking and records ground-truth coverage.
func EvaluateCase(configID, caseID string, ranking *model.RankedList, truth model.GroundTruthSet) CaseResult {
	var uncovered []string
	for _, id := range truth.IDs() {
		if !ranking.Contains(id) {
			uncovered = append(uncovered, id)
		}
	}
	return CaseResult{
		ConfigID:  configID,
		CaseID:    caseID,
		Metrics:   Score(ranking, truth),
		RankedIDs: ranking.IDs(),
		Uncovered: uncovered,
	}
}

// #endregion case-result

// #region experiment-result

// ExperimentResult aggregates one configuration over a case set.
type ExperimentResult struct {
	ConfigID string
	Cases    []CaseResult
}

// CaseIDs returns the evaluated case IDs, sorted.
func (r *ExperimentResult) CaseIDs() []string {
	ids := make([]string, 0, len(r.Cases))
	for _, c := range r.Cases {
		ids = append(ids, c.CaseID)
	}
	sort.Strings(ids)
	return ids
}

// metricByCase returns the metric value per completed case. Cells that
// errored carry no metrics and never enter a series: a failed run must
// surface as a failure count, not score as zero.
func (r *ExperimentResult) metricByCase(metric string) map[string]float64 {
	byCase := make(map[string]float64, len(r.Cases))
	for _, c := range r.Cases {
		if c.Err != nil {
			continue
		}
		byCase[c.CaseID] = c.Metrics[metric]
	}
	return byCase
}

// values returns the per-case series for a metric over completed
// cases, ordered by case ID so two results over the same cases pair
// positionally.
func (r *ExperimentResult) values(metric string) []float64 {
	byCase := r.metricByCase(metric)
	ids := make([]string, 0, len(byCase))
	for id := range byCase {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]float64, 0, len(ids))
	for _, id := range ids {
		out = append(out, byCase[id])
	}
	return out
}

// Mean returns the metric mean over cases that completed.
func (r *ExperimentResult) Mean(metric string) float64 {
	return mean(r.values(metric))
}

// Std returns the sample standard deviation of a metric over cases that
// completed (0 for fewer than two).
func (r *ExperimentResult) Std(metric string) float64 {
	return std(r.values(metric))
}

// Summary formats mean±std for a metric.
func (r *ExperimentResult) Summary(metric string) string {
	return fmt.Sprintf("%.3f±%.3f", r.Mean(metric), r.Std(metric))
}

// #endregion experiment-result

// #region stats-helpers

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func std(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// #endregion stats-helpers
