package evaluation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"trialmatch/internal/model"
	"trialmatch/internal/ragconf"
)

// #region helpers

func resultOf(configID string, byCase map[string]float64) *ExperimentResult {
	r := &ExperimentResult{ConfigID: configID}
	for id, v := range byCase {
		r.Cases = append(r.Cases, CaseResult{
			ConfigID: configID,
			CaseID:   id,
			Metrics:  MetricSet{"precision@3": v},
		})
	}
	return r
}

// #endregion helpers

// #region compare-tests

func TestCompareDetectsConsistentImprovement(t *testing.T) {
	a := resultOf("control", map[string]float64{
		"c1": 0.33, "c2": 0.33, "c3": 0.0, "c4": 0.33, "c5": 0.67,
	})
	b := resultOf("current_system", map[string]float64{
		"c1": 0.67, "c2": 0.67, "c3": 0.33, "c4": 0.67, "c5": 1.0,
	})

	cmp, err := Compare(a, b, "precision@3")
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if cmp.MeanDiff <= 0 {
		t.Errorf("mean diff = %v, want positive", cmp.MeanDiff)
	}
	// Every case improved by the same .34±.01, so the paired test is
	// overwhelmingly significant.
	if !cmp.Significant() {
		t.Errorf("p = %v, want < 0.05", cmp.PValue)
	}
	if cmp.N != 5 {
		t.Errorf("n = %d, want 5", cmp.N)
	}
	if cmp.EffectSize != "large" {
		t.Errorf("effect = %s (d=%v), want large", cmp.EffectSize, cmp.CohensD)
	}
}

func TestCompareNoDifference(t *testing.T) {
	vals := map[string]float64{"c1": 0.5, "c2": 0.3, "c3": 0.7}
	cmp, err := Compare(resultOf("a", vals), resultOf("b", vals), "precision@3")
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if cmp.TStatistic != 0 || cmp.PValue != 1 {
		t.Errorf("identical series: t=%v p=%v, want t=0 p=1", cmp.TStatistic, cmp.PValue)
	}
	if cmp.EffectSize != "negligible" {
		t.Errorf("effect = %s, want negligible", cmp.EffectSize)
	}
}

func TestCompareDisjointCaseSets(t *testing.T) {
	a := resultOf("a", map[string]float64{"c1": 0.5, "c2": 0.5})
	b := resultOf("b", map[string]float64{"c3": 0.5, "c4": 0.5})

	_, err := Compare(a, b, "precision@3")
	if !errors.Is(err, ErrIncomparableResultSets) {
		t.Fatalf("err = %v, want ErrIncomparableResultSets", err)
	}
}

func TestFailedCellsNeverScoreAsZero(t *testing.T) {
	a := resultOf("control", map[string]float64{"c1": 1, "c2": 1, "c3": 1})
	b := resultOf("current_system", map[string]float64{"c1": 1, "c2": 1, "c3": 1})
	for i := range b.Cases {
		if b.Cases[i].CaseID == "c3" {
			b.Cases[i].Metrics = MetricSet{}
			b.Cases[i].Err = errors.New("pipeline halted")
		}
	}

	// The failed cell carries no metrics and must not drag the mean to
	// 2/3 as an implicit zero.
	if got := b.Mean("precision@3"); !almostEqual(got, 1) {
		t.Errorf("mean = %v, want 1", got)
	}
	if got := b.Std("precision@3"); !almostEqual(got, 0) {
		t.Errorf("std = %v, want 0", got)
	}

	cmp, err := Compare(a, b, "precision@3")
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if cmp.N != 2 {
		t.Errorf("n = %d, want 2 pairs completed under both configs", cmp.N)
	}
	if !almostEqual(cmp.MeanDiff, 0) {
		t.Errorf("mean diff = %v, want 0: identical completed cells", cmp.MeanDiff)
	}
}

func TestCompareTooFewCompletedPairs(t *testing.T) {
	a := resultOf("a", map[string]float64{"c1": 0.5, "c2": 0.5})
	b := resultOf("b", map[string]float64{"c1": 0.5, "c2": 0.5})
	for i := range b.Cases {
		if b.Cases[i].CaseID == "c2" {
			b.Cases[i].Metrics = MetricSet{}
			b.Cases[i].Err = errors.New("cell timed out")
		}
	}

	if _, err := Compare(a, b, "precision@3"); err == nil {
		t.Fatal("expected error with a single completed pair")
	}
}

func TestCompareSizeMismatch(t *testing.T) {
	a := resultOf("a", map[string]float64{"c1": 0.5})
	b := resultOf("b", map[string]float64{"c1": 0.5, "c2": 0.5})

	_, err := Compare(a, b, "precision@3")
	if !errors.Is(err, ErrIncomparableResultSets) {
		t.Fatalf("err = %v, want ErrIncomparableResultSets", err)
	}
}

func TestTwoSidedPKnownValues(t *testing.T) {
	// t=2.776 at df=4 is the 97.5th percentile: p should land near 0.05.
	if p := twoSidedP(2.776, 4); math.Abs(p-0.05) > 0.002 {
		t.Errorf("p(2.776, df=4) = %v, want ≈0.05", p)
	}
	if p := twoSidedP(0, 10); math.Abs(p-1) > 1e-9 {
		t.Errorf("p(0) = %v, want 1", p)
	}
	if p := twoSidedP(10, 10); p > 0.001 {
		t.Errorf("p(10, df=10) = %v, want tiny", p)
	}
}

// #endregion compare-tests

// #region aggregation-tests

func TestExperimentResultMeanStd(t *testing.T) {
	r := resultOf("cfg", map[string]float64{"c1": 0.2, "c2": 0.4, "c3": 0.6})
	if got := r.Mean("precision@3"); !almostEqual(got, 0.4) {
		t.Errorf("mean = %v, want 0.4", got)
	}
	if got := r.Std("precision@3"); !almostEqual(got, 0.2) {
		t.Errorf("std = %v, want 0.2", got)
	}
}

func TestSummarizeRanksByPrimaryThenSecondary(t *testing.T) {
	results := []*ExperimentResult{
		{ConfigID: "low", Cases: []CaseResult{{CaseID: "c1", Metrics: MetricSet{"p": 0.2, "s": 0.9}}}},
		{ConfigID: "tied_b", Cases: []CaseResult{{CaseID: "c1", Metrics: MetricSet{"p": 0.5, "s": 0.3}}}},
		{ConfigID: "tied_a", Cases: []CaseResult{{CaseID: "c1", Metrics: MetricSet{"p": 0.5, "s": 0.7}}}},
	}
	rows := Summarize(results, "p", "s")
	want := []string{"tied_a", "tied_b", "low"}
	for i, w := range want {
		if rows[i].ConfigID != w {
			t.Errorf("rows[%d] = %s, want %s", i, rows[i].ConfigID, w)
		}
	}
}

// #endregion aggregation-tests

// #region sweep-tests

func sweepConfigs(t *testing.T) []ragconf.Config {
	t.Helper()
	var configs []ragconf.Config
	for _, id := range []string{"control", "current_system"} {
		cfg, err := ragconf.ByID(id)
		if err != nil {
			t.Fatalf("ByID(%s): %v", id, err)
		}
		configs = append(configs, cfg)
	}
	return configs
}

func sweepCases(t *testing.T, n int) []Case {
	t.Helper()
	var cases []Case
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("case%d", i)
		truth, err := model.NewGroundTruthSet([]model.GroundTruthEntry{
			{ID: "NCT001", Confidence: model.ConfidenceHigh},
		})
		if err != nil {
			t.Fatalf("truth: %v", err)
		}
		cases = append(cases, Case{ID: id, Narrative: "narrative", GroundTruth: truth})
	}
	return cases
}

func TestSweepRunsEveryCell(t *testing.T) {
	runner := func(ctx context.Context, cfg ragconf.Config, c Case) (*model.RankedList, error) {
		l := model.NewRankedList()
		score := 50.0
		if cfg.Enabled() {
			score = 90 // enhanced configs rank the hit first
		}
		l.Add(model.CandidateItem{ID: "NCT001", Score: score})
		l.Add(model.CandidateItem{ID: "NCT999", Score: 70})
		return l, nil
	}
	s := &Sweep{Runner: runner, Workers: 3, CellTimeout: time.Second}

	results, err := s.Run(context.Background(), sweepConfigs(t), sweepCases(t, 4))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	for _, r := range results {
		if len(r.Cases) != 4 {
			t.Errorf("%s evaluated %d cases, want 4", r.ConfigID, len(r.Cases))
		}
	}

	byID := map[string]*ExperimentResult{}
	for _, r := range results {
		byID[r.ConfigID] = r
	}
	if byID["current_system"].Mean("mrr") <= byID["control"].Mean("mrr") {
		t.Errorf("enhanced mrr %v should beat control %v",
			byID["current_system"].Mean("mrr"), byID["control"].Mean("mrr"))
	}
}

func TestSweepRecordsCellFailures(t *testing.T) {
	runner := func(ctx context.Context, cfg ragconf.Config, c Case) (*model.RankedList, error) {
		if c.ID == "case1" {
			return nil, errors.New("pipeline halted")
		}
		l := model.NewRankedList()
		l.Add(model.CandidateItem{ID: "NCT001", Score: 1})
		return l, nil
	}
	s := &Sweep{Runner: runner, Workers: 2, CellTimeout: time.Second}

	results, err := s.Run(context.Background(), sweepConfigs(t)[:1], sweepCases(t, 3))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	rows := Summarize(results, "mrr", "precision@3")
	if rows[0].Failures != 1 {
		t.Errorf("failures = %d, want 1", rows[0].Failures)
	}
	// Both completed cells rank the hit first; the failed cell counts
	// as a failure, not as mrr=0.
	if !almostEqual(rows[0].Primary, 1) {
		t.Errorf("mean mrr = %v, want 1 over completed cells", rows[0].Primary)
	}
}

func TestSweepHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{}, 1)
	runner := func(ctx context.Context, cfg ragconf.Config, c Case) (*model.RankedList, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	s := &Sweep{Runner: runner, Workers: 1, CellTimeout: time.Minute}

	done := make(chan error, 1)
	go func() {
		_, err := s.Run(ctx, sweepConfigs(t), sweepCases(t, 5))
		done <- err
	}()

	<-started
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("sweep did not stop after cancellation")
	}
}

// #endregion sweep-tests

// #region cases-tests

const casesYAML = `
cases:
  - case_id: breast_pik3ca
    narrative: |
      54-year-old female with stage IIIB breast cancer, PIK3CA E545K.
    ground_truth:
      - nct_id: NCT001
        confidence: very_high
        rationale: exact biomarker match
      - nct_id: NCT002
        confidence: medium
  - case_id: lung_egfr
    narrative: 61-year-old male with EGFR-mutant lung adenocarcinoma.
    ground_truth:
      - nct_id: NCT003
        confidence: high
`

func TestParseCases(t *testing.T) {
	cases, err := ParseCases([]byte(casesYAML))
	if err != nil {
		t.Fatalf("ParseCases: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("cases = %d, want 2", len(cases))
	}
	if cases[0].ID != "breast_pik3ca" || cases[0].GroundTruth.Len() != 2 {
		t.Errorf("case[0] = %s with %d truths", cases[0].ID, cases[0].GroundTruth.Len())
	}
	if got := cases[0].GroundTruth.Relevance("NCT001"); got != 4 {
		t.Errorf("NCT001 relevance = %v, want 4", got)
	}
}

func TestParseCasesRejections(t *testing.T) {
	for name, input := range map[string]string{
		"no cases":       `cases: []`,
		"missing id":     "cases:\n  - narrative: x\n    ground_truth: [{nct_id: N1, confidence: low}]",
		"dup id":         "cases:\n  - {case_id: a, narrative: x, ground_truth: [{nct_id: N1, confidence: low}]}\n  - {case_id: a, narrative: y, ground_truth: [{nct_id: N2, confidence: low}]}",
		"empty truth":    "cases:\n  - {case_id: a, narrative: x, ground_truth: []}",
		"bad confidence": "cases:\n  - {case_id: a, narrative: x, ground_truth: [{nct_id: N1, confidence: certain}]}",
	} {
		if _, err := ParseCases([]byte(input)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

// #endregion cases-tests
