package evaluation

// #region imports
import (
	"errors"
	"fmt"
	"math"
)

// #endregion

// #region errors

// ErrIncomparableResultSets is returned when two results were not
// evaluated on the identical case set, so pairing their per-case values
// would be meaningless.
var ErrIncomparableResultSets = errors.New("result sets cover different cases")

// #endregion errors

// #region comparison

// Comparison is a paired significance test between two configurations
// on one metric, over the identical case set.
type Comparison struct {
	Metric     string
	ConfigA    string
	ConfigB    string
	MeanA      float64
	MeanB      float64
	MeanDiff   float64 // B − A per-case mean
	TStatistic float64
	PValue     float64 // two-sided
	CohensD    float64
	EffectSize string // negligible / small / medium / large
	N          int
}

// Significant reports whether the two-sided p-value clears the
// conventional 0.05 threshold.
func (c Comparison) Significant() bool { return c.PValue < 0.05 }

func (c Comparison) String() string {
	return fmt.Sprintf("%s vs %s on %s: Δ=%+.3f t=%.3f p=%.4f d=%.2f (%s)",
		c.ConfigB, c.ConfigA, c.Metric, c.MeanDiff, c.TStatistic, c.PValue, c.CohensD, c.EffectSize)
}

// Compare runs a paired t-test of b against a on one metric. Both
// results must cover the identical case set; anything else returns
// ErrIncomparableResultSets. Cases that errored under either
// configuration are dropped from the pairing rather than scored as
// zero; N reports the pairs actually tested, and fewer than two
// surviving pairs is an error.
func Compare(a, b *ExperimentResult, metric string) (Comparison, error) {
	aIDs, bIDs := a.CaseIDs(), b.CaseIDs()
	if len(aIDs) != len(bIDs) {
		return Comparison{}, fmt.Errorf("%w: %s has %d cases, %s has %d",
			ErrIncomparableResultSets, a.ConfigID, len(aIDs), b.ConfigID, len(bIDs))
	}
	for i := range aIDs {
		if aIDs[i] != bIDs[i] {
			return Comparison{}, fmt.Errorf("%w: %s vs %s at case %q/%q",
				ErrIncomparableResultSets, a.ConfigID, b.ConfigID, aIDs[i], bIDs[i])
		}
	}

	am, bm := a.metricByCase(metric), b.metricByCase(metric)
	av := make([]float64, 0, len(aIDs))
	bv := make([]float64, 0, len(aIDs))
	for _, id := range aIDs {
		xa, okA := am[id]
		xb, okB := bm[id]
		if !okA || !okB {
			continue
		}
		av = append(av, xa)
		bv = append(bv, xb)
	}
	if len(av) < 2 {
		return Comparison{}, fmt.Errorf("paired comparison of %s vs %s needs at least 2 cases completed under both, have %d",
			a.ConfigID, b.ConfigID, len(av))
	}

	diffs := make([]float64, len(av))
	for i := range av {
		diffs[i] = bv[i] - av[i]
	}

	n := len(diffs)
	md := mean(diffs)
	sd := std(diffs)

	t, p := 0.0, 1.0
	if sd > 0 {
		t = md / (sd / math.Sqrt(float64(n)))
		p = twoSidedP(t, float64(n-1))
	}

	d := cohensD(av, bv)

	return Comparison{
		Metric:     metric,
		ConfigA:    a.ConfigID,
		ConfigB:    b.ConfigID,
		MeanA:      mean(av),
		MeanB:      mean(bv),
		MeanDiff:   md,
		TStatistic: t,
		PValue:     p,
		CohensD:    d,
		EffectSize: effectSize(d),
		N:          n,
	}, nil
}

// #endregion comparison

// #region effect-size

// cohensD uses the pooled standard deviation of the two series.
func cohensD(a, b []float64) float64 {
	sa, sb := std(a), std(b)
	na, nb := float64(len(a)), float64(len(b))
	pooled := math.Sqrt(((na-1)*sa*sa + (nb-1)*sb*sb) / (na + nb - 2))
	if pooled == 0 {
		return 0
	}
	return (mean(b) - mean(a)) / pooled
}

func effectSize(d float64) string {
	switch abs := math.Abs(d); {
	case abs < 0.2:
		return "negligible"
	case abs < 0.5:
		return "small"
	case abs < 0.8:
		return "medium"
	default:
		return "large"
	}
}

// #endregion effect-size

// #region t-distribution

// twoSidedP computes the two-sided p-value of a t statistic with df
// degrees of freedom via the regularized incomplete beta function:
// P(|T| > t) = I_{df/(df+t²)}(df/2, 1/2).
func twoSidedP(t, df float64) float64 {
	x := df / (df + t*t)
	return regIncBeta(df/2, 0.5, x)
}

// regIncBeta is the regularized incomplete beta function I_x(a, b),
// evaluated with the Lentz continued fraction (Numerical Recipes §6.4).
func regIncBeta(a, b, x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	ln, _ := math.Lgamma(a + b)
	la, _ := math.Lgamma(a)
	lb, _ := math.Lgamma(b)
	front := math.Exp(ln - la - lb + a*math.Log(x) + b*math.Log(1-x))

	// The continued fraction converges fast for x < (a+1)/(a+b+2);
	// otherwise use the symmetry I_x(a,b) = 1 − I_{1−x}(b,a).
	if x >= (a+1)/(a+b+2) {
		return 1 - regIncBeta(b, a, 1-x)
	}
	return front * betaCF(a, b, x) / a
}

func betaCF(a, b, x float64) float64 {
	const (
		maxIter = 200
		eps     = 1e-12
		tiny    = 1e-30
	)
	qab, qap, qam := a+b, a+1, a-1
	c := 1.0
	d := 1 - qab*x/qap
	if math.Abs(d) < tiny {
		d = tiny
	}
	d = 1 / d
	h := d

	for m := 1; m <= maxIter; m++ {
		fm := float64(m)
		m2 := 2 * fm

		aa := fm * (b - fm) * x / ((qam + m2) * (a + m2))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		h *= d * c

		aa = -(a + fm) * (qab + fm) * x / ((a + m2) * (qap + m2))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		del := d * c
		h *= del
		if math.Abs(del-1) < eps {
			break
		}
	}
	return h
}

// #endregion t-distribution
