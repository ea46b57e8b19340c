// Package stats holds the frequentist test engine: the two-proportion z-test,
// the 2x2 chi-square test and score intervals.
package stats

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/headline-goat/abacus/internal/abtest"
)

var chiSquared1 = distuv.ChiSquared{K: 1}

// Evaluate runs the two-proportion z-test on o at cfg's alpha and
// confidence level.
func Evaluate(o abtest.Outcome, cfg abtest.Config) (abtest.Result, error) {
	return ZTest(o, cfg.Alpha(), cfg.Confidence())
}

// ZTest performs a two-sided two-proportion z-test with pooled variance.
//
// An empty arm or a zero pooled variance (no conversions at all, or
// conversions everywhere) yields p=1 with Degenerate set; there is no
// evidence against the null in either case.
func ZTest(o abtest.Outcome, alpha, confidence float64) (abtest.Result, error) {
	if err := o.Validate(); err != nil {
		return abtest.Result{}, err
	}

	res := abtest.Result{
		Method:       abtest.MethodZTest,
		PValue:       1,
		Estimate:     o.TreatmentRate() - o.ControlRate(),
		RelativeLift: relativeLift(o),
	}

	if o.ControlN == 0 || o.TreatmentN == 0 {
		res.Estimate = 0
		res.Degenerate = true
		return res, nil
	}

	res.Interval = NewcombeInterval(o, confidence)
	res.ControlInterval = WilsonInterval(o.ControlConversions, o.ControlN, confidence)
	res.TreatmentInterval = WilsonInterval(o.TreatmentConversions, o.TreatmentN, confidence)

	nc, nt := float64(o.ControlN), float64(o.TreatmentN)
	pooled := float64(o.ControlConversions+o.TreatmentConversions) / (nc + nt)
	se := math.Sqrt(pooled * (1 - pooled) * (1/nc + 1/nt))
	if se == 0 {
		res.Degenerate = true
		return res, nil
	}

	res.Statistic = res.Estimate / se
	res.PValue = TwoSidedP(res.Statistic)
	res.RejectNull = res.PValue < alpha
	return res, nil
}

// TwoSidedP returns the two-sided p-value of a standard normal statistic.
func TwoSidedP(z float64) float64 {
	return math.Min(1, 2*distuv.UnitNormal.Survival(math.Abs(z)))
}

// ChiSquare performs Pearson's chi-square test of independence on the 2x2
// table of conversions by arm, optionally with Yates' continuity correction.
// A zero expected cell yields p=1 with Degenerate set.
func ChiSquare(o abtest.Outcome, alpha, confidence float64, yates bool) (abtest.Result, error) {
	if err := o.Validate(); err != nil {
		return abtest.Result{}, err
	}

	res := abtest.Result{
		Method:       abtest.MethodChiSquare,
		PValue:       1,
		Estimate:     o.TreatmentRate() - o.ControlRate(),
		RelativeLift: relativeLift(o),
	}
	if o.ControlN > 0 && o.TreatmentN > 0 {
		res.Interval = NewcombeInterval(o, confidence)
		res.ControlInterval = WilsonInterval(o.ControlConversions, o.ControlN, confidence)
		res.TreatmentInterval = WilsonInterval(o.TreatmentConversions, o.TreatmentN, confidence)
	}

	total := float64(o.ControlN + o.TreatmentN)
	if total == 0 {
		res.Degenerate = true
		return res, nil
	}
	converted := float64(o.ControlConversions + o.TreatmentConversions)
	observed := [4]float64{
		float64(o.ControlConversions),
		float64(o.ControlN - o.ControlConversions),
		float64(o.TreatmentConversions),
		float64(o.TreatmentN - o.TreatmentConversions),
	}
	rows := [2]float64{float64(o.ControlN), float64(o.TreatmentN)}
	cols := [2]float64{converted, total - converted}

	var chi2 float64
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			expected := rows[r] * cols[c] / total
			if expected == 0 {
				res.Degenerate = true
				return res, nil
			}
			diff := math.Abs(observed[2*r+c] - expected)
			if yates {
				diff = math.Max(0, diff-0.5)
			}
			chi2 += diff * diff / expected
		}
	}

	res.Statistic = chi2
	res.PValue = chiSquared1.Survival(chi2)
	res.RejectNull = res.PValue < alpha
	return res, nil
}

func relativeLift(o abtest.Outcome) float64 {
	pc := o.ControlRate()
	if pc == 0 {
		return 0
	}
	return (o.TreatmentRate() - pc) / pc
}
