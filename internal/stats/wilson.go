package stats

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/headline-goat/abacus/internal/abtest"
)

// WilsonInterval calculates the Wilson score confidence interval
// for a binomial proportion. It's more accurate for small samples
// than the normal approximation and never leaves [0, 1].
func WilsonInterval(successes, trials int, confidence float64) abtest.Interval {
	if trials == 0 {
		return abtest.Interval{}
	}

	z := ZScore(confidence)
	p := float64(successes) / float64(trials)
	n := float64(trials)

	denominator := 1 + z*z/n
	center := (p + z*z/(2*n)) / denominator
	spread := (z / denominator) * math.Sqrt(p*(1-p)/n+z*z/(4*n*n))

	return abtest.Interval{
		Lower: math.Max(0, center-spread),
		Upper: math.Min(1, center+spread),
	}
}

// NewcombeInterval is the hybrid score interval for the difference of two
// proportions (treatment minus control), built from the two arms' Wilson
// intervals.
func NewcombeInterval(o abtest.Outcome, confidence float64) abtest.Interval {
	pc, pt := o.ControlRate(), o.TreatmentRate()
	wc := WilsonInterval(o.ControlConversions, o.ControlN, confidence)
	wt := WilsonInterval(o.TreatmentConversions, o.TreatmentN, confidence)

	d := pt - pc
	return abtest.Interval{
		Lower: d - math.Sqrt(sq(pt-wt.Lower)+sq(wc.Upper-pc)),
		Upper: d + math.Sqrt(sq(wt.Upper-pt)+sq(pc-wc.Lower)),
	}
}

// ZScore returns the two-sided standard normal critical value for a
// confidence level:
//   - 0.90 -> 1.645
//   - 0.95 -> 1.960
//   - 0.99 -> 2.576
func ZScore(confidence float64) float64 {
	return distuv.UnitNormal.Quantile((1 + confidence) / 2)
}

func sq(x float64) float64 { return x * x }
