// Package power computes closed-form and simulated power for two-proportion
// tests and solves for the per-arm sample size.
package power

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/headline-goat/abacus/internal/abtest"
)

const (
	// tolerance absorbs rounding when checking achieved power against a target.
	tolerance = 1e-12
	// MaxSampleSize bounds the per-arm sample size SampleSize will solve for.
	MaxSampleSize = math.MaxInt32
	// MaxCurvePoints bounds the number of sizes Sizes will expand.
	MaxCurvePoints = 10_000
)

// Point is one (sample size, power) pair of a power curve.
type Point struct {
	SampleSize int     `json:"sample_size"`
	Power      float64 `json:"power"`
}

// Power returns the normal-approximation power of a two-sided
// two-proportion z-test with n observations per arm.
func Power(baseline, treatment float64, n int, alpha float64) float64 {
	if n <= 0 {
		return 0
	}
	d := math.Abs(treatment - baseline)
	pbar := (baseline + treatment) / 2
	z := distuv.UnitNormal.Quantile(1 - alpha/2)

	nf := float64(n)
	se0 := math.Sqrt(2 * pbar * (1 - pbar) / nf)
	se1 := math.Sqrt((baseline*(1-baseline) + treatment*(1-treatment)) / nf)
	if se1 == 0 {
		return 0
	}
	return distuv.UnitNormal.CDF((d-z*se0)/se1) + distuv.UnitNormal.CDF((-d-z*se0)/se1)
}

// SampleSize returns the smallest per-arm sample size whose closed-form
// power reaches target. effect is an absolute difference, or a relative lift
// when relative is set.
func SampleSize(baseline, effect, alpha, target float64, relative bool) (int, error) {
	treatment, err := treatmentRate(baseline, effect, relative)
	if err != nil {
		return 0, err
	}
	if !(alpha > 0 && alpha < 1) {
		return 0, &abtest.ConfigurationError{Field: "alpha", Value: alpha, Reason: "must be in (0, 1)"}
	}
	if !(target > 0 && target < 1) {
		return 0, &abtest.ConfigurationError{Field: "power", Value: target, Reason: "must be in (0, 1)"}
	}

	za := distuv.UnitNormal.Quantile(1 - alpha/2)
	zb := distuv.UnitNormal.Quantile(target)
	pbar := (baseline + treatment) / 2
	d := treatment - baseline

	num := za*math.Sqrt(2*pbar*(1-pbar)) + zb*math.Sqrt(baseline*(1-baseline)+treatment*(1-treatment))
	approx := math.Ceil(num * num / (d * d))
	if !(approx <= MaxSampleSize) {
		return 0, &abtest.NumericalDegeneracyError{
			Op:     "sample size",
			Reason: fmt.Sprintf("effect %g needs more than %d per arm", effect, MaxSampleSize),
		}
	}
	n := int(approx)
	if n < 1 {
		n = 1
	}

	// The far tail makes the formula a slight overestimate.
	for n > 1 && Power(baseline, treatment, n-1, alpha) >= target-tolerance {
		n--
	}
	for Power(baseline, treatment, n, alpha) < target-tolerance {
		if n >= MaxSampleSize {
			return 0, &abtest.NumericalDegeneracyError{
				Op:     "sample size",
				Reason: fmt.Sprintf("effect %g needs more than %d per arm", effect, MaxSampleSize),
			}
		}
		n++
	}
	return n, nil
}

// ForConfig solves the sample size for cfg's rates and alpha.
func ForConfig(cfg abtest.Config, target float64) (int, error) {
	return SampleSize(cfg.BaselineRate(), cfg.TreatmentRate()-cfg.BaselineRate(), cfg.Alpha(), target, false)
}

// MinimumDetectableEffect returns the smallest absolute lift over baseline
// detectable with n observations per arm at the given power.
func MinimumDetectableEffect(baseline float64, n int, alpha, target float64) (float64, error) {
	if !(baseline > 0 && baseline < 1) {
		return 0, &abtest.ConfigurationError{Field: "baseline_rate", Value: baseline, Reason: "must be in (0, 1)"}
	}
	if n <= 0 {
		return 0, &abtest.ConfigurationError{Field: "sample_size", Value: n, Reason: "must be positive"}
	}
	if !(alpha > 0 && alpha < 1) {
		return 0, &abtest.ConfigurationError{Field: "alpha", Value: alpha, Reason: "must be in (0, 1)"}
	}
	if !(target > 0 && target < 1) {
		return 0, &abtest.ConfigurationError{Field: "power", Value: target, Reason: "must be in (0, 1)"}
	}

	lo, hi := 0.0, 1-baseline-1e-9
	if Power(baseline, baseline+hi, n, alpha) < target {
		return 0, &abtest.NumericalDegeneracyError{Op: "minimum detectable effect", Reason: fmt.Sprintf("power %g unreachable with n=%d", target, n)}
	}
	for i := 0; i < 100 && hi-lo > 1e-10; i++ {
		mid := (lo + hi) / 2
		if Power(baseline, baseline+mid, n, alpha) >= target {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi, nil
}

// Curve evaluates closed-form power for cfg at each sample size.
func Curve(cfg abtest.Config, sizes []int) ([]Point, error) {
	points := make([]Point, len(sizes))
	for i, n := range sizes {
		if n <= 0 {
			return nil, &abtest.ConfigurationError{Field: fmt.Sprintf("sizes[%d]", i), Value: n, Reason: "must be positive"}
		}
		points[i] = Point{SampleSize: n, Power: Power(cfg.BaselineRate(), cfg.TreatmentRate(), n, cfg.Alpha())}
	}
	return points, nil
}

// Sizes returns from, from+step, ... up to and including to.
func Sizes(from, to, step int) ([]int, error) {
	if from <= 0 || to < from || step <= 0 {
		return nil, &abtest.ConfigurationError{Field: "sizes", Value: fmt.Sprintf("%d..%d step %d", from, to, step), Reason: "need 0 < from <= to and step > 0"}
	}
	if (to-from)/step >= MaxCurvePoints {
		return nil, &abtest.ConfigurationError{Field: "sizes", Value: fmt.Sprintf("%d..%d step %d", from, to, step), Reason: fmt.Sprintf("more than %d points", MaxCurvePoints)}
	}
	var sizes []int
	for n := from; n <= to; n += step {
		sizes = append(sizes, n)
	}
	return sizes, nil
}

func treatmentRate(baseline, effect float64, relative bool) (float64, error) {
	if !(baseline > 0 && baseline < 1) {
		return 0, &abtest.ConfigurationError{Field: "baseline_rate", Value: baseline, Reason: "must be in (0, 1)"}
	}
	if effect == 0 || math.IsNaN(effect) || math.IsInf(effect, 0) {
		return 0, &abtest.ConfigurationError{Field: "effect_size", Value: effect, Reason: "must be a finite non-zero effect"}
	}
	treatment := baseline + effect
	if relative {
		treatment = baseline * (1 + effect)
	}
	if treatment <= 0 || treatment >= 1 {
		return 0, &abtest.ConfigurationError{Field: "effect_size", Value: effect, Reason: fmt.Sprintf("treatment rate %g is outside (0, 1)", treatment)}
	}
	return treatment, nil
}
