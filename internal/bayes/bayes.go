// Package bayes implements the Beta-Binomial test engine.
package bayes

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/headline-goat/abacus/internal/abtest"
	"github.com/headline-goat/abacus/internal/stats"
)

const (
	DefaultSamples   = 10000
	DefaultWidth     = 0.95
	DefaultThreshold = 0.95

	// MaxSamples bounds Options.Samples.
	MaxSamples = 1_000_000
	// maxExactTerms bounds the closed-form sum; larger posteriors are sampled.
	maxExactTerms = 1_000_000
)

// Prior is a Beta(A, B) prior on an arm's conversion rate.
type Prior struct {
	A float64 `json:"a" yaml:"a"`
	B float64 `json:"b" yaml:"b"`
}

// Uniform is the Beta(1,1) prior.
var Uniform = Prior{A: 1, B: 1}

// Options controls the Bayesian decision. Zero fields take the defaults.
type Options struct {
	// Samples is the number of paired posterior draws for the Monte Carlo
	// estimate.
	Samples int `json:"samples,omitempty"`
	// Width is the credible interval mass.
	Width float64 `json:"width,omitempty"`
	// Threshold is the probability of superiority above which treatment is
	// declared superior.
	Threshold float64 `json:"threshold,omitempty"`
	// Exact uses the closed-form probability of superiority when the
	// treatment posterior's first shape parameter is integral and at most
	// a million; otherwise the estimate is sampled.
	Exact bool `json:"exact,omitempty"`
}

// PosteriorDraws is the number of Beta variates one evaluation may draw.
func (o Options) PosteriorDraws() int {
	return 2 * o.withDefaults().Samples
}

func (o Options) withDefaults() Options {
	if o.Samples == 0 {
		o.Samples = DefaultSamples
	}
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Threshold == 0 {
		o.Threshold = DefaultThreshold
	}
	return o
}

func (o Options) validate() error {
	if o.Samples < 1 {
		return &abtest.ConfigurationError{Field: "samples", Value: o.Samples, Reason: "must be positive"}
	}
	if o.Samples > MaxSamples {
		return &abtest.ConfigurationError{Field: "samples", Value: o.Samples, Reason: fmt.Sprintf("must be at most %d", MaxSamples)}
	}
	if !(o.Width > 0 && o.Width < 1) {
		return &abtest.ConfigurationError{Field: "width", Value: o.Width, Reason: "must be in (0, 1)"}
	}
	if !(o.Threshold > 0 && o.Threshold < 1) {
		return &abtest.ConfigurationError{Field: "threshold", Value: o.Threshold, Reason: "must be in (0, 1)"}
	}
	return nil
}

func (p Prior) validate() error {
	if !(p.A > 0) || math.IsInf(p.A, 0) {
		return &abtest.ConfigurationError{Field: "prior.a", Value: p.A, Reason: "must be positive"}
	}
	if !(p.B > 0) || math.IsInf(p.B, 0) {
		return &abtest.ConfigurationError{Field: "prior.b", Value: p.B, Reason: "must be positive"}
	}
	return nil
}

// Posterior returns the Beta posterior after observing conversions out of n.
func (p Prior) Posterior(conversions, n int) distuv.Beta {
	return distuv.Beta{
		Alpha: p.A + float64(conversions),
		Beta:  p.B + float64(n-conversions),
	}
}

// Evaluate updates prior with each arm of o and decides whether treatment is
// superior. src drives the Monte Carlo draws; control is drawn before
// treatment in every pair, so a fixed seed reproduces the estimate exactly.
func Evaluate(o abtest.Outcome, prior Prior, opts Options, src rand.Source) (abtest.Result, error) {
	if err := o.Validate(); err != nil {
		return abtest.Result{}, err
	}
	if err := prior.validate(); err != nil {
		return abtest.Result{}, err
	}
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return abtest.Result{}, err
	}

	control := prior.Posterior(o.ControlConversions, o.ControlN)
	treatment := prior.Posterior(o.TreatmentConversions, o.TreatmentN)

	res := abtest.Result{
		Method:            abtest.MethodBayesian,
		Estimate:          treatment.Mean() - control.Mean(),
		ControlInterval:   EqualTailed(control, opts.Width),
		TreatmentInterval: EqualTailed(treatment, opts.Width),
	}
	if m := control.Mean(); m > 0 {
		res.RelativeLift = res.Estimate / m
	}

	exact := opts.Exact && isIntegral(treatment.Alpha) && treatment.Alpha <= maxExactTerms
	if !exact && src == nil {
		return abtest.Result{}, &abtest.ConfigurationError{Field: "source", Reason: "monte carlo estimate needs a random source"}
	}

	if exact {
		res.ProbabilitySuperior = ProbabilitySuperior(control, treatment)
		z := stats.ZScore(opts.Width)
		sd := math.Sqrt(control.Variance() + treatment.Variance())
		res.Interval = abtest.Interval{Lower: res.Estimate - z*sd, Upper: res.Estimate + z*sd}
	} else {
		mc := sample(control, treatment, opts.Samples, src)
		res.ProbabilitySuperior = mc.superior
		res.ExpectedLoss = mc.loss
		res.Interval = mc.interval(opts.Width)
	}

	res.Statistic = res.ProbabilitySuperior
	res.RejectNull = res.ProbabilitySuperior > opts.Threshold
	return res, nil
}

// EqualTailed returns the central credible interval holding mass width.
func EqualTailed(b distuv.Beta, width float64) abtest.Interval {
	tail := (1 - width) / 2
	return abtest.Interval{
		Lower: b.Quantile(tail),
		Upper: b.Quantile(1 - tail),
	}
}

// ProbabilitySuperior returns P(treatment > control) in closed form. The
// treatment Alpha must be integral; the sum runs over Alpha terms.
func ProbabilitySuperior(control, treatment distuv.Beta) float64 {
	ac, bc := control.Alpha, control.Beta
	bt := treatment.Beta
	norm := lbeta(ac, bc)

	var total float64
	for i := 0.0; i < treatment.Alpha; i++ {
		total += math.Exp(lbeta(ac+i, bc+bt) - math.Log(bt+i) - lbeta(1+i, bt) - norm)
	}
	return math.Min(1, math.Max(0, total))
}

type draws struct {
	diffs    []float64
	superior float64
	loss     float64
}

func sample(control, treatment distuv.Beta, n int, src rand.Source) draws {
	control.Src = src
	treatment.Src = src

	d := draws{diffs: make([]float64, n)}
	wins := 0
	var loss float64
	for i := 0; i < n; i++ {
		c := control.Rand()
		t := treatment.Rand()
		d.diffs[i] = t - c
		if t > c {
			wins++
		} else {
			loss += c - t
		}
	}
	d.superior = float64(wins) / float64(n)
	d.loss = loss / float64(n)
	return d
}

func (d draws) interval(width float64) abtest.Interval {
	sort.Float64s(d.diffs)

	tail := (1 - width) / 2
	return abtest.Interval{
		Lower: stat.Quantile(tail, stat.Empirical, d.diffs, nil),
		Upper: stat.Quantile(1-tail, stat.Empirical, d.diffs, nil),
	}
}

func lbeta(a, b float64) float64 {
	la, _ := math.Lgamma(a)
	lb, _ := math.Lgamma(b)
	lab, _ := math.Lgamma(a + b)
	return la + lb - lab
}

func isIntegral(x float64) bool {
	return x == math.Trunc(x) && !math.IsInf(x, 0)
}
