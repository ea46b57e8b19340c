package power

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	descriptive "github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"github.com/headline-goat/abacus/internal/abtest"
	"github.com/headline-goat/abacus/internal/bayes"
	"github.com/headline-goat/abacus/internal/stats"
	"github.com/headline-goat/abacus/internal/trial"
)

// Evaluator reduces a replicate outcome to a decision. src is the
// replicate's random stream, positioned after the outcome draws.
type Evaluator interface {
	Evaluate(o abtest.Outcome, src rand.Source) (abtest.Result, error)
}

// Frequentist evaluates replicates with the two-proportion z-test.
type Frequentist struct {
	Alpha      float64
	Confidence float64
}

func (f Frequentist) Evaluate(o abtest.Outcome, _ rand.Source) (abtest.Result, error) {
	return stats.ZTest(o, f.Alpha, f.Confidence)
}

// ChiSquared evaluates replicates with the 2x2 chi-square test.
type ChiSquared struct {
	Alpha      float64
	Confidence float64
	Yates      bool
}

func (c ChiSquared) Evaluate(o abtest.Outcome, _ rand.Source) (abtest.Result, error) {
	return stats.ChiSquare(o, c.Alpha, c.Confidence, c.Yates)
}

// Bayesian evaluates replicates with the Beta-Binomial engine.
type Bayesian struct {
	Prior   bayes.Prior
	Options bayes.Options
}

func (b Bayesian) Evaluate(o abtest.Outcome, src rand.Source) (abtest.Result, error) {
	return bayes.Evaluate(o, b.Prior, b.Options, src)
}

// Simulator estimates power and Type-I error by Monte Carlo.
type Simulator struct {
	// Workers bounds replicate parallelism; zero uses GOMAXPROCS. The
	// summary does not depend on it.
	Workers int
	// Evaluator defaults to Frequentist at the configuration's alpha.
	Evaluator Evaluator
	Logger    *zap.Logger
}

type replicateResult struct {
	estimate   float64
	reject     bool
	degenerate bool
}

// Run simulates cfg.Simulations() replicates. Replicate i draws from
// trial.Source(seed, i); an unseeded configuration gets a fresh seed that is
// reported in the summary.
func (s Simulator) Run(ctx context.Context, cfg abtest.Config) (abtest.Summary, error) {
	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}
	eval := s.Evaluator
	if eval == nil {
		eval = Frequentist{Alpha: cfg.Alpha(), Confidence: cfg.Confidence()}
	}

	seed, ok := cfg.Seed()
	if !ok {
		seed = rand.Uint64()
	}

	n := cfg.Simulations()
	log.Debug("simulation started",
		zap.Int("replicates", n),
		zap.Int("sample_size", cfg.SampleSize()),
		zap.Float64("baseline_rate", cfg.BaselineRate()),
		zap.Float64("treatment_rate", cfg.TreatmentRate()),
		zap.Uint64("seed", seed),
	)
	start := time.Now()

	results := make([]replicateResult, n)
	var method abtest.Method
	err := trial.ForEach(ctx, n, s.Workers, func(i int) error {
		src := trial.Source(seed, i)
		o := trial.Generate(cfg, src)
		res, err := eval.Evaluate(o, src)
		if err != nil {
			return fmt.Errorf("replicate %d: %w", i, err)
		}
		if i == 0 {
			method = res.Method
		}
		results[i] = replicateResult{estimate: res.Estimate, reject: res.RejectNull, degenerate: res.Degenerate}
		return nil
	})
	if err != nil {
		return abtest.Summary{}, err
	}

	summary, err := summarize(cfg, results)
	if err != nil {
		return abtest.Summary{}, err
	}
	summary.Method = method
	summary.Seed = seed

	log.Info("simulation finished",
		zap.Int("replicates", n),
		zap.Float64("rejection_rate", summary.RejectionRate),
		zap.Int("degenerate_replicates", summary.DegenerateReplicates),
		zap.Duration("elapsed", time.Since(start)),
	)
	return summary, nil
}

func summarize(cfg abtest.Config, results []replicateResult) (abtest.Summary, error) {
	n := len(results)
	estimates := make([]float64, n)
	summary := abtest.Summary{
		Simulations: n,
		SampleSize:  cfg.SampleSize(),
		Alpha:       cfg.Alpha(),
		TrueEffect:  cfg.TrueDifference(),
	}
	for i, r := range results {
		estimates[i] = r.estimate
		if r.reject {
			summary.Rejections++
		}
		if r.degenerate {
			summary.DegenerateReplicates++
		}
	}

	rate := float64(summary.Rejections) / float64(n)
	summary.RejectionRate = rate
	summary.MonteCarloSE = math.Sqrt(rate * (1 - rate) / float64(n))
	if cfg.NullTrue() {
		summary.TypeIError = rate
	} else {
		summary.EmpiricalPower = rate
	}

	var err error
	if summary.MeanEstimate, err = descriptive.Mean(estimates); err != nil {
		return abtest.Summary{}, fmt.Errorf("failed to compute mean estimate: %w", err)
	}
	if summary.MedianEstimate, err = descriptive.Median(estimates); err != nil {
		return abtest.Summary{}, fmt.Errorf("failed to compute median estimate: %w", err)
	}
	if summary.EstimateVariance, err = descriptive.Variance(estimates); err != nil {
		return abtest.Summary{}, fmt.Errorf("failed to compute estimate variance: %w", err)
	}
	return summary, nil
}

// SimulatedCurve runs the simulator at each sample size. All sizes share
// cfg's seed, or one fresh seed when cfg has none.
func (s Simulator) SimulatedCurve(ctx context.Context, cfg abtest.Config, sizes []int) ([]Point, error) {
	if _, ok := cfg.Seed(); !ok {
		cfg = cfg.WithSeed(rand.Uint64())
	}

	points := make([]Point, len(sizes))
	for i, n := range sizes {
		sized, err := cfg.WithSampleSize(n)
		if err != nil {
			return nil, err
		}
		summary, err := s.Run(ctx, sized)
		if err != nil {
			return nil, err
		}
		points[i] = Point{SampleSize: n, Power: summary.RejectionRate}
	}
	return points, nil
}
