package bayes_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headline-goat/abacus/internal/abtest"
	"github.com/headline-goat/abacus/internal/bayes"
	"github.com/headline-goat/abacus/internal/trial"
)

var observed = abtest.Outcome{ControlConversions: 110, ControlN: 1000, TreatmentConversions: 140, TreatmentN: 1000}

func TestPosterior(t *testing.T) {
	post := bayes.Uniform.Posterior(110, 1000)
	assert.Equal(t, 111.0, post.Alpha)
	assert.Equal(t, 891.0, post.Beta)
	assert.InDelta(t, 111.0/1002.0, post.Mean(), 1e-12)
}

func TestProbabilitySuperior_Exact(t *testing.T) {
	control := bayes.Uniform.Posterior(110, 1000)
	treatment := bayes.Uniform.Posterior(140, 1000)
	assert.InDelta(t, 0.978636, bayes.ProbabilitySuperior(control, treatment), 1e-5)

	// Identical flat posteriors.
	flat := bayes.Uniform.Posterior(0, 0)
	assert.InDelta(t, 0.5, bayes.ProbabilitySuperior(flat, flat), 1e-12)
}

func TestEvaluate_MonteCarloMatchesExact(t *testing.T) {
	mc, err := bayes.Evaluate(observed, bayes.Uniform, bayes.Options{Samples: 40000}, trial.Source(5, 0))
	require.NoError(t, err)
	exact, err := bayes.Evaluate(observed, bayes.Uniform, bayes.Options{Exact: true}, nil)
	require.NoError(t, err)

	assert.Equal(t, abtest.MethodBayesian, mc.Method)
	assert.InDelta(t, exact.ProbabilitySuperior, mc.ProbabilitySuperior, 0.005)
	assert.InDelta(t, exact.Estimate, mc.Estimate, 1e-12)
	assert.True(t, mc.RejectNull)
	assert.True(t, exact.RejectNull)

	assert.Greater(t, mc.ExpectedLoss, 0.0)
	assert.Less(t, mc.ExpectedLoss, 0.001)
	assert.True(t, mc.Interval.Contains(mc.Estimate))
	assert.InDelta(t, exact.Interval.Lower, mc.Interval.Lower, 0.002)
	assert.InDelta(t, exact.Interval.Upper, mc.Interval.Upper, 0.002)
}

func TestEvaluate_SeedReproducible(t *testing.T) {
	a, err := bayes.Evaluate(observed, bayes.Uniform, bayes.Options{Samples: 2000}, trial.Source(9, 3))
	require.NoError(t, err)
	b, err := bayes.Evaluate(observed, bayes.Uniform, bayes.Options{Samples: 2000}, trial.Source(9, 3))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEvaluate_CredibleIntervals(t *testing.T) {
	res, err := bayes.Evaluate(observed, bayes.Uniform, bayes.Options{Exact: true, Width: 0.9}, nil)
	require.NoError(t, err)

	assert.True(t, res.ControlInterval.Contains(0.11))
	assert.True(t, res.TreatmentInterval.Contains(0.14))
	assert.Less(t, res.ControlInterval.Upper, res.TreatmentInterval.Upper)
}

func TestEvaluate_ThresholdControlsDecision(t *testing.T) {
	res, err := bayes.Evaluate(observed, bayes.Uniform, bayes.Options{Exact: true, Threshold: 0.99}, nil)
	require.NoError(t, err)
	assert.False(t, res.RejectNull)
}

func TestEvaluate_EmptyData(t *testing.T) {
	res, err := bayes.Evaluate(abtest.Outcome{}, bayes.Uniform, bayes.Options{}, trial.Source(1, 0))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.ProbabilitySuperior, 0.02)
	assert.InDelta(t, 0, res.Estimate, 1e-12)
	assert.False(t, res.RejectNull)
}

func TestEvaluate_Errors(t *testing.T) {
	var cfgErr *abtest.ConfigurationError

	_, err := bayes.Evaluate(observed, bayes.Prior{A: 0, B: 1}, bayes.Options{}, trial.Source(1, 0))
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "prior.a", cfgErr.Field)

	_, err = bayes.Evaluate(observed, bayes.Uniform, bayes.Options{Width: 1.2}, trial.Source(1, 0))
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "width", cfgErr.Field)

	_, err = bayes.Evaluate(observed, bayes.Uniform, bayes.Options{Samples: -1}, trial.Source(1, 0))
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "samples", cfgErr.Field)

	_, err = bayes.Evaluate(observed, bayes.Uniform, bayes.Options{Samples: bayes.MaxSamples + 1}, trial.Source(1, 0))
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "samples", cfgErr.Field)

	// A non-integral treatment shape falls back to sampling, which needs a source.
	_, err = bayes.Evaluate(observed, bayes.Prior{A: 0.5, B: 0.5}, bayes.Options{Exact: true}, nil)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "source", cfgErr.Field)

	_, err = bayes.Evaluate(abtest.Outcome{ControlConversions: 2, ControlN: 1}, bayes.Uniform, bayes.Options{}, trial.Source(1, 0))
	assert.ErrorIs(t, err, abtest.ErrInvalidOutcome)
}

func TestOptions_PosteriorDraws(t *testing.T) {
	assert.Equal(t, 2*bayes.DefaultSamples, bayes.Options{}.PosteriorDraws())
	assert.Equal(t, 500, bayes.Options{Samples: 250}.PosteriorDraws())
}

func TestEvaluate_LargePosteriorSkipsExactSum(t *testing.T) {
	big := abtest.Outcome{ControlConversions: 2_000_000, ControlN: 20_000_000, TreatmentConversions: 2_010_000, TreatmentN: 20_000_000}

	res, err := bayes.Evaluate(big, bayes.Uniform, bayes.Options{Exact: true, Samples: 2000}, trial.Source(9, 0))
	require.NoError(t, err)
	assert.Greater(t, res.ProbabilitySuperior, 0.99)
	assert.True(t, res.Interval.Contains(0.0005), "interval %+v", res.Interval)
}
