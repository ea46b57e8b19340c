package power_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headline-goat/abacus/internal/abtest"
	"github.com/headline-goat/abacus/internal/power"
)

func TestPower_KnownValues(t *testing.T) {
	assert.InDelta(t, 0.49457, power.Power(0.11, 0.13, 2000, 0.05), 1e-4)
	assert.InDelta(t, 0.80009, power.Power(0.11, 0.13, 4144, 0.05), 1e-4)
	assert.InDelta(t, 0.05, power.Power(0.11, 0.11, 2000, 0.05), 1e-12)
	assert.Equal(t, 0.0, power.Power(0.11, 0.13, 0, 0.05))
}

func TestPower_SymmetricInDirection(t *testing.T) {
	assert.InDelta(t, power.Power(0.2, 0.23, 1500, 0.05), power.Power(0.23, 0.2, 1500, 0.05), 1e-12)
}

func TestSampleSize(t *testing.T) {
	n, err := power.SampleSize(0.11, 0.02, 0.05, 0.8, false)
	require.NoError(t, err)
	assert.Equal(t, 4144, n)

	// Smallest such n.
	assert.GreaterOrEqual(t, power.Power(0.11, 0.13, n, 0.05), 0.8)
	assert.Less(t, power.Power(0.11, 0.13, n-1, 0.05), 0.8)
}

func TestSampleSize_GrowsWithPowerAndShrinksWithEffect(t *testing.T) {
	n80, err := power.SampleSize(0.11, 0.02, 0.05, 0.8, false)
	require.NoError(t, err)
	n90, err := power.SampleSize(0.11, 0.02, 0.05, 0.9, false)
	require.NoError(t, err)
	big, err := power.SampleSize(0.11, 0.04, 0.05, 0.8, false)
	require.NoError(t, err)

	assert.Greater(t, n90, n80)
	assert.Less(t, big, n80)
}

func TestSampleSize_Relative(t *testing.T) {
	rel, err := power.SampleSize(0.10, 0.20, 0.05, 0.8, true)
	require.NoError(t, err)
	abs, err := power.SampleSize(0.10, 0.02, 0.05, 0.8, false)
	require.NoError(t, err)
	assert.Equal(t, abs, rel)
}

func TestSampleSize_Errors(t *testing.T) {
	tests := []struct {
		name     string
		baseline float64
		effect   float64
		alpha    float64
		target   float64
		field    string
	}{
		{"zero effect", 0.1, 0, 0.05, 0.8, "effect_size"},
		{"treatment above one", 0.9, 0.2, 0.05, 0.8, "effect_size"},
		{"baseline", 0, 0.02, 0.05, 0.8, "baseline_rate"},
		{"alpha", 0.1, 0.02, 1, 0.8, "alpha"},
		{"power", 0.1, 0.02, 0.05, 1, "power"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := power.SampleSize(tt.baseline, tt.effect, tt.alpha, tt.target, false)
			var cfgErr *abtest.ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestSampleSize_TinyEffectIsDegenerate(t *testing.T) {
	for _, effect := range []float64{1e-12, -1e-12, 1e-7} {
		_, err := power.SampleSize(0.11, effect, 0.05, 0.8, false)
		var degErr *abtest.NumericalDegeneracyError
		require.True(t, errors.As(err, &degErr), "effect %g: got %v", effect, err)
		assert.Equal(t, "sample size", degErr.Op)
	}
}

func TestForConfig(t *testing.T) {
	cfg, err := abtest.NewConfig(abtest.Params{BaselineRate: 0.11, EffectSize: 0.02, SampleSize: 100, Alpha: 0.05, Simulations: 1})
	require.NoError(t, err)

	n, err := power.ForConfig(cfg, 0.8)
	require.NoError(t, err)
	assert.Equal(t, 4144, n)
}

func TestMinimumDetectableEffect(t *testing.T) {
	mde, err := power.MinimumDetectableEffect(0.11, 4144, 0.05, 0.8)
	require.NoError(t, err)
	assert.InDelta(t, 0.02, mde, 2e-4)
	assert.GreaterOrEqual(t, power.Power(0.11, 0.11+mde, 4144, 0.05), 0.8)

	_, err = power.MinimumDetectableEffect(0.11, 0, 0.05, 0.8)
	assert.Error(t, err)

	var numErr *abtest.NumericalDegeneracyError
	_, err = power.MinimumDetectableEffect(0.5, 1, 0.05, 0.99)
	assert.True(t, errors.As(err, &numErr), "got %v", err)
}

func TestCurve(t *testing.T) {
	cfg, err := abtest.NewConfig(abtest.Params{BaselineRate: 0.11, EffectSize: 0.02, SampleSize: 100, Alpha: 0.05, Simulations: 1})
	require.NoError(t, err)

	sizes, err := power.Sizes(500, 5000, 500)
	require.NoError(t, err)
	assert.Len(t, sizes, 10)
	assert.Equal(t, 5000, sizes[len(sizes)-1])

	points, err := power.Curve(cfg, sizes)
	require.NoError(t, err)
	for i := 1; i < len(points); i++ {
		assert.Greater(t, points[i].Power, points[i-1].Power)
	}

	_, err = power.Curve(cfg, []int{100, 0})
	assert.Error(t, err)
}

func TestSizes_AtPointLimit(t *testing.T) {
	sizes, err := power.Sizes(1, power.MaxCurvePoints, 1)
	require.NoError(t, err)
	assert.Len(t, sizes, power.MaxCurvePoints)
}

func TestSizes_Invalid(t *testing.T) {
	for _, tt := range [][3]int{{0, 10, 1}, {10, 5, 1}, {1, 10, 0}, {1, 1_000_000_000, 1}} {
		_, err := power.Sizes(tt[0], tt[1], tt[2])
		assert.Error(t, err, "%v", tt)
	}
}
