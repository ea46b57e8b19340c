package abtest_test

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headline-goat/abacus/internal/abtest"
)

func validParams() abtest.Params {
	p := abtest.DefaultParams()
	p.BaselineRate = 0.11
	p.EffectSize = 0.02
	p.SampleSize = 2000
	return p
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := abtest.NewConfig(validParams())
	require.NoError(t, err)

	assert.InDelta(t, 0.13, cfg.TreatmentRate(), 1e-12)
	assert.InDelta(t, 0.02, cfg.TrueDifference(), 1e-12)
	assert.Equal(t, 2000, cfg.ControlN())
	assert.Equal(t, 2000, cfg.TreatmentN())
	assert.Equal(t, 0.05, cfg.Alpha())
	assert.InDelta(t, 0.95, cfg.Confidence(), 1e-12)
	assert.Equal(t, 1000, cfg.Simulations())
	assert.False(t, cfg.NullTrue())
	assert.False(t, cfg.Clamped())

	_, ok := cfg.Seed()
	assert.False(t, ok)
}

func TestNewConfig_RelativeEffect(t *testing.T) {
	p := validParams()
	p.EffectSize = 0.10
	p.Relative = true

	cfg, err := abtest.NewConfig(p)
	require.NoError(t, err)
	assert.InDelta(t, 0.121, cfg.TreatmentRate(), 1e-12)
}

func TestNewConfig_UnequalArms(t *testing.T) {
	p := validParams()
	p.TreatmentSize = 500

	cfg, err := abtest.NewConfig(p)
	require.NoError(t, err)
	assert.Equal(t, 2000, cfg.ControlN())
	assert.Equal(t, 500, cfg.TreatmentN())
}

func TestNewConfig_RejectsInvalidFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*abtest.Params)
		field  string
	}{
		{"baseline zero", func(p *abtest.Params) { p.BaselineRate = 0 }, "baseline_rate"},
		{"baseline one", func(p *abtest.Params) { p.BaselineRate = 1 }, "baseline_rate"},
		{"baseline NaN", func(p *abtest.Params) { p.BaselineRate = math.NaN() }, "baseline_rate"},
		{"zero sample size", func(p *abtest.Params) { p.SampleSize = 0 }, "sample_size"},
		{"negative treatment size", func(p *abtest.Params) { p.TreatmentSize = -1 }, "treatment_size"},
		{"alpha zero", func(p *abtest.Params) { p.Alpha = 0 }, "alpha"},
		{"alpha one", func(p *abtest.Params) { p.Alpha = 1 }, "alpha"},
		{"no simulations", func(p *abtest.Params) { p.Simulations = 0 }, "n_simulations"},
		{"confidence above one", func(p *abtest.Params) { p.Confidence = 1.5 }, "confidence"},
		{"infinite effect", func(p *abtest.Params) { p.EffectSize = math.Inf(1) }, "effect_size"},
		{"treatment above one", func(p *abtest.Params) { p.EffectSize = 0.95 }, "effect_size"},
		{"treatment below zero", func(p *abtest.Params) { p.EffectSize = -0.2 }, "effect_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)

			_, err := abtest.NewConfig(p)
			require.Error(t, err)

			var cfgErr *abtest.ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "got %T: %v", err, err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestNewConfig_Clamp(t *testing.T) {
	p := validParams()
	p.EffectSize = 0.95
	p.Clamp = true

	cfg, err := abtest.NewConfig(p)
	require.NoError(t, err)
	assert.True(t, cfg.Clamped())
	assert.Less(t, cfg.TreatmentRate(), 1.0)
	assert.Greater(t, cfg.TreatmentRate(), 0.999)
}

func TestConfig_ParamsRoundTrip(t *testing.T) {
	seed := uint64(7)
	p := validParams()
	p.Seed = &seed

	cfg, err := abtest.NewConfig(p)
	require.NoError(t, err)

	again, err := abtest.NewConfig(cfg.Params())
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestConfig_Copies(t *testing.T) {
	cfg, err := abtest.NewConfig(validParams())
	require.NoError(t, err)

	null, err := cfg.WithEffect(0)
	require.NoError(t, err)
	assert.True(t, null.NullTrue())
	assert.False(t, cfg.NullTrue(), "original must not change")

	bigger, err := cfg.WithSampleSize(8000)
	require.NoError(t, err)
	assert.Equal(t, 8000, bigger.TreatmentN())
	assert.Equal(t, 2000, cfg.SampleSize())

	_, err = cfg.WithSampleSize(0)
	assert.Error(t, err)

	seeded := cfg.WithSeed(99)
	seed, ok := seeded.Seed()
	assert.True(t, ok)
	assert.Equal(t, uint64(99), seed)
}

func TestLoadParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkout.yaml")
	content := "baseline_rate: 0.11\neffect_size: 0.02\nsample_size: 2000\nrandom_seed: 42\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p, err := abtest.LoadParams(path)
	require.NoError(t, err)
	assert.Equal(t, 0.11, p.BaselineRate)
	assert.Equal(t, 2000, p.SampleSize)
	assert.Equal(t, 0.05, p.Alpha, "defaults fill omitted keys")
	require.NotNil(t, p.Seed)
	assert.Equal(t, uint64(42), *p.Seed)

	_, err = abtest.LoadParams(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
