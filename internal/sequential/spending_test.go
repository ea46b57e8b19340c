package sequential_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headline-goat/abacus/internal/abtest"
	"github.com/headline-goat/abacus/internal/sequential"
)

var spendingFunctions = []sequential.SpendingFunction{
	sequential.OBrienFleming{},
	sequential.Pocock{},
	sequential.PowerFamily{Rho: 1},
	sequential.PowerFamily{Rho: 3},
}

func TestSpending_SpendsFullAlphaAtEnd(t *testing.T) {
	for _, fn := range spendingFunctions {
		t.Run(fn.Name(), func(t *testing.T) {
			assert.InDelta(t, 0.05, fn.Cumulative(0.05, 1), 1e-9)
			assert.Equal(t, 0.0, fn.Cumulative(0.05, 0))
			assert.InDelta(t, fn.Cumulative(0.05, 1), fn.Cumulative(0.05, 1.5), 1e-15)
		})
	}
}

func TestSpending_NonDecreasing(t *testing.T) {
	for _, fn := range spendingFunctions {
		prev := 0.0
		for i := 1; i <= 100; i++ {
			cum := fn.Cumulative(0.05, float64(i)/100)
			assert.GreaterOrEqual(t, cum, prev, "%s at t=%.2f", fn.Name(), float64(i)/100)
			prev = cum
		}
	}
}

func TestSpending_OBrienFlemingIsConservativeEarly(t *testing.T) {
	obf := sequential.OBrienFleming{}.Cumulative(0.05, 0.2)
	pocock := sequential.Pocock{}.Cumulative(0.05, 0.2)

	// Lan-DeMets OBF at t=0.2: 2*(1 - Phi(1.96/sqrt(0.2))) ~ 1.2e-5.
	assert.InDelta(t, 1.2e-5, obf, 0.5e-5)
	assert.InDelta(t, 0.05*0.29539, pocock, 1e-6)
	assert.Less(t, obf, pocock)
}

func TestParseSpending(t *testing.T) {
	for name, want := range map[string]string{
		"":               "obrien-fleming",
		"obf":            "obrien-fleming",
		"obrien-fleming": "obrien-fleming",
		"pocock":         "pocock",
		"linear":         "linear",
	} {
		fn, err := sequential.ParseSpending(name, 0)
		require.NoError(t, err, name)
		assert.Equal(t, want, fn.Name())
	}

	fn, err := sequential.ParseSpending("power", 2)
	require.NoError(t, err)
	assert.Equal(t, sequential.PowerFamily{Rho: 2}, fn)

	var cfgErr *abtest.ConfigurationError
	_, err = sequential.ParseSpending("power", 0)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "rho", cfgErr.Field)

	_, err = sequential.ParseSpending("haybittle", 0)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "spending", cfgErr.Field)
}
