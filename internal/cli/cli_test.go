package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headline-goat/abacus/internal/abtest"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--db", filepath.Join(t.TempDir(), "test.db"), "--log-level", "error"))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{4144, "4,144"},
		{1234567, "1,234,567"},
		{-2500, "-2,500"},
	}

	for _, tt := range tests {
		if got := formatNumber(tt.n); got != tt.want {
			t.Errorf("formatNumber(%d) = %s, want %s", tt.n, got, tt.want)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	if got := formatPercent(0); got != "0%" {
		t.Errorf("formatPercent(0) = %s", got)
	}
	if got := formatPercent(0.1234); got != "12.34%" {
		t.Errorf("formatPercent(0.1234) = %s", got)
	}
}

func TestArmFlag(t *testing.T) {
	var o abtest.Outcome
	a := &arm{&o.ControlConversions, &o.ControlN}

	require.NoError(t, a.Set("110/1000"))
	assert.Equal(t, 110, o.ControlConversions)
	assert.Equal(t, 1000, o.ControlN)
	assert.Equal(t, "110/1000", a.String())

	assert.Error(t, a.Set("110"))
	assert.Error(t, a.Set("many/1000"))
}

func TestSampleSizeCommand(t *testing.T) {
	out, err := run(t, "samplesize", "--baseline", "0.11", "--effect", "0.02")
	require.NoError(t, err)

	assert.Contains(t, out, "Per-arm sample size: 4,144")
	assert.Contains(t, out, "Total sample size:   8,288")
}

func TestEvaluateCommand(t *testing.T) {
	out, err := run(t, "evaluate", "--control", "110/1000", "--treatment", "140/1000")
	require.NoError(t, err)

	assert.Contains(t, out, "METHOD: z-test")
	assert.Contains(t, out, "Significant: reject the null hypothesis")
}

func TestBayesCommand(t *testing.T) {
	out, err := run(t, "bayes", "--control", "110/1000", "--treatment", "140/1000", "--exact")
	require.NoError(t, err)

	assert.Contains(t, out, "METHOD: bayesian")
	assert.Contains(t, out, "P(treatment > control): 0.9786")
}

func TestCorrectCommand(t *testing.T) {
	out, err := run(t, "correct", "--method", "bonferroni", "0.01", "0.04", "0.03", "0.20")
	require.NoError(t, err)

	assert.Contains(t, out, "REJECT")
	assert.Contains(t, out, "1 of 4 rejected (bonferroni")

	_, err = run(t, "correct", "abc")
	assert.Error(t, err)
}

func TestSimulateCommand_JSON(t *testing.T) {
	out, err := run(t, "simulate", "--baseline", "0.2", "--effect", "0.05", "--n", "500", "-s", "50", "--seed", "3", "--json")
	require.NoError(t, err)

	assert.Contains(t, out, `"seed": 3`)
	assert.Contains(t, out, `"simulations": 50`)
}

func TestSimulateCommand_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte("baseline_rate: 0.3\neffect_size: 0\nsample_size: 200\nn_simulations: 40\nrandom_seed: 5\n"), 0o644))

	out, err := run(t, "simulate", "--file", path)
	require.NoError(t, err)

	assert.Contains(t, out, "Type-I error")
	assert.Contains(t, out, "REPLICATES: 40 (seed 5)")
}

func TestSequentialCommand_Replay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "looks.json")
	looks := `[{"control_conversions":50,"control_n":500,"treatment_conversions":52,"treatment_n":500},
	           {"control_conversions":48,"control_n":500,"treatment_conversions":51,"treatment_n":500}]`
	require.NoError(t, os.WriteFile(path, []byte(looks), 0o644))

	out, err := run(t, "sequential", "--looks", "2", "--batches", path)
	require.NoError(t, err)

	assert.Contains(t, out, "Decision: STOPPED_MAX_LOOKS")
	assert.Contains(t, out, "50/500")
	assert.Contains(t, out, "98/1000", "looks report cumulative data")
}

func TestScenarioCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "scenarios.db")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	exec := func(args ...string) error {
		out.Reset()
		resetFlags(rootCmd)
		rootCmd.SetArgs(append(args, "--db", db, "--log-level", "error"))
		return rootCmd.Execute()
	}

	require.NoError(t, exec("scenario", "save", "checkout", "--baseline", "0.11", "--effect", "0.02", "--n", "2000"))
	assert.Contains(t, out.String(), "Saved scenario 'checkout'")

	require.NoError(t, exec("scenario", "list"))
	assert.Contains(t, out.String(), "checkout")
	assert.Contains(t, out.String(), "2,000")

	require.NoError(t, exec("scenario", "show", "checkout"))
	assert.Contains(t, out.String(), "baseline_rate: 0.11")

	require.NoError(t, exec("scenario", "delete", "checkout"))
	assert.Error(t, exec("scenario", "show", "checkout"))
}

// resetFlags restores every flag to its default so commands can run more
// than once in a test binary.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}
