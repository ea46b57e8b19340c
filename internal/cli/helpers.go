package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/headline-goat/abacus/internal/abtest"
	"github.com/headline-goat/abacus/internal/store"
)

// withStore opens the database, executes the function, and handles cleanup.
func withStore(fn func(*store.SQLiteStore) error) error {
	s, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	return fn(s)
}

// paramFlags binds the experiment parameters shared by simulation commands.
type paramFlags struct {
	params   abtest.Params
	seed     uint64
	scenario string
	file     string
}

func (f *paramFlags) register(fs *pflag.FlagSet) {
	f.params = abtest.DefaultParams()
	fs.Float64VarP(&f.params.BaselineRate, "baseline", "b", 0, "control conversion probability")
	fs.Float64VarP(&f.params.EffectSize, "effect", "e", 0, "treatment effect (absolute unless --relative)")
	fs.BoolVar(&f.params.Relative, "relative", false, "interpret --effect as a relative lift")
	fs.IntVar(&f.params.SampleSize, "n", 0, "per-arm sample size")
	fs.IntVar(&f.params.TreatmentSize, "treatment-n", 0, "treatment arm size (default: same as --n)")
	fs.Float64VarP(&f.params.Alpha, "alpha", "a", f.params.Alpha, "significance level")
	fs.IntVarP(&f.params.Simulations, "simulations", "s", f.params.Simulations, "number of Monte Carlo replicates")
	fs.Uint64Var(&f.seed, "seed", 0, "random seed (default: random, reported in the output)")
	fs.BoolVar(&f.params.Clamp, "clamp", false, "clamp a treatment rate outside (0, 1) instead of failing")
	fs.Float64Var(&f.params.Confidence, "confidence", 0, "interval confidence level (default: 1 - alpha)")
	fs.StringVar(&f.scenario, "scenario", "", "load parameters from a saved scenario")
	fs.StringVarP(&f.file, "file", "f", "", "load parameters from a YAML file")
}

// resolve builds the parameters for a run. A scenario or file provides the
// base; flags the user set explicitly override it.
func (f *paramFlags) resolve(cmd *cobra.Command) (abtest.Params, error) {
	if f.scenario != "" && f.file != "" {
		return abtest.Params{}, errors.New("use --scenario OR --file, not both")
	}

	p := f.params
	switch {
	case f.scenario != "":
		err := withStore(func(s *store.SQLiteStore) error {
			sc, err := s.GetScenario(context.Background(), f.scenario)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("scenario '%s' not found", f.scenario)
			}
			if err != nil {
				return err
			}
			p = sc.Params
			return nil
		})
		if err != nil {
			return abtest.Params{}, err
		}
	case f.file != "":
		loaded, err := abtest.LoadParams(f.file)
		if err != nil {
			return abtest.Params{}, err
		}
		p = loaded
	}

	if f.scenario != "" || f.file != "" {
		overrideChanged(cmd.Flags(), &p, f.params)
	}
	if cmd.Flags().Changed("seed") {
		seed := f.seed
		p.Seed = &seed
	}
	return p, nil
}

func overrideChanged(fs *pflag.FlagSet, dst *abtest.Params, src abtest.Params) {
	if fs.Changed("baseline") {
		dst.BaselineRate = src.BaselineRate
	}
	if fs.Changed("effect") {
		dst.EffectSize = src.EffectSize
	}
	if fs.Changed("relative") {
		dst.Relative = src.Relative
	}
	if fs.Changed("n") {
		dst.SampleSize = src.SampleSize
		dst.TreatmentSize = src.TreatmentSize
	}
	if fs.Changed("treatment-n") {
		dst.TreatmentSize = src.TreatmentSize
	}
	if fs.Changed("alpha") {
		dst.Alpha = src.Alpha
	}
	if fs.Changed("simulations") {
		dst.Simulations = src.Simulations
	}
	if fs.Changed("clamp") {
		dst.Clamp = src.Clamp
	}
	if fs.Changed("confidence") {
		dst.Confidence = src.Confidence
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func formatPercent(rate float64) string {
	if rate == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", rate*100)
}

func formatNumber(n int) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	return fmt.Sprintf("%d,%03d,%03d", n/1000000, (n/1000)%1000, n%1000)
}

func formatInterval(iv abtest.Interval) string {
	return fmt.Sprintf("[%.2f%%, %.2f%%]", iv.Lower*100, iv.Upper*100)
}
