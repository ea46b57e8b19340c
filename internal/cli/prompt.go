package cli

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"

	"github.com/headline-goat/abacus/internal/abtest"
)

// promptParams asks for the core experiment parameters, offering p's
// values as defaults.
func promptParams(p abtest.Params) (abtest.Params, error) {
	var err error
	if p.BaselineRate, err = promptFloat("Baseline conversion rate", p.BaselineRate, openUnit); err != nil {
		return p, err
	}
	if p.EffectSize, err = promptFloat("Effect size", p.EffectSize, finite); err != nil {
		return p, err
	}

	mode := promptui.Select{
		Label: "Effect is",
		Items: []string{"absolute (percentage points)", "relative (lift)"},
		Size:  2,
	}
	idx, _, err := mode.Run()
	if err != nil {
		return p, promptErr(err)
	}
	p.Relative = idx == 1

	n, err := promptFloat("Sample size per arm", float64(p.SampleSize), positiveInt)
	if err != nil {
		return p, err
	}
	p.SampleSize = int(n)
	p.TreatmentSize = 0

	if p.Alpha, err = promptFloat("Significance level", p.Alpha, openUnit); err != nil {
		return p, err
	}
	sims, err := promptFloat("Simulations", float64(p.Simulations), positiveInt)
	if err != nil {
		return p, err
	}
	p.Simulations = int(sims)
	return p, nil
}

func promptFloat(label string, def float64, validate func(float64) error) (float64, error) {
	prompt := promptui.Prompt{
		Label: label,
		Validate: func(input string) error {
			v, err := strconv.ParseFloat(input, 64)
			if err != nil {
				return errors.New("not a number")
			}
			return validate(v)
		},
	}
	if def != 0 {
		prompt.Default = strconv.FormatFloat(def, 'g', -1, 64)
	}

	input, err := prompt.Run()
	if err != nil {
		return 0, promptErr(err)
	}
	return strconv.ParseFloat(input, 64)
}

func promptErr(err error) error {
	if err == promptui.ErrInterrupt {
		os.Exit(0)
	}
	return fmt.Errorf("prompt failed: %w", err)
}

func openUnit(v float64) error {
	if v <= 0 || v >= 1 {
		return errors.New("must be between 0 and 1")
	}
	return nil
}

func finite(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.New("must be finite")
	}
	return nil
}

func positiveInt(v float64) error {
	if v < 1 || v != float64(int(v)) {
		return errors.New("must be a positive whole number")
	}
	return nil
}
