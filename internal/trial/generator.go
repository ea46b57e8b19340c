// Package trial draws synthetic two-arm trial outcomes.
package trial

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/headline-goat/abacus/internal/abtest"
)

// Source returns the random source for one replicate. Replicate i of a run
// seeded with seed always sees the same stream, independent of how many
// workers share the run or in which order they pick replicates up.
func Source(seed uint64, replicate int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(replicate)))
}

// Generate draws one outcome for cfg. Control conversions are drawn before
// treatment conversions.
func Generate(cfg abtest.Config, src rand.Source) abtest.Outcome {
	control := Binomial(cfg.ControlN(), cfg.BaselineRate(), src)
	treatment := Binomial(cfg.TreatmentN(), cfg.TreatmentRate(), src)

	return abtest.Outcome{
		ControlConversions:   control,
		TreatmentConversions: treatment,
		ControlN:             cfg.ControlN(),
		TreatmentN:           cfg.TreatmentN(),
	}
}

// Binomial draws one Binomial(n, p) variate from src.
func Binomial(n int, p float64, src rand.Source) int {
	if n <= 0 || p <= 0 {
		return 0
	}
	if p >= 1 {
		return n
	}
	d := distuv.Binomial{N: float64(n), P: p, Src: src}
	return int(d.Rand())
}

// Replicates returns the first n replicate outcomes of cfg under seed. It is the
// sequential reference for what a parallel run must reproduce.
func Replicates(cfg abtest.Config, seed uint64, n int) []abtest.Outcome {
	out := make([]abtest.Outcome, n)
	for i := range out {
		out[i] = Generate(cfg, Source(seed, i))
	}
	return out
}
