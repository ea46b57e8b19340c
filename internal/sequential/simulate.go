package sequential

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/headline-goat/abacus/internal/abtest"
	"github.com/headline-goat/abacus/internal/trial"
)

// SimulationResult summarizes a Monte Carlo run of a sequential design.
type SimulationResult struct {
	Simulations    int              `json:"simulations"`
	Rejections     int              `json:"rejections"`
	RejectionRate  float64          `json:"rejection_rate"`
	MeanLooks      float64          `json:"mean_looks"`
	MeanSampleSize float64          `json:"mean_sample_size"`
	MaxSpentAlpha  float64          `json:"max_spent_alpha"`
	Stops          map[Decision]int `json:"stops"`
	Seed           uint64           `json:"seed"`
}

type replicate struct {
	decision Decision
	looks    int
	n        int
	spent    float64
}

// Simulator runs Monte Carlo replicates of a sequential design.
type Simulator struct {
	// Workers bounds replicate parallelism; zero uses GOMAXPROCS.
	Workers int
	Logger  *zap.Logger
}

// Run simulates cfg.Simulations() replicates of plan. Each replicate splits
// cfg's per-arm sample size into MaxLooks nearly equal batches and advances
// a fresh State until it stops. Replicate i draws from trial.Source(seed, i);
// an unseeded configuration gets a fresh seed that is reported in the result.
func (s Simulator) Run(ctx context.Context, cfg abtest.Config, plan Plan) (SimulationResult, error) {
	if _, err := New(plan); err != nil {
		return SimulationResult{}, err
	}
	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}

	seed, ok := cfg.Seed()
	if !ok {
		seed = rand.Uint64()
	}

	n := cfg.Simulations()
	log.Debug("sequential simulation started",
		zap.Int("replicates", n),
		zap.Int("max_looks", plan.MaxLooks),
		zap.String("spending", plan.Spending.Name()),
		zap.Uint64("seed", seed),
	)
	start := time.Now()

	results := make([]replicate, n)
	err := trial.ForEach(ctx, n, s.Workers, func(i int) error {
		r, err := runReplicate(cfg, plan, trial.Source(seed, i))
		if err != nil {
			return err
		}
		results[i] = r
		return nil
	})
	if err != nil {
		return SimulationResult{}, err
	}

	out := SimulationResult{
		Simulations: n,
		Stops:       make(map[Decision]int),
		Seed:        seed,
	}
	var looks, size float64
	for _, r := range results {
		out.Stops[r.decision]++
		if r.decision == StoppedEfficacy {
			out.Rejections++
		}
		if r.spent > out.MaxSpentAlpha {
			out.MaxSpentAlpha = r.spent
		}
		looks += float64(r.looks)
		size += float64(r.n)
	}
	out.RejectionRate = float64(out.Rejections) / float64(n)
	out.MeanLooks = looks / float64(n)
	out.MeanSampleSize = size / float64(n)

	log.Info("sequential simulation finished",
		zap.Int("replicates", n),
		zap.Int("rejections", out.Rejections),
		zap.Float64("mean_looks", out.MeanLooks),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

func runReplicate(cfg abtest.Config, plan Plan, src rand.Source) (replicate, error) {
	s, err := New(plan)
	if err != nil {
		return replicate{}, err
	}

	for k := 1; !s.Terminal(); k++ {
		nc := batchSize(cfg.ControlN(), k, plan.MaxLooks)
		nt := batchSize(cfg.TreatmentN(), k, plan.MaxLooks)
		batch := abtest.Outcome{
			ControlConversions:   trial.Binomial(nc, cfg.BaselineRate(), src),
			TreatmentConversions: trial.Binomial(nt, cfg.TreatmentRate(), src),
			ControlN:             nc,
			TreatmentN:           nt,
		}
		if _, err := s.Advance(batch); err != nil {
			return replicate{}, err
		}
	}

	return replicate{
		decision: s.Decision(),
		looks:    s.LookIndex(),
		n:        s.Data().ControlN,
		spent:    s.SpentAlpha(),
	}, nil
}

// batchSize is the k-th of looks nearly equal parts of total.
func batchSize(total, k, looks int) int {
	return total*k/looks - total*(k-1)/looks
}
