package server

import (
	"errors"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/headline-goat/abacus/internal/abtest"
	"github.com/headline-goat/abacus/internal/bayes"
	"github.com/headline-goat/abacus/internal/correction"
	"github.com/headline-goat/abacus/internal/power"
	"github.com/headline-goat/abacus/internal/sequential"
	"github.com/headline-goat/abacus/internal/stats"
	"github.com/headline-goat/abacus/internal/store"
	"github.com/headline-goat/abacus/internal/trial"
)

// maxReplicateWork caps the random draws a single request may make.
const maxReplicateWork = 5_000_000_000

type HealthResponse struct {
	Status         string `json:"status"`
	ScenariosCount int    `json:"scenarios_count"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(c *gin.Context) {
	count := 0
	if s.store != nil {
		scenarios, err := s.store.ListScenarios(c.Request.Context())
		if err != nil {
			s.writeError(c, err)
			return
		}
		count = len(scenarios)
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:         "ok",
		ScenariosCount: count,
		UptimeSeconds:  int64(time.Since(s.startTime).Seconds()),
	})
}

// SimulateRequest is the body of POST /api/simulate.
type SimulateRequest struct {
	abtest.Params
	// Test is "z" (default), "chi2" or "bayes".
	Test    string        `json:"test,omitempty"`
	Yates   bool          `json:"yates,omitempty"`
	Prior   *bayes.Prior  `json:"prior,omitempty"`
	Options bayes.Options `json:"bayes,omitempty"`
}

func (s *Server) handleSimulate(c *gin.Context) {
	req := SimulateRequest{Params: abtest.DefaultParams()}
	if !s.bind(c, &req) {
		return
	}

	cfg, err := s.config(req.Params)
	if err != nil {
		s.writeError(c, err)
		return
	}
	eval, err := evaluatorFor(req.Test, cfg, req.Yates, req.Prior, req.Options)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if _, ok := eval.(power.Bayesian); ok {
		draws := int64(cfg.ControlN()+cfg.TreatmentN()) + int64(req.Options.PosteriorDraws())
		if err := checkWork(cfg, draws); err != nil {
			s.writeError(c, err)
			return
		}
	}

	start := time.Now()
	sim := power.Simulator{Workers: s.workers, Evaluator: eval, Logger: s.logger}
	summary, err := sim.Run(c.Request.Context(), cfg)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.observeRun("power", start, summary.Simulations, summary.DegenerateReplicates)

	respond(c, summary)
}

type SampleSizeRequest struct {
	BaselineRate float64 `json:"baseline_rate"`
	EffectSize   float64 `json:"effect_size"`
	Alpha        float64 `json:"alpha"`
	Power        float64 `json:"power"`
	Relative     bool    `json:"relative,omitempty"`
}

type SampleSizeResponse struct {
	SampleSize    int     `json:"sample_size"`
	Total         int     `json:"total"`
	AchievedPower float64 `json:"achieved_power"`
}

func (s *Server) handleSampleSize(c *gin.Context) {
	req := SampleSizeRequest{Alpha: 0.05, Power: 0.8}
	if !s.bind(c, &req) {
		return
	}

	n, err := power.SampleSize(req.BaselineRate, req.EffectSize, req.Alpha, req.Power, req.Relative)
	if err != nil {
		s.writeError(c, err)
		return
	}

	treatment := req.BaselineRate + req.EffectSize
	if req.Relative {
		treatment = req.BaselineRate * (1 + req.EffectSize)
	}
	respond(c, SampleSizeResponse{
		SampleSize:    n,
		Total:         2 * n,
		AchievedPower: power.Power(req.BaselineRate, treatment, n, req.Alpha),
	})
}

type PowerCurveRequest struct {
	abtest.Params
	Sizes    []int `json:"sizes,omitempty"`
	From     int   `json:"from,omitempty"`
	To       int   `json:"to,omitempty"`
	Step     int   `json:"step,omitempty"`
	Simulate bool  `json:"simulate,omitempty"`
}

type PowerCurveResponse struct {
	ClosedForm []power.Point `json:"closed_form"`
	Simulated  []power.Point `json:"simulated,omitempty"`
}

func (s *Server) handlePowerCurve(c *gin.Context) {
	req := PowerCurveRequest{Params: abtest.DefaultParams()}
	if !s.bind(c, &req) {
		return
	}

	sizes := req.Sizes
	if len(sizes) == 0 {
		var err error
		if sizes, err = power.Sizes(req.From, req.To, req.Step); err != nil {
			s.writeError(c, err)
			return
		}
	}
	if req.SampleSize == 0 {
		req.SampleSize = sizes[len(sizes)-1]
	}

	cfg, err := s.config(req.Params)
	if err != nil {
		s.writeError(c, err)
		return
	}

	var resp PowerCurveResponse
	if resp.ClosedForm, err = power.Curve(cfg, sizes); err != nil {
		s.writeError(c, err)
		return
	}
	if req.Simulate {
		if err := checkWork(cfg, curveDraws(sizes)); err != nil {
			s.writeError(c, err)
			return
		}
		start := time.Now()
		sim := power.Simulator{Workers: s.workers, Logger: s.logger}
		if resp.Simulated, err = sim.SimulatedCurve(c.Request.Context(), cfg, sizes); err != nil {
			s.writeError(c, err)
			return
		}
		s.observeRun("power_curve", start, cfg.Simulations()*len(sizes), 0)
	}

	respond(c, resp)
}

type EvaluateRequest struct {
	abtest.Outcome
	Alpha      float64 `json:"alpha"`
	Confidence float64 `json:"confidence,omitempty"`
	Test       string  `json:"test,omitempty"`
	Yates      bool    `json:"yates,omitempty"`
}

func (s *Server) handleEvaluate(c *gin.Context) {
	req := EvaluateRequest{Alpha: 0.05}
	if !s.bind(c, &req) {
		return
	}
	if !(req.Alpha > 0 && req.Alpha < 1) {
		s.writeError(c, &abtest.ConfigurationError{Field: "alpha", Value: req.Alpha, Reason: "must be in (0, 1)"})
		return
	}
	if req.Confidence == 0 {
		req.Confidence = 1 - req.Alpha
	}

	var res abtest.Result
	var err error
	switch req.Test {
	case "", "z":
		res, err = stats.ZTest(req.Outcome, req.Alpha, req.Confidence)
	case "chi2":
		res, err = stats.ChiSquare(req.Outcome, req.Alpha, req.Confidence, req.Yates)
	default:
		err = &abtest.ConfigurationError{Field: "test", Value: req.Test, Reason: "must be z or chi2"}
	}
	if err != nil {
		s.writeError(c, err)
		return
	}

	respond(c, res)
}

type BayesRequest struct {
	abtest.Outcome
	Prior   *bayes.Prior  `json:"prior,omitempty"`
	Options bayes.Options `json:"options,omitempty"`
	Seed    *uint64       `json:"random_seed,omitempty"`
}

func (s *Server) handleBayes(c *gin.Context) {
	var req BayesRequest
	if !s.bind(c, &req) {
		return
	}

	prior := bayes.Uniform
	if req.Prior != nil {
		prior = *req.Prior
	}
	seed := rand.Uint64()
	if req.Seed != nil {
		seed = *req.Seed
	}

	res, err := bayes.Evaluate(req.Outcome, prior, req.Options, trial.Source(seed, 0))
	if err != nil {
		s.writeError(c, err)
		return
	}

	respond(c, res)
}

type CorrectRequest struct {
	PValues []float64 `json:"p_values"`
	Alpha   float64   `json:"alpha"`
	Method  string    `json:"method"`
}

func (s *Server) handleCorrect(c *gin.Context) {
	req := CorrectRequest{Alpha: 0.05, Method: string(correction.BenjaminiHochberg)}
	if !s.bind(c, &req) {
		return
	}

	method, err := correction.ParseMethod(req.Method)
	if err != nil {
		s.writeError(c, err)
		return
	}
	batch, err := correction.Correct(req.PValues, req.Alpha, method)
	if err != nil {
		s.writeError(c, err)
		return
	}

	respond(c, batch)
}

type SequentialRequest struct {
	Alpha     float64          `json:"alpha"`
	MaxLooks  int              `json:"max_looks"`
	Spending  string           `json:"spending,omitempty"`
	Rho       float64          `json:"rho,omitempty"`
	FutilityZ *float64         `json:"futility_z,omitempty"`
	Batches   []abtest.Outcome `json:"batches"`
}

type SequentialResponse struct {
	Decision   sequential.Decision `json:"decision"`
	SpentAlpha float64             `json:"spent_alpha"`
	Looks      []sequential.Look   `json:"looks"`
}

// handleSequential replays the supplied batches through a fresh sequential
// state, stopping at the first terminal decision. Batches after the stop
// are ignored.
func (s *Server) handleSequential(c *gin.Context) {
	req := SequentialRequest{Alpha: 0.05}
	if !s.bind(c, &req) {
		return
	}

	spending, err := sequential.ParseSpending(req.Spending, req.Rho)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if req.MaxLooks == 0 {
		req.MaxLooks = len(req.Batches)
	}
	state, err := sequential.New(sequential.Plan{
		Alpha:     req.Alpha,
		MaxLooks:  req.MaxLooks,
		Spending:  spending,
		FutilityZ: req.FutilityZ,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	for _, batch := range req.Batches {
		if state.Terminal() {
			break
		}
		if _, err := state.Advance(batch); err != nil {
			s.writeError(c, err)
			return
		}
	}

	respond(c, SequentialResponse{
		Decision:   state.Decision(),
		SpentAlpha: state.SpentAlpha(),
		Looks:      state.Looks(),
	})
}

type scenarioResponse struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Params      abtest.Params `json:"params"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (s *Server) handleListScenarios(c *gin.Context) {
	items := []scenarioResponse{}
	if s.store != nil {
		scenarios, err := s.store.ListScenarios(c.Request.Context())
		if err != nil {
			s.writeError(c, err)
			return
		}
		for _, sc := range scenarios {
			items = append(items, toScenarioResponse(sc))
		}
	}
	respond(c, items)
}

func (s *Server) handleGetScenario(c *gin.Context) {
	if s.store == nil {
		s.writeError(c, store.ErrNotFound)
		return
	}
	sc, err := s.store.GetScenario(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	respond(c, toScenarioResponse(sc))
}

func toScenarioResponse(sc *store.Scenario) scenarioResponse {
	return scenarioResponse{
		Name:        sc.Name,
		Description: sc.Description,
		Params:      sc.Params,
		UpdatedAt:   sc.UpdatedAt,
	}
}

// config validates p and rejects runs too large to serve synchronously.
func (s *Server) config(p abtest.Params) (abtest.Config, error) {
	cfg, err := abtest.NewConfig(p)
	if err != nil {
		return abtest.Config{}, err
	}
	if err := checkWork(cfg, int64(cfg.ControlN()+cfg.TreatmentN())); err != nil {
		return abtest.Config{}, err
	}
	return cfg, nil
}

// checkWork rejects cfg when its replicates, at perReplicate draws each,
// would exceed maxReplicateWork.
func checkWork(cfg abtest.Config, perReplicate int64) error {
	if perReplicate > 0 && int64(cfg.Simulations()) > maxReplicateWork/perReplicate {
		return &abtest.ConfigurationError{Field: "n_simulations", Value: cfg.Simulations(), Reason: "run too large for the API; use the CLI"}
	}
	return nil
}

// curveDraws is the per-replicate draw count of a simulated curve, which
// runs every size with both arms at that size. It saturates past the cap.
func curveDraws(sizes []int) int64 {
	var total int64
	for _, n := range sizes {
		total += 2 * int64(n)
		if total > maxReplicateWork {
			return maxReplicateWork + 1
		}
	}
	return total
}

func evaluatorFor(test string, cfg abtest.Config, yates bool, prior *bayes.Prior, opts bayes.Options) (power.Evaluator, error) {
	switch test {
	case "", "z":
		return power.Frequentist{Alpha: cfg.Alpha(), Confidence: cfg.Confidence()}, nil
	case "chi2":
		return power.ChiSquared{Alpha: cfg.Alpha(), Confidence: cfg.Confidence(), Yates: yates}, nil
	case "bayes":
		p := bayes.Uniform
		if prior != nil {
			p = *prior
		}
		return power.Bayesian{Prior: p, Options: opts}, nil
	default:
		return nil, &abtest.ConfigurationError{Field: "test", Value: test, Reason: "must be z, chi2 or bayes"}
	}
}

func (s *Server) observeRun(kind string, start time.Time, replicates, degenerate int) {
	s.metrics.runs.WithLabelValues(kind).Inc()
	s.metrics.duration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	s.metrics.replicates.Add(float64(replicates))
	s.metrics.degenerate.Add(float64(degenerate))
}

func (s *Server) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

func respond(c *gin.Context, result any) {
	c.JSON(http.StatusOK, gin.H{
		"run_id": uuid.NewString(),
		"result": result,
	})
}

func (s *Server) writeError(c *gin.Context, err error) {
	var cfgErr *abtest.ConfigurationError
	var stateErr *abtest.InvalidStateError
	var numErr *abtest.NumericalDegeneracyError

	switch {
	case errors.As(err, &cfgErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": cfgErr.Field})
	case errors.Is(err, abtest.ErrInvalidOutcome):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &stateErr):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &numErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		s.logger.Error("request failed", zap.String("route", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
