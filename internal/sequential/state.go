// Package sequential runs group-sequential A/B tests with alpha spending and
// optional futility stopping.
package sequential

import (
	"fmt"
	"math"

	"github.com/headline-goat/abacus/internal/abtest"
	"github.com/headline-goat/abacus/internal/stats"
)

// MaxLooksLimit bounds the number of interim analyses a plan may schedule.
const MaxLooksLimit = 100

// Decision is the state of a sequential test.
type Decision string

const (
	Accumulating    Decision = "ACCUMULATING"
	StoppedEfficacy Decision = "STOPPED_EFFICACY"
	StoppedFutility Decision = "STOPPED_FUTILITY"
	StoppedMaxLooks Decision = "STOPPED_MAX_LOOKS"
)

// Terminal reports whether no further looks are allowed.
func (d Decision) Terminal() bool {
	return d != Accumulating
}

// Plan fixes the design of a sequential test before the first look.
type Plan struct {
	Alpha    float64
	MaxLooks int
	Spending SpendingFunction
	// FutilityZ, when set, stops the test once the interim z statistic
	// (treatment minus control) falls below it.
	FutilityZ *float64
	// Confidence is the interim interval width; zero means 1-Alpha.
	Confidence float64
}

func (p Plan) validate() error {
	if !(p.Alpha > 0 && p.Alpha < 1) {
		return &abtest.ConfigurationError{Field: "alpha", Value: p.Alpha, Reason: "must be in (0, 1)"}
	}
	if p.MaxLooks < 1 || p.MaxLooks > MaxLooksLimit {
		return &abtest.ConfigurationError{Field: "max_looks", Value: p.MaxLooks, Reason: fmt.Sprintf("must be in 1..%d", MaxLooksLimit)}
	}
	if p.Spending == nil {
		return &abtest.ConfigurationError{Field: "spending", Reason: "is required"}
	}
	if p.FutilityZ != nil && (math.IsNaN(*p.FutilityZ) || math.IsInf(*p.FutilityZ, 0)) {
		return &abtest.ConfigurationError{Field: "futility_z", Value: *p.FutilityZ, Reason: "must be finite"}
	}
	if p.Confidence != 0 && !(p.Confidence > 0 && p.Confidence < 1) {
		return &abtest.ConfigurationError{Field: "confidence", Value: p.Confidence, Reason: "must be in (0, 1)"}
	}
	return nil
}

// Look records one interim analysis.
type Look struct {
	Index           int            `json:"index"`
	Fraction        float64        `json:"information_fraction"`
	Data            abtest.Outcome `json:"data"`
	Result          abtest.Result  `json:"result"`
	Boundary        float64        `json:"boundary"`
	CumulativeAlpha float64        `json:"cumulative_alpha"`
	Decision        Decision       `json:"decision"`
}

// State is a sequential test in progress. It is owned by a single caller
// and is not safe for concurrent Advance calls.
type State struct {
	plan     Plan
	looks    []Look
	data     abtest.Outcome
	spent    float64
	decision Decision
}

// New starts a sequential test for plan.
func New(plan Plan) (*State, error) {
	if err := plan.validate(); err != nil {
		return nil, err
	}
	if plan.Confidence == 0 {
		plan.Confidence = 1 - plan.Alpha
	}
	return &State{plan: plan, decision: Accumulating}, nil
}

// Advance adds batch to the accumulated data and performs the next look.
// The interim z-test runs on all data so far; the test stops for efficacy
// when its p-value falls below the alpha spent at this look.
func (s *State) Advance(batch abtest.Outcome) (Look, error) {
	if s.decision.Terminal() {
		return Look{}, &abtest.InvalidStateError{
			Op:     "advance",
			Reason: fmt.Sprintf("test already stopped (%s) after look %d", s.decision, len(s.looks)),
		}
	}
	if err := batch.Validate(); err != nil {
		return Look{}, err
	}

	data := s.data.Add(batch)
	index := len(s.looks) + 1
	fraction := float64(index) / float64(s.plan.MaxLooks)

	cumulative := s.plan.Spending.Cumulative(s.plan.Alpha, fraction)
	cumulative = math.Min(s.plan.Alpha, math.Max(s.spent, cumulative))
	boundary := cumulative - s.spent

	res, err := stats.ZTest(data, boundary, s.plan.Confidence)
	if err != nil {
		return Look{}, err
	}

	decision := Accumulating
	switch {
	case res.PValue < boundary:
		decision = StoppedEfficacy
	case s.plan.FutilityZ != nil && !res.Degenerate && res.Statistic < *s.plan.FutilityZ:
		decision = StoppedFutility
	case index >= s.plan.MaxLooks:
		decision = StoppedMaxLooks
	}

	look := Look{
		Index:           index,
		Fraction:        fraction,
		Data:            data,
		Result:          res,
		Boundary:        boundary,
		CumulativeAlpha: cumulative,
		Decision:        decision,
	}

	s.data = data
	s.spent = cumulative
	s.decision = decision
	s.looks = append(s.looks, look)
	return look, nil
}

func (s *State) Plan() Plan { return s.plan }
func (s *State) Decision() Decision { return s.decision }
func (s *State) Terminal() bool { return s.decision.Terminal() }
func (s *State) LookIndex() int { return len(s.looks) }
func (s *State) SpentAlpha() float64 { return s.spent }
func (s *State) Data() abtest.Outcome { return s.data }

// Looks returns a copy of the interim analyses so far.
func (s *State) Looks() []Look {
	out := make([]Look, len(s.looks))
	copy(out, s.looks)
	return out
}
