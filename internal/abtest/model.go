package abtest

import "fmt"

// Outcome is the observed (or simulated) data of one two-arm trial.
type Outcome struct {
	ControlConversions   int `json:"control_conversions"`
	TreatmentConversions int `json:"treatment_conversions"`
	ControlN             int `json:"control_n"`
	TreatmentN           int `json:"treatment_n"`
}

// ControlRate returns the observed control conversion rate, 0 for an empty arm.
func (o Outcome) ControlRate() float64 {
	if o.ControlN == 0 {
		return 0
	}
	return float64(o.ControlConversions) / float64(o.ControlN)
}

// TreatmentRate returns the observed treatment conversion rate, 0 for an empty arm.
func (o Outcome) TreatmentRate() float64 {
	if o.TreatmentN == 0 {
		return 0
	}
	return float64(o.TreatmentConversions) / float64(o.TreatmentN)
}

// Validate checks that conversions lie within 0..n for both arms.
func (o Outcome) Validate() error {
	if o.ControlN < 0 || o.TreatmentN < 0 {
		return fmt.Errorf("%w: negative sample size (control %d, treatment %d)", ErrInvalidOutcome, o.ControlN, o.TreatmentN)
	}
	if o.ControlConversions < 0 || o.ControlConversions > o.ControlN {
		return fmt.Errorf("%w: control conversions %d not in 0..%d", ErrInvalidOutcome, o.ControlConversions, o.ControlN)
	}
	if o.TreatmentConversions < 0 || o.TreatmentConversions > o.TreatmentN {
		return fmt.Errorf("%w: treatment conversions %d not in 0..%d", ErrInvalidOutcome, o.TreatmentConversions, o.TreatmentN)
	}
	return nil
}

// Add returns the arm-wise sum of o and other.
func (o Outcome) Add(other Outcome) Outcome {
	return Outcome{
		ControlConversions:   o.ControlConversions + other.ControlConversions,
		TreatmentConversions: o.TreatmentConversions + other.TreatmentConversions,
		ControlN:             o.ControlN + other.ControlN,
		TreatmentN:           o.TreatmentN + other.TreatmentN,
	}
}

// Interval is a closed interval [Lower, Upper].
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Contains reports whether x lies in the interval.
func (i Interval) Contains(x float64) bool {
	return x >= i.Lower && x <= i.Upper
}

// Width returns Upper - Lower.
func (i Interval) Width() float64 {
	return i.Upper - i.Lower
}

// Method names the procedure that produced a Result.
type Method string

const (
	MethodZTest     Method = "z-test"
	MethodChiSquare Method = "chi-square"
	MethodBayesian  Method = "bayesian"
)

// Result is the decision statistic computed from one Outcome.
//
// Frequentist engines fill PValue; the Bayesian engine fills
// ProbabilitySuperior and reinterprets RejectNull as "treatment superior".
type Result struct {
	Method              Method   `json:"method"`
	Estimate            float64  `json:"estimate"`
	RelativeLift        float64  `json:"relative_lift"`
	Statistic           float64  `json:"statistic"`
	PValue              float64  `json:"p_value"`
	ProbabilitySuperior float64  `json:"probability_superior,omitempty"`
	ExpectedLoss        float64  `json:"expected_loss,omitempty"`
	Interval            Interval `json:"interval"`
	ControlInterval     Interval `json:"control_interval"`
	TreatmentInterval   Interval `json:"treatment_interval"`
	RejectNull          bool     `json:"reject_null"`
	// Degenerate marks results where a documented convention replaced an
	// undefined statistic (for example p=1 for zero pooled variance).
	Degenerate bool `json:"degenerate,omitempty"`
}

// Summary aggregates the Results of one simulation run.
type Summary struct {
	Method      Method  `json:"method"`
	Simulations int     `json:"simulations"`
	SampleSize  int     `json:"sample_size"`
	Alpha       float64 `json:"alpha"`
	TrueEffect  float64 `json:"true_effect"`
	Seed        uint64  `json:"seed"`

	Rejections    int     `json:"rejections"`
	RejectionRate float64 `json:"rejection_rate"`
	// EmpiricalPower is set when the configured effect is non-zero,
	// TypeIError when it is zero.
	EmpiricalPower float64 `json:"empirical_power"`
	TypeIError     float64 `json:"type_i_error"`
	MonteCarloSE   float64 `json:"monte_carlo_se"`

	MeanEstimate     float64 `json:"mean_estimate"`
	MedianEstimate   float64 `json:"median_estimate"`
	EstimateVariance float64 `json:"estimate_variance"`

	DegenerateReplicates int `json:"degenerate_replicates"`
}
