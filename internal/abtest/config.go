package abtest

import (
	"errors"
	"fmt"
	"math"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// clampEpsilon keeps a clamped treatment rate strictly inside (0, 1).
const clampEpsilon = 1e-9

// Params holds the caller-supplied primitives of a test configuration.
// It is the wire and file form; NewConfig turns it into a validated Config.
type Params struct {
	BaselineRate  float64 `json:"baseline_rate" yaml:"baseline_rate" validate:"gt=0,lt=1"`
	EffectSize    float64 `json:"effect_size" yaml:"effect_size"`
	Relative      bool    `json:"relative,omitempty" yaml:"relative,omitempty"`
	SampleSize    int     `json:"sample_size" yaml:"sample_size" validate:"gt=0"`
	TreatmentSize int     `json:"treatment_size,omitempty" yaml:"treatment_size,omitempty" validate:"gte=0"`
	Alpha         float64 `json:"alpha" yaml:"alpha" validate:"gt=0,lt=1"`
	Simulations   int     `json:"n_simulations" yaml:"n_simulations" validate:"gt=0"`
	Seed          *uint64 `json:"random_seed,omitempty" yaml:"random_seed,omitempty"`
	Clamp         bool    `json:"clamp,omitempty" yaml:"clamp,omitempty"`
	Confidence    float64 `json:"confidence,omitempty" yaml:"confidence,omitempty" validate:"omitempty,gt=0,lt=1"`
}

// DefaultParams returns Params with the conventional alpha and replicate
// count filled in. Rates and sizes are left for the caller.
func DefaultParams() Params {
	return Params{
		Alpha:       0.05,
		Simulations: 1000,
	}
}

// Config is a validated, immutable test configuration. The zero value is not
// usable; build one with NewConfig.
type Config struct {
	baseline    float64
	effect      float64
	relative    bool
	treatment   float64
	clamp       bool
	clamped     bool
	controlN    int
	treatmentN  int
	alpha       float64
	confidence  float64
	simulations int
	seed        uint64
	hasSeed     bool
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NewConfig validates p and returns the immutable configuration. Any invalid
// field is reported as a *ConfigurationError naming that field.
func NewConfig(p Params) (Config, error) {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return Config{}, configErr(fe.Field(), fe.Value(), describeRule(fe))
		}
		return Config{}, fmt.Errorf("failed to validate params: %w", err)
	}

	if math.IsNaN(p.EffectSize) || math.IsInf(p.EffectSize, 0) {
		return Config{}, configErr("effect_size", p.EffectSize, "must be finite")
	}

	treatment := p.BaselineRate + p.EffectSize
	if p.Relative {
		treatment = p.BaselineRate * (1 + p.EffectSize)
	}

	clamped := false
	if treatment <= 0 || treatment >= 1 {
		if !p.Clamp {
			return Config{}, configErr("effect_size", p.EffectSize,
				fmt.Sprintf("treatment rate %g is outside (0, 1); enable clamp to allow it", treatment))
		}
		treatment = math.Min(math.Max(treatment, clampEpsilon), 1-clampEpsilon)
		clamped = true
	}

	treatmentN := p.TreatmentSize
	if treatmentN == 0 {
		treatmentN = p.SampleSize
	}

	confidence := p.Confidence
	if confidence == 0 {
		confidence = 1 - p.Alpha
	}

	cfg := Config{
		baseline:    p.BaselineRate,
		effect:      p.EffectSize,
		relative:    p.Relative,
		treatment:   treatment,
		clamp:       p.Clamp,
		clamped:     clamped,
		controlN:    p.SampleSize,
		treatmentN:  treatmentN,
		alpha:       p.Alpha,
		confidence:  confidence,
		simulations: p.Simulations,
	}
	if p.Seed != nil {
		cfg.seed = *p.Seed
		cfg.hasSeed = true
	}
	return cfg, nil
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lt":
		return "must be less than " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// LoadParams reads Params from a YAML file.
func LoadParams(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("failed to read params file: %w", err)
	}

	p := DefaultParams()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Params{}, fmt.Errorf("failed to parse params file: %w", err)
	}
	return p, nil
}

func (c Config) BaselineRate() float64 { return c.baseline }

// EffectSize is the configured effect, absolute or relative per Relative.
func (c Config) EffectSize() float64 { return c.effect }

func (c Config) Relative() bool { return c.relative }

// TreatmentRate is the true treatment conversion rate after applying the
// effect and, if enabled, clamping.
func (c Config) TreatmentRate() float64 { return c.treatment }

// Clamped reports whether the treatment rate had to be clamped into (0, 1).
func (c Config) Clamped() bool { return c.clamped }

// TrueDifference is the absolute rate difference the simulation draws from.
func (c Config) TrueDifference() float64 { return c.treatment - c.baseline }

// NullTrue reports whether the configuration has no true effect.
func (c Config) NullTrue() bool { return c.effect == 0 }

func (c Config) SampleSize() int  { return c.controlN }
func (c Config) ControlN() int    { return c.controlN }
func (c Config) TreatmentN() int  { return c.treatmentN }
func (c Config) Alpha() float64   { return c.alpha }
func (c Config) Simulations() int { return c.simulations }

// Confidence is the interval width, 1-alpha unless configured.
func (c Config) Confidence() float64 { return c.confidence }

// Seed returns the configured seed and whether one was set.
func (c Config) Seed() (uint64, bool) { return c.seed, c.hasSeed }

// Params returns the primitives the configuration was built from.
func (c Config) Params() Params {
	p := Params{
		BaselineRate: c.baseline,
		EffectSize:   c.effect,
		Relative:     c.relative,
		SampleSize:   c.controlN,
		Alpha:        c.alpha,
		Simulations:  c.simulations,
		Clamp:        c.clamp,
		Confidence:   c.confidence,
	}
	if c.treatmentN != c.controlN {
		p.TreatmentSize = c.treatmentN
	}
	if c.hasSeed {
		seed := c.seed
		p.Seed = &seed
	}
	return p
}

// WithEffect returns a copy of c with a different effect size.
func (c Config) WithEffect(effect float64) (Config, error) {
	p := c.Params()
	p.EffectSize = effect
	return NewConfig(p)
}

// WithSampleSize returns a copy of c with both arms set to n.
func (c Config) WithSampleSize(n int) (Config, error) {
	p := c.Params()
	p.SampleSize = n
	p.TreatmentSize = 0
	return NewConfig(p)
}

// WithSeed returns a copy of c pinned to seed.
func (c Config) WithSeed(seed uint64) Config {
	c.seed = seed
	c.hasSeed = true
	return c
}
