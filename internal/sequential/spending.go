package sequential

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/headline-goat/abacus/internal/abtest"
)

// SpendingFunction allocates a significance budget over information time.
// Cumulative returns the total alpha spent by information fraction t in
// (0, 1]; it must be non-decreasing in t and equal alpha at t=1.
type SpendingFunction interface {
	Name() string
	Cumulative(alpha, t float64) float64
}

// OBrienFleming is the Lan-DeMets O'Brien-Fleming-type spending function,
// 2 - 2*Phi(z_{alpha/2} / sqrt(t)). It spends almost nothing early.
type OBrienFleming struct{}

func (OBrienFleming) Name() string { return "obrien-fleming" }

func (OBrienFleming) Cumulative(alpha, t float64) float64 {
	if t <= 0 {
		return 0
	}
	t = math.Min(t, 1)
	z := distuv.UnitNormal.Quantile(1 - alpha/2)
	return 2 * distuv.UnitNormal.Survival(z/math.Sqrt(t))
}

// Pocock is the Lan-DeMets Pocock-type spending function,
// alpha * ln(1 + (e-1)t).
type Pocock struct{}

func (Pocock) Name() string { return "pocock" }

func (Pocock) Cumulative(alpha, t float64) float64 {
	if t <= 0 {
		return 0
	}
	t = math.Min(t, 1)
	return alpha * math.Log(1+(math.E-1)*t)
}

// PowerFamily spends alpha * t^Rho. Rho=1 spends linearly; larger Rho is
// more conservative early.
type PowerFamily struct {
	Rho float64
}

func (p PowerFamily) Name() string {
	if p.Rho == 1 {
		return "linear"
	}
	return "power"
}

func (p PowerFamily) Cumulative(alpha, t float64) float64 {
	if t <= 0 {
		return 0
	}
	t = math.Min(t, 1)
	return alpha * math.Pow(t, p.Rho)
}

// ParseSpending resolves a spending function by name. rho is used by the
// power family only.
func ParseSpending(name string, rho float64) (SpendingFunction, error) {
	switch name {
	case "obrien-fleming", "obf", "":
		return OBrienFleming{}, nil
	case "pocock":
		return Pocock{}, nil
	case "linear":
		return PowerFamily{Rho: 1}, nil
	case "power":
		if !(rho > 0) || math.IsInf(rho, 0) {
			return nil, &abtest.ConfigurationError{Field: "rho", Value: rho, Reason: "must be positive"}
		}
		return PowerFamily{Rho: rho}, nil
	default:
		return nil, &abtest.ConfigurationError{Field: "spending", Value: name, Reason: "must be obrien-fleming, pocock, linear or power"}
	}
}
