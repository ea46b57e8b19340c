// Package correction adjusts a batch of p-values for multiple testing.
package correction

import (
	"fmt"
	"math"
	"sort"

	"github.com/headline-goat/abacus/internal/abtest"
)

// Method selects the adjustment procedure.
type Method string

const (
	Bonferroni        Method = "bonferroni"
	Holm              Method = "holm"
	BenjaminiHochberg Method = "fdr_bh"
)

// ParseMethod accepts the method names used by the CLI and API.
func ParseMethod(name string) (Method, error) {
	switch name {
	case "bonferroni":
		return Bonferroni, nil
	case "holm":
		return Holm, nil
	case "fdr", "bh", "fdr_bh", "benjamini-hochberg":
		return BenjaminiHochberg, nil
	default:
		return "", &abtest.ConfigurationError{Field: "method", Value: name, Reason: "must be bonferroni, holm or fdr_bh"}
	}
}

// Entry is one test of a batch. Rank is the 1-based position of the raw
// p-value in ascending order.
type Entry struct {
	Index    int     `json:"index"`
	PValue   float64 `json:"p_value"`
	Adjusted float64 `json:"adjusted_p_value"`
	Rank     int     `json:"rank"`
	Reject   bool    `json:"reject"`
}

// Batch holds adjusted p-values in the order the tests were supplied.
type Batch struct {
	Method     Method  `json:"method"`
	Alpha      float64 `json:"alpha"`
	Entries    []Entry `json:"entries"`
	Rejections int     `json:"rejections"`
}

// Adjusted returns the adjusted p-values in input order.
func (b Batch) Adjusted() []float64 {
	out := make([]float64, len(b.Entries))
	for i, e := range b.Entries {
		out[i] = e.Adjusted
	}
	return out
}

// Correct adjusts pValues with method at level alpha.
func Correct(pValues []float64, alpha float64, method Method) (Batch, error) {
	if len(pValues) == 0 {
		return Batch{}, &abtest.InvalidStateError{Op: "correct", Reason: "no p-values to correct"}
	}
	if !(alpha > 0 && alpha < 1) {
		return Batch{}, &abtest.ConfigurationError{Field: "alpha", Value: alpha, Reason: "must be in (0, 1)"}
	}
	for i, p := range pValues {
		if !(p >= 0 && p <= 1) {
			return Batch{}, &abtest.ConfigurationError{Field: fmt.Sprintf("p_values[%d]", i), Value: p, Reason: "must be in [0, 1]"}
		}
	}

	b := Batch{Method: method, Alpha: alpha, Entries: make([]Entry, len(pValues))}
	order := ranks(pValues)
	for i, p := range pValues {
		b.Entries[i] = Entry{Index: i, PValue: p}
	}
	for rank, idx := range order {
		b.Entries[idx].Rank = rank + 1
	}

	switch method {
	case Bonferroni:
		bonferroni(b.Entries, alpha)
	case Holm:
		holm(b.Entries, order, alpha)
	case BenjaminiHochberg:
		benjaminiHochberg(b.Entries, order, alpha)
	default:
		return Batch{}, &abtest.ConfigurationError{Field: "method", Value: string(method), Reason: "unknown correction method"}
	}

	for _, e := range b.Entries {
		if e.Reject {
			b.Rejections++
		}
	}
	return b, nil
}

// ranks returns input indexes sorted by ascending p-value, ties kept in
// input order.
func ranks(pValues []float64) []int {
	order := make([]int, len(pValues))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return pValues[order[a]] < pValues[order[b]]
	})
	return order
}

func bonferroni(entries []Entry, alpha float64) {
	m := float64(len(entries))
	for i := range entries {
		entries[i].Adjusted = math.Min(1, entries[i].PValue*m)
		entries[i].Reject = entries[i].Adjusted < alpha
	}
}

func holm(entries []Entry, order []int, alpha float64) {
	m := len(order)
	running := 0.0
	for k, idx := range order {
		adj := math.Min(1, float64(m-k)*entries[idx].PValue)
		running = math.Max(running, adj)
		entries[idx].Adjusted = running
		entries[idx].Reject = running < alpha
	}
}

// benjaminiHochberg applies the step-up procedure. Adjusted values are
// p_(k)*m/k made monotone by a running minimum from the largest rank down.
func benjaminiHochberg(entries []Entry, order []int, alpha float64) {
	m := len(order)

	cutoff := 0
	for k := m; k >= 1; k-- {
		if entries[order[k-1]].PValue <= float64(k)/float64(m)*alpha {
			cutoff = k
			break
		}
	}

	running := 1.0
	for k := m; k >= 1; k-- {
		idx := order[k-1]
		running = math.Min(running, entries[idx].PValue*float64(m)/float64(k))
		entries[idx].Adjusted = running
		entries[idx].Reject = k <= cutoff
	}
}
