package stats_test

import (
	"math"
	"testing"

	"github.com/headline-goat/abacus/internal/abtest"
	"github.com/headline-goat/abacus/internal/stats"
)

func TestWilsonInterval_50PercentConversion(t *testing.T) {
	// 50 successes out of 100 trials
	iv := stats.WilsonInterval(50, 100, 0.95)

	if iv.Lower < 0.38 || iv.Lower > 0.42 {
		t.Errorf("lower bound %f not in expected range [0.38, 0.42]", iv.Lower)
	}
	if iv.Upper < 0.58 || iv.Upper > 0.62 {
		t.Errorf("upper bound %f not in expected range [0.58, 0.62]", iv.Upper)
	}
}

func TestWilsonInterval_LowConversion(t *testing.T) {
	iv := stats.WilsonInterval(5, 100, 0.95)

	// Should be roughly [0.02, 0.11]
	if iv.Lower < 0.01 || iv.Lower > 0.03 {
		t.Errorf("lower bound %f not in expected range [0.01, 0.03]", iv.Lower)
	}
	if iv.Upper < 0.09 || iv.Upper > 0.13 {
		t.Errorf("upper bound %f not in expected range [0.09, 0.13]", iv.Upper)
	}
}

func TestWilsonInterval_ZeroTrials(t *testing.T) {
	iv := stats.WilsonInterval(0, 0, 0.95)

	if iv != (abtest.Interval{}) {
		t.Errorf("expected zero interval for zero trials, got %+v", iv)
	}
}

func TestWilsonInterval_Extremes(t *testing.T) {
	none := stats.WilsonInterval(0, 100, 0.95)
	if none.Lower != 0 {
		t.Errorf("expected lower bound 0, got %f", none.Lower)
	}
	if none.Upper < 0.01 || none.Upper > 0.05 {
		t.Errorf("upper bound %f not in expected range [0.01, 0.05]", none.Upper)
	}

	all := stats.WilsonInterval(100, 100, 0.95)
	if all.Lower < 0.95 || all.Lower > 0.99 {
		t.Errorf("lower bound %f not in expected range [0.95, 0.99]", all.Lower)
	}
	if all.Upper < 0.99 || all.Upper > 1.0 {
		t.Errorf("upper bound %f not in expected range [0.99, 1.0]", all.Upper)
	}
}

func TestWilsonInterval_WidensWithConfidence(t *testing.T) {
	narrow := stats.WilsonInterval(30, 200, 0.90)
	wide := stats.WilsonInterval(30, 200, 0.99)

	if wide.Width() <= narrow.Width() {
		t.Errorf("99%% width %f should exceed 90%% width %f", wide.Width(), narrow.Width())
	}
}

func TestNewcombeInterval_ContainsObservedDifference(t *testing.T) {
	o := abtest.Outcome{ControlConversions: 110, ControlN: 1000, TreatmentConversions: 140, TreatmentN: 1000}
	iv := stats.NewcombeInterval(o, 0.95)

	if !iv.Contains(0.03) {
		t.Errorf("interval %+v should contain the observed difference 0.03", iv)
	}
	// Significant at 5%, so the interval excludes zero.
	if iv.Contains(0) {
		t.Errorf("interval %+v should exclude zero", iv)
	}
}

func TestZScore(t *testing.T) {
	tests := []struct {
		confidence float64
		expected   float64
		tolerance  float64
	}{
		{0.90, 1.645, 0.001},
		{0.95, 1.960, 0.001},
		{0.99, 2.576, 0.001},
	}

	for _, tt := range tests {
		z := stats.ZScore(tt.confidence)
		if math.Abs(z-tt.expected) > tt.tolerance {
			t.Errorf("ZScore(%f) = %f, want %f (tolerance %f)", tt.confidence, z, tt.expected, tt.tolerance)
		}
	}
}
