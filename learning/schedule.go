package learning

import "fmt"
import "math"

// Schedule maps the global step onto the learning rate
type Schedule interface {
	Rate(base float64, step int64) float64
}

// NewSchedule builds the schedule a decay definition describes
func NewSchedule(d DecaySpec) (Schedule, error) {
	switch d.Kind {
	case "", "none":
		return Constant{}, nil
	case "exponential":
		if d.Steps <= 0 {
			return nil, fmt.Errorf("exponential decay: steps must be positive, got %d", d.Steps)
		}
		if d.Rate <= 0 {
			return nil, fmt.Errorf("exponential decay: rate must be positive, got %v", d.Rate)
		}
		return ExponentialDecay{Steps: d.Steps, Factor: d.Rate, Staircase: d.Staircase}, nil
	case "piecewise":
		if len(d.Values) != len(d.Boundaries)+1 {
			return nil, fmt.Errorf("piecewise decay: %d values for %d boundaries, want %d", len(d.Values), len(d.Boundaries), len(d.Boundaries)+1)
		}
		for i := 1; i < len(d.Boundaries); i++ {
			if d.Boundaries[i] <= d.Boundaries[i-1] {
				return nil, fmt.Errorf("piecewise decay: boundaries must increase, got %v", d.Boundaries)
			}
		}
		return Piecewise{Boundaries: d.Boundaries, Values: d.Values}, nil
	}
	return nil, fmt.Errorf("unknown decay kind %q", d.Kind)
}

// Constant keeps the base rate
type Constant struct{}

func (Constant) Rate(base float64, _ int64) float64 { return base }

// ExponentialDecay is base * Factor^(step/Steps), with an integer exponent if Staircase
type ExponentialDecay struct {
	Steps     int64
	Factor    float64
	Staircase bool
}

func (e ExponentialDecay) Rate(base float64, step int64) float64 {
	p := float64(step) / float64(e.Steps)
	if e.Staircase {
		p = math.Floor(p)
	}
	return base * math.Pow(e.Factor, p)
}

// Piecewise is Values[0] up to and including Boundaries[0], Values[1] up to
// Boundaries[1] and so on, ignoring the base rate
type Piecewise struct {
	Boundaries []int64
	Values     []float64
}

func (p Piecewise) Rate(_ float64, step int64) float64 {
	for i, b := range p.Boundaries {
		if step <= b {
			return p.Values[i]
		}
	}
	return p.Values[len(p.Values)-1]
}
