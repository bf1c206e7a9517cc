package learning

import "github.com/neurlang/convtrain/definition"

// HyperParameters is the optimizer definition file; each kind reads the keys it needs
type HyperParameters struct {
	definition.Header

	Momentum float32 `toml:"momentum"` // momentum: velocity decay (default 0.9)
	Nesterov bool    `toml:"nesterov"` // momentum: use the Nesterov update

	Beta1   float32 `toml:"beta1"`   // adam: first moment decay (default 0.9)
	Beta2   float32 `toml:"beta2"`   // adam: second moment decay (default 0.999)
	Epsilon float32 `toml:"epsilon"` // adam, adagrad: denominator floor (default 1e-8)

	InitialAccumulator float32 `toml:"initial_accumulator"` // adagrad (default 0.1)

	// ClipNorm rescales the global gradient norm down to this value, 0 disables
	ClipNorm float32 `toml:"clip_norm"`

	Decay DecaySpec `toml:"decay"`
}

// DecaySpec selects the learning rate schedule
type DecaySpec struct {
	Kind       string    `toml:"kind"` // none, exponential, piecewise
	Steps      int64     `toml:"steps"`
	Rate       float64   `toml:"rate"`
	Staircase  bool      `toml:"staircase"`
	Boundaries []int64   `toml:"boundaries"`
	Values     []float64 `toml:"values"`
}

func defaults() HyperParameters {
	return HyperParameters{
		Momentum:           0.9,
		Beta1:              0.9,
		Beta2:              0.999,
		Epsilon:            1e-8,
		InitialAccumulator: 0.1,
	}
}
