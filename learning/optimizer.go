// Package learning implements the optimizers that apply accumulated gradients to the
// network parameters, and the learning rate schedules that drive them
package learning

import (
	"fmt"

	"github.com/neurlang/convtrain/definition"
	"github.com/neurlang/convtrain/layer"
	"github.com/neurlang/convtrain/registry"
)

// Optimizer updates parameters from their accumulated gradients
type Optimizer interface {

	// Slots creates the per-parameter optimizer state. Slots are returned as params
	// so that they are saved and restored with the checkpoint.
	Slots(params []*layer.Param) []*layer.Param

	// Update applies one step at learning rate lr; t is the 1-based update count.
	Update(params []*layer.Param, lr float32, t int64)
}

// Factory constructs an optimizer from its definition
type Factory func(h *HyperParameters) (Optimizer, error)

// Kinds are the registered optimizer kinds
var Kinds = registry.New[Factory]("optimizer")

func init() {
	Kinds.Register("sgd", newSGD)
	Kinds.Register("momentum", newMomentum)
	Kinds.Register("adam", newAdam)
	Kinds.Register("adagrad", newAdagrad)
}

// Load reads an optimizer definition file and returns the optimizer and its schedule
func Load(path string) (Optimizer, Schedule, *HyperParameters, error) {
	f, err := definition.Read(path)
	if err != nil {
		return nil, nil, nil, err
	}
	factory, err := Kinds.Lookup(f.Kind)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	h := defaults()
	if err := f.Decode(&h); err != nil {
		return nil, nil, nil, err
	}
	opt, err := factory(&h)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	schedule, err := NewSchedule(h.Decay)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return opt, schedule, &h, nil
}

// slots keeps one state param per trainable param
type slots struct {
	suffix string
	init   float32
	m      map[*layer.Param]*layer.Param
}

func (s *slots) create(params []*layer.Param) []*layer.Param {
	if s.m == nil {
		s.m = make(map[*layer.Param]*layer.Param)
	}
	out := make([]*layer.Param, 0, len(params))
	for _, p := range params {
		slot, ok := s.m[p]
		if !ok {
			slot = layer.NewParam(p.Name+"/"+s.suffix, 0, p.Shape...)
			layer.Constant(slot.Value, s.init)
			s.m[p] = slot
		}
		out = append(out, slot)
	}
	return out
}

func (s *slots) get(p *layer.Param) *layer.Param {
	if s.m == nil {
		s.m = make(map[*layer.Param]*layer.Param)
	}
	slot, ok := s.m[p]
	if !ok {
		s.create([]*layer.Param{p})
		slot = s.m[p]
	}
	return slot
}
