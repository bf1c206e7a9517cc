package learning

import "math"
import "sync/atomic"

import "github.com/neurlang/convtrain/layer"
import "github.com/neurlang/convtrain/tensor"

// GlobalStep counts applied updates; it is saved with every checkpoint
type GlobalStep struct {
	n atomic.Int64
}

// Value returns the number of applied updates
func (g *GlobalStep) Value() int64 { return g.n.Load() }

// Set overwrites the counter, used when restoring a checkpoint
func (g *GlobalStep) Set(n int64) { g.n.Store(n) }

// TrainOp applies the accumulated gradients of params with an optimizer
type TrainOp struct {
	opt      Optimizer
	params   []*layer.Param
	step     *GlobalStep
	base     float64
	schedule Schedule
	clipNorm float32
}

// Training returns the op that applies gradients to params at the scheduled
// learning rate and advances globalStep. Optimizer slots are created eagerly so
// that a checkpoint can be restored into them before the first update.
func Training(opt Optimizer, params []*layer.Param, globalStep *GlobalStep, learningRate float64, schedule Schedule) *TrainOp {
	if schedule == nil {
		schedule = Constant{}
	}
	opt.Slots(params)
	return &TrainOp{opt: opt, params: params, step: globalStep, base: learningRate, schedule: schedule}
}

// ClipByGlobalNorm rescales gradients whose global norm exceeds norm; 0 disables clipping
func (op *TrainOp) ClipByGlobalNorm(norm float32) *TrainOp {
	op.clipNorm = norm
	return op
}

// Variables returns the optimizer state that must be checkpointed
func (op *TrainOp) Variables() []*layer.Param {
	return op.opt.Slots(op.params)
}

// LearningRate returns the rate the next Run will use
func (op *TrainOp) LearningRate() float64 {
	return op.schedule.Rate(op.base, op.step.Value())
}

// Run adds weight decay to the gradients, applies one update, clears the gradients
// and increments the global step. It returns the learning rate that was used.
func (op *TrainOp) Run() float64 {
	lr := op.LearningRate()
	for _, p := range op.params {
		p.ApplyDecay()
	}
	if op.clipNorm > 0 {
		var sq float64
		for _, p := range op.params {
			sq += float64(tensor.Dot(p.Grad, p.Grad))
		}
		if norm := math.Sqrt(sq); norm > float64(op.clipNorm) {
			scale := float32(float64(op.clipNorm) / norm)
			for _, p := range op.params {
				for i := range p.Grad {
					p.Grad[i] *= scale
				}
			}
		}
	}
	op.opt.Update(op.params, float32(lr), op.step.Value()+1)
	for _, p := range op.params {
		p.ZeroGrad()
	}
	op.step.n.Add(1)
	return lr
}
