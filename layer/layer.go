// Package layer defines the network layer interface and the trainable parameters layers own
package layer

import "github.com/neurlang/convtrain/tensor"

// Backward takes the gradient of the loss with respect to a layer output and returns the
// gradient with respect to the layer input, accumulating parameter gradients on the way.
type Backward func(grad *tensor.Tensor) *tensor.Tensor

// Layer is one stage of a feedforward network
type Layer interface {

	// Name returns the unique layer name, used as the parameter name prefix.
	Name() string

	// Build allocates the parameters for a per-example input shape and returns the
	// per-example output shape.
	Build(in []int, init *Initializer) (out []int, err error)

	// Params returns the trainable parameters, nil for parameterless layers.
	Params() []*Param

	// Forward computes the batch output. When train is false the layer state is not
	// mutated, so any number of evaluation passes may share the layer concurrently.
	Forward(x *tensor.Tensor, train bool) (*tensor.Tensor, Backward)
}
