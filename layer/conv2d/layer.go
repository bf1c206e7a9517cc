// Package conv2d implements a 2D convolution layer over NHWC batches
package conv2d

import "fmt"

import "github.com/neurlang/convtrain/layer"
import "github.com/neurlang/convtrain/parallel"
import "github.com/neurlang/convtrain/tensor"

// Conv2D convolves Filters kernels of Size×Size over the input
type Conv2D struct {
	name          string
	filters, size int
	stride        int
	padding       layer.Padding

	// Stddev of the truncated normal weight init, 0 selects He init
	Stddev float32
	// BiasInit is the initial bias value
	BiasInit float32
	// Decay is the L2 weight decay of the kernel
	Decay float32

	in, out       []int
	padH, padW    int
	weights, bias *layer.Param
}

// MustNew creates a new Conv2D layer with filters, kernel size, stride and padding
func MustNew(name string, filters, size, stride int, padding layer.Padding) *Conv2D {
	o, err := New(name, filters, size, stride, padding)
	if err != nil {
		panic(err.Error())
	}
	return o
}

// New creates a new Conv2D layer with filters, kernel size, stride and padding
func New(name string, filters, size, stride int, padding layer.Padding) (o *Conv2D, err error) {
	if filters < 1 {
		return nil, fmt.Errorf("New Conv2D %s: Filters %d is lower than 1", name, filters)
	}
	if size < 1 {
		return nil, fmt.Errorf("New Conv2D %s: Size %d is lower than 1", name, size)
	}
	if stride < 1 {
		return nil, fmt.Errorf("New Conv2D %s: Stride %d is lower than 1", name, stride)
	}
	o = new(Conv2D)
	o.name = name
	o.filters = filters
	o.size = size
	o.stride = stride
	o.padding = padding
	return
}

// Name returns the layer name
func (c *Conv2D) Name() string {
	return c.name
}

// Build allocates the kernel for an [H, W, C] input
func (c *Conv2D) Build(in []int, init *layer.Initializer) ([]int, error) {
	if len(in) != 3 {
		return nil, fmt.Errorf("Conv2D %s: expected [H W C] input, got %v: %w", c.name, in, tensor.ErrShapeMismatch)
	}
	oh, ph := layer.Window(in[0], c.size, c.stride, c.padding)
	ow, pw := layer.Window(in[1], c.size, c.stride, c.padding)
	if oh == 0 || ow == 0 {
		return nil, fmt.Errorf("Conv2D %s: input %v smaller than kernel %d: %w", c.name, in, c.size, tensor.ErrShapeMismatch)
	}
	c.in = append([]int(nil), in...)
	c.out = []int{oh, ow, c.filters}
	c.padH, c.padW = ph, pw

	fanIn := c.size * c.size * in[2]
	c.weights = layer.NewParam(c.name+"/weights", c.Decay, fanIn, c.filters)
	c.bias = layer.NewParam(c.name+"/biases", 0, c.filters)
	stddev := c.Stddev
	if stddev == 0 {
		stddev = layer.HeStddev(fanIn)
	}
	init.TruncatedNormal(c.weights.Value, stddev)
	layer.Constant(c.bias.Value, c.BiasInit)
	return c.out, nil
}

// Params returns the kernel and the bias
func (c *Conv2D) Params() []*layer.Param {
	return []*layer.Param{c.weights, c.bias}
}

// Forward convolves x [N H W C] into [N OH OW F]
func (c *Conv2D) Forward(x *tensor.Tensor, train bool) (*tensor.Tensor, layer.Backward) {
	n := x.Batch()
	patches := c.out[0] * c.out[1]
	k := c.size * c.size * c.in[2]

	cols := make([]float32, n*patches*k)
	parallel.ForEach(n, 0, func(i int) {
		c.im2col(x.Row(i), cols[i*patches*k:(i+1)*patches*k])
	})

	y := tensor.Zeros(n, c.out[0], c.out[1], c.filters)
	for p := 0; p < n*patches; p++ {
		copy(y.Data[p*c.filters:(p+1)*c.filters], c.bias.Value)
	}
	tensor.Gemm(false, false, n*patches, c.filters, k, 1, cols, c.weights.Value, 1, y.Data)

	if !train {
		return y, nil
	}
	return y, func(grad *tensor.Tensor) *tensor.Tensor {
		rows := n * patches
		tensor.Gemm(true, false, k, c.filters, rows, 1, cols, grad.Data, 1, c.weights.Grad)
		for p := 0; p < rows; p++ {
			g := grad.Data[p*c.filters : (p+1)*c.filters]
			for f, v := range g {
				c.bias.Grad[f] += v
			}
		}
		dcols := make([]float32, rows*k)
		tensor.Gemm(false, true, rows, k, c.filters, 1, grad.Data, c.weights.Value, 0, dcols)

		dx := tensor.Zeros(x.Shape...)
		parallel.ForEach(n, 0, func(i int) {
			c.col2im(dcols[i*patches*k:(i+1)*patches*k], dx.Row(i))
		})
		return dx
	}
}

// im2col lays out every receptive field of one example as a row
func (c *Conv2D) im2col(img, cols []float32) {
	h, w, ch := c.in[0], c.in[1], c.in[2]
	row := 0
	for oy := 0; oy < c.out[0]; oy++ {
		for ox := 0; ox < c.out[1]; ox++ {
			dst := cols[row*c.size*c.size*ch:]
			pos := 0
			for ky := 0; ky < c.size; ky++ {
				y := oy*c.stride + ky - c.padH
				for kx := 0; kx < c.size; kx++ {
					x := ox*c.stride + kx - c.padW
					if y < 0 || y >= h || x < 0 || x >= w {
						pos += ch
						continue
					}
					copy(dst[pos:pos+ch], img[(y*w+x)*ch:(y*w+x+1)*ch])
					pos += ch
				}
			}
			row++
		}
	}
}

// col2im scatters receptive field gradients back onto one example
func (c *Conv2D) col2im(cols, img []float32) {
	h, w, ch := c.in[0], c.in[1], c.in[2]
	row := 0
	for oy := 0; oy < c.out[0]; oy++ {
		for ox := 0; ox < c.out[1]; ox++ {
			src := cols[row*c.size*c.size*ch:]
			pos := 0
			for ky := 0; ky < c.size; ky++ {
				y := oy*c.stride + ky - c.padH
				for kx := 0; kx < c.size; kx++ {
					x := ox*c.stride + kx - c.padW
					if y < 0 || y >= h || x < 0 || x >= w {
						pos += ch
						continue
					}
					dst := img[(y*w+x)*ch : (y*w+x+1)*ch]
					for j := range dst {
						dst[j] += src[pos+j]
					}
					pos += ch
				}
			}
			row++
		}
	}
}
