package net

import (
	"math"

	"golang.org/x/exp/rand"
)

// Dense is a fully connected layer with pre-allocated buffers so the
// training loop runs without per-step allocations. Weights are stored
// row-major: the weight for output o, input i sits at weights[o*in+i].
type Dense struct {
	weights []float64
	biases  []float64
	act     Activation
	inSize  int
	outSize int

	inputBuf  []float64
	preActBuf []float64
	outputBuf []float64
	gradW     []float64
	gradB     []float64
	gradInBuf []float64
}

// NewDense creates a dense layer with Xavier-initialized weights drawn
// from the given source.
func NewDense(in, out int, act Activation, rng *rand.Rand) *Dense {
	weights := make([]float64, out*in)
	scale := math.Sqrt(2.0 / float64(in+out))
	for i := range weights {
		weights[i] = (rng.Float64()*2 - 1) * scale
	}

	return &Dense{
		weights:   weights,
		biases:    make([]float64, out),
		act:       act,
		inSize:    in,
		outSize:   out,
		inputBuf:  make([]float64, in),
		preActBuf: make([]float64, out),
		outputBuf: make([]float64, out),
		gradW:     make([]float64, out*in),
		gradB:     make([]float64, out),
		gradInBuf: make([]float64, in),
	}
}

// Forward computes act(Wx + b). The returned slice is a reused buffer,
// valid until the next Forward call.
func (d *Dense) Forward(x []float64) []float64 {
	copy(d.inputBuf, x)
	for o := 0; o < d.outSize; o++ {
		sum := d.biases[o]
		row := d.weights[o*d.inSize : (o+1)*d.inSize]
		for i, w := range row {
			sum += w * x[i]
		}
		d.preActBuf[o] = sum
		d.outputBuf[o] = d.act.Activate(sum)
	}
	return d.outputBuf
}

// Backward accumulates weight and bias gradients for the last Forward
// input and returns the gradient w.r.t. that input. Gradients add up
// across calls until ZeroGrads.
func (d *Dense) Backward(grad []float64) []float64 {
	for i := range d.gradInBuf {
		d.gradInBuf[i] = 0
	}
	for o := 0; o < d.outSize; o++ {
		dz := grad[o] * d.act.Derivative(d.preActBuf[o])
		d.gradB[o] += dz
		wBase := o * d.inSize
		for i := 0; i < d.inSize; i++ {
			d.gradW[wBase+i] += dz * d.inputBuf[i]
			d.gradInBuf[i] += dz * d.weights[wBase+i]
		}
	}
	return d.gradInBuf
}

// ZeroGrads clears the accumulated gradients.
func (d *Dense) ZeroGrads() {
	for i := range d.gradW {
		d.gradW[i] = 0
	}
	for i := range d.gradB {
		d.gradB[i] = 0
	}
}

// NumParams returns the parameter count of this layer.
func (d *Dense) NumParams() int {
	return len(d.weights) + len(d.biases)
}

func (d *Dense) appendParams(dst []float64) []float64 {
	dst = append(dst, d.weights...)
	return append(dst, d.biases...)
}

func (d *Dense) appendGrads(dst []float64) []float64 {
	dst = append(dst, d.gradW...)
	return append(dst, d.gradB...)
}

func (d *Dense) setParams(src []float64) {
	copy(d.weights, src[:len(d.weights)])
	copy(d.biases, src[len(d.weights):])
}
