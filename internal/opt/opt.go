// Package opt provides the optimizer and learning-rate schedule used
// by the training loop.
package opt

import "math"

// Optimizer updates a flat parameter vector from a gradient vector.
type Optimizer interface {
	// StepInPlace updates params in place from gradients.
	StepInPlace(params, gradients []float64)

	// SetLR changes the learning rate for subsequent steps.
	SetLR(lr float64)

	// LR returns the current learning rate.
	LR() float64
}

// AdamW is Adam with decoupled weight decay. Moment vectors are sized
// lazily on the first step and keyed by position, so the optimizer must
// always see the same flat parameter layout.
type AdamW struct {
	lr          float64
	beta1       float64
	beta2       float64
	epsilon     float64
	weightDecay float64

	m    []float64
	v    []float64
	step int
}

// NewAdamW creates an AdamW optimizer with the defaults used by the
// training script (beta1=0.9, beta2=0.99, no weight decay).
func NewAdamW(lr float64) *AdamW {
	return &AdamW{
		lr:      lr,
		beta1:   0.9,
		beta2:   0.99,
		epsilon: 1e-8,
	}
}

// SetWeightDecay sets the decoupled weight decay coefficient.
func (a *AdamW) SetWeightDecay(wd float64) {
	a.weightDecay = wd
}

// SetLR changes the learning rate for subsequent steps.
func (a *AdamW) SetLR(lr float64) {
	a.lr = lr
}

// LR returns the current learning rate.
func (a *AdamW) LR() float64 {
	return a.lr
}

// StepInPlace applies one AdamW update to params.
func (a *AdamW) StepInPlace(params, gradients []float64) {
	if len(a.m) != len(params) {
		a.m = make([]float64, len(params))
		a.v = make([]float64, len(params))
		a.step = 0
	}
	a.step++

	bc1 := 1 - math.Pow(a.beta1, float64(a.step))
	bc2 := 1 - math.Pow(a.beta2, float64(a.step))

	for i, g := range gradients {
		a.m[i] = a.beta1*a.m[i] + (1-a.beta1)*g
		a.v[i] = a.beta2*a.v[i] + (1-a.beta2)*g*g

		mHat := a.m[i] / bc1
		vHat := a.v[i] / bc2

		params[i] -= a.lr * (mHat/(math.Sqrt(vHat)+a.epsilon) + a.weightDecay*params[i])
	}
}
