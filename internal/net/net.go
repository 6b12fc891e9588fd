// Package net provides a small dense noise-prediction network. The
// production predictor is an external collaborator; this one exists so
// the training demos and round-trip tests have something to train.
package net

import "math"

// Activation is an activation function with derivative.
type Activation interface {
	Activate(x float64) float64
	Derivative(x float64) float64
}

// SiLU activation, x * sigmoid(x).
type SiLU struct{}

// Activate computes x * sigmoid(x).
func (SiLU) Activate(x float64) float64 {
	return x / (1 + math.Exp(-x))
}

// Derivative computes sigmoid(x) * (1 + x * (1 - sigmoid(x))).
func (SiLU) Derivative(x float64) float64 {
	sig := 1 / (1 + math.Exp(-x))
	return sig * (1 + x*(1-sig))
}

// Identity activation for the output layer.
type Identity struct{}

// Activate returns x unchanged.
func (Identity) Activate(x float64) float64 { return x }

// Derivative returns 1.
func (Identity) Derivative(x float64) float64 { return 1 }
