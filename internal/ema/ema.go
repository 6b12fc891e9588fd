// Package ema maintains an exponential moving average shadow copy of
// model parameters under a step-indexed decay schedule.
package ema

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Decay climbs from the initial gamma toward this ceiling as training
// progresses, so late updates lean on shadow history.
const gammaCeiling = 0.999

// ParamSource exposes a model's flat parameter vector as a copy.
type ParamSource interface {
	Params() []float64
}

// ParamSink installs a flat parameter vector into a model.
type ParamSink interface {
	SetParams([]float64)
}

// StateError reports a parameter-shape mismatch between the live model
// and the shadow copy. It is fatal: the update aborts before any
// shadow parameter is touched.
type StateError struct {
	Msg string
}

func (e *StateError) Error() string {
	return "ema: " + e.Msg
}

// Tracker owns a shadow parameter vector updated from a live model.
// The tracker never mutates the live model; the only cross-access is
// the read of the live parameters inside UpdateParams.
type Tracker struct {
	live       ParamSource
	shadow     []float64
	gamma0     float64
	totalSteps int
}

// NewTracker deep-copies the live model's current parameters as the
// initial shadow set. totalSteps normalizes the decay schedule.
func NewTracker(live ParamSource, gamma0 float64, totalSteps int) (*Tracker, error) {
	if gamma0 <= 0 || gamma0 >= gammaCeiling {
		return nil, fmt.Errorf("initial gamma must be in (0, %v), got %v", gammaCeiling, gamma0)
	}
	if totalSteps <= 0 {
		return nil, fmt.Errorf("total steps must be positive, got %d", totalSteps)
	}
	params := live.Params()
	shadow := make([]float64, len(params))
	copy(shadow, params)
	return &Tracker{
		live:       live,
		shadow:     shadow,
		gamma0:     gamma0,
		totalSteps: totalSteps,
	}, nil
}

// UpdateParams folds the live parameters into the shadow set:
//
//	shadow = gamma*shadow + (1-gamma)*live
//
// Call exactly once per completed optimizer step, after the live
// weights have been updated.
func (t *Tracker) UpdateParams(gamma float64) error {
	live := t.live.Params()
	if len(live) != len(t.shadow) {
		return &StateError{Msg: fmt.Sprintf(
			"live model has %d parameters, shadow has %d", len(live), len(t.shadow))}
	}
	floats.Scale(gamma, t.shadow)
	floats.AddScaled(t.shadow, 1-gamma, live)
	return nil
}

// UpdateGamma returns the decay for the given step. It anneals along a
// cosine from gamma0 at step 0 toward the ceiling at totalSteps, and
// is non-decreasing in step. Early updates trust the live model, late
// updates trust shadow history.
func (t *Tracker) UpdateGamma(step int) float64 {
	if step < 0 {
		step = 0
	}
	if step > t.totalSteps {
		step = t.totalSteps
	}
	frac := float64(step) / float64(t.totalSteps)
	return gammaCeiling - (gammaCeiling-t.gamma0)*(math.Cos(math.Pi*frac)+1)/2
}

// Shadow returns a copy of the current shadow parameters.
func (t *Tracker) Shadow() []float64 {
	out := make([]float64, len(t.shadow))
	copy(out, t.shadow)
	return out
}

// Apply installs the shadow parameters into dst, typically a model
// clone used for sampling or checkpointing.
func (t *Tracker) Apply(dst ParamSink) {
	dst.SetParams(t.Shadow())
}
