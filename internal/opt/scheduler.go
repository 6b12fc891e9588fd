package opt

import "math"

// Scheduler computes the learning rate for a given step. Schedulers
// are pure functions of the step index.
type Scheduler interface {
	LR(step int) float64
}

// WarmupCosine ramps the learning rate linearly from zero over
// WarmupSteps, then decays it along a half cosine to zero at
// TotalSteps.
type WarmupCosine struct {
	BaseLR      float64
	WarmupSteps int
	TotalSteps  int
}

// LR returns the learning rate at the given step.
func (s WarmupCosine) LR(step int) float64 {
	if step < s.WarmupSteps {
		return s.BaseLR * float64(step) / float64(s.WarmupSteps)
	}
	if step >= s.TotalSteps {
		return 0
	}
	progress := float64(step-s.WarmupSteps) / float64(s.TotalSteps-s.WarmupSteps)
	return s.BaseLR * (1 + math.Cos(math.Pi*progress)) / 2
}

// Constant keeps the learning rate fixed.
type Constant struct {
	BaseLR float64
}

// LR returns the fixed learning rate.
func (s Constant) LR(step int) float64 {
	return s.BaseLR
}
