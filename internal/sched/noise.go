package sched

import (
	"math"

	"github.com/FlavioCFOliveira/GoDiffusion/internal/tensor"
)

// AddNoise applies the closed-form forward corruption
//
//	x_t = sqrt(alpha_bar_t) * x0 + sqrt(1 - alpha_bar_t) * noise
//
// with one timestep per batch example. The operation is deterministic;
// all randomness lives in the caller-supplied noise batch. Inputs are
// never retained or mutated.
func (s *Schedule) AddNoise(x0, noise *tensor.Batch, timesteps []int) (*tensor.Batch, error) {
	if !x0.SameShape(noise) {
		return nil, configErrorf("noise shape [%d %d %d %d] does not match x0 [%d %d %d %d]",
			noise.B, noise.C, noise.H, noise.W, x0.B, x0.C, x0.H, x0.W)
	}
	if len(timesteps) != x0.B {
		return nil, configErrorf("got %d timesteps for batch of %d", len(timesteps), x0.B)
	}

	out := tensor.NewBatchLike(x0)
	for i, t := range timesteps {
		if t < 0 || t >= s.numTimesteps {
			return nil, configErrorf("timestep %d out of range [0, %d)", t, s.numTimesteps)
		}
		abar := s.alphasCumprod[t]
		signalCoef := math.Sqrt(abar)
		noiseCoef := math.Sqrt(1 - abar)

		dst := out.Example(i)
		src := x0.Example(i)
		eps := noise.Example(i)
		for j := range dst {
			dst[j] = signalCoef*src[j] + noiseCoef*eps[j]
		}
	}
	return out, nil
}
