// Package sched implements the diffusion noise schedule, the forward
// corruption process and the DDIM reverse sampler.
package sched

import (
	"fmt"
	"math"
)

// Family selects the beta schedule shape.
type Family string

const (
	// FamilyLinear interpolates betas linearly between fixed bounds.
	FamilyLinear Family = "linear"
	// FamilyCosine derives alpha-bar from a cosine curve, which keeps
	// early timesteps from over-corrupting the image.
	FamilyCosine Family = "cosine"
)

const (
	linearBetaStart = 1e-4
	linearBetaEnd   = 2e-2

	// Offset and clip for the cosine family, per Nichol & Dhariwal.
	cosineOffset  = 0.008
	cosineBetaMax = 0.999
)

// ConfigError reports an invalid scheduler or sampler configuration.
// It is raised at construction or call time and never recovered.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "sched: " + e.Msg
}

func configErrorf(format string, args ...any) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// Schedule holds the per-timestep noise coefficients. It is built once
// and never mutated; all sampler state lives in the caller.
type Schedule struct {
	numTimesteps  int
	betas         []float64
	alphas        []float64
	alphasCumprod []float64
}

// NewSchedule builds the beta/alpha schedule for the given family.
// Cost is O(numTimesteps); the result is cached for the schedule's
// lifetime.
func NewSchedule(numTimesteps int, family Family) (*Schedule, error) {
	if numTimesteps <= 0 {
		return nil, configErrorf("num_train_timesteps must be positive, got %d", numTimesteps)
	}

	var betas []float64
	switch family {
	case FamilyLinear:
		betas = linearBetas(numTimesteps)
	case FamilyCosine:
		betas = cosineBetas(numTimesteps)
	default:
		return nil, configErrorf("unknown beta schedule family %q", family)
	}

	alphas := make([]float64, numTimesteps)
	alphasCumprod := make([]float64, numTimesteps)
	prod := 1.0
	for i, beta := range betas {
		alphas[i] = 1 - beta
		prod *= alphas[i]
		alphasCumprod[i] = prod
	}

	return &Schedule{
		numTimesteps:  numTimesteps,
		betas:         betas,
		alphas:        alphas,
		alphasCumprod: alphasCumprod,
	}, nil
}

// NumTimesteps returns T, the length of the training schedule.
func (s *Schedule) NumTimesteps() int {
	return s.numTimesteps
}

// Beta returns beta_t.
func (s *Schedule) Beta(t int) float64 {
	return s.betas[t]
}

// AlphaCumprod returns alpha_bar_t, the cumulative product of alphas
// up to and including t.
func (s *Schedule) AlphaCumprod(t int) float64 {
	return s.alphasCumprod[t]
}

func linearBetas(n int) []float64 {
	betas := make([]float64, n)
	if n == 1 {
		betas[0] = linearBetaStart
		return betas
	}
	step := (linearBetaEnd - linearBetaStart) / float64(n-1)
	for i := range betas {
		betas[i] = linearBetaStart + float64(i)*step
	}
	return betas
}

// cosineBetas backs betas out of the cosine alpha-bar curve:
// alpha_bar(t) = cos^2(((t/T)+s)/(1+s) * pi/2), beta_t = 1 - f(t+1)/f(t).
func cosineBetas(n int) []float64 {
	f := func(t float64) float64 {
		x := (t/float64(n) + cosineOffset) / (1 + cosineOffset) * math.Pi / 2
		c := math.Cos(x)
		return c * c
	}
	betas := make([]float64, n)
	for i := range betas {
		beta := 1 - f(float64(i+1))/f(float64(i))
		if beta > cosineBetaMax {
			beta = cosineBetaMax
		}
		if beta < 0 {
			beta = 0
		}
		betas[i] = beta
	}
	return betas
}
