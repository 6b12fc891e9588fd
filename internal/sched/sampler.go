package sched

import (
	"fmt"
	"math"

	"github.com/FlavioCFOliveira/GoDiffusion/internal/tensor"
)

// Predictor estimates the noise component of a corrupted batch. It is
// the boundary to the predictive network, which lives outside this
// package; any architecture satisfying the signature works.
type Predictor interface {
	PredictNoise(x *tensor.Batch, timesteps []int) (*tensor.Batch, error)
}

// GenerateOptions configures a single Generate call.
type GenerateOptions struct {
	NumInferenceSteps int
	Eta               float64
	Seed              uint64
	BatchSize         int
	Channels          int
	Height            int
	Width             int
}

// Result holds one generated batch in both export forms: per-sample
// pixel buffers in [0, 255], and a single normalized float batch in
// [0, 1] ready for montage assembly. Callers choose which to persist.
type Result struct {
	// Images holds one HWC-interleaved uint8 buffer per sample.
	Images [][]uint8
	// Sample is the full batch rescaled to [0, 1], shape [B, C, H, W].
	Sample *tensor.Batch
}

// Sampler runs the DDIM reverse process over a strided subsequence of
// the training schedule. It holds no mutable state across calls; the
// seeded generator is rebuilt inside every Generate call so identical
// seeds always retrace identical trajectories.
type Sampler struct {
	schedule *Schedule
}

// NewSampler creates a DDIM sampler over the given schedule.
func NewSampler(s *Schedule) *Sampler {
	return &Sampler{schedule: s}
}

// Generate draws a batch from pure noise by iterative denoising.
//
// At eta=0 the trajectory is fully deterministic given the seed; at
// eta=1 the per-step noise matches the ancestral sampler. A predictor
// error aborts the whole generation with no partial result.
func (sp *Sampler) Generate(p Predictor, opts GenerateOptions) (*Result, error) {
	s := sp.schedule
	if opts.NumInferenceSteps <= 0 {
		return nil, configErrorf("num_inference_steps must be positive, got %d", opts.NumInferenceSteps)
	}
	if opts.NumInferenceSteps > s.numTimesteps {
		return nil, configErrorf("num_inference_steps %d exceeds num_train_timesteps %d",
			opts.NumInferenceSteps, s.numTimesteps)
	}
	if opts.Eta < 0 || opts.Eta > 1 {
		return nil, configErrorf("eta must be in [0, 1], got %v", opts.Eta)
	}

	x, err := tensor.NewBatch(opts.BatchSize, opts.Channels, opts.Height, opts.Width)
	if err != nil {
		return nil, &ConfigError{Msg: err.Error()}
	}

	// Private generator per call: reproducibility must not depend on
	// draws made by any other generator instance.
	rng := tensor.NewSource(opts.Seed)
	x.FillNormal(rng)

	stride := s.numTimesteps / opts.NumInferenceSteps
	timesteps := make([]int, opts.BatchSize)

	for i := opts.NumInferenceSteps - 1; i >= 0; i-- {
		t := i * stride
		for j := range timesteps {
			timesteps[j] = t
		}

		eps, err := p.PredictNoise(x, timesteps)
		if err != nil {
			return nil, fmt.Errorf("predictor failed at timestep %d: %w", t, err)
		}
		if !eps.SameShape(x) {
			return nil, configErrorf("predictor returned shape [%d %d %d %d], want [%d %d %d %d]",
				eps.B, eps.C, eps.H, eps.W, x.B, x.C, x.H, x.W)
		}

		abarT := s.alphasCumprod[t]
		abarPrev := 1.0
		if prev := t - stride; prev >= 0 {
			abarPrev = s.alphasCumprod[prev]
		}

		sigma := opts.Eta *
			math.Sqrt((1-abarPrev)/(1-abarT)) *
			math.Sqrt(1-abarT/abarPrev)

		sqrtAbarT := math.Sqrt(abarT)
		sqrtOneMinusAbarT := math.Sqrt(1 - abarT)
		sqrtAbarPrev := math.Sqrt(abarPrev)
		dirCoef := 1 - abarPrev - sigma*sigma
		if dirCoef < 0 {
			dirCoef = 0
		}
		dirCoef = math.Sqrt(dirCoef)

		for j, v := range x.Data {
			// Estimated clean image, kept inside the data range.
			x0 := (v - sqrtOneMinusAbarT*eps.Data[j]) / sqrtAbarT
			if x0 > 1 {
				x0 = 1
			} else if x0 < -1 {
				x0 = -1
			}
			x.Data[j] = sqrtAbarPrev*x0 + dirCoef*eps.Data[j]
		}

		if sigma > 0 {
			fresh := tensor.NewBatchLike(x)
			fresh.FillNormal(rng)
			x.AddScaled(sigma, fresh)
		}
	}

	// Rescale [-1, 1] -> [0, 1] for the montage tensor.
	for j, v := range x.Data {
		v = v/2 + 0.5
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		x.Data[j] = v
	}

	return &Result{
		Images: exportImages(x),
		Sample: x,
	}, nil
}

// exportImages converts a [0, 1] batch to per-sample HWC uint8 buffers.
func exportImages(b *tensor.Batch) [][]uint8 {
	images := make([][]uint8, b.B)
	plane := b.H * b.W
	for i := range images {
		src := b.Example(i)
		img := make([]uint8, b.C*plane)
		for y := 0; y < b.H; y++ {
			for x := 0; x < b.W; x++ {
				for c := 0; c < b.C; c++ {
					img[(y*b.W+x)*b.C+c] = uint8(math.Round(src[c*plane+y*b.W+x] * 255))
				}
			}
		}
		images[i] = img
	}
	return images
}
