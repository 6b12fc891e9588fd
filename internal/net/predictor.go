package net

import (
	"fmt"
	"math"

	"github.com/FlavioCFOliveira/GoDiffusion/internal/tensor"
)

// PredictorConfig describes the shape of a NoisePredictor.
type PredictorConfig struct {
	Channels     int
	ImageSize    int
	HiddenSizes  []int
	TimeEmbedDim int
}

func (c PredictorConfig) validate() error {
	if c.Channels <= 0 || c.ImageSize <= 0 {
		return fmt.Errorf("invalid image shape %dx%dx%d", c.Channels, c.ImageSize, c.ImageSize)
	}
	if len(c.HiddenSizes) == 0 {
		return fmt.Errorf("at least one hidden layer is required")
	}
	if c.TimeEmbedDim <= 0 || c.TimeEmbedDim%2 != 0 {
		return fmt.Errorf("time embedding dim must be positive and even, got %d", c.TimeEmbedDim)
	}
	return nil
}

func (c PredictorConfig) exampleSize() int {
	return c.Channels * c.ImageSize * c.ImageSize
}

// NoisePredictor is a dense network that maps a flattened noisy image
// plus a sinusoidal timestep embedding to the estimated noise. It
// implements the predictor boundary used by the DDIM sampler.
type NoisePredictor struct {
	cfg    PredictorConfig
	layers []*Dense
	inBuf  []float64
}

// NewNoisePredictor builds a predictor with weights drawn from the
// given seed. Identical seeds produce identical initial weights.
func NewNoisePredictor(cfg PredictorConfig, seed uint64) (*NoisePredictor, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid predictor config: %w", err)
	}

	rng := tensor.NewSource(seed)
	n := cfg.exampleSize()
	sizes := append([]int{n + cfg.TimeEmbedDim}, cfg.HiddenSizes...)
	sizes = append(sizes, n)

	layers := make([]*Dense, len(sizes)-1)
	for i := range layers {
		var act Activation = SiLU{}
		if i == len(layers)-1 {
			act = Identity{}
		}
		layers[i] = NewDense(sizes[i], sizes[i+1], act, rng)
	}

	return &NoisePredictor{
		cfg:    cfg,
		layers: layers,
		inBuf:  make([]float64, n+cfg.TimeEmbedDim),
	}, nil
}

// Config returns the predictor's configuration.
func (p *NoisePredictor) Config() PredictorConfig {
	return p.cfg
}

// ForwardExample runs one example through the network. The returned
// slice is a reused buffer, valid until the next forward call.
func (p *NoisePredictor) ForwardExample(x []float64, t int) []float64 {
	copy(p.inBuf, x)
	timeEmbedding(t, p.inBuf[len(x):])
	curr := p.inBuf
	for _, l := range p.layers {
		curr = l.Forward(curr)
	}
	return curr
}

// BackwardExample backpropagates the output gradient of the last
// forwarded example, accumulating parameter gradients.
func (p *NoisePredictor) BackwardExample(grad []float64) {
	curr := grad
	for i := len(p.layers) - 1; i >= 0; i-- {
		curr = p.layers[i].Backward(curr)
	}
}

// ZeroGrads clears accumulated gradients in all layers.
func (p *NoisePredictor) ZeroGrads() {
	for _, l := range p.layers {
		l.ZeroGrads()
	}
}

// PredictNoise estimates the noise component of a corrupted batch, one
// timestep per example.
func (p *NoisePredictor) PredictNoise(x *tensor.Batch, timesteps []int) (*tensor.Batch, error) {
	if x.C != p.cfg.Channels || x.H != p.cfg.ImageSize || x.W != p.cfg.ImageSize {
		return nil, fmt.Errorf("batch shape [%d %d %d] does not match predictor config [%d %d %d]",
			x.C, x.H, x.W, p.cfg.Channels, p.cfg.ImageSize, p.cfg.ImageSize)
	}
	if len(timesteps) != x.B {
		return nil, fmt.Errorf("got %d timesteps for batch of %d", len(timesteps), x.B)
	}

	out := tensor.NewBatchLike(x)
	for i := 0; i < x.B; i++ {
		pred := p.ForwardExample(x.Example(i), timesteps[i])
		copy(out.Example(i), pred)
	}
	return out, nil
}

// Params returns all parameters flattened into one vector (copy).
func (p *NoisePredictor) Params() []float64 {
	out := make([]float64, 0, p.NumParams())
	for _, l := range p.layers {
		out = l.appendParams(out)
	}
	return out
}

// Gradients returns all accumulated gradients flattened (copy).
func (p *NoisePredictor) Gradients() []float64 {
	out := make([]float64, 0, p.NumParams())
	for _, l := range p.layers {
		out = l.appendGrads(out)
	}
	return out
}

// SetParams installs a flat parameter vector, layer by layer.
func (p *NoisePredictor) SetParams(params []float64) {
	offset := 0
	for _, l := range p.layers {
		n := l.NumParams()
		l.setParams(params[offset : offset+n])
		offset += n
	}
}

// NumParams returns the total parameter count.
func (p *NoisePredictor) NumParams() int {
	total := 0
	for _, l := range p.layers {
		total += l.NumParams()
	}
	return total
}

// timeEmbedding writes the standard sinusoidal embedding of timestep t
// into buf. len(buf) must be even.
func timeEmbedding(t int, buf []float64) {
	half := len(buf) / 2
	for k := 0; k < half; k++ {
		freq := math.Exp(-math.Log(10000) * float64(k) / float64(half))
		buf[k] = math.Sin(float64(t) * freq)
		buf[half+k] = math.Cos(float64(t) * freq)
	}
}
