// Package godiffusion re-exports the public surface of the diffusion
// core for easier access.
package godiffusion

import (
	"github.com/FlavioCFOliveira/GoDiffusion/internal/ema"
	"github.com/FlavioCFOliveira/GoDiffusion/internal/imaging"
	"github.com/FlavioCFOliveira/GoDiffusion/internal/net"
	"github.com/FlavioCFOliveira/GoDiffusion/internal/opt"
	"github.com/FlavioCFOliveira/GoDiffusion/internal/sched"
	"github.com/FlavioCFOliveira/GoDiffusion/internal/tensor"
	"github.com/FlavioCFOliveira/GoDiffusion/internal/train"
)

// Re-export common types for easier access
type (
	Batch           = tensor.Batch
	Schedule        = sched.Schedule
	Family          = sched.Family
	Sampler         = sched.Sampler
	Predictor       = sched.Predictor
	GenerateOptions = sched.GenerateOptions
	Result          = sched.Result
	ConfigError     = sched.ConfigError
	StateError      = ema.StateError
	EMATracker      = ema.Tracker
	ParamSource     = ema.ParamSource
	ParamSink       = ema.ParamSink
	NoisePredictor  = net.NoisePredictor
	PredictorConfig = net.PredictorConfig
	Checkpoint      = net.Checkpoint
	Trainer         = train.Trainer
	TrainConfig     = train.Config
)

// Schedule families
const (
	LinearSchedule = sched.FamilyLinear
	CosineSchedule = sched.FamilyCosine
)

// Schedules and sampling
func NewSchedule(numTimesteps int, family Family) (*Schedule, error) {
	return sched.NewSchedule(numTimesteps, family)
}

func NewSampler(s *Schedule) *Sampler {
	return sched.NewSampler(s)
}

// EMA tracking
func NewEMATracker(live ParamSource, gamma0 float64, totalSteps int) (*EMATracker, error) {
	return ema.NewTracker(live, gamma0, totalSteps)
}

// Models
func NewNoisePredictor(cfg PredictorConfig, seed uint64) (*NoisePredictor, error) {
	return net.NewNoisePredictor(cfg, seed)
}

func LoadCheckpoint(filename string) (*Checkpoint, error) {
	return net.LoadCheckpoint(filename)
}

// Training
func NewTrainer(model *NoisePredictor, cfg TrainConfig) (*Trainer, error) {
	return train.NewTrainer(model, cfg)
}

func NewAdamW(lr float64) *opt.AdamW {
	return opt.NewAdamW(lr)
}

// Tensors
func NewBatch(b, c, h, w int) (*Batch, error) {
	return tensor.NewBatch(b, c, h, w)
}

// Sample export
func ExportSamples(res *Result, dir string, nrow, scale int) error {
	return imaging.Export(res, dir, nrow, scale)
}
