// Package train orchestrates the diffusion training loop: forward
// corruption, noise prediction, L1 loss, optimizer step and EMA update.
package train

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"github.com/FlavioCFOliveira/GoDiffusion/internal/ema"
	"github.com/FlavioCFOliveira/GoDiffusion/internal/net"
	"github.com/FlavioCFOliveira/GoDiffusion/internal/opt"
	"github.com/FlavioCFOliveira/GoDiffusion/internal/sched"
	"github.com/FlavioCFOliveira/GoDiffusion/internal/tensor"
)

// Config collects the knobs of the training loop.
type Config struct {
	Timesteps    int
	Family       sched.Family
	LearningRate float64
	WarmupSteps  int
	TotalSteps   int
	Gamma0       float64
	Seed         uint64
	LogEvery     int
}

// Trainer runs optimizer steps against a noise predictor and keeps the
// EMA shadow in lockstep. The training entropy stream is seeded
// separately from sampling so the two never interfere.
type Trainer struct {
	Model    *net.NoisePredictor
	Schedule *sched.Schedule
	EMA      *ema.Tracker

	optimizer opt.Optimizer
	lrSched   opt.Scheduler
	rng       *rand.Rand
	gamma     float64
	step      int
	logger    *CSVLogger
}

// NewTrainer wires a trainer from config. The model's initial weights
// become the initial EMA shadow.
func NewTrainer(model *net.NoisePredictor, cfg Config) (*Trainer, error) {
	schedule, err := sched.NewSchedule(cfg.Timesteps, cfg.Family)
	if err != nil {
		return nil, err
	}
	tracker, err := ema.NewTracker(model, cfg.Gamma0, cfg.TotalSteps)
	if err != nil {
		return nil, fmt.Errorf("failed to create EMA tracker: %w", err)
	}

	var lrSched opt.Scheduler = opt.Constant{BaseLR: cfg.LearningRate}
	if cfg.WarmupSteps > 0 {
		lrSched = opt.WarmupCosine{
			BaseLR:      cfg.LearningRate,
			WarmupSteps: cfg.WarmupSteps,
			TotalSteps:  cfg.TotalSteps,
		}
	}

	return &Trainer{
		Model:     model,
		Schedule:  schedule,
		EMA:       tracker,
		optimizer: opt.NewAdamW(cfg.LearningRate),
		lrSched:   lrSched,
		rng:       tensor.NewSource(cfg.Seed),
		gamma:     cfg.Gamma0,
	}, nil
}

// SetLogger attaches a CSV logger for per-step records.
func (tr *Trainer) SetLogger(l *CSVLogger) {
	tr.logger = l
}

// Step returns the number of completed optimizer steps.
func (tr *Trainer) Step() int {
	return tr.step
}

// Gamma returns the current EMA decay coefficient.
func (tr *Trainer) Gamma() float64 {
	return tr.gamma
}

// TrainStep runs one optimizer step on a clean batch: sample per-example
// timesteps, corrupt, predict the injected noise, backpropagate the L1
// loss, update the weights and fold them into the EMA shadow. Returns
// the batch loss.
func (tr *Trainer) TrainStep(batch *tensor.Batch) (float64, error) {
	timesteps := make([]int, batch.B)
	for i := range timesteps {
		timesteps[i] = tr.rng.Intn(tr.Schedule.NumTimesteps())
	}

	noise := tensor.NewBatchLike(batch)
	noise.FillNormal(tr.rng)

	noisy, err := tr.Schedule.AddNoise(batch, noise, timesteps)
	if err != nil {
		return 0, err
	}

	// Forward/backward per example, gradients accumulate in the model.
	tr.Model.ZeroGrads()
	n := batch.ExampleSize()
	grad := make([]float64, n)
	totalLoss := 0.0
	for i := 0; i < batch.B; i++ {
		pred := tr.Model.ForwardExample(noisy.Example(i), timesteps[i])
		target := noise.Example(i)
		for j, p := range pred {
			diff := p - target[j]
			totalLoss += math.Abs(diff)
			// L1 gradient, averaged over the whole batch.
			grad[j] = sign(diff) / float64(batch.B*n)
		}
		tr.Model.BackwardExample(grad)
	}
	loss := totalLoss / float64(batch.B*n)

	lr := tr.lrSched.LR(tr.step)
	tr.optimizer.SetLR(lr)

	params := tr.Model.Params()
	tr.optimizer.StepInPlace(params, tr.Model.Gradients())
	tr.Model.SetParams(params)

	if err := tr.EMA.UpdateParams(tr.gamma); err != nil {
		return 0, err
	}
	tr.gamma = tr.EMA.UpdateGamma(tr.step)
	tr.step++

	if tr.logger != nil {
		tr.logger.Log(tr.step, loss, lr, tr.gamma)
	}
	return loss, nil
}

// Sample generates a batch from the EMA shadow weights. A fresh model
// clone receives the shadow parameters so the live model is untouched.
func (tr *Trainer) Sample(genOpts sched.GenerateOptions) (*sched.Result, error) {
	shadowModel, err := net.NewNoisePredictor(tr.Model.Config(), 0)
	if err != nil {
		return nil, fmt.Errorf("failed to clone model for sampling: %w", err)
	}
	tr.EMA.Apply(shadowModel)

	sampler := sched.NewSampler(tr.Schedule)
	return sampler.Generate(shadowModel, genOpts)
}

// SaveCheckpoint writes the live and shadow weights to filename.
func (tr *Trainer) SaveCheckpoint(filename string) error {
	return net.SaveCheckpoint(filename, tr.Model, tr.EMA.Shadow())
}

func sign(x float64) float64 {
	if x > 0 {
		return 1
	}
	if x < 0 {
		return -1
	}
	return 0
}
