package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/exp/rand"

	"github.com/FlavioCFOliveira/GoDiffusion/internal/imaging"
	"github.com/FlavioCFOliveira/GoDiffusion/internal/net"
	"github.com/FlavioCFOliveira/GoDiffusion/internal/sched"
	"github.com/FlavioCFOliveira/GoDiffusion/internal/tensor"
	"github.com/FlavioCFOliveira/GoDiffusion/internal/train"
)

// Trains a small noise predictor on a synthetic blob dataset and
// periodically samples from the EMA shadow weights.
func main() {
	var (
		resolution     = flag.Int("resolution", 16, "image size")
		channels       = flag.Int("channels", 3, "image channels")
		batchSize      = flag.Int("train-batch-size", 16, "training batch size")
		evalBatchSize  = flag.Int("eval-batch-size", 16, "sampling batch size")
		epochs         = flag.Int("num-epochs", 10, "number of epochs")
		stepsPerEpoch  = flag.Int("steps-per-epoch", 100, "optimizer steps per epoch")
		learningRate   = flag.Float64("learning-rate", 1e-4, "base learning rate")
		warmupSteps    = flag.Int("lr-warmup-steps", 100, "LR warmup steps")
		gamma0         = flag.Float64("gamma", 0.996, "initial EMA coefficient")
		seed           = flag.Uint64("seed", 42, "training seed")
		timesteps      = flag.Int("timesteps", 1000, "training timesteps")
		family         = flag.String("beta-schedule", "cosine", "beta schedule family (linear|cosine)")
		inferenceSteps = flag.Int("inference-steps", 20, "DDIM steps for inspection samples")
		eta            = flag.Float64("eta", 1.0, "DDIM eta for inspection samples")
		saveSteps      = flag.Int("save-model-steps", 250, "steps between checkpoints")
		output         = flag.String("output", "trained_models/ddpm-ema.gob", "checkpoint path")
		samplesDir     = flag.String("samples-dir", "test_samples", "directory for sample images")
		lossLog        = flag.String("loss-log", "training_logs/loss.csv", "CSV loss log path")
	)
	flag.Parse()

	cfg := net.PredictorConfig{
		Channels:     *channels,
		ImageSize:    *resolution,
		HiddenSizes:  []int{256, 256},
		TimeEmbedDim: 64,
	}
	model, err := net.NewNoisePredictor(cfg, *seed)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Model: %d parameters\n", model.NumParams())

	totalSteps := *epochs * *stepsPerEpoch
	trainer, err := train.NewTrainer(model, train.Config{
		Timesteps:    *timesteps,
		Family:       sched.Family(*family),
		LearningRate: *learningRate,
		WarmupSteps:  *warmupSteps,
		TotalSteps:   totalSteps,
		Gamma0:       *gamma0,
		Seed:         *seed,
	})
	if err != nil {
		fatal(err)
	}

	if err := os.MkdirAll(filepath.Dir(*lossLog), 0755); err == nil {
		if logger, err := train.NewCSVLogger(*lossLog); err == nil {
			trainer.SetLogger(logger)
			defer logger.Close()
		}
	}

	nrow := *evalBatchSize / 4
	if nrow < 1 {
		nrow = 1
	}

	// Data entropy stream, independent of the training noise stream.
	dataRng := tensor.NewSource(*seed + 1)

	for epoch := 0; epoch < *epochs; epoch++ {
		epochLoss := 0.0
		for s := 0; s < *stepsPerEpoch; s++ {
			batch, err := blobBatch(dataRng, *batchSize, *channels, *resolution)
			if err != nil {
				fatal(err)
			}
			loss, err := trainer.TrainStep(batch)
			if err != nil {
				fatal(err)
			}
			epochLoss += loss

			if trainer.Step()%*saveSteps == 0 {
				res, err := trainer.Sample(sched.GenerateOptions{
					NumInferenceSteps: *inferenceSteps,
					Eta:               *eta,
					Seed:              0,
					BatchSize:         *evalBatchSize,
					Channels:          *channels,
					Height:            *resolution,
					Width:             *resolution,
				})
				if err != nil {
					fatal(err)
				}
				dir := filepath.Join(*samplesDir, fmt.Sprintf("step_%06d", trainer.Step()))
				if err := imaging.Export(res, dir, nrow, 4); err != nil {
					fatal(err)
				}
				if err := trainer.SaveCheckpoint(*output); err != nil {
					fatal(err)
				}
				fmt.Printf("Step %d: saved checkpoint and samples to %s\n", trainer.Step(), dir)
			}
		}
		fmt.Printf("Epoch %d: loss = %.6f, gamma = %.6f\n",
			epoch, epochLoss/float64(*stepsPerEpoch), trainer.Gamma())
	}
}

// blobBatch generates soft gaussian blobs at random positions, in the
// [-1, 1] training range.
func blobBatch(rng *rand.Rand, b, c, size int) (*tensor.Batch, error) {
	batch, err := tensor.NewBatch(b, c, size, size)
	if err != nil {
		return nil, err
	}
	for i := 0; i < b; i++ {
		cx := rng.Float64() * float64(size)
		cy := rng.Float64() * float64(size)
		radius := float64(size) / 4
		ex := batch.Example(i)
		for ch := 0; ch < c; ch++ {
			for y := 0; y < size; y++ {
				for x := 0; x < size; x++ {
					dx := float64(x) - cx
					dy := float64(y) - cy
					v := math.Exp(-(dx*dx + dy*dy) / (2 * radius * radius))
					ex[ch*size*size+y*size+x] = v*2 - 1
				}
			}
		}
	}
	return batch, nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "train:", err)
	os.Exit(1)
}
