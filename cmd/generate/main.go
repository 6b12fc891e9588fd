package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/FlavioCFOliveira/GoDiffusion/internal/imaging"
	"github.com/FlavioCFOliveira/GoDiffusion/internal/net"
	"github.com/FlavioCFOliveira/GoDiffusion/internal/sched"
)

// Generates a batch of images from a trained checkpoint's EMA weights.
func main() {
	var (
		pretrained     = flag.String("pretrained-model-path", "", "path to checkpoint")
		samplesDir     = flag.String("samples-dir", "test_samples", "output directory")
		evalBatchSize  = flag.Int("eval-batch-size", 16, "number of images")
		timesteps      = flag.Int("timesteps", 1000, "training timesteps of the schedule")
		family         = flag.String("beta-schedule", "cosine", "beta schedule family (linear|cosine)")
		inferenceSteps = flag.Int("inference-steps", 20, "DDIM steps")
		eta            = flag.Float64("eta", 1.0, "DDIM eta")
		seed           = flag.Uint64("seed", 0, "sampling seed")
		scale          = flag.Int("scale", 4, "nearest-neighbor upscale factor for output")
	)
	flag.Parse()

	if *pretrained == "" {
		fatal(fmt.Errorf("missing -pretrained-model-path"))
	}

	ckpt, err := net.LoadCheckpoint(*pretrained)
	if err != nil {
		fatal(err)
	}
	model, err := ckpt.Restore(true)
	if err != nil {
		fatal(err)
	}

	schedule, err := sched.NewSchedule(*timesteps, sched.Family(*family))
	if err != nil {
		fatal(err)
	}

	cfg := model.Config()
	start := time.Now()
	res, err := sched.NewSampler(schedule).Generate(model, sched.GenerateOptions{
		NumInferenceSteps: *inferenceSteps,
		Eta:               *eta,
		Seed:              *seed,
		BatchSize:         *evalBatchSize,
		Channels:          cfg.Channels,
		Height:            cfg.ImageSize,
		Width:             cfg.ImageSize,
	})
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Generated %d images in %v\n", *evalBatchSize, time.Since(start))

	nrow := *evalBatchSize / 4
	if nrow < 1 {
		nrow = 1
	}
	dir := filepath.Join(*samplesDir, time.Now().Format("20060102_150405"))
	if err := imaging.Export(res, dir, nrow, *scale); err != nil {
		fatal(err)
	}
	fmt.Printf("Samples written to %s\n", dir)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "generate:", err)
	os.Exit(1)
}
