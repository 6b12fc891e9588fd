// Package train provides unit tests for the training loop.
package train

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/FlavioCFOliveira/GoDiffusion/internal/net"
	"github.com/FlavioCFOliveira/GoDiffusion/internal/sched"
	"github.com/FlavioCFOliveira/GoDiffusion/internal/tensor"
)

func testTrainer(t *testing.T, seed uint64) *Trainer {
	t.Helper()
	model, err := net.NewNoisePredictor(net.PredictorConfig{
		Channels:     1,
		ImageSize:    4,
		HiddenSizes:  []int{16},
		TimeEmbedDim: 4,
	}, seed)
	if err != nil {
		t.Fatalf("NewNoisePredictor() error = %v", err)
	}

	trainer, err := NewTrainer(model, Config{
		Timesteps:    50,
		Family:       sched.FamilyCosine,
		LearningRate: 1e-3,
		WarmupSteps:  10,
		TotalSteps:   100,
		Gamma0:       0.9,
		Seed:         seed,
	})
	if err != nil {
		t.Fatalf("NewTrainer() error = %v", err)
	}
	return trainer
}

func testBatch(t *testing.T) *tensor.Batch {
	t.Helper()
	batch, err := tensor.NewBatch(4, 1, 4, 4)
	if err != nil {
		t.Fatalf("NewBatch() error = %v", err)
	}
	for i := range batch.Data {
		batch.Data[i] = math.Sin(float64(i) * 0.3)
	}
	return batch
}

// TestTrainStep tests one optimizer step end to end.
func TestTrainStep(t *testing.T) {
	trainer := testTrainer(t, 1)
	batch := testBatch(t)

	loss, err := trainer.TrainStep(batch)
	if err != nil {
		t.Fatalf("TrainStep() error = %v", err)
	}
	if loss <= 0 || math.IsNaN(loss) || loss > 10 {
		t.Errorf("TrainStep() loss = %v, want a sane positive value", loss)
	}
	if trainer.Step() != 1 {
		t.Errorf("Step() = %d, want 1", trainer.Step())
	}
}

// TestTrainStepUpdatesWeightsAndShadow tests that both parameter
// arenas move, independently.
func TestTrainStepUpdatesWeightsAndShadow(t *testing.T) {
	trainer := testTrainer(t, 1)
	batch := testBatch(t)

	before := trainer.Model.Params()
	shadowBefore := trainer.EMA.Shadow()
	if _, err := trainer.TrainStep(batch); err != nil {
		t.Fatalf("TrainStep() error = %v", err)
	}
	after := trainer.Model.Params()
	shadowAfter := trainer.EMA.Shadow()

	changed := false
	for i := range before {
		if before[i] != after[i] {
			changed = true
			break
		}
	}
	if !changed {
		t.Error("live parameters unchanged after TrainStep")
	}

	// Shadow must have blended toward the new live weights, but not
	// jumped onto them.
	moved, equal := false, true
	for i := range shadowBefore {
		if shadowBefore[i] != shadowAfter[i] {
			moved = true
		}
		if shadowAfter[i] != after[i] {
			equal = false
		}
	}
	if !moved {
		t.Error("shadow parameters unchanged after TrainStep")
	}
	if equal {
		t.Error("shadow equals live parameters, want a blend")
	}
}

// TestGammaAnneals tests that the decay coefficient climbs from its
// initial value.
func TestGammaAnneals(t *testing.T) {
	trainer := testTrainer(t, 1)
	batch := testBatch(t)

	if trainer.Gamma() != 0.9 {
		t.Fatalf("Gamma() = %v before training, want 0.9", trainer.Gamma())
	}

	prev := trainer.Gamma()
	for i := 0; i < 20; i++ {
		if _, err := trainer.TrainStep(batch); err != nil {
			t.Fatalf("TrainStep() error = %v", err)
		}
		if trainer.Gamma() < prev {
			t.Fatalf("Gamma() = %v at step %d, want non-decreasing from %v",
				trainer.Gamma(), trainer.Step(), prev)
		}
		prev = trainer.Gamma()
	}
	if trainer.Gamma() <= 0.9 {
		t.Errorf("Gamma() = %v after 20 steps, want above initial 0.9", trainer.Gamma())
	}
}

// TestTrainerDeterministic tests that identical seeds reproduce the
// loss trajectory exactly.
func TestTrainerDeterministic(t *testing.T) {
	a := testTrainer(t, 3)
	b := testTrainer(t, 3)
	batch := testBatch(t)

	for i := 0; i < 5; i++ {
		lossA, err := a.TrainStep(batch)
		if err != nil {
			t.Fatalf("TrainStep() error = %v", err)
		}
		lossB, err := b.TrainStep(batch)
		if err != nil {
			t.Fatalf("TrainStep() error = %v", err)
		}
		if lossA != lossB {
			t.Fatalf("step %d: loss %v != %v, want identical trajectories", i, lossA, lossB)
		}
	}
}

// TestTrainerSample tests sampling from the shadow weights.
func TestTrainerSample(t *testing.T) {
	trainer := testTrainer(t, 1)
	batch := testBatch(t)
	if _, err := trainer.TrainStep(batch); err != nil {
		t.Fatalf("TrainStep() error = %v", err)
	}

	res, err := trainer.Sample(sched.GenerateOptions{
		NumInferenceSteps: 5,
		Eta:               0,
		Seed:              0,
		BatchSize:         2,
		Channels:          1,
		Height:            4,
		Width:             4,
	})
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if len(res.Images) != 2 {
		t.Errorf("len(Images) = %d, want 2", len(res.Images))
	}
}

// TestTrainerCheckpoint tests writing and restoring a checkpoint.
func TestTrainerCheckpoint(t *testing.T) {
	trainer := testTrainer(t, 1)
	batch := testBatch(t)
	if _, err := trainer.TrainStep(batch); err != nil {
		t.Fatalf("TrainStep() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "ckpt.gob")
	if err := trainer.SaveCheckpoint(path); err != nil {
		t.Fatalf("SaveCheckpoint() error = %v", err)
	}

	ckpt, err := net.LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("LoadCheckpoint() error = %v", err)
	}
	if len(ckpt.EMAModelState) != trainer.Model.NumParams() {
		t.Errorf("EMA state has %d params, want %d", len(ckpt.EMAModelState), trainer.Model.NumParams())
	}
}

// TestCSVLogger tests the per-step log file.
func TestCSVLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loss.csv")
	logger, err := NewCSVLogger(path)
	if err != nil {
		t.Fatalf("NewCSVLogger() error = %v", err)
	}

	trainer := testTrainer(t, 1)
	trainer.SetLogger(logger)
	if _, err := trainer.TrainStep(testBatch(t)); err != nil {
		t.Fatalf("TrainStep() error = %v", err)
	}
	logger.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(data) == 0 {
		t.Error("log file is empty, want header and one record")
	}
}
