package net

import (
	"encoding/gob"
	"fmt"
	"os"
)

// Checkpoint is the on-disk parameter snapshot: the live model state
// and the EMA shadow state, plus the config needed to rebuild the
// network. Optimizer state is not saved.
type Checkpoint struct {
	Config        PredictorConfig
	ModelState    []float64
	EMAModelState []float64
}

// SaveCheckpoint writes a gob-encoded checkpoint to filename.
func SaveCheckpoint(filename string, model *NoisePredictor, emaState []float64) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file: %w", err)
	}
	defer file.Close()

	ckpt := Checkpoint{
		Config:        model.Config(),
		ModelState:    model.Params(),
		EMAModelState: emaState,
	}
	if err := gob.NewEncoder(file).Encode(&ckpt); err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint reads a checkpoint written by SaveCheckpoint.
func LoadCheckpoint(filename string) (*Checkpoint, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var ckpt Checkpoint
	if err := gob.NewDecoder(file).Decode(&ckpt); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	return &ckpt, nil
}

// Restore rebuilds the predictor from the checkpoint. With useEMA set
// it installs the shadow weights, otherwise the live weights.
func (c *Checkpoint) Restore(useEMA bool) (*NoisePredictor, error) {
	model, err := NewNoisePredictor(c.Config, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild model: %w", err)
	}
	state := c.ModelState
	if useEMA {
		state = c.EMAModelState
	}
	if len(state) != model.NumParams() {
		return nil, fmt.Errorf("checkpoint has %d parameters, model wants %d",
			len(state), model.NumParams())
	}
	model.SetParams(state)
	return model, nil
}
