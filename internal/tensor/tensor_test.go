// Package tensor provides unit tests for the batch tensor.
package tensor

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"
)

// TestNewBatchShape tests allocation and shape accounting.
func TestNewBatchShape(t *testing.T) {
	b, err := NewBatch(2, 3, 4, 5)
	if err != nil {
		t.Fatalf("NewBatch() error = %v", err)
	}
	if b.Numel() != 120 {
		t.Errorf("Numel() = %d, want 120", b.Numel())
	}
	if b.ExampleSize() != 60 {
		t.Errorf("ExampleSize() = %d, want 60", b.ExampleSize())
	}
	if len(b.Example(1)) != 60 {
		t.Errorf("len(Example(1)) = %d, want 60", len(b.Example(1)))
	}
}

// TestNewBatchInvalidShape tests shape validation.
func TestNewBatchInvalidShape(t *testing.T) {
	tests := [][4]int{
		{0, 3, 4, 4},
		{1, -1, 4, 4},
		{1, 3, 0, 4},
		{1, 3, 4, 0},
	}
	for _, shape := range tests {
		if _, err := NewBatch(shape[0], shape[1], shape[2], shape[3]); err == nil {
			t.Errorf("NewBatch(%v) error = nil, want error", shape)
		}
	}
}

// TestExampleAliasing tests that Example returns a view, not a copy.
func TestExampleAliasing(t *testing.T) {
	b, err := NewBatch(2, 1, 2, 2)
	if err != nil {
		t.Fatalf("NewBatch() error = %v", err)
	}
	b.Example(1)[0] = 7
	if b.Data[4] != 7 {
		t.Errorf("Data[4] = %v, want 7 (write through example view)", b.Data[4])
	}
}

// TestCloneIndependence tests deep copy semantics.
func TestCloneIndependence(t *testing.T) {
	b, err := NewBatch(1, 1, 2, 2)
	if err != nil {
		t.Fatalf("NewBatch() error = %v", err)
	}
	b.Data[0] = 1
	c := b.Clone()
	c.Data[0] = 2
	if b.Data[0] != 1 {
		t.Errorf("Data[0] = %v after clone write, want 1", b.Data[0])
	}
}

// TestFillNormalReproducible tests that identical seeds produce
// identical draws.
func TestFillNormalReproducible(t *testing.T) {
	a, _ := NewBatch(1, 1, 8, 8)
	b, _ := NewBatch(1, 1, 8, 8)
	a.FillNormal(NewSource(3))
	b.FillNormal(NewSource(3))
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("draw %d differs: %v != %v", i, a.Data[i], b.Data[i])
		}
	}
}

// TestFillNormalMoments tests that draws look standard normal.
func TestFillNormalMoments(t *testing.T) {
	b, _ := NewBatch(1, 1, 100, 100)
	b.FillNormal(NewSource(11))

	mean, std := stat.MeanStdDev(b.Data, nil)
	if math.Abs(mean) > 0.05 {
		t.Errorf("mean = %v, want near 0", mean)
	}
	if math.Abs(std-1) > 0.05 {
		t.Errorf("std = %v, want near 1", std)
	}
}

// TestClamp tests elementwise clamping.
func TestClamp(t *testing.T) {
	b, _ := NewBatch(1, 1, 1, 3)
	copy(b.Data, []float64{-2, 0.5, 2})
	b.Clamp(-1, 1)
	want := []float64{-1, 0.5, 1}
	for i := range want {
		if b.Data[i] != want[i] {
			t.Errorf("Data[%d] = %v, want %v", i, b.Data[i], want[i])
		}
	}
}

// TestAddScaled tests the fused multiply-add helper.
func TestAddScaled(t *testing.T) {
	a, _ := NewBatch(1, 1, 1, 2)
	b, _ := NewBatch(1, 1, 1, 2)
	copy(a.Data, []float64{1, 2})
	copy(b.Data, []float64{10, 20})
	a.AddScaled(0.5, b)
	if a.Data[0] != 6 || a.Data[1] != 12 {
		t.Errorf("AddScaled result = %v, want [6 12]", a.Data)
	}
}
