// Package tensor provides the flat batch tensor used by the diffusion core.
package tensor

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Batch is a batch of images stored as a flat float64 slice in
// [B, C, H, W] order. Values follow the training normalization
// convention of [-1, 1] unless stated otherwise.
type Batch struct {
	Data []float64
	B    int
	C    int
	H    int
	W    int
}

// NewBatch allocates a zero-filled batch of the given shape.
func NewBatch(b, c, h, w int) (*Batch, error) {
	if b <= 0 || c <= 0 || h <= 0 || w <= 0 {
		return nil, fmt.Errorf("invalid batch shape [%d %d %d %d]", b, c, h, w)
	}
	return &Batch{
		Data: make([]float64, b*c*h*w),
		B:    b,
		C:    c,
		H:    h,
		W:    w,
	}, nil
}

// NewBatchLike allocates a zero-filled batch with the same shape as src.
func NewBatchLike(src *Batch) *Batch {
	return &Batch{
		Data: make([]float64, len(src.Data)),
		B:    src.B,
		C:    src.C,
		H:    src.H,
		W:    src.W,
	}
}

// Numel returns the total number of elements.
func (b *Batch) Numel() int {
	return b.B * b.C * b.H * b.W
}

// ExampleSize returns the number of elements in a single example (C*H*W).
func (b *Batch) ExampleSize() int {
	return b.C * b.H * b.W
}

// Example returns the flat slice backing example i. The slice aliases
// the batch storage; writes are visible in the batch.
func (b *Batch) Example(i int) []float64 {
	n := b.ExampleSize()
	return b.Data[i*n : (i+1)*n]
}

// Clone returns a deep copy.
func (b *Batch) Clone() *Batch {
	out := NewBatchLike(b)
	copy(out.Data, b.Data)
	return out
}

// SameShape reports whether two batches have identical dimensions.
func (b *Batch) SameShape(o *Batch) bool {
	return b.B == o.B && b.C == o.C && b.H == o.H && b.W == o.W
}

// Scale multiplies every element by c in place.
func (b *Batch) Scale(c float64) {
	floats.Scale(c, b.Data)
}

// AddScaled adds alpha*src to b in place. Shapes must match.
func (b *Batch) AddScaled(alpha float64, src *Batch) {
	floats.AddScaled(b.Data, alpha, src.Data)
}

// Clamp limits every element to [lo, hi] in place.
func (b *Batch) Clamp(lo, hi float64) {
	for i, v := range b.Data {
		if v < lo {
			b.Data[i] = lo
		} else if v > hi {
			b.Data[i] = hi
		}
	}
}

// NewSource returns a seeded random source. Each logical entropy stream
// (training noise vs. sampling) gets its own source so draws from one
// never shift the other.
func NewSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// FillNormal fills the batch with standard normal draws from rng.
func (b *Batch) FillNormal(rng *rand.Rand) {
	dist := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}
	for i := range b.Data {
		b.Data[i] = dist.Rand()
	}
}
