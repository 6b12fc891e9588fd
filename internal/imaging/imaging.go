// Package imaging converts generated batches to PNG files and montage
// grids. File naming and layout stop here; the numeric core only hands
// over pixel buffers.
package imaging

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"

	"github.com/FlavioCFOliveira/GoDiffusion/internal/sched"
)

// ToRGBA converts one HWC-interleaved pixel buffer into an RGBA image.
// Single-channel buffers are replicated to gray RGB.
func ToRGBA(buf []uint8, channels, height, width int) (*image.RGBA, error) {
	if channels != 1 && channels != 3 {
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}
	if len(buf) != channels*height*width {
		return nil, fmt.Errorf("buffer has %d bytes, want %d", len(buf), channels*height*width)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			base := (y*width + x) * channels
			var r, g, b uint8
			if channels == 1 {
				r, g, b = buf[base], buf[base], buf[base]
			} else {
				r, g, b = buf[base], buf[base+1], buf[base+2]
			}
			off := img.PixOffset(x, y)
			img.Pix[off] = r
			img.Pix[off+1] = g
			img.Pix[off+2] = b
			img.Pix[off+3] = 255
		}
	}
	return img, nil
}

// Grid tiles every sample of a generated batch into one montage image
// with nrow tiles per row, upscaling each tile by scale using nearest
// neighbor so small samples stay inspectable.
func Grid(res *sched.Result, nrow, scale int) (*image.RGBA, error) {
	if nrow <= 0 {
		return nil, fmt.Errorf("nrow must be positive, got %d", nrow)
	}
	if scale <= 0 {
		scale = 1
	}

	b := res.Sample
	rows := (b.B + nrow - 1) / nrow
	tileW := b.W * scale
	tileH := b.H * scale
	grid := image.NewRGBA(image.Rect(0, 0, nrow*tileW, rows*tileH))

	for i, buf := range res.Images {
		tile, err := ToRGBA(buf, b.C, b.H, b.W)
		if err != nil {
			return nil, err
		}
		x := (i % nrow) * tileW
		y := (i / nrow) * tileH
		dst := image.Rect(x, y, x+tileW, y+tileH)
		xdraw.NearestNeighbor.Scale(grid, dst, tile, tile.Bounds(), xdraw.Src, nil)
	}
	return grid, nil
}

// SavePNG writes an image to path.
func SavePNG(img image.Image, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

// Export writes one PNG per sample plus a grid montage into dir,
// creating it if needed.
func Export(res *sched.Result, dir string, nrow, scale int) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create samples dir: %w", err)
	}

	b := res.Sample
	for i, buf := range res.Images {
		img, err := ToRGBA(buf, b.C, b.H, b.W)
		if err != nil {
			return err
		}
		if err := SavePNG(img, filepath.Join(dir, fmt.Sprintf("%d.png", i))); err != nil {
			return err
		}
	}

	grid, err := Grid(res, nrow, scale)
	if err != nil {
		return err
	}
	return SavePNG(grid, filepath.Join(dir, "grid.png"))
}
