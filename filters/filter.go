// Package filters implements in-place pixel transforms over any image that
// supports random access reads and writes.
//
// Point filters map every pixel through a function of that pixel alone.
// Window filters compute every output pixel from a square neighbourhood of
// input pixels. Neighbours outside the image are clamped to the nearest edge
// pixel. Window filters read from a snapshot taken before the first write,
// so the output never depends on already filtered pixels.
//
// Rows are processed in parallel, so the image must support concurrent
// SetPixel calls on distinct rows.
package filters

import (
	"fmt"
	"math"

	"github.com/kovidgoyal/go-parallel"
	"github.com/kovidgoyal/imager/types"
)

var _ = fmt.Print

// Image is the pixel access filters need.
type Image interface {
	Width() int
	Height() int
	PixelAt(x, y int) (types.Pixel, error)
	SetPixel(x, y int, p types.Pixel) error
}

type Filter interface {
	// Apply transforms img in place. A pixel the image refuses to store is
	// left unchanged.
	Apply(img Image) error
}

// run_rows calls f for every row in [0, height) split across all CPUs.
func run_rows(height int, f func(y int)) error {
	return parallel.Run_in_parallel_over_range(0, func(start, limit int) {
		for y := start; y < limit; y++ {
			f(y)
		}
	}, 0, height)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func clamp_channel(v int) uint8 {
	return uint8(clamp(v, 0, 255))
}

// round_channel rounds half away from zero and clamps to [0, 255].
func round_channel(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}

// map_pixels is the driver for point filters.
func map_pixels(img Image, f func(types.Pixel) types.Pixel) error {
	width := img.Width()
	return run_rows(img.Height(), func(y int) {
		for x := range width {
			if p, err := img.PixelAt(x, y); err == nil {
				_ = img.SetPixel(x, y, f(p))
			}
		}
	})
}

// grid is a read-only copy of an image used as the input of window filters.
type grid struct {
	width, height int
	pix           []types.Pixel
	ok            []bool
}

func snapshot(img Image) (*grid, error) {
	g := &grid{width: img.Width(), height: img.Height()}
	g.pix = make([]types.Pixel, g.width*g.height)
	g.ok = make([]bool, len(g.pix))
	err := run_rows(g.height, func(y int) {
		for x := range g.width {
			if p, err := img.PixelAt(x, y); err == nil {
				g.pix[y*g.width+x] = p
				g.ok[y*g.width+x] = true
			}
		}
	})
	return g, err
}

// at returns the pixel at (x, y) with the coordinates clamped into the grid.
// The boolean is false if the pixel could not be read from the source image.
func (g *grid) at(x, y int) (types.Pixel, bool) {
	i := clamp(y, 0, g.height-1)*g.width + clamp(x, 0, g.width-1)
	return g.pix[i], g.ok[i]
}

// window_filter runs a window filter: snapshot, then compute every pixel
// from the snapshot.
func window_filter(img Image, f func(g *grid, x, y int) types.Pixel) error {
	if img.Width() < 1 || img.Height() < 1 {
		return nil
	}
	g, err := snapshot(img)
	if err != nil {
		return err
	}
	return run_rows(g.height, func(y int) {
		for x := range g.width {
			_ = img.SetPixel(x, y, f(g, x, y))
		}
	})
}

func check_window_size(name string, size int) error {
	if size < 1 || size%2 == 0 {
		return fmt.Errorf("%s: %w: window size must be a positive odd number, not %d", name, types.ErrInvalidValue, size)
	}
	return nil
}
