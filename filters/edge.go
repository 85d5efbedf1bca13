package filters

import (
	"fmt"
	"math"

	"github.com/kovidgoyal/imager/types"
)

var _ = fmt.Print

var sobel_x = [9]float64{
	-1, 0, 1,
	-2, 0, 2,
	-1, 0, 1,
}

var sobel_y = [9]float64{
	-1, -2, -1,
	0, 0, 0,
	1, 2, 1,
}

// EdgeDetection writes the Sobel gradient magnitude of the channel average
// as a gray level, scaled so that the strongest edge in the image maps to
// 255 before the multiplier is applied. Pixels whose magnitude does not
// exceed Threshold times the strongest magnitude become black.
type EdgeDetection struct {
	Threshold, Multiplier float64
}

func NewEdgeDetection(threshold, multiplier float64) (*EdgeDetection, error) {
	if !(threshold >= 0 && threshold <= 1) {
		return nil, fmt.Errorf("edge detection: %w: threshold must be in [0, 1], not %v", types.ErrInvalidValue, threshold)
	}
	if !(multiplier > 0) || math.IsInf(multiplier, 0) {
		return nil, fmt.Errorf("edge detection: %w: multiplier must be positive, not %v", types.ErrInvalidValue, multiplier)
	}
	return &EdgeDetection{Threshold: threshold, Multiplier: multiplier}, nil
}

func sobel_magnitude(g *grid, x, y int) float64 {
	var gx, gy float64
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if p, ok := g.at(x+dx, y+dy); ok {
				i := (dy+1)*3 + dx + 1
				l := float64(p.Luma())
				gx += sobel_x[i] * l
				gy += sobel_y[i] * l
			}
		}
	}
	return math.Hypot(gx, gy)
}

// gradients computes the magnitude of every pixel and the maximum magnitude.
func gradients(g *grid) ([]float64, float64, error) {
	mags := make([]float64, g.width*g.height)
	err := run_rows(g.height, func(y int) {
		row := mags[y*g.width : (y+1)*g.width]
		for x := range row {
			row[x] = sobel_magnitude(g, x, y)
		}
	})
	if err != nil {
		return nil, 0, err
	}
	m := 0.0
	for _, v := range mags {
		m = max(m, v)
	}
	return mags, m, nil
}

func (e *EdgeDetection) Apply(img Image) error {
	if img.Width() < 1 || img.Height() < 1 {
		return nil
	}
	g, err := snapshot(img)
	if err != nil {
		return err
	}
	mags, peak, err := gradients(g)
	if err != nil {
		return err
	}
	cutoff := e.Threshold * peak
	return run_rows(g.height, func(y int) {
		for x := range g.width {
			out := types.Black
			if m := mags[y*g.width+x]; peak > 0 && m > cutoff {
				v := uint8(math.Min(m*255/peak*e.Multiplier, 255))
				out = types.Pixel{R: v, G: v, B: v}
			}
			_ = img.SetPixel(x, y, out)
		}
	})
}
