package filters

import (
	"fmt"
	"math"

	"github.com/kovidgoyal/imager/types"
)

var _ = fmt.Print

// Grayscale replaces every channel with the truncated channel average.
type Grayscale struct{}

func (Grayscale) Apply(img Image) error {
	return map_pixels(img, func(p types.Pixel) types.Pixel {
		l := p.Luma()
		return types.Pixel{R: l, G: l, B: l}
	})
}

// Brightness adds Intensity to every channel, saturating at 0 and 255.
type Brightness struct {
	Intensity int
}

func (b Brightness) Apply(img Image) error {
	d := clamp(b.Intensity, -255, 255)
	return map_pixels(img, func(p types.Pixel) types.Pixel {
		return types.Pixel{
			R: clamp_channel(int(p.R) + d),
			G: clamp_channel(int(p.G) + d),
			B: clamp_channel(int(p.B) + d),
		}
	})
}

// Contrast scales the distance of every channel from mid gray by Factor.
// Results are clamped to [0, 255] and truncated. A channel whose result is
// not a number (NaN factor, or an infinite one at mid gray) is left as is.
type Contrast struct {
	Factor float64
}

func (c Contrast) Apply(img Image) error {
	s := func(v uint8) uint8 {
		ans := (float64(v)-128)*c.Factor + 128
		if math.IsNaN(ans) {
			return v
		}
		return uint8(max(0, min(ans, 255)))
	}
	return map_pixels(img, func(p types.Pixel) types.Pixel {
		return types.Pixel{R: s(p.R), G: s(p.G), B: s(p.B)}
	})
}

type ColorInversion struct{}

func (ColorInversion) Apply(img Image) error {
	return map_pixels(img, types.Pixel.Invert)
}

// Threshold writes white where the channel average exceeds Cutoff and black
// everywhere else.
type Threshold struct {
	Cutoff int
}

func (t Threshold) Apply(img Image) error {
	return map_pixels(img, func(p types.Pixel) types.Pixel {
		if int(p.Luma()) > t.Cutoff {
			return types.White
		}
		return types.Black
	})
}
