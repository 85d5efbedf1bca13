package filters

import (
	"fmt"
	"math"

	"github.com/kovidgoyal/imager/types"
)

var _ = fmt.Print

// Kernel is a square convolution kernel. Weights is row major, Weights[dy*Size+dx]
// is applied to the neighbour at offset (dx - Size/2, dy - Size/2).
type Kernel struct {
	Size    int
	Weights []float64
	// Added to every channel after weighting, before rounding
	Bias float64
}

func (k Kernel) convolve(g *grid, x, y int) types.Pixel {
	half := k.Size / 2
	var r, gr, b float64
	for dy := -half; dy <= half; dy++ {
		row := k.Weights[(dy+half)*k.Size:]
		for dx := -half; dx <= half; dx++ {
			if p, ok := g.at(x+dx, y+dy); ok {
				w := row[dx+half]
				r += w * float64(p.R)
				gr += w * float64(p.G)
				b += w * float64(p.B)
			}
		}
	}
	return types.Pixel{R: round_channel(r + k.Bias), G: round_channel(gr + k.Bias), B: round_channel(b + k.Bias)}
}

// Apply convolves img with the kernel, rounding and clamping every channel.
func (k Kernel) Apply(img Image) error {
	if k.Size < 1 || k.Size%2 == 0 || len(k.Weights) != k.Size*k.Size {
		return fmt.Errorf("kernel: %w: %d weights for a kernel of size %d", types.ErrInvalidValue, len(k.Weights), k.Size)
	}
	return window_filter(img, k.convolve)
}

// GaussianKernel returns the size x size kernel with weights proportional to
// exp(-(dx² + dy²) / 2σ²), normalized to sum to one.
func GaussianKernel(sigma float64, size int) (Kernel, error) {
	if err := check_window_size("gaussian kernel", size); err != nil {
		return Kernel{}, err
	}
	if !(sigma > 0) || math.IsInf(sigma, 0) {
		return Kernel{}, fmt.Errorf("gaussian kernel: %w: sigma must be positive, not %v", types.ErrInvalidValue, sigma)
	}
	half := size / 2
	ans := Kernel{Size: size, Weights: make([]float64, size*size)}
	sum := 0.0
	for dy := -half; dy <= half; dy++ {
		for dx := -half; dx <= half; dx++ {
			w := math.Exp(-float64(dx*dx+dy*dy) / (2 * sigma * sigma))
			ans.Weights[(dy+half)*size+dx+half] = w
			sum += w
		}
	}
	for i := range ans.Weights {
		ans.Weights[i] /= sum
	}
	return ans, nil
}

// BoxBlur replaces every pixel by the unweighted average of its window,
// truncated.
type BoxBlur struct {
	size int
}

func NewBoxBlur(size int) (*BoxBlur, error) {
	if err := check_window_size("box blur", size); err != nil {
		return nil, err
	}
	return &BoxBlur{size: size}, nil
}

func (b *BoxBlur) Size() int { return b.size }

func (b *BoxBlur) Apply(img Image) error {
	half := b.size / 2
	return window_filter(img, func(g *grid, x, y int) types.Pixel {
		var r, gr, bl, n int
		for dy := -half; dy <= half; dy++ {
			for dx := -half; dx <= half; dx++ {
				if p, ok := g.at(x+dx, y+dy); ok {
					r += int(p.R)
					gr += int(p.G)
					bl += int(p.B)
					n++
				}
			}
		}
		if n == 0 {
			p, _ := g.at(x, y)
			return p
		}
		return types.Pixel{R: uint8(r / n), G: uint8(gr / n), B: uint8(bl / n)}
	})
}

type GaussianBlur struct {
	Kernel
	Sigma float64
}

func NewGaussianBlur(sigma float64, size int) (*GaussianBlur, error) {
	k, err := GaussianKernel(sigma, size)
	if err != nil {
		return nil, err
	}
	return &GaussianBlur{Kernel: k, Sigma: sigma}, nil
}

// NewSharpen returns a 3x3 kernel with intensity at the center and -1 for
// every neighbour. An intensity of 9 preserves flat areas.
func NewSharpen(intensity int) Kernel {
	k := Kernel{Size: 3, Weights: []float64{-1, -1, -1, -1, -1, -1, -1, -1, -1}}
	k.Weights[4] = float64(intensity)
	return k
}

// Emboss is a relief effect: a directional 3x3 kernel biased to mid gray,
// followed by conversion to grayscale.
type Emboss struct{}

func NewEmboss() Emboss { return Emboss{} }

func emboss_kernel() Kernel {
	return Kernel{Size: 3, Bias: 128, Weights: []float64{
		1, 1, 0,
		1, 0, -1,
		0, -1, -1,
	}}
}

func (Emboss) Apply(img Image) error {
	if err := emboss_kernel().Apply(img); err != nil {
		return err
	}
	return Grayscale{}.Apply(img)
}
