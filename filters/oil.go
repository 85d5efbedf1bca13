package filters

import (
	"fmt"

	"github.com/kovidgoyal/imager/types"
)

var _ = fmt.Print

// OilPainting replaces every pixel with the most frequent exact color in its
// window. Ties go to the color seen first, scanning the window column by
// column from the top left.
type OilPainting struct {
	size int
}

func NewOilPainting(size int) (*OilPainting, error) {
	if err := check_window_size("oil painting", size); err != nil {
		return nil, err
	}
	return &OilPainting{size: size}, nil
}

func (o *OilPainting) Size() int { return o.size }

func (o *OilPainting) Apply(img Image) error {
	half := o.size / 2
	return window_filter(img, func(g *grid, x, y int) types.Pixel {
		type entry struct {
			p     types.Pixel
			count int
		}
		seen := make([]entry, 0, o.size*o.size)
		for dx := -half; dx <= half; dx++ {
			for dy := -half; dy <= half; dy++ {
				p, ok := g.at(x+dx, y+dy)
				if !ok {
					continue
				}
				idx := -1
				for i := range seen {
					if seen[i].p == p {
						idx = i
						break
					}
				}
				if idx < 0 {
					idx = len(seen)
					seen = append(seen, entry{p: p})
				}
				seen[idx].count++
			}
		}
		if len(seen) == 0 {
			p, _ := g.at(x, y)
			return p
		}
		best := 0
		for i, e := range seen {
			if e.count > seen[best].count {
				best = i
			}
		}
		return seen[best].p
	})
}
