package filters

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/kovidgoyal/imager/types"
)

var _ = fmt.Print

type filter_def struct {
	nargs    []int
	defaults []string
	build    func(args []string) (Filter, error)
}

func ints(args []string) ([]int, error) {
	ans := make([]int, len(args))
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", types.ErrInvalidValue, a)
		}
		ans[i] = v
	}
	return ans, nil
}

func floats(args []string) ([]float64, error) {
	ans := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %q is not a number", types.ErrInvalidValue, a)
		}
		ans[i] = v
	}
	return ans, nil
}

var named_filters = map[string]filter_def{
	"grayscale": {nargs: []int{0}, build: func([]string) (Filter, error) { return Grayscale{}, nil }},
	"invert":    {nargs: []int{0}, build: func([]string) (Filter, error) { return ColorInversion{}, nil }},
	"emboss":    {nargs: []int{0}, build: func([]string) (Filter, error) { return NewEmboss(), nil }},
	"brightness": {nargs: []int{1}, build: func(a []string) (Filter, error) {
		v, err := ints(a)
		if err != nil {
			return nil, err
		}
		return Brightness{Intensity: v[0]}, nil
	}},
	"contrast": {nargs: []int{1}, build: func(a []string) (Filter, error) {
		v, err := floats(a)
		if err != nil {
			return nil, err
		}
		return Contrast{Factor: v[0]}, nil
	}},
	"threshold": {nargs: []int{0, 1}, defaults: []string{"127"}, build: func(a []string) (Filter, error) {
		v, err := ints(a)
		if err != nil {
			return nil, err
		}
		return Threshold{Cutoff: v[0]}, nil
	}},
	"sharpen": {nargs: []int{0, 1}, defaults: []string{"9"}, build: func(a []string) (Filter, error) {
		v, err := ints(a)
		if err != nil {
			return nil, err
		}
		return NewSharpen(v[0]), nil
	}},
	"boxblur": {nargs: []int{0, 1}, defaults: []string{"3"}, build: func(a []string) (Filter, error) {
		v, err := ints(a)
		if err != nil {
			return nil, err
		}
		return NewBoxBlur(v[0])
	}},
	"oilpainting": {nargs: []int{0, 1}, defaults: []string{"5"}, build: func(a []string) (Filter, error) {
		v, err := ints(a)
		if err != nil {
			return nil, err
		}
		return NewOilPainting(v[0])
	}},
	"gaussianblur": {nargs: []int{0, 1, 2}, defaults: []string{"1", "5"}, build: func(a []string) (Filter, error) {
		sigma, err := floats(a[:1])
		if err != nil {
			return nil, err
		}
		size, err := ints(a[1:])
		if err != nil {
			return nil, err
		}
		return NewGaussianBlur(sigma[0], size[0])
	}},
	"edges": {nargs: []int{0, 1, 2}, defaults: []string{"0", "1"}, build: func(a []string) (Filter, error) {
		v, err := floats(a)
		if err != nil {
			return nil, err
		}
		return NewEdgeDetection(v[0], v[1])
	}},
}

// Names returns the names accepted by Parse.
func Names() []string {
	ans := make([]string, 0, len(named_filters))
	for k := range named_filters {
		ans = append(ans, k)
	}
	slices.Sort(ans)
	return ans
}

// Parse builds a filter from a textual description of the form
// name[:arg[,arg]], for example gaussianblur:1.5,7 or threshold:100.
// Missing trailing arguments take default values.
func Parse(text string) (Filter, error) {
	name, rest, has_args := strings.Cut(strings.TrimSpace(text), ":")
	def, ok := named_filters[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown filter %q, must be one of: %s", types.ErrInvalidValue, name, strings.Join(Names(), ", "))
	}
	var args []string
	if has_args {
		args = strings.Split(rest, ",")
		for i, a := range args {
			args[i] = strings.TrimSpace(a)
		}
	}
	if !slices.Contains(def.nargs, len(args)) {
		return nil, fmt.Errorf("%w: filter %s does not take %d arguments", types.ErrInvalidValue, name, len(args))
	}
	if len(args) < len(def.defaults) {
		args = append(args, def.defaults[len(args):]...)
	}
	ans, err := def.build(args)
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", name, err)
	}
	return ans, nil
}
