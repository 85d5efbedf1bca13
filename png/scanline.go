package png

import (
	"fmt"

	"github.com/kovidgoyal/imager/types"
)

// FilterType is the per-scanline predictor, as defined by the PNG format.
type FilterType uint8

const (
	FilterTypeNone FilterType = iota
	FilterTypeSub
	FilterTypeUp
	FilterTypeAverage
	FilterTypePaeth
	numFilterTypes
)

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Paeth returns whichever of a (left), b (up) and c (up-left) is closest to
// a + b - c, preferring a, then b, then c on ties.
func Paeth(a, b, c uint8) uint8 {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

// Defilter undoes the per-row predictors of a decompressed image stream.
// Every row in stream is one filter type byte followed by row_size bytes.
// It returns the reconstructed rows packed back to back and the filter
// type each row used.
func Defilter(stream []byte, row_size, bpp int) (rows []byte, filter_types []FilterType, err error) {
	if row_size <= 0 || bpp <= 0 {
		return nil, nil, fmt.Errorf("png: %w: row size %d, bytes per pixel %d", types.ErrInvalidValue, row_size, bpp)
	}
	if len(stream) == 0 || len(stream)%(row_size+1) != 0 {
		return nil, nil, fmt.Errorf("png: %w: %d bytes is not a whole number of %d byte scanlines", types.ErrTruncatedData, len(stream), row_size+1)
	}
	num_rows := len(stream) / (row_size + 1)
	rows = make([]byte, num_rows*row_size)
	filter_types = make([]FilterType, num_rows)
	prev := make([]byte, row_size) // the row above the first row is all zeros
	for y := range num_rows {
		in := stream[y*(row_size+1):]
		ft := FilterType(in[0])
		cdat := rows[y*row_size : (y+1)*row_size]
		copy(cdat, in[1:row_size+1])
		if err = unfilter_row(ft, cdat, prev, bpp); err != nil {
			return nil, nil, fmt.Errorf("png: scanline %d: %w", y, err)
		}
		filter_types[y] = ft
		prev = cdat
	}
	return
}

func unfilter_row(ft FilterType, cdat, pdat []byte, bpp int) error {
	switch ft {
	case FilterTypeNone:
	case FilterTypeSub:
		for i := bpp; i < len(cdat); i++ {
			cdat[i] += cdat[i-bpp]
		}
	case FilterTypeUp:
		for i, p := range pdat {
			cdat[i] += p
		}
	case FilterTypeAverage:
		for i := 0; i < bpp && i < len(cdat); i++ {
			cdat[i] += pdat[i] / 2
		}
		for i := bpp; i < len(cdat); i++ {
			cdat[i] += uint8((int(cdat[i-bpp]) + int(pdat[i])) / 2)
		}
	case FilterTypePaeth:
		for i := 0; i < bpp && i < len(cdat); i++ {
			cdat[i] += Paeth(0, pdat[i], 0)
		}
		for i := bpp; i < len(cdat); i++ {
			cdat[i] += Paeth(cdat[i-bpp], pdat[i], pdat[i-bpp])
		}
	default:
		return fmt.Errorf("%w: unknown filter type %d", types.ErrInvalidValue, ft)
	}
	return nil
}

// filter_row writes the residuals of cdat predicted with ft into dest,
// which must have the same length as cdat.
func filter_row(ft FilterType, dest, cdat, pdat []byte, bpp int) {
	switch ft {
	case FilterTypeNone:
		copy(dest, cdat)
	case FilterTypeSub:
		copy(dest[:bpp], cdat[:bpp])
		for i := bpp; i < len(cdat); i++ {
			dest[i] = cdat[i] - cdat[i-bpp]
		}
	case FilterTypeUp:
		for i := range cdat {
			dest[i] = cdat[i] - pdat[i]
		}
	case FilterTypeAverage:
		for i := 0; i < bpp && i < len(cdat); i++ {
			dest[i] = cdat[i] - pdat[i]/2
		}
		for i := bpp; i < len(cdat); i++ {
			dest[i] = cdat[i] - uint8((int(cdat[i-bpp])+int(pdat[i]))/2)
		}
	case FilterTypePaeth:
		for i := 0; i < bpp && i < len(cdat); i++ {
			dest[i] = cdat[i] - Paeth(0, pdat[i], 0)
		}
		for i := bpp; i < len(cdat); i++ {
			dest[i] = cdat[i] - Paeth(cdat[i-bpp], pdat[i], pdat[i-bpp])
		}
	}
}

// Refilter is the inverse of Defilter: it predicts every row with the
// matching entry of filter_types and prefixes it with the filter type byte.
func Refilter(rows []byte, row_size, bpp int, filter_types []FilterType) ([]byte, error) {
	if row_size <= 0 || len(rows)%row_size != 0 || len(rows)/row_size != len(filter_types) {
		return nil, fmt.Errorf("png: %w: %d bytes of rows of %d bytes with %d filter types", types.ErrInvalidValue, len(rows), row_size, len(filter_types))
	}
	ans := make([]byte, len(filter_types)*(row_size+1))
	prev := make([]byte, row_size)
	for y, ft := range filter_types {
		if ft >= numFilterTypes {
			return nil, fmt.Errorf("png: %w: unknown filter type %d", types.ErrInvalidValue, ft)
		}
		out := ans[y*(row_size+1) : (y+1)*(row_size+1)]
		cdat := rows[y*row_size : (y+1)*row_size]
		out[0] = byte(ft)
		filter_row(ft, out[1:], cdat, prev, bpp)
		prev = cdat
	}
	return ans, nil
}

// choose_filter picks the predictor whose residuals have the smallest sum of
// absolute values (as signed bytes), the heuristic recommended for PNG encoders.
func choose_filter(scratch, cdat, pdat []byte, bpp int) FilterType {
	best, best_score := FilterTypeNone, -1
	for ft := FilterTypeNone; ft < numFilterTypes; ft++ {
		filter_row(ft, scratch, cdat, pdat, bpp)
		score := 0
		for _, v := range scratch {
			score += abs(int(int8(v)))
		}
		if best_score < 0 || score < best_score {
			best, best_score = ft, score
		}
	}
	return best
}

// adaptive_filter_types returns the heuristic choice of predictor for every row.
func adaptive_filter_types(rows []byte, row_size, bpp int) []FilterType {
	n := len(rows) / row_size
	ans := make([]FilterType, n)
	scratch := make([]byte, row_size)
	prev := make([]byte, row_size)
	for y := range n {
		cdat := rows[y*row_size : (y+1)*row_size]
		ans[y] = choose_filter(scratch, cdat, prev, bpp)
		prev = cdat
	}
	return ans
}
