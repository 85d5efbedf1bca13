// Package ppm reads and writes the binary netpbm formats: P6 pixmaps, whose
// channels are bounded by a maximum color value, and a P4 bitmap variant
// storing one byte per pixel, 1 for white and 0 for anything else.
package ppm

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/kovidgoyal/imager/meta"
	"github.com/kovidgoyal/imager/types"
)

var _ = fmt.Print

type Header struct {
	Signature [2]byte
	// Comment lines, without the leading # and trailing newline
	Comments      []string
	Width, Height int
	// Zero for bitmaps
	MaxColor uint8
}

type PPM struct {
	Header Header
	pix    []types.Pixel
}

func (p *PPM) IsBitmap() bool { return p.Header.MaxColor == 0 }

type header_reader struct {
	data []byte
	pos  int
}

func (r *header_reader) line(what string) (string, error) {
	idx := bytes.IndexByte(r.data[r.pos:], '\n')
	if idx < 0 {
		return "", fmt.Errorf("ppm: %w: header ends before the %s line", types.ErrMalformedHeader, what)
	}
	ans := string(r.data[r.pos : r.pos+idx])
	r.pos += idx + 1
	return strings.TrimSuffix(ans, "\r"), nil
}

func (r *header_reader) peek() byte {
	if r.pos < len(r.data) {
		return r.data[r.pos]
	}
	return 0
}

func parse_int(what, s string) (int, error) {
	ans, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("ppm: %w: %s: %q is not a number", types.ErrMalformedHeader, what, s)
	}
	return ans, nil
}

func parse_header(data []byte) (h Header, pixels []byte, err error) {
	r := header_reader{data: data}
	sig, err := r.line("signature")
	if err != nil {
		return
	}
	if len(sig) != 2 || sig[0] != 'P' {
		return h, nil, fmt.Errorf("ppm: %w: bad signature %q", types.ErrMalformedHeader, sig)
	}
	switch sig[1] {
	case '4', '6':
	case '1', '2', '3', '5', '7':
		return h, nil, fmt.Errorf("ppm: %w: %s images", types.ErrUnsupportedVariant, sig)
	default:
		return h, nil, fmt.Errorf("ppm: %w: bad signature %q", types.ErrMalformedHeader, sig)
	}
	copy(h.Signature[:], sig)
	for r.peek() == '#' {
		c, err := r.line("comment")
		if err != nil {
			return h, nil, err
		}
		h.Comments = append(h.Comments, c[1:])
	}
	dims, err := r.line("dimensions")
	if err != nil {
		return
	}
	fields := strings.Fields(dims)
	if len(fields) != 2 {
		return h, nil, fmt.Errorf("ppm: %w: bad dimensions line %q", types.ErrMalformedHeader, dims)
	}
	if h.Width, err = parse_int("width", fields[0]); err != nil {
		return
	}
	if h.Height, err = parse_int("height", fields[1]); err != nil {
		return
	}
	if h.Width <= 0 || h.Height <= 0 {
		return h, nil, fmt.Errorf("ppm: %w: invalid dimensions %dx%d", types.ErrMalformedHeader, h.Width, h.Height)
	}
	if sig[1] == '6' {
		line, err := r.line("maximum color value")
		if err != nil {
			return h, nil, err
		}
		m, err := parse_int("maximum color value", strings.TrimSpace(line))
		if err != nil {
			return h, nil, err
		}
		switch {
		case m <= 0:
			return h, nil, fmt.Errorf("ppm: %w: maximum color value %d", types.ErrMalformedHeader, m)
		case m > 255:
			return h, nil, fmt.Errorf("ppm: %w: 16 bit images (maximum color value %d)", types.ErrUnsupportedVariant, m)
		}
		h.MaxColor = uint8(m)
	}
	return h, data[r.pos:], nil
}

// Decode parses a complete P6 or P4 file. Bytes after the pixel data are ignored.
func Decode(data []byte) (*PPM, error) {
	h, data, err := parse_header(data)
	if err != nil {
		return nil, err
	}
	bpp := 3
	if h.MaxColor == 0 {
		bpp = 1
	}
	// width*height*bpp may not fit in an int, compare by division
	if uint64(len(data))/uint64(bpp)/uint64(h.Height) < uint64(h.Width) {
		return nil, fmt.Errorf("ppm: %w: %dx%d image needs %d bytes per pixel, have %d bytes", types.ErrTruncatedData, h.Width, h.Height, bpp, len(data))
	}
	ans := &PPM{Header: h, pix: make([]types.Pixel, h.Width*h.Height)}
	if ans.IsBitmap() {
		for i := range ans.pix {
			switch data[i] {
			case 0:
				ans.pix[i] = types.Black
			case 1:
				ans.pix[i] = types.White
			default:
				return nil, fmt.Errorf("ppm: %w: bitmap pixel %d has value %d", types.ErrInvalidValue, i, data[i])
			}
		}
		return ans, nil
	}
	for i := range ans.pix {
		s := data[3*i : 3*i+3 : 3*i+3]
		p := types.Pixel{R: s[0], G: s[1], B: s[2]}
		if !ans.in_range(p) {
			return nil, fmt.Errorf("ppm: %w: pixel %d is %s, maximum color value is %d", types.ErrInvalidValue, i, p.Hex(), h.MaxColor)
		}
		ans.pix[i] = p
	}
	return ans, nil
}

func check_size(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("ppm: %w: invalid dimensions %dx%d", types.ErrInvalidValue, width, height)
	}
	return nil
}

// NewPixmap returns a black P6 image whose channels cannot exceed max_color.
func NewPixmap(width, height int, max_color uint8) (*PPM, error) {
	if err := check_size(width, height); err != nil {
		return nil, err
	}
	if max_color == 0 {
		return nil, fmt.Errorf("ppm: %w: maximum color value must be positive", types.ErrInvalidValue)
	}
	return &PPM{Header: Header{Signature: [2]byte{'P', '6'}, Width: width, Height: height, MaxColor: max_color},
		pix: make([]types.Pixel, width*height)}, nil
}

// NewBitmap returns a black P4 bitmap.
func NewBitmap(width, height int) (*PPM, error) {
	if err := check_size(width, height); err != nil {
		return nil, err
	}
	return &PPM{Header: Header{Signature: [2]byte{'P', '4'}, Width: width, Height: height},
		pix: make([]types.Pixel, width*height)}, nil
}

func (p *PPM) Width() int  { return p.Header.Width }
func (p *PPM) Height() int { return p.Header.Height }

func (p *PPM) in_range(px types.Pixel) bool {
	m := p.Header.MaxColor
	return p.IsBitmap() || (px.R <= m && px.G <= m && px.B <= m)
}

func (p *PPM) offset(x, y int) (int, error) {
	if x < 0 || y < 0 || x >= p.Header.Width || y >= p.Header.Height {
		return 0, fmt.Errorf("ppm: %w: (%d, %d) in %dx%d", types.ErrOutOfBounds, x, y, p.Header.Width, p.Header.Height)
	}
	return y*p.Header.Width + x, nil
}

func (p *PPM) PixelAt(x, y int) (types.Pixel, error) {
	i, err := p.offset(x, y)
	if err != nil {
		return types.Pixel{}, err
	}
	return p.pix[i], nil
}

// SetPixel fails with types.ErrInvalidValue if any channel exceeds the
// maximum color value of a pixmap.
func (p *PPM) SetPixel(x, y int, px types.Pixel) error {
	i, err := p.offset(x, y)
	if err != nil {
		return err
	}
	if !p.in_range(px) {
		return fmt.Errorf("ppm: %w: %s exceeds maximum color value %d", types.ErrInvalidValue, px.Hex(), p.Header.MaxColor)
	}
	p.pix[i] = px
	return nil
}

func (p *PPM) Signature() string { return string(p.Header.Signature[:]) }

func (p *PPM) Metadata() string { return fmt.Sprintf("%+v", p.Header) }

func (p *PPM) Meta() *meta.Data {
	ans := &meta.Data{Format: types.PPM, PixelWidth: uint32(p.Header.Width), PixelHeight: uint32(p.Header.Height), BitsPerComponent: 8}
	if p.IsBitmap() {
		ans.Format, ans.BitsPerComponent = types.PBM, 1
	}
	if len(p.Header.Comments) > 0 {
		ans.Text = map[string]string{"Comment": strings.Join(p.Header.Comments, "\n")}
	}
	return ans
}

func (p *PPM) Bytes() ([]byte, error) {
	var b bytes.Buffer
	h := &p.Header
	fmt.Fprintf(&b, "%s\n", h.Signature[:])
	for _, c := range h.Comments {
		fmt.Fprintf(&b, "#%s\n", c)
	}
	fmt.Fprintf(&b, "%d %d\n", h.Width, h.Height)
	if p.IsBitmap() {
		b.Grow(len(p.pix))
		for _, px := range p.pix {
			if px == types.White {
				b.WriteByte(1)
			} else {
				b.WriteByte(0)
			}
		}
	} else {
		fmt.Fprintf(&b, "%d\n", h.MaxColor)
		b.Grow(3 * len(p.pix))
		for _, px := range p.pix {
			b.Write([]byte{px.R, px.G, px.B})
		}
	}
	return b.Bytes(), nil
}
