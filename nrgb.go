package imager

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"io"

	// formats understood by Import
	_ "image/png"

	"github.com/kovidgoyal/go-parallel"
	"github.com/kovidgoyal/imager/bmp"
	"github.com/kovidgoyal/imager/png"
	"github.com/kovidgoyal/imager/ppm"
	"github.com/kovidgoyal/imager/types"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var _ = fmt.Print

// NRGB is an in-memory image whose At method returns types.Pixel values. It
// is the bridge between native stores and the image package.
type NRGB struct {
	// Pix holds the image's pixels, in R, G, B order. The pixel at
	// (x, y) starts at Pix[(y-Rect.Min.Y)*Stride + (x-Rect.Min.X)*3].
	Pix []uint8
	// Stride is the Pix stride (in bytes) between vertically adjacent pixels.
	Stride int
	// Rect is the image's bounds.
	Rect image.Rectangle
}

func nrgbModel(c color.Color) color.Color {
	if _, ok := c.(types.Pixel); ok {
		return c
	}
	r, g, b, a := c.RGBA()
	switch a {
	case 0xffff:
		return types.Pixel{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8)}
	case 0:
		return types.Black
	default:
		// Since Color.RGBA returns an alpha-premultiplied color, we should have r <= a && g <= a && b <= a.
		r = (r * 0xffff) / a
		g = (g * 0xffff) / a
		b = (b * 0xffff) / a
		return types.Pixel{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8)}
	}
}

// NRGBModel converts any color to an opaque types.Pixel, dropping alpha.
var NRGBModel color.Model = color.ModelFunc(nrgbModel)

func (p *NRGB) ColorModel() color.Model { return NRGBModel }

func (p *NRGB) Bounds() image.Rectangle { return p.Rect }

func (p *NRGB) At(x, y int) color.Color {
	return p.PixelAt(x, y)
}

func (p *NRGB) PixelAt(x, y int) types.Pixel {
	if !(image.Point{x, y}.In(p.Rect)) {
		return types.Pixel{}
	}
	i := p.PixOffset(x, y)
	s := p.Pix[i : i+3 : i+3] // Small cap improves performance, see https://golang.org/issue/27857
	return types.Pixel{R: s[0], G: s[1], B: s[2]}
}

// PixOffset returns the index of the first element of Pix that corresponds to
// the pixel at (x, y).
func (p *NRGB) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*3
}

func (p *NRGB) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}.In(p.Rect)) {
		return
	}
	p.SetPixel(x, y, NRGBModel.Convert(c).(types.Pixel))
}

func (p *NRGB) SetPixel(x, y int, c types.Pixel) {
	if !(image.Point{x, y}.In(p.Rect)) {
		return
	}
	i := p.PixOffset(x, y)
	s := p.Pix[i : i+3 : i+3]
	s[0], s[1], s[2] = c.R, c.G, c.B
}

// SubImage returns an image representing the portion of the image p visible
// through r. The returned value shares pixels with the original image.
func (p *NRGB) SubImage(r image.Rectangle) image.Image {
	r = r.Intersect(p.Rect)
	// If r1 and r2 are Rectangles, r1.Intersect(r2) is not guaranteed to be inside
	// either r1 or r2 if the intersection is empty. Without explicitly checking for
	// this, the Pix[i:] expression below can panic.
	if r.Empty() {
		return &NRGB{}
	}
	i := p.PixOffset(r.Min.X, r.Min.Y)
	return &NRGB{
		Pix:    p.Pix[i:],
		Stride: p.Stride,
		Rect:   r,
	}
}

func (p *NRGB) Opaque() bool { return true }

func NewNRGB(r image.Rectangle) *NRGB {
	return &NRGB{
		Pix:    make([]uint8, 3*r.Dx()*r.Dy()),
		Stride: 3 * r.Dx(),
		Rect:   r,
	}
}

// ToNRGB copies the pixels of the image into an NRGB with origin (0, 0).
func (img *Image) ToNRGB() (*NRGB, error) {
	width, height := img.Width(), img.Height()
	ans := NewNRGB(image.Rect(0, 0, width, height))
	row_errs := make([]error, height)
	err := parallel.Run_in_parallel_over_range(0, func(start, limit int) {
		for y := start; y < limit; y++ {
			row := ans.Pix[y*ans.Stride : (y+1)*ans.Stride]
			for x := range width {
				px, err := img.PixelAt(x, y)
				if err != nil {
					row_errs[y] = err
					break
				}
				s := row[3*x : 3*x+3 : 3*x+3]
				s[0], s[1], s[2] = px.R, px.G, px.B
			}
		}
	}, 0, height)
	if err == nil {
		err = errors.Join(row_errs...)
	}
	if err != nil {
		return nil, err
	}
	return ans, nil
}

func new_store(format Format, width, height int) (Store, error) {
	switch format {
	case BMP:
		return bmp.New(width, height)
	case PNG:
		return png.New(width, height)
	case PPM:
		return ppm.NewPixmap(width, height, 255)
	case PBM:
		return ppm.NewBitmap(width, height)
	}
	return nil, fmt.Errorf("%w: %s has no native codec", ErrUnsupportedFormat, format)
}

// FromImage builds a native image of the given format from any image.Image.
// Alpha is dropped after un-premultiplying.
func FromImage(src image.Image, format Format) (*Image, error) {
	b := src.Bounds()
	s, err := new_store(format, b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	var f func(start, limit int)
	switch img := src.(type) {
	case *NRGB:
		f = func(start, limit int) {
			for y := start; y < limit; y++ {
				for x := range b.Dx() {
					_ = s.SetPixel(x, y, img.PixelAt(x+b.Min.X, y+b.Min.Y))
				}
			}
		}
	default:
		f = func(start, limit int) {
			for y := start; y < limit; y++ {
				for x := range b.Dx() {
					_ = s.SetPixel(x, y, NRGBModel.Convert(img.At(x+b.Min.X, y+b.Min.Y)).(types.Pixel))
				}
			}
		}
	}
	if err = parallel.Run_in_parallel_over_range(0, f, 0, b.Dy()); err != nil {
		return nil, err
	}
	return NewImage(s)
}

func format_from_decode_result(x string) Format {
	switch x {
	case "bmp":
		return BMP
	case "png":
		return PNG
	case "jpeg":
		return JPEG
	case "gif":
		return GIF
	case "tiff":
		return TIFF
	case "webp":
		return WEBP
	}
	return UNKNOWN
}

// Import decodes an image in any format known to the image package (PNG,
// JPEG, GIF, BMP, TIFF and WEBP, including variants the native codecs do
// not handle such as palettes and alpha) and converts it to a native image
// of the given format. If format is UNKNOWN, the decoded format is used when
// it has a native codec, and PNG otherwise.
func Import(r io.Reader, format Format) (*Image, error) {
	img, name, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	if format == UNKNOWN {
		if format = format_from_decode_result(name); !format.Native() {
			format = PNG
		}
	}
	return FromImage(img, format)
}

// Export writes the image to w in the given format, converting pixels as
// needed. Native formats go through FromImage, JPEG, GIF and TIFF through
// their encoders in the image ecosystem.
func (img *Image) Export(w io.Writer, format Format, opts ...EncodeOption) error {
	if format == img.format {
		return img.Encode(w, opts...)
	}
	src, err := img.ToNRGB()
	if err != nil {
		return err
	}
	cfg := new_encode_config(opts)
	switch format {
	case JPEG:
		return jpeg.Encode(w, src, &jpeg.Options{Quality: cfg.jpegQuality})
	case GIF:
		return gif.Encode(w, src, nil)
	case TIFF:
		return tiff.Encode(w, src, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	}
	if !format.Native() {
		return ErrUnsupportedFormat
	}
	converted, err := FromImage(src, format)
	if err != nil {
		return err
	}
	return converted.Encode(w, opts...)
}
