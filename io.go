package imager

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kovidgoyal/imager/bmp"
	"github.com/kovidgoyal/imager/filters"
	"github.com/kovidgoyal/imager/meta"
	"github.com/kovidgoyal/imager/png"
	"github.com/kovidgoyal/imager/ppm"
	"github.com/kovidgoyal/imager/types"

	"github.com/rwcarlsen/goexif/exif"
	exif_tiff "github.com/rwcarlsen/goexif/tiff"
)

type fileSystem interface {
	Create(string) (io.WriteCloser, error)
	Open(string) (io.ReadCloser, error)
}

type localFS struct{}

func (localFS) Create(name string) (io.WriteCloser, error) { return os.Create(name) }
func (localFS) Open(name string) (io.ReadCloser, error)    { return os.Open(name) }

var fs fileSystem = localFS{}

type Format = types.Format

const (
	UNKNOWN = types.UNKNOWN
	BMP     = types.BMP
	PNG     = types.PNG
	PPM     = types.PPM
	PBM     = types.PBM
	JPEG    = types.JPEG
	GIF     = types.GIF
	TIFF    = types.TIFF
	WEBP    = types.WEBP
)

// ErrUnsupportedFormat means the given image format is not supported.
var ErrUnsupportedFormat = errors.New("imager: unsupported image format")

// FormatFromExtension parses image format from filename extension:
// "bmp", "png", "ppm" (or "pnm"), "pbm", "jpg" (or "jpeg"), "gif", "tif" (or "tiff")
// and "webp" are supported.
func FormatFromExtension(ext string) (Format, error) {
	if f, ok := types.FormatExts[strings.ToLower(strings.TrimPrefix(ext, "."))]; ok {
		return f, nil
	}
	return -1, ErrUnsupportedFormat
}

// FormatFromFilename parses image format from filename, see FormatFromExtension.
func FormatFromFilename(filename string) (Format, error) {
	ext := filepath.Ext(filename)
	return FormatFromExtension(ext)
}

// Store is a decoded image in one of the native container formats. It owns
// its pixels and every header needed to serialize it again.
type Store interface {
	filters.Image
	// The container magic, human readable
	Signature() string
	// A dump of the container headers
	Metadata() string
	Meta() *meta.Data
	Bytes() ([]byte, error)
}

// Image is a Store together with the format it serializes to.
type Image struct {
	Store
	format Format
}

func (img *Image) Format() Format { return img.format }

// NewImage wraps a store created directly by one of the codec packages.
func NewImage(s Store) (*Image, error) {
	var f Format
	switch v := s.(type) {
	case *bmp.BMP:
		f = BMP
	case *png.PNG:
		f = PNG
	case *ppm.PPM:
		f = PPM
		if v.IsBitmap() {
			f = PBM
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedFormat, s)
	}
	return &Image{Store: s, format: f}, nil
}

// LoadBytes decodes data in one of the native formats (BMP, PNG, PPM or
// PBM). Use Import for other formats.
func LoadBytes(data []byte, format Format) (*Image, error) {
	var s Store
	var err error
	switch format {
	case BMP:
		s, err = bmp.Decode(data)
	case PNG:
		s, err = png.Decode(data)
	case PPM, PBM:
		s, err = ppm.Decode(data)
	default:
		return nil, fmt.Errorf("%w: %s cannot be loaded natively, use Import", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	return NewImage(s)
}

// Decode reads all of r and decodes it as format.
func Decode(r io.Reader, format Format) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return LoadBytes(data, format)
}

// Load reads an image from file, choosing the codec from the filename extension.
//
// Examples:
//
//	img, err := imager.Load("test.bmp")
func Load(filename string) (*Image, error) {
	format, err := FormatFromFilename(filename)
	if err != nil {
		return nil, err
	}
	file, err := fs.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	ans, err := Decode(file, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return ans, nil
}

// Apply runs the filters on the image in order, stopping at the first error.
func (img *Image) Apply(pipeline ...filters.Filter) error {
	for _, f := range pipeline {
		if err := f.Apply(img.Store); err != nil {
			return err
		}
	}
	return nil
}

type encodeConfig struct {
	jpegQuality int
	png         png.EncodeConfig
}

var defaultEncodeConfig = encodeConfig{
	jpegQuality: 95,
	png:         png.DefaultEncodeConfig(),
}

// EncodeOption sets an optional parameter for the Encode, Save and Export functions.
type EncodeOption func(*encodeConfig)

// JPEGQuality returns an EncodeOption that sets the output JPEG quality.
// Quality ranges from 1 to 100 inclusive, higher is better. Default is 95.
func JPEGQuality(quality int) EncodeOption {
	return func(c *encodeConfig) {
		c.jpegQuality = quality
	}
}

// PNGCompressionLevel returns an EncodeOption that sets the zlib compression
// level used for modified PNG image data. Default is zlib.DefaultCompression.
func PNGCompressionLevel(level int) EncodeOption {
	return func(c *encodeConfig) {
		c.png.CompressionLevel = level
	}
}

// PNGFilterStrategy returns an EncodeOption that sets how modified PNG
// scanlines are filtered. Default is png.FilterPreserve.
func PNGFilterStrategy(s png.FilterStrategy) EncodeOption {
	return func(c *encodeConfig) {
		c.png.FilterStrategy = s
	}
}

func new_encode_config(opts []EncodeOption) encodeConfig {
	cfg := defaultEncodeConfig
	for _, option := range opts {
		option(&cfg)
	}
	return cfg
}

// Serialize returns the image in its own format. The PNG options apply to
// PNG images, the others are ignored.
func (img *Image) Serialize(opts ...EncodeOption) ([]byte, error) {
	if p, ok := img.Store.(*png.PNG); ok {
		return p.Encode(new_encode_config(opts).png)
	}
	return img.Store.Bytes()
}

// Encode writes the image to w in its own format.
func (img *Image) Encode(w io.Writer, opts ...EncodeOption) error {
	data, err := img.Serialize(opts...)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Save saves the image to file with the specified filename. The format is
// determined from the filename extension. If it differs from the format of
// the image, the pixels are converted, see Export.
//
// Examples:
//
//	// Save the image as PNG.
//	err := img.Save("out.png")
//
//	// Save the image as JPEG with optional quality parameter set to 80.
//	err := img.Save("out.jpg", imager.JPEGQuality(80))
func (img *Image) Save(filename string, opts ...EncodeOption) (err error) {
	f, err := FormatFromFilename(filename)
	if err != nil {
		return err
	}
	file, err := fs.Create(filename)
	if err != nil {
		return err
	}
	if f == img.format {
		err = img.Encode(file, opts...)
	} else {
		err = img.Export(file, f, opts...)
	}
	errc := file.Close()
	if err == nil {
		err = errc
	}
	return err
}

// orientation is an EXIF flag that specifies the transformation
// that should be applied to image to display it correctly.
type orientation int

const (
	orientationUnspecified orientation = 0
	orientationNormal      orientation = 1
	orientationRotate90    orientation = 8
)

// Orientation returns the EXIF orientation flag (1 to 8) of the image, or zero
// when the image carries no EXIF data or no valid orientation tag.
func (img *Image) Orientation() (int, error) {
	exif_data, err := img.Meta().Exif()
	if err != nil {
		return 0, err
	}
	oval := orientationUnspecified
	if exif_data != nil {
		orient, err := exif_data.Get(exif.Orientation)
		if err == nil && orient != nil && orient.Format() == exif_tiff.IntVal {
			if x, err := orient.Int(0); err == nil && orientation(x) >= orientationNormal && orientation(x) <= orientationRotate90 {
				oval = orientation(x)
			}
		}
	}
	return int(oval), nil
}
