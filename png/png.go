// Package png reads and writes 8-bit RGB and grayscale PNG files, keeping
// every chunk so that files round trip without loss.
package png

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync/atomic"

	"github.com/klauspost/compress/zlib"
	"github.com/kovidgoyal/imager/meta"
	"github.com/kovidgoyal/imager/types"
)

var _ = fmt.Print

// FilterStrategy controls how scanlines are predicted when pixel data is
// re-encoded.
type FilterStrategy int

const (
	// Re-use the filter type each row had when it was decoded
	FilterPreserve FilterStrategy = iota
	// Store every row unfiltered
	FilterNone
	// Pick the filter per row with the minimum sum of absolute differences heuristic
	FilterAdaptive
)

func (s FilterStrategy) String() string {
	switch s {
	case FilterPreserve:
		return "preserve"
	case FilterNone:
		return "none"
	case FilterAdaptive:
		return "adaptive"
	}
	return fmt.Sprintf("FilterStrategy(%d)", int(s))
}

const DefaultMaxIDATSize = 32 * 1024

type EncodeConfig struct {
	// zlib compression level, from zlib.HuffmanOnly to zlib.BestCompression
	CompressionLevel int
	FilterStrategy   FilterStrategy
	// Largest payload of a single emitted IDAT chunk
	MaxIDATSize int
}

func DefaultEncodeConfig() EncodeConfig {
	return EncodeConfig{CompressionLevel: zlib.DefaultCompression, FilterStrategy: FilterPreserve, MaxIDATSize: DefaultMaxIDATSize}
}

// PNG is a decoded image together with every chunk of the file it came from.
type PNG struct {
	Chunks []Chunk
	Config EncodeConfig

	header        *Header
	width, height int
	pix           []types.Pixel
	filter_types  []FilterType
	dirty         atomic.Bool
}

// Decode parses a complete PNG file, verifying the CRC of every chunk.
func Decode(data []byte) (*PNG, error) {
	if len(data) < len(Magic) || string(data[:len(Magic)]) != Magic {
		return nil, fmt.Errorf("png: %w: missing PNG signature", types.ErrMalformedHeader)
	}
	chunks, err := parse_chunks(data[len(Magic):])
	if err != nil {
		return nil, err
	}
	ans := &PNG{Chunks: chunks, Config: DefaultEncodeConfig(), header: chunks[0].(*Header)}
	if err = ans.check_header(); err != nil {
		return nil, err
	}
	if err = ans.decode_pixels(); err != nil {
		return nil, err
	}
	return ans, nil
}

func (p *PNG) check_header() error {
	h := p.header
	switch {
	case h.Width == 0 || h.Height == 0 || h.Width > maxChunkLength || h.Height > maxChunkLength:
		return fmt.Errorf("png: %w: invalid dimensions %dx%d", types.ErrMalformedHeader, h.Width, h.Height)
	case h.BitDepth != 8:
		return fmt.Errorf("png: %w: bit depth %d", types.ErrUnsupportedVariant, h.BitDepth)
	case h.ColorType != Grayscale && h.ColorType != RGB:
		return fmt.Errorf("png: %w: color type %s", types.ErrUnsupportedVariant, h.ColorType)
	case h.CompressionMethod != 0:
		return fmt.Errorf("png: %w: compression method %d", types.ErrUnsupportedVariant, h.CompressionMethod)
	case h.FilterMethod != 0:
		return fmt.Errorf("png: %w: filter method %d", types.ErrUnsupportedVariant, h.FilterMethod)
	case h.Interlace != InterlaceNone:
		return fmt.Errorf("png: %w: Adam7 interlacing", types.ErrUnsupportedVariant)
	}
	p.width, p.height = int(h.Width), int(h.Height)
	return nil
}

var errTooMuchData = errors.New("decompressed data is too long")

// inflate reads the whole zlib stream, including its checksum, failing if it
// decompresses to more than limit bytes.
func inflate(compressed []byte, limit int64) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	ans, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(ans)) > limit {
		return nil, errTooMuchData
	}
	return ans, nil
}

func zlib_error(what string, err error) error {
	switch {
	case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("png: %w: %s: %s", types.ErrTruncatedData, what, err)
	case errors.Is(err, zlib.ErrChecksum):
		return fmt.Errorf("png: %w: %s: %s", types.ErrChecksum, what, err)
	}
	return fmt.Errorf("png: %w: %s: %s", types.ErrMalformedHeader, what, err)
}

func (p *PNG) decode_pixels() error {
	var compressed []byte
	for _, c := range p.Chunks {
		if d, ok := c.(*ImageData); ok {
			compressed = append(compressed, d.Data...)
		}
	}
	if len(compressed) == 0 {
		return fmt.Errorf("png: %w: no IDAT chunks", types.ErrTruncatedData)
	}
	bpp := p.header.ColorType.bytes_per_pixel()
	row_size := p.width * bpp
	if int64(row_size+1) > (math.MaxInt64-1)/int64(p.height) {
		return fmt.Errorf("png: %w: %dx%d image is too large", types.ErrUnsupportedVariant, p.width, p.height)
	}
	expected := int64(row_size+1) * int64(p.height)
	stream, err := inflate(compressed, expected)
	if err != nil {
		return zlib_error("image data", err)
	}
	if int64(len(stream)) < expected {
		return fmt.Errorf("png: %w: image data decompresses to %d bytes, %dx%d needs %d", types.ErrTruncatedData, len(stream), p.width, p.height, expected)
	}
	rows, filter_types, err := Defilter(stream, row_size, bpp)
	if err != nil {
		return err
	}
	p.filter_types = filter_types
	p.pix = make([]types.Pixel, p.width*p.height)
	if bpp == 1 {
		for i, v := range rows {
			p.pix[i] = types.Pixel{R: v, G: v, B: v}
		}
	} else {
		for i := range p.pix {
			s := rows[3*i : 3*i+3 : 3*i+3]
			p.pix[i] = types.Pixel{R: s[0], G: s[1], B: s[2]}
		}
	}
	return nil
}

// New returns a black RGB image of the given size.
func New(width, height int) (*PNG, error) {
	if width <= 0 || height <= 0 || width > maxChunkLength || height > maxChunkLength {
		return nil, fmt.Errorf("png: %w: invalid dimensions %dx%d", types.ErrInvalidValue, width, height)
	}
	h := &Header{Width: uint32(width), Height: uint32(height), BitDepth: 8, ColorType: RGB}
	ans := &PNG{
		Chunks: []Chunk{h, &End{}}, Config: DefaultEncodeConfig(), header: h,
		width: width, height: height,
		pix: make([]types.Pixel, width*height), filter_types: make([]FilterType, height),
	}
	ans.dirty.Store(true)
	return ans, nil
}

func (p *PNG) Width() int        { return p.width }
func (p *PNG) Height() int       { return p.height }
func (p *PNG) Header() Header    { return *p.header }
func (p *PNG) Signature() string { return "PNG" }

// FilterTypes returns the scanline filter type of every row as decoded.
func (p *PNG) FilterTypes() []FilterType { return p.filter_types }

// Dirty reports whether pixels were modified since decoding.
func (p *PNG) Dirty() bool { return p.dirty.Load() }

func (p *PNG) offset(x, y int) (int, error) {
	if x < 0 || y < 0 || x >= p.width || y >= p.height {
		return 0, fmt.Errorf("png: %w: (%d, %d) in %dx%d", types.ErrOutOfBounds, x, y, p.width, p.height)
	}
	return y*p.width + x, nil
}

func (p *PNG) PixelAt(x, y int) (types.Pixel, error) {
	i, err := p.offset(x, y)
	if err != nil {
		return types.Pixel{}, err
	}
	return p.pix[i], nil
}

func (p *PNG) SetPixel(x, y int, px types.Pixel) error {
	i, err := p.offset(x, y)
	if err != nil {
		return err
	}
	p.pix[i] = px
	p.dirty.Store(true)
	return nil
}

func (p *PNG) Metadata() string {
	lines := make([]string, 0, len(p.Chunks))
	for _, c := range p.Chunks {
		switch v := c.(type) {
		case *ImageData:
			lines = append(lines, fmt.Sprintf("IDAT %d bytes", len(v.Data)))
		case *Exif:
			lines = append(lines, fmt.Sprintf("eXIf %d bytes", len(v.Data)))
		case *ICCProfile:
			lines = append(lines, fmt.Sprintf("iCCP {Name:%s CompressionMethod:%d} %d bytes", v.Name, v.CompressionMethod, len(v.Profile)))
		case *Unknown:
			lines = append(lines, fmt.Sprintf("%s %d bytes", v.Tag(), len(v.Data)))
		case *End:
			lines = append(lines, "IEND")
		default:
			lines = append(lines, fmt.Sprintf("%s %+v", c.Tag(), c))
		}
	}
	return strings.Join(lines, "\n")
}

// Meta returns structured metadata. Text chunks, the EXIF block and the ICC
// profile (decompressed) are included when present.
func (p *PNG) Meta() *meta.Data {
	ans := &meta.Data{Format: types.PNG, PixelWidth: uint32(p.width), PixelHeight: uint32(p.height), BitsPerComponent: uint32(p.header.BitDepth)}
	for _, c := range p.Chunks {
		switch v := c.(type) {
		case *Text:
			if ans.Text == nil {
				ans.Text = make(map[string]string)
			}
			ans.Text[v.Keyword] = v.Text
		case *Exif:
			ans.SetExifData(v.Data)
		case *ICCProfile:
			if v.CompressionMethod != 0 {
				ans.SetICCProfileError(v.Name, fmt.Errorf("png: %w: iCCP compression method %d", types.ErrUnsupportedVariant, v.CompressionMethod))
				break
			}
			if profile, err := inflate(v.Profile, 64*1024*1024); err != nil {
				ans.SetICCProfileError(v.Name, zlib_error("ICC profile", err))
			} else {
				ans.SetICCProfileData(v.Name, profile)
			}
		}
	}
	return ans
}

func (p *PNG) all_gray() bool {
	for _, px := range p.pix {
		if !px.IsGray() {
			return false
		}
	}
	return true
}

// encode_pixels filters and compresses the current pixels, returning the
// color type used and the compressed stream.
func (p *PNG) encode_pixels(cfg EncodeConfig) (ColorType, []byte, error) {
	ct := p.header.ColorType
	if ct == Grayscale && !p.all_gray() {
		ct = RGB
	}
	bpp := ct.bytes_per_pixel()
	row_size := p.width * bpp
	rows := make([]byte, 0, row_size*p.height)
	if bpp == 1 {
		for _, px := range p.pix {
			rows = append(rows, px.R)
		}
	} else {
		for _, px := range p.pix {
			rows = append(rows, px.R, px.G, px.B)
		}
	}
	var filter_types []FilterType
	switch cfg.FilterStrategy {
	case FilterPreserve:
		filter_types = p.filter_types
	case FilterNone:
		filter_types = make([]FilterType, p.height)
	case FilterAdaptive:
		filter_types = adaptive_filter_types(rows, row_size, bpp)
	default:
		return ct, nil, fmt.Errorf("png: %w: unknown filter strategy: %s", types.ErrInvalidValue, cfg.FilterStrategy)
	}
	stream, err := Refilter(rows, row_size, bpp, filter_types)
	if err != nil {
		return ct, nil, err
	}
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, cfg.CompressionLevel)
	if err != nil {
		return ct, nil, fmt.Errorf("png: %w: compression level %d: %s", types.ErrInvalidValue, cfg.CompressionLevel, err)
	}
	if _, err = w.Write(stream); err != nil {
		return ct, nil, err
	}
	if err = w.Close(); err != nil {
		return ct, nil, err
	}
	return ct, buf.Bytes(), nil
}

func split_idat(compressed []byte, max_size int) (ans []Chunk) {
	if max_size <= 0 {
		max_size = DefaultMaxIDATSize
	}
	for len(compressed) > 0 {
		n := min(max_size, len(compressed))
		ans = append(ans, &ImageData{Data: compressed[:n:n]})
		compressed = compressed[n:]
	}
	return
}

// output_chunks returns the chunks to serialize. When pixels were modified
// the IDAT run is replaced by freshly encoded data at the position of the
// first IDAT chunk.
func (p *PNG) output_chunks(cfg EncodeConfig) ([]Chunk, error) {
	if !p.dirty.Load() {
		return p.Chunks, nil
	}
	ct, compressed, err := p.encode_pixels(cfg)
	if err != nil {
		return nil, err
	}
	idat := split_idat(compressed, cfg.MaxIDATSize)
	ans := make([]Chunk, 0, len(p.Chunks)+len(idat))
	placed := false
	for _, c := range p.Chunks {
		switch v := c.(type) {
		case *Header:
			h := *v
			h.ColorType = ct
			ans = append(ans, &h)
		case *ImageData:
			if !placed {
				ans = append(ans, idat...)
				placed = true
			}
		case *End:
			if !placed {
				ans = append(ans, idat...)
				placed = true
			}
			ans = append(ans, c)
		default:
			ans = append(ans, c)
		}
	}
	return ans, nil
}

// Bytes serializes the image using p.Config. An image whose pixels were not
// modified serializes to exactly the bytes it was decoded from, up to and
// including the IEND chunk.
func (p *PNG) Bytes() ([]byte, error) {
	return p.Encode(p.Config)
}

// Encode is Bytes with an explicit configuration.
func (p *PNG) Encode(cfg EncodeConfig) ([]byte, error) {
	chunks, err := p.output_chunks(cfg)
	if err != nil {
		return nil, err
	}
	ans := []byte(Magic)
	for _, c := range chunks {
		ans = append_chunk(ans, c)
	}
	return ans, nil
}
