package png

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/kovidgoyal/imager/types"
)

var _ = fmt.Print

const (
	Magic = "\x89PNG\r\n\x1a\n"
	// length + type + crc
	chunkOverhead = 12
	ihdrLength    = 13
	// PNG lengths are limited to 2^31 - 1
	maxChunkLength = 0x7fffffff
)

// ColorType as defined by the PNG format. Only Grayscale and RGB at 8 bits are decoded.
type ColorType uint8

const (
	Grayscale ColorType = 0
	RGB       ColorType = 2
)

func (c ColorType) String() string {
	switch c {
	case Grayscale:
		return "Grayscale"
	case RGB:
		return "RGB"
	}
	return fmt.Sprintf("Unknown(%d)", uint8(c))
}

func (c ColorType) bytes_per_pixel() int {
	if c == Grayscale {
		return 1
	}
	return 3
}

type Interlace uint8

const (
	InterlaceNone Interlace = iota
	InterlaceAdam7
)

type Unit uint8

const (
	UnitUnknown Unit = iota
	UnitMeter
)

// Chunk is one of the typed chunk bodies below. Tag is the four letter chunk
// type and payload the serialized chunk data, excluding length and CRC.
type Chunk interface {
	Tag() string
	payload() []byte
}

// Header is the IHDR chunk.
type Header struct {
	Width, Height     uint32
	BitDepth          uint8
	ColorType         ColorType
	CompressionMethod uint8
	FilterMethod      uint8
	Interlace         Interlace
}

// ImageData is one IDAT chunk. All IDAT chunks of a file together form a single zlib stream.
type ImageData struct {
	Data []byte
}

// End is the IEND chunk.
type End struct{}

// Text is a tEXt chunk, the text is Latin-1.
type Text struct {
	Keyword, Text string
}

// ICCProfile is an iCCP chunk. Profile is the compressed profile.
type ICCProfile struct {
	Name              string
	CompressionMethod uint8
	Profile           []byte
}

// PhysicalDimensions is a pHYs chunk.
type PhysicalDimensions struct {
	PixelsPerUnitX, PixelsPerUnitY uint32
	Unit                           Unit
}

// Time is a tIME chunk, the last modification time in UTC.
type Time struct {
	Year                               uint16
	Month, Day, Hour, Minute, Second uint8
}

// Exif is an eXIf chunk, holding a raw TIFF structured EXIF block.
type Exif struct {
	Data []byte
}

// Unknown holds any other chunk verbatim.
type Unknown struct {
	Type [4]byte
	Data []byte
}

func (*Header) Tag() string             { return "IHDR" }
func (*ImageData) Tag() string          { return "IDAT" }
func (*End) Tag() string                { return "IEND" }
func (*Text) Tag() string               { return "tEXt" }
func (*ICCProfile) Tag() string         { return "iCCP" }
func (*PhysicalDimensions) Tag() string { return "pHYs" }
func (*Time) Tag() string               { return "tIME" }
func (*Exif) Tag() string               { return "eXIf" }
func (u *Unknown) Tag() string          { return string(u.Type[:]) }

func (h *Header) payload() []byte {
	ans := make([]byte, 0, ihdrLength)
	ans = binary.BigEndian.AppendUint32(ans, h.Width)
	ans = binary.BigEndian.AppendUint32(ans, h.Height)
	return append(ans, h.BitDepth, byte(h.ColorType), h.CompressionMethod, h.FilterMethod, byte(h.Interlace))
}

func (d *ImageData) payload() []byte { return d.Data }
func (*End) payload() []byte         { return nil }

func (t *Text) payload() []byte {
	ans := append([]byte(t.Keyword), 0)
	return append(ans, t.Text...)
}

func (p *ICCProfile) payload() []byte {
	ans := append([]byte(p.Name), 0, p.CompressionMethod)
	return append(ans, p.Profile...)
}

func (p *PhysicalDimensions) payload() []byte {
	ans := make([]byte, 0, 9)
	ans = binary.BigEndian.AppendUint32(ans, p.PixelsPerUnitX)
	ans = binary.BigEndian.AppendUint32(ans, p.PixelsPerUnitY)
	return append(ans, byte(p.Unit))
}

func (t *Time) payload() []byte {
	ans := binary.BigEndian.AppendUint16(nil, t.Year)
	return append(ans, t.Month, t.Day, t.Hour, t.Minute, t.Second)
}

func (e *Exif) payload() []byte    { return e.Data }
func (u *Unknown) payload() []byte { return u.Data }

func short(tag string, need, have int) error {
	return fmt.Errorf("png: %w: %s chunk must be %d bytes, is %d", types.ErrMalformedHeader, tag, need, have)
}

func parse_header(data []byte) (*Header, error) {
	if len(data) != ihdrLength {
		return nil, fmt.Errorf("png: %w: IHDR chunk must be %d bytes, is %d", types.ErrMalformedHeader, ihdrLength, len(data))
	}
	h := &Header{
		Width:             binary.BigEndian.Uint32(data[0:4]),
		Height:            binary.BigEndian.Uint32(data[4:8]),
		BitDepth:          data[8],
		ColorType:         ColorType(data[9]),
		CompressionMethod: data[10],
		FilterMethod:      data[11],
		Interlace:         Interlace(data[12]),
	}
	if h.Interlace > InterlaceAdam7 {
		return nil, fmt.Errorf("png: %w: invalid interlace method %d", types.ErrMalformedHeader, h.Interlace)
	}
	return h, nil
}

// nul_separated splits data at its first NUL byte.
func nul_separated(tag string, data []byte) (keyword string, rest []byte, err error) {
	idx := bytes.IndexByte(data, 0)
	if idx < 0 {
		return "", nil, fmt.Errorf("png: %w: %s chunk has no keyword terminator", types.ErrMalformedHeader, tag)
	}
	return string(data[:idx]), data[idx+1:], nil
}

func parse_iccp(data []byte) (*ICCProfile, error) {
	name, rest, err := nul_separated("iCCP", data)
	if err != nil {
		return nil, err
	}
	if len(rest) < 1 {
		return nil, fmt.Errorf("png: %w: iCCP chunk has no compression method", types.ErrMalformedHeader)
	}
	return &ICCProfile{Name: name, CompressionMethod: rest[0], Profile: bytes.Clone(rest[1:])}, nil
}

func parse_text(data []byte) (*Text, error) {
	k, rest, err := nul_separated("tEXt", data)
	if err != nil {
		return nil, err
	}
	return &Text{Keyword: k, Text: string(rest)}, nil
}

func parse_phys(data []byte) (*PhysicalDimensions, error) {
	if len(data) != 9 {
		return nil, short("pHYs", 9, len(data))
	}
	p := &PhysicalDimensions{
		PixelsPerUnitX: binary.BigEndian.Uint32(data[0:4]),
		PixelsPerUnitY: binary.BigEndian.Uint32(data[4:8]),
		Unit:           Unit(data[8]),
	}
	if p.Unit > UnitMeter {
		return nil, fmt.Errorf("png: %w: unknown pHYs unit %d", types.ErrInvalidValue, p.Unit)
	}
	return p, nil
}

func parse_time(data []byte) (*Time, error) {
	if len(data) != 7 {
		return nil, short("tIME", 7, len(data))
	}
	return &Time{
		Year: binary.BigEndian.Uint16(data[0:2]), Month: data[2], Day: data[3],
		Hour: data[4], Minute: data[5], Second: data[6],
	}, nil
}

func parse_chunk(tag [4]byte, data []byte) (Chunk, error) {
	switch string(tag[:]) {
	case "IHDR":
		return parse_header(data)
	case "IDAT":
		return &ImageData{Data: bytes.Clone(data)}, nil
	case "IEND":
		return &End{}, nil
	case "tEXt":
		return parse_text(data)
	case "iCCP":
		return parse_iccp(data)
	case "pHYs":
		return parse_phys(data)
	case "tIME":
		return parse_time(data)
	case "eXIf":
		return &Exif{Data: bytes.Clone(data)}, nil
	}
	return &Unknown{Type: tag, Data: bytes.Clone(data)}, nil
}

// parse_chunks reads the chunk stream that follows the magic bytes, up to and
// including IEND. Anything after IEND is ignored.
func parse_chunks(data []byte) (chunks []Chunk, err error) {
	for pos := 0; ; {
		if len(data)-pos < chunkOverhead {
			if pos == len(data) {
				return nil, fmt.Errorf("png: %w: missing IEND chunk", types.ErrTruncatedData)
			}
			return nil, fmt.Errorf("png: %w: chunk header at offset %d needs %d bytes, have %d", types.ErrTruncatedData, pos, chunkOverhead, len(data)-pos)
		}
		length := binary.BigEndian.Uint32(data[pos : pos+4])
		var tag [4]byte
		copy(tag[:], data[pos+4:pos+8])
		if length > maxChunkLength {
			return nil, fmt.Errorf("png: %w: %q chunk length %d", types.ErrMalformedHeader, tag, length)
		}
		end := uint64(pos) + chunkOverhead + uint64(length)
		if end > uint64(len(data)) {
			return nil, fmt.Errorf("png: %w: %q chunk of %d bytes runs past the end of the data", types.ErrTruncatedData, tag, length)
		}
		body := data[pos+8 : pos+8+int(length)]
		stored := binary.BigEndian.Uint32(data[pos+8+int(length) : end])
		if actual := crc32.Update(crc32.ChecksumIEEE(tag[:]), crc32.IEEETable, body); actual != stored {
			return nil, fmt.Errorf("png: %w: %q chunk has CRC %08x, contents give %08x", types.ErrChecksum, tag, stored, actual)
		}
		c, err := parse_chunk(tag, body)
		if err != nil {
			return nil, err
		}
		if len(chunks) == 0 {
			if _, ok := c.(*Header); !ok {
				return nil, fmt.Errorf("png: %w: first chunk is %q not IHDR", types.ErrMalformedHeader, tag)
			}
		} else if _, ok := c.(*Header); ok {
			return nil, fmt.Errorf("png: %w: duplicate IHDR chunk", types.ErrMalformedHeader)
		}
		chunks = append(chunks, c)
		if _, ok := c.(*End); ok {
			return chunks, nil
		}
		pos = int(end)
	}
}

// append_chunk serializes c with its length and a freshly computed CRC.
func append_chunk(dest []byte, c Chunk) []byte {
	body := c.payload()
	tag := c.Tag()
	dest = binary.BigEndian.AppendUint32(dest, uint32(len(body)))
	start := len(dest)
	dest = append(dest, tag...)
	dest = append(dest, body...)
	return binary.BigEndian.AppendUint32(dest, crc32.ChecksumIEEE(dest[start:]))
}
