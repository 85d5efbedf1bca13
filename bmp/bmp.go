// Package bmp reads and writes uncompressed 24-bit Windows BMP files.
//
// Coordinates are top-left origin. The pixel buffer is kept in file row
// order, so a bottom-up file (positive height) stores the top visible row
// last.
package bmp

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/kovidgoyal/imager/meta"
	"github.com/kovidgoyal/imager/types"
)

var _ = fmt.Print

const (
	headerSize = 14
	infoSize   = 40
	// offset of the pixel data when there is nothing between the info header and the pixels
	minDataOffset = headerSize + infoSize
)

// Header is the 14 byte BITMAPFILEHEADER.
type Header struct {
	Signature  [2]byte
	FileSize   uint32
	Reserved   uint32
	DataOffset uint32
}

// Info is the 40 byte BITMAPINFOHEADER. Padding holds every byte between the
// end of the fixed header and DataOffset (larger header versions, color
// masks, color table) verbatim.
type Info struct {
	Size            uint32
	Width           int32
	Height          int32
	Planes          uint16
	BitsPerPixel    uint16
	Compression     uint32
	ImageSize       uint32
	HRes            int32
	VRes            int32
	Colors          uint32
	ImportantColors uint32
	Padding         []byte
}

// BMP is a decoded 24bpp bitmap.
type BMP struct {
	Header Header
	Info   Info

	width, height int
	top_down      bool
	stride        int // bytes per row in the file, including padding
	pix           []types.Pixel
	row_padding   []byte // alignment bytes at the end of every row, back to back
	trailer       []byte
}

func padded_stride(width int) int {
	return (3*width + 3) &^ 3
}

// Decode parses a complete BMP file.
func Decode(data []byte) (*BMP, error) {
	ans := &BMP{}
	if err := ans.parse_header(data); err != nil {
		return nil, err
	}
	if err := ans.parse_info(data); err != nil {
		return nil, err
	}
	if err := ans.parse_pixels(data[ans.Header.DataOffset:]); err != nil {
		return nil, err
	}
	return ans, nil
}

func (b *BMP) parse_header(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("bmp: %w: need %d header bytes, have %d", types.ErrMalformedHeader, headerSize, len(data))
	}
	if data[0] != 'B' || data[1] != 'M' {
		return fmt.Errorf("bmp: %w: bad signature %q", types.ErrMalformedHeader, data[:2])
	}
	h := &b.Header
	copy(h.Signature[:], data[0:2])
	h.FileSize = binary.LittleEndian.Uint32(data[2:6])
	h.Reserved = binary.LittleEndian.Uint32(data[6:10])
	h.DataOffset = binary.LittleEndian.Uint32(data[10:14])
	return nil
}

func (b *BMP) parse_info(data []byte) error {
	if len(data) < minDataOffset {
		return fmt.Errorf("bmp: %w: info header needs %d bytes, have %d", types.ErrMalformedHeader, minDataOffset, len(data))
	}
	d := data[headerSize:minDataOffset]
	i := &b.Info
	i.Size = binary.LittleEndian.Uint32(d[0:4])
	i.Width = int32(binary.LittleEndian.Uint32(d[4:8]))
	i.Height = int32(binary.LittleEndian.Uint32(d[8:12]))
	i.Planes = binary.LittleEndian.Uint16(d[12:14])
	i.BitsPerPixel = binary.LittleEndian.Uint16(d[14:16])
	i.Compression = binary.LittleEndian.Uint32(d[16:20])
	i.ImageSize = binary.LittleEndian.Uint32(d[20:24])
	i.HRes = int32(binary.LittleEndian.Uint32(d[24:28]))
	i.VRes = int32(binary.LittleEndian.Uint32(d[28:32]))
	i.Colors = binary.LittleEndian.Uint32(d[32:36])
	i.ImportantColors = binary.LittleEndian.Uint32(d[36:40])

	if i.Size < infoSize {
		return fmt.Errorf("bmp: %w: info header size %d, OS/2 bitmaps are not supported", types.ErrUnsupportedVariant, i.Size)
	}
	if i.BitsPerPixel != 24 {
		return fmt.Errorf("bmp: %w: %d bits per pixel", types.ErrUnsupportedVariant, i.BitsPerPixel)
	}
	if i.Compression != 0 {
		return fmt.Errorf("bmp: %w: compression type %d", types.ErrUnsupportedVariant, i.Compression)
	}
	if i.Width <= 0 || i.Height == 0 {
		return fmt.Errorf("bmp: %w: invalid dimensions %dx%d", types.ErrMalformedHeader, i.Width, i.Height)
	}
	off := b.Header.DataOffset
	switch {
	case off < minDataOffset:
		return fmt.Errorf("bmp: %w: pixel data offset %d overlaps the headers", types.ErrMalformedHeader, off)
	case uint64(off) > uint64(len(data)):
		return fmt.Errorf("bmp: %w: pixel data offset %d is past the end of %d bytes", types.ErrTruncatedData, off, len(data))
	}
	i.Padding = bytes.Clone(data[minDataOffset:off])
	b.width = int(i.Width)
	if i.Height < 0 {
		b.top_down = true
		b.height = -int(i.Height)
	} else {
		b.height = int(i.Height)
	}
	return nil
}

func (b *BMP) parse_pixels(data []byte) error {
	packed := 3 * b.width
	b.stride = padded_stride(b.width)
	if b.stride != packed {
		// Some writers pack rows without the 4 byte alignment, honor that when it is
		// declared or when there is only enough data for packed rows.
		if uint64(b.Info.ImageSize) == uint64(packed)*uint64(b.height) ||
			(uint64(len(data)) < uint64(b.stride)*uint64(b.height) && uint64(len(data)) >= uint64(packed)*uint64(b.height)) {
			b.stride = packed
		}
	}
	needed := uint64(b.stride) * uint64(b.height)
	if uint64(len(data)) < needed {
		return fmt.Errorf("bmp: %w: %dx%d pixels need %d bytes, have %d", types.ErrTruncatedData, b.width, b.height, needed, len(data))
	}
	b.pix = make([]types.Pixel, b.width*b.height)
	pad := b.stride - packed
	b.row_padding = make([]byte, 0, pad*b.height)
	for r := range b.height {
		row := data[r*b.stride : r*b.stride+packed]
		b.row_padding = append(b.row_padding, data[r*b.stride+packed:(r+1)*b.stride]...)
		dest := b.pix[r*b.width : (r+1)*b.width]
		for i := range dest {
			s := row[3*i : 3*i+3 : 3*i+3]
			dest[i] = types.Pixel{R: s[2], G: s[1], B: s[0]}
		}
	}
	b.trailer = bytes.Clone(data[needed:])
	return nil
}

// New returns a black bottom-up 24bpp bitmap of the given size.
func New(width, height int) (*BMP, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("bmp: %w: invalid dimensions %dx%d", types.ErrInvalidValue, width, height)
	}
	stride := padded_stride(width)
	trailer := []byte{0, 0}
	image_size := stride * height
	return &BMP{
		Header: Header{
			Signature:  [2]byte{'B', 'M'},
			FileSize:   uint32(minDataOffset + image_size + len(trailer)),
			DataOffset: minDataOffset,
		},
		Info: Info{
			Size: infoSize, Width: int32(width), Height: int32(height), Planes: 1, BitsPerPixel: 24,
			ImageSize: uint32(image_size), HRes: 2835, VRes: 2835,
		},
		width: width, height: height, stride: stride,
		pix:         make([]types.Pixel, width*height),
		row_padding: make([]byte, (stride-3*width)*height),
		trailer:     trailer,
	}, nil
}

func (b *BMP) Width() int  { return b.width }
func (b *BMP) Height() int { return b.height }

func (b *BMP) offset(x, y int) (int, error) {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return 0, fmt.Errorf("bmp: %w: (%d, %d) in %dx%d", types.ErrOutOfBounds, x, y, b.width, b.height)
	}
	if !b.top_down {
		y = b.height - 1 - y
	}
	return b.width*y + x, nil
}

func (b *BMP) PixelAt(x, y int) (types.Pixel, error) {
	i, err := b.offset(x, y)
	if err != nil {
		return types.Pixel{}, err
	}
	return b.pix[i], nil
}

func (b *BMP) SetPixel(x, y int, p types.Pixel) error {
	i, err := b.offset(x, y)
	if err != nil {
		return err
	}
	b.pix[i] = p
	return nil
}

func (b *BMP) Signature() string {
	return string(b.Header.Signature[:])
}

func (b *BMP) Metadata() string {
	return fmt.Sprintf("%+v\n%+v", b.Header, b.Info)
}

func (b *BMP) Meta() *meta.Data {
	return &meta.Data{
		Format: types.BMP, PixelWidth: uint32(b.width), PixelHeight: uint32(b.height), BitsPerComponent: 8,
	}
}

// Bytes serializes the bitmap. A bitmap that was decoded and not modified
// serializes to exactly the bytes it was decoded from.
func (b *BMP) Bytes() ([]byte, error) {
	ans := make([]byte, 0, minDataOffset+len(b.Info.Padding)+b.stride*b.height+len(b.trailer))
	h, i := &b.Header, &b.Info
	ans = append(ans, h.Signature[:]...)
	ans = binary.LittleEndian.AppendUint32(ans, h.FileSize)
	ans = binary.LittleEndian.AppendUint32(ans, h.Reserved)
	ans = binary.LittleEndian.AppendUint32(ans, h.DataOffset)

	ans = binary.LittleEndian.AppendUint32(ans, i.Size)
	ans = binary.LittleEndian.AppendUint32(ans, uint32(i.Width))
	ans = binary.LittleEndian.AppendUint32(ans, uint32(i.Height))
	ans = binary.LittleEndian.AppendUint16(ans, i.Planes)
	ans = binary.LittleEndian.AppendUint16(ans, i.BitsPerPixel)
	ans = binary.LittleEndian.AppendUint32(ans, i.Compression)
	ans = binary.LittleEndian.AppendUint32(ans, i.ImageSize)
	ans = binary.LittleEndian.AppendUint32(ans, uint32(i.HRes))
	ans = binary.LittleEndian.AppendUint32(ans, uint32(i.VRes))
	ans = binary.LittleEndian.AppendUint32(ans, i.Colors)
	ans = binary.LittleEndian.AppendUint32(ans, i.ImportantColors)
	ans = append(ans, i.Padding...)

	pad := b.stride - 3*b.width
	for r := range b.height {
		for _, p := range b.pix[r*b.width : (r+1)*b.width] {
			ans = append(ans, p.B, p.G, p.R)
		}
		ans = append(ans, b.row_padding[r*pad:(r+1)*pad]...)
	}
	ans = append(ans, b.trailer...)
	return ans, nil
}
