package types

import (
	"encoding/hex"
	"fmt"
)

// Pixel is an opaque 8-bit RGB color.
type Pixel struct {
	R, G, B uint8
}

var (
	White = Pixel{0xff, 0xff, 0xff}
	Black = Pixel{}
)

// ChannelOrder selects the byte order used by Pixel.Bytes.
type ChannelOrder int

const (
	RGB ChannelOrder = iota
	BGR
)

// FromHex parses a color of the form #rrggbb. Both upper and lower case hex
// digits are accepted.
func FromHex(s string) (Pixel, error) {
	if len(s) != 7 || s[0] != '#' {
		return Pixel{}, fmt.Errorf("%w: %q is not of the form #rrggbb", ErrInvalidValue, s)
	}
	b, err := hex.DecodeString(s[1:])
	if err != nil {
		return Pixel{}, fmt.Errorf("%w: %q is not of the form #rrggbb: %s", ErrInvalidValue, s, err)
	}
	return Pixel{b[0], b[1], b[2]}, nil
}

// Hex returns the color as #rrggbb in lower case.
func (p Pixel) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", p.R, p.G, p.B)
}

func (p Pixel) String() string {
	return fmt.Sprintf("Pixel{%02X %02X %02X}", p.R, p.G, p.B)
}

func (p Pixel) Bytes(order ChannelOrder) [3]byte {
	if order == BGR {
		return [3]byte{p.B, p.G, p.R}
	}
	return [3]byte{p.R, p.G, p.B}
}

func (p Pixel) Invert() Pixel {
	return Pixel{255 - p.R, 255 - p.G, 255 - p.B}
}

// Luma is the unweighted channel average, truncated.
func (p Pixel) Luma() uint8 {
	return uint8((uint16(p.R) + uint16(p.G) + uint16(p.B)) / 3)
}

func (p Pixel) IsGray() bool {
	return p.R == p.G && p.G == p.B
}

// RGBA implements color.Color.
func (p Pixel) RGBA() (r, g, b, a uint32) {
	r = uint32(p.R)
	r |= r << 8
	g = uint32(p.G)
	g |= g << 8
	b = uint32(p.B)
	b |= b << 8
	a = 65535 // (255 << 8 | 255)
	return
}
