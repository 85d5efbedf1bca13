package bmp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/kovidgoyal/imager/types"
	"github.com/stretchr/testify/require"
	xbmp "golang.org/x/image/bmp"
)

var _ = fmt.Print

func make_bmp(width, height int32, bpp uint16, pixels []byte, trailer []byte) []byte {
	b := []byte("BM")
	b = binary.LittleEndian.AppendUint32(b, uint32(minDataOffset+len(pixels)+len(trailer)))
	b = binary.LittleEndian.AppendUint32(b, 0)
	b = binary.LittleEndian.AppendUint32(b, minDataOffset)
	b = binary.LittleEndian.AppendUint32(b, infoSize)
	b = binary.LittleEndian.AppendUint32(b, uint32(width))
	b = binary.LittleEndian.AppendUint32(b, uint32(height))
	b = binary.LittleEndian.AppendUint16(b, 1)
	b = binary.LittleEndian.AppendUint16(b, bpp)
	b = binary.LittleEndian.AppendUint32(b, 0)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(pixels)))
	b = binary.LittleEndian.AppendUint32(b, 2835)
	b = binary.LittleEndian.AppendUint32(b, 2835)
	b = binary.LittleEndian.AppendUint32(b, 0)
	b = binary.LittleEndian.AppendUint32(b, 0)
	b = append(b, pixels...)
	return append(b, trailer...)
}

func pixels_of(b *BMP) (ans [][]types.Pixel) {
	for y := range b.Height() {
		row := make([]types.Pixel, b.Width())
		for x := range row {
			p, err := b.PixelAt(x, y)
			if err != nil {
				panic(err)
			}
			row[x] = p
		}
		ans = append(ans, row)
	}
	return
}

func TestTwoByTwo(t *testing.T) {
	// BGR triples, file order: bottom row first
	data := []byte{
		1, 2, 3, 4, 5, 6,
		7, 8, 9, 10, 11, 12,
	}
	for _, trailer := range [][]byte{{0, 0}, nil} {
		t.Run(fmt.Sprintf("trailer-%d", len(trailer)), func(t *testing.T) {
			input := make_bmp(2, 2, 24, data, trailer)
			b, err := Decode(input)
			require.NoError(t, err)
			require.Equal(t, 2, b.Width())
			require.Equal(t, 2, b.Height())
			require.Equal(t, "BM", b.Signature())
			want := [][]types.Pixel{
				{{R: 9, G: 8, B: 7}, {R: 12, G: 11, B: 10}},
				{{R: 3, G: 2, B: 1}, {R: 6, G: 5, B: 4}},
			}
			if diff := cmp.Diff(want, pixels_of(b)); diff != "" {
				t.Fatalf("pixels differ: %s", diff)
			}
			out, err := b.Bytes()
			require.NoError(t, err)
			require.Equal(t, input, out)
		})
	}
}

func TestTopDown(t *testing.T) {
	data := []byte{
		1, 2, 3, 4, 5, 6, 0, 0,
		7, 8, 9, 10, 11, 12, 0, 0,
	}
	input := make_bmp(2, -2, 24, data, nil)
	b, err := Decode(input)
	require.NoError(t, err)
	p, err := b.PixelAt(0, 0)
	require.NoError(t, err)
	require.Equal(t, types.Pixel{R: 3, G: 2, B: 1}, p)
	p, err = b.PixelAt(1, 1)
	require.NoError(t, err)
	require.Equal(t, types.Pixel{R: 12, G: 11, B: 10}, p)
	out, err := b.Bytes()
	require.NoError(t, err)
	require.Equal(t, input, out)
}

func test_image(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{uint8(x * 40), uint8(y * 50), uint8(x*y + 7), 0xff})
		}
	}
	return img
}

func TestAgainstXImage(t *testing.T) {
	for _, sz := range []image.Point{{1, 1}, {3, 2}, {4, 3}, {5, 5}} {
		t.Run(sz.String(), func(t *testing.T) {
			src := test_image(sz.X, sz.Y)
			var buf bytes.Buffer
			require.NoError(t, xbmp.Encode(&buf, src))
			input := buf.Bytes()

			b, err := Decode(input)
			require.NoError(t, err)
			require.Equal(t, sz.X, b.Width())
			require.Equal(t, sz.Y, b.Height())
			for y := range sz.Y {
				for x := range sz.X {
					p, err := b.PixelAt(x, y)
					require.NoError(t, err)
					c := src.RGBAAt(x, y)
					require.Equal(t, types.Pixel{R: c.R, G: c.G, B: c.B}, p, "pixel at (%d, %d)", x, y)
				}
			}
			out, err := b.Bytes()
			require.NoError(t, err)
			require.Equal(t, input, out)

			// write a pixel and make sure an independent decoder sees it in the same place
			x, y := sz.X-1, 0
			require.NoError(t, b.SetPixel(x, y, types.Pixel{R: 0xaa, G: 0xbb, B: 0xcc}))
			out, err = b.Bytes()
			require.NoError(t, err)
			decoded, err := xbmp.Decode(bytes.NewReader(out))
			require.NoError(t, err)
			r, g, bl, _ := decoded.At(x, y).RGBA()
			require.Equal(t, []uint32{0xaa, 0xbb, 0xcc}, []uint32{r >> 8, g >> 8, bl >> 8})
		})
	}
}

func TestNew(t *testing.T) {
	b, err := New(3, 2)
	require.NoError(t, err)
	require.NoError(t, b.SetPixel(0, 0, types.White))
	require.NoError(t, b.SetPixel(2, 1, types.Pixel{R: 1, G: 2, B: 3}))
	out, err := b.Bytes()
	require.NoError(t, err)
	require.Equal(t, int(b.Header.FileSize), len(out))
	decoded, err := xbmp.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 3, 2), decoded.Bounds())
	r, g, bl, _ := decoded.At(0, 0).RGBA()
	require.Equal(t, []uint32{0xff, 0xff, 0xff}, []uint32{r >> 8, g >> 8, bl >> 8})
	r, g, bl, _ = decoded.At(2, 1).RGBA()
	require.Equal(t, []uint32{1, 2, 3}, []uint32{r >> 8, g >> 8, bl >> 8})

	again, err := Decode(out)
	require.NoError(t, err)
	require.Equal(t, pixels_of(b), pixels_of(again))

	_, err = New(0, 2)
	require.ErrorIs(t, err, types.ErrInvalidValue)
}

func TestInvalid(t *testing.T) {
	good := make_bmp(2, 2, 24, make([]byte, 16), nil)
	bad_sig := bytes.Clone(good)
	bad_sig[0] = 'C'
	bad_offset := bytes.Clone(good)
	binary.LittleEndian.PutUint32(bad_offset[10:], 20)
	past_end := bytes.Clone(good)
	binary.LittleEndian.PutUint32(past_end[10:], 1000)
	compressed := bytes.Clone(good)
	binary.LittleEndian.PutUint32(compressed[30:], 1)

	testCases := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, types.ErrMalformedHeader},
		{"short", []byte{45, 55, 2, 38}, types.ErrMalformedHeader},
		{"signature", bad_sig, types.ErrMalformedHeader},
		{"no info", good[:30], types.ErrMalformedHeader},
		{"palette", make_bmp(2, 2, 8, make([]byte, 16), nil), types.ErrUnsupportedVariant},
		{"32bpp", make_bmp(2, 2, 32, make([]byte, 16), nil), types.ErrUnsupportedVariant},
		{"compressed", compressed, types.ErrUnsupportedVariant},
		{"offset overlaps headers", bad_offset, types.ErrMalformedHeader},
		{"offset past end", past_end, types.ErrTruncatedData},
		{"truncated pixels", make_bmp(2, 2, 24, make([]byte, 10), nil), types.ErrTruncatedData},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.data)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestBounds(t *testing.T) {
	b, err := New(2, 3)
	require.NoError(t, err)
	for _, pt := range []image.Point{{2, 0}, {0, 3}, {-1, 0}, {0, -1}, {100, 100}} {
		_, err := b.PixelAt(pt.X, pt.Y)
		require.ErrorIs(t, err, types.ErrOutOfBounds)
		require.ErrorIs(t, b.SetPixel(pt.X, pt.Y, types.White), types.ErrOutOfBounds)
	}
	_, err = b.PixelAt(1, 2)
	require.NoError(t, err)
}

func TestPaddingPreserved(t *testing.T) {
	input := make_bmp(1, 1, 24, []byte{1, 2, 3, 0}, []byte{0, 0})
	// grow the info header by 4 bytes of padding before the pixels
	binary.LittleEndian.PutUint32(input[10:], minDataOffset+4)
	input = append(input[:minDataOffset:minDataOffset], append([]byte{9, 9, 9, 9}, input[minDataOffset:]...)...)
	b, err := Decode(input)
	require.NoError(t, err)
	require.Equal(t, []byte{9, 9, 9, 9}, b.Info.Padding)
	p, err := b.PixelAt(0, 0)
	require.NoError(t, err)
	require.Equal(t, types.Pixel{R: 3, G: 2, B: 1}, p)
	out, err := b.Bytes()
	require.NoError(t, err)
	require.Equal(t, input, out)
}

func TestRowPaddingPreserved(t *testing.T) {
	input := make_bmp(1, 2, 24, []byte{1, 2, 3, 0xaa, 4, 5, 6, 0xbb}, []byte{0, 0})
	b, err := Decode(input)
	require.NoError(t, err)
	out, err := b.Bytes()
	require.NoError(t, err)
	require.Equal(t, input, out)

	require.NoError(t, b.SetPixel(0, 0, types.Pixel{R: 7, G: 8, B: 9}))
	out, err = b.Bytes()
	require.NoError(t, err)
	want := make_bmp(1, 2, 24, []byte{1, 2, 3, 0xaa, 9, 8, 7, 0xbb}, []byte{0, 0})
	require.Equal(t, want, out)

	fresh, err := New(1, 2)
	require.NoError(t, err)
	out, err = fresh.Bytes()
	require.NoError(t, err)
	require.Equal(t, make([]byte, 8), out[minDataOffset:minDataOffset+8])
}
