package imager

import (
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/kovidgoyal/imager/types"
	"github.com/stretchr/testify/require"
)

var _ = fmt.Print

func fill_with_palette(img draw.Image, colors []color.Color) {
	r := img.Bounds()
	i := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Set(x, y, colors[i%len(colors)])
			i++
		}
	}
}

func TestNRGB(t *testing.T) {
	rect := image.Rect(-1, -1, 15, 15)
	img := NewNRGB(rect)
	fill_with_palette(img, palette.Plan9)
	require.True(t, img.Opaque())
	require.Equal(t, rect, img.Bounds())
	i := 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			c := palette.Plan9[i%len(palette.Plan9)].(color.RGBA)
			want := types.Pixel{R: c.R, G: c.G, B: c.B}
			require.Equal(t, want, img.At(x, y), "pixel at (%d, %d)", x, y)
			i++
		}
	}
	// out of bounds reads are black and writes are dropped
	before := append([]uint8(nil), img.Pix...)
	img.Set(15, 0, color.White)
	img.SetPixel(-2, 0, types.White)
	require.Equal(t, types.Pixel{}, img.At(15, 0))
	if diff := cmp.Diff(before, img.Pix); diff != "" {
		t.Fatalf("out of bounds writes modified pixels:\n%s", diff)
	}

	sub := img.SubImage(image.Rect(2, 3, 5, 7)).(*NRGB)
	require.Equal(t, image.Rect(2, 3, 5, 7), sub.Bounds())
	require.Equal(t, img.At(4, 6), sub.At(4, 6))
	sub.SetPixel(2, 3, types.Pixel{R: 1, G: 2, B: 3})
	require.Equal(t, types.Pixel{R: 1, G: 2, B: 3}, img.PixelAt(2, 3))
	require.Equal(t, &NRGB{}, img.SubImage(image.Rect(100, 100, 200, 200)))
}

func TestNRGBModel(t *testing.T) {
	testCases := []struct {
		name string
		in   color.Color
		want types.Pixel
	}{
		{"pixel", types.Pixel{R: 1, G: 2, B: 3}, types.Pixel{R: 1, G: 2, B: 3}},
		{"opaque", color.RGBA{10, 20, 30, 0xff}, types.Pixel{R: 10, G: 20, B: 30}},
		{"transparent", color.NRGBA{10, 20, 30, 0}, types.Black},
		{"gray", color.Gray{77}, types.Pixel{R: 77, G: 77, B: 77}},
		{"half", color.NRGBA{255, 0, 128, 128}, types.Pixel{R: 255, G: 0, B: 128}},
		{"gray16", color.Gray16{0xffff}, types.White},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, NRGBModel.Convert(tc.in))
		})
	}
}

func TestNativeRoundTrip(t *testing.T) {
	rect := image.Rect(3, 4, 3+7, 4+5*runtime.GOMAXPROCS(0))
	src := NewNRGB(rect)
	fill_with_palette(src, palette.WebSafe)
	for _, format := range []Format{BMP, PNG, PPM} {
		t.Run(format.String(), func(t *testing.T) {
			t.Parallel()
			img, err := FromImage(src, format)
			require.NoError(t, err)
			require.Equal(t, format, img.Format())
			require.Equal(t, rect.Dx(), img.Width())
			require.Equal(t, rect.Dy(), img.Height())
			back, err := img.ToNRGB()
			require.NoError(t, err)
			require.Equal(t, image.Rect(0, 0, rect.Dx(), rect.Dy()), back.Bounds())
			if diff := cmp.Diff(src.Pix, back.Pix); diff != "" {
				t.Fatalf("pixels differ after conversion to %s:\n%s", format, diff)
			}
		})
	}
	t.Run("PBM", func(t *testing.T) {
		t.Parallel()
		img, err := FromImage(src, PBM)
		require.NoError(t, err)
		require.Equal(t, PBM, img.Format())
		// only black and white survive in a bitmap
		for y := range img.Height() {
			for x := range img.Width() {
				p, err := img.PixelAt(x, y)
				require.NoError(t, err)
				if want := src.PixelAt(x+rect.Min.X, y+rect.Min.Y); want == types.White || want == types.Black {
					require.Equal(t, want, p)
				}
			}
		}
	})
}
