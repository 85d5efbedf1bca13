/*
Package imager loads BMP, PNG and PPM images into mutable pixel grids, runs
filters over them and writes them back out.

The codecs live in the bmp, png and ppm packages and keep every header and
chunk they parse, so an image that is loaded and saved without changes is
written back byte for byte. The filters package provides point filters
(brightness, contrast, threshold, ...) and window filters (blurs, sharpen,
emboss, edge detection, oil painting) that work on any store.

Other formats can be brought in with Import and written with Export, which
go through the image package and golang.org/x/image.
*/
package imager

import "fmt"

type ImagerVersion struct {
	Major, Minor, Patch uint
}

func (v ImagerVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

var Version = ImagerVersion{0, 3, 0}
