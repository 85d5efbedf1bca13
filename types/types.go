package types

import (
	"fmt"
)

var _ = fmt.Print

// Format is an image file format.
type Format int

// Image file formats. BMP, PNG and PPM have native codecs, the rest are
// only reachable through Import and Export.
const (
	UNKNOWN Format = iota
	BMP
	PNG
	PPM
	PBM
	JPEG
	GIF
	TIFF
	WEBP
)

var FormatExts = map[string]Format{
	"bmp":  BMP,
	"png":  PNG,
	"ppm":  PPM,
	"pnm":  PPM,
	"pbm":  PBM,
	"jpg":  JPEG,
	"jpeg": JPEG,
	"gif":  GIF,
	"tif":  TIFF,
	"tiff": TIFF,
	"webp": WEBP,
}

var formatNames = map[Format]string{
	BMP:  "BMP",
	PNG:  "PNG",
	PPM:  "PPM",
	PBM:  "PBM",
	JPEG: "JPEG",
	GIF:  "GIF",
	TIFF: "TIFF",
	WEBP: "WEBP",
}

func (f Format) String() string {
	return formatNames[f]
}

// Native reports whether f has a codec that can parse and re-serialize it.
func (f Format) Native() bool {
	switch f {
	case BMP, PNG, PPM, PBM:
		return true
	}
	return false
}
