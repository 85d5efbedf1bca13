package meta

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/kovidgoyal/imager/types"
	"github.com/rwcarlsen/goexif/exif"
)

var _ = fmt.Println

// Data represents the metadata for an image.
type Data struct {
	Format           types.Format
	PixelWidth       uint32
	PixelHeight      uint32
	BitsPerComponent uint32
	// Text holds keyword/value pairs from textual chunks.
	Text map[string]string

	exifData       []byte
	exif           *exif.Exif
	exifErr        error
	iccProfileName string
	iccProfileData []byte
	iccProfileErr  error
	mutex          sync.Mutex
}

// Returns an extracted EXIF metadata object from this metadata.
//
// An error is returned if the EXIF profile could not be correctly parsed.
//
// If no EXIF data was found, nil is returned without an error.
func (md *Data) Exif() (*exif.Exif, error) {
	md.mutex.Lock()
	defer md.mutex.Unlock()

	if md.exifErr != nil {
		return nil, md.exifErr
	}
	if md.exif != nil {
		return md.exif, nil
	}
	if len(md.exifData) == 0 {
		return nil, nil
	}
	md.exif, md.exifErr = exif.Decode(bytes.NewReader(md.exifData))
	return md.exif, md.exifErr
}

func (md *Data) SetExifData(data []byte) {
	md.mutex.Lock()
	defer md.mutex.Unlock()
	md.exifData = data
	md.exifErr = nil
	md.exif = nil
}

func (md *Data) ExifData() []byte {
	md.mutex.Lock()
	defer md.mutex.Unlock()
	return md.exifData
}

// ICCProfileData returns the raw (decompressed) ICC profile and the name it
// was stored under.
//
// An error is returned if the ICC profile could not be correctly extracted from
// the image.
//
// If no profile data was found, nil is returned without an error.
func (md *Data) ICCProfileData() (name string, data []byte, err error) {
	md.mutex.Lock()
	defer md.mutex.Unlock()
	return md.iccProfileName, md.iccProfileData, md.iccProfileErr
}

func (md *Data) SetICCProfileData(name string, data []byte) {
	md.mutex.Lock()
	defer md.mutex.Unlock()
	md.iccProfileName = name
	md.iccProfileData = data
	md.iccProfileErr = nil
}

func (md *Data) SetICCProfileError(name string, err error) {
	md.mutex.Lock()
	defer md.mutex.Unlock()
	md.iccProfileName = name
	md.iccProfileData = nil
	md.iccProfileErr = err
}

func (md *Data) String() string {
	md.mutex.Lock()
	defer md.mutex.Unlock()
	var b strings.Builder
	fmt.Fprintf(&b, "%s %dx%d, %d bits per component", md.Format, md.PixelWidth, md.PixelHeight, md.BitsPerComponent)
	for _, k := range slices.Sorted(maps.Keys(md.Text)) {
		fmt.Fprintf(&b, "\n%s: %s", k, md.Text[k])
	}
	if len(md.exifData) > 0 {
		fmt.Fprintf(&b, "\nEXIF: %d bytes", len(md.exifData))
	}
	switch {
	case md.iccProfileErr != nil:
		fmt.Fprintf(&b, "\nICC profile %q: %s", md.iccProfileName, md.iccProfileErr)
	case md.iccProfileData != nil:
		fmt.Fprintf(&b, "\nICC profile %q: %d bytes", md.iccProfileName, len(md.iccProfileData))
	}
	return b.String()
}
