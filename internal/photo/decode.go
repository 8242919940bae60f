// Package photo decodes uploaded image binaries with their EXIF orientation
// applied, so width and height match what the viewer displays.
package photo

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Orientation returns the EXIF orientation tag (1..8), or 1 when the data
// carries no usable EXIF block.
func Orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	o, err := tag.Int(0)
	if err != nil || o < 1 || o > 8 {
		return 1
	}
	return o
}

// Dimensions decodes only the header and returns the displayed size
func Dimensions(data []byte) (width, height int, format string, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, format, fmt.Errorf("image has no pixels (%dx%d)", cfg.Width, cfg.Height)
	}
	width, height = cfg.Width, cfg.Height
	if format == "jpeg" && swapsAxes(Orientation(data)) {
		width, height = height, width
	}
	return width, height, format, nil
}

// Decode returns the full image, upright
func Decode(data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if format != "jpeg" {
		return img, nil
	}
	return orient(img, Orientation(data)), nil
}

func swapsAxes(o int) bool {
	return o >= 5 && o <= 8
}

func orient(img image.Image, o int) image.Image {
	switch o {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	}
	return img
}
