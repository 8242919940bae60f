// Package testsupport builds in-memory fixtures shared by package tests.
package testsupport

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/photoprep/photoprep/internal/models"
)

// PNG encodes a solid w x h image
func PNG(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(w, h)); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// JPEG encodes a solid w x h image
func JPEG(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solid(w, h), &jpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// Photo wraps a PNG of the given size as an upload candidate
func Photo(t testing.TB, name string, w, h int) models.RawPhoto {
	t.Helper()
	data := PNG(t, w, h)
	return models.RawPhoto{Name: name, MIMEType: "image/png", Size: int64(len(data)), Data: data}
}

// Batch builds photos named p0.png, p1.png... from (w, h) pairs
func Batch(t testing.TB, dims ...[2]int) []models.RawPhoto {
	t.Helper()
	out := make([]models.RawPhoto, 0, len(dims))
	for i, d := range dims {
		out = append(out, Photo(t, fmt.Sprintf("p%d.png", i), d[0], d[1]))
	}
	return out
}

// Square and Landscape are shorthand dimension pairs for Batch
var (
	Square    = [2]int{40, 40}
	Landscape = [2]int{40, 30}
	Portrait  = [2]int{30, 40}
)

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}
