package crop

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"sync/atomic"

	"golang.org/x/image/draw"

	"github.com/photoprep/photoprep/internal/photo"
)

// Surface is a mounted crop engine instance for one image. The crop
// rectangle is kept in source pixel coordinates and always has the target
// aspect ratio.
type Surface interface {
	Bounds() image.Rectangle
	Rect() image.Rectangle
	SetRect(r image.Rectangle)
	Pan(dx, dy int)
	Zoom(factor float64)
	Rasterize(maxW, maxH int) (image.Image, error)
	Destroy()
}

// Engine creates crop surfaces
type Engine interface {
	Mount(data []byte, aspect float64) (Surface, error)
}

var errDestroyed = errors.New("crop surface destroyed")

// CanvasEngine mounts in-memory surfaces and counts live instances
type CanvasEngine struct {
	live atomic.Int64
}

func NewCanvasEngine() *CanvasEngine {
	return &CanvasEngine{}
}

// Live returns the number of surfaces not yet destroyed
func (e *CanvasEngine) Live() int {
	return int(e.live.Load())
}

func (e *CanvasEngine) Mount(data []byte, aspect float64) (Surface, error) {
	if aspect <= 0 {
		return nil, fmt.Errorf("mount crop surface: invalid aspect %v", aspect)
	}
	img, err := photo.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("mount crop surface: %w", err)
	}
	s := &canvasSurface{engine: e, src: img, aspect: aspect}
	b := img.Bounds()
	largest := s.fit(b.Dx(), int(math.Round(float64(b.Dx())/aspect)), b.Min.X, b.Min.Y)
	s.rect = s.centered(largest.Dx(), largest.Dy())
	e.live.Add(1)
	return s, nil
}

type canvasSurface struct {
	engine *CanvasEngine
	src    image.Image
	aspect float64
	rect   image.Rectangle
}

func (s *canvasSurface) Bounds() image.Rectangle {
	if s.src == nil {
		return image.Rectangle{}
	}
	return s.src.Bounds()
}

func (s *canvasSurface) Rect() image.Rectangle {
	return s.rect
}

// SetRect keeps the requested width and origin, derives the height from the
// aspect ratio and clamps the result inside the image
func (s *canvasSurface) SetRect(r image.Rectangle) {
	if s.src == nil {
		return
	}
	r = r.Canon()
	w := r.Dx()
	if w < 1 {
		w = 1
	}
	s.rect = s.fit(w, int(math.Round(float64(w)/s.aspect)), r.Min.X, r.Min.Y)
}

func (s *canvasSurface) Pan(dx, dy int) {
	if s.src == nil {
		return
	}
	s.rect = s.clamp(s.rect.Add(image.Pt(dx, dy)))
}

// Zoom scales the view around the rectangle centre; factors above 1 zoom in
func (s *canvasSurface) Zoom(factor float64) {
	if s.src == nil || factor <= 0 {
		return
	}
	c := image.Pt((s.rect.Min.X+s.rect.Max.X)/2, (s.rect.Min.Y+s.rect.Max.Y)/2)
	w := int(math.Round(float64(s.rect.Dx()) / factor))
	w, h := s.fitSize(max(w, 1), int(math.Round(float64(w)/s.aspect)))
	s.rect = s.clamp(image.Rect(c.X-w/2, c.Y-h/2, c.X-w/2+w, c.Y-h/2+h))
}

// Rasterize renders the crop rectangle, downscaled to fit maxW x maxH
func (s *canvasSurface) Rasterize(maxW, maxH int) (image.Image, error) {
	if s.src == nil {
		return nil, errDestroyed
	}
	if s.rect.Empty() {
		return nil, fmt.Errorf("empty crop rectangle")
	}
	w, h := fitWithin(s.rect.Dx(), s.rect.Dy(), maxW, maxH)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), s.src, s.rect, draw.Src, nil)
	return dst, nil
}

func (s *canvasSurface) Destroy() {
	if s.src == nil {
		return
	}
	s.src = nil
	s.rect = image.Rectangle{}
	s.engine.live.Add(-1)
}

// fitSize shrinks w x h (already at the target aspect) to fit the image
func (s *canvasSurface) fitSize(w, h int) (int, int) {
	b := s.src.Bounds()
	if h < 1 {
		h = 1
	}
	if w > b.Dx() {
		w = b.Dx()
		h = int(math.Round(float64(w) / s.aspect))
	}
	if h > b.Dy() {
		h = b.Dy()
		w = int(math.Round(float64(h) * s.aspect))
	}
	return max(w, 1), max(h, 1)
}

// fit sizes the rectangle and places it at (x, y), clamped inside the image
func (s *canvasSurface) fit(w, h, x, y int) image.Rectangle {
	w, h = s.fitSize(w, h)
	return s.clamp(image.Rect(x, y, x+w, y+h))
}

func (s *canvasSurface) centered(w, h int) image.Rectangle {
	b := s.src.Bounds()
	x := b.Min.X + (b.Dx()-w)/2
	y := b.Min.Y + (b.Dy()-h)/2
	return image.Rect(x, y, x+w, y+h)
}

func (s *canvasSurface) clamp(r image.Rectangle) image.Rectangle {
	b := s.src.Bounds()
	if r.Min.X < b.Min.X {
		r = r.Add(image.Pt(b.Min.X-r.Min.X, 0))
	}
	if r.Min.Y < b.Min.Y {
		r = r.Add(image.Pt(0, b.Min.Y-r.Min.Y))
	}
	if r.Max.X > b.Max.X {
		r = r.Add(image.Pt(b.Max.X-r.Max.X, 0))
	}
	if r.Max.Y > b.Max.Y {
		r = r.Add(image.Pt(0, b.Max.Y-r.Max.Y))
	}
	return r
}

// fitWithin returns w x h scaled down (never up) to fit maxW x maxH
func fitWithin(w, h, maxW, maxH int) (int, int) {
	scale := 1.0
	if maxW > 0 && w > maxW {
		scale = math.Min(scale, float64(maxW)/float64(w))
	}
	if maxH > 0 && h > maxH {
		scale = math.Min(scale, float64(maxH)/float64(h))
	}
	if scale == 1 {
		return w, h
	}
	outW := int(math.Round(float64(w) * scale))
	outH := int(math.Round(float64(h) * scale))
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}
	return outW, outH
}

// EncodeJPEG compresses a rasterized crop
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
