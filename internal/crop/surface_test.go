package crop

import (
	"bytes"
	"image"
	"testing"

	"github.com/photoprep/photoprep/internal/testsupport"
)

func mount(t *testing.T, e *CanvasEngine, w, h int, aspect float64) Surface {
	t.Helper()
	s, err := e.Mount(testsupport.PNG(t, w, h), aspect)
	if err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	return s
}

func TestMountCentersLargestRect(t *testing.T) {
	e := NewCanvasEngine()

	tests := []struct {
		name   string
		w, h   int
		aspect float64
		want   image.Rectangle
	}{
		{"landscape to square", 40, 30, 1, image.Rect(5, 0, 35, 30)},
		{"portrait to square", 30, 40, 1, image.Rect(0, 5, 30, 35)},
		{"square to 2:1", 40, 40, 2, image.Rect(0, 10, 40, 30)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mount(t, e, tt.w, tt.h, tt.aspect)
			defer s.Destroy()
			if got := s.Rect(); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
	if e.Live() != 0 {
		t.Errorf("Expected no live surfaces, got %d", e.Live())
	}
}

func TestMountRejectsBadInput(t *testing.T) {
	e := NewCanvasEngine()
	if _, err := e.Mount([]byte("garbage"), 1); err == nil {
		t.Error("Expected decode error")
	}
	if _, err := e.Mount(testsupport.PNG(t, 4, 4), 0); err == nil {
		t.Error("Expected aspect error")
	}
	if e.Live() != 0 {
		t.Errorf("failed mounts must not count as live, got %d", e.Live())
	}
}

func TestPanClampsInsideImage(t *testing.T) {
	e := NewCanvasEngine()
	s := mount(t, e, 40, 30, 1)
	defer s.Destroy()

	s.Pan(100, 100)
	if got := s.Rect(); got != image.Rect(10, 0, 40, 30) {
		t.Errorf("Expected clamp to right edge, got %v", got)
	}
	s.Pan(-100, 0)
	if got := s.Rect(); got != image.Rect(0, 0, 30, 30) {
		t.Errorf("Expected clamp to left edge, got %v", got)
	}
}

func TestZoomKeepsAspectAndCentre(t *testing.T) {
	e := NewCanvasEngine()
	s := mount(t, e, 40, 40, 1)
	defer s.Destroy()

	s.Zoom(2)
	r := s.Rect()
	if r.Dx() != 20 || r.Dy() != 20 {
		t.Fatalf("Expected 20x20 after zooming in, got %v", r)
	}
	if r.Min != image.Pt(10, 10) {
		t.Errorf("Expected centred rect, got %v", r)
	}

	s.Zoom(0.1)
	if got := s.Rect(); got != image.Rect(0, 0, 40, 40) {
		t.Errorf("Zooming out must stop at the image bounds, got %v", got)
	}
}

func TestSetRectDerivesHeight(t *testing.T) {
	e := NewCanvasEngine()
	s := mount(t, e, 60, 40, 1)
	defer s.Destroy()

	s.SetRect(image.Rect(5, 5, 25, 10))
	if got := s.Rect(); got != image.Rect(5, 5, 25, 25) {
		t.Errorf("Expected 20x20 at (5,5), got %v", got)
	}

	s.SetRect(image.Rect(50, 0, 100, 1))
	if got := s.Rect(); got != image.Rect(20, 0, 60, 40) {
		t.Errorf("Expected oversize rect shrunk and clamped, got %v", got)
	}
}

func TestRasterizeBounded(t *testing.T) {
	e := NewCanvasEngine()
	s := mount(t, e, 40, 30, 1)

	img, err := s.Rasterize(10, 12)
	if err != nil {
		t.Fatalf("Rasterize failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 10 || b.Dy() != 10 {
		t.Errorf("Expected 10x10 output, got %v", b)
	}

	img, err = s.Rasterize(1920, 1080)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 30 || b.Dy() != 30 {
		t.Errorf("small crops must not be upscaled, got %v", b)
	}

	s.Destroy()
	s.Destroy()
	if e.Live() != 0 {
		t.Errorf("Expected 0 live after double destroy, got %d", e.Live())
	}
	if _, err := s.Rasterize(10, 10); err == nil {
		t.Error("Expected error rasterizing a destroyed surface")
	}
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, maxW, maxH int
		wantW, wantH     int
	}{
		{4000, 4000, 1920, 1080, 1080, 1080},
		{3840, 2160, 1920, 1080, 1920, 1080},
		{1000, 3000, 1920, 1080, 360, 1080},
		{500, 500, 1920, 1080, 500, 500},
	}
	for _, tt := range tests {
		w, h := fitWithin(tt.w, tt.h, tt.maxW, tt.maxH)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("fitWithin(%d,%d,%d,%d) = %dx%d, expected %dx%d", tt.w, tt.h, tt.maxW, tt.maxH, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestRasterizerEncodesJPEG(t *testing.T) {
	e := NewCanvasEngine()
	s := mount(t, e, 40, 30, 1)
	defer s.Destroy()

	res, err := Rasterizer(16, 16, 85)(s)
	if err != nil {
		t.Fatalf("Rasterizer failed: %v", err)
	}
	if res.MIMEType != "image/jpeg" || res.Width != 16 || res.Height != 16 {
		t.Errorf("Unexpected result %+v", res)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(res.Binary))
	if err != nil || format != "jpeg" || cfg.Width != 16 {
		t.Errorf("output is not a 16px JPEG: %v %s %+v", err, format, cfg)
	}
}
