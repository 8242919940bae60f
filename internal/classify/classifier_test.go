package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/photoprep/photoprep/internal/config"
	"github.com/photoprep/photoprep/internal/ingest"
	"github.com/photoprep/photoprep/internal/models"
	"github.com/photoprep/photoprep/internal/preview"
	"github.com/photoprep/photoprep/internal/testsupport"
)

func TestNeedsCrop(t *testing.T) {
	c := New(config.Default(), nil)

	tests := []struct {
		name     string
		w, h     int
		expected bool
	}{
		{"exact square", 500, 500, false},
		{"within tolerance", 1000, 995, false},
		{"just outside tolerance", 1000, 985, true},
		{"landscape 4:3", 400, 300, true},
		{"portrait", 300, 400, true},
		{"zero height", 10, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.NeedsCrop(tt.w, tt.h); got != tt.expected {
				t.Errorf("NeedsCrop(%d, %d) = %v, expected %v", tt.w, tt.h, got, tt.expected)
			}
		})
	}
}

func TestNeedsCropCustomTarget(t *testing.T) {
	cfg := config.Default()
	cfg.TargetAspectRatio = config.Ratio{W: 4, H: 3}
	c := New(cfg, nil)
	if c.NeedsCrop(400, 300) {
		t.Error("4:3 photo should satisfy a 4:3 target")
	}
	if !c.NeedsCrop(300, 300) {
		t.Error("square photo should not satisfy a 4:3 target")
	}
}

func TestClassifyPreservesSubmissionOrder(t *testing.T) {
	previews := preview.NewRegistry("")
	cfg := config.Default()
	cfg.DecodeConcurrency = 3
	c := New(cfg, previews)

	photos := testsupport.Batch(t,
		testsupport.Square, testsupport.Landscape, testsupport.Square,
		testsupport.Portrait, testsupport.Landscape,
	)

	batch, err := c.Classify(context.Background(), photos)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if len(batch.Items) != 5 {
		t.Fatalf("Expected 5 items, got %d", len(batch.Items))
	}

	wantCrop := []bool{false, true, false, true, true}
	for i, it := range batch.Items {
		if it.Photo.Name != photos[i].Name {
			t.Errorf("item %d: expected %s, got %s", i, photos[i].Name, it.Photo.Name)
		}
		if it.Meta.NeedsCrop != wantCrop[i] {
			t.Errorf("item %d: expected NeedsCrop=%v", i, wantCrop[i])
		}
		if it.Meta.Edited {
			t.Errorf("item %d: Edited must start false", i)
		}
		if it.Meta.ID == "" || it.Meta.SourcePreviewURL == "" {
			t.Errorf("item %d: missing id or preview: %+v", i, it.Meta)
		}
		if _, ok := previews.Get(it.Meta.SourcePreviewURL); !ok {
			t.Errorf("item %d: preview not registered", i)
		}
	}
	if batch.NeedsCropCount() != 3 {
		t.Errorf("Expected 3 flagged, got %d", batch.NeedsCropCount())
	}
	if batch.Items[1].Meta.Width != 40 || batch.Items[1].Meta.Height != 30 {
		t.Errorf("Unexpected dimensions %dx%d", batch.Items[1].Meta.Width, batch.Items[1].Meta.Height)
	}
}

func TestClassifySkipsUndecodableFiles(t *testing.T) {
	c := New(config.Default(), nil)

	photos := []models.RawPhoto{
		testsupport.Photo(t, "good.png", 10, 10),
		{Name: "broken.png", MIMEType: "image/png", Size: 5, Data: []byte("nopng")},
		testsupport.Photo(t, "wide.png", 20, 10),
	}

	batch, err := c.Classify(context.Background(), photos)
	if err != nil {
		t.Fatalf("decode failures must not be fatal: %v", err)
	}
	if len(batch.Items) != 2 || batch.Items[0].Photo.Name != "good.png" || batch.Items[1].Photo.Name != "wide.png" {
		t.Fatalf("Unexpected items %+v", batch.Items)
	}
	if len(batch.Rejected) != 1 {
		t.Fatalf("Expected 1 rejection, got %d", len(batch.Rejected))
	}
	rej := batch.Rejected[0]
	if rej.Filename != "broken.png" || rej.Reason != ingest.ReasonDecodeFailure {
		t.Errorf("Unexpected rejection %+v", rej)
	}
	if rej.Unwrap() == nil {
		t.Error("Expected wrapped decode error")
	}
}

func TestClassifyRejectsTruncatedPixelData(t *testing.T) {
	c := New(config.Default(), nil)

	// signature plus IHDR: the header parses, the pixels are missing
	headerOnly := testsupport.PNG(t, 40, 30)[:33]
	photos := []models.RawPhoto{
		{Name: "cut.png", MIMEType: "image/png", Size: 33, Data: headerOnly},
		testsupport.Photo(t, "wide.png", 40, 30),
	}

	batch, err := c.Classify(context.Background(), photos)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if len(batch.Items) != 1 || batch.Items[0].Photo.Name != "wide.png" {
		t.Fatalf("Expected only wide.png to be accepted, got %+v", batch.Items)
	}
	if len(batch.Rejected) != 1 || batch.Rejected[0].Filename != "cut.png" || batch.Rejected[0].Reason != ingest.ReasonDecodeFailure {
		t.Errorf("Expected cut.png rejected as a decode failure, got %+v", batch.Rejected)
	}
}

func TestClassifyCanceled(t *testing.T) {
	previews := preview.NewRegistry("")
	c := New(config.Default(), previews)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Classify(ctx, testsupport.Batch(t, testsupport.Square, testsupport.Landscape))
	if err == nil {
		t.Fatal("Expected error for canceled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if previews.Len() != 0 {
		t.Errorf("Canceled batch must not register previews, got %d", previews.Len())
	}
}
