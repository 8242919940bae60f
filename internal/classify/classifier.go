package classify

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/photoprep/photoprep/internal/config"
	"github.com/photoprep/photoprep/internal/ingest"
	"github.com/photoprep/photoprep/internal/models"
	"github.com/photoprep/photoprep/internal/photo"
	"github.com/photoprep/photoprep/internal/preview"
)

// Classifier decodes natural dimensions and flags photos whose aspect ratio
// is off target
type Classifier struct {
	target      float64
	tolerance   float64
	concurrency int
	previews    *preview.Registry
	log         *slog.Logger
}

// Item pairs an accepted photo with its freshly seeded metadata
type Item struct {
	Photo models.RawPhoto
	Meta  models.PhotoMetadata
}

// Batch is the ordered outcome of classifying one accepted batch. Items
// keep submission order; undecodable files are in Rejected.
type Batch struct {
	Items    []Item
	Rejected []*ingest.ValidationError
}

// NeedsCropCount returns how many items were flagged
func (b Batch) NeedsCropCount() int {
	n := 0
	for _, it := range b.Items {
		if it.Meta.NeedsCrop {
			n++
		}
	}
	return n
}

func New(cfg config.Config, previews *preview.Registry) *Classifier {
	return &Classifier{
		target:      cfg.TargetAspectRatio.Value(),
		tolerance:   cfg.Tolerance,
		concurrency: cfg.DecodeConcurrency,
		previews:    previews,
		log:         slog.Default().With("component", "classify"),
	}
}

// NeedsCrop applies the tolerance rule to natural pixel dimensions
func (c *Classifier) NeedsCrop(width, height int) bool {
	if width <= 0 || height <= 0 {
		return true
	}
	return math.Abs(float64(width)/float64(height)-c.target) > c.tolerance
}

type decoded struct {
	width, height int
	err           error
}

// Classify fully decodes every photo concurrently and returns once the whole
// batch is done. A cancelled context fails the batch as a whole.
func (c *Classifier) Classify(ctx context.Context, photos []models.RawPhoto) (Batch, error) {
	results := make([]decoded, len(photos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i := range photos {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// a readable header is not enough, the crop surface needs pixels
			img, err := photo.Decode(photos[i].Data)
			if err != nil {
				results[i] = decoded{err: err}
				return nil
			}
			b := img.Bounds()
			results[i] = decoded{width: b.Dx(), height: b.Dy()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Batch{}, fmt.Errorf("classify batch: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Batch{}, fmt.Errorf("classify batch: %w", err)
	}

	var batch Batch
	for i, res := range results {
		p := photos[i]
		if res.err != nil {
			c.log.Warn("Failed to decode image", "filename", p.Name, "error", res.err)
			batch.Rejected = append(batch.Rejected, &ingest.ValidationError{
				Filename: p.Name,
				Reason:   ingest.ReasonDecodeFailure,
				Detail:   "file could not be read as an image",
				Err:      res.err,
			})
			continue
		}

		meta := models.PhotoMetadata{
			ID:        uuid.NewString(),
			Width:     res.width,
			Height:    res.height,
			NeedsCrop: c.NeedsCrop(res.width, res.height),
		}
		if c.previews != nil {
			meta.SourcePreviewURL = c.previews.Create(p.Data, p.MIMEType)
		}
		batch.Items = append(batch.Items, Item{Photo: p, Meta: meta})
	}

	c.log.Debug("Classified batch", "items", len(batch.Items), "needs_crop", batch.NeedsCropCount(), "rejected", len(batch.Rejected))
	return batch, nil
}
