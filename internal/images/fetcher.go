package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/photoprep/photoprep/internal/models"
)

// Fetcher retrieves remote images so they can enter a widget like local
// files
type Fetcher struct {
	HTTPClient *http.Client

	// MaxBytes caps each download; the gateway applies the real size
	// limit, this only bounds memory
	MaxBytes int64
}

// NewFetcher creates a new image fetcher
func NewFetcher(maxBytes int64) *Fetcher {
	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		MaxBytes: maxBytes,
	}
}

// Fetch downloads one image. The returned photo is not validated.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (models.RawPhoto, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return models.RawPhoto{}, fmt.Errorf("invalid image URL %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return models.RawPhoto{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return models.RawPhoto{}, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.RawPhoto{}, fmt.Errorf("image URL returned status %d", resp.StatusCode)
	}

	// one extra byte so oversize files still fail the size check
	limit := f.MaxBytes
	if limit <= 0 {
		limit = 50 << 20
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return models.RawPhoto{}, fmt.Errorf("failed to read image data: %w", err)
	}

	mimeType := ""
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			mimeType = mt
		}
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" {
		name = u.Host
	}

	slog.Debug("Fetched remote image", "url", rawURL, "bytes", len(data), "mime_type", mimeType)
	return models.RawPhoto{
		Name:     name,
		MIMEType: mimeType,
		Size:     int64(len(data)),
		Data:     data,
	}, nil
}

// FetchAll downloads urls concurrently and keeps their order. Failed
// downloads are reported per URL rather than failing the batch.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string, concurrency int) ([]models.RawPhoto, map[string]error) {
	photos := make([]models.RawPhoto, len(urls))
	errs := make([]error, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, u := range urls {
		g.Go(func() error {
			photos[i], errs[i] = f.Fetch(gctx, strings.TrimSpace(u))
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.RawPhoto, 0, len(urls))
	failed := make(map[string]error)
	for i, err := range errs {
		if err != nil {
			slog.Warn("Failed to fetch image", "url", urls[i], "error", err)
			failed[urls[i]] = err
			continue
		}
		out = append(out, photos[i])
	}
	return out, failed
}
