package ingest

import (
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/photoprep/photoprep/internal/config"
	"github.com/photoprep/photoprep/internal/models"
)

// Gateway validates and filters candidate files before classification
type Gateway struct {
	maxFiles int
	maxBytes int64
	accept   []string
	log      *slog.Logger
}

// Result is the outcome of filtering one batch
type Result struct {
	Accepted []models.RawPhoto
	Rejected []*ValidationError
	Dropped  int
	Capacity *CapacityError
}

// NewGateway creates a gateway from widget configuration
func NewGateway(cfg config.Config) *Gateway {
	accept := make([]string, 0, len(cfg.Accept))
	for _, a := range cfg.Accept {
		accept = append(accept, strings.ToLower(strings.TrimSpace(a)))
	}
	return &Gateway{
		maxFiles: cfg.MaxFiles,
		maxBytes: cfg.MaxSizeBytes(),
		accept:   accept,
		log:      slog.Default().With("component", "ingest"),
	}
}

// Filter validates each candidate and truncates the valid subset to the
// remaining capacity, preserving order. It never touches widget state.
func (g *Gateway) Filter(batch []models.RawPhoto, current int) Result {
	var res Result

	valid := make([]models.RawPhoto, 0, len(batch))
	for _, photo := range batch {
		photo = normalize(photo)
		if verr := g.validate(photo); verr != nil {
			g.log.Info("Rejected file", "filename", photo.Name, "reason", verr.Reason)
			res.Rejected = append(res.Rejected, verr)
			continue
		}
		valid = append(valid, photo)
	}

	remaining := g.maxFiles - current
	if remaining < 0 {
		remaining = 0
	}
	if len(valid) > remaining {
		res.Dropped = len(valid) - remaining
		res.Capacity = &CapacityError{MaxFiles: g.maxFiles, Dropped: res.Dropped}
		g.log.Info("Capacity reached", "max_files", g.maxFiles, "current", current, "dropped", res.Dropped)
		valid = valid[:remaining]
	}
	res.Accepted = valid

	return res
}

// Truncate applies only the capacity rule. The widget re-checks capacity
// when a classified batch lands, since other batches may have landed first.
func (g *Gateway) Truncate(n, current int) (keep int, capErr *CapacityError) {
	remaining := g.maxFiles - current
	if remaining < 0 {
		remaining = 0
	}
	if n <= remaining {
		return n, nil
	}
	return remaining, &CapacityError{MaxFiles: g.maxFiles, Dropped: n - remaining}
}

func normalize(photo models.RawPhoto) models.RawPhoto {
	if photo.Size == 0 {
		photo.Size = int64(len(photo.Data))
	}
	if strings.TrimSpace(photo.MIMEType) == "" && len(photo.Data) > 0 {
		head := photo.Data
		if len(head) > 512 {
			head = head[:512]
		}
		photo.MIMEType = http.DetectContentType(head)
	}
	return photo
}

func (g *Gateway) validate(photo models.RawPhoto) *ValidationError {
	if photo.Size == 0 {
		return &ValidationError{Filename: photo.Name, Reason: ReasonEmpty, Detail: "file is empty"}
	}
	if !g.Accepts(photo.MIMEType) {
		return &ValidationError{
			Filename: photo.Name,
			Reason:   ReasonMIMEType,
			Detail:   fmt.Sprintf("file type %q is not accepted", photo.MIMEType),
		}
	}
	if photo.Size > g.maxBytes {
		return &ValidationError{
			Filename: photo.Name,
			Reason:   ReasonTooLarge,
			Detail:   fmt.Sprintf("file is %d KB, maximum is %d KB", photo.Size/1024, g.maxBytes/1024),
		}
	}
	return nil
}

// Accepts reports whether a MIME type matches one of the accept patterns
func (g *Gateway) Accepts(mimeType string) bool {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return false
	}
	mt = strings.ToLower(mt)
	for _, pattern := range g.accept {
		if pattern == "*/*" || pattern == mt {
			return true
		}
		if prefix, ok := strings.CutSuffix(pattern, "/*"); ok && strings.HasPrefix(mt, prefix+"/") {
			return true
		}
	}
	return false
}
