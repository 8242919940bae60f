package uploader

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/photoprep/photoprep/internal/classify"
	"github.com/photoprep/photoprep/internal/config"
	"github.com/photoprep/photoprep/internal/crop"
	"github.com/photoprep/photoprep/internal/ingest"
	"github.com/photoprep/photoprep/internal/models"
	"github.com/photoprep/photoprep/internal/photo"
	"github.com/photoprep/photoprep/internal/preview"
	"github.com/photoprep/photoprep/internal/sequencer"
	"github.com/photoprep/photoprep/internal/store"
)

var (
	ErrNoSession          = errors.New("no crop session is ready")
	ErrStaleIndex         = errors.New("photo is no longer awaiting a crop")
	ErrExistingNotAllowed = errors.New("widget does not accept pre-existing items")
)

const (
	ModeUpload = "upload"
	ModeEditor = "editor"
)

// Options injects collaborators; zero values get working defaults
type Options struct {
	Clock    crop.Clock
	Engine   crop.Engine
	Previews *preview.Registry
	Notifier Notifier
}

// Widget is the single controller behind one upload form. It owns the
// metadata store and the crop session and is the only writer to either.
// Every public method and every timer callback runs under one mutex.
type Widget struct {
	ID        string
	Mode      string
	CreatedAt time.Time

	cfg        config.Config
	gateway    *ingest.Gateway
	classifier *classify.Classifier
	store      *store.Store
	session    *crop.Session
	engine     crop.Engine
	previews   *preview.Registry
	notifier   Notifier
	log        *slog.Logger

	mu sync.Mutex
}

// IngestReport summarizes one Ingest call for the host
type IngestReport struct {
	Accepted  int                       `json:"accepted"`
	NeedsCrop int                       `json:"needs_crop"`
	Rejected  []*ingest.ValidationError `json:"rejected,omitempty"`
	Dropped   int                       `json:"dropped"`
	Capacity  *ingest.CapacityError     `json:"capacity,omitempty"`
	Pending   int                       `json:"pending"`
}

func New(cfg config.Config, opts Options) *Widget {
	if opts.Previews == nil {
		opts.Previews = preview.NewRegistry("")
	}
	if opts.Engine == nil {
		opts.Engine = crop.NewCanvasEngine()
	}
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{}
	}
	mode := ModeUpload
	if cfg.AllowExisting {
		mode = ModeEditor
	}

	id := uuid.NewString()
	return &Widget{
		ID:         id,
		Mode:       mode,
		CreatedAt:  time.Now(),
		cfg:        cfg,
		gateway:    ingest.NewGateway(cfg),
		classifier: classify.New(cfg, opts.Previews),
		store:      store.New(),
		session:    crop.NewSession(opts.Clock, cfg.OpenDelay),
		engine:     opts.Engine,
		previews:   opts.Previews,
		notifier:   opts.Notifier,
		log:        slog.Default().With("component", "widget", "widget_id", id),
	}
}

// Config returns the options the widget was built with
func (w *Widget) Config() config.Config {
	return w.cfg
}

func (w *Widget) Notifier() Notifier {
	return w.notifier
}

// Ingest validates, classifies and appends a batch of files. Validation
// and capacity problems are reported, not returned; the error is reserved
// for failures of the whole call such as a cancelled context.
func (w *Widget) Ingest(ctx context.Context, files []models.RawPhoto) (IngestReport, error) {
	w.mu.Lock()
	current := w.store.Len()
	w.mu.Unlock()

	res := w.gateway.Filter(files, current)
	report := IngestReport{
		Rejected: res.Rejected,
		Dropped:  res.Dropped,
		Capacity: res.Capacity,
	}

	var batch classify.Batch
	if len(res.Accepted) > 0 {
		var err error
		batch, err = w.classifier.Classify(ctx, res.Accepted)
		if err != nil {
			return report, fmt.Errorf("ingest: %w", err)
		}
		report.Rejected = append(report.Rejected, batch.Rejected...)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	// other batches may have landed while this one was decoding
	keep, capErr := w.gateway.Truncate(len(batch.Items), w.store.Len())
	if capErr != nil {
		for _, it := range batch.Items[keep:] {
			w.previews.Revoke(it.Meta.SourcePreviewURL)
		}
		report.Dropped += capErr.Dropped
		report.Capacity = &ingest.CapacityError{MaxFiles: capErr.MaxFiles, Dropped: report.Dropped}
	}

	entries := make([]store.Entry, 0, keep)
	for _, it := range batch.Items[:keep] {
		entries = append(entries, store.Entry{Photo: it.Photo, Meta: it.Meta})
		if it.Meta.NeedsCrop {
			report.NeedsCrop++
		}
	}
	w.store.Append(entries)
	report.Accepted = len(entries)
	report.Pending = w.store.PendingCount()

	w.log.Info("Ingested batch",
		"accepted", report.Accepted,
		"needs_crop", report.NeedsCrop,
		"rejected", len(report.Rejected),
		"dropped", report.Dropped,
		"pending", report.Pending)

	if len(report.Rejected) > 0 {
		w.notifier.ValidationFailed(models.Event{
			Kind:      models.EventValidationFailed,
			Count:     len(report.Rejected),
			Pending:   report.Pending,
			Message:   rejectedMessage(report.Rejected),
			CreatedAt: time.Now(),
		})
	}
	w.notifier.BatchClassified(models.Event{
		Kind:      models.EventBatchClassified,
		Count:     report.Accepted,
		Pending:   report.Pending,
		Message:   batchMessage(report),
		CreatedAt: time.Now(),
	})

	w.advance(-1)
	return report, nil
}

// Preload seeds an editor widget with items the host already stores.
// They count against capacity and never need cropping.
func (w *Widget) Preload(existing []models.ExistingPhoto) (dropped int, err error) {
	if !w.cfg.AllowExisting {
		return 0, ErrExistingNotAllowed
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	keep, capErr := w.gateway.Truncate(len(existing), w.store.Len())
	if capErr != nil {
		dropped = capErr.Dropped
	}
	entries := make([]store.Entry, 0, keep)
	for _, e := range existing[:keep] {
		name := e.Name
		if name == "" {
			name = e.URL[strings.LastIndex(e.URL, "/")+1:]
		}
		entries = append(entries, store.Entry{
			Photo: models.RawPhoto{Name: name, RemoteURL: e.URL},
			Meta: models.PhotoMetadata{
				ID:               uuid.NewString(),
				SourcePreviewURL: e.URL,
				Width:            e.Width,
				Height:           e.Height,
				Existing:         true,
			},
		})
	}
	w.store.Append(entries)
	w.log.Info("Preloaded existing items", "count", len(entries), "dropped", dropped)
	return dropped, nil
}

// OpenCrop schedules a session for a specific pending photo, replacing
// any session open on another photo
func (w *Widget) OpenCrop(index int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !sequencer.Valid(w.store.Snapshot(), index) {
		return fmt.Errorf("open crop %d: %w", index, ErrStaleIndex)
	}
	if w.session.State().Open() {
		if w.session.Index() == index {
			return nil
		}
		w.session.Close()
	}
	w.schedule(index)
	return nil
}

// CancelCrop closes the session without touching the store
func (w *Widget) CancelCrop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.session.Close()
}

func (w *Widget) PanCrop(dx, dy int) error {
	return w.interact(func(s crop.Surface) { s.Pan(dx, dy) })
}

func (w *Widget) ZoomCrop(factor float64) error {
	return w.interact(func(s crop.Surface) { s.Zoom(factor) })
}

func (w *Widget) SetCropRect(r image.Rectangle) error {
	return w.interact(func(s crop.Surface) { s.SetRect(r) })
}

func (w *Widget) interact(fn func(crop.Surface)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.session.State().Mounted() {
		return ErrNoSession
	}
	return w.session.Interact(fn)
}

// ApplyCrop rasterizes the current crop rectangle and records it
func (w *Widget) ApplyCrop(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.session.State().Mounted() {
		return ErrNoSession
	}
	index := w.session.Index()
	produce := crop.Rasterizer(w.cfg.MaxOutputWidth, w.cfg.MaxOutputHeight, w.cfg.JPEGQuality)
	return w.confirm(index, produce)
}

// ConfirmCrop records a crop the host rasterized itself. The open session
// must be bound to index.
func (w *Widget) ConfirmCrop(ctx context.Context, index int, blob models.RawPhoto) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.session.State().Mounted() {
		return ErrNoSession
	}
	if w.session.Index() != index {
		return fmt.Errorf("confirm crop %d: session is bound to %d: %w", index, w.session.Index(), ErrStaleIndex)
	}
	return w.confirm(index, func(crop.Surface) (crop.Result, error) {
		return blobResult(blob)
	})
}

func (w *Widget) confirm(index int, produce crop.Producer) error {
	if !sequencer.Valid(w.store.Snapshot(), index) {
		w.session.Close()
		return fmt.Errorf("confirm crop %d: %w", index, ErrStaleIndex)
	}

	res, err := w.session.Confirm(index, produce)
	if err != nil {
		return err
	}

	ref := w.previews.Create(res.Binary, res.MIMEType)
	patch := models.CropPatch{Binary: res.Binary, MIMEType: res.MIMEType, PreviewURL: ref}
	if err := w.store.Update(index, patch); err != nil {
		w.previews.Revoke(ref)
		w.session.Close()
		return err
	}
	w.session.Close()

	pending := w.store.PendingCount()
	w.log.Info("Crop applied", "index", index, "width", res.Width, "height", res.Height, "bytes", len(res.Binary), "pending", pending)
	w.notifier.CropApplied(models.Event{
		Kind:      models.EventCropApplied,
		Index:     index,
		Pending:   pending,
		CreatedAt: time.Now(),
	})

	w.advance(index)
	return nil
}

// Remove deletes a photo and keeps the open session on the same photo
func (w *Widget) Remove(index int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	removed, err := w.store.Remove(index)
	if err != nil {
		return err
	}
	w.revoke(removed)

	if w.session.State().Open() {
		bound := w.session.Index()
		switch {
		case index < bound:
			w.session.Rebind(bound - 1)
		case index == bound:
			w.session.Close()
			w.advance(index - 1)
		}
	}
	w.log.Info("Removed photo", "index", index, "name", removed.Photo.Name, "remaining", w.store.Len())
	return nil
}

// Reset empties the widget
func (w *Widget) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.session.Close()
	for _, e := range w.store.Reset() {
		w.revoke(e)
	}
	w.log.Info("Widget reset")
}

// CurrentUploadList is pulled by the host form at submission time
func (w *Widget) CurrentUploadList() []models.RawPhoto {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.store.UploadList()
}

// PendingCropCount is pulled by the host form to gate submission
func (w *Widget) PendingCropCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.store.PendingCount()
}

// advance opens the next pending photo when no session is open
func (w *Widget) advance(after int) {
	if w.session.State().Open() {
		return
	}
	next, ok := sequencer.Next(w.store.Snapshot(), after)
	if !ok {
		return
	}
	w.schedule(next)
}

func (w *Widget) schedule(index int) {
	immediate, err := w.session.Schedule(index, w.onOpenDue)
	if err != nil {
		w.log.Error("Failed to schedule crop session", "index", index, "error", err)
		return
	}
	if immediate {
		w.mount()
	}
}

func (w *Widget) onOpenDue(gen uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.session.Due(gen) {
		return
	}
	w.mount()
}

// mount creates the crop surface for the scheduled index, or rescans when
// that photo left the pending set while the open was deferred
func (w *Widget) mount() {
	index := w.session.Index()
	metas := w.store.Snapshot()
	if !sequencer.Valid(metas, index) {
		w.log.Debug("Deferred crop target is stale, rescanning", "index", index)
		w.session.Close()
		w.advance(-1)
		return
	}

	entry, err := w.store.At(index)
	if err != nil {
		w.session.Close()
		return
	}
	surface, err := w.engine.Mount(entry.Photo.Data, w.cfg.TargetAspectRatio.Value())
	if err != nil {
		w.log.Error("Failed to mount crop surface", "index", index, "name", entry.Photo.Name, "error", err)
		w.session.Close()
		// only look right so a photo that never mounts cannot loop back on itself
		if next, ok := sequencer.After(metas, index); ok {
			w.schedule(next)
		}
		return
	}
	if err := w.session.Mount(surface); err != nil {
		w.log.Error("Failed to attach crop surface", "index", index, "error", err)
		w.session.Close()
	}
}

func (w *Widget) revoke(e store.Entry) {
	if !e.Meta.Existing {
		w.previews.Revoke(e.Meta.SourcePreviewURL)
	}
	w.previews.Revoke(e.Meta.CroppedPreviewURL)
}

func blobResult(blob models.RawPhoto) (crop.Result, error) {
	if len(blob.Data) == 0 {
		return crop.Result{}, errors.New("empty crop blob")
	}
	width, height, format, err := photo.Dimensions(blob.Data)
	if err != nil {
		return crop.Result{}, err
	}
	mimeType := blob.MIMEType
	if mimeType == "" {
		mimeType = http.DetectContentType(blob.Data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/" + format
	}
	return crop.Result{Binary: blob.Data, MIMEType: mimeType, Width: width, Height: height}, nil
}

func rejectedMessage(rejected []*ingest.ValidationError) string {
	names := make([]string, 0, len(rejected))
	for _, r := range rejected {
		names = append(names, r.Filename)
	}
	return fmt.Sprintf("%d file(s) skipped: %s", len(rejected), strings.Join(names, ", "))
}

func batchMessage(r IngestReport) string {
	var parts []string
	if r.Accepted > 0 {
		parts = append(parts, fmt.Sprintf("%d photo(s) added", r.Accepted))
	}
	if r.NeedsCrop > 0 {
		parts = append(parts, fmt.Sprintf("%d need adjusting", r.NeedsCrop))
	}
	if n := len(r.Rejected); n > 0 {
		parts = append(parts, fmt.Sprintf("%d rejected", n))
	}
	if r.Dropped > 0 {
		parts = append(parts, fmt.Sprintf("%d over the limit of %d", r.Dropped, r.Capacity.MaxFiles))
	}
	return strings.Join(parts, ", ")
}
