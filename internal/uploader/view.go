package uploader

import (
	"image"

	"github.com/photoprep/photoprep/internal/crop"
	"github.com/photoprep/photoprep/internal/models"
)

// View is a read-only rendering of the widget for the host UI
type View struct {
	ID       string                 `json:"id"`
	Mode     string                 `json:"mode"`
	MaxFiles int                    `json:"max_files"`
	Photos   []models.PhotoMetadata `json:"photos"`
	Pending  int                    `json:"pending"`
	Session  SessionView            `json:"session"`
}

// SessionView describes the crop session. Rect and Bounds are set only
// while a surface is mounted.
type SessionView struct {
	State  crop.State       `json:"state"`
	Index  int              `json:"index"`
	Rect   *image.Rectangle `json:"rect,omitempty"`
	Bounds *image.Rectangle `json:"bounds,omitempty"`
}

func (w *Widget) Snapshot() View {
	w.mu.Lock()
	defer w.mu.Unlock()

	v := View{
		ID:       w.ID,
		Mode:     w.Mode,
		MaxFiles: w.cfg.MaxFiles,
		Photos:   w.store.Snapshot(),
		Pending:  w.store.PendingCount(),
		Session: SessionView{
			State: w.session.State(),
			Index: w.session.Index(),
		},
	}
	if s := w.session.Surface(); s != nil {
		rect, bounds := s.Rect(), s.Bounds()
		v.Session.Rect = &rect
		v.Session.Bounds = &bounds
	}
	return v
}

// SessionState returns the crop session state and bound index
func (w *Widget) SessionState() (crop.State, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session.State(), w.session.Index()
}

// Export returns metadata and the upload list read under one lock, so
// index i of one always describes index i of the other
func (w *Widget) Export() ([]models.PhotoMetadata, []models.RawPhoto) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.store.Snapshot(), w.store.UploadList()
}
