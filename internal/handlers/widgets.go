package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/photoprep/photoprep/internal/config"
	"github.com/photoprep/photoprep/internal/manifest"
	"github.com/photoprep/photoprep/internal/models"
	"github.com/photoprep/photoprep/internal/uploader"
)

type createWidgetRequest struct {
	Mode              string                 `json:"mode"`
	MaxFiles          int                    `json:"max_files"`
	TargetAspectRatio string                 `json:"target_aspect_ratio"`
	Existing          []models.ExistingPhoto `json:"existing"`
}

func (h *Handler) HandleCreateWidget(w http.ResponseWriter, r *http.Request) {
	var request createWidgetRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	cfg := h.base
	switch request.Mode {
	case "", uploader.ModeUpload:
		if len(request.Existing) > 0 {
			h.writeError(w, "existing items require mode 'editor'", http.StatusBadRequest)
			return
		}
	case uploader.ModeEditor:
		cfg.AllowExisting = true
	default:
		h.writeError(w, "Invalid mode. Must be 'upload' or 'editor'", http.StatusBadRequest)
		return
	}
	if request.MaxFiles > 0 {
		cfg.MaxFiles = request.MaxFiles
	}
	if request.TargetAspectRatio != "" {
		ratio, err := config.ParseRatio(request.TargetAspectRatio)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		cfg.TargetAspectRatio = ratio
	}
	if err := cfg.Validate(); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	widget := uploader.New(cfg, uploader.Options{
		Engine:   h.engine,
		Previews: h.previews,
		Notifier: uploader.NewRecorder(eventBacklog),
	})
	if len(request.Existing) > 0 {
		if _, err := widget.Preload(request.Existing); err != nil {
			h.writeWidgetError(w, err)
			return
		}
	}
	h.widgets.Set(widget)

	slog.Info("Widget created", "widget_id", widget.ID, "mode", widget.Mode, "max_files", cfg.MaxFiles, "aspect", cfg.TargetAspectRatio)
	h.writeJSONStatus(w, http.StatusCreated, widget.Snapshot())
}

func (h *Handler) HandleListWidgets(w http.ResponseWriter, r *http.Request) {
	list := h.widgets.List()
	views := make([]uploader.View, 0, len(list))
	for _, widget := range list {
		views = append(views, widget.Snapshot())
	}
	h.writeJSON(w, views)
}

func (h *Handler) HandleGetWidget(w http.ResponseWriter, r *http.Request) {
	widget, ok := h.getWidgetOrError(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, widget.Snapshot())
}

func (h *Handler) HandleDeleteWidget(w http.ResponseWriter, r *http.Request) {
	widget, ok := h.getWidgetOrError(w, r)
	if !ok {
		return
	}
	h.widgets.Delete(widget.ID)
	widget.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	widget, ok := h.getWidgetOrError(w, r)
	if !ok {
		return
	}
	events := []models.Event{}
	if rec, ok := widget.Notifier().(*uploader.Recorder); ok {
		if drained := rec.Drain(); drained != nil {
			events = drained
		}
	}
	h.writeJSON(w, events)
}

func (h *Handler) HandleManifest(w http.ResponseWriter, r *http.Request) {
	widget, ok := h.getWidgetOrError(w, r)
	if !ok {
		return
	}

	rows, err := manifest.Build(widget.Export())
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	switch r.URL.Query().Get("format") {
	case "", "yaml":
		m := manifest.New(widget.Config().TargetAspectRatio.String(), rows)
		if err := manifest.WriteYAML(&buf, m); err != nil {
			h.writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
	case "parquet":
		if err := manifest.WriteParquet(&buf, rows); err != nil {
			h.writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.apache.parquet")
		w.Header().Set("Content-Disposition", `attachment; filename="manifest.parquet"`)
	default:
		h.writeError(w, "Invalid format. Must be 'yaml' or 'parquet'", http.StatusBadRequest)
		return
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("Unable to write manifest", "err", err)
	}
}
