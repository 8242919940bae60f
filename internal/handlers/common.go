package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/photoprep/photoprep/internal/config"
	"github.com/photoprep/photoprep/internal/crop"
	"github.com/photoprep/photoprep/internal/images"
	"github.com/photoprep/photoprep/internal/preview"
	"github.com/photoprep/photoprep/internal/storage"
	"github.com/photoprep/photoprep/internal/store"
	"github.com/photoprep/photoprep/internal/uploader"
)

// eventBacklog bounds undrained notifications per widget
const eventBacklog = 100

type Handler struct {
	widgets  *storage.WidgetStore
	previews *preview.Registry
	fetcher  *images.Fetcher
	engine   crop.Engine
	base     config.Config
}

// New builds a handler whose widgets start from base
func New(base config.Config) *Handler {
	return &Handler{
		widgets:  storage.New(),
		previews: preview.NewRegistry(preview.DefaultPrefix),
		fetcher:  images.NewFetcher(base.MaxSizeBytes()),
		engine:   crop.NewCanvasEngine(),
		base:     base,
	}
}

// Router wires every route
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthcheck", h.HandleHealthcheck)
	r.Get(preview.DefaultPrefix+"{ref}", h.HandlePreview)

	r.Route("/api/widgets", func(r chi.Router) {
		r.Post("/", h.HandleCreateWidget)
		r.Get("/", h.HandleListWidgets)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetWidget)
			r.Delete("/", h.HandleDeleteWidget)
			r.Get("/events", h.HandleEvents)
			r.Get("/manifest", h.HandleManifest)

			r.Post("/photos", h.HandleAddPhotos)
			r.Delete("/photos/{index}", h.HandleRemovePhoto)
			r.Get("/pending", h.HandlePending)
			r.Get("/uploads", h.HandleUploads)
			r.Get("/uploads/{index}", h.HandleUpload)

			r.Post("/crop/apply", h.HandleApplyCrop)
			r.Post("/crop/{index}", h.HandleOpenCrop)
			r.Post("/crop/{index}/confirm", h.HandleConfirmCrop)
			r.Put("/crop", h.HandleAdjustCrop)
			r.Delete("/crop", h.HandleCancelCrop)
		})
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message)
	} else {
		slog.Debug(message, "status", code)
	}
	http.Error(w, message, code)
}

// writeWidgetError maps widget errors onto status codes
func (h *Handler) writeWidgetError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrIndexOutOfRange):
		code = http.StatusNotFound
	case errors.Is(err, uploader.ErrNoSession),
		errors.Is(err, uploader.ErrStaleIndex),
		errors.Is(err, store.ErrNotPending),
		errors.Is(err, crop.ErrInvalidTransition):
		code = http.StatusConflict
	case errors.Is(err, crop.ErrRasterize):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, uploader.ErrExistingNotAllowed):
		code = http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = http.StatusServiceUnavailable
	}
	h.writeError(w, err.Error(), code)
}

// Widget helpers
func (h *Handler) getWidgetOrError(w http.ResponseWriter, r *http.Request) (*uploader.Widget, bool) {
	widget, exists := h.widgets.Get(chi.URLParam(r, "id"))
	if !exists {
		h.writeError(w, "Widget not found", http.StatusNotFound)
		return nil, false
	}
	return widget, true
}

func (h *Handler) indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		h.writeError(w, "Invalid index", http.StatusBadRequest)
		return 0, false
	}
	return index, true
}
