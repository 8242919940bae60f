package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HandlePreview serves a preview reference minted by the registry
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	blob, ok := h.previews.Get(chi.URLParam(r, "ref"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", blob.MIMEType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := w.Write(blob.Data); err != nil {
		slog.Error("Unable to write preview", "err", err)
	}
}

func (h *Handler) HandleHealthcheck(w http.ResponseWriter, r *http.Request) {
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Unable to write healthcheck", "err", err)
	}
}
