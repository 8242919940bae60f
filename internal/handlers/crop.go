package handlers

import (
	"encoding/json"
	"image"
	"io"
	"net/http"

	"github.com/photoprep/photoprep/internal/models"
)

type adjustCropRequest struct {
	Rect *struct {
		X      int `json:"x"`
		Y      int `json:"y"`
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"rect"`
	Pan *struct {
		DX int `json:"dx"`
		DY int `json:"dy"`
	} `json:"pan"`
	Zoom float64 `json:"zoom"`
}

func (h *Handler) HandleOpenCrop(w http.ResponseWriter, r *http.Request) {
	widget, ok := h.getWidgetOrError(w, r)
	if !ok {
		return
	}
	index, ok := h.indexParam(w, r)
	if !ok {
		return
	}
	if err := widget.OpenCrop(index); err != nil {
		h.writeWidgetError(w, err)
		return
	}
	h.writeJSON(w, widget.Snapshot())
}

func (h *Handler) HandleCancelCrop(w http.ResponseWriter, r *http.Request) {
	widget, ok := h.getWidgetOrError(w, r)
	if !ok {
		return
	}
	widget.CancelCrop()
	h.writeJSON(w, widget.Snapshot())
}

// HandleAdjustCrop applies rect, then pan, then zoom; any may be omitted
func (h *Handler) HandleAdjustCrop(w http.ResponseWriter, r *http.Request) {
	widget, ok := h.getWidgetOrError(w, r)
	if !ok {
		return
	}
	var request adjustCropRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	if request.Rect != nil {
		rc := request.Rect
		if err := widget.SetCropRect(image.Rect(rc.X, rc.Y, rc.X+rc.Width, rc.Y+rc.Height)); err != nil {
			h.writeWidgetError(w, err)
			return
		}
	}
	if request.Pan != nil {
		if err := widget.PanCrop(request.Pan.DX, request.Pan.DY); err != nil {
			h.writeWidgetError(w, err)
			return
		}
	}
	if request.Zoom != 0 {
		if err := widget.ZoomCrop(request.Zoom); err != nil {
			h.writeWidgetError(w, err)
			return
		}
	}
	h.writeJSON(w, widget.Snapshot())
}

func (h *Handler) HandleApplyCrop(w http.ResponseWriter, r *http.Request) {
	widget, ok := h.getWidgetOrError(w, r)
	if !ok {
		return
	}
	if err := widget.ApplyCrop(r.Context()); err != nil {
		h.writeWidgetError(w, err)
		return
	}
	h.writeJSON(w, widget.Snapshot())
}

// HandleConfirmCrop accepts a crop rasterized by the client as the raw
// request body
func (h *Handler) HandleConfirmCrop(w http.ResponseWriter, r *http.Request) {
	widget, ok := h.getWidgetOrError(w, r)
	if !ok {
		return
	}
	index, ok := h.indexParam(w, r)
	if !ok {
		return
	}

	maxBytes := widget.Config().MaxSizeBytes()
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		h.writeError(w, "Failed to read crop: "+err.Error(), http.StatusBadRequest)
		return
	}
	if int64(len(data)) > maxBytes {
		h.writeError(w, "Crop too large", http.StatusRequestEntityTooLarge)
		return
	}

	blob := models.RawPhoto{MIMEType: r.Header.Get("Content-Type"), Size: int64(len(data)), Data: data}
	if err := widget.ConfirmCrop(r.Context(), index, blob); err != nil {
		h.writeWidgetError(w, err)
		return
	}
	h.writeJSON(w, widget.Snapshot())
}
