package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/photoprep/photoprep/internal/models"
	"github.com/photoprep/photoprep/internal/uploader"
)

// maxMultipartMemory is held in memory before spilling form files to disk
const maxMultipartMemory = 32 << 20

type addPhotosResponse struct {
	uploader.IngestReport
	FetchErrors map[string]string `json:"fetch_errors,omitempty"`
}

func (h *Handler) HandleAddPhotos(w http.ResponseWriter, r *http.Request) {
	widget, ok := h.getWidgetOrError(w, r)
	if !ok {
		return
	}

	var (
		files       []models.RawPhoto
		fetchErrors map[string]string
		err         error
	)
	// JSON bodies carry image URLs, everything else is a multipart upload
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		files, fetchErrors, err = h.readURLUpload(r, widget.Config().DecodeConcurrency)
	} else {
		files, err = h.readFileUpload(r, widget.Config().MaxSizeBytes())
	}
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := widget.Ingest(r.Context(), files)
	if err != nil {
		h.writeWidgetError(w, err)
		return
	}
	h.writeJSON(w, addPhotosResponse{IngestReport: report, FetchErrors: fetchErrors})
}

func (h *Handler) readURLUpload(r *http.Request, concurrency int) ([]models.RawPhoto, map[string]string, error) {
	var request struct {
		ImageURLs []string `json:"image_urls"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		return nil, nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if len(request.ImageURLs) == 0 {
		return nil, nil, fmt.Errorf("image_urls is required")
	}

	files, failed := h.fetcher.FetchAll(r.Context(), request.ImageURLs, concurrency)
	var fetchErrors map[string]string
	if len(failed) > 0 {
		fetchErrors = make(map[string]string, len(failed))
		for u, err := range failed {
			fetchErrors[u] = err.Error()
		}
	}
	return files, fetchErrors, nil
}

func (h *Handler) readFileUpload(r *http.Request, maxBytes int64) ([]models.RawPhoto, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}
	if len(headers) == 0 {
		return nil, fmt.Errorf("no files in form field 'files'")
	}

	files := make([]models.RawPhoto, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", header.Filename, err)
		}
		// one byte past the limit is enough for the gateway to reject it
		data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read file contents %s: %w", header.Filename, err)
		}
		// generic types are left for the gateway to sniff
		mimeType := header.Header.Get("Content-Type")
		if mimeType == "application/octet-stream" {
			mimeType = ""
		}
		files = append(files, models.RawPhoto{
			Name:     header.Filename,
			MIMEType: mimeType,
			Size:     header.Size,
			Data:     data,
		})
	}
	return files, nil
}

func (h *Handler) HandleRemovePhoto(w http.ResponseWriter, r *http.Request) {
	widget, ok := h.getWidgetOrError(w, r)
	if !ok {
		return
	}
	index, ok := h.indexParam(w, r)
	if !ok {
		return
	}
	if err := widget.Remove(index); err != nil {
		h.writeWidgetError(w, err)
		return
	}
	h.writeJSON(w, widget.Snapshot())
}

func (h *Handler) HandlePending(w http.ResponseWriter, r *http.Request) {
	widget, ok := h.getWidgetOrError(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, map[string]int{"pending": widget.PendingCropCount()})
}

func (h *Handler) HandleUploads(w http.ResponseWriter, r *http.Request) {
	widget, ok := h.getWidgetOrError(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, widget.CurrentUploadList())
}

// HandleUpload streams one entry of the upload list as the host form
// would submit it
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	widget, ok := h.getWidgetOrError(w, r)
	if !ok {
		return
	}
	index, ok := h.indexParam(w, r)
	if !ok {
		return
	}
	list := widget.CurrentUploadList()
	if index >= len(list) {
		h.writeError(w, "Upload not found", http.StatusNotFound)
		return
	}

	photo := list[index]
	if photo.IsRemote() {
		http.Redirect(w, r, photo.RemoteURL, http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", photo.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", photo.Name))
	if _, err := w.Write(photo.Data); err != nil {
		h.writeError(w, "Unable to write upload", http.StatusInternalServerError)
	}
}
