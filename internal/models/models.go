package models

import "time"

// RawPhoto represents a user supplied image file prior to processing
type RawPhoto struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Size     int64  `json:"size"`
	Data     []byte `json:"-"`

	// RemoteURL is set for items that already live in backend storage
	// (editor widgets). Such items carry no Data.
	RemoteURL string `json:"remote_url,omitempty"`
}

// IsRemote reports whether the photo is a pre-existing remote item
func (p RawPhoto) IsRemote() bool {
	return p.RemoteURL != "" && len(p.Data) == 0
}

// PhotoMetadata is the classification and crop state of one RawPhoto.
// It always sits at the same index as its photo in the upload list.
type PhotoMetadata struct {
	ID                string `json:"id"`
	SourcePreviewURL  string `json:"source_preview_url"`
	Width             int    `json:"width"`
	Height            int    `json:"height"`
	NeedsCrop         bool   `json:"needs_crop"`
	Edited            bool   `json:"edited"`
	Existing          bool   `json:"existing,omitempty"`
	CroppedPreviewURL string `json:"cropped_preview_url,omitempty"`
	CroppedBinary     []byte `json:"-"`
	CroppedMIMEType   string `json:"cropped_mime_type,omitempty"`
}

// Pending reports whether the photo still awaits a confirmed crop
func (m PhotoMetadata) Pending() bool {
	return m.NeedsCrop && !m.Edited
}

// AspectRatio returns width/height, or 0 when the height is unknown
func (m PhotoMetadata) AspectRatio() float64 {
	if m.Height == 0 {
		return 0
	}
	return float64(m.Width) / float64(m.Height)
}

// CropPatch carries the fields replaced on a confirmed crop
type CropPatch struct {
	Binary     []byte
	MIMEType   string
	PreviewURL string
}

// ExistingPhoto describes an item already persisted by the host, shown
// alongside new uploads in editor widgets
type ExistingPhoto struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Event is a notification pushed to the host form
type Event struct {
	Kind      string    `json:"kind"` // "batch_classified", "crop_applied", "validation_failed"
	Index     int       `json:"index,omitempty"`
	Count     int       `json:"count,omitempty"`
	Pending   int       `json:"pending"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	EventBatchClassified  = "batch_classified"
	EventCropApplied      = "crop_applied"
	EventValidationFailed = "validation_failed"
)
