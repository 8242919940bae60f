package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/photoprep/photoprep/internal/models"
)

var (
	ErrIndexOutOfRange = errors.New("photo index out of range")
	ErrNotPending      = errors.New("photo is not awaiting a crop")
)

// Entry is one index-aligned pair
type Entry struct {
	Photo models.RawPhoto
	Meta  models.PhotoMetadata
}

// Store owns the photo metadata and the upload list as two parallel
// arrays. Every mutation touches both under one lock.
type Store struct {
	metas   []models.PhotoMetadata
	uploads []models.RawPhoto
	mu      sync.RWMutex
}

func New() *Store {
	return &Store{}
}

// Append concatenates a batch; existing indices are unchanged
func (s *Store) Append(entries []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.metas = append(s.metas, e.Meta)
		s.uploads = append(s.uploads, e.Photo)
	}
}

// Update records a confirmed crop at index: the metadata gains the cropped
// binary and preview, and the upload entry is replaced by the cropped
// binary under the original filename.
func (s *Store) Update(index int, patch models.CropPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.metas) {
		return fmt.Errorf("update %d: %w", index, ErrIndexOutOfRange)
	}
	meta := s.metas[index]
	if !meta.Pending() {
		return fmt.Errorf("update %d: %w", index, ErrNotPending)
	}

	meta.Edited = true
	meta.CroppedBinary = patch.Binary
	meta.CroppedMIMEType = patch.MIMEType
	meta.CroppedPreviewURL = patch.PreviewURL
	s.metas[index] = meta

	original := s.uploads[index]
	s.uploads[index] = models.RawPhoto{
		Name:     original.Name,
		MIMEType: patch.MIMEType,
		Size:     int64(len(patch.Binary)),
		Data:     patch.Binary,
	}
	return nil
}

// Remove deletes index from both arrays; higher entries shift down by one
func (s *Store) Remove(index int) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.metas) {
		return Entry{}, fmt.Errorf("remove %d: %w", index, ErrIndexOutOfRange)
	}
	removed := Entry{Photo: s.uploads[index], Meta: s.metas[index]}
	s.metas = append(s.metas[:index:index], s.metas[index+1:]...)
	s.uploads = append(s.uploads[:index:index], s.uploads[index+1:]...)
	return removed, nil
}

// Reset empties both arrays and returns what was held
func (s *Store) Reset() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, len(s.metas))
	for i := range s.metas {
		out[i] = Entry{Photo: s.uploads[i], Meta: s.metas[i]}
	}
	s.metas = nil
	s.uploads = nil
	return out
}

// Len returns the number of photos
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.metas)
}

// At returns the pair at index
func (s *Store) At(index int) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.metas) {
		return Entry{}, fmt.Errorf("get %d: %w", index, ErrIndexOutOfRange)
	}
	return Entry{Photo: s.uploads[index], Meta: s.metas[index]}, nil
}

// PendingCount is derived on every read
func (s *Store) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.metas {
		if m.Pending() {
			n++
		}
	}
	return n
}

// PendingIndices returns the pending set in ascending order
func (s *Store) PendingIndices() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []int
	for i, m := range s.metas {
		if m.Pending() {
			out = append(out, i)
		}
	}
	return out
}

// Snapshot returns a copy of the metadata array
func (s *Store) Snapshot() []models.PhotoMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PhotoMetadata, len(s.metas))
	copy(out, s.metas)
	return out
}

// UploadList returns a copy of the upload list
func (s *Store) UploadList() []models.RawPhoto {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.RawPhoto, len(s.uploads))
	copy(out, s.uploads)
	return out
}
