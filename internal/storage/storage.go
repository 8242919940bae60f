package storage

import (
	"sort"
	"sync"

	"github.com/photoprep/photoprep/internal/uploader"
)

// WidgetStore keeps the live widgets of a server process by id
type WidgetStore struct {
	widgets map[string]*uploader.Widget
	mu      sync.RWMutex
}

func New() *WidgetStore {
	return &WidgetStore{
		widgets: make(map[string]*uploader.Widget),
	}
}

func (s *WidgetStore) Get(id string) (*uploader.Widget, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, exists := s.widgets[id]
	return w, exists
}

func (s *WidgetStore) Set(w *uploader.Widget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.widgets[w.ID] = w
}

// List returns widgets oldest first
func (s *WidgetStore) List() []*uploader.Widget {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*uploader.Widget, 0, len(s.widgets))
	for _, w := range s.widgets {
		result = append(result, w)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Delete removes and returns a widget so the caller can reset it
func (s *WidgetStore) Delete(id string) (*uploader.Widget, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, exists := s.widgets[id]
	delete(s.widgets, id)
	return w, exists
}
