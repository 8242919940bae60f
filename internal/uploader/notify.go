package uploader

import (
	"log/slog"
	"sync"

	"github.com/photoprep/photoprep/internal/models"
)

// Notifier receives pushes for host owned toasts. Calls happen while the
// widget is locked; implementations must not call back into the widget.
type Notifier interface {
	BatchClassified(ev models.Event)
	CropApplied(ev models.Event)
	ValidationFailed(ev models.Event)
}

// LogNotifier writes notifications to the structured log
type LogNotifier struct {
	Log *slog.Logger
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Log != nil {
		return n.Log
	}
	return slog.Default()
}

func (n LogNotifier) BatchClassified(ev models.Event) {
	n.logger().Info("Batch classified", "accepted", ev.Count, "pending", ev.Pending, "message", ev.Message)
}

func (n LogNotifier) CropApplied(ev models.Event) {
	n.logger().Info("Crop applied", "index", ev.Index, "pending", ev.Pending)
}

func (n LogNotifier) ValidationFailed(ev models.Event) {
	n.logger().Warn("Files rejected", "count", ev.Count, "message", ev.Message)
}

// Recorder queues notifications until the host drains them
type Recorder struct {
	events []models.Event
	limit  int
	mu     sync.Mutex
}

// NewRecorder keeps at most limit undrained events, dropping the oldest
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

func (r *Recorder) BatchClassified(ev models.Event)  { r.push(ev) }
func (r *Recorder) CropApplied(ev models.Event)      { r.push(ev) }
func (r *Recorder) ValidationFailed(ev models.Event) { r.push(ev) }

func (r *Recorder) push(ev models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	if r.limit > 0 && len(r.events) > r.limit {
		r.events = r.events[len(r.events)-r.limit:]
	}
}

// Drain returns and clears the queued events
func (r *Recorder) Drain() []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}
