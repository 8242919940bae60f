package crop

import (
	"fmt"
	"log/slog"
	"time"
)

// Result is the output of a confirmed crop
type Result struct {
	Binary   []byte
	MIMEType string
	Width    int
	Height   int
}

// Producer turns the mounted surface into the confirmed binary
type Producer func(Surface) (Result, error)

// Session is the lifecycle of presenting one photo for reframing.
//
// It is not safe for concurrent use: the owning widget serializes every
// call, including the deferred open callback.
type Session struct {
	state   State
	index   int
	gen     uint64
	stop    func() bool
	surface Surface
	clock   Clock
	delay   time.Duration
	log     *slog.Logger
}

// NewSession returns a closed session whose opens are deferred by delay
func NewSession(clock Clock, delay time.Duration) *Session {
	if clock == nil {
		clock = SystemClock
	}
	return &Session{
		index: -1,
		clock: clock,
		delay: delay,
		log:   slog.Default().With("component", "crop_session"),
	}
}

func (s *Session) State() State {
	return s.state
}

// Index returns the bound photo index, or -1 when closed
func (s *Session) Index() int {
	return s.index
}

// Surface returns the mounted surface, nil unless Ready or Cropping
func (s *Session) Surface() Surface {
	return s.surface
}

// Schedule binds the session to index and arms the open delay. fire is
// called with a generation token when the delay elapses; the owner passes
// it back to Due. With no delay Schedule reports immediate=true and arms
// nothing: the owner mounts right away.
func (s *Session) Schedule(index int, fire func(gen uint64)) (immediate bool, err error) {
	if s.state != Closed {
		return false, fmt.Errorf("schedule %d from %s: %w", index, s.state, ErrInvalidTransition)
	}
	s.gen++
	s.state = Scheduled
	s.index = index
	s.log.Debug("Crop session scheduled", "index", index, "delay", s.delay)

	if s.delay <= 0 {
		return true, nil
	}
	gen := s.gen
	s.stop = s.clock.AfterFunc(s.delay, func() { fire(gen) })
	return false, nil
}

// Due reports whether a fired timer still belongs to the current schedule
func (s *Session) Due(gen uint64) bool {
	return s.state == Scheduled && gen == s.gen
}

// Mount attaches a freshly created surface: Scheduled -> Ready
func (s *Session) Mount(surface Surface) error {
	if s.state != Scheduled {
		surface.Destroy()
		return fmt.Errorf("mount from %s: %w", s.state, ErrInvalidTransition)
	}
	s.stop = nil
	s.surface = surface
	s.state = Ready
	s.log.Debug("Crop surface mounted", "index", s.index, "rect", surface.Rect())
	return nil
}

// Rebind moves the bound index after a removal shifted the photo
func (s *Session) Rebind(index int) {
	if s.state.Open() {
		s.index = index
	}
}

// Interact applies user input to the surface: Ready|Cropping -> Cropping
func (s *Session) Interact(fn func(Surface)) error {
	if !s.state.Mounted() {
		return fmt.Errorf("interact from %s: %w", s.state, ErrInvalidTransition)
	}
	s.state = Cropping
	fn(s.surface)
	return nil
}

// Confirm runs produce in the Applying state. On failure the session goes
// back to Ready so the user can retry; on success it stays in Applying
// until the owner has recorded the result and calls Close.
func (s *Session) Confirm(index int, produce Producer) (Result, error) {
	if !s.state.Mounted() {
		return Result{}, fmt.Errorf("confirm from %s: %w", s.state, ErrInvalidTransition)
	}
	if index != s.index {
		return Result{}, fmt.Errorf("confirm %d while bound to %d: %w", index, s.index, ErrInvalidTransition)
	}

	s.state = Applying
	res, err := produce(s.surface)
	if err == nil && len(res.Binary) == 0 {
		err = fmt.Errorf("empty output")
	}
	if err != nil {
		s.state = Ready
		s.log.Warn("Crop rasterization failed", "index", s.index, "error", err)
		return Result{}, fmt.Errorf("%w: %w", ErrRasterize, err)
	}
	return res, nil
}

// Close discards any in-progress state and destroys the surface
func (s *Session) Close() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	if s.surface != nil {
		s.surface.Destroy()
		s.surface = nil
	}
	if s.state != Closed {
		s.log.Debug("Crop session closed", "index", s.index, "from", s.state)
	}
	s.gen++
	s.state = Closed
	s.index = -1
}

// Rasterizer produces a bounded JPEG from the surface's crop rectangle
func Rasterizer(maxW, maxH, quality int) Producer {
	return func(surface Surface) (Result, error) {
		img, err := surface.Rasterize(maxW, maxH)
		if err != nil {
			return Result{}, err
		}
		data, err := EncodeJPEG(img, quality)
		if err != nil {
			return Result{}, err
		}
		b := img.Bounds()
		return Result{Binary: data, MIMEType: "image/jpeg", Width: b.Dx(), Height: b.Dy()}, nil
	}
}
