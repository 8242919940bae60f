package crop

import (
	"errors"
	"fmt"
)

// State of a crop session
type State int

const (
	Closed State = iota
	Scheduled
	Ready
	Cropping
	Applying
)

var stateNames = map[State]string{
	Closed:    "closed",
	Scheduled: "scheduled",
	Ready:     "ready",
	Cropping:  "cropping",
	Applying:  "applying",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown crop session state %q", text)
}

// Open reports whether a session is bound to a photo
func (s State) Open() bool {
	return s != Closed
}

// Mounted reports whether the crop surface exists and accepts input
func (s State) Mounted() bool {
	return s == Ready || s == Cropping
}

var (
	ErrInvalidTransition = errors.New("invalid crop session transition")
	ErrRasterize         = errors.New("crop rasterization failed")
)
