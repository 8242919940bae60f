package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Ratio is a width:height aspect ratio
type Ratio struct {
	W float64
	H float64
}

// Value returns W/H
func (r Ratio) Value() float64 {
	if r.H == 0 {
		return 0
	}
	return r.W / r.H
}

func (r Ratio) String() string {
	return strconv.FormatFloat(r.W, 'f', -1, 64) + ":" + strconv.FormatFloat(r.H, 'f', -1, 64)
}

// ParseRatio accepts "W:H", "W/H" or a bare decimal such as "1.5".
func ParseRatio(s string) (Ratio, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ratio{}, fmt.Errorf("empty aspect ratio")
	}

	sep := strings.IndexAny(s, ":/")
	if sep < 0 {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Ratio{}, fmt.Errorf("invalid aspect ratio %q: %w", s, err)
		}
		if v <= 0 {
			return Ratio{}, fmt.Errorf("aspect ratio must be positive: %q", s)
		}
		return Ratio{W: v, H: 1}, nil
	}

	w, err := strconv.ParseFloat(strings.TrimSpace(s[:sep]), 64)
	if err != nil {
		return Ratio{}, fmt.Errorf("invalid aspect ratio width %q: %w", s, err)
	}
	h, err := strconv.ParseFloat(strings.TrimSpace(s[sep+1:]), 64)
	if err != nil {
		return Ratio{}, fmt.Errorf("invalid aspect ratio height %q: %w", s, err)
	}
	if w <= 0 || h <= 0 {
		return Ratio{}, fmt.Errorf("aspect ratio must be positive: %q", s)
	}
	return Ratio{W: w, H: h}, nil
}

func (r Ratio) MarshalYAML() (interface{}, error) {
	return r.String(), nil
}

func (r *Ratio) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseRatio(node.Value)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
