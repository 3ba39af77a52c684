package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidDuration is wrapped by every duration field error.
var ErrInvalidDuration = errors.New("invalid duration")

// ParseDurationField parses a Go duration string for the settings field at
// path. Blank means zero; negative values are rejected.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w %q", path, ErrInvalidDuration, raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: %w %q: must be >= 0", path, ErrInvalidDuration, raw)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def for blank or zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}
