// Package domain holds the value types that flow through the synthesis pipeline.
package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrInvalidBoard is returned when a BoardSource cannot start a run.
	ErrInvalidBoard = errors.New("invalid board source")
)

// BoardSource identifies the board page to synthesize a crawler for.
// It is treated as immutable once a run starts.
type BoardSource struct {
	Name          string `json:"name"                     yaml:"name"`
	URL           string `json:"url"                      yaml:"url"`
	Region        string `json:"region,omitempty"         yaml:"region,omitempty"`
	SampledMarkup string `json:"sampled_markup,omitempty" yaml:"sampled_markup,omitempty"`
}

// Validate checks that the board carries a name and an absolute http(s) URL.
func (b BoardSource) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidBoard)
	}
	u, err := url.Parse(b.URL)
	if err != nil {
		return fmt.Errorf("%w: parse url: %w", ErrInvalidBoard, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url %q must be absolute http(s)", ErrInvalidBoard, b.URL)
	}
	return nil
}

// HasMarkup reports whether a markup sample was supplied with the board.
func (b BoardSource) HasMarkup() bool {
	return strings.TrimSpace(b.SampledMarkup) != ""
}
