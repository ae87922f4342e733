package protocol

import (
	"fmt"
	"regexp"
)

// MonitorParams is the size of the main monitor in pixels.
type MonitorParams struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Validate rejects negative dimensions.
func (p MonitorParams) Validate() error {
	if p.Width < 0 || p.Height < 0 {
		return fmt.Errorf("monitor params must be non-negative, got %dx%d", p.Width, p.Height)
	}
	return nil
}

// PixelColor is a lowercase "#rrggbb" color.
type PixelColor string

var pixelColorPattern = regexp.MustCompile(`^#[0-9a-f]{6}$`)

// RGB formats 8-bit channels as a PixelColor.
func RGB(r, g, b uint8) PixelColor {
	return PixelColor(fmt.Sprintf("#%02x%02x%02x", r, g, b))
}

// Validate enforces the #rrggbb form.
func (c PixelColor) Validate() error {
	if !pixelColorPattern.MatchString(string(c)) {
		return fmt.Errorf("invalid pixel color %q", string(c))
	}
	return nil
}

type validator interface {
	Validate() error
}
