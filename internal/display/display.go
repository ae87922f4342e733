// Package display reads main-monitor geometry and pixels from a Hyprland
// session through hyprctl and grim.
package display

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"strings"

	"github.com/rbright/sysprobe/internal/protocol"
)

// Monitor is the subset of `hyprctl -j monitors` used here.
type Monitor struct {
	Name    string `json:"name"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Focused bool   `json:"focused"`
}

// Hyprland serves the monitor role from the running compositor.
type Hyprland struct{}

// MainMonitor returns the focused monitor, or the first one when none is focused.
func (Hyprland) MainMonitor(ctx context.Context) (Monitor, error) {
	output, err := runHyprctlOutput(ctx, "-j", "monitors")
	if err != nil {
		return Monitor{}, err
	}

	var monitors []Monitor
	if err := json.Unmarshal(output, &monitors); err != nil {
		return Monitor{}, fmt.Errorf("decode hyprctl monitors json: %w", err)
	}
	if len(monitors) == 0 {
		return Monitor{}, fmt.Errorf("hyprctl monitors returned no outputs")
	}
	main := monitors[0]
	for _, mon := range monitors {
		if mon.Focused {
			main = mon
			break
		}
	}
	main.Name = strings.TrimSpace(main.Name)
	return main, nil
}

func (h Hyprland) MainMonitorParams(ctx context.Context) (protocol.MonitorParams, error) {
	mon, err := h.MainMonitor(ctx)
	if err != nil {
		return protocol.MonitorParams{}, err
	}
	return protocol.MonitorParams{Width: mon.Width, Height: mon.Height}, nil
}

// MainMonitorPixelColor captures the 1x1 region at (x, y) relative to the
// main monitor's origin.
func (h Hyprland) MainMonitorPixelColor(ctx context.Context, x, y int) (protocol.PixelColor, error) {
	mon, err := h.MainMonitor(ctx)
	if err != nil {
		return "", err
	}
	if x < 0 || y < 0 || x >= mon.Width || y >= mon.Height {
		return "", fmt.Errorf("pixel (%d,%d) is outside the %dx%d monitor %s", x, y, mon.Width, mon.Height, mon.Name)
	}

	geometry := fmt.Sprintf("%d,%d 1x1", mon.X+x, mon.Y+y)
	data, err := runGrim(ctx, "-g", geometry, "-t", "png", "-")
	if err != nil {
		return "", err
	}
	return decodePixel(data)
}

func decodePixel(data []byte) (protocol.PixelColor, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode grim png: %w", err)
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return "", fmt.Errorf("grim returned an empty image")
	}
	r, g, b, _ := img.At(bounds.Min.X, bounds.Min.Y).RGBA()
	return protocol.RGB(uint8(r>>8), uint8(g>>8), uint8(b>>8)), nil
}
