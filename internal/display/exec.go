package display

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

func runHyprctlOutput(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "hyprctl", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return nil, fmt.Errorf("hyprctl %v failed: %w", args, err)
		}
		return nil, fmt.Errorf("hyprctl %v failed: %w (%s)", args, err, trimmed)
	}
	return out, nil
}

// runGrim captures a region as PNG on stdout. Stderr is kept apart so it never
// corrupts the image bytes.
func runGrim(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "grim", args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		trimmed := strings.TrimSpace(stderr.String())
		if trimmed == "" {
			return nil, fmt.Errorf("grim %v failed: %w", args, err)
		}
		return nil, fmt.Errorf("grim %v failed: %w (%s)", args, err, trimmed)
	}
	return out, nil
}
