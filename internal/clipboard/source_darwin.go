//go:build darwin

package clipboard

import (
	"context"
	"os/exec"
	"time"
)

const frontmostScript = `tell application "System Events" to get name of first application process whose frontmost is true`

// Frontmost asks System Events for the frontmost application. Any failure
// yields clip.UnknownSource.
var Frontmost SourceResolver = SourceFunc(func(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	out, err := exec.CommandContext(ctx, "osascript", "-e", frontmostScript).Output()
	if err != nil {
		return ""
	}
	return string(out)
})
