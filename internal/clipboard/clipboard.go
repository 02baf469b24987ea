// Package clipboard adapts OS clipboards to the two-channel read/write
// interface the monitor polls.
package clipboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported is returned when a backend cannot handle a format.
var ErrUnsupported = errors.New("clipboard format not supported by backend")

// Clipboard exposes text and image as two independent channels. Reads of
// an empty channel return (nil, nil).
type Clipboard interface {
	ReadText(ctx context.Context) ([]byte, error)
	ReadImage(ctx context.Context) ([]byte, error)
	WriteText(ctx context.Context, data []byte) error
	WriteImage(ctx context.Context, png []byte) error
}

const (
	BackendAuto    = "auto"
	BackendNative  = "native"
	BackendCommand = "command"
)

// Open returns the backend named by kind. "auto" prefers the native
// backend and falls back to the command-line one when the native clipboard
// cannot be initialised (for example a headless session without cgo).
func Open(kind string) (Clipboard, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case BackendNative:
		return NewNative()
	case BackendCommand:
		return NewCommand()
	case "", BackendAuto:
		native, nerr := NewNative()
		if nerr == nil {
			return native, nil
		}
		cmd, cerr := NewCommand()
		if cerr != nil {
			return nil, fmt.Errorf("no clipboard backend available: native: %v; command: %w", nerr, cerr)
		}
		return cmd, nil
	default:
		return nil, fmt.Errorf("unknown clipboard backend %q", kind)
	}
}
