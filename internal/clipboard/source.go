package clipboard

import (
	"context"
	"strings"

	"clipkeep/internal/clip"
)

// SourceResolver names the application that owns the clipboard.
type SourceResolver interface {
	FrontmostApp(ctx context.Context) string
}

// SourceFunc adapts a function to SourceResolver.
type SourceFunc func(ctx context.Context) string

func (f SourceFunc) FrontmostApp(ctx context.Context) string {
	name := strings.TrimSpace(f(ctx))
	if name == "" {
		return clip.UnknownSource
	}
	return name
}

// Unknown always reports clip.UnknownSource.
var Unknown SourceResolver = SourceFunc(func(context.Context) string { return "" })
