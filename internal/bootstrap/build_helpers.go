package bootstrap

import (
	"fmt"

	"clipkeep/internal/clipboard"
	"clipkeep/internal/config"
)

func openClipboard(cfg config.Config, opts Options) (clipboard.Clipboard, error) {
	if opts.ClipboardOverride != nil {
		return opts.ClipboardOverride, nil
	}
	if !opts.Clipboard && !opts.Monitor {
		return nil, nil
	}
	cb, err := clipboard.Open(cfg.Monitor.Clipboard)
	if err != nil {
		return nil, fmt.Errorf("open clipboard (%s): %w", cfg.Monitor.Clipboard, err)
	}
	return cb, nil
}
