package clipboard

import (
	"context"
	"fmt"
	"sync"

	xclip "golang.design/x/clipboard"
)

var (
	initOnce sync.Once
	initErr  error
)

// Native talks to the platform clipboard through golang.design/x/clipboard
// and supports both text and PNG images.
type Native struct{}

func NewNative() (*Native, error) {
	initOnce.Do(func() { initErr = xclip.Init() })
	if initErr != nil {
		return nil, fmt.Errorf("init native clipboard: %w", initErr)
	}
	return &Native{}, nil
}

func (*Native) ReadText(context.Context) ([]byte, error) {
	return xclip.Read(xclip.FmtText), nil
}

func (*Native) ReadImage(context.Context) ([]byte, error) {
	return xclip.Read(xclip.FmtImage), nil
}

func (*Native) WriteText(_ context.Context, data []byte) error {
	xclip.Write(xclip.FmtText, data)
	return nil
}

func (*Native) WriteImage(_ context.Context, png []byte) error {
	xclip.Write(xclip.FmtImage, png)
	return nil
}
