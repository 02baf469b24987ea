package clipboard

import (
	"context"
	"errors"
	"fmt"

	atotto "github.com/atotto/clipboard"
)

// Command shells out to pbcopy, xclip, xsel, wl-clipboard or the Windows
// clipboard through atotto/clipboard. It carries text only.
type Command struct{}

func NewCommand() (*Command, error) {
	if atotto.Unsupported {
		return nil, errors.New("no clipboard utility found (install xclip, xsel or wl-clipboard)")
	}
	return &Command{}, nil
}

func (*Command) ReadText(context.Context) ([]byte, error) {
	s, err := atotto.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read clipboard text: %w", err)
	}
	if s == "" {
		return nil, nil
	}
	return []byte(s), nil
}

func (*Command) ReadImage(context.Context) ([]byte, error) {
	return nil, nil
}

func (*Command) WriteText(_ context.Context, data []byte) error {
	if err := atotto.WriteAll(string(data)); err != nil {
		return fmt.Errorf("write clipboard text: %w", err)
	}
	return nil
}

func (*Command) WriteImage(context.Context, []byte) error {
	return ErrUnsupported
}
