package clipboard

import (
	"context"
	"sync"
)

// Memory is an in-process clipboard. Setting one channel clears the other,
// like a real clipboard taking new ownership.
type Memory struct {
	mu    sync.Mutex
	text  []byte
	image []byte
	// Err, when set, is returned by every read.
	Err error
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) ReadText(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return clone(m.text), nil
}

func (m *Memory) ReadImage(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return clone(m.image), nil
}

func (m *Memory) WriteText(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text, m.image = clone(data), nil
	return nil
}

func (m *Memory) WriteImage(_ context.Context, png []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text, m.image = nil, clone(png)
	return nil
}

// SetBoth fills both channels at once, as some apps do when copying rich
// content.
func (m *Memory) SetBoth(text, image []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text, m.image = clone(text), clone(image)
}

// SetErr makes subsequent reads fail with err; nil restores normal reads.
func (m *Memory) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}

func clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}
