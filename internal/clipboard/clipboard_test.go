package clipboard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipkeep/internal/clip"
)

func TestMemoryChannels(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	text, err := m.ReadText(ctx)
	require.NoError(t, err)
	assert.Nil(t, text)

	require.NoError(t, m.WriteText(ctx, []byte("hello")))
	text, _ = m.ReadText(ctx)
	assert.Equal(t, "hello", string(text))

	require.NoError(t, m.WriteImage(ctx, []byte{0x89, 'P', 'N', 'G'}))
	text, _ = m.ReadText(ctx)
	img, _ := m.ReadImage(ctx)
	assert.Nil(t, text, "writing an image replaces text")
	assert.Len(t, img, 4)

	m.SetBoth([]byte("caption"), []byte{1})
	text, _ = m.ReadText(ctx)
	img, _ = m.ReadImage(ctx)
	assert.Equal(t, "caption", string(text))
	assert.Equal(t, []byte{1}, img)

	boom := errors.New("boom")
	m.SetErr(boom)
	_, err = m.ReadText(ctx)
	assert.ErrorIs(t, err, boom)
}

func TestMemoryReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.WriteText(ctx, []byte("abc")))
	got, _ := m.ReadText(ctx)
	got[0] = 'z'
	again, _ := m.ReadText(ctx)
	assert.Equal(t, "abc", string(again))
}

func TestSourceFuncDefaultsToUnknown(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, clip.UnknownSource, Unknown.FrontmostApp(ctx))
	assert.Equal(t, "Terminal", SourceFunc(func(context.Context) string { return " Terminal\n" }).FrontmostApp(ctx))
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open("carrier-pigeon")
	assert.Error(t, err)
}
