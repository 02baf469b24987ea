package monitor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"clipkeep/internal/clip"
	"clipkeep/internal/clipboard"
	"clipkeep/internal/imagestore"
	"clipkeep/internal/storage"
)

type harness struct {
	cb     *clipboard.Memory
	store  *storage.SQLiteStore
	images *imagestore.Store
	mon    *Monitor
	app    string
	sec    int64
}

func newHarness(t *testing.T, wrap func(Store) Store) *harness {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStore(filepath.Join(dir, "clipkeep.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	images, err := imagestore.New(filepath.Join(dir, "images"), store)
	require.NoError(t, err)
	store.AttachImages(images)

	h := &harness{cb: clipboard.NewMemory(), store: store, images: images, app: "Terminal", sec: 1_700_000_000}
	var s Store = store
	if wrap != nil {
		s = wrap(store)
	}
	h.mon = New(h.cb, s, images,
		WithSource(clipboard.SourceFunc(func(context.Context) string { return h.app })),
		WithClock(func() time.Time {
			h.sec++
			return time.Unix(h.sec, 0)
		}))
	return h
}

func (h *harness) tick(t *testing.T) Outcome {
	t.Helper()
	out, err := h.mon.Tick(context.Background())
	require.NoError(t, err)
	return out
}

func (h *harness) history(t *testing.T) []clip.Item {
	t.Helper()
	items, err := h.store.GetHistory(context.Background(), 100, 0)
	require.NoError(t, err)
	return items
}

func (h *harness) imageFiles(t *testing.T) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(h.images.Dir(), "*.png"))
	require.NoError(t, err)
	return matches
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 0x80, 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// noisePNG does not compress, so its encoded size tracks w*h*4.
func noisePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rng.Read(img.Pix)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func pixelHash(t *testing.T, data []byte) string {
	t.Helper()
	d, err := imagestore.Decode(data)
	require.NoError(t, err)
	return d.Hash
}

func TestTickCapturesTextOnce(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	assert.Equal(t, OutcomeEmpty, h.tick(t))

	require.NoError(t, h.cb.WriteText(ctx, []byte("https://example.com/docs")))
	assert.Equal(t, OutcomeInserted, h.tick(t))
	assert.Equal(t, OutcomeUnchanged, h.tick(t))

	items := h.history(t)
	require.Len(t, items, 1)
	assert.Equal(t, clip.CategoryURL, items[0].Category)
	assert.Equal(t, "Terminal", items[0].SourceApp)
	assert.Equal(t, clip.Fingerprint([]byte("https://example.com/docs")), items[0].Hash)
	assert.Equal(t, items[0].Hash, h.mon.lastSeen())
}

func TestTickTouchesKnownContent(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.cb.WriteText(ctx, []byte("first")))
	h.tick(t)
	require.NoError(t, h.cb.WriteText(ctx, []byte("second")))
	h.tick(t)

	h.app = "Editor"
	require.NoError(t, h.cb.WriteText(ctx, []byte("first")))
	assert.Equal(t, OutcomeTouched, h.tick(t))

	items := h.history(t)
	require.Len(t, items, 2)
	assert.Equal(t, "first", items[0].Content, "touched item moves to the top")
	assert.Equal(t, "Editor", items[0].SourceApp)
}

func TestTickSkipsSensitiveWhenAutoExcludeOn(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.cb.WriteText(ctx, []byte("card 4111 1111 1111 1111")))
	assert.Equal(t, OutcomeSensitive, h.tick(t))
	assert.Equal(t, OutcomeUnchanged, h.tick(t), "sensitive content is not re-evaluated")
	assert.Empty(t, h.history(t))

	settings := clip.DefaultSettings()
	settings.AutoExcludeSensitive = false
	require.NoError(t, h.store.UpdateSettings(ctx, settings))

	require.NoError(t, h.cb.WriteText(ctx, []byte("call 555-123-4567")))
	assert.Equal(t, OutcomeInserted, h.tick(t))
	items := h.history(t)
	require.Len(t, items, 1)
	assert.True(t, items[0].IsSensitive)
}

func TestSensitiveCheckPrecedesTouch(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	card := []byte("card 4111 1111 1111 1111")

	settings := clip.DefaultSettings()
	settings.AutoExcludeSensitive = false
	require.NoError(t, h.store.UpdateSettings(ctx, settings))
	require.NoError(t, h.cb.WriteText(ctx, card))
	require.Equal(t, OutcomeInserted, h.tick(t))
	before := h.history(t)[0]

	settings.AutoExcludeSensitive = true
	require.NoError(t, h.store.UpdateSettings(ctx, settings))
	require.NoError(t, h.cb.WriteText(ctx, []byte("unrelated")))
	h.tick(t)
	require.NoError(t, h.cb.WriteText(ctx, card))
	assert.Equal(t, OutcomeSensitive, h.tick(t))

	after, err := h.store.GetByID(ctx, before.ID)
	require.NoError(t, err)
	assert.Equal(t, before.CopiedAt, after.CopiedAt, "stored sensitive row is not bumped")
}

func TestTickSkipsExcludedApps(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.store.AddExclusion(ctx, "*password*"))

	h.app = "1Password 8"
	require.NoError(t, h.cb.WriteText(ctx, []byte("hunter2")))
	assert.Equal(t, OutcomeExcluded, h.tick(t))
	assert.Empty(t, h.history(t))

	// The exclusion list is read again for the next novel content.
	require.NoError(t, h.store.RemoveExclusion(ctx, "*password*"))
	require.NoError(t, h.cb.WriteText(ctx, []byte("hunter3")))
	assert.Equal(t, OutcomeInserted, h.tick(t))
}

func TestTickCapturesImage(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	payload := pngBytes(t, 12, 7)
	require.NoError(t, h.cb.WriteImage(ctx, payload))
	assert.Equal(t, OutcomeInserted, h.tick(t))

	items := h.history(t)
	require.Len(t, items, 1)
	it := items[0]
	assert.Equal(t, clip.ContentImage, it.ContentType)
	assert.Equal(t, clip.CategoryMisc, it.Category)
	assert.Equal(t, "Image 12×7", it.Content)
	assert.Equal(t, "Image 12×7", it.Preview)
	assert.Equal(t, pixelHash(t, payload), it.Hash)

	data, err := h.images.Read(ctx, it.ImagePath)
	require.NoError(t, err)
	assert.Equal(t, it.Hash, pixelHash(t, data))

	// Copying the same image again touches the row without a second file.
	require.NoError(t, h.cb.WriteText(ctx, []byte("interlude")))
	h.tick(t)
	require.NoError(t, h.cb.WriteImage(ctx, payload))
	assert.Equal(t, OutcomeTouched, h.tick(t))
	assert.Len(t, h.imageFiles(t), 1)
}

func TestTickRejectsOversizedImage(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	settings := clip.DefaultSettings()
	settings.MaxImageSizeMB = 1
	require.NoError(t, h.store.UpdateSettings(ctx, settings))

	require.NoError(t, h.cb.WriteImage(ctx, noisePNG(t, 700, 700)))
	assert.Equal(t, OutcomeRejected, h.tick(t))
	assert.Equal(t, OutcomeUnchanged, h.tick(t))
	assert.Empty(t, h.history(t))
	assert.Empty(t, h.imageFiles(t))
}

func TestTickRejectsUndecodableImage(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.cb.WriteImage(context.Background(), []byte("not an image")))
	assert.Equal(t, OutcomeRejected, h.tick(t))
	assert.Empty(t, h.history(t))
}

func TestTextWinsWhenBothChannelsHold(t *testing.T) {
	h := newHarness(t, nil)
	h.cb.SetBoth([]byte("caption"), pngBytes(t, 2, 2))
	assert.Equal(t, OutcomeInserted, h.tick(t))

	items := h.history(t)
	require.Len(t, items, 1)
	assert.Equal(t, clip.ContentText, items[0].ContentType)
	assert.Empty(t, h.imageFiles(t))
}

// racyClipboard swaps its content between the text read and the image
// read, the window the monitor accepts.
type racyClipboard struct {
	*clipboard.Memory
	swap func()
	once sync.Once
}

func (r *racyClipboard) ReadText(ctx context.Context) ([]byte, error) {
	data, err := r.Memory.ReadText(ctx)
	r.once.Do(r.swap)
	return data, err
}

func TestChangeBetweenReadsCapturesLaterImage(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	payload := pngBytes(t, 3, 3)

	racy := &racyClipboard{Memory: clipboard.NewMemory()}
	racy.swap = func() { _ = racy.Memory.WriteImage(ctx, payload) }
	h.mon.cb = racy

	assert.Equal(t, OutcomeInserted, h.tick(t))
	items := h.history(t)
	require.Len(t, items, 1)
	assert.Equal(t, clip.ContentImage, items[0].ContentType)
	assert.Equal(t, pixelHash(t, payload), items[0].Hash)
}

func TestSuppressSkipsOwnWrite(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.cb.WriteText(ctx, []byte("pasted back")))
	h.mon.Suppress(clip.Fingerprint([]byte("pasted back")))
	assert.Equal(t, OutcomeUnchanged, h.tick(t))
	assert.Empty(t, h.history(t))
}

// suppressingClipboard lets a foreground copy announce its write while the
// loop is between its clipboard read and its mailbox drain.
type suppressingClipboard struct {
	*clipboard.Memory
	during func()
}

func (c *suppressingClipboard) ReadText(ctx context.Context) ([]byte, error) {
	data, err := c.Memory.ReadText(ctx)
	if c.during != nil {
		c.during()
	}
	return data, err
}

func TestSuppressDuringReadKeepsOlderContentSeen(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	cb := &suppressingClipboard{Memory: h.cb}
	h.mon.cb = cb

	require.NoError(t, h.cb.WriteText(ctx, []byte("old secret note")))
	require.Equal(t, OutcomeInserted, h.tick(t))
	items := h.history(t)
	require.Len(t, items, 1)
	require.NoError(t, h.store.Delete(ctx, items[0].ID))

	cb.during = func() { h.mon.Suppress(clip.Fingerprint([]byte("copied item"))) }
	assert.Equal(t, OutcomeUnchanged, h.tick(t))
	assert.Empty(t, h.history(t), "deleted content stays deleted")

	// The announced write lands on the next read and is skipped too.
	cb.during = nil
	require.NoError(t, h.cb.WriteText(ctx, []byte("copied item")))
	assert.Equal(t, OutcomeUnchanged, h.tick(t))
	assert.Empty(t, h.history(t))
}

func TestImageWrittenBackAsPNGIsTouched(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	src := image.NewRGBA(image.Rect(0, 0, 6, 4))
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 5)
	}
	for i := 3; i < len(src.Pix); i += 4 {
		src.Pix[i] = 0xff
	}
	var raw bytes.Buffer
	require.NoError(t, bmp.Encode(&raw, src))
	require.NoError(t, h.cb.WriteImage(ctx, raw.Bytes()))
	require.Equal(t, OutcomeInserted, h.tick(t))
	it := h.history(t)[0]

	stored, err := h.images.Read(ctx, it.ImagePath)
	require.NoError(t, err)
	require.NotEqual(t, raw.Bytes(), stored)

	// A monitor that never saw the suppression, as after a restart.
	fresh := New(h.cb, h.store, h.images, WithSource(clipboard.SourceFunc(func(context.Context) string { return "Preview" })))
	require.NoError(t, h.cb.WriteImage(ctx, stored))
	out, err := fresh.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTouched, out)
	assert.Len(t, h.history(t), 1)
	assert.Len(t, h.imageFiles(t), 1)
}

func TestSuppressNeverBlocks(t *testing.T) {
	h := newHarness(t, nil)
	done := make(chan struct{})
	go func() {
		for i := 0; i < mailboxSize*4; i++ {
			h.mon.Suppress(clip.Fingerprint([]byte{byte(i)}))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Suppress blocked")
	}
}

type flakyStore struct {
	Store
	mu    sync.Mutex
	fails int
}

func (f *flakyStore) InsertOrTouch(ctx context.Context, item clip.Item) (storage.InsertResult, error) {
	f.mu.Lock()
	if f.fails > 0 {
		f.fails--
		f.mu.Unlock()
		return storage.InsertResult{}, errors.New("database is locked")
	}
	f.mu.Unlock()
	return f.Store.InsertOrTouch(ctx, item)
}

func TestStorageFailureRetriesNextTick(t *testing.T) {
	flaky := &flakyStore{fails: 1}
	h := newHarness(t, func(s Store) Store { flaky.Store = s; return flaky })
	ctx := context.Background()

	payload := pngBytes(t, 4, 4)
	require.NoError(t, h.cb.WriteImage(ctx, payload))

	out, err := h.mon.Tick(ctx)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, out)
	assert.Empty(t, h.mon.lastSeen())
	assert.Empty(t, h.imageFiles(t), "image from the failed insert is removed")

	assert.Equal(t, OutcomeInserted, h.tick(t))
	assert.Len(t, h.history(t), 1)
	assert.Len(t, h.imageFiles(t), 1)
}

func TestClipboardReadErrorIsNotFatal(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.cb.SetErr(errors.New("clipboard busy"))

	_, err := h.mon.Tick(ctx)
	require.Error(t, err)

	h.cb.SetErr(nil)
	require.NoError(t, h.cb.WriteText(ctx, []byte("recovered")))
	assert.Equal(t, OutcomeInserted, h.tick(t))
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, nil)
	h.mon.interval = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, h.cb.WriteText(ctx, []byte("from the loop")))
	errc := make(chan error, 1)
	go func() { errc <- h.mon.Run(ctx) }()

	assert.Eventually(t, func() bool {
		items, err := h.store.GetHistory(context.Background(), 10, 0)
		return err == nil && len(items) == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
