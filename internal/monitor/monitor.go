// Package monitor polls the OS clipboard and records novel content.
//
// A Monitor is an actor: lastSeenHash is owned by the goroutine running Run
// and is never touched from outside. Foreground callers that write to the
// clipboard announce the fingerprint of what they wrote through Suppress,
// which the loop applies after its next read.
//
// Text and image are read as two separate calls. Text is read first and
// the image channel only when the text channel is empty, so content that
// changes between the two reads can be captured as the later image. That
// window is accepted; there is no portable atomic multi-format read.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clipkeep/internal/apperr"
	"clipkeep/internal/classify"
	"clipkeep/internal/clip"
	"clipkeep/internal/clipboard"
	"clipkeep/internal/imagestore"
	"clipkeep/internal/logging"
	"clipkeep/internal/sensitive"
	"clipkeep/internal/storage"
)

const (
	DefaultInterval = 500 * time.Millisecond
	mailboxSize     = 16
)

// Store is the slice of storage.Store the monitor writes through.
type Store interface {
	InsertOrTouch(ctx context.Context, item clip.Item) (storage.InsertResult, error)
	Touch(ctx context.Context, hash, sourceApp string, copiedAt int64) (int64, bool, error)
	GetSettings(ctx context.Context) (clip.Settings, error)
	ListExclusions(ctx context.Context) ([]string, error)
}

// Images persists image payloads.
type Images interface {
	SaveDecoded(img imagestore.Decoded, maxBytes int64) (imagestore.SavedImage, error)
	Delete(ref string) error
}

// Outcome is what a single tick decided.
type Outcome int

const (
	OutcomeEmpty Outcome = iota
	OutcomeUnchanged
	OutcomeExcluded
	OutcomeTouched
	OutcomeSensitive
	OutcomeRejected
	OutcomeInserted
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEmpty:
		return "empty"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeExcluded:
		return "excluded"
	case OutcomeTouched:
		return "touched"
	case OutcomeSensitive:
		return "sensitive"
	case OutcomeRejected:
		return "rejected"
	case OutcomeInserted:
		return "inserted"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

type Option func(*Monitor)

func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l.WithComponent("monitor")
		}
	}
}

func WithSource(src clipboard.SourceResolver) Option {
	return func(m *Monitor) {
		if src != nil {
			m.source = src
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

type Monitor struct {
	cb       clipboard.Clipboard
	store    Store
	images   Images
	source   clipboard.SourceResolver
	logger   logging.Logger
	interval time.Duration
	now      func() time.Time

	mailbox chan string

	// owned by the loop goroutine
	lastSeenHash string
	// suppressed is the latest fingerprint announced through Suppress. It
	// is compared alongside lastSeenHash, never written into it, so a tick
	// that read older content still sees that content as seen.
	suppressed string
	decoded    decodeMemo
}

func New(cb clipboard.Clipboard, store Store, images Images, opts ...Option) *Monitor {
	m := &Monitor{
		cb:       cb,
		store:    store,
		images:   images,
		source:   clipboard.Unknown,
		logger:   logging.Nop(),
		interval: DefaultInterval,
		now:      time.Now,
		mailbox:  make(chan string, mailboxSize),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Suppress tells the loop that hash is already accounted for, so the next
// tick that reads it records nothing. It never blocks; when the mailbox is
// full the oldest entry is dropped.
func (m *Monitor) Suppress(hash string) {
	for {
		select {
		case m.mailbox <- hash:
			return
		default:
		}
		select {
		case <-m.mailbox:
		default:
		}
	}
}

// Run polls until ctx is cancelled. A failed tick is logged and the loop
// carries on.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info(ctx, "monitor started", "interval", m.interval.String())
	for {
		select {
		case <-ctx.Done():
			m.logger.Info(ctx, "monitor stopped")
			return nil
		case <-ticker.C:
			outcome, err := m.Tick(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				m.logger.Warn(ctx, err, "clipboard tick failed", "outcome", outcome.String())
				continue
			}
			if outcome > OutcomeUnchanged {
				m.logger.Debug(ctx, "clipboard tick", "outcome", outcome.String())
			}
		}
	}
}

// Tick performs one poll. It must only be called from the goroutine that
// owns the monitor (Run, or a test driving ticks by hand).
func (m *Monitor) Tick(ctx context.Context) (Outcome, error) {
	text, raw, err := m.read(ctx)
	m.drainMailbox()
	if err != nil {
		return OutcomeFailed, fmt.Errorf("read clipboard: %w", err)
	}

	var c capture
	switch {
	case len(text) > 0:
		c = capture{hash: clip.Fingerprint(text), text: string(text), isText: true}
	case len(raw) > 0:
		img, key, err := m.decodeImage(raw)
		if err != nil {
			// Undecodable payloads are keyed by their bytes and rejected once.
			if key == m.lastSeenHash {
				return OutcomeUnchanged, nil
			}
			m.lastSeenHash = key
			m.logger.Warn(ctx, err, "image not captured", "bytes", len(raw))
			return OutcomeRejected, nil
		}
		c = capture{hash: img.Hash, image: img, size: len(raw)}
	default:
		return OutcomeEmpty, nil
	}

	if c.hash == m.lastSeenHash || c.hash == m.suppressed {
		if c.hash == m.suppressed {
			m.suppressed = ""
		}
		m.lastSeenHash = c.hash
		return OutcomeUnchanged, nil
	}

	outcome, err := m.record(ctx, c)
	if err != nil {
		// lastSeenHash stays put so the next tick retries.
		return OutcomeFailed, err
	}
	m.lastSeenHash = c.hash
	return outcome, nil
}

// capture is one clipboard payload with its fingerprint. Image fingerprints
// cover decoded pixels, so a PNG written back by a copy matches its row.
type capture struct {
	hash   string
	isText bool
	text   string
	image  imagestore.Decoded
	size   int
}

// lastSeen reads the loop-owned fingerprint; same goroutine rule as Tick.
func (m *Monitor) lastSeen() string {
	return m.lastSeenHash
}

func (m *Monitor) read(ctx context.Context) (text, image []byte, err error) {
	text, err = m.cb.ReadText(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(text) > 0 {
		return text, nil, nil
	}
	image, err = m.cb.ReadImage(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nil, image, nil
}

// decodeImage decodes raw once per distinct payload; an image left on the
// clipboard is not decoded again on every tick. key is the hash of raw.
func (m *Monitor) decodeImage(raw []byte) (imagestore.Decoded, string, error) {
	key := clip.Fingerprint(raw)
	if m.decoded.key != key {
		img, err := imagestore.Decode(raw)
		m.decoded = decodeMemo{key: key, img: img, err: err}
	}
	return m.decoded.img, key, m.decoded.err
}

type decodeMemo struct {
	key string
	img imagestore.Decoded
	err error
}

func (m *Monitor) drainMailbox() {
	for {
		select {
		case hash := <-m.mailbox:
			m.suppressed = hash
		default:
			return
		}
	}
}

func (m *Monitor) record(ctx context.Context, c capture) (Outcome, error) {
	sourceApp := m.source.FrontmostApp(ctx)

	exclusions, err := m.store.ListExclusions(ctx)
	if err != nil {
		return OutcomeFailed, err
	}
	if newExclusionSet(exclusions).Match(sourceApp) {
		m.logger.Debug(ctx, "skipped excluded app", "source_app", sourceApp)
		return OutcomeExcluded, nil
	}

	settings, err := m.store.GetSettings(ctx)
	if err != nil {
		return OutcomeFailed, err
	}

	var (
		category    = clip.CategoryMisc
		isSensitive bool
	)
	if c.isText {
		category = classify.Classify(c.text)
		isSensitive = sensitive.IsSensitive(c.text)
		// Checked before touching so a row stored while auto-exclude was
		// off is not bumped once it is on.
		if isSensitive && settings.AutoExcludeSensitive {
			m.logger.Debug(ctx, "skipped sensitive content", "category", string(category))
			return OutcomeSensitive, nil
		}
	}

	copiedAt := m.now().Unix()
	if _, found, err := m.store.Touch(ctx, c.hash, sourceApp, copiedAt); err != nil {
		return OutcomeFailed, err
	} else if found {
		return OutcomeTouched, nil
	}

	if !c.isText {
		return m.recordImage(ctx, c, sourceApp, copiedAt, settings)
	}
	res, err := m.store.InsertOrTouch(ctx, clip.Item{
		Content:     c.text,
		ContentType: clip.ContentText,
		Category:    category,
		SourceApp:   sourceApp,
		Preview:     clip.Preview(c.text),
		CopiedAt:    copiedAt,
		IsSensitive: isSensitive,
		Hash:        c.hash,
	})
	if err != nil {
		return OutcomeFailed, err
	}
	if res.Touched {
		return OutcomeTouched, nil
	}
	m.logger.Debug(ctx, "captured text", "id", res.ID, "category", string(category), "evicted", res.Evicted)
	return OutcomeInserted, nil
}

func (m *Monitor) recordImage(ctx context.Context, c capture, sourceApp string, copiedAt int64, settings clip.Settings) (Outcome, error) {
	saved, err := m.images.SaveDecoded(c.image, settings.MaxImageBytes())
	if err != nil {
		// Oversized or unencodable images will not get better on retry.
		if errors.Is(err, apperr.ErrSizeExceeded) || errors.Is(err, apperr.ErrEncoding) {
			m.logger.Warn(ctx, err, "image not captured", "bytes", c.size)
			return OutcomeRejected, nil
		}
		return OutcomeFailed, err
	}

	label := clip.ImageLabel(saved.Width, saved.Height)
	res, err := m.store.InsertOrTouch(ctx, clip.Item{
		Content:     label,
		ContentType: clip.ContentImage,
		ImagePath:   saved.Ref,
		Category:    clip.CategoryMisc,
		SourceApp:   sourceApp,
		Preview:     label,
		CopiedAt:    copiedAt,
		Hash:        c.hash,
	})
	if err != nil || res.Touched {
		if derr := m.images.Delete(saved.Ref); derr != nil {
			m.logger.Warn(ctx, derr, "remove unused image", "ref", saved.Ref)
		}
	}
	if err != nil {
		return OutcomeFailed, err
	}
	if res.Touched {
		return OutcomeTouched, nil
	}
	m.logger.Debug(ctx, "captured image", "id", res.ID, "ref", saved.Ref, "bytes", saved.Size)
	return OutcomeInserted, nil
}
