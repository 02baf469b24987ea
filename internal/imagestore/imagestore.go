// Package imagestore persists clipboard images as PNG files under a single
// directory and serves them back only when a live history row refers to
// them.
package imagestore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"clipkeep/internal/apperr"
	"clipkeep/internal/clip"
	"clipkeep/internal/security"
)

const (
	fileExt    = ".png"
	tempPrefix = ".tmp-"
)

// Registry answers whether a reference belongs to a live history row.
type Registry interface {
	ImagePathExists(ctx context.Context, ref string) (bool, error)
}

// SavedImage describes a file written by Save.
type SavedImage struct {
	Ref    string
	Width  int
	Height int
	Size   int64
	Hash   string
}

type Store struct {
	jail     *security.Jail
	registry Registry
	now      func() time.Time
}

// New prepares dir for image files. The registry is consulted on every read
// and during orphan pruning.
func New(dir string, registry Registry) (*Store, error) {
	if registry == nil {
		return nil, errors.New("image registry is nil")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, apperr.Storage("create images dir", err)
	}
	jail, err := security.NewJail(dir)
	if err != nil {
		return nil, err
	}
	return &Store{jail: jail, registry: registry, now: time.Now}, nil
}

func (s *Store) Dir() string {
	return s.jail.Root()
}

// Decoded is a clipboard image normalised to non-premultiplied RGBA.
// Hash fingerprints the pixels, not the encoding, so the PNG this package
// writes and any other encoding of the same picture share one hash.
type Decoded struct {
	img    *image.NRGBA
	Hash   string
	Width  int
	Height int
}

// Decode parses data in any registered format and fingerprints its pixels.
func Decode(data []byte) (Decoded, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Decoded{}, apperr.Encoding("decode image", err)
	}
	img := toNRGBA(src)
	w, h := img.Rect.Dx(), img.Rect.Dy()

	buf := make([]byte, 8, 8+len(img.Pix))
	binary.BigEndian.PutUint32(buf[0:4], uint32(w))
	binary.BigEndian.PutUint32(buf[4:8], uint32(h))
	buf = append(buf, img.Pix...)
	return Decoded{img: img, Hash: clip.Fingerprint(buf), Width: w, Height: h}, nil
}

// toNRGBA copies src into a tightly packed NRGBA with a zero origin.
func toNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	if n, ok := src.(*image.NRGBA); ok && b.Min == (image.Point{}) && n.Stride == 4*b.Dx() {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// Save decodes data and stores it; see SaveDecoded.
func (s *Store) Save(data []byte, maxBytes int64) (SavedImage, error) {
	d, err := Decode(data)
	if err != nil {
		return SavedImage{}, err
	}
	return s.SaveDecoded(d, maxBytes)
}

// SaveDecoded encodes d as PNG and writes it under a fresh name. The
// encoded size is checked against maxBytes before anything touches disk;
// maxBytes <= 0 disables the check.
func (s *Store) SaveDecoded(d Decoded, maxBytes int64) (SavedImage, error) {
	if d.img == nil {
		return SavedImage{}, apperr.Encoding("encode png", errors.New("empty image"))
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, d.img); err != nil {
		return SavedImage{}, apperr.Encoding("encode png", err)
	}
	size := int64(buf.Len())
	if maxBytes > 0 && size > maxBytes {
		return SavedImage{}, fmt.Errorf("%w: encoded image is %s, limit %s",
			apperr.ErrSizeExceeded, humanize.IBytes(uint64(size)), humanize.IBytes(uint64(maxBytes)))
	}

	ref := uuid.NewString() + fileExt
	if err := s.writeAtomic(ref, buf.Bytes()); err != nil {
		return SavedImage{}, err
	}
	return SavedImage{Ref: ref, Width: d.Width, Height: d.Height, Size: size, Hash: d.Hash}, nil
}

func (s *Store) writeAtomic(ref string, data []byte) error {
	tmp, err := os.CreateTemp(s.jail.Root(), tempPrefix+"*"+fileExt)
	if err != nil {
		return apperr.Storage("create temp image", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return apperr.Storage("write temp image", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return apperr.Storage("sync temp image", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return apperr.Storage("close temp image", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.jail.Root(), ref)); err != nil {
		cleanup()
		return apperr.Storage("rename image", err)
	}
	return nil
}

// Read returns the PNG bytes for ref. The reference must be free of parent
// segments, resolve inside the images directory and be registered to a
// live row; each check fails independently.
func (s *Store) Read(ctx context.Context, ref string) ([]byte, error) {
	abs, rel, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	ok, err := s.registry.ImagePathExists(ctx, rel)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("image %q: %w", rel, apperr.ErrNotFound)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("image %q: %w", rel, apperr.ErrNotFound)
		}
		return nil, apperr.Storage("stat image", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("image %q is not a regular file: %w", rel, apperr.ErrPathRejected)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, apperr.Storage("read image", err)
	}
	return data, nil
}

// Delete removes the file for ref. A missing file is not an error.
func (s *Store) Delete(ref string) error {
	abs, _, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperr.Storage("delete image", err)
	}
	return nil
}

// PruneOrphans removes image files older than grace that no row refers to,
// along with abandoned temp files. It returns the number of files removed.
func (s *Store) PruneOrphans(ctx context.Context, grace time.Duration) (int, error) {
	entries, err := os.ReadDir(s.jail.Root())
	if err != nil {
		return 0, apperr.Storage("list images dir", err)
	}
	cutoff := s.now().Add(-grace)
	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		name := entry.Name()
		if !entry.Type().IsRegular() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if !strings.HasPrefix(name, tempPrefix) {
			live, err := s.registry.ImagePathExists(ctx, name)
			if err != nil {
				return removed, err
			}
			if live {
				continue
			}
		}
		if err := os.Remove(filepath.Join(s.jail.Root(), name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, apperr.Storage("prune image", err)
		}
		removed++
	}
	return removed, nil
}

func (s *Store) resolve(ref string) (abs, rel string, err error) {
	abs, err = s.jail.Resolve(ref)
	if err != nil {
		if errors.Is(err, security.ErrTraversal) || errors.Is(err, security.ErrOutsideRoot) || errors.Is(err, security.ErrEmptyRef) {
			return "", "", fmt.Errorf("image %q: %w: %w", ref, apperr.ErrPathRejected, err)
		}
		return "", "", apperr.Storage("resolve image", err)
	}
	rel, err = s.jail.Rel(abs)
	if err != nil {
		return "", "", fmt.Errorf("image %q: %w: %w", ref, apperr.ErrPathRejected, err)
	}
	return abs, rel, nil
}
