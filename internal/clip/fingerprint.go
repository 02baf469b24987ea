package clip

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rivo/uniseg"
)

// Fingerprint is the hex SHA-256 of a raw payload, the dedup key.
func Fingerprint(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// PreviewLength is the number of grapheme clusters kept in a preview.
const PreviewLength = 80

const previewEllipsis = "..."

// Preview returns the first PreviewLength grapheme clusters of content,
// followed by an ellipsis when content is longer. Combining sequences and
// emoji ZWJ sequences are never split.
func Preview(content string) string {
	g := uniseg.NewGraphemes(content)
	var b strings.Builder
	n := 0
	for g.Next() {
		if n == PreviewLength {
			b.WriteString(previewEllipsis)
			return b.String()
		}
		b.WriteString(g.Str())
		n++
	}
	return b.String()
}

// ImageLabel is the placeholder content and preview stored for images.
func ImageLabel(width, height int) string {
	if width <= 0 || height <= 0 {
		return "Image"
	}
	return fmt.Sprintf("Image %d×%d", width, height)
}
