package clip

import (
	"fmt"
	"strings"
)

// ContentType is the payload channel an item was captured from.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
)

// ParseContentType accepts the persisted spelling case-insensitively.
func ParseContentType(s string) (ContentType, error) {
	switch ContentType(strings.ToLower(strings.TrimSpace(s))) {
	case ContentText:
		return ContentText, nil
	case ContentImage:
		return ContentImage, nil
	default:
		return "", fmt.Errorf("unknown content type %q", s)
	}
}

// Category is the classifier's verdict for a text item.
type Category string

const (
	CategoryURL     Category = "url"
	CategoryEmail   Category = "email"
	CategoryError   Category = "error"
	CategoryCode    Category = "code"
	CategoryCommand Category = "command"
	CategoryIP      Category = "ip"
	CategoryPath    Category = "path"
	CategoryMisc    Category = "misc"
)

// Categories lists every category in tie-break order, Misc last.
var Categories = []Category{
	CategoryError, CategoryURL, CategoryEmail, CategoryIP,
	CategoryPath, CategoryCommand, CategoryCode, CategoryMisc,
}

// ParseCategory accepts the persisted spelling case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// UnknownSource is recorded when the producing application cannot be told.
const UnknownSource = "Unknown"

// Item is one captured clipboard entry.
type Item struct {
	ID          int64       `json:"id"`
	Content     string      `json:"content"`
	ContentType ContentType `json:"contentType"`
	// ImagePath is a reference relative to the images directory, set iff
	// ContentType is ContentImage.
	ImagePath   string   `json:"imagePath,omitempty"`
	Category    Category `json:"category"`
	SourceApp   string   `json:"sourceApp"`
	Preview     string   `json:"preview"`
	CopiedAt    int64    `json:"copiedAt"`
	IsFavorite  bool     `json:"isFavorite"`
	IsSensitive bool     `json:"isSensitive"`
	Hash        string   `json:"hash"`
}

// Validate checks the row-level invariants before an insert.
func (it Item) Validate() error {
	switch it.ContentType {
	case ContentText:
		if it.ImagePath != "" {
			return fmt.Errorf("text item carries an image path")
		}
	case ContentImage:
		if it.ImagePath == "" {
			return fmt.Errorf("image item has no image path")
		}
	default:
		return fmt.Errorf("unknown content type %q", it.ContentType)
	}
	if strings.TrimSpace(it.Hash) == "" {
		return fmt.Errorf("item hash is empty")
	}
	if _, err := ParseCategory(string(it.Category)); err != nil {
		return err
	}
	return nil
}

// SearchFilters narrow a search; zero values mean "any".
type SearchFilters struct {
	Category    Category    `json:"category,omitempty"`
	ContentType ContentType `json:"contentType,omitempty"`
	SourceApp   string      `json:"sourceApp,omitempty"`
	// DateFrom and DateTo are inclusive unix seconds; 0 disables the bound.
	DateFrom int64 `json:"dateFrom,omitempty"`
	DateTo   int64 `json:"dateTo,omitempty"`
}

// Settings is the user-tunable capture policy.
type Settings struct {
	RetentionDays        int64  `json:"retentionDays" yaml:"retention_days"`
	MaxItems             int    `json:"maxItems" yaml:"max_items"`
	KeyboardShortcut     string `json:"keyboardShortcut" yaml:"keyboard_shortcut"`
	AutoExcludeSensitive bool   `json:"autoExcludeSensitive" yaml:"auto_exclude_sensitive"`
	MaxImageSizeMB       int    `json:"maxImageSizeMb" yaml:"max_image_size_mb"`
}

const (
	DefaultRetentionDays    = 30
	DefaultMaxItems         = 1000
	DefaultKeyboardShortcut = "CmdOrCtrl+Shift+V"
	DefaultMaxImageSizeMB   = 5

	MinMaxItems       = 1
	MaxMaxItems       = 100000
	MinImageSizeMB    = 1
	MaxImageSizeMB    = 100
	MaxShortcutLength = 64
)

// DefaultSettings returns the values seeded into a fresh database.
func DefaultSettings() Settings {
	return Settings{
		RetentionDays:        DefaultRetentionDays,
		MaxItems:             DefaultMaxItems,
		KeyboardShortcut:     DefaultKeyboardShortcut,
		AutoExcludeSensitive: true,
		MaxImageSizeMB:       DefaultMaxImageSizeMB,
	}
}

// MaxImageBytes converts the megabyte limit to bytes.
func (s Settings) MaxImageBytes() int64 {
	return int64(s.MaxImageSizeMB) << 20
}
