package slugify

import (
	"strings"

	"github.com/gosimple/slug"
)

const (
	// MaxPageSlug is the page slug column size.
	MaxPageSlug = 255
	// MaxPostSlug is the post slug column size.
	MaxPostSlug = 512
)

// Make derives a URL-safe slug from a title: lowercase, transliterated to
// ASCII, whitespace and punctuation collapsed to hyphens, truncated to
// maxLen without leaving a trailing hyphen.
func Make(title string, maxLen int) string {
	s := slug.Make(title)
	if maxLen > 0 && len(s) > maxLen {
		s = s[:maxLen]
		s = strings.TrimRight(s, "-")
	}
	return s
}
