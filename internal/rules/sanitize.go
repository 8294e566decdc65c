package rules

import (
	"strings"
	"unicode/utf8"
)

const placeholder = '_'

// trimSet is stripped from both ends of every name
const trimSet = " ."

// Sanitizer derives a SharePoint-safe name from an offending one
type Sanitizer struct {
	invalid map[rune]struct{}
	maxLen  int
}

// NewSanitizer builds a sanitizer for the given invalid set and length limit
func NewSanitizer(invalid map[rune]struct{}, maxLen int) Sanitizer {
	return Sanitizer{invalid: invalid, maxLen: maxLen}
}

// Sanitize replaces invalid characters and trims spaces and periods
func (s Sanitizer) Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if _, bad := s.invalid[r]; bad {
			b.WriteRune(placeholder)
			continue
		}
		b.WriteRune(r)
	}
	return strings.Trim(b.String(), trimSet)
}

// SuggestFix sanitizes and truncates name. Applying it twice yields the same
// result as applying it once.
func (s Sanitizer) SuggestFix(name string) string {
	fixed := truncate(s.Sanitize(name), s.maxLen)
	// A cut can expose a trailing space or period.
	return strings.TrimRight(fixed, trimSet)
}

// truncate shortens name to limit characters, keeping the extension when it
// leaves room for at least one character of stem.
func truncate(name string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(name) <= limit {
		return name
	}

	stem, ext := splitExt(name)
	extLen := utf8.RuneCountInString(ext)
	if extLen > 0 && extLen < limit-1 {
		return string([]rune(stem)[:limit-extLen]) + ext
	}
	return string([]rune(name)[:limit])
}
