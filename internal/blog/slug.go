package blog

import (
	"strings"
	"unicode"
)

// Slugify lowercases the title and collapses every non-letter, non-digit run
// into a single hyphen. An empty result falls back to "post" so a slug always
// exists.
func Slugify(title string) string {
	lowered := strings.ToLower(strings.TrimSpace(title))
	var builder strings.Builder
	pendingHyphen := false
	for _, character := range lowered {
		if unicode.IsLetter(character) || unicode.IsDigit(character) {
			if pendingHyphen && builder.Len() > 0 {
				builder.WriteByte('-')
			}
			pendingHyphen = false
			builder.WriteRune(character)
			continue
		}
		pendingHyphen = true
	}
	slug := builder.String()
	if slug == "" {
		return "post"
	}
	return slug
}
