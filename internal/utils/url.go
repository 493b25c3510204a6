package utils

import (
	"regexp"
	"strings"
	"unicode"
)

var urlRegex = regexp.MustCompile(`https?://[^\s]+`)

// Discord markup that carries no translatable text: user/role/channel mentions,
// custom emoji and timestamps.
var markupRegex = regexp.MustCompile(`<(?:@[!&]?|#|a?:\w+:|t:)\d+(?::\w)?>`)

func ExtractURLs(content string) []string {
	return urlRegex.FindAllString(content, -1)
}

// StripMarkup removes links and Discord markup and collapses whitespace.
func StripMarkup(content string) string {
	content = urlRegex.ReplaceAllString(content, " ")
	content = markupRegex.ReplaceAllString(content, " ")
	return strings.Join(strings.Fields(content), " ")
}

// HasTranslatableText reports whether content still holds a letter once links
// and markup are gone.
func HasTranslatableText(content string) bool {
	for _, r := range StripMarkup(content) {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
