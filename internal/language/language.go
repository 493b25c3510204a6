// Package language maps the free-form language names members type into
// two-letter codes understood by the translation backend.
package language

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

var names = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"russian":    "ru",
	"japanese":   "ja",
	"chinese":    "zh",
	"korean":     "ko",
	"arabic":     "ar",
	"dutch":      "nl",
	"polish":     "pl",
	"swedish":    "sv",
	"norwegian":  "no",
	"danish":     "da",
	"finnish":    "fi",
	"czech":      "cs",
	"hungarian":  "hu",
	"romanian":   "ro",
	"bulgarian":  "bg",
	"greek":      "el",
	"hebrew":     "he",
	"hindi":      "hi",
	"thai":       "th",
	"vietnamese": "vi",
}

var offWords = map[string]struct{}{
	"none":    {},
	"off":     {},
	"disable": {},
	"stop":    {},
}

// sortedNames keeps fuzzy matching deterministic.
var sortedNames = func() []string {
	keys := make([]string, 0, len(names))
	for key := range names {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}()

// Normalize maps a language name to its code. Unknown tokens pass through
// lowercased.
func Normalize(token string) string {
	token = strings.ToLower(strings.TrimSpace(token))
	if code, ok := names[token]; ok {
		return code
	}
	return token
}

// IsOff reports whether input asks to turn translation off.
func IsOff(input string) bool {
	_, ok := offWords[strings.ToLower(strings.TrimSpace(input))]
	return ok
}

// Resolve turns user input ("French", "fr", "spanis") into a supported code.
func Resolve(input string) (string, bool) {
	clean := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' {
			return r
		}
		return -1
	}, strings.ToLower(strings.TrimSpace(input)))
	if clean == "" {
		return "", false
	}

	if code, ok := names[clean]; ok {
		return code, true
	}
	if IsSupported(clean) {
		return clean, true
	}
	if len(clean) < 3 {
		return "", false
	}
	for _, name := range sortedNames {
		if strings.Contains(name, clean) || strings.Contains(clean, name) {
			return names[name], true
		}
	}
	return "", false
}

// IsSupported accepts the table's codes and any other registered ISO 639-1 code.
func IsSupported(code string) bool {
	if len(code) != 2 {
		return false
	}
	for _, known := range names {
		if known == code {
			return true
		}
	}
	base, err := language.ParseBase(code)
	return err == nil && base.String() == code
}

// FromFlag maps a flag emoji (two regional indicator symbols) to the most
// likely language spoken in that region.
func FromFlag(emoji string) (string, bool) {
	runes := []rune(emoji)
	if len(runes) != 2 {
		return "", false
	}
	var region [2]byte
	for i, r := range runes {
		if r < 0x1F1E6 || r > 0x1F1FF {
			return "", false
		}
		region[i] = byte('A' + (r - 0x1F1E6))
	}

	reg, err := language.ParseRegion(string(region[:]))
	if err != nil {
		return "", false
	}
	tag, err := language.Compose(reg)
	if err != nil {
		return "", false
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return "", false
	}
	code := base.String()
	if len(code) != 2 {
		return "", false
	}
	return code, true
}

// Name returns the English display name for code, or code itself.
func Name(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

// Supported lists the table's codes with their names, for help text.
func Supported() []string {
	out := make([]string, 0, len(sortedNames))
	for _, name := range sortedNames {
		runes := []rune(name)
		runes[0] = unicode.ToUpper(runes[0])
		out = append(out, string(runes)+" ("+names[name]+")")
	}
	return out
}
