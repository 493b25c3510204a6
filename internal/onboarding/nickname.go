package onboarding

import (
	"regexp"
	"strings"
)

// MaxNicknameLength is Discord's guild nickname limit.
const MaxNicknameLength = 32

var (
	tagPrefix  = regexp.MustCompile(`^\([A-Z0-9]{3,4}\)\s*`)
	tagPattern = regexp.MustCompile(`^[A-Z0-9]{3,4}$`)
)

// ValidTag reports whether tag is a nickname tag StripTag can remove again.
func ValidTag(tag string) bool {
	return tagPattern.MatchString(tag)
}

// StripTag removes a leading "(TAG) " prefix.
func StripTag(name string) string {
	return tagPrefix.ReplaceAllString(name, "")
}

// ComposeNickname prefixes base with "(tag) " after stripping any existing
// tag. An empty tag only strips. Applying it twice gives the same result.
func ComposeNickname(tag, base string) string {
	name := strings.TrimSpace(StripTag(strings.TrimSpace(base)))
	if tag != "" {
		name = "(" + tag + ") " + name
	}
	runes := []rune(name)
	if len(runes) > MaxNicknameLength {
		name = strings.TrimSpace(string(runes[:MaxNicknameLength]))
	}
	return name
}

// NameFunc computes a nickname from the member's current display name.
type NameFunc func(displayName string) string

// nicknameFor prefers the profile's in-game name and falls back to the
// member's display name.
func nicknameFor(tag, inGameName string) NameFunc {
	return func(displayName string) string {
		base := inGameName
		if strings.TrimSpace(base) == "" {
			base = displayName
		}
		return ComposeNickname(tag, base)
	}
}
