package language

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	require.Equal(t, "en", Normalize("english"))
	require.Equal(t, "en", Normalize("  English "))
	require.Equal(t, "vi", Normalize("VIETNAMESE"))
	require.Equal(t, "klingon", Normalize(" Klingon "))
	require.Equal(t, "fr", Normalize("fr"))
}

func TestIsOff(t *testing.T) {
	for _, word := range []string{"off", "None", " stop ", "disable"} {
		require.True(t, IsOff(word), word)
	}
	require.False(t, IsOff("french"))
}

func TestResolve(t *testing.T) {
	cases := []struct {
		input string
		code  string
		ok    bool
	}{
		{"French", "fr", true},
		{"fr", "fr", true},
		{"german!", "de", true},
		{"spanis", "es", true},
		{"sw", "sw", true},
		{"qwertyuiop", "", false},
		{"!!", "", false},
		{"x", "", false},
	}
	for _, tc := range cases {
		code, ok := Resolve(tc.input)
		require.Equal(t, tc.ok, ok, tc.input)
		require.Equal(t, tc.code, code, tc.input)
	}
}

func TestFromFlag(t *testing.T) {
	cases := map[string]string{
		"🇫🇷": "fr",
		"🇯🇵": "ja",
		"🇩🇪": "de",
		"🇺🇸": "en",
		"🇪🇸": "es",
	}
	for flag, want := range cases {
		code, ok := FromFlag(flag)
		require.True(t, ok, flag)
		require.Equal(t, want, code, flag)
	}

	_, ok := FromFlag("👍")
	require.False(t, ok)
	_, ok = FromFlag("fr")
	require.False(t, ok)
}

func TestName(t *testing.T) {
	require.Equal(t, "French", Name("fr"))
	require.Equal(t, "Japanese", Name("ja"))
	require.Equal(t, "??", Name("??"))
}

func TestSupported(t *testing.T) {
	list := Supported()
	require.Len(t, list, 26)
	require.Equal(t, "Arabic (ar)", list[0])
}
