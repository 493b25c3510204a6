package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"region40-bot/internal/onboarding"
	"region40-bot/internal/storage"
)

// isolate points the loader at files inside a temp dir so a developer's
// config.yaml or .env never leaks into the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CONFIG_PATH", filepath.Join(dir, "config.yaml"))
	t.Setenv("ENV_FILE", filepath.Join(dir, ".env"))
	for _, key := range []string{"DISCORD_TOKEN", "BOT_TOKEN", "DATABASE_DRIVER", "DATABASE_URL", "ADMIN_PASS", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	return dir
}

func TestLoadRequiresToken(t *testing.T) {
	isolate(t)

	_, err := Load()
	require.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	t.Setenv("DISCORD_TOKEN", "token")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "token", cfg.Bot.DiscordToken)
	require.Equal(t, storage.DriverSQLite, cfg.Database.Driver)
	require.Equal(t, "verify", cfg.Onboarding.VerifyPhrase)
	require.Equal(t, 30*time.Second, cfg.DebounceWindow())
	require.Equal(t, onboarding.DefaultAlliances(), cfg.Onboarding.Alliances)
	require.Equal(t, onboarding.DefaultRules(), cfg.Rules())
	require.Equal(t, 30*time.Minute, cfg.TranslateCacheTTL())
	require.Equal(t, 10*time.Second, cfg.TranslateClientConfig().Timeout)
}

func TestLoadFallsBackToBotToken(t *testing.T) {
	isolate(t)
	t.Setenv("BOT_TOKEN", "legacy")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "legacy", cfg.Bot.DiscordToken)
}

func TestLoadLayersFileThenEnv(t *testing.T) {
	dir := isolate(t)
	yamlDoc := `
discord_token: from-file
log_level: DEBUG
database:
  driver: PostgreSQL
  dsn: postgres://bot@localhost/region40
onboarding:
  verify_phrase: "  join  "
  debounce_seconds: 5
  alliances:
    - key: " Wolf "
      name: Wolves
      tag: wolf
    - key: ""
      tag: NOPE
dashboard:
  allow_ips: ["10.0.0.1", " "]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yamlDoc), 0o600))
	t.Setenv("ONBOARDING_DEBOUNCE_SECONDS", "12")
	t.Setenv("DASH_ALLOW_IPS", "10.0.0.2,10.0.0.3")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "from-file", cfg.Bot.DiscordToken)
	require.Equal(t, "debug", cfg.Bot.LogLevel)
	require.Equal(t, storage.DriverPostgres, cfg.Database.Driver)
	require.Equal(t, "postgres://bot@localhost/region40", cfg.Database.DSN)
	require.Equal(t, "join", cfg.Onboarding.VerifyPhrase)
	require.Equal(t, 12, cfg.Onboarding.DebounceSeconds)
	require.Equal(t, "not-onboarded", cfg.Onboarding.UnverifiedRole)
	require.Equal(t, onboarding.Alliances{{Key: "wolf", Name: "Wolves", Tag: "WOLF"}}, cfg.Onboarding.Alliances)
	require.Equal(t, []string{"10.0.0.2", "10.0.0.3"}, cfg.Dashboard.AllowIPs)
}

func TestLoadSkipsAllianceTagsThatCannotBeStripped(t *testing.T) {
	dir := isolate(t)
	yamlDoc := `
discord_token: token
onboarding:
  alliances:
    - key: wolves
      tag: wolves
    - key: ox
      tag: "o-x"
    - key: bear
      name: Bears
      tag: bear
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yamlDoc), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, onboarding.Alliances{{Key: "bear", Name: "Bears", Tag: "BEAR"}}, cfg.Onboarding.Alliances)
	require.Len(t, cfg.Warnings, 2)
	require.Contains(t, cfg.Warnings[0], "WOLVES")

	tag := cfg.Rules().Alliances[0].Tag
	once := onboarding.ComposeNickname(tag, "Bob")
	require.Equal(t, once, onboarding.ComposeNickname(tag, once))
}

func TestLoadFallsBackWhenEveryAllianceIsInvalid(t *testing.T) {
	dir := isolate(t)
	yamlDoc := `
discord_token: token
onboarding:
  alliances:
    - key: wolves
      tag: wolves
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yamlDoc), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, onboarding.DefaultAlliances(), cfg.Onboarding.Alliances)
	require.Len(t, cfg.Warnings, 1)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TRANSLATE_API_KEY=dotenv-key\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("TRANSLATE_API_KEY") })
	t.Setenv("DISCORD_TOKEN", "token")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "dotenv-key", cfg.TranslateClientConfig().APIKey)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("database: [unterminated"), 0o600))
	t.Setenv("DISCORD_TOKEN", "token")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadDashboardNeedsPasswordNotToken(t *testing.T) {
	isolate(t)

	_, err := LoadDashboard()
	require.Error(t, err)

	t.Setenv("ADMIN_PASS", "secret")
	cfg, err := LoadDashboard()
	require.NoError(t, err)
	require.Equal(t, "admin", cfg.Dashboard.User)
	require.Equal(t, []string{"127.0.0.1", "::1"}, cfg.Dashboard.AllowIPs)
}

func TestBuildLogger(t *testing.T) {
	logger, err := BuildLogger("warn")
	require.NoError(t, err)
	require.False(t, logger.Core().Enabled(parseLevel("info")))
	require.True(t, logger.Core().Enabled(parseLevel("error")))
}
