package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"region40-bot/internal/onboarding"
	"region40-bot/internal/storage"
	"region40-bot/internal/translate"
)

type Config struct {
	Bot           BotConfig        `yaml:",inline"`
	Database      DatabaseConfig   `yaml:"database"`
	Onboarding    OnboardingConfig `yaml:"onboarding"`
	Translate     TranslateConfig  `yaml:"translate"`
	Dashboard     DashboardConfig  `yaml:"dashboard"`
	Notifications NotifyConfig     `yaml:"notifications"`

	// Warnings lists configuration entries normalization discarded.
	Warnings []string `yaml:"-"`
}

type BotConfig struct {
	DiscordToken  string `yaml:"discord_token" env:"DISCORD_TOKEN"`
	LogLevel      string `yaml:"log_level" env:"LOG_LEVEL"`
	RetentionDays int    `yaml:"retention_days" env:"RETENTION_DAYS"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"DATABASE_DRIVER"`
	DSN    string `yaml:"dsn" env:"DATABASE_URL"`
}

type OnboardingConfig struct {
	VerifyPhrase    string               `yaml:"verify_phrase" env:"ONBOARDING_VERIFY_PHRASE"`
	DebounceSeconds int                  `yaml:"debounce_seconds" env:"ONBOARDING_DEBOUNCE_SECONDS"`
	UnverifiedRole  string               `yaml:"unverified_role" env:"ONBOARDING_UNVERIFIED_ROLE"`
	Alliances       onboarding.Alliances `yaml:"alliances" env:"-"`
}

type TranslateConfig struct {
	Endpoint          string  `yaml:"endpoint" env:"TRANSLATE_ENDPOINT"`
	APIKey            string  `yaml:"api_key" env:"TRANSLATE_API_KEY"`
	AccessToken       string  `yaml:"access_token" env:"TRANSLATE_ACCESS_TOKEN"`
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"TRANSLATE_RPS"`
	Burst             int     `yaml:"burst" env:"TRANSLATE_BURST"`
	CacheMinutes      int     `yaml:"cache_minutes" env:"TRANSLATE_CACHE_MINUTES"`
	TimeoutSeconds    int     `yaml:"timeout_seconds" env:"TRANSLATE_TIMEOUT_SECONDS"`
}

type DashboardConfig struct {
	Enabled  bool     `yaml:"enabled" env:"DASHBOARD_ENABLED"`
	Addr     string   `yaml:"addr" env:"DASH_ADDR"`
	User     string   `yaml:"user" env:"ADMIN_USER"`
	Password string   `yaml:"password" env:"ADMIN_PASS"`
	AllowIPs []string `yaml:"allow_ips" env:"DASH_ALLOW_IPS" envSeparator:","`
}

type NotifyConfig struct {
	AuditToChannel bool        `yaml:"audit_to_channel" env:"AUDIT_TO_CHANNEL"`
	EmbedColors    EmbedColors `yaml:"embed_colors"`
}

type EmbedColors struct {
	Info    int `yaml:"info" env:"EMBED_COLOR_INFO"`
	Success int `yaml:"success" env:"EMBED_COLOR_SUCCESS"`
	Warning int `yaml:"warning" env:"EMBED_COLOR_WARNING"`
	Error   int `yaml:"error" env:"EMBED_COLOR_ERROR"`
}

func DefaultConfig() Config {
	return Config{
		Bot: BotConfig{
			LogLevel:      "info",
			RetentionDays: 30,
		},
		Database: DatabaseConfig{Driver: storage.DriverSQLite, DSN: "region40.db"},
		Onboarding: OnboardingConfig{
			VerifyPhrase:    "verify",
			DebounceSeconds: 30,
			UnverifiedRole:  "not-onboarded",
			Alliances:       onboarding.DefaultAlliances(),
		},
		Translate: TranslateConfig{
			Endpoint:          translate.DefaultEndpoint,
			RequestsPerSecond: 5,
			Burst:             10,
			CacheMinutes:      30,
			TimeoutSeconds:    10,
		},
		Dashboard: DashboardConfig{
			Enabled:  false,
			Addr:     ":3000",
			User:     "admin",
			AllowIPs: []string{"127.0.0.1", "::1"},
		},
		Notifications: NotifyConfig{
			AuditToChannel: true,
			EmbedColors: EmbedColors{
				Info:    0x5865F2,
				Success: 0x22C55E,
				Warning: 0xF59E0B,
				Error:   0xEF4444,
			},
		},
	}
}

// Load reads the bot configuration. The Discord token is required.
func Load() (Config, error) {
	cfg, err := load()
	if err != nil {
		return Config{}, err
	}
	if cfg.Bot.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	return cfg, nil
}

// LoadDashboard reads the same layers as Load without requiring a token.
func LoadDashboard() (Config, error) {
	cfg, err := load()
	if err != nil {
		return Config{}, err
	}
	if cfg.Dashboard.Password == "" {
		return Config{}, errors.New("ADMIN_PASS is required for the dashboard")
	}
	return cfg, nil
}

// LoadBase reads every layer without checking credentials. Tooling such as
// migrations uses it.
func LoadBase() (Config, error) {
	return load()
}

func load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	// a missing .env is normal outside development
	_ = godotenv.Load(envFile)

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	normalize(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	sections := []any{
		&cfg.Bot,
		&cfg.Database,
		&cfg.Onboarding,
		&cfg.Translate,
		&cfg.Dashboard,
		&cfg.Notifications,
	}
	for _, section := range sections {
		if err := env.Parse(section); err != nil {
			return err
		}
	}
	if cfg.Bot.DiscordToken == "" {
		cfg.Bot.DiscordToken = os.Getenv("BOT_TOKEN")
	}
	return nil
}

func normalize(cfg *Config) {
	defaults := DefaultConfig()

	cfg.Bot.LogLevel = strings.ToLower(strings.TrimSpace(cfg.Bot.LogLevel))
	if cfg.Bot.RetentionDays <= 0 {
		cfg.Bot.RetentionDays = defaults.Bot.RetentionDays
	}

	switch strings.ToLower(cfg.Database.Driver) {
	case "postgres", "postgresql", "pgx":
		cfg.Database.Driver = storage.DriverPostgres
	default:
		cfg.Database.Driver = storage.DriverSQLite
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = defaults.Database.DSN
	}

	cfg.Onboarding.VerifyPhrase = strings.TrimSpace(cfg.Onboarding.VerifyPhrase)
	if cfg.Onboarding.VerifyPhrase == "" {
		cfg.Onboarding.VerifyPhrase = defaults.Onboarding.VerifyPhrase
	}
	if cfg.Onboarding.DebounceSeconds <= 0 {
		cfg.Onboarding.DebounceSeconds = defaults.Onboarding.DebounceSeconds
	}
	if strings.TrimSpace(cfg.Onboarding.UnverifiedRole) == "" {
		cfg.Onboarding.UnverifiedRole = defaults.Onboarding.UnverifiedRole
	}

	var skipped []string
	cfg.Onboarding.Alliances, skipped = normalizeAlliances(cfg.Onboarding.Alliances)
	cfg.Warnings = append(cfg.Warnings, skipped...)

	if cfg.Translate.Endpoint == "" {
		cfg.Translate.Endpoint = defaults.Translate.Endpoint
	}
	if cfg.Translate.RequestsPerSecond <= 0 {
		cfg.Translate.RequestsPerSecond = defaults.Translate.RequestsPerSecond
	}
	if cfg.Translate.Burst <= 0 {
		cfg.Translate.Burst = defaults.Translate.Burst
	}
	if cfg.Translate.CacheMinutes <= 0 {
		cfg.Translate.CacheMinutes = defaults.Translate.CacheMinutes
	}
	if cfg.Translate.TimeoutSeconds <= 0 {
		cfg.Translate.TimeoutSeconds = defaults.Translate.TimeoutSeconds
	}

	if cfg.Dashboard.Addr == "" {
		cfg.Dashboard.Addr = defaults.Dashboard.Addr
	}
	var ips []string
	for _, ip := range cfg.Dashboard.AllowIPs {
		if ip = strings.TrimSpace(ip); ip != "" {
			ips = append(ips, ip)
		}
	}
	cfg.Dashboard.AllowIPs = ips
}

// normalizeAlliances drops unusable entries and falls back to the built-in
// table when nothing is left. Tags must be nickname tags (3-4 uppercase
// letters or digits); entries with any other tag are reported and skipped.
func normalizeAlliances(in onboarding.Alliances) (onboarding.Alliances, []string) {
	var out onboarding.Alliances
	var skipped []string
	for _, alliance := range in {
		alliance.Key = strings.ToLower(strings.TrimSpace(alliance.Key))
		alliance.Tag = strings.ToUpper(strings.TrimSpace(alliance.Tag))
		alliance.Name = strings.TrimSpace(alliance.Name)
		if alliance.Key == "" || alliance.Tag == "" {
			skipped = append(skipped, fmt.Sprintf("alliance %q skipped: key and tag are required", alliance.Name))
			continue
		}
		if !onboarding.ValidTag(alliance.Tag) {
			skipped = append(skipped, fmt.Sprintf("alliance %q skipped: tag %q must be 3-4 letters or digits", alliance.Key, alliance.Tag))
			continue
		}
		if alliance.Name == "" {
			alliance.Name = alliance.Tag
		}
		out = append(out, alliance)
	}
	if len(out) == 0 {
		return onboarding.DefaultAlliances(), skipped
	}
	return out, skipped
}

func (c Config) Rules() onboarding.Rules {
	return onboarding.Rules{
		VerifyPhrase:   c.Onboarding.VerifyPhrase,
		UnverifiedRole: c.Onboarding.UnverifiedRole,
		Alliances:      c.Onboarding.Alliances,
	}
}

func (c Config) DebounceWindow() time.Duration {
	return time.Duration(c.Onboarding.DebounceSeconds) * time.Second
}

func (c Config) TranslateClientConfig() translate.Config {
	return translate.Config{
		Endpoint:          c.Translate.Endpoint,
		APIKey:            c.Translate.APIKey,
		AccessToken:       c.Translate.AccessToken,
		RequestsPerSecond: c.Translate.RequestsPerSecond,
		Burst:             c.Translate.Burst,
		Timeout:           time.Duration(c.Translate.TimeoutSeconds) * time.Second,
	}
}

func (c Config) TranslateCacheTTL() time.Duration {
	return time.Duration(c.Translate.CacheMinutes) * time.Minute
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
