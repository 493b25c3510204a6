package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

type GuildSettings struct {
	GuildID               string
	AutoTranslateEnabled  bool
	TargetLanguage        string
	OnboardingEnabled     bool
	ModChannelID          string
	VerificationChannelID string
	WelcomeChannelID      string
	LogChannelID          string
	OnboardingRoleID      string
}

// DefaultGuildSettings is what GetGuildSettings returns for a guild with no row.
func DefaultGuildSettings(guildID string) GuildSettings {
	return GuildSettings{
		GuildID:           guildID,
		TargetLanguage:    "en",
		OnboardingEnabled: true,
	}
}

type AuditLog struct {
	ID        int64
	GuildID   string
	UserID    string
	Level     string
	Event     string
	Details   string
	CreatedAt time.Time
}

// New opens a store. driver is "sqlite" (dsn is a file path or ":memory:")
// or "postgres" (dsn is a pgx connection string).
func New(driver, dsn string) (*Store, error) {
	switch driver {
	case "", DriverSQLite:
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, err
		}
		// a single connection keeps ":memory:" databases coherent and serializes writers
		db.SetMaxOpenConns(1)
		return &Store{db: db, driver: DriverSQLite, now: time.Now}, nil
	case DriverPostgres:
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, err
		}
		return &Store{db: db, driver: DriverPostgres, now: time.Now}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

// WithClock overrides the time source used for joined_at and audit timestamps.
func (s *Store) WithClock(now func() time.Time) {
	s.now = now
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Migrate() error {
	dir := path.Join("migrations", s.driver)
	entries, err := migrations.ReadDir(dir)
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join(dir, file))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

// GetGuildSettings never reports a missing row; callers get defaults instead.
func (s *Store) GetGuildSettings(ctx context.Context, guildID string) (GuildSettings, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT auto_translate_enabled, target_language, onboarding_enabled,
		mod_channel_id, verification_channel_id, welcome_channel_id,
		log_channel_id, onboarding_role_id
		FROM guild_settings WHERE guild_id = ?`), guildID)

	result := DefaultGuildSettings(guildID)

	var autoTranslate, onboarding int
	err := row.Scan(
		&autoTranslate,
		&result.TargetLanguage,
		&onboarding,
		&result.ModChannelID,
		&result.VerificationChannelID,
		&result.WelcomeChannelID,
		&result.LogChannelID,
		&result.OnboardingRoleID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, nil
		}
		return GuildSettings{}, err
	}
	result.AutoTranslateEnabled = autoTranslate == 1
	result.OnboardingEnabled = onboarding == 1
	if result.TargetLanguage == "" {
		result.TargetLanguage = "en"
	}
	return result, nil
}

func (s *Store) UpsertGuildSettings(ctx context.Context, settings GuildSettings) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO guild_settings (
			guild_id, auto_translate_enabled, target_language, onboarding_enabled,
			mod_channel_id, verification_channel_id, welcome_channel_id,
			log_channel_id, onboarding_role_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			auto_translate_enabled = excluded.auto_translate_enabled,
			target_language = excluded.target_language,
			onboarding_enabled = excluded.onboarding_enabled,
			mod_channel_id = excluded.mod_channel_id,
			verification_channel_id = excluded.verification_channel_id,
			welcome_channel_id = excluded.welcome_channel_id,
			log_channel_id = excluded.log_channel_id,
			onboarding_role_id = excluded.onboarding_role_id
	`),
		settings.GuildID,
		boolToInt(settings.AutoTranslateEnabled),
		settings.TargetLanguage,
		boolToInt(settings.OnboardingEnabled),
		settings.ModChannelID,
		settings.VerificationChannelID,
		settings.WelcomeChannelID,
		settings.LogChannelID,
		settings.OnboardingRoleID,
	)
	return err
}

func (s *Store) AddAuditLog(ctx context.Context, log AuditLog) error {
	created := log.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO audit_logs (guild_id, user_id, level, event, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), log.GuildID, log.UserID, log.Level, log.Event, log.Details, created.Unix())
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, guildID string, since time.Time) ([]AuditLog, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, guild_id, user_id, level, event, details, created_at
		FROM audit_logs
		WHERE guild_id = ? AND created_at >= ?
		ORDER BY created_at DESC, id DESC
	`), guildID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []AuditLog
	for rows.Next() {
		var log AuditLog
		var created int64
		if err := rows.Scan(&log.ID, &log.GuildID, &log.UserID, &log.Level, &log.Event, &log.Details, &created); err != nil {
			return nil, err
		}
		log.CreatedAt = time.Unix(created, 0)
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func (s *Store) CleanupAuditLogs(ctx context.Context, retentionDays int) error {
	cutoff := s.now().AddDate(0, 0, -retentionDays)
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM audit_logs WHERE created_at < ?`), cutoff.Unix())
	return err
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}
