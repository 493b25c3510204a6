package audit

import (
	"context"

	"region40-bot/internal/storage"

	"go.uber.org/zap"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
	LevelCrit = "CRIT"
)

// Events recorded by onboarding and administration.
const (
	EventJoin            = "member_join"
	EventStarted         = "onboarding_started"
	EventProfile         = "profile_completed"
	EventProfileUpdated  = "profile_updated"
	EventComplete        = "onboarding_complete"
	EventAllianceChanged = "alliance_changed"
	EventReset           = "verification_reset"
	EventForceVerify     = "force_verify"
	EventBulkReset       = "bulk_reset"
	EventSoftFailure     = "soft_failure"
	EventStorageFailure  = "storage_failure"
	EventLanguageChanged = "language_changed"
	EventSettingsChanged = "settings_changed"
)

type Logger struct {
	store  *storage.Store
	logger *zap.Logger
	notify func(context.Context, storage.AuditLog)
}

func NewLogger(store *storage.Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger}
}

// SetNotifier installs a hook that forwards entries, e.g. to a guild's log channel.
func (l *Logger) SetNotifier(notify func(context.Context, storage.AuditLog)) {
	l.notify = notify
}

func (l *Logger) Log(ctx context.Context, level, guildID, userID, event, details string) {
	if l == nil {
		return
	}
	entry := storage.AuditLog{
		GuildID: guildID,
		UserID:  userID,
		Level:   level,
		Event:   event,
		Details: details,
	}
	if l.store != nil {
		if err := l.store.AddAuditLog(ctx, entry); err != nil {
			l.logger.Warn("audit write failed", zap.String("event", event), zap.Error(err))
		}
	}
	if l.notify != nil {
		l.notify(ctx, entry)
	}
	l.logger.Info("audit", zap.String("level", level), zap.String("guild_id", guildID), zap.String("user_id", userID), zap.String("event", event), zap.String("details", details))
}
