package onboarding

import (
	"context"
	"errors"

	"region40-bot/internal/modules/audit"
	"region40-bot/internal/storage"

	"go.uber.org/zap"
)

// Roles fans role and nickname changes out over the guilds the member shares
// with the bot. An empty guildID means all of them.
type Roles interface {
	ApplyRole(ctx context.Context, guildID, userID, role string) error
	RemoveRole(ctx context.Context, guildID, userID, role string) error
	// Rename checks authority before changing the nickname and returns the
	// name that was set, if any.
	Rename(ctx context.Context, guildID, userID string, name NameFunc) (string, error)
}

// Notifier delivers messages best effort.
type Notifier interface {
	Send(ctx context.Context, userID string, msg Message) error
	Broadcast(ctx context.Context, userID string, msg Message) error
}

type ProfileWriter interface {
	UpsertProfile(ctx context.Context, userID string, patch storage.ProfilePatch) error
}

// Report summarises one Run. Nothing in it is fatal.
type Report struct {
	Caveats  []string
	Nickname string
	Errors   []error
}

type Executor struct {
	roles    Roles
	notifier Notifier
	profiles ProfileWriter
	audit    *audit.Logger
	logger   *zap.Logger
}

func NewExecutor(roles Roles, notifier Notifier, profiles ProfileWriter, auditLogger *audit.Logger, logger *zap.Logger) *Executor {
	return &Executor{
		roles:    roles,
		notifier: notifier,
		profiles: profiles,
		audit:    auditLogger,
		logger:   logger,
	}
}

// Run executes effects in order. Role and nickname failures become caveats
// on the messages that follow; delivery failures are logged and dropped.
// Nothing is retried.
func (e *Executor) Run(ctx context.Context, userID string, effects []Effect) Report {
	var report Report
	for _, effect := range effects {
		switch eff := effect.(type) {
		case ApplyRole:
			if err := e.roles.ApplyRole(ctx, eff.GuildID, userID, eff.Role); err != nil {
				e.soft(ctx, &report, eff.GuildID, userID, "apply role "+eff.Role, err,
					"The "+eff.Role+" role could not be applied everywhere.")
			}
		case RemoveRole:
			if err := e.roles.RemoveRole(ctx, eff.GuildID, userID, eff.Role); err != nil {
				e.soft(ctx, &report, eff.GuildID, userID, "remove role "+eff.Role, err,
					"The "+eff.Role+" role could not be removed everywhere.")
			}
		case Rename:
			name, err := e.roles.Rename(ctx, eff.GuildID, userID, nicknameFor(eff.Tag, eff.BaseName))
			if err != nil {
				e.soft(ctx, &report, eff.GuildID, userID, "set nickname", err,
					"Your nickname could not be updated (missing permission or role hierarchy).")
			}
			if name != "" {
				report.Nickname = name
				e.persistNickname(ctx, userID, name)
			}
		case Send:
			msg := withCaveats(eff.Message, report.Caveats)
			if err := e.notifier.Send(ctx, userID, msg); err != nil {
				e.undelivered(ctx, &report, userID, string(msg.Kind), err)
			}
		case Broadcast:
			if err := e.notifier.Broadcast(ctx, userID, eff.Message); err != nil {
				e.undelivered(ctx, &report, userID, string(eff.Message.Kind), err)
			}
		}
	}
	return report
}

func (e *Executor) soft(ctx context.Context, report *Report, guildID, userID, action string, err error, caveat string) {
	if errors.Is(err, ErrNoAuthority) {
		err = &AuthorityError{GuildID: guildID, Action: action, Err: err}
	}
	report.Errors = append(report.Errors, err)
	report.Caveats = append(report.Caveats, caveat)
	e.logger.Warn("onboarding side effect skipped", zap.String("user_id", userID), zap.String("action", action), zap.Error(err))
	e.audit.Log(ctx, audit.LevelWarn, guildID, userID, audit.EventSoftFailure, action+": "+err.Error())
}

func (e *Executor) undelivered(ctx context.Context, report *Report, userID, kind string, err error) {
	err = &DeliveryError{Recipient: userID, Err: err}
	report.Errors = append(report.Errors, err)
	e.logger.Warn("onboarding message not delivered", zap.String("user_id", userID), zap.String("message", kind), zap.Error(err))
}

func (e *Executor) persistNickname(ctx context.Context, userID, name string) {
	if e.profiles == nil {
		return
	}
	if err := e.profiles.UpsertProfile(ctx, userID, storage.ProfilePatch{Nickname: &name}); err != nil {
		e.logger.Warn("persist nickname failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func withCaveats(msg Message, caveats []string) Message {
	if len(caveats) == 0 {
		return msg
	}
	merged := make([]string, 0, len(msg.Caveats)+len(caveats))
	merged = append(merged, msg.Caveats...)
	merged = append(merged, caveats...)
	msg.Caveats = merged
	return msg
}
