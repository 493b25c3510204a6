package onboarding

import (
	"context"

	"region40-bot/internal/intake"
	"region40-bot/internal/modules/audit"
	"region40-bot/internal/storage"
	"region40-bot/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the slice of storage the machine needs.
type Store interface {
	GetProfile(ctx context.Context, userID string) (storage.UserProfile, bool, error)
	UpsertProfile(ctx context.Context, userID string, patch storage.ProfilePatch) error
	GetGuildSettings(ctx context.Context, guildID string) (storage.GuildSettings, error)
}

// Outcome is a handled trigger. Dropped means the guard rejected it as a
// duplicate; nothing was read or written.
type Outcome struct {
	TraceID string
	Dropped bool
	Decision
}

type Machine struct {
	rules  Rules
	store  Store
	guard  *intake.Guard
	audit  *audit.Logger
	logger *zap.Logger
	clock  utils.Clock
}

func NewMachine(rules Rules, store Store, guard *intake.Guard, auditLogger *audit.Logger, logger *zap.Logger) *Machine {
	return &Machine{
		rules:  rules,
		store:  store,
		guard:  guard,
		audit:  auditLogger,
		logger: logger,
		clock:  utils.SystemClock{},
	}
}

func (m *Machine) WithClock(clock utils.Clock) {
	m.clock = clock
}

func (m *Machine) Rules() Rules {
	return m.rules
}

// Handle runs one trigger through the guard, loads the member, decides and
// commits the transition. Effects are returned, not executed. On a
// StorageError nothing is committed and the guard forgets the key so the
// member can simply retry.
func (m *Machine) Handle(ctx context.Context, trigger Trigger) (Outcome, error) {
	trigger = trigger.classify(m.rules.VerifyPhrase)
	outcome := Outcome{TraceID: uuid.NewString()}
	logger := m.logger.With(
		zap.String("trace_id", outcome.TraceID),
		zap.String("trigger", string(trigger.Kind)),
		zap.String("user_id", trigger.UserID),
		zap.String("guild_id", trigger.GuildID),
	)

	key := trigger.Key()
	if trigger.debounced() {
		if !m.guard.ShouldProcess(key) {
			logger.Debug("duplicate trigger dropped")
			outcome.Dropped = true
			return outcome, nil
		}
	} else if !m.guard.Acquire(key) {
		logger.Debug("trigger dropped while another is in flight")
		outcome.Dropped = true
		return outcome, nil
	}
	defer m.guard.Release(key)

	state, err := m.load(ctx, trigger)
	if err != nil {
		m.guard.Forget(key)
		logger.Error("load onboarding state failed", zap.Error(err))
		return outcome, err
	}

	outcome.Decision = Decide(m.rules, state, trigger, m.clock.Now())
	if outcome.Ignored {
		logger.Debug("trigger ignored", zap.String("reason", outcome.Reason))
		return outcome, nil
	}

	if !outcome.Patch.IsEmpty() {
		if err := m.store.UpsertProfile(ctx, trigger.UserID, outcome.Patch); err != nil {
			m.guard.Forget(key)
			logger.Error("commit transition failed", zap.Error(err))
			return Outcome{TraceID: outcome.TraceID}, &StorageError{Op: "upsert profile", Err: err}
		}
	}
	if trigger.Kind == TriggerAdminReset {
		// the member's earlier verify must not debounce the restart
		m.guard.Forget(key)
	}

	if outcome.Event != "" {
		m.audit.Log(ctx, audit.LevelInfo, trigger.GuildID, trigger.UserID, outcome.Event, m.details(trigger, outcome.Decision))
	}
	logger.Info("onboarding transition",
		zap.String("from", string(state.step())),
		zap.String("to", string(outcome.Next)),
		zap.Int("effects", len(outcome.Effects)),
	)
	return outcome, nil
}

func (m *Machine) load(ctx context.Context, trigger Trigger) (State, error) {
	profile, exists, err := m.store.GetProfile(ctx, trigger.UserID)
	if err != nil {
		return State{}, &StorageError{Op: "get profile", Err: err}
	}
	settings := storage.DefaultGuildSettings(trigger.GuildID)
	if trigger.GuildID != "" {
		settings, err = m.store.GetGuildSettings(ctx, trigger.GuildID)
		if err != nil {
			return State{}, &StorageError{Op: "get guild settings", Err: err}
		}
	}
	return State{Profile: profile, Exists: exists, Settings: settings}, nil
}

func (m *Machine) details(trigger Trigger, decision Decision) string {
	details := "step=" + string(decision.Next)
	if trigger.ActorID != "" {
		details += " actor=" + trigger.ActorID
	}
	if decision.Profile.Alliance != "" {
		details += " alliance=" + decision.Profile.Alliance
	}
	return details
}
