package onboarding

import (
	"context"
	"errors"
	"testing"
	"time"

	"region40-bot/internal/intake"
	"region40-bot/internal/modules/audit"
	"region40-bot/internal/storage"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type harness struct {
	store   *storage.Store
	clock   *fakeClock
	machine *Machine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := storage.New(storage.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate())

	clock := &fakeClock{now: testNow}
	store.WithClock(clock.Now)
	guard := intake.NewGuard(intake.DefaultWindow, clock)
	machine := NewMachine(DefaultRules(), store, guard, audit.NewLogger(store, zap.NewNop()), zap.NewNop())
	machine.WithClock(clock)
	return &harness{store: store, clock: clock, machine: machine}
}

func (h *harness) dm(t *testing.T, userID, text string) Outcome {
	t.Helper()
	outcome, err := h.machine.Handle(context.Background(), Trigger{Kind: TriggerText, UserID: userID, Payload: text})
	require.NoError(t, err)
	return outcome
}

func (h *harness) profile(t *testing.T, userID string) storage.UserProfile {
	t.Helper()
	profile, ok, err := h.store.GetProfile(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, ok)
	return profile
}

func TestMachineEndToEnd(t *testing.T) {
	h := newHarness(t)

	outcome := h.dm(t, "x", "verify")
	require.False(t, outcome.Dropped)
	require.NotEmpty(t, outcome.TraceID)
	record := h.profile(t, "x")
	require.True(t, record.Verified)
	require.Equal(t, "profile", record.OnboardingStep)

	h.clock.now = h.clock.now.Add(5 * time.Second)
	h.dm(t, "x", "Bob | EST | english")
	record = h.profile(t, "x")
	require.Equal(t, "Bob", record.InGameName)
	require.Equal(t, "EST", record.Timezone)
	require.Equal(t, "en", record.Language)
	require.Equal(t, "alliance", record.OnboardingStep)
	require.True(t, record.AutoTranslate)
	require.NotNil(t, record.ProfileCompletedAt)

	outcome = h.dm(t, "x", "1")
	record = h.profile(t, "x")
	require.Equal(t, "anqa", record.Alliance)
	require.Equal(t, "complete", record.OnboardingStep)
	require.Contains(t, outcome.Effects, Effect(ApplyRoleEverywhere("ANQA")))
	require.Contains(t, outcome.Effects, Effect(Rename{Tag: "ANQA", BaseName: "Bob"}))

	logs, err := h.store.ListAuditLogs(context.Background(), "", testNow.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, logs, 3)
	require.Equal(t, audit.EventComplete, logs[0].Event)
}

func TestMachineDebouncesRepeatedVerify(t *testing.T) {
	h := newHarness(t)

	first := h.dm(t, "y", "verify")
	h.clock.now = h.clock.now.Add(time.Second)
	second := h.dm(t, "y", "verify")

	require.False(t, first.Dropped)
	require.Equal(t, []MessageKind{MessageProfilePrompt}, sentKinds(first.Effects))
	require.True(t, second.Dropped)
	require.Empty(t, second.Effects)

	h.clock.now = h.clock.now.Add(intake.DefaultWindow)
	third := h.dm(t, "y", "verify")
	require.False(t, third.Dropped)
	require.Equal(t, []MessageKind{MessageAlreadyStarted}, sentKinds(third.Effects))
}

func TestMachineResetRestartsSequence(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.dm(t, "z", "verify")
	h.dm(t, "z", "Zed | UTC | german")
	h.dm(t, "z", "3")
	require.Equal(t, "complete", h.profile(t, "z").OnboardingStep)

	_, err := h.machine.Handle(ctx, Trigger{Kind: TriggerAdminReset, UserID: "z", GuildID: "g1", ActorID: "admin"})
	require.NoError(t, err)
	record := h.profile(t, "z")
	require.False(t, record.Verified)
	require.Empty(t, record.Alliance)
	require.Empty(t, record.OnboardingStep)
	require.Equal(t, "Zed", record.InGameName)

	h.clock.now = h.clock.now.Add(intake.DefaultWindow)
	outcome := h.dm(t, "z", "verify")
	require.Equal(t, StepProfile, outcome.Next)
	require.Equal(t, "profile", h.profile(t, "z").OnboardingStep)
	require.True(t, h.profile(t, "z").Verified)
}

func TestMachineResetAllowsImmediateVerify(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.dm(t, "r", "verify")
	h.clock.now = h.clock.now.Add(2 * time.Second)
	h.dm(t, "r", "Rae | CET | french")
	h.clock.now = h.clock.now.Add(2 * time.Second)
	h.dm(t, "r", "3")
	require.Equal(t, "complete", h.profile(t, "r").OnboardingStep)

	_, err := h.machine.Handle(ctx, Trigger{Kind: TriggerAdminReset, UserID: "r", GuildID: "g1", ActorID: "admin"})
	require.NoError(t, err)

	h.clock.now = h.clock.now.Add(5 * time.Second)
	outcome := h.dm(t, "r", "verify")
	require.False(t, outcome.Dropped)
	require.Equal(t, StepProfile, outcome.Next)
	record := h.profile(t, "r")
	require.True(t, record.Verified)
	require.Equal(t, "profile", record.OnboardingStep)

	again := h.dm(t, "r", "verify")
	require.True(t, again.Dropped)
}

func TestMachineMalformedInputLeavesRecordUntouched(t *testing.T) {
	h := newHarness(t)

	h.dm(t, "m", "verify")
	before := h.profile(t, "m")

	outcome := h.dm(t, "m", "Bob | EST")
	require.Equal(t, []MessageKind{MessageFormatError}, sentKinds(outcome.Effects))
	require.Equal(t, before, h.profile(t, "m"))
}

func TestMachineJoinDoesNotCreateRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	join := Trigger{Kind: TriggerJoin, UserID: "j", GuildID: "g1"}
	outcome, err := h.machine.Handle(ctx, join)
	require.NoError(t, err)
	require.Equal(t, []MessageKind{MessageWelcome}, sentKinds(outcome.Effects))

	again, err := h.machine.Handle(ctx, join)
	require.NoError(t, err)
	require.True(t, again.Dropped)

	_, ok, err := h.store.GetProfile(ctx, "j")
	require.NoError(t, err)
	require.False(t, ok)
}

type failingStore struct {
	Store
	failUpsert bool
}

func (s *failingStore) UpsertProfile(ctx context.Context, userID string, patch storage.ProfilePatch) error {
	if s.failUpsert {
		return errors.New("disk I/O error")
	}
	return s.Store.UpsertProfile(ctx, userID, patch)
}

func TestMachineStorageFailureIsNotCommitted(t *testing.T) {
	h := newHarness(t)
	store := &failingStore{Store: h.store, failUpsert: true}
	machine := NewMachine(DefaultRules(), store, intake.NewGuard(intake.DefaultWindow, h.clock), nil, zap.NewNop())
	machine.WithClock(h.clock)
	ctx := context.Background()

	outcome, err := machine.Handle(ctx, Trigger{Kind: TriggerText, UserID: "s", Payload: "verify"})
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	require.Empty(t, outcome.Effects)

	_, ok, err := h.store.GetProfile(ctx, "s")
	require.NoError(t, err)
	require.False(t, ok)

	store.failUpsert = false
	outcome, err = machine.Handle(ctx, Trigger{Kind: TriggerText, UserID: "s", Payload: "verify"})
	require.NoError(t, err)
	require.False(t, outcome.Dropped)
	require.Equal(t, StepProfile, outcome.Next)
}
