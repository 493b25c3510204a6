package analytics

import (
	"context"
	"testing"
	"time"

	"region40-bot/internal/storage"

	"github.com/stretchr/testify/require"
)

func TestFunnelAndReport(t *testing.T) {
	store, err := storage.New(storage.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate())
	ctx := context.Background()

	verified, name, step, alliance := true, "Bob", "complete", "ank"
	tz, lang := "EST", "en"
	require.NoError(t, store.UpsertProfile(ctx, "u1", storage.ProfilePatch{
		Verified: &verified, InGameName: &name, Timezone: &tz, Language: &lang,
		Alliance: &alliance, OnboardingStep: &step,
	}))
	require.NoError(t, store.UpsertProfile(ctx, "u2", storage.ProfilePatch{}))
	require.NoError(t, store.UpsertProfile(ctx, "u3", storage.ProfilePatch{}))

	service := New(store)
	funnel, err := service.Funnel(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, funnel.Total)
	require.Equal(t, 1, funnel.Completed)
	require.Equal(t, 33, funnel.CompletionRate)
	require.Equal(t, map[string]int{"ank": 1}, funnel.Alliances)

	require.NoError(t, store.AddAuditLog(ctx, storage.AuditLog{GuildID: "g1", Level: "INFO", Event: "onboarding_started"}))
	require.NoError(t, store.AddAuditLog(ctx, storage.AuditLog{GuildID: "g1", Level: "WARN", Event: "soft_failure"}))
	require.NoError(t, store.AddAuditLog(ctx, storage.AuditLog{GuildID: "g1", Level: "WARN", Event: "soft_failure"}))

	report, err := service.Report(ctx, "g1", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, 3, report.Total)
	require.Equal(t, 2, report.ByLevel["WARN"])
	require.Equal(t, 2, report.ByEvent["soft_failure"])
}

func TestCompletionRate(t *testing.T) {
	require.Equal(t, 0, CompletionRate(0, 0))
	require.Equal(t, 50, CompletionRate(1, 2))
	require.Equal(t, 67, CompletionRate(2, 3))
}
