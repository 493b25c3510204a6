package audit

import (
	"context"
	"testing"
	"time"

	"region40-bot/internal/storage"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLogPersistsAndNotifies(t *testing.T) {
	store, err := storage.New(storage.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate())

	logger := NewLogger(store, zap.NewNop())
	var notified []storage.AuditLog
	logger.SetNotifier(func(_ context.Context, entry storage.AuditLog) {
		notified = append(notified, entry)
	})

	logger.Log(context.Background(), LevelInfo, "g1", "u1", EventStarted, "step=profile")

	logs, err := store.ListAuditLogs(context.Background(), "g1", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, EventStarted, logs[0].Event)
	require.Len(t, notified, 1)
	require.Equal(t, "u1", notified[0].UserID)
}

func TestNilLoggerIsNoop(t *testing.T) {
	var logger *Logger
	logger.Log(context.Background(), LevelWarn, "g1", "u1", EventSoftFailure, "")
}
