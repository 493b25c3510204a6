package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type runFunc func(ctx context.Context) error

func (f runFunc) Run(ctx context.Context) error { return f(ctx) }

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunInBackgroundLogsStartupFailureImmediately(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := runInBackground(ctx, "dashboard", runFunc(func(context.Context) error {
		return errors.New("listen tcp :3000: address already in use")
	}), zap.New(core))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("service did not return")
	}
	require.NoError(t, ctx.Err())
	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "dashboard", entries[0].ContextMap()["service"])
	require.Contains(t, entries[0].ContextMap()["error"], "address already in use")
}

func TestRunInBackgroundStopsWithContext(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	ctx, cancel := context.WithCancel(context.Background())

	done := runInBackground(ctx, "dashboard", runFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}), zap.New(core))

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("service did not stop")
	}
	require.Zero(t, logs.Len())
}
