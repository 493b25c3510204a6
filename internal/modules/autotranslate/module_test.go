package autotranslate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"region40-bot/internal/storage"
	"region40-bot/internal/translate"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTranslator struct {
	source    string
	failFor   string
	translate int
}

func (f *fakeTranslator) Translate(_ context.Context, text, target string) (translate.Result, error) {
	f.translate++
	if target == f.failFor {
		return translate.Result{}, errors.New("quota exceeded")
	}
	if target == f.source {
		return translate.Result{Text: text, SourceLanguage: f.source}, nil
	}
	return translate.Result{Text: "[" + target + "] " + text, SourceLanguage: f.source}, nil
}

func (f *fakeTranslator) Detect(context.Context, string) (string, error) {
	return f.source, nil
}

func ptr[T any](v T) *T { return &v }

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.New(storage.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate())
	return store
}

func subscribe(t *testing.T, store *storage.Store, userID, lang string) {
	t.Helper()
	require.NoError(t, store.UpsertProfile(context.Background(), userID, storage.ProfilePatch{
		Language:      ptr(lang),
		AutoTranslate: ptr(true),
	}))
}

func TestHandleMessageFansOutPerLanguage(t *testing.T) {
	store := newStore(t)
	subscribe(t, store, "author", "de")
	subscribe(t, store, "a", "fr")
	subscribe(t, store, "b", "fr")
	subscribe(t, store, "c", "en")
	subscribe(t, store, "d", "es")
	subscribe(t, store, "outsider", "ja")

	inGuild := func(userID string) bool { return userID != "outsider" }
	module := New(store, &fakeTranslator{source: "en"}, zap.NewNop())

	deliveries, err := module.HandleMessage(context.Background(), Message{GuildID: "g1", AuthorID: "author", Content: "hello there"}, inGuild)
	require.NoError(t, err)
	require.Len(t, deliveries, 2)

	require.Equal(t, "es", deliveries[0].Target)
	require.Equal(t, []string{"d"}, deliveries[0].Mentions)
	require.Equal(t, "fr", deliveries[1].Target)
	require.Equal(t, []string{"a", "b"}, deliveries[1].Mentions)
	require.Equal(t, "en", deliveries[1].Source)
	require.True(t, strings.HasPrefix(deliveries[1].Text, "[fr]"))
	require.False(t, deliveries[1].ServerWide)
}

func TestHandleMessageSkipsFailuresAndUnchangedText(t *testing.T) {
	store := newStore(t)
	subscribe(t, store, "a", "fr")
	subscribe(t, store, "b", "it")

	module := New(store, &fakeTranslator{source: "", failFor: "it"}, zap.NewNop())
	deliveries, err := module.HandleMessage(context.Background(), Message{GuildID: "g1", AuthorID: "x", Content: "ciao"}, nil)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	require.Equal(t, "fr", deliveries[0].Target)
}

func TestHandleMessageServerWideFallback(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	translator := &fakeTranslator{source: "fr"}
	module := New(store, translator, zap.NewNop())
	msg := Message{GuildID: "g1", AuthorID: "x", Content: "bonjour tout le monde"}

	deliveries, err := module.HandleMessage(ctx, msg, nil)
	require.NoError(t, err)
	require.Empty(t, deliveries)

	settings := storage.DefaultGuildSettings("g1")
	settings.AutoTranslateEnabled = true
	settings.TargetLanguage = "en"
	require.NoError(t, store.UpsertGuildSettings(ctx, settings))

	deliveries, err = module.HandleMessage(ctx, msg, nil)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	require.True(t, deliveries[0].ServerWide)
	require.Empty(t, deliveries[0].Mentions)
	require.Equal(t, "en", deliveries[0].Target)

	settings.TargetLanguage = "fr"
	require.NoError(t, store.UpsertGuildSettings(ctx, settings))
	deliveries, err = module.HandleMessage(ctx, msg, nil)
	require.NoError(t, err)
	require.Empty(t, deliveries)
}

func TestHandleMessageIgnoresLinksOnly(t *testing.T) {
	store := newStore(t)
	subscribe(t, store, "a", "fr")
	translator := &fakeTranslator{source: "en"}

	deliveries, err := New(store, translator, zap.NewNop()).HandleMessage(context.Background(), Message{GuildID: "g1", AuthorID: "x", Content: "https://example.com <@123>"}, nil)
	require.NoError(t, err)
	require.Empty(t, deliveries)
	require.Zero(t, translator.translate)
}

func TestTranslateSkipsSameLanguage(t *testing.T) {
	module := New(newStore(t), &fakeTranslator{source: "ja"}, zap.NewNop())

	_, ok := module.Translate(context.Background(), "こんにちは", "ja")
	require.False(t, ok)

	delivery, ok := module.Translate(context.Background(), "こんにちは", "en")
	require.True(t, ok)
	require.Equal(t, "ja", delivery.Source)
	require.Equal(t, "en", delivery.Target)
}
