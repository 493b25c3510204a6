package autotranslate

import (
	"context"
	"sort"
	"strings"

	"region40-bot/internal/storage"
	"region40-bot/internal/translate"
	"region40-bot/internal/utils"

	"go.uber.org/zap"
)

type Store interface {
	ListAutoTranslateProfiles(ctx context.Context) ([]storage.UserProfile, error)
	GetGuildSettings(ctx context.Context, guildID string) (storage.GuildSettings, error)
}

type Message struct {
	GuildID   string
	ChannelID string
	AuthorID  string
	Content   string
}

// Delivery is one translated copy of a message. Mentions are the members it
// is addressed to; server-wide deliveries have none.
type Delivery struct {
	Source     string
	Target     string
	Text       string
	Mentions   []string
	ServerWide bool
}

type Module struct {
	store      Store
	translator translate.Translator
	logger     *zap.Logger
}

func New(store Store, translator translate.Translator, logger *zap.Logger) *Module {
	return &Module{store: store, translator: translator, logger: logger}
}

// HandleMessage translates a guild message for every member of the guild who
// opted in, one delivery per language. When nobody in the guild opted in and
// the guild has server-wide translation enabled, it translates into the
// guild's target language instead. isMember filters subscribers to the guild.
func (m *Module) HandleMessage(ctx context.Context, msg Message, isMember func(userID string) bool) ([]Delivery, error) {
	if m.translator == nil || !utils.HasTranslatableText(msg.Content) {
		return nil, nil
	}

	profiles, err := m.store.ListAutoTranslateProfiles(ctx)
	if err != nil {
		return nil, err
	}

	byLanguage := make(map[string][]string)
	for _, profile := range profiles {
		if profile.UserID == msg.AuthorID || (isMember != nil && !isMember(profile.UserID)) {
			continue
		}
		byLanguage[profile.Language] = append(byLanguage[profile.Language], profile.UserID)
	}

	if len(byLanguage) > 0 {
		return m.perLanguage(ctx, msg, byLanguage), nil
	}

	settings, err := m.store.GetGuildSettings(ctx, msg.GuildID)
	if err != nil {
		return nil, err
	}
	if !settings.AutoTranslateEnabled {
		return nil, nil
	}
	delivery, ok := m.Translate(ctx, msg.Content, settings.TargetLanguage)
	if !ok {
		return nil, nil
	}
	delivery.ServerWide = true
	return []Delivery{delivery}, nil
}

func (m *Module) perLanguage(ctx context.Context, msg Message, byLanguage map[string][]string) []Delivery {
	targets := make([]string, 0, len(byLanguage))
	for target := range byLanguage {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	source := m.detect(ctx, msg.Content)
	var deliveries []Delivery
	for _, target := range targets {
		if source != "" && source == target {
			continue
		}
		delivery, ok := m.translateFrom(ctx, msg.Content, source, target)
		if !ok {
			continue
		}
		delivery.Mentions = byLanguage[target]
		deliveries = append(deliveries, delivery)
	}
	return deliveries
}

// Translate renders content in target. It reports false when the content is
// already in target, when translation fails, or when nothing changed.
func (m *Module) Translate(ctx context.Context, content, target string) (Delivery, bool) {
	if m.translator == nil || !utils.HasTranslatableText(content) {
		return Delivery{}, false
	}
	source := m.detect(ctx, content)
	if source != "" && source == target {
		return Delivery{}, false
	}
	return m.translateFrom(ctx, content, source, target)
}

func (m *Module) translateFrom(ctx context.Context, content, source, target string) (Delivery, bool) {
	result, err := m.translator.Translate(ctx, content, target)
	if err != nil {
		m.logger.Warn("translation failed", zap.String("target", target), zap.Error(err))
		return Delivery{}, false
	}
	if result.Text == "" || strings.EqualFold(result.Text, content) {
		return Delivery{}, false
	}
	if source == "" {
		source = result.SourceLanguage
	}
	return Delivery{Source: source, Target: target, Text: result.Text}, true
}

func (m *Module) detect(ctx context.Context, content string) string {
	source, err := m.translator.Detect(ctx, content)
	if err != nil {
		m.logger.Debug("language detection failed", zap.Error(err))
		return ""
	}
	return source
}
