package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"region40-bot/internal/analytics"
	"region40-bot/internal/config"
	"region40-bot/internal/modules/audit"
	"region40-bot/internal/modules/autotranslate"
	"region40-bot/internal/onboarding"
	"region40-bot/internal/storage"
	"region40-bot/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	handlerTimeout = 30 * time.Second
	flagWindow     = 10 * time.Minute
)

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *storage.Store
	machine   *onboarding.Machine
	executor  *onboarding.Executor
	translate *autotranslate.Module
	audit     *audit.Logger
	analytics *analytics.Service
	session   *discordgo.Session
	api       discordAPI
	render    renderer
	// flagSeen suppresses repeat flag translations of the same message.
	flagSeen *utils.TTLMap[struct{}]
	stop     chan struct{}
	wg       sync.WaitGroup
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, machine *onboarding.Machine, translator *autotranslate.Module, auditLogger *audit.Logger, analyticsEngine *analytics.Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Bot.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		machine:   machine,
		translate: translator,
		audit:     auditLogger,
		analytics: analyticsEngine,
		session:   session,
		api:       sessionAPI{session: session},
		render:    newRenderer(cfg.Notifications.EmbedColors),
		flagSeen:  utils.NewTTLMap[struct{}](flagWindow, nil),
		stop:      make(chan struct{}),
	}

	collab := &collaborator{
		api:            b.api,
		settings:       store,
		render:         b.render,
		unverifiedRole: cfg.Onboarding.UnverifiedRole,
		logger:         logger,
	}
	b.executor = onboarding.NewExecutor(collab, collab, store, auditLogger, logger)

	if b.audit != nil {
		b.audit.SetNotifier(func(ctx context.Context, entry storage.AuditLog) {
			if !b.cfg.Notifications.AuditToChannel {
				return
			}
			b.notifyAudit(ctx, entry)
		})
	}

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(safe(b, "ready", b.onReady))
	b.session.AddHandler(safe(b, "member_add", b.onGuildMemberAdd))
	b.session.AddHandler(safe(b, "message_create", b.onMessageCreate))
	b.session.AddHandler(safe(b, "reaction_add", b.onMessageReactionAdd))
	b.session.AddHandler(safe(b, "interaction", b.onInteractionCreate))

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	b.startRetention()

	return nil
}

func (b *Bot) Close(ctx context.Context) {
	close(b.stop)
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("background work did not stop before shutdown deadline")
	}
	if b.session != nil {
		_ = b.session.Close()
	}
}

// safe keeps a panicking handler from taking the process down.
func safe[T any](b *Bot, name string, handler func(*discordgo.Session, T)) func(*discordgo.Session, T) {
	return func(session *discordgo.Session, event T) {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("handler panic", zap.String("handler", name), zap.Any("panic", r), zap.Stack("stack"))
			}
		}()
		handler(session, event)
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", event.User.Username), zap.Int("guilds", len(event.Guilds)))
}

// dispatch runs a trigger through the machine and executes its effects.
func (b *Bot) dispatch(ctx context.Context, trigger onboarding.Trigger) (onboarding.Outcome, onboarding.Report, error) {
	return b.dispatchFiltered(ctx, trigger, nil)
}

// dispatchFiltered is dispatch with the decision's effects narrowed to those
// keep accepts. A nil keep runs every effect.
func (b *Bot) dispatchFiltered(ctx context.Context, trigger onboarding.Trigger, keep func(onboarding.Effect) bool) (onboarding.Outcome, onboarding.Report, error) {
	outcome, err := b.machine.Handle(ctx, trigger)
	if err != nil {
		var storageErr *onboarding.StorageError
		if errors.As(err, &storageErr) {
			b.audit.Log(ctx, audit.LevelCrit, trigger.GuildID, trigger.UserID, audit.EventStorageFailure, storageErr.Op)
		}
		return outcome, onboarding.Report{}, err
	}
	effects := outcome.Effects
	if keep != nil {
		effects = make([]onboarding.Effect, 0, len(outcome.Effects))
		for _, effect := range outcome.Effects {
			if keep(effect) {
				effects = append(effects, effect)
			}
		}
	}
	if outcome.Dropped || outcome.Ignored || len(effects) == 0 {
		return outcome, onboarding.Report{}, nil
	}
	report := b.executor.Run(ctx, trigger.UserID, effects)
	return outcome, report, nil
}

func (b *Bot) startRetention() {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			b.cleanupAuditLogs()
			select {
			case <-b.stop:
				return
			case <-ticker.C:
			}
		}
	}()
}

func (b *Bot) cleanupAuditLogs() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := b.store.CleanupAuditLogs(ctx, b.cfg.Bot.RetentionDays); err != nil {
		b.logger.Warn("audit retention cleanup failed", zap.Error(err))
	}
}

func (b *Bot) guildSettings(ctx context.Context, guildID string) storage.GuildSettings {
	settings, err := b.store.GetGuildSettings(ctx, guildID)
	if err != nil {
		b.logger.Warn("guild settings fallback", zap.String("guild_id", guildID), zap.Error(err))
		return storage.DefaultGuildSettings(guildID)
	}
	return settings
}

func (b *Bot) notifyAudit(ctx context.Context, entry storage.AuditLog) {
	if entry.GuildID == "" {
		return
	}
	settings := b.guildSettings(ctx, entry.GuildID)
	if settings.LogChannelID == "" {
		return
	}
	if err := b.api.SendChannel(settings.LogChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{b.auditEmbed(entry)},
	}); err != nil {
		b.logger.Debug("audit notify failed", zap.String("guild_id", entry.GuildID), zap.Error(err))
	}
}

func (b *Bot) auditEmbed(entry storage.AuditLog) *discordgo.MessageEmbed {
	colors := b.cfg.Notifications.EmbedColors
	color := colors.Info
	switch entry.Level {
	case audit.LevelWarn:
		color = colors.Warning
	case audit.LevelCrit:
		color = colors.Error
	}
	userValue := "system"
	if entry.UserID != "" {
		userValue = "<@" + entry.UserID + ">"
	}
	details := entry.Details
	if details == "" {
		details = "-"
	}
	return &discordgo.MessageEmbed{
		Title: "📝 " + strings.ReplaceAll(entry.Event, "_", " "),
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Level", Value: entry.Level, Inline: true},
			{Name: "User", Value: userValue, Inline: true},
			{Name: "Details", Value: details},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// responder is the part of the session interaction replies go through.
type responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, edit *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// reply sends resp, logging a failure at debug level.
func (b *Bot) reply(r responder, interaction *discordgo.InteractionCreate, resp *discordgo.InteractionResponse) error {
	err := r.InteractionRespond(interaction.Interaction, resp)
	if err != nil {
		b.logger.Debug("interaction respond failed", zap.String("interaction_id", interaction.ID), zap.Error(err))
	}
	return err
}

func (b *Bot) respond(r responder, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = b.reply(r, interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
}

func (b *Bot) respondEmbed(r responder, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	if embed == nil {
		b.respond(r, interaction, "No response available.", ephemeral)
		return
	}
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = b.reply(r, interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
}

// deferred acknowledges interaction with an ephemeral placeholder, runs work
// and edits the placeholder into work's embed. Work is skipped when the
// acknowledgement fails, since its result could not be shown.
func (b *Bot) deferred(r responder, interaction *discordgo.InteractionCreate, work func() *discordgo.MessageEmbed) {
	if err := b.reply(r, interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}); err != nil {
		return
	}
	embed := work()
	if _, err := r.InteractionResponseEdit(interaction.Interaction, &discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{embed},
	}); err != nil {
		b.logger.Warn("interaction edit failed", zap.String("interaction_id", interaction.ID), zap.Error(err))
	}
}

func (b *Bot) commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}

// summarize turns an executor report into a line for the administrator.
func summarize(report onboarding.Report) string {
	var lines []string
	lines = append(lines, report.Caveats...)
	for _, err := range report.Errors {
		var delivery *onboarding.DeliveryError
		if errors.As(err, &delivery) {
			lines = append(lines, fmt.Sprintf("Could not DM <@%s>; they may have DMs disabled.", delivery.Recipient))
		}
	}
	return strings.Join(lines, "\n")
}
