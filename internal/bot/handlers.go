package bot

import (
	"context"
	"errors"
	"strings"

	"region40-bot/internal/language"
	"region40-bot/internal/modules/autotranslate"
	"region40-bot/internal/onboarding"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.Member == nil || event.Member.User == nil || event.Member.User.Bot || event.GuildID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if _, _, err := b.dispatch(ctx, onboarding.Trigger{
		Kind:    onboarding.TriggerJoin,
		UserID:  event.Member.User.ID,
		GuildID: event.GuildID,
	}); err != nil {
		b.logger.Warn("join not processed", zap.String("guild_id", event.GuildID), zap.String("user_id", event.Member.User.ID), zap.Error(err))
	}
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot || strings.TrimSpace(msg.Content) == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if msg.GuildID == "" {
		if _, _, err := b.dispatch(ctx, onboarding.Trigger{
			Kind:    onboarding.TriggerText,
			UserID:  msg.Author.ID,
			Payload: msg.Content,
		}); err != nil {
			b.logger.Warn("direct message not processed", zap.String("user_id", msg.Author.ID), zap.Error(err))
		}
		return
	}

	deliveries, err := b.translate.HandleMessage(ctx, autotranslate.Message{
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		AuthorID:  msg.Author.ID,
		Content:   msg.Content,
	}, func(userID string) bool {
		_, err := b.api.Member(msg.GuildID, userID)
		return err == nil
	})
	if err != nil {
		b.logger.Warn("auto-translate failed", zap.String("guild_id", msg.GuildID), zap.Error(err))
		return
	}
	for _, delivery := range deliveries {
		b.replyTranslation(session, msg.Message, delivery)
	}
}

func (b *Bot) onMessageReactionAdd(session *discordgo.Session, event *discordgo.MessageReactionAdd) {
	if event.MessageReaction == nil || event.UserID == b.api.SelfID() {
		return
	}
	target, ok := language.FromFlag(event.Emoji.Name)
	if !ok {
		return
	}
	if !b.flagSeen.SetIfAbsent(event.MessageID+":"+target, struct{}{}) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	message, err := session.ChannelMessage(event.ChannelID, event.MessageID)
	if err != nil {
		b.flagSeen.Delete(event.MessageID + ":" + target)
		b.logger.Debug("flag translation: message unavailable", zap.Error(err))
		return
	}
	delivery, ok := b.translate.Translate(ctx, message.Content, target)
	if !ok {
		return
	}
	b.replyTranslation(session, message, delivery)
}

func (b *Bot) replyTranslation(session *discordgo.Session, original *discordgo.Message, delivery autotranslate.Delivery) {
	send := translationMessage(original, delivery, b.cfg.Notifications.EmbedColors.Info)
	if _, err := session.ChannelMessageSendComplex(original.ChannelID, send); err != nil {
		b.logger.Warn("translation not delivered", zap.String("channel_id", original.ChannelID), zap.String("target", delivery.Target), zap.Error(err))
	}
}

func translationMessage(original *discordgo.Message, delivery autotranslate.Delivery, color int) *discordgo.MessageSend {
	mentions := make([]string, 0, len(delivery.Mentions))
	for _, id := range delivery.Mentions {
		mentions = append(mentions, "<@"+id+">")
	}
	source := delivery.Source
	if source == "" {
		source = "auto"
	}
	author := ""
	if original.Author != nil {
		author = original.Author.Username
	}
	return &discordgo.MessageSend{
		Content: strings.Join(mentions, " "),
		Embeds: []*discordgo.MessageEmbed{{
			Description: delivery.Text,
			Color:       color,
			Author:      &discordgo.MessageEmbedAuthor{Name: author},
			Footer:      &discordgo.MessageEmbedFooter{Text: "🌐 " + strings.ToUpper(source) + " → " + strings.ToUpper(delivery.Target)},
		}},
		Reference:       original.Reference(),
		AllowedMentions: &discordgo.MessageAllowedMentions{Users: delivery.Mentions},
	}
}

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	switch interaction.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, session, interaction)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(ctx, session, interaction)
	case discordgo.InteractionModalSubmit:
		b.handleModal(ctx, session, interaction)
	}
}

func (b *Bot) handleComponent(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	data := interaction.MessageComponentData()
	if data.CustomID != allianceSelectID || len(data.Values) == 0 {
		return
	}
	user := interactionUser(interaction)
	if user == nil {
		return
	}

	_ = b.reply(session, interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
	b.runTrigger(ctx, onboarding.Trigger{
		Kind:    onboarding.TriggerMenuSelect,
		UserID:  user.ID,
		GuildID: interaction.GuildID,
		Payload: data.Values[0],
	})
}

func (b *Bot) handleModal(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	data := interaction.ModalSubmitData()
	if data.CustomID != profileModalID {
		return
	}
	user := interactionUser(interaction)
	if user == nil {
		return
	}

	b.respond(session, interaction, "📋 Profile received. Check your direct messages.", true)
	b.runTrigger(ctx, onboarding.Trigger{
		Kind:    onboarding.TriggerProfileForm,
		UserID:  user.ID,
		GuildID: interaction.GuildID,
		Payload: profilePayload(modalValues(data)),
	})
}

// runTrigger dispatches a member-initiated trigger whose replies go by DM.
func (b *Bot) runTrigger(ctx context.Context, trigger onboarding.Trigger) {
	if _, _, err := b.dispatch(ctx, trigger); err != nil {
		var storageErr *onboarding.StorageError
		if errors.As(err, &storageErr) {
			b.logger.Error("onboarding trigger failed", zap.String("trigger", string(trigger.Kind)), zap.String("user_id", trigger.UserID), zap.Error(err))
			return
		}
		b.logger.Warn("onboarding trigger failed", zap.String("trigger", string(trigger.Kind)), zap.String("user_id", trigger.UserID), zap.Error(err))
	}
}

func interactionUser(interaction *discordgo.InteractionCreate) *discordgo.User {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User
	}
	return interaction.User
}

func modalValues(data discordgo.ModalSubmitInteractionData) map[string]string {
	values := make(map[string]string)
	for _, component := range data.Components {
		row, ok := component.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if input, ok := inner.(*discordgo.TextInput); ok {
				values[input.CustomID] = input.Value
			}
		}
	}
	return values
}

// profilePayload joins the form fields in the same "a | b | c" shape members
// type in DMs. A pipe inside a field would shift the columns, so it is replaced.
func profilePayload(values map[string]string) string {
	clean := func(key string) string {
		return strings.TrimSpace(strings.ReplaceAll(values[key], "|", "/"))
	}
	return clean("ign") + " | " + clean("timezone") + " | " + clean("language")
}
