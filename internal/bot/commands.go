package bot

import (
	"context"
	"fmt"
	"strings"

	"region40-bot/internal/language"
	"region40-bot/internal/modules/audit"
	"region40-bot/internal/onboarding"
	"region40-bot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const translateMessageCommand = "Translate Message"

func commandDefinitions() []*discordgo.ApplicationCommand {
	manageRoles := int64(discordgo.PermissionManageRoles)
	manageServer := int64(discordgo.PermissionManageServer)
	administrator := int64(discordgo.PermissionAdministrator)
	dmAllowed := true
	guildOnly := false

	return []*discordgo.ApplicationCommand{
		{
			Name:         "verify",
			Description:  "Start onboarding in your direct messages",
			DMPermission: &dmAllowed,
		},
		{
			Name:         "profile",
			Description:  "Set your in-game name, timezone and language",
			DMPermission: &guildOnly,
		},
		{
			Name:         "alliance",
			Description:  "Choose or switch your alliance",
			DMPermission: &dmAllowed,
		},
		{
			Name:         "setlang",
			Description:  "Set your language for auto-translation (or 'off')",
			DMPermission: &dmAllowed,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "language",
					Description: "Language name or code, e.g. French or fr",
					Required:    true,
				},
			},
		},
		{
			Name:         "getlang",
			Description:  "Show your language settings",
			DMPermission: &dmAllowed,
		},
		{
			Name:                     "autotranslate",
			Description:              "Manage server-wide auto-translation",
			DefaultMemberPermissions: &manageServer,
			DMPermission:             &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "enable",
					Description: "Enable server-wide translation",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "mode",
							Description: "server or personal",
							Required:    true,
							Choices: []*discordgo.ApplicationCommandOptionChoice{
								{Name: "server", Value: "server"},
								{Name: "personal", Value: "personal"},
							},
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "language",
							Description: "Target language for server mode (default English)",
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "disable",
					Description: "Disable server-wide translation",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "status",
					Description: "Show translation settings",
				},
			},
		},
		{
			Name:         "stats",
			Description:  "Show onboarding statistics",
			DMPermission: &guildOnly,
		},
		{
			Name:                     "manage",
			Description:              "Manage a member's onboarding",
			DefaultMemberPermissions: &manageRoles,
			DMPermission:             &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Target member",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "What to do",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "Add unverified role", Value: "add_role"},
						{Name: "Remove unverified role", Value: "remove_role"},
						{Name: "Reset verification", Value: "reset_verification"},
						{Name: "Force verify", Value: "force_verify"},
					},
				},
			},
		},
		{
			Name:                     "setup",
			Description:              "Configure bot channels for this server",
			DefaultMemberPermissions: &manageServer,
			DMPermission:             &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				channelOption("welcome_channel", "Where completed onboardings are announced"),
				channelOption("verification_channel", "Where members are pointed to verify"),
				channelOption("mod_channel", "Moderator notifications"),
				channelOption("log_channel", "Audit log channel"),
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "onboarding",
					Description: "Onboard new members on join",
				},
			},
		},
		{
			Name:                     "resetall",
			Description:              "Reset verification for every member of this server",
			DefaultMemberPermissions: &administrator,
			DMPermission:             &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "confirm",
					Description: "Set to True to confirm the reset",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "add_role",
					Description: "Give everyone the unverified role (default True)",
				},
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "send_dm",
					Description: "Send everyone the reset notice (default False)",
				},
			},
		},
		{
			Name:                     "checkperms",
			Description:              "Check the bot's permissions and role positions",
			DefaultMemberPermissions: &manageRoles,
			DMPermission:             &guildOnly,
		},
		{
			Name:         "help",
			Description:  "List the bot's commands",
			DMPermission: &dmAllowed,
		},
		{
			Name:         "testlang",
			Description:  "Try a translation",
			DMPermission: &dmAllowed,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "text",
					Description: "Text to translate",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "to",
					Description: "Target language name or code",
					Required:    true,
				},
			},
		},
		{
			Name: translateMessageCommand,
			Type: discordgo.MessageApplicationCommand,
		},
	}
}

func channelOption(name, description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionChannel,
		Name:         name,
		Description:  description,
		ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
	}
}

func (b *Bot) registerCommands() error {
	commands := commandDefinitions()

	appID := b.session.State.User.ID
	existing, err := b.session.ApplicationCommands(appID, "")
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
				return err
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, "", current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, "", cmd.ID)
	}
	return nil
}

func (b *Bot) handleCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	data := interaction.ApplicationCommandData()
	user := interactionUser(interaction)
	if user == nil {
		return
	}
	colors := b.cfg.Notifications.EmbedColors

	switch data.Name {
	case "verify":
		b.respond(session, interaction, "📬 Check your direct messages to continue onboarding.", true)
		b.runTrigger(ctx, onboarding.Trigger{Kind: onboarding.TriggerStart, UserID: user.ID, GuildID: interaction.GuildID})
	case "profile":
		b.showProfileModal(ctx, session, interaction, user.ID)
	case "alliance":
		rules := b.machine.Rules()
		_ = b.reply(session, interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content:    "🛡️ Choose your alliance:\n" + allianceList(rules.Alliances),
				Components: allianceMenu(rules.Alliances),
				Flags:      discordgo.MessageFlagsEphemeral,
			},
		})
	case "setlang":
		b.handleSetLang(ctx, session, interaction, user.ID, optionMap(data.Options))
	case "getlang":
		b.handleGetLang(ctx, session, interaction, user.ID)
	case "autotranslate":
		b.handleAutoTranslate(ctx, session, interaction, data.Options)
	case "stats":
		b.handleStats(ctx, session, interaction)
	case "manage":
		b.handleManage(ctx, session, interaction, user.ID, optionMap(data.Options))
	case "setup":
		b.handleSetup(ctx, session, interaction, optionMap(data.Options))
	case "resetall":
		b.handleResetAll(ctx, session, interaction, user.ID, optionMap(data.Options))
	case "checkperms":
		b.handleCheckPerms(session, interaction)
	case "help":
		b.handleHelp(session, interaction)
	case "testlang":
		b.handleTestLang(ctx, session, interaction, optionMap(data.Options))
	case translateMessageCommand:
		b.handleTranslateMessage(ctx, session, interaction, user.ID, data)
	default:
		b.respondEmbed(session, interaction, b.commandEmbed("Unknown command", data.Name, colors.Error, nil), true)
	}
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, option := range options {
		out[option.Name] = option
	}
	return out
}

func (b *Bot) showProfileModal(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, userID string) {
	profile, _, err := b.store.GetProfile(ctx, userID)
	if err != nil {
		b.logger.Warn("profile prefill failed", zap.String("user_id", userID), zap.Error(err))
	}
	input := func(id, label, placeholder, value string) discordgo.MessageComponent {
		return discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:    id,
				Label:       label,
				Style:       discordgo.TextInputShort,
				Placeholder: placeholder,
				Value:       value,
				Required:    true,
				MaxLength:   64,
			},
		}}
	}
	lang := ""
	if profile.Language != "" {
		lang = language.Name(profile.Language)
	}
	if err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: profileModalID,
			Title:    "Your profile",
			Components: []discordgo.MessageComponent{
				input("ign", "In-game name", "Bob", profile.InGameName),
				input("timezone", "Timezone", "EST", profile.Timezone),
				input("language", "Language", "English", lang),
			},
		},
	}); err != nil {
		b.logger.Warn("profile modal failed", zap.Error(err))
	}
}

func (b *Bot) handleSetLang(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, userID string, options map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	colors := b.cfg.Notifications.EmbedColors
	option, ok := options["language"]
	if !ok {
		b.respondEmbed(session, interaction, b.commandEmbed("🌐 Language", "Missing language.", colors.Error, nil), true)
		return
	}
	input := option.StringValue()

	if language.IsOff(input) {
		off := false
		if err := b.store.UpsertProfile(ctx, userID, storage.ProfilePatch{AutoTranslate: &off}); err != nil {
			b.logger.Warn("setlang failed", zap.String("user_id", userID), zap.Error(err))
			b.respondEmbed(session, interaction, b.commandEmbed("🌐 Language", "Could not save your preference. Please try again.", colors.Error, nil), true)
			return
		}
		b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, userID, audit.EventLanguageChanged, "auto_translate=off")
		b.respondEmbed(session, interaction, b.commandEmbed("🚫 Auto-translation disabled", "Use `/setlang <language>` to turn it back on.", colors.Warning, nil), true)
		return
	}

	code, ok := language.Resolve(input)
	if !ok {
		fields := []*discordgo.MessageEmbedField{{Name: "Supported", Value: strings.Join(language.Supported(), ", ")}}
		b.respondEmbed(session, interaction, b.commandEmbed("🌐 Unknown language", fmt.Sprintf("%q is not a language I know.", input), colors.Warning, fields), true)
		return
	}

	on := true
	if err := b.store.UpsertProfile(ctx, userID, storage.ProfilePatch{Language: &code, AutoTranslate: &on}); err != nil {
		b.logger.Warn("setlang failed", zap.String("user_id", userID), zap.Error(err))
		b.respondEmbed(session, interaction, b.commandEmbed("🌐 Language", "Could not save your preference. Please try again.", colors.Error, nil), true)
		return
	}
	b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, userID, audit.EventLanguageChanged, "language="+code)
	fields := []*discordgo.MessageEmbedField{
		{Name: "✅ Auto-translation enabled", Value: "Translations of server messages will mention you in the same channel."},
		{Name: "🚫 Disable", Value: "Use `/setlang off`."},
	}
	b.respondEmbed(session, interaction, b.commandEmbed("🌐 Language set", fmt.Sprintf("Your language is now **%s** (%s).", language.Name(code), code), colors.Success, fields), true)
}

func (b *Bot) handleGetLang(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, userID string) {
	colors := b.cfg.Notifications.EmbedColors
	profile, ok, err := b.store.GetProfile(ctx, userID)
	if err != nil {
		b.respondEmbed(session, interaction, b.commandEmbed("🌐 Language", "Could not read your settings.", colors.Error, nil), true)
		return
	}
	if !ok || !profile.AutoTranslate {
		fields := []*discordgo.MessageEmbedField{{Name: "Set language", Value: "Use `/setlang <language>` to enable auto-translation."}}
		b.respondEmbed(session, interaction, b.commandEmbed("🌐 Language settings", "Auto-translation is not enabled.", colors.Warning, fields), true)
		return
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Preferred language", Value: fmt.Sprintf("**%s** (%s)", language.Name(profile.Language), profile.Language)},
		{Name: "Status", Value: "✅ Auto-translation enabled"},
	}
	b.respondEmbed(session, interaction, b.commandEmbed("🌐 Language settings", "", colors.Info, fields), true)
}

func (b *Bot) handleAutoTranslate(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	colors := b.cfg.Notifications.EmbedColors
	if interaction.GuildID == "" || len(options) == 0 {
		b.respondEmbed(session, interaction, b.commandEmbed("🌐 Auto-translation", "This command only works in a server.", colors.Error, nil), true)
		return
	}
	if interaction.Member == nil || interaction.Member.Permissions&discordgo.PermissionManageServer == 0 {
		b.respondEmbed(session, interaction, b.commandEmbed("🌐 Auto-translation", "You need the Manage Server permission.", colors.Error, nil), true)
		return
	}

	settings := b.guildSettings(ctx, interaction.GuildID)
	sub := options[0]
	subOptions := optionMap(sub.Options)

	switch sub.Name {
	case "enable":
		mode := ""
		if opt, ok := subOptions["mode"]; ok {
			mode = opt.StringValue()
		}
		if mode != "server" {
			b.respondEmbed(session, interaction, b.commandEmbed("ℹ️ Personal auto-translation", "Members enable personal translation with `/setlang <language>`.", colors.Info, nil), true)
			return
		}
		target := "en"
		if opt, ok := subOptions["language"]; ok {
			code, ok := language.Resolve(opt.StringValue())
			if !ok {
				b.respondEmbed(session, interaction, b.commandEmbed("🌐 Auto-translation", "Unknown target language.", colors.Warning, nil), true)
				return
			}
			target = code
		}
		settings.AutoTranslateEnabled = true
		settings.TargetLanguage = target
	case "disable":
		settings.AutoTranslateEnabled = false
	case "status":
		state := "❌ Disabled"
		if settings.AutoTranslateEnabled {
			state = "✅ Enabled"
		}
		fields := []*discordgo.MessageEmbedField{
			{Name: "Server-wide translation", Value: state, Inline: true},
			{Name: "Target language", Value: language.Name(settings.TargetLanguage), Inline: true},
			{Name: "Personal translation", Value: "Members use `/setlang`"},
		}
		b.respondEmbed(session, interaction, b.commandEmbed("📊 Auto-translation status", "", colors.Info, fields), true)
		return
	default:
		b.respondEmbed(session, interaction, b.commandEmbed("🌐 Auto-translation", "Unknown subcommand.", colors.Error, nil), true)
		return
	}

	if err := b.store.UpsertGuildSettings(ctx, settings); err != nil {
		b.logger.Warn("autotranslate update failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
		b.respondEmbed(session, interaction, b.commandEmbed("🌐 Auto-translation", "Could not save settings.", colors.Error, nil), true)
		return
	}
	b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, interactionUser(interaction).ID, audit.EventSettingsChanged,
		fmt.Sprintf("auto_translate=%t target=%s", settings.AutoTranslateEnabled, settings.TargetLanguage))
	if settings.AutoTranslateEnabled {
		b.respondEmbed(session, interaction, b.commandEmbed("✅ Server-wide auto-translation enabled", "Messages will be translated to "+language.Name(settings.TargetLanguage)+" when no member has a personal language set.", colors.Success, nil), true)
		return
	}
	b.respondEmbed(session, interaction, b.commandEmbed("🚫 Server-wide auto-translation disabled", "", colors.Warning, nil), true)
}

func (b *Bot) handleStats(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	colors := b.cfg.Notifications.EmbedColors
	funnel, err := b.analytics.Funnel(ctx)
	if err != nil {
		b.logger.Warn("stats failed", zap.Error(err))
		b.respondEmbed(session, interaction, b.commandEmbed("📊 Statistics", "Could not read statistics.", colors.Error, nil), true)
		return
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "👥 Total users", Value: fmt.Sprint(funnel.Total), Inline: true},
		{Name: "✅ Verified", Value: fmt.Sprint(funnel.Verified), Inline: true},
		{Name: "📋 Profile complete", Value: fmt.Sprint(funnel.Profiled), Inline: true},
		{Name: "🛡️ Alliance selected", Value: fmt.Sprint(funnel.WithAlliance), Inline: true},
		{Name: "🌐 Auto-translation users", Value: fmt.Sprint(funnel.AutoTranslate), Inline: true},
		{Name: "📈 Completion rate", Value: fmt.Sprintf("%d%%", funnel.CompletionRate), Inline: true},
	}
	b.respondEmbed(session, interaction, b.commandEmbed("📊 Server statistics", "", colors.Info, fields), true)
}

func (b *Bot) handleManage(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, actorID string, options map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	colors := b.cfg.Notifications.EmbedColors
	if interaction.GuildID == "" {
		b.respondEmbed(session, interaction, b.commandEmbed("🛠️ Manage", "This command only works in a server.", colors.Error, nil), true)
		return
	}
	if interaction.Member == nil || interaction.Member.Permissions&discordgo.PermissionManageRoles == 0 {
		b.respondEmbed(session, interaction, b.commandEmbed("🛠️ Manage", "You need the Manage Roles permission.", colors.Error, nil), true)
		return
	}
	userOpt, okUser := options["user"]
	actionOpt, okAction := options["action"]
	if !okUser || !okAction {
		b.respondEmbed(session, interaction, b.commandEmbed("🛠️ Manage", "Missing user or action.", colors.Error, nil), true)
		return
	}
	target := userOpt.UserValue(session)
	if target == nil {
		b.respondEmbed(session, interaction, b.commandEmbed("🛠️ Manage", "User not found.", colors.Error, nil), true)
		return
	}

	action := actionOpt.StringValue()
	role := b.cfg.Onboarding.UnverifiedRole
	var work func() *discordgo.MessageEmbed

	switch action {
	case "add_role":
		work = func() *discordgo.MessageEmbed {
			report := b.executor.Run(ctx, target.ID, []onboarding.Effect{onboarding.ApplyRole{GuildID: interaction.GuildID, Role: role}})
			return b.manageResult(fmt.Sprintf("Added %q to <@%s>.", role, target.ID), onboarding.Outcome{}, report, nil)
		}
	case "remove_role":
		work = func() *discordgo.MessageEmbed {
			report := b.executor.Run(ctx, target.ID, []onboarding.Effect{onboarding.RemoveRole{GuildID: interaction.GuildID, Role: role}})
			return b.manageResult(fmt.Sprintf("Removed %q from <@%s>.", role, target.ID), onboarding.Outcome{}, report, nil)
		}
	case "reset_verification", "force_verify":
		kind := onboarding.TriggerAdminReset
		done := fmt.Sprintf("Reset verification for <@%s>.", target.ID)
		if action == "force_verify" {
			kind = onboarding.TriggerAdminForceVerify
			done = fmt.Sprintf("Force verified <@%s>.", target.ID)
		}
		work = func() *discordgo.MessageEmbed {
			outcome, report, err := b.dispatch(ctx, onboarding.Trigger{Kind: kind, UserID: target.ID, GuildID: interaction.GuildID, ActorID: actorID})
			return b.manageResult(done, outcome, report, err)
		}
	default:
		b.respondEmbed(session, interaction, b.commandEmbed("🛠️ Manage", "Invalid action.", colors.Error, nil), true)
		return
	}

	b.deferred(session, interaction, work)
}

// manageResult is the summary an administrator sees once a manage action
// has run.
func (b *Bot) manageResult(done string, outcome onboarding.Outcome, report onboarding.Report, err error) *discordgo.MessageEmbed {
	colors := b.cfg.Notifications.EmbedColors
	if err != nil {
		return b.commandEmbed("🛠️ Manage", "Could not save the change; nothing was modified. Please try again.", colors.Error, nil)
	}
	if outcome.Dropped {
		return b.commandEmbed("🛠️ Manage", "Another change for this member is in progress. Try again in a moment.", colors.Warning, nil)
	}
	color := colors.Success
	title := "✅ Done"
	if len(report.Errors) > 0 {
		color = colors.Warning
		title = "⚠️ Done with warnings"
	}
	var fields []*discordgo.MessageEmbedField
	if notes := summarize(report); notes != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Notes", Value: notes})
	}
	return b.commandEmbed(title, done, color, fields)
}

func (b *Bot) handleSetup(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	colors := b.cfg.Notifications.EmbedColors
	if interaction.GuildID == "" {
		b.respondEmbed(session, interaction, b.commandEmbed("⚙️ Setup", "This command only works in a server.", colors.Error, nil), true)
		return
	}
	if interaction.Member == nil || interaction.Member.Permissions&discordgo.PermissionManageServer == 0 {
		b.respondEmbed(session, interaction, b.commandEmbed("⚙️ Setup", "You need the Manage Server permission.", colors.Error, nil), true)
		return
	}

	settings := b.guildSettings(ctx, interaction.GuildID)
	channel := func(name string, dst *string) bool {
		opt, ok := options[name]
		if !ok {
			return false
		}
		if ch := opt.ChannelValue(session); ch != nil {
			*dst = ch.ID
			return true
		}
		return false
	}
	changed := false
	changed = channel("welcome_channel", &settings.WelcomeChannelID) || changed
	changed = channel("verification_channel", &settings.VerificationChannelID) || changed
	changed = channel("mod_channel", &settings.ModChannelID) || changed
	changed = channel("log_channel", &settings.LogChannelID) || changed
	if opt, ok := options["onboarding"]; ok {
		settings.OnboardingEnabled = opt.BoolValue()
		changed = true
	}

	title := "⚙️ Current server configuration"
	if changed {
		if err := b.store.UpsertGuildSettings(ctx, settings); err != nil {
			b.logger.Warn("setup update failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
			b.respondEmbed(session, interaction, b.commandEmbed("⚙️ Setup", "Could not save settings.", colors.Error, nil), true)
			return
		}
		b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, interactionUser(interaction).ID, audit.EventSettingsChanged, "setup")
		title = "⚙️ Server configuration updated"
	}
	b.respondEmbed(session, interaction, b.commandEmbed(title, "", colors.Info, settingsFields(settings)), true)
}

func settingsFields(settings storage.GuildSettings) []*discordgo.MessageEmbedField {
	channel := func(id, fallback string) string {
		if id == "" {
			return fallback
		}
		return "<#" + id + ">"
	}
	onboardingState := "Disabled"
	if settings.OnboardingEnabled {
		onboardingState = "Enabled"
	}
	return []*discordgo.MessageEmbedField{
		{Name: "Welcome channel", Value: channel(settings.WelcomeChannelID, "Not set (system channel)"), Inline: true},
		{Name: "Verification channel", Value: channel(settings.VerificationChannelID, "Not set"), Inline: true},
		{Name: "Mod channel", Value: channel(settings.ModChannelID, "Not set"), Inline: true},
		{Name: "Log channel", Value: channel(settings.LogChannelID, "Not set"), Inline: true},
		{Name: "Onboarding", Value: onboardingState, Inline: true},
	}
}

func (b *Bot) handleTranslateMessage(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, userID string, data discordgo.ApplicationCommandInteractionData) {
	colors := b.cfg.Notifications.EmbedColors
	var message *discordgo.Message
	if data.Resolved != nil {
		message = data.Resolved.Messages[data.TargetID]
	}
	if message == nil || strings.TrimSpace(message.Content) == "" {
		b.respondEmbed(session, interaction, b.commandEmbed("🌐 Translate", "That message has no text to translate.", colors.Warning, nil), true)
		return
	}

	target := "en"
	if profile, ok, err := b.store.GetProfile(ctx, userID); err == nil && ok && profile.Language != "" {
		target = profile.Language
	} else if interaction.GuildID != "" {
		target = b.guildSettings(ctx, interaction.GuildID).TargetLanguage
	}

	delivery, ok := b.translate.Translate(ctx, message.Content, target)
	if !ok {
		b.respondEmbed(session, interaction, b.commandEmbed("🌐 Translate", "Nothing to translate: the message is already in "+language.Name(target)+" or translation is unavailable.", colors.Warning, nil), true)
		return
	}
	source := delivery.Source
	if source == "" {
		source = "auto"
	}
	embed := b.commandEmbed("🌐 Translation", delivery.Text, colors.Info, nil)
	embed.Footer = &discordgo.MessageEmbedFooter{Text: strings.ToUpper(source) + " → " + strings.ToUpper(delivery.Target)}
	b.respondEmbed(session, interaction, embed, true)
}
