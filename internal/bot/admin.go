package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"region40-bot/internal/language"
	"region40-bot/internal/modules/audit"
	"region40-bot/internal/modules/autotranslate"
	"region40-bot/internal/onboarding"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// bulkResetTimeout bounds a resetall run. It stays below the 15 minutes an
// interaction token lives, so the summary can still be edited in.
const bulkResetTimeout = 12 * time.Minute

func (b *Bot) handleCheckPerms(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	colors := b.cfg.Notifications.EmbedColors
	if interaction.GuildID == "" {
		b.respondEmbed(session, interaction, b.commandEmbed("🔍 Permissions", "This command only works in a server.", colors.Error, nil), true)
		return
	}
	guild, err := b.api.Guild(interaction.GuildID)
	if err != nil {
		b.respondEmbed(session, interaction, b.commandEmbed("🔍 Permissions", "Unable to access guild information. Please try again.", colors.Error, nil), true)
		return
	}
	self, err := b.api.Member(interaction.GuildID, b.api.SelfID())
	if err != nil {
		b.respondEmbed(session, interaction, b.commandEmbed("🔍 Permissions", "Unable to find my member in this server.", colors.Error, nil), true)
		return
	}

	ok, fields := permissionReport(guild, self, b.machine.Rules().Alliances, b.cfg.Onboarding.UnverifiedRole)
	color := colors.Success
	if !ok {
		color = colors.Error
	}
	b.respondEmbed(session, interaction, b.commandEmbed("🔍 Bot permission diagnostics", "Current permissions and role management reach.", color, fields), true)
}

// permissionReport describes what the bot can do in guild. ok is false when
// Manage Roles or Manage Nicknames is missing.
func permissionReport(guild *discordgo.Guild, self *discordgo.Member, alliances onboarding.Alliances, unverifiedRole string) (bool, []*discordgo.MessageEmbedField) {
	check := func(ok bool) string {
		if ok {
			return "✅"
		}
		return "❌"
	}
	manageRoles := hasPermission(guild, self, discordgo.PermissionManageRoles)
	manageNicknames := hasPermission(guild, self, discordgo.PermissionManageNicknames)

	top := highestPosition(guild, self)
	topName := "@everyone"
	for _, role := range guild.Roles {
		if role.Position == top && hasRole(self, role.ID) {
			topName = role.Name
			break
		}
	}

	perms := []string{
		check(manageRoles) + " Manage Roles",
		check(manageNicknames) + " Manage Nicknames",
		check(hasPermission(guild, self, discordgo.PermissionSendMessages)) + " Send Messages",
		check(hasPermission(guild, self, discordgo.PermissionEmbedLinks)) + " Embed Links",
	}

	roleLine := func(name string) string {
		role := findRole(guild, name)
		switch {
		case role == nil:
			return "❓ " + name + " (missing)"
		case canAssign(guild, self, role) != nil:
			return fmt.Sprintf("⚠️ %s (position %d, not below my role)", name, role.Position)
		default:
			return fmt.Sprintf("✅ %s (position %d)", name, role.Position)
		}
	}
	roles := make([]string, 0, len(alliances)+1)
	for _, name := range alliances.RoleNames() {
		roles = append(roles, roleLine(name))
	}

	return manageRoles && manageNicknames, []*discordgo.MessageEmbedField{
		{Name: "🤖 Bot role", Value: fmt.Sprintf("**%s** (position %d)", topName, top)},
		{Name: "🔑 Permissions", Value: strings.Join(perms, "\n")},
		{Name: "🛡️ Alliance roles", Value: strings.Join(roles, "\n")},
		{Name: "🚪 Unverified role", Value: roleLine(unverifiedRole)},
	}
}

type bulkResetOptions struct {
	AddRole bool
	SendDM  bool
}

type bulkResetResult struct {
	Members  int
	Reset    int
	Busy     int
	Failed   int
	Warnings int
}

func (b *Bot) handleResetAll(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, actorID string, options map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	colors := b.cfg.Notifications.EmbedColors
	if interaction.GuildID == "" {
		b.respondEmbed(session, interaction, b.commandEmbed("🔄 Reset all", "This command only works in a server.", colors.Error, nil), true)
		return
	}
	if interaction.Member == nil || interaction.Member.Permissions&discordgo.PermissionAdministrator == 0 {
		b.respondEmbed(session, interaction, b.commandEmbed("🔄 Reset all", "You need the Administrator permission.", colors.Error, nil), true)
		return
	}
	if opt, ok := options["confirm"]; !ok || !opt.BoolValue() {
		b.respondEmbed(session, interaction, b.commandEmbed("🔄 Reset all", "Set `confirm` to `True` to reset every member's verification.", colors.Warning, nil), true)
		return
	}
	opts := bulkResetOptions{AddRole: true}
	if opt, ok := options["add_role"]; ok {
		opts.AddRole = opt.BoolValue()
	}
	if opt, ok := options["send_dm"]; ok {
		opts.SendDM = opt.BoolValue()
	}

	b.deferred(session, interaction, func() *discordgo.MessageEmbed {
		bulkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bulkResetTimeout)
		defer cancel()

		members, err := b.api.Members(interaction.GuildID)
		if err != nil {
			b.logger.Warn("member listing failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
			return b.commandEmbed("🔄 Reset all", "Could not list server members. Please try again.", colors.Error, nil)
		}
		result := b.resetMembers(bulkCtx, interaction.GuildID, actorID, members, opts)
		return b.bulkResetEmbed(result, opts)
	})
}

// resetMembers runs an admin reset for every human member of guildID, one
// member at a time, keeping only the effects opts asks for.
func (b *Bot) resetMembers(ctx context.Context, guildID, actorID string, members []*discordgo.Member, opts bulkResetOptions) bulkResetResult {
	unverified := b.machine.Rules().UnverifiedRole
	keep := func(effect onboarding.Effect) bool {
		return keepBulkResetEffect(effect, unverified, opts)
	}
	selfID := b.api.SelfID()

	var result bulkResetResult
	for _, member := range members {
		if member == nil || member.User == nil || member.User.Bot || member.User.ID == selfID {
			continue
		}
		result.Members++
		if ctx.Err() != nil {
			result.Failed++
			continue
		}
		outcome, report, err := b.dispatchFiltered(ctx, onboarding.Trigger{
			Kind:    onboarding.TriggerAdminReset,
			UserID:  member.User.ID,
			GuildID: guildID,
			ActorID: actorID,
		}, keep)
		switch {
		case err != nil:
			result.Failed++
			b.logger.Warn("bulk reset failed for member", zap.String("guild_id", guildID), zap.String("user_id", member.User.ID), zap.Error(err))
		case outcome.Dropped:
			result.Busy++
		default:
			result.Reset++
			if len(report.Errors) > 0 {
				result.Warnings++
			}
		}
	}

	b.audit.Log(ctx, audit.LevelWarn, guildID, actorID, audit.EventBulkReset,
		fmt.Sprintf("members=%d reset=%d busy=%d failed=%d add_role=%t send_dm=%t",
			result.Members, result.Reset, result.Busy, result.Failed, opts.AddRole, opts.SendDM))
	return result
}

// keepBulkResetEffect drops the unverified role and the reset notice from a
// reset unless opts enables them. Alliance role removal and the nickname
// rewrite always run.
func keepBulkResetEffect(effect onboarding.Effect, unverifiedRole string, opts bulkResetOptions) bool {
	switch e := effect.(type) {
	case onboarding.ApplyRole:
		return opts.AddRole || e.Role != unverifiedRole
	case onboarding.Send:
		return opts.SendDM
	default:
		return true
	}
}

func (b *Bot) bulkResetEmbed(result bulkResetResult, opts bulkResetOptions) *discordgo.MessageEmbed {
	colors := b.cfg.Notifications.EmbedColors
	title := "✅ Verification reset complete"
	color := colors.Success
	if result.Failed > 0 || result.Busy > 0 || result.Warnings > 0 {
		title = "⚠️ Verification reset finished with issues"
		color = colors.Warning
	}
	yesNo := func(v bool) string {
		if v {
			return "Yes"
		}
		return "No"
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "👥 Members", Value: fmt.Sprint(result.Members), Inline: true},
		{Name: "🔄 Reset", Value: fmt.Sprint(result.Reset), Inline: true},
		{Name: "⏳ Busy", Value: fmt.Sprint(result.Busy), Inline: true},
		{Name: "❌ Failed", Value: fmt.Sprint(result.Failed), Inline: true},
		{Name: "⚠️ Partial", Value: fmt.Sprint(result.Warnings), Inline: true},
		{Name: "🚪 Unverified role", Value: yesNo(opts.AddRole), Inline: true},
		{Name: "📬 DM sent", Value: yesNo(opts.SendDM), Inline: true},
	}
	return b.commandEmbed(title, "", color, fields)
}

func (b *Bot) handleHelp(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	b.respondEmbed(session, interaction, b.commandEmbed("📖 Region 40 bot help", "Onboarding and translation commands.", b.cfg.Notifications.EmbedColors.Info, helpFields()), true)
}

// helpFields groups the slash commands by audience, one line per command
// with its registered description.
func helpFields() []*discordgo.MessageEmbedField {
	var member, admin []string
	for _, cmd := range commandDefinitions() {
		if cmd.Type == discordgo.MessageApplicationCommand {
			continue
		}
		line := fmt.Sprintf("`/%s` %s", cmd.Name, cmd.Description)
		if cmd.DefaultMemberPermissions != nil {
			admin = append(admin, line)
			continue
		}
		member = append(member, line)
	}
	return []*discordgo.MessageEmbedField{
		{Name: "👤 Members", Value: strings.Join(member, "\n")},
		{Name: "🛠️ Administrators", Value: strings.Join(admin, "\n")},
		{Name: "🌐 Translate a message", Value: "Right-click a message, then Apps → " + translateMessageCommand + ". Reacting with a country flag also translates it."},
	}
}

func (b *Bot) handleTestLang(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	colors := b.cfg.Notifications.EmbedColors
	textOpt, okText := options["text"]
	toOpt, okTo := options["to"]
	if !okText || !okTo {
		b.respondEmbed(session, interaction, b.commandEmbed("🧪 Translation test", "Missing text or target language.", colors.Error, nil), true)
		return
	}
	requested := toOpt.StringValue()
	code, ok := language.Resolve(requested)
	if !ok {
		b.respondEmbed(session, interaction, b.commandEmbed("🧪 Translation test", fmt.Sprintf("%q is not a language I know.", requested), colors.Warning, nil), true)
		return
	}
	text := textOpt.StringValue()
	b.deferred(session, interaction, func() *discordgo.MessageEmbed {
		delivery, ok := b.translate.Translate(ctx, text, code)
		return b.testLangEmbed(text, requested, code, delivery, ok)
	})
}

func (b *Bot) testLangEmbed(text, requested, code string, delivery autotranslate.Delivery, ok bool) *discordgo.MessageEmbed {
	colors := b.cfg.Notifications.EmbedColors
	fields := []*discordgo.MessageEmbedField{
		{Name: "📝 Original text", Value: "```" + text + "```"},
		{Name: "🎯 Requested", Value: fmt.Sprintf("%s → %s (%s)", requested, language.Name(code), code), Inline: true},
	}
	if !ok {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "⚠️ Note",
			Value: "No translation: the text is already in " + language.Name(code) + ", has nothing to translate, or translation is unavailable.",
		})
		return b.commandEmbed("🧪 Translation test", "", colors.Warning, fields)
	}
	source := delivery.Source
	if source == "" {
		source = "unknown"
	}
	fields = append(fields,
		&discordgo.MessageEmbedField{Name: "🔍 Detected", Value: source, Inline: true},
		&discordgo.MessageEmbedField{Name: "🌐 Translated text", Value: "```" + delivery.Text + "```"},
	)
	return b.commandEmbed("🧪 Translation test", "", colors.Success, fields)
}
