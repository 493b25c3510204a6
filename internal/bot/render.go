package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"region40-bot/internal/config"
	"region40-bot/internal/language"
	"region40-bot/internal/onboarding"
	"region40-bot/internal/storage"
)

const (
	allianceSelectID = "alliance_select"
	profileModalID   = "profile_modal"
	profileExample   = "`Bob | EST | English`"
)

type renderer struct {
	colors config.EmbedColors
	now    func() time.Time
}

func newRenderer(colors config.EmbedColors) renderer {
	return renderer{colors: colors, now: time.Now}
}

// direct renders a message sent to the member's DMs.
func (r renderer) direct(msg onboarding.Message) *discordgo.MessageSend {
	embed := r.embed(msg)
	if len(msg.Caveats) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "⚠️ Note",
			Value: strings.Join(msg.Caveats, "\n"),
		})
	}
	send := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}
	if msg.Kind == onboarding.MessageAllianceMenu || msg.Kind == onboarding.MessageSelectionError {
		send.Components = allianceMenu(msg.Alliances)
	}
	return send
}

// announcement renders a public post about the member.
func (r renderer) announcement(userID string, msg onboarding.Message) *discordgo.MessageSend {
	name := msg.Profile.InGameName
	if name == "" {
		name = "a new member"
	}
	return &discordgo.MessageSend{
		Content: fmt.Sprintf("🎉 Welcome <@%s> to **%s**!", userID, msg.Alliance.Name),
		Embeds: []*discordgo.MessageEmbed{{
			Description: fmt.Sprintf("%s has finished onboarding.", name),
			Color:       r.colors.Success,
			Timestamp:   r.now().Format(time.RFC3339),
		}},
		AllowedMentions: &discordgo.MessageAllowedMentions{Users: []string{userID}},
	}
}

func (r renderer) embed(msg onboarding.Message) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Color:     r.colors.Info,
		Timestamp: r.now().Format(time.RFC3339),
		Footer:    &discordgo.MessageEmbedFooter{Text: "Region 40"},
	}
	profile := msg.Profile

	switch msg.Kind {
	case onboarding.MessageWelcome:
		embed.Title = "👋 Welcome to Region 40!"
		embed.Description = fmt.Sprintf("To get started, reply to this message with **%s**.", msg.Phrase)
		embed.Fields = []*discordgo.MessageEmbedField{
			{Name: "What happens next", Value: "You will set up your profile and pick your alliance."},
		}
	case onboarding.MessageWelcomeBack:
		embed.Title = "👋 Welcome back!"
		embed.Description = "Your onboarding is already complete. Use `/profile` or `/alliance` to make changes."
		embed.Color = r.colors.Success
	case onboarding.MessageProfilePrompt:
		embed.Title = "✅ Verified! Step 1 of 2: Profile"
		embed.Description = "Reply with `In-game name | Timezone | Language`.\nExample: " + profileExample
		embed.Fields = []*discordgo.MessageEmbedField{
			{Name: "Prefer a form?", Value: "Use `/profile` in the server."},
		}
	case onboarding.MessageFormatError:
		embed.Title = "❌ That did not match the format"
		embed.Description = capitalize(msg.Reason) + ".\nExample: " + profileExample
		embed.Color = r.colors.Warning
	case onboarding.MessageAllianceMenu:
		embed.Title = "🛡️ Step 2 of 2: Choose your alliance"
		embed.Description = "Reply with the number of your alliance or use the menu below.\n\n" + allianceList(msg.Alliances)
	case onboarding.MessageSelectionError:
		embed.Title = "❌ Invalid selection"
		embed.Description = capitalize(msg.Reason) + ".\n\n" + allianceList(msg.Alliances)
		embed.Color = r.colors.Warning
	case onboarding.MessageComplete:
		embed.Title = "🎉 Onboarding complete!"
		embed.Description = fmt.Sprintf("Welcome to **%s**.", msg.Alliance.Name)
		embed.Color = r.colors.Success
		embed.Fields = profileFields(profile)
	case onboarding.MessageAlreadyStarted:
		embed.Title = "⏳ Onboarding already in progress"
		embed.Description = stepHint(msg.Step)
	case onboarding.MessageAlreadyComplete:
		embed.Title = "✅ You are already onboarded"
		embed.Description = "Use `/profile` to update your details or `/alliance` to switch alliance."
		embed.Color = r.colors.Success
	case onboarding.MessageNotVerified:
		embed.Title = "🔒 Verify first"
		embed.Description = fmt.Sprintf("Reply **%s** in DMs or use `/verify` to begin onboarding.", msg.Phrase)
		embed.Color = r.colors.Warning
	case onboarding.MessageProfileRequired:
		embed.Title = "📋 Finish your profile first"
		embed.Description = stepHint(msg.Step)
		embed.Color = r.colors.Warning
	case onboarding.MessageAllianceChanged:
		embed.Title = "🛡️ Alliance updated"
		embed.Description = fmt.Sprintf("You are now in **%s**.", msg.Alliance.Name)
		embed.Color = r.colors.Success
	case onboarding.MessageProfileUpdated:
		embed.Title = "📋 Profile updated"
		embed.Color = r.colors.Success
		embed.Fields = profileFields(profile)
	case onboarding.MessageResetNotice:
		embed.Title = "🔄 Verification reset"
		embed.Description = fmt.Sprintf("An administrator reset your verification. Reply **%s** to start again.", msg.Phrase)
		embed.Color = r.colors.Warning
	default:
		embed.Title = string(msg.Kind)
	}
	return embed
}

func stepHint(step onboarding.Step) string {
	switch step {
	case onboarding.StepAlliance:
		return "Pick your alliance: reply with its number or use `/alliance`."
	case onboarding.StepProfile:
		return "Reply with `In-game name | Timezone | Language` or use `/profile`."
	default:
		return "Reply **verify** to begin."
	}
}

func profileFields(profile storage.UserProfile) []*discordgo.MessageEmbedField {
	orDash := func(value string) string {
		if strings.TrimSpace(value) == "" {
			return "-"
		}
		return value
	}
	return []*discordgo.MessageEmbedField{
		{Name: "In-game name", Value: orDash(profile.InGameName), Inline: true},
		{Name: "Timezone", Value: orDash(profile.Timezone), Inline: true},
		{Name: "Language", Value: orDash(language.Name(profile.Language)), Inline: true},
	}
}

func allianceList(alliances onboarding.Alliances) string {
	lines := make([]string, 0, len(alliances))
	for i, alliance := range alliances {
		lines = append(lines, fmt.Sprintf("**%d.** %s `(%s)`", i+1, alliance.Name, alliance.Tag))
	}
	return strings.Join(lines, "\n")
}

func allianceMenu(alliances onboarding.Alliances) []discordgo.MessageComponent {
	if len(alliances) == 0 {
		return nil
	}
	options := make([]discordgo.SelectMenuOption, 0, len(alliances))
	for _, alliance := range alliances {
		options = append(options, discordgo.SelectMenuOption{
			Label:       alliance.Name,
			Value:       alliance.Key,
			Description: "Nickname tag (" + alliance.Tag + ")",
		})
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				CustomID:    allianceSelectID,
				Placeholder: "Choose your alliance",
				Options:     options,
			},
		}},
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
