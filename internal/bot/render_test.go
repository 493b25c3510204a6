package bot

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"

	"region40-bot/internal/config"
	"region40-bot/internal/onboarding"
	"region40-bot/internal/storage"
)

func testRenderer() renderer {
	r := newRenderer(config.DefaultConfig().Notifications.EmbedColors)
	r.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return r
}

func TestDirectAllianceMenuHasSelect(t *testing.T) {
	r := testRenderer()
	send := r.direct(onboarding.Message{Kind: onboarding.MessageAllianceMenu, Alliances: onboarding.DefaultAlliances()})

	require.Len(t, send.Embeds, 1)
	require.Contains(t, send.Embeds[0].Description, "**1.** ANQA `(ANQA)`")
	require.Len(t, send.Components, 1)

	row, ok := send.Components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	menu, ok := row.Components[0].(discordgo.SelectMenu)
	require.True(t, ok)
	require.Equal(t, allianceSelectID, menu.CustomID)
	require.Len(t, menu.Options, len(onboarding.DefaultAlliances()))
	require.Equal(t, "anqa", menu.Options[0].Value)
}

func TestDirectCaveatsBecomeNote(t *testing.T) {
	r := testRenderer()
	send := r.direct(onboarding.Message{
		Kind:     onboarding.MessageComplete,
		Alliance: onboarding.DefaultAlliances()[0],
		Profile:  storage.UserProfile{InGameName: "Bob", Timezone: "EST", Language: "fr"},
		Caveats:  []string{"Your nickname could not be changed."},
	})

	embed := send.Embeds[0]
	require.Equal(t, r.colors.Success, embed.Color)
	require.Empty(t, send.Components)
	last := embed.Fields[len(embed.Fields)-1]
	require.Equal(t, "⚠️ Note", last.Name)
	require.Equal(t, "Your nickname could not be changed.", last.Value)
	require.Equal(t, "Bob", embed.Fields[0].Value)
	require.Equal(t, "2024-03-01T12:00:00Z", embed.Timestamp)
}

func TestDirectFormatErrorCapitalizesReason(t *testing.T) {
	r := testRenderer()
	send := r.direct(onboarding.Message{Kind: onboarding.MessageFormatError, Reason: "expected three fields"})

	require.Equal(t, r.colors.Warning, send.Embeds[0].Color)
	require.Contains(t, send.Embeds[0].Description, "Expected three fields.")
}

func TestAnnouncementMentionsMember(t *testing.T) {
	r := testRenderer()
	send := r.announcement("u1", onboarding.Message{
		Kind:     onboarding.MessageMemberOnboarded,
		Alliance: onboarding.Alliance{Key: "spbg", Name: "SPBG", Tag: "SPBG"},
		Profile:  storage.UserProfile{InGameName: "Bob"},
	})

	require.Equal(t, "🎉 Welcome <@u1> to **SPBG**!", send.Content)
	require.Equal(t, []string{"u1"}, send.AllowedMentions.Users)
	require.Contains(t, send.Embeds[0].Description, "Bob")
}

func TestProfileFieldsDashForEmpty(t *testing.T) {
	fields := profileFields(storage.UserProfile{InGameName: "Bob"})
	require.Equal(t, "-", fields[1].Value)
}

func TestAllianceMenuEmpty(t *testing.T) {
	require.Nil(t, allianceMenu(nil))
}
