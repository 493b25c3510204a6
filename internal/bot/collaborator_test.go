package bot

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"region40-bot/internal/config"
	"region40-bot/internal/onboarding"
	"region40-bot/internal/storage"
)

const (
	botID   = "bot"
	ownerID = "owner"
)

type fakeAPI struct {
	guilds    map[string]*discordgo.Guild
	members   map[string]map[string]*discordgo.Member
	added     []string
	removed   []string
	created   []string
	nicknames map[string]string
	dms       map[string][]*discordgo.MessageSend
	channels  map[string][]*discordgo.MessageSend
	order     []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		guilds:    make(map[string]*discordgo.Guild),
		members:   make(map[string]map[string]*discordgo.Member),
		nicknames: make(map[string]string),
		dms:       make(map[string][]*discordgo.MessageSend),
		channels:  make(map[string][]*discordgo.MessageSend),
	}
}

// addGuild registers a guild where the bot holds a "Bot" role at position 10
// with Manage Roles and Manage Nicknames.
func (f *fakeAPI) addGuild(id string, roles ...*discordgo.Role) *discordgo.Guild {
	all := append([]*discordgo.Role{
		{ID: id, Name: "@everyone", Position: 0},
		{ID: id + "-bot", Name: "Bot", Position: 10, Permissions: discordgo.PermissionManageRoles | discordgo.PermissionManageNicknames},
	}, roles...)
	guild := &discordgo.Guild{ID: id, OwnerID: ownerID, Roles: all}
	f.guilds[id] = guild
	f.order = append(f.order, id)
	f.members[id] = map[string]*discordgo.Member{
		botID: {User: &discordgo.User{ID: botID}, Roles: []string{id + "-bot"}},
	}
	return guild
}

func (f *fakeAPI) addMember(guildID, userID, username string, roles ...string) *discordgo.Member {
	member := &discordgo.Member{User: &discordgo.User{ID: userID, Username: username}, Roles: roles}
	f.members[guildID][userID] = member
	return member
}

func (f *fakeAPI) SelfID() string { return botID }

func (f *fakeAPI) GuildIDs() []string { return f.order }

func (f *fakeAPI) Guild(guildID string) (*discordgo.Guild, error) {
	guild, ok := f.guilds[guildID]
	if !ok {
		return nil, errors.New("unknown guild")
	}
	return guild, nil
}

func (f *fakeAPI) Member(guildID, userID string) (*discordgo.Member, error) {
	member, ok := f.members[guildID][userID]
	if !ok {
		return nil, errNotMember
	}
	return member, nil
}

func (f *fakeAPI) Members(guildID string) ([]*discordgo.Member, error) {
	if _, ok := f.guilds[guildID]; !ok {
		return nil, errors.New("unknown guild")
	}
	members := make([]*discordgo.Member, 0, len(f.members[guildID]))
	for _, member := range f.members[guildID] {
		members = append(members, member)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].User.ID < members[j].User.ID })
	return members, nil
}

func (f *fakeAPI) AddRole(guildID, userID, roleID string) error {
	f.added = append(f.added, guildID+"/"+userID+"/"+roleID)
	member := f.members[guildID][userID]
	member.Roles = append(member.Roles, roleID)
	return nil
}

func (f *fakeAPI) RemoveRole(guildID, userID, roleID string) error {
	f.removed = append(f.removed, guildID+"/"+userID+"/"+roleID)
	return nil
}

func (f *fakeAPI) CreateRole(guildID, name string) (*discordgo.Role, error) {
	role := &discordgo.Role{ID: guildID + "-" + name, Name: name, Position: 1}
	f.guilds[guildID].Roles = append(f.guilds[guildID].Roles, role)
	f.created = append(f.created, guildID+"/"+name)
	return role, nil
}

func (f *fakeAPI) SetNickname(guildID, userID, nickname string) error {
	f.nicknames[guildID+"/"+userID] = nickname
	return nil
}

func (f *fakeAPI) SendDM(userID string, msg *discordgo.MessageSend) error {
	f.dms[userID] = append(f.dms[userID], msg)
	return nil
}

func (f *fakeAPI) SendChannel(channelID string, msg *discordgo.MessageSend) error {
	f.channels[channelID] = append(f.channels[channelID], msg)
	return nil
}

type fakeSettings map[string]storage.GuildSettings

func (s fakeSettings) GetGuildSettings(_ context.Context, guildID string) (storage.GuildSettings, error) {
	if settings, ok := s[guildID]; ok {
		return settings, nil
	}
	return storage.DefaultGuildSettings(guildID), nil
}

func newCollaborator(api *fakeAPI, settings fakeSettings) *collaborator {
	return &collaborator{
		api:            api,
		settings:       settings,
		render:         newRenderer(config.DefaultConfig().Notifications.EmbedColors),
		unverifiedRole: "Unverified",
		logger:         zap.NewNop(),
	}
}

func TestApplyRoleCreatesMissingUnverifiedRole(t *testing.T) {
	api := newFakeAPI()
	api.addGuild("g1")
	api.addMember("g1", "u1", "bob")
	c := newCollaborator(api, nil)

	require.NoError(t, c.ApplyRole(context.Background(), "g1", "u1", "Unverified"))
	require.Equal(t, []string{"g1/Unverified"}, api.created)
	require.Equal(t, []string{"g1/u1/g1-Unverified"}, api.added)
}

func TestApplyRoleMissingNamedRole(t *testing.T) {
	api := newFakeAPI()
	api.addGuild("g1")
	api.addMember("g1", "u1", "bob")
	c := newCollaborator(api, nil)

	err := c.ApplyRole(context.Background(), "g1", "u1", "ANQA")
	require.Error(t, err)
	require.Empty(t, api.created)
	require.Empty(t, api.added)
}

func TestApplyRoleEverywhereSkipsGuildsWithoutRoleOrMember(t *testing.T) {
	api := newFakeAPI()
	api.addGuild("g1", &discordgo.Role{ID: "r-anqa", Name: "ANQA", Position: 3})
	api.addGuild("g2")
	api.addGuild("g3", &discordgo.Role{ID: "r3-anqa", Name: "ANQA", Position: 3})
	api.addMember("g1", "u1", "bob")
	api.addMember("g2", "u1", "bob")
	c := newCollaborator(api, nil)

	require.NoError(t, c.ApplyRole(context.Background(), "", "u1", "ANQA"))
	require.Equal(t, []string{"g1/u1/r-anqa"}, api.added)
}

func TestApplyRoleAboveBotIsNoAuthority(t *testing.T) {
	api := newFakeAPI()
	api.addGuild("g1", &discordgo.Role{ID: "r-high", Name: "Admin", Position: 20})
	api.addMember("g1", "u1", "bob")
	c := newCollaborator(api, nil)

	err := c.ApplyRole(context.Background(), "g1", "u1", "Admin")
	require.ErrorIs(t, err, onboarding.ErrNoAuthority)
	require.Empty(t, api.added)
}

func TestApplyRoleAlreadyHeld(t *testing.T) {
	api := newFakeAPI()
	api.addGuild("g1", &discordgo.Role{ID: "r-anqa", Name: "ANQA", Position: 3})
	api.addMember("g1", "u1", "bob", "r-anqa")
	c := newCollaborator(api, nil)

	require.NoError(t, c.ApplyRole(context.Background(), "g1", "u1", "ANQA"))
	require.Empty(t, api.added)
}

func TestRemoveRoleOnlyWhenHeld(t *testing.T) {
	api := newFakeAPI()
	api.addGuild("g1", &discordgo.Role{ID: "r-unv", Name: "Unverified", Position: 1})
	api.addGuild("g2", &discordgo.Role{ID: "r2-unv", Name: "Unverified", Position: 1})
	api.addMember("g1", "u1", "bob", "r-unv")
	api.addMember("g2", "u1", "bob")
	c := newCollaborator(api, nil)

	require.NoError(t, c.RemoveRole(context.Background(), "", "u1", "Unverified"))
	require.Equal(t, []string{"g1/u1/r-unv"}, api.removed)
}

func TestRenameSkipsGuildWithoutAuthority(t *testing.T) {
	api := newFakeAPI()
	api.addGuild("g1")
	api.addGuild("g2", &discordgo.Role{ID: "r-mod", Name: "Mod", Position: 15})
	api.addMember("g1", "u1", "bob")
	api.addMember("g2", "u1", "bob", "r-mod")
	c := newCollaborator(api, nil)

	name, err := c.Rename(context.Background(), "", "u1", func(current string) string {
		return "(ANQA) " + current
	})
	require.ErrorIs(t, err, onboarding.ErrNoAuthority)
	require.Equal(t, "(ANQA) bob", name)
	require.Equal(t, map[string]string{"g1/u1": "(ANQA) bob"}, api.nicknames)
}

func TestRenameOwnerIsNoAuthority(t *testing.T) {
	api := newFakeAPI()
	api.addGuild("g1")
	api.addMember("g1", ownerID, "boss")
	c := newCollaborator(api, nil)

	_, err := c.Rename(context.Background(), "g1", ownerID, func(string) string { return "(ANQA) boss" })
	require.ErrorIs(t, err, onboarding.ErrNoAuthority)
	require.Empty(t, api.nicknames)
}

func TestRenameUnchangedNameIsNoop(t *testing.T) {
	api := newFakeAPI()
	api.addGuild("g1")
	member := api.addMember("g1", "u1", "bob")
	member.Nick = "(ANQA) bob"
	c := newCollaborator(api, nil)

	name, err := c.Rename(context.Background(), "g1", "u1", func(current string) string { return current })
	require.NoError(t, err)
	require.Equal(t, "(ANQA) bob", name)
	require.Empty(t, api.nicknames)
}

func TestBroadcastChannelFallback(t *testing.T) {
	api := newFakeAPI()
	api.addGuild("g1").SystemChannelID = "system-1"
	api.addGuild("g2").SystemChannelID = "system-2"
	api.addGuild("g3")
	api.addMember("g1", "u1", "bob")
	api.addMember("g2", "u1", "bob")
	api.addMember("g3", "u1", "bob")
	settings := fakeSettings{"g2": {GuildID: "g2", WelcomeChannelID: "welcome-2"}}
	c := newCollaborator(api, settings)

	msg := onboarding.Message{Kind: onboarding.MessageMemberOnboarded, Alliance: onboarding.DefaultAlliances()[0]}
	require.NoError(t, c.Broadcast(context.Background(), "u1", msg))
	require.Len(t, api.channels["system-1"], 1)
	require.Len(t, api.channels["welcome-2"], 1)
	require.Empty(t, api.channels["system-2"])
	require.Len(t, api.channels, 2)
}

func TestSendRendersDirectMessage(t *testing.T) {
	api := newFakeAPI()
	c := newCollaborator(api, nil)

	require.NoError(t, c.Send(context.Background(), "u1", onboarding.Message{Kind: onboarding.MessageWelcome, Phrase: "verify"}))
	require.Len(t, api.dms["u1"], 1)
	require.Contains(t, api.dms["u1"][0].Embeds[0].Description, "verify")
}
