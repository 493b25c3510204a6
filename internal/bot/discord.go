package bot

import (
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// discordAPI is the slice of session state and REST the collaborators use.
type discordAPI interface {
	SelfID() string
	GuildIDs() []string
	Guild(guildID string) (*discordgo.Guild, error)
	// Member returns errNotMember when the user is not in the guild.
	Member(guildID, userID string) (*discordgo.Member, error)
	// Members lists every member of the guild.
	Members(guildID string) ([]*discordgo.Member, error)
	AddRole(guildID, userID, roleID string) error
	RemoveRole(guildID, userID, roleID string) error
	CreateRole(guildID, name string) (*discordgo.Role, error)
	SetNickname(guildID, userID, nickname string) error
	SendDM(userID string, msg *discordgo.MessageSend) error
	SendChannel(channelID string, msg *discordgo.MessageSend) error
}

var errNotMember = errors.New("user is not a member of the guild")

type sessionAPI struct {
	session *discordgo.Session
}

func (a sessionAPI) SelfID() string {
	if a.session.State == nil || a.session.State.User == nil {
		return ""
	}
	return a.session.State.User.ID
}

func (a sessionAPI) GuildIDs() []string {
	state := a.session.State
	state.RLock()
	defer state.RUnlock()

	ids := make([]string, 0, len(state.Guilds))
	for _, guild := range state.Guilds {
		if guild != nil {
			ids = append(ids, guild.ID)
		}
	}
	return ids
}

func (a sessionAPI) Guild(guildID string) (*discordgo.Guild, error) {
	if guild, err := a.session.State.Guild(guildID); err == nil && guild != nil {
		return guild, nil
	}
	return a.session.Guild(guildID)
}

func (a sessionAPI) Member(guildID, userID string) (*discordgo.Member, error) {
	member, err := a.session.State.Member(guildID, userID)
	if err == nil && member != nil {
		return member, nil
	}
	member, err = a.session.GuildMember(guildID, userID)
	if err != nil {
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
			return nil, errNotMember
		}
		return nil, err
	}
	return member, nil
}

const membersPageSize = 1000

func (a sessionAPI) Members(guildID string) ([]*discordgo.Member, error) {
	var members []*discordgo.Member
	after := ""
	for {
		page, err := a.session.GuildMembers(guildID, after, membersPageSize)
		if err != nil {
			return nil, err
		}
		members = append(members, page...)
		if len(page) < membersPageSize || page[len(page)-1].User == nil {
			return members, nil
		}
		after = page[len(page)-1].User.ID
	}
}

func (a sessionAPI) AddRole(guildID, userID, roleID string) error {
	return a.session.GuildMemberRoleAdd(guildID, userID, roleID)
}

func (a sessionAPI) RemoveRole(guildID, userID, roleID string) error {
	return a.session.GuildMemberRoleRemove(guildID, userID, roleID)
}

func (a sessionAPI) CreateRole(guildID, name string) (*discordgo.Role, error) {
	mentionable := false
	return a.session.GuildRoleCreate(guildID, &discordgo.RoleParams{
		Name:        name,
		Mentionable: &mentionable,
	})
}

func (a sessionAPI) SetNickname(guildID, userID, nickname string) error {
	return a.session.GuildMemberNickname(guildID, userID, nickname)
}

func (a sessionAPI) SendDM(userID string, msg *discordgo.MessageSend) error {
	channel, err := a.session.UserChannelCreate(userID)
	if err != nil {
		return err
	}
	_, err = a.session.ChannelMessageSendComplex(channel.ID, msg)
	return err
}

func (a sessionAPI) SendChannel(channelID string, msg *discordgo.MessageSend) error {
	_, err := a.session.ChannelMessageSendComplex(channelID, msg)
	return err
}
