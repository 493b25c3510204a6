package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"region40-bot/internal/onboarding"
	"region40-bot/internal/storage"
)

type settingsReader interface {
	GetGuildSettings(ctx context.Context, guildID string) (storage.GuildSettings, error)
}

// collaborator performs onboarding effects against Discord. Empty guild IDs
// fan out over every guild the member shares with the bot.
type collaborator struct {
	api            discordAPI
	settings       settingsReader
	render         renderer
	unverifiedRole string
	logger         *zap.Logger
}

var (
	_ onboarding.Roles    = (*collaborator)(nil)
	_ onboarding.Notifier = (*collaborator)(nil)
)

type guildMember struct {
	guild  *discordgo.Guild
	self   *discordgo.Member
	member *discordgo.Member
}

// targets resolves the guilds an effect applies to. A named guild the user
// is not in is an error; fan-out silently skips such guilds.
func (c *collaborator) targets(guildID, userID string) ([]guildMember, error) {
	ids := []string{guildID}
	fanOut := guildID == ""
	if fanOut {
		ids = c.api.GuildIDs()
	}

	var out []guildMember
	var errs []error
	for _, id := range ids {
		guild, err := c.api.Guild(id)
		if err != nil {
			errs = append(errs, fmt.Errorf("guild %s: %w", id, err))
			continue
		}
		member, err := c.api.Member(id, userID)
		if err != nil {
			if fanOut && errors.Is(err, errNotMember) {
				continue
			}
			errs = append(errs, fmt.Errorf("guild %s: %w", id, err))
			continue
		}
		self, err := c.api.Member(id, c.api.SelfID())
		if err != nil {
			errs = append(errs, fmt.Errorf("guild %s: resolve bot member: %w", id, err))
			continue
		}
		out = append(out, guildMember{guild: guild, self: self, member: member})
	}
	return out, errors.Join(errs...)
}

func (c *collaborator) ApplyRole(ctx context.Context, guildID, userID, roleName string) error {
	targets, err := c.targets(guildID, userID)
	errs := []error{err}
	for _, t := range targets {
		role := findRole(t.guild, roleName)
		if role == nil {
			if roleName != c.unverifiedRole {
				if guildID != "" {
					errs = append(errs, fmt.Errorf("guild %s: role %q not found", t.guild.ID, roleName))
				}
				continue
			}
			created, err := c.api.CreateRole(t.guild.ID, roleName)
			if err != nil {
				errs = append(errs, fmt.Errorf("guild %s: create role %q: %w", t.guild.ID, roleName, err))
				continue
			}
			c.logger.Info("created role", zap.String("guild_id", t.guild.ID), zap.String("role", roleName))
			role = created
		}
		if hasRole(t.member, role.ID) {
			continue
		}
		if err := canAssign(t.guild, t.self, role); err != nil {
			errs = append(errs, fmt.Errorf("guild %s: %w", t.guild.ID, err))
			continue
		}
		if err := c.api.AddRole(t.guild.ID, userID, role.ID); err != nil {
			errs = append(errs, fmt.Errorf("guild %s: add role %q: %w", t.guild.ID, roleName, err))
		}
	}
	return errors.Join(errs...)
}

func (c *collaborator) RemoveRole(ctx context.Context, guildID, userID, roleName string) error {
	targets, err := c.targets(guildID, userID)
	errs := []error{err}
	for _, t := range targets {
		role := findRole(t.guild, roleName)
		if role == nil || !hasRole(t.member, role.ID) {
			continue
		}
		if err := canAssign(t.guild, t.self, role); err != nil {
			errs = append(errs, fmt.Errorf("guild %s: %w", t.guild.ID, err))
			continue
		}
		if err := c.api.RemoveRole(t.guild.ID, userID, role.ID); err != nil {
			errs = append(errs, fmt.Errorf("guild %s: remove role %q: %w", t.guild.ID, roleName, err))
		}
	}
	return errors.Join(errs...)
}

// Rename sets the nickname wherever the bot has authority. Guilds where it
// does not are skipped and reported; the last name set is returned.
func (c *collaborator) Rename(ctx context.Context, guildID, userID string, name onboarding.NameFunc) (string, error) {
	targets, err := c.targets(guildID, userID)
	errs := []error{err}
	set := ""
	for _, t := range targets {
		next := name(displayName(t.member))
		if next == "" || next == t.member.Nick {
			set = next
			continue
		}
		if err := canManage(t.guild, t.self, t.member); err != nil {
			errs = append(errs, fmt.Errorf("guild %s: %w", t.guild.ID, err))
			continue
		}
		if err := c.api.SetNickname(t.guild.ID, userID, next); err != nil {
			errs = append(errs, fmt.Errorf("guild %s: set nickname: %w", t.guild.ID, err))
			continue
		}
		set = next
	}
	return set, errors.Join(errs...)
}

func (c *collaborator) Send(ctx context.Context, userID string, msg onboarding.Message) error {
	return c.api.SendDM(userID, c.render.direct(msg))
}

// Broadcast posts to each shared guild's welcome channel, falling back to
// the system channel. Guilds with neither are skipped.
func (c *collaborator) Broadcast(ctx context.Context, userID string, msg onboarding.Message) error {
	targets, err := c.targets("", userID)
	errs := []error{err}
	for _, t := range targets {
		channelID := t.guild.SystemChannelID
		settings, err := c.settings.GetGuildSettings(ctx, t.guild.ID)
		if err != nil {
			c.logger.Warn("guild settings unavailable for broadcast", zap.String("guild_id", t.guild.ID), zap.Error(err))
		} else if settings.WelcomeChannelID != "" {
			channelID = settings.WelcomeChannelID
		}
		if channelID == "" {
			continue
		}
		if err := c.api.SendChannel(channelID, c.render.announcement(userID, msg)); err != nil {
			errs = append(errs, fmt.Errorf("guild %s: %w", t.guild.ID, err))
		}
	}
	return errors.Join(errs...)
}
