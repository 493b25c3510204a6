package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"region40-bot/internal/onboarding"
)

func memberPermissions(guild *discordgo.Guild, member *discordgo.Member) int64 {
	if guild == nil || member == nil {
		return 0
	}
	perms := int64(0)
	roleMap := make(map[string]*discordgo.Role, len(guild.Roles))
	for _, role := range guild.Roles {
		roleMap[role.ID] = role
		if role.ID == guild.ID {
			perms |= role.Permissions
		}
	}
	for _, roleID := range member.Roles {
		if role := roleMap[roleID]; role != nil {
			perms |= role.Permissions
		}
	}
	if member.User != nil && member.User.ID == guild.OwnerID {
		perms |= discordgo.PermissionAll
	}
	return perms
}

func hasPermission(guild *discordgo.Guild, member *discordgo.Member, permission int64) bool {
	perms := memberPermissions(guild, member)
	return perms&discordgo.PermissionAdministrator != 0 || perms&permission != 0
}

// highestPosition is the position of the member's top role; @everyone is 0.
func highestPosition(guild *discordgo.Guild, member *discordgo.Member) int {
	if guild == nil || member == nil {
		return 0
	}
	held := make(map[string]struct{}, len(member.Roles))
	for _, id := range member.Roles {
		held[id] = struct{}{}
	}
	top := 0
	for _, role := range guild.Roles {
		if _, ok := held[role.ID]; ok && role.Position > top {
			top = role.Position
		}
	}
	return top
}

// canManage reports whether self may change target's nickname: it needs
// Manage Nicknames, the target must not own the guild and self's top role
// must sit above the target's.
func canManage(guild *discordgo.Guild, self, target *discordgo.Member) error {
	if guild == nil || self == nil || target == nil || target.User == nil {
		return fmt.Errorf("%w: member not resolved", onboarding.ErrNoAuthority)
	}
	if !hasPermission(guild, self, discordgo.PermissionManageNicknames) {
		return fmt.Errorf("%w: missing Manage Nicknames", onboarding.ErrNoAuthority)
	}
	if target.User.ID == guild.OwnerID {
		return fmt.Errorf("%w: target owns the guild", onboarding.ErrNoAuthority)
	}
	if self.User != nil && self.User.ID == guild.OwnerID {
		return nil
	}
	if highestPosition(guild, self) <= highestPosition(guild, target) {
		return fmt.Errorf("%w: target's role is not below the bot's", onboarding.ErrNoAuthority)
	}
	return nil
}

// canAssign reports whether self may add or remove role.
func canAssign(guild *discordgo.Guild, self *discordgo.Member, role *discordgo.Role) error {
	if guild == nil || self == nil || role == nil {
		return fmt.Errorf("%w: role not resolved", onboarding.ErrNoAuthority)
	}
	if !hasPermission(guild, self, discordgo.PermissionManageRoles) {
		return fmt.Errorf("%w: missing Manage Roles", onboarding.ErrNoAuthority)
	}
	if role.Managed {
		return fmt.Errorf("%w: role %s is managed by an integration", onboarding.ErrNoAuthority, role.Name)
	}
	if self.User != nil && self.User.ID == guild.OwnerID {
		return nil
	}
	if highestPosition(guild, self) <= role.Position {
		return fmt.Errorf("%w: role %s is not below the bot's", onboarding.ErrNoAuthority, role.Name)
	}
	return nil
}

func findRole(guild *discordgo.Guild, name string) *discordgo.Role {
	if guild == nil {
		return nil
	}
	for _, role := range guild.Roles {
		if role.Name == name {
			return role
		}
	}
	return nil
}

func hasRole(member *discordgo.Member, roleID string) bool {
	if member == nil {
		return false
	}
	for _, id := range member.Roles {
		if id == roleID {
			return true
		}
	}
	return false
}

func displayName(member *discordgo.Member) string {
	if member == nil {
		return ""
	}
	if member.Nick != "" {
		return member.Nick
	}
	if member.User != nil {
		return member.User.Username
	}
	return ""
}
