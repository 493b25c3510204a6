package onboarding

// Effect is a side effect the machine asks the Discord layer to perform.
// An empty GuildID means every guild the member shares with the bot.
type Effect interface {
	effect()
}

type ApplyRole struct {
	GuildID string
	Role    string
}

type RemoveRole struct {
	GuildID string
	Role    string
}

// Rename sets "(Tag) BaseName". An empty Tag strips the prefix; an empty
// BaseName falls back to the member's display name.
type Rename struct {
	GuildID  string
	Tag      string
	BaseName string
}

// Send is a direct message to the member.
type Send struct {
	Message Message
}

// Broadcast posts to the welcome channel of every guild the member is in.
type Broadcast struct {
	Message Message
}

func (ApplyRole) effect()  {}
func (RemoveRole) effect() {}
func (Rename) effect()     {}
func (Send) effect()       {}
func (Broadcast) effect()  {}

func ApplyRoleEverywhere(role string) ApplyRole {
	return ApplyRole{Role: role}
}

func RemoveRoleEverywhere(role string) RemoveRole {
	return RemoveRole{Role: role}
}
