package onboarding

import "region40-bot/internal/storage"

type MessageKind string

const (
	MessageWelcome         MessageKind = "welcome"
	MessageWelcomeBack     MessageKind = "welcome_back"
	MessageProfilePrompt   MessageKind = "profile_prompt"
	MessageFormatError     MessageKind = "format_error"
	MessageAllianceMenu    MessageKind = "alliance_menu"
	MessageSelectionError  MessageKind = "selection_error"
	MessageComplete        MessageKind = "complete"
	MessageAlreadyStarted  MessageKind = "already_started"
	MessageAlreadyComplete MessageKind = "already_complete"
	MessageNotVerified     MessageKind = "not_verified"
	MessageProfileRequired MessageKind = "profile_required"
	MessageAllianceChanged MessageKind = "alliance_changed"
	MessageProfileUpdated  MessageKind = "profile_updated"
	MessageResetNotice     MessageKind = "reset_notice"
	MessageMemberOnboarded MessageKind = "member_onboarded"
)

// Message is structured content; wording and layout belong to the renderer.
type Message struct {
	Kind      MessageKind
	Profile   storage.UserProfile
	Alliance  Alliance
	Alliances Alliances
	Step      Step
	GuildID   string
	// Phrase is the verify phrase quoted in instructions.
	Phrase string
	// Reason explains a rejected input.
	Reason  string
	Caveats []string
}
