package onboarding

import (
	"strings"

	"region40-bot/internal/intake"
)

type TriggerKind string

const (
	// TriggerJoin is a member joining a guild.
	TriggerJoin TriggerKind = "join"
	// TriggerStart is an explicit request to begin, e.g. the /verify command.
	TriggerStart TriggerKind = "start"
	// TriggerText is a direct message. The verify phrase counts as TriggerStart.
	TriggerText             TriggerKind = "text"
	TriggerMenuSelect       TriggerKind = "menu_select"
	TriggerProfileForm      TriggerKind = "profile_form"
	TriggerAdminReset       TriggerKind = "admin_reset"
	TriggerAdminForceVerify TriggerKind = "admin_force_verify"
)

// Trigger is one inbound event for a member. GuildID is empty for direct
// messages; ActorID is the administrator for admin triggers.
type Trigger struct {
	Kind    TriggerKind
	UserID  string
	GuildID string
	ActorID string
	Payload string
}

// Key is the guard key. Joins are scoped to their guild; everything else
// touches the member's global profile and is scoped to the member.
func (t Trigger) Key() string {
	if t.Kind == TriggerJoin {
		return intake.Key(t.GuildID, t.UserID)
	}
	return intake.Key("", t.UserID)
}

// classify turns a direct message equal to the verify phrase into a start trigger.
func (t Trigger) classify(verifyPhrase string) Trigger {
	if t.Kind == TriggerText && strings.EqualFold(strings.TrimSpace(t.Payload), verifyPhrase) {
		t.Kind = TriggerStart
	}
	return t
}

// debounced triggers are deduplicated over the whole window, not just while in flight.
func (t Trigger) debounced() bool {
	return t.Kind == TriggerJoin || t.Kind == TriggerStart
}
