package onboarding

import (
	"strings"
	"time"

	"region40-bot/internal/language"
	"region40-bot/internal/modules/audit"
	"region40-bot/internal/storage"
)

// Rules are the guild-independent onboarding settings.
type Rules struct {
	VerifyPhrase   string
	UnverifiedRole string
	Alliances      Alliances
}

func DefaultRules() Rules {
	return Rules{
		VerifyPhrase:   "verify",
		UnverifiedRole: "not-onboarded",
		Alliances:      DefaultAlliances(),
	}
}

// State is what the machine knows about the member when a trigger arrives.
type State struct {
	Profile  storage.UserProfile
	Exists   bool
	Settings storage.GuildSettings
}

func (s State) step() Step {
	if !s.Exists {
		return StepNone
	}
	return ParseStep(s.Profile.OnboardingStep)
}

// notStarted covers a missing record, an unverified record and a verified
// record that never entered the sequence.
func (s State) notStarted() bool {
	return !s.Exists || !s.Profile.Verified || s.step() == StepNone
}

// Decision is the outcome of one transition. Patch is persisted before any
// effect runs; an empty patch means nothing is written.
type Decision struct {
	Next    Step
	Patch   storage.ProfilePatch
	Profile storage.UserProfile
	Effects []Effect
	Event   string
	Ignored bool
	Reason  string
}

// ProfileInput is the parsed "name | timezone | language" reply.
type ProfileInput struct {
	InGameName string
	Timezone   string
	Language   string
}

// ParseProfileInput requires exactly three pipe-delimited fields. The
// language token goes through the language table.
func ParseProfileInput(text string) (ProfileInput, error) {
	parts := strings.Split(text, "|")
	if len(parts) != 3 {
		return ProfileInput{}, &ValidationError{
			Field:  "profile",
			Reason: "use the format: IGN | Timezone | Language",
		}
	}
	return ProfileInput{
		InGameName: strings.TrimSpace(parts[0]),
		Timezone:   strings.TrimSpace(parts[1]),
		Language:   language.Normalize(parts[2]),
	}, nil
}

// Decide computes the transition for trigger without touching any
// collaborator. It is the only place onboarding rules live.
func Decide(rules Rules, state State, trigger Trigger, now time.Time) Decision {
	trigger = trigger.classify(rules.VerifyPhrase)
	d := decide(rules, state, trigger, now)
	if d.Next == "" {
		d.Next = state.step()
	}
	d.Profile = applyPatch(state.Profile, trigger.UserID, d.Patch)
	for i, effect := range d.Effects {
		switch e := effect.(type) {
		case Send:
			e.Message.Profile = d.Profile
			d.Effects[i] = e
		case Broadcast:
			e.Message.Profile = d.Profile
			d.Effects[i] = e
		}
	}
	return d
}

func decide(rules Rules, state State, trigger Trigger, now time.Time) Decision {
	switch trigger.Kind {
	case TriggerJoin:
		return decideJoin(rules, state, trigger)
	case TriggerStart:
		return decideStart(rules, state)
	case TriggerText:
		return decideText(rules, state, trigger, now)
	case TriggerMenuSelect:
		return decideMenuSelect(rules, state, trigger)
	case TriggerProfileForm:
		return decideProfileForm(rules, state, trigger, now)
	case TriggerAdminReset:
		return decideReset(rules, state, trigger)
	case TriggerAdminForceVerify:
		return Decision{
			Patch:   storage.ProfilePatch{Verified: boolPtr(true)},
			Effects: []Effect{RemoveRole{GuildID: trigger.GuildID, Role: rules.UnverifiedRole}},
			Event:   audit.EventForceVerify,
		}
	default:
		return ignore("unknown trigger")
	}
}

func decideJoin(rules Rules, state State, trigger Trigger) Decision {
	if !state.Settings.OnboardingEnabled {
		return ignore("onboarding disabled in guild")
	}
	switch {
	case state.step() == StepComplete:
		return Decision{
			Effects: []Effect{send(Message{Kind: MessageWelcomeBack, GuildID: trigger.GuildID})},
			Event:   audit.EventJoin,
		}
	case !state.notStarted():
		return Decision{
			Effects: []Effect{send(Message{Kind: MessageAlreadyStarted, Step: state.step(), GuildID: trigger.GuildID})},
			Event:   audit.EventJoin,
		}
	default:
		return Decision{
			Effects: []Effect{
				ApplyRole{GuildID: trigger.GuildID, Role: rules.UnverifiedRole},
				send(Message{Kind: MessageWelcome, GuildID: trigger.GuildID, Phrase: rules.VerifyPhrase}),
			},
			Event: audit.EventJoin,
		}
	}
}

func decideStart(rules Rules, state State) Decision {
	if state.notStarted() {
		return Decision{
			Next: StepProfile,
			Patch: storage.ProfilePatch{
				Verified:       boolPtr(true),
				OnboardingStep: stringPtr(StepProfile.Stored()),
			},
			Effects: []Effect{
				RemoveRoleEverywhere(rules.UnverifiedRole),
				send(Message{Kind: MessageProfilePrompt}),
			},
			Event: audit.EventStarted,
		}
	}
	if state.step() == StepComplete {
		return Decision{Effects: []Effect{send(Message{Kind: MessageAlreadyComplete})}}
	}
	return Decision{Effects: []Effect{send(Message{Kind: MessageAlreadyStarted, Step: state.step()})}}
}

func decideText(rules Rules, state State, trigger Trigger, now time.Time) Decision {
	if state.notStarted() {
		return ignore("not verified")
	}
	switch state.step() {
	case StepProfile:
		input, err := ParseProfileInput(trigger.Payload)
		if err != nil {
			return rejected(MessageFormatError, err)
		}
		patch := profilePatch(input, now)
		patch.OnboardingStep = stringPtr(StepAlliance.Stored())
		return Decision{
			Next:    StepAlliance,
			Patch:   patch,
			Effects: []Effect{send(Message{Kind: MessageAllianceMenu, Alliances: rules.Alliances})},
			Event:   audit.EventProfile,
		}
	case StepAlliance:
		alliance, err := rules.Alliances.Select(trigger.Payload)
		if err != nil {
			return Decision{
				Effects: []Effect{send(Message{Kind: MessageSelectionError, Reason: err.Error(), Alliances: rules.Alliances})},
				Reason:  err.Error(),
			}
		}
		return completeWith(state, alliance)
	default:
		return ignore("no reply expected at step " + string(state.step()))
	}
}

func decideMenuSelect(rules Rules, state State, trigger Trigger) Decision {
	alliance, ok := rules.Alliances.ByKey(trigger.Payload)
	if !ok {
		return rejected(MessageSelectionError, &ValidationError{Field: "alliance", Reason: "unknown alliance " + trigger.Payload})
	}
	if !state.Exists || !state.Profile.Verified {
		return Decision{Effects: []Effect{send(Message{Kind: MessageNotVerified, Phrase: rules.VerifyPhrase})}}
	}

	switch state.step() {
	case StepAlliance:
		return completeWith(state, alliance)
	case StepComplete:
		var effects []Effect
		for _, other := range rules.Alliances {
			if other.Key != alliance.Key {
				effects = append(effects, RemoveRoleEverywhere(other.Name))
			}
		}
		effects = append(effects,
			ApplyRoleEverywhere(alliance.Name),
			Rename{Tag: alliance.Tag, BaseName: state.Profile.InGameName},
			send(Message{Kind: MessageAllianceChanged, Alliance: alliance}),
		)
		return Decision{
			Patch:   storage.ProfilePatch{Alliance: stringPtr(alliance.Key)},
			Effects: effects,
			Event:   audit.EventAllianceChanged,
		}
	default:
		return Decision{Effects: []Effect{send(Message{Kind: MessageProfileRequired, Step: state.step()})}}
	}
}

func decideProfileForm(rules Rules, state State, trigger Trigger, now time.Time) Decision {
	if state.notStarted() {
		return Decision{Effects: []Effect{send(Message{Kind: MessageNotVerified, Phrase: rules.VerifyPhrase})}}
	}
	input, err := ParseProfileInput(trigger.Payload)
	if err != nil {
		return rejected(MessageFormatError, err)
	}

	patch := profilePatch(input, now)
	if state.step() == StepProfile {
		patch.OnboardingStep = stringPtr(StepAlliance.Stored())
		return Decision{
			Next:    StepAlliance,
			Patch:   patch,
			Effects: []Effect{send(Message{Kind: MessageAllianceMenu, Alliances: rules.Alliances})},
			Event:   audit.EventProfile,
		}
	}

	var effects []Effect
	if alliance, ok := rules.Alliances.ByKey(state.Profile.Alliance); ok {
		effects = append(effects, Rename{Tag: alliance.Tag, BaseName: input.InGameName})
	}
	effects = append(effects, send(Message{Kind: MessageProfileUpdated}))
	return Decision{
		Patch:   patch,
		Effects: effects,
		Event:   audit.EventProfileUpdated,
	}
}

func decideReset(rules Rules, state State, trigger Trigger) Decision {
	effects := make([]Effect, 0, len(rules.Alliances)+3)
	for _, name := range rules.Alliances.RoleNames() {
		effects = append(effects, RemoveRoleEverywhere(name))
	}
	effects = append(effects,
		ApplyRole{GuildID: trigger.GuildID, Role: rules.UnverifiedRole},
		Rename{BaseName: state.Profile.InGameName},
		send(Message{Kind: MessageResetNotice, GuildID: trigger.GuildID, Phrase: rules.VerifyPhrase}),
	)
	return Decision{
		Next: StepNone,
		Patch: storage.ProfilePatch{
			Verified:       boolPtr(false),
			Alliance:       stringPtr(""),
			OnboardingStep: stringPtr(StepNone.Stored()),
		},
		Effects: effects,
		Event:   audit.EventReset,
	}
}

func completeWith(state State, alliance Alliance) Decision {
	return Decision{
		Next: StepComplete,
		Patch: storage.ProfilePatch{
			Alliance:       stringPtr(alliance.Key),
			OnboardingStep: stringPtr(StepComplete.Stored()),
		},
		Effects: []Effect{
			ApplyRoleEverywhere(alliance.Name),
			Rename{Tag: alliance.Tag, BaseName: state.Profile.InGameName},
			send(Message{Kind: MessageComplete, Alliance: alliance}),
			Broadcast{Message: Message{Kind: MessageMemberOnboarded, Alliance: alliance}},
		},
		Event: audit.EventComplete,
	}
}

func profilePatch(input ProfileInput, now time.Time) storage.ProfilePatch {
	return storage.ProfilePatch{
		InGameName:         stringPtr(input.InGameName),
		Timezone:           stringPtr(input.Timezone),
		Language:           stringPtr(input.Language),
		AutoTranslate:      boolPtr(true),
		ProfileCompletedAt: &now,
	}
}

func rejected(kind MessageKind, err error) Decision {
	return Decision{
		Effects: []Effect{send(Message{Kind: kind, Reason: err.Error()})},
		Reason:  err.Error(),
	}
}

func ignore(reason string) Decision {
	return Decision{Ignored: true, Reason: reason}
}

func send(msg Message) Effect {
	return Send{Message: msg}
}

// applyPatch mirrors storage.UpsertProfile so messages can carry the
// post-transition record without a second read.
func applyPatch(profile storage.UserProfile, userID string, patch storage.ProfilePatch) storage.UserProfile {
	if profile.UserID == "" {
		profile.UserID = userID
		profile.Language = "en"
	}
	if patch.Verified != nil {
		profile.Verified = *patch.Verified
	}
	if patch.InGameName != nil {
		profile.InGameName = *patch.InGameName
	}
	if patch.Timezone != nil {
		profile.Timezone = *patch.Timezone
	}
	if patch.Language != nil {
		profile.Language = *patch.Language
	}
	if patch.Alliance != nil {
		profile.Alliance = *patch.Alliance
	}
	if patch.Nickname != nil {
		profile.Nickname = *patch.Nickname
	}
	if patch.OnboardingStep != nil {
		profile.OnboardingStep = *patch.OnboardingStep
	}
	if patch.AutoTranslate != nil {
		profile.AutoTranslate = *patch.AutoTranslate
	}
	if patch.ProfileCompletedAt != nil && profile.ProfileCompletedAt == nil {
		completed := *patch.ProfileCompletedAt
		profile.ProfileCompletedAt = &completed
	}
	return profile
}

func boolPtr(v bool) *bool       { return &v }
func stringPtr(v string) *string { return &v }
